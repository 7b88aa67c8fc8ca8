package policy

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/palisade-sh/palisade/internal/config"
	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExternalEvaluator delegates the verdict to an OPA-compatible decision
// engine. The Rego policy is uploaded once and re-uploaded only when its
// content hash changes.
type ExternalEvaluator struct {
	client     *http.Client
	engineURL  string
	policyName string
	policyPath string
	failOpen   bool
	tenant     ports.TenantProvider
	fs         afero.Fs
	logger     *slog.Logger

	mu         sync.Mutex
	loadedHash string
}

func NewExternalEvaluator(cfg config.PolicyConfig, tenant ports.TenantProvider, fs afero.Fs, logger *slog.Logger) *ExternalEvaluator {
	return &ExternalEvaluator{
		client:     &http.Client{Timeout: 5 * time.Second},
		engineURL:  strings.TrimRight(cfg.External.EngineURL, "/"),
		policyName: cfg.External.PolicyName,
		policyPath: cfg.External.PolicyPath,
		failOpen:   cfg.FailOpen,
		tenant:     tenant,
		fs:         fs,
		logger:     logger,
	}
}

func (e *ExternalEvaluator) Name() string { return "external" }

// Evaluate queries the decision engine. When fail-open is enabled an
// unreachable engine degrades to allow with zero confidence; with
// fail-open off the request is blocked instead.
func (e *ExternalEvaluator) Evaluate(ctx context.Context, signals *domain.MLSignals, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.PolicyDecision, error) {
	decision, err := e.evaluate(ctx, signals, pre, reqCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !e.failOpen {
			e.logger.Error("decision engine unavailable, failing closed", "error", err)
			return &domain.PolicyDecision{
				Blocked:    true,
				Reason:     "Policy evaluation unavailable",
				Confidence: 0.0,
			}, nil
		}
		e.logger.Error("decision engine unavailable, failing open", "error", err)
		return &domain.PolicyDecision{
			Blocked:    false,
			Reason:     fmt.Sprintf("Policy evaluation error: %v", err),
			Confidence: 0.0,
		}, nil
	}
	return decision, nil
}

func (e *ExternalEvaluator) evaluate(ctx context.Context, signals *domain.MLSignals, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.PolicyDecision, error) {
	if err := e.ensurePolicy(ctx); err != nil {
		return nil, err
	}

	input := map[string]any{
		"input": map[string]any{
			"ml_signals": map[string]any{
				"pii_score":              signals.PII.Score,
				"toxicity_score":         signals.Toxicity.Score,
				"prompt_injection_score": signals.PromptInjection.Score,
				"heuristic_blocked":      signals.Heuristic.Blocked,
				"heuristic_flags":        signals.Heuristic.Flags,
				"heuristic_reason":       signals.Heuristic.Reason,
			},
			"features":       evaluationEnv(signals, pre, "")["features"],
			"tenant_context": map[string]any{"tenant_id": e.tenant.TenantID(reqCtx)},
		},
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/data/%s/decision", e.engineURL, e.policyName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decision engine returned %d: %s", resp.StatusCode, raw)
	}

	result := gjson.GetBytes(raw, "result")
	if !result.Exists() {
		e.logger.Warn("decision engine returned no result, defaulting to allow")
		return &domain.PolicyDecision{Confidence: defaultConfidence}, nil
	}

	confidence := defaultConfidence
	if c := result.Get("confidence"); c.Exists() {
		confidence = c.Float()
	}
	return &domain.PolicyDecision{
		Blocked:     result.Get("blocked").Bool(),
		Reason:      result.Get("reason").String(),
		Confidence:  confidence,
		MatchedRule: result.Get("matched_rule").String(),
	}, nil
}

// ensurePolicy uploads the Rego policy when its content changes.
func (e *ExternalEvaluator) ensurePolicy(ctx context.Context) error {
	data, err := afero.ReadFile(e.fs, e.policyPath)
	if err != nil {
		return fmt.Errorf("read policy %s: %w", e.policyPath, err)
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadedHash == hash {
		return nil
	}

	name := strings.ReplaceAll(e.policyName, "/", ".")
	url := fmt.Sprintf("%s/v1/policies/%s", e.engineURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("decision engine connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("policy upload failed: %d: %s", resp.StatusCode, raw)
	}

	io.Copy(io.Discard, resp.Body)
	e.loadedHash = hash
	e.logger.Info("policy uploaded to decision engine", "policy", name)
	return nil
}
