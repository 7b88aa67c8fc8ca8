package policy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

const (
	matchedConfidence = 0.9
	defaultConfidence = 0.5
)

// TableEvaluator evaluates the rule table in order and returns the first
// matching rule's verdict. Conditions compile once, on first evaluation.
type TableEvaluator struct {
	loader *Loader
	tenant ports.TenantProvider
	logger *slog.Logger

	once     sync.Once
	programs []*vm.Program
}

func NewTableEvaluator(loader *Loader, tenant ports.TenantProvider, logger *slog.Logger) *TableEvaluator {
	return &TableEvaluator{loader: loader, tenant: tenant, logger: logger}
}

func (e *TableEvaluator) Name() string { return "table" }

func (e *TableEvaluator) compile() {
	set := e.loader.Load()
	e.programs = make([]*vm.Program, len(set.Rules))
	for i, rule := range set.Rules {
		prog, err := expr.Compile(rule.Condition, expr.AsBool())
		if err != nil {
			e.logger.Warn("skipping uncompilable policy rule",
				"rule", rule.Name, "condition", rule.Condition, "error", err)
			continue
		}
		e.programs[i] = prog
	}
}

// Evaluate applies the rules to the flattened signal context. Rules that
// fail to compile or run are skipped rather than blocking traffic.
func (e *TableEvaluator) Evaluate(ctx context.Context, signals *domain.MLSignals, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.PolicyDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.once.Do(e.compile)

	env := evaluationEnv(signals, pre, e.tenant.TenantID(reqCtx))
	set := e.loader.Load()

	for i, rule := range set.Rules {
		if e.programs[i] == nil {
			continue
		}
		out, err := expr.Run(e.programs[i], env)
		if err != nil {
			e.logger.Warn("policy rule failed to run", "rule", rule.Name, "error", err)
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return &domain.PolicyDecision{
				Blocked:     rule.Action == "block",
				Reason:      rule.Reason,
				Confidence:  matchedConfidence,
				MatchedRule: rule.Name,
			}, nil
		}
	}

	return &domain.PolicyDecision{
		Blocked:    set.DefaultAction == "block",
		Confidence: defaultConfidence,
	}, nil
}

// evaluationEnv flattens signals and features into the expression scope.
func evaluationEnv(signals *domain.MLSignals, pre *domain.PreprocessedText, tenantID string) map[string]any {
	var features map[string]any
	if pre != nil {
		features = map[string]any{
			"length":            pre.Features.Length,
			"word_count":        pre.Features.WordCount,
			"char_count":        pre.Features.CharCount,
			"has_numbers":       pre.Features.HasNumbers,
			"has_special_chars": pre.Features.HasSpecialChars,
			"url_count":         pre.Features.URLCount,
			"email_count":       pre.Features.EmailCount,
		}
	} else {
		features = map[string]any{}
	}

	return map[string]any{
		"pii_score":              signals.PII.Score,
		"toxicity_score":         signals.Toxicity.Score,
		"prompt_injection_score": signals.PromptInjection.Score,
		"heuristic_blocked":      signals.Heuristic.Blocked,
		"heuristic_flags":        signals.Heuristic.Flags,
		"features":               features,
		"tenant_id":              tenantID,
	}
}
