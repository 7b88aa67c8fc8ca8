package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// AnalyzerFactory builds an analyzer for a specific detector model
// configuration. The default analyzer corresponds to an empty config.
type AnalyzerFactory func(models map[string]string) (ports.Analyzer, error)

// Service is the request-facing firewall. It analyzes ingress traffic,
// forwards allowed prompts to the backend, optionally analyzes the reply,
// and emits one standardized event per request.
type Service struct {
	factory       AnalyzerFactory
	backend       ports.BackendClient
	sinks         []ports.EventSink
	analyzeEgress bool
	logger        *slog.Logger

	analyzers *xsync.Map[string, ports.Analyzer]
}

func New(factory AnalyzerFactory, backend ports.BackendClient, analyzeEgress bool, logger *slog.Logger, sinks ...ports.EventSink) *Service {
	return &Service{
		factory:       factory,
		backend:       backend,
		sinks:         sinks,
		analyzeEgress: analyzeEgress,
		logger:        logger,
		analyzers:     xsync.NewMap[string, ports.Analyzer](),
	}
}

// Chat runs the full firewall flow for one prompt. Blocked content
// returns a non-error response with Blocked set; backend and pipeline
// failures return typed errors for the transport layer to map.
func (s *Service) Chat(ctx context.Context, req ports.ChatRequest, reqCtx domain.RequestContext) (*ports.ChatResponse, error) {
	start := time.Now()
	s.logger.Info("chat request received",
		"request_id", reqCtx.RequestID, "session_id", reqCtx.SessionID, "message_len", len(req.Message))

	an, err := s.analyzerFor(req.DetectorConfig)
	if err != nil {
		return nil, &domain.FirewallError{Err: err, Stage: "detector_config", RequestID: reqCtx.RequestID}
	}

	result, err := an.Analyze(ctx, req.Message, domain.DirectionIngress, reqCtx)
	if blocked := asBlocked(err); blocked != nil {
		return s.blockedResponse(req, reqCtx, blocked, start), nil
	}
	if err != nil {
		return nil, err
	}

	backendStart := time.Now()
	reply, err := s.backend.Chat(ctx, req.Message)
	if err != nil {
		return nil, err
	}
	backendMs := msSince(backendStart)

	if s.analyzeEgress && reply != "" {
		egressCtx := reqCtx
		egressCtx.RequestID = reqCtx.RequestID + "_egress"
		_, err := an.Analyze(ctx, reply, domain.DirectionEgress, egressCtx)
		if blocked := asBlocked(err); blocked != nil {
			return s.blockedResponse(req, egressCtx, blocked, start), nil
		}
		if err != nil {
			return nil, err
		}
	}

	total := msSince(start)
	s.emit(domain.NewEvent(
		reqCtx.RequestID, req.Message, reply, false,
		result.Signals, result.Preprocessed, result.Decision,
		domain.EventLatency{
			Preprocessing: result.Stages.PreprocessingMs,
			ML:            result.Stages.MLMs,
			Policy:        result.Stages.PolicyMs,
			Backend:       backendMs,
			Total:         total,
		},
		reqCtx.SessionID, req.DetectorConfig,
	))

	stages := result.Stages
	stages.BackendMs = backendMs
	return &ports.ChatResponse{
		RequestID:        reqCtx.RequestID,
		Reply:            reply,
		Blocked:          false,
		RiskLevel:        domain.StandardRiskLevel(result.Signals),
		MLDetectors:      detectorMetrics(result.Signals),
		Preprocessing:    preprocessingMetrics(result.Preprocessed),
		Policy:           policyMetrics(result.Decision, result.Signals),
		LatencyBreakdown: latencyBreakdown(stages),
		TotalLatencyMs:   total,
	}, nil
}

func (s *Service) blockedResponse(req ports.ChatRequest, reqCtx domain.RequestContext, blocked *domain.ContentBlockedError, start time.Time) *ports.ChatResponse {
	total := msSince(start)

	decision := &domain.PolicyDecision{
		Blocked:     true,
		Reason:      blocked.Reason,
		Confidence:  blocked.Confidence,
		MatchedRule: blocked.MatchedRule,
	}
	s.emit(domain.NewEvent(
		reqCtx.RequestID, req.Message, "", true,
		blocked.Signals, blocked.Preprocessed, decision,
		domain.EventLatency{ML: blocked.Signals.TotalLatencyMs, Total: total},
		reqCtx.SessionID, req.DetectorConfig,
	))

	return &ports.ChatResponse{
		RequestID:        reqCtx.RequestID,
		Blocked:          true,
		Reason:           blocked.Reason,
		Direction:        string(blocked.Direction),
		RiskLevel:        domain.StandardRiskLevel(blocked.Signals),
		MLDetectors:      detectorMetrics(blocked.Signals),
		Preprocessing:    preprocessingMetrics(blocked.Preprocessed),
		Policy:           policyMetrics(decision, blocked.Signals),
		LatencyBreakdown: latencyBreakdown(domain.StageLatencies{MLMs: blocked.Signals.TotalLatencyMs}),
		TotalLatencyMs:   total,
	}
}

// analyzerFor returns the analyzer for a detector configuration, building
// and caching it on first use.
func (s *Service) analyzerFor(models map[string]string) (ports.Analyzer, error) {
	key := configKey(models)
	if an, ok := s.analyzers.Load(key); ok {
		return an, nil
	}
	an, err := s.factory(models)
	if err != nil {
		return nil, err
	}
	actual, _ := s.analyzers.LoadOrStore(key, an)
	return actual, nil
}

func (s *Service) emit(event domain.Event) {
	for _, sink := range s.sinks {
		sink.Publish(event)
	}
}

func configKey(models map[string]string) string {
	if len(models) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(models))
	for k := range models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, models[k])
	}
	return b.String()
}

func asBlocked(err error) *domain.ContentBlockedError {
	var blocked *domain.ContentBlockedError
	if errors.As(err, &blocked) {
		return blocked
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
