package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Service chains the pipeline stages for one direction of traffic:
// preprocess, ML fan-out, policy, orchestrator. A block is returned as
// *domain.ContentBlockedError with the collected evidence attached.
type Service struct {
	preprocessor ports.Preprocessor
	mlFilter     ports.MLFilter
	policy       ports.PolicyEvaluator
	orchestrator ports.ActionOrchestrator
	logger       *slog.Logger
}

func New(
	preprocessor ports.Preprocessor,
	mlFilter ports.MLFilter,
	policy ports.PolicyEvaluator,
	orchestrator ports.ActionOrchestrator,
	logger *slog.Logger,
) *Service {
	return &Service{
		preprocessor: preprocessor,
		mlFilter:     mlFilter,
		policy:       policy,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (s *Service) Analyze(ctx context.Context, text string, direction domain.Direction, reqCtx domain.RequestContext) (*domain.AnalysisResult, error) {
	start := time.Now()

	pre, err := s.preprocessor.Process(ctx, text)
	if err != nil {
		return nil, &domain.FirewallError{Err: err, Stage: "preprocess", RequestID: reqCtx.RequestID}
	}
	preMs := msSince(start)

	mlStart := time.Now()
	signals, err := s.mlFilter.Analyze(ctx, pre, reqCtx)
	if err != nil {
		return nil, &domain.FirewallError{Err: err, Stage: "ml_filter", RequestID: reqCtx.RequestID}
	}
	mlMs := msSince(mlStart)

	policyStart := time.Now()
	decision, err := s.policy.Evaluate(ctx, signals, pre, reqCtx)
	if err != nil {
		return nil, &domain.FirewallError{Err: err, Stage: "policy", RequestID: reqCtx.RequestID}
	}
	policyMs := msSince(policyStart)

	if _, err := s.orchestrator.Execute(ctx, decision, signals, pre, reqCtx); err != nil {
		return nil, &domain.FirewallError{Err: err, Stage: "orchestrator", RequestID: reqCtx.RequestID}
	}

	result := &domain.AnalysisResult{
		Preprocessed: pre,
		Signals:      signals,
		Decision:     decision,
		Direction:    direction,
		LatencyMs:    msSince(start),
		Stages: domain.StageLatencies{
			PreprocessingMs: preMs,
			MLMs:            mlMs,
			PolicyMs:        policyMs,
		},
	}

	if decision.Blocked {
		return result, &domain.ContentBlockedError{
			Reason:       decision.Reason,
			Direction:    direction,
			Signals:      signals,
			Preprocessed: pre,
			Confidence:   decision.Confidence,
			MatchedRule:  decision.MatchedRule,
			LatencyMs:    result.LatencyMs,
		}
	}
	return result, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
