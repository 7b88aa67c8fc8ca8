package ports

import (
	"context"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// ActionOrchestrator applies a policy decision exactly once per request.
type ActionOrchestrator interface {
	Execute(ctx context.Context, decision *domain.PolicyDecision, signals *domain.MLSignals, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.ActionOutcome, error)
}

// Alerter receives high-confidence block notifications.
type Alerter interface {
	Alert(ctx context.Context, alert domain.Alert)
}

// IdempotencyStore remembers which request IDs have already been acted on.
type IdempotencyStore interface {
	Seen(requestID string) (*domain.ActionOutcome, bool)
	Record(requestID string, outcome *domain.ActionOutcome)
}
