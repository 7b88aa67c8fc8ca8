package ports

import (
	"context"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// PolicyEvaluator decides allow or block from the collected signals.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, signals *domain.MLSignals, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.PolicyDecision, error)
	Name() string
}

// TenantProvider resolves the tenant identity attached to a request.
type TenantProvider interface {
	TenantID(reqCtx domain.RequestContext) string
}
