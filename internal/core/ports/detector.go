package ports

import (
	"context"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// DetectorKind identifies a detection concern, not a concrete model.
type DetectorKind string

const (
	DetectorPromptInjection DetectorKind = "prompt_injection"
	DetectorPII             DetectorKind = "pii"
	DetectorToxicity        DetectorKind = "toxicity"
)

// Detector scores a single text for one concern. Implementations must be
// safe for concurrent use; Score is called from the parallel ML stage.
type Detector interface {
	Kind() DetectorKind
	Model() string
	Score(ctx context.Context, text string, reqCtx domain.RequestContext) (float64, error)
}

// DetectorRegistry hands out detector instances keyed by (kind, model),
// caching them so repeated requests share a single instance.
type DetectorRegistry interface {
	Get(kind DetectorKind, model string) (Detector, error)
	Keys() []string
	Size() int
	Clear()
	Warmup(ctx context.Context) error
}

// HeuristicScanner is the deterministic rule pass that runs alongside the
// ML detectors.
type HeuristicScanner interface {
	Scan(ctx context.Context, text string) (domain.HeuristicResult, error)
	RuleCount() int
}

// EmbeddingClient produces a vector for a context-conditioned prompt via
// an external embedding service.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
