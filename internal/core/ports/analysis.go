package ports

import (
	"context"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// Preprocessor normalizes raw text and extracts the feature vector the
// later stages consume.
type Preprocessor interface {
	Process(ctx context.Context, text string) (*domain.PreprocessedText, error)
}

// MLFilter fans the preprocessed text out to every configured detector and
// the heuristic scanner, returning the combined signals.
type MLFilter interface {
	Analyze(ctx context.Context, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.MLSignals, error)
}

// Analyzer runs the full pipeline for one direction. A block surfaces as
// *domain.ContentBlockedError; any other error is a pipeline failure.
type Analyzer interface {
	Analyze(ctx context.Context, text string, direction domain.Direction, reqCtx domain.RequestContext) (*domain.AnalysisResult, error)
}
