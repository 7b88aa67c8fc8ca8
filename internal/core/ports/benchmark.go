package ports

import (
	"context"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// BenchmarkStore persists runs, per-sample results and aggregate metrics.
type BenchmarkStore interface {
	CreateRun(ctx context.Context, run *domain.BenchmarkRun) error
	UpdateRun(ctx context.Context, run *domain.BenchmarkRun) error
	GetRun(ctx context.Context, runID string) (*domain.BenchmarkRun, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.BenchmarkRun, error)

	SaveResultsBatch(ctx context.Context, results []*domain.BenchmarkResult) error
	GetResults(ctx context.Context, runID string, resultType string) ([]*domain.BenchmarkResult, error)
	ResultsBySampleIndex(ctx context.Context, runID string) (map[int]*domain.BenchmarkResult, error)

	SaveMetrics(ctx context.Context, metrics *domain.BenchmarkMetrics) error
	GetMetrics(ctx context.Context, runID string) (*domain.BenchmarkMetrics, error)

	Close() error
}

// DatasetStore keeps uploaded dataset files and their metadata.
type DatasetStore interface {
	Save(ctx context.Context, meta *domain.DatasetMetadata, content []byte) error
	Load(ctx context.Context, id string) (*domain.DatasetMetadata, []byte, error)
	List(ctx context.Context) ([]*domain.DatasetMetadata, error)
	Delete(ctx context.Context, id string) error
}

// DatasetLoader parses raw dataset bytes into replayable samples.
type DatasetLoader interface {
	Load(ctx context.Context, source, split string, limit int) ([]domain.DatasetSample, error)
	LoadBytes(content []byte, fileType string) ([]domain.DatasetSample, error)
}

// BenchmarkRunner drives a dataset through the analysis pipeline.
type BenchmarkRunner interface {
	Start(ctx context.Context, datasetSource, datasetSplit string, sampleLimit int) (*domain.BenchmarkRun, error)
	StartCustom(ctx context.Context, datasetID string, sampleLimit int) (*domain.BenchmarkRun, error)
	Cancel(runID string) error
	Progress(runID string) (*RunProgress, bool)
}

// RunProgress is the live progress of an in-flight run.
type RunProgress struct {
	RunID              string  `json:"run_id"`
	Status             string  `json:"status"`
	TotalSamples       int     `json:"total_samples"`
	ProcessedSamples   int     `json:"processed_samples"`
	ProgressPercent    float64 `json:"progress_percent"`
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	EstimatedRemaining float64 `json:"estimated_remaining_seconds"`
}

// ComparisonEngine measures candidate runs against a baseline run.
type ComparisonEngine interface {
	Compare(ctx context.Context, baselineID string, candidateIDs []string) (*domain.ComparisonReport, error)
}
