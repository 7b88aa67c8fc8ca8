package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/semaphore"

	"github.com/palisade-sh/palisade/internal/config"
	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

const benchmarkTenant = "benchmark"

type runState struct {
	cancel    context.CancelFunc
	total     int
	processed atomic.Int64
	startTime time.Time

	mu     sync.Mutex
	status string
}

func (s *runState) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *runState) getStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Runner replays labeled datasets through the analysis pipeline. Samples
// run concurrently up to the configured limit; results persist in batches.
type Runner struct {
	analyzer ports.Analyzer
	store    ports.BenchmarkStore
	loader   ports.DatasetLoader
	datasets ports.DatasetStore
	cfg      config.BenchmarkConfig
	logger   *slog.Logger

	active *xsync.Map[string, *runState]
}

func NewRunner(
	analyzer ports.Analyzer,
	store ports.BenchmarkStore,
	loader ports.DatasetLoader,
	datasets ports.DatasetStore,
	cfg config.BenchmarkConfig,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		analyzer: analyzer,
		store:    store,
		loader:   loader,
		datasets: datasets,
		cfg:      cfg,
		logger:   logger,
		active:   xsync.NewMap[string, *runState](),
	}
}

// Start loads the dataset and launches a run in the background.
func (r *Runner) Start(ctx context.Context, datasetSource, datasetSplit string, sampleLimit int) (*domain.BenchmarkRun, error) {
	samples, err := r.loader.Load(ctx, datasetSource, datasetSplit, sampleLimit)
	if err != nil {
		return nil, err
	}
	return r.launch(ctx, datasetSource, "file", datasetSplit, samples, sampleLimit)
}

// StartCustom launches a run over an uploaded dataset.
func (r *Runner) StartCustom(ctx context.Context, datasetID string, sampleLimit int) (*domain.BenchmarkRun, error) {
	meta, content, err := r.datasets.Load(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	samples, err := r.loader.LoadBytes(content, meta.FileType)
	if err != nil {
		return nil, err
	}
	samples = truncateSamples(samples, sampleLimit)
	return r.launch(ctx, meta.Name, "custom:"+datasetID, "", samples, sampleLimit)
}

func (r *Runner) launch(ctx context.Context, datasetName, datasetSource, datasetSplit string, samples []domain.DatasetSample, sampleLimit int) (*domain.BenchmarkRun, error) {
	if len(samples) == 0 {
		return nil, &domain.ValidationError{Field: "dataset", Reason: "no samples loaded"}
	}

	run := &domain.BenchmarkRun{
		ID:            uuid.NewString(),
		DatasetName:   datasetName,
		DatasetSource: datasetSource,
		DatasetSplit:  datasetSplit,
		ConfigSnapshot: map[string]any{
			"dataset_name":  datasetName,
			"dataset_split": datasetSplit,
			"max_samples":   sampleLimit,
			"tenant_id":     benchmarkTenant,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
		StartTime:    time.Now().UTC(),
		Status:       domain.RunStatusRunning,
		TotalSamples: len(samples),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	state := &runState{
		cancel:    cancel,
		total:     len(samples),
		startTime: time.Now(),
		status:    domain.RunStatusRunning,
	}
	r.active.Store(run.ID, state)

	r.logger.Info("benchmark started",
		"run_id", run.ID, "dataset", datasetName, "split", datasetSplit, "samples", len(samples))

	go r.execute(runCtx, run, state, samples)
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *domain.BenchmarkRun, state *runState, samples []domain.DatasetSample) {
	defer r.active.Delete(run.ID)

	sem := semaphore.NewWeighted(int64(r.cfg.MaxConcurrentSamples))
	resultCh := make(chan *domain.BenchmarkResult, r.cfg.BatchSize)

	var wg sync.WaitGroup
	go func() {
		for _, sample := range samples {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(sample domain.DatasetSample) {
				defer wg.Done()
				defer sem.Release(1)
				resultCh <- r.processSample(ctx, run.ID, sample)
				state.processed.Add(1)
			}(sample)
		}
		wg.Wait()
		close(resultCh)
	}()

	// Collect and persist. Batches flush every BatchSize results; the
	// remainder flushes on channel close. Each flush also advances the
	// stored processed counter so status readers see live progress.
	var all []*domain.BenchmarkResult
	batch := make([]*domain.BenchmarkResult, 0, r.cfg.BatchSize)
	persistCtx := context.Background()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.store.SaveResultsBatch(persistCtx, batch); err != nil {
			return err
		}
		run.ProcessedSamples += len(batch)
		if err := r.store.UpdateRun(persistCtx, run); err != nil {
			r.logger.Warn("progress update failed", "run_id", run.ID, "error", err)
		}
		batch = batch[:0]
		return nil
	}

	var persistErr error
	for result := range resultCh {
		all = append(all, result)
		if persistErr != nil {
			continue
		}
		batch = append(batch, result)
		if len(batch) >= r.cfg.BatchSize {
			persistErr = flush()
		}
	}
	if persistErr == nil {
		persistErr = flush()
	}

	now := time.Now().UTC()
	run.EndTime = &now

	switch {
	case ctx.Err() != nil:
		run.Status = domain.RunStatusCancelled
		state.setStatus(domain.RunStatusCancelled)
		r.logger.Info("benchmark cancelled", "run_id", run.ID, "processed", run.ProcessedSamples)
	case persistErr != nil:
		run.Status = domain.RunStatusFailed
		run.ErrorMessage = persistErr.Error()
		state.setStatus(domain.RunStatusFailed)
		r.logger.Error("benchmark failed", "run_id", run.ID, "error", persistErr)
	default:
		metrics := CalculateMetrics(run.ID, all)
		if err := r.store.SaveMetrics(persistCtx, metrics); err != nil {
			run.Status = domain.RunStatusFailed
			run.ErrorMessage = err.Error()
			state.setStatus(domain.RunStatusFailed)
			r.logger.Error("benchmark failed", "run_id", run.ID, "error", err)
			break
		}
		run.Status = domain.RunStatusCompleted
		state.setStatus(domain.RunStatusCompleted)
		r.logger.Info("benchmark completed",
			"run_id", run.ID, "samples", len(all), "f1_score", metrics.F1Score)
	}

	if err := r.store.UpdateRun(persistCtx, run); err != nil {
		r.logger.Error("run update failed", "run_id", run.ID, "error", err)
	}
}

// processSample replays one sample. A pipeline failure or panic records
// an ERROR result rather than aborting the run.
func (r *Runner) processSample(ctx context.Context, runID string, sample domain.DatasetSample) (result *domain.BenchmarkResult) {
	start := time.Now()

	result = &domain.BenchmarkResult{
		RunID:         runID,
		SampleIndex:   sample.Index,
		InputText:     sample.Prompt,
		ExpectedLabel: sample.ExpectedLabel,
		CreatedAt:     time.Now().UTC(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			result.PredictedLabel = domain.PredictedError
			result.ResultType = domain.ResultError
			result.AnalysisDetails = map[string]any{"error": fmt.Sprintf("panic: %v", rec)}
			r.logger.Error("benchmark sample panicked",
				"run_id", runID, "sample_index", sample.Index, "panic", rec)
		}
	}()

	reqCtx := domain.RequestContext{
		RequestID:   fmt.Sprintf("benchmark-%s-%d", runID, sample.Index),
		Timestamp:   time.Now().UTC(),
		UserID:      "benchmark-user-" + runID,
		SessionID:   "benchmark-session-" + runID,
		TenantID:    benchmarkTenant,
		Device:      "benchmark",
		Temperature: domain.DefaultTemperature,
		MaxTokens:   domain.DefaultMaxTokens,
		TurnCount:   domain.DefaultTurnCount,
		Custom:      map[string]any{"benchmark_run": runID, "sample_index": sample.Index},
	}

	analysis, err := r.analyzer.Analyze(ctx, sample.Prompt, domain.DirectionIngress, reqCtx)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	result.LatencyMs = latencyMs

	blocked, details, procErr := interpretAnalysis(analysis, err, latencyMs)
	if procErr != nil {
		result.PredictedLabel = domain.PredictedError
		result.ResultType = domain.ResultError
		result.AnalysisDetails = map[string]any{"error": procErr.Error(), "latency_ms": latencyMs}
		r.logger.Warn("benchmark sample failed",
			"run_id", runID, "sample_index", sample.Index, "error", procErr)
		return result
	}

	result.PredictedLabel = domain.PredictedAllowed
	if blocked {
		result.PredictedLabel = domain.PredictedBlocked
	}
	result.ResultType = domain.ClassifyResult(sample.ExpectedLabel, blocked)
	result.IsCorrect = result.ResultType == domain.ResultTruePositive ||
		result.ResultType == domain.ResultTrueNegative
	result.AnalysisDetails = details
	return result
}

// interpretAnalysis folds the analyzer outcome into (blocked, details).
// A content block is a valid verdict, not an error.
func interpretAnalysis(analysis *domain.AnalysisResult, err error, latencyMs float64) (bool, map[string]any, error) {
	if blocked, ok := err.(*domain.ContentBlockedError); ok {
		return true, map[string]any{
			"blocked":    true,
			"reason":     blocked.Reason,
			"direction":  string(blocked.Direction),
			"ml_signals": signalDetails(blocked.Signals),
			"policy_decision": map[string]any{
				"blocked":      true,
				"reason":       blocked.Reason,
				"confidence":   blocked.Confidence,
				"matched_rule": blocked.MatchedRule,
			},
			"latency_ms": latencyMs,
		}, nil
	}
	if err != nil {
		return false, nil, err
	}

	return false, map[string]any{
		"blocked":    false,
		"reason":     analysis.Decision.Reason,
		"ml_signals": signalDetails(analysis.Signals),
		"policy_decision": map[string]any{
			"blocked":      analysis.Decision.Blocked,
			"reason":       analysis.Decision.Reason,
			"confidence":   analysis.Decision.Confidence,
			"matched_rule": analysis.Decision.MatchedRule,
		},
		"latency_ms": latencyMs,
	}, nil
}

func signalDetails(signals *domain.MLSignals) map[string]any {
	if signals == nil {
		return nil
	}
	return map[string]any{
		"prompt_injection_score": signals.PromptInjection.Score,
		"toxicity_score":         signals.Toxicity.Score,
		"pii_score":              signals.PII.Score,
		"heuristic_blocked":      signals.Heuristic.Blocked,
	}
}

// Cancel stops an in-flight run.
func (r *Runner) Cancel(runID string) error {
	state, ok := r.active.Load(runID)
	if !ok {
		return &domain.NotFoundError{Kind: "active run", ID: runID}
	}
	state.cancel()
	return nil
}

// Progress reports live progress for an in-flight run.
func (r *Runner) Progress(runID string) (*ports.RunProgress, bool) {
	state, ok := r.active.Load(runID)
	if !ok {
		return nil, false
	}

	processed := int(state.processed.Load())
	elapsed := time.Since(state.startTime).Seconds()

	progress := &ports.RunProgress{
		RunID:            runID,
		Status:           state.getStatus(),
		TotalSamples:     state.total,
		ProcessedSamples: processed,
		ElapsedSeconds:   elapsed,
	}
	if state.total > 0 {
		progress.ProgressPercent = float64(processed) / float64(state.total) * 100
	}
	if processed > 0 {
		perSample := elapsed / float64(processed)
		progress.EstimatedRemaining = perSample * float64(state.total-processed)
	}
	return progress, true
}
