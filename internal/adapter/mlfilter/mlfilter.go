package mlfilter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Service runs the three ML detectors and the heuristic scanner in
// parallel and collects their scores. Detector choice is fixed per
// Service; the gateway builds one per detector configuration.
type Service struct {
	promptInjection ports.Detector
	pii             ports.Detector
	toxicity        ports.Detector
	heuristic       ports.HeuristicScanner
	logger          *slog.Logger
}

// New resolves the configured detector models through the registry.
// Models not present in config fall back to the registry defaults.
func New(registry ports.DetectorRegistry, heuristic ports.HeuristicScanner, models map[string]string, logger *slog.Logger) (*Service, error) {
	pi, err := registry.Get(ports.DetectorPromptInjection, models["prompt_injection"])
	if err != nil {
		return nil, err
	}
	pii, err := registry.Get(ports.DetectorPII, models["pii"])
	if err != nil {
		return nil, err
	}
	tox, err := registry.Get(ports.DetectorToxicity, models["toxicity"])
	if err != nil {
		return nil, err
	}
	return &Service{
		promptInjection: pi,
		pii:             pii,
		toxicity:        tox,
		heuristic:       heuristic,
		logger:          logger,
	}, nil
}

// Analyze fans the text out to every detector. A detector that panics or
// errors contributes a neutral zero score rather than failing the pass.
func (s *Service) Analyze(ctx context.Context, pre *domain.PreprocessedText, reqCtx domain.RequestContext) (*domain.MLSignals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	signals := &domain.MLSignals{}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		signals.PII = s.runDetector(ctx, s.pii, pre.Normalized, reqCtx)
	}()
	go func() {
		defer wg.Done()
		signals.Toxicity = s.runDetector(ctx, s.toxicity, pre.Normalized, reqCtx)
	}()
	go func() {
		defer wg.Done()
		signals.PromptInjection = s.runDetector(ctx, s.promptInjection, pre.Original, reqCtx)
	}()
	go func() {
		defer wg.Done()
		signals.Heuristic = s.runHeuristic(ctx, pre.Original)
	}()

	wg.Wait()

	signals.TotalLatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
	return signals, nil
}

func (s *Service) runDetector(ctx context.Context, d ports.Detector, text string, reqCtx domain.RequestContext) (result domain.DetectorScore) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("detector panicked", "kind", d.Kind(), "model", d.Model(), "panic", r)
			result = domain.DetectorScore{}
		}
	}()

	start := time.Now()
	score, err := d.Score(ctx, text, reqCtx)
	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		s.logger.Warn("detector failed, scoring neutral",
			"kind", d.Kind(), "model", d.Model(), "error", err)
		return domain.DetectorScore{LatencyMs: latency}
	}
	return domain.DetectorScore{Score: score, LatencyMs: latency}
}

func (s *Service) runHeuristic(ctx context.Context, text string) (result domain.HeuristicResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("heuristic scanner panicked", "panic", r)
			result = domain.HeuristicResult{}
		}
	}()

	start := time.Now()
	res, err := s.heuristic.Scan(ctx, text)
	if err != nil {
		s.logger.Warn("heuristic scan failed", "error", err)
		return domain.HeuristicResult{
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
		}
	}
	return res
}
