package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/palisade-sh/palisade/internal/config"
	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Registry caches detector instances per (kind, model) so every request
// sharing a detector configuration reuses the same instance, including its
// HTTP connection pools.
type Registry struct {
	embedder  ports.EmbeddingClient
	inference *inferenceClient
	analyzer  *analyzerClient

	mu    sync.RWMutex
	cache map[string]ports.Detector

	warmupPrompt string
	defaults     map[ports.DetectorKind]string
	logger       *slog.Logger
}

func NewRegistry(cfg config.DetectorsConfig, embedder ports.EmbeddingClient, logger *slog.Logger) *Registry {
	return &Registry{
		embedder:     embedder,
		inference:    newInferenceClient(cfg.Inference),
		analyzer:     newAnalyzerClient(cfg.Analyzer),
		cache:        make(map[string]ports.Detector),
		warmupPrompt: cfg.WarmupPrompt,
		defaults: map[ports.DetectorKind]string{
			ports.DetectorPromptInjection: cfg.PromptInjection,
			ports.DetectorPII:             cfg.PII,
			ports.DetectorToxicity:        cfg.Toxicity,
		},
		logger: logger,
	}
}

func cacheKey(kind ports.DetectorKind, model string) string {
	return string(kind) + ":" + model
}

// Get returns the cached detector for (kind, model), constructing it on
// first use. An empty model resolves to the configured default.
func (r *Registry) Get(kind ports.DetectorKind, model string) (ports.Detector, error) {
	if model == "" {
		model = r.defaults[kind]
	}
	key := cacheKey(kind, model)

	r.mu.RLock()
	d, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cache[key]; ok {
		return d, nil
	}

	d, err := r.build(kind, model)
	if err != nil {
		return nil, err
	}
	r.cache[key] = d
	r.logger.Debug("detector instantiated", "kind", kind, "model", model)
	return d, nil
}

func (r *Registry) build(kind ports.DetectorKind, model string) (ports.Detector, error) {
	switch kind {
	case ports.DetectorPromptInjection:
		switch model {
		case ModelCustomONNX:
			return &customONNXDetector{embedder: r.embedder, inference: r.inference, logger: r.logger}, nil
		case ModelDeberta:
			return &debertaDetector{inference: r.inference, logger: r.logger}, nil
		case ModelLlamaGuard86:
			return &llamaGuardDetector{inference: r.inference, model: model, hfModel: hfLlamaGuard86, logger: r.logger}, nil
		case ModelLlamaGuard22:
			return &llamaGuardDetector{inference: r.inference, model: model, hfModel: hfLlamaGuard22, logger: r.logger}, nil
		}
	case ports.DetectorPII:
		switch model {
		case ModelPresidio:
			return &presidioDetector{analyzer: r.analyzer, logger: r.logger}, nil
		case ModelPIIONNX:
			return &onnxPIIDetector{}, nil
		case ModelPIIRegex:
			return &regexPIIDetector{}, nil
		case ModelPIIMock:
			return &mockPIIDetector{}, nil
		}
	case ports.DetectorToxicity:
		switch model {
		case ModelDetoxify, ModelUnbiased, ModelMultilingual:
			return &toxicityDetector{inference: r.inference, alias: model, hfModel: toxicityHFModel(model), logger: r.logger}, nil
		case ModelToxicityONNX:
			return &onnxToxicityDetector{}, nil
		}
	}
	return nil, fmt.Errorf("unknown detector %s/%s", kind, model)
}

// Defaults returns the configured default model per detector kind.
func (r *Registry) Defaults() map[string]string {
	out := make(map[string]string, len(r.defaults))
	for kind, model := range r.defaults {
		out[string(kind)] = model
	}
	return out
}

// Keys returns the sorted cache keys, for the models endpoint.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.cache))
	for k := range r.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of cached detectors.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Clear drops every cached detector. The next Get rebuilds from scratch.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]ports.Detector)
	r.logger.Info("detector cache cleared")
}

// Warmup instantiates the default detector set and runs the warmup prompt
// through each so model-side lazy loading happens before the first real
// request. Warmup failures are logged, not fatal.
func (r *Registry) Warmup(ctx context.Context) error {
	reqCtx := domain.RequestContext{}.Normalized()
	for kind, model := range r.defaults {
		d, err := r.Get(kind, model)
		if err != nil {
			return err
		}
		if _, err := d.Score(ctx, r.warmupPrompt, reqCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("detector warmup failed", "kind", kind, "model", model, "error", err)
		}
	}
	r.logger.Info("detector warmup complete", "cached", r.Size())
	return nil
}
