package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/spf13/afero"

	"github.com/palisade-sh/palisade/internal/adapter/analyzer"
	"github.com/palisade-sh/palisade/internal/adapter/benchmark"
	"github.com/palisade-sh/palisade/internal/adapter/detector"
	"github.com/palisade-sh/palisade/internal/adapter/gateway"
	"github.com/palisade-sh/palisade/internal/adapter/metrics"
	"github.com/palisade-sh/palisade/internal/adapter/mlfilter"
	"github.com/palisade-sh/palisade/internal/adapter/orchestrator"
	"github.com/palisade-sh/palisade/internal/adapter/policy"
	"github.com/palisade-sh/palisade/internal/adapter/preprocess"
	"github.com/palisade-sh/palisade/internal/adapter/storage"
	"github.com/palisade-sh/palisade/internal/adapter/ws"
	"github.com/palisade-sh/palisade/internal/config"
	"github.com/palisade-sh/palisade/internal/core/ports"
	"github.com/palisade-sh/palisade/internal/logger"
	"github.com/palisade-sh/palisade/internal/router"
)

// Application wires the firewall pipeline, the benchmark engine and the
// HTTP surface together.
type Application struct {
	configMu sync.RWMutex
	config   *config.Config
	server   *http.Server
	log      *slog.Logger
	styled   logger.StyledLogger
	registry *router.RouteRegistry

	detectors  *detector.Registry
	gateway    ports.Gateway
	metrics    ports.MetricsManager
	hub        *ws.Hub
	benchStore ports.BenchmarkStore
	datasets   ports.DatasetStore
	dsLoader   ports.DatasetLoader
	runner     ports.BenchmarkRunner
	comparator ports.ComparisonEngine

	hubCancel context.CancelFunc
	errCh     chan error
}

// New loads configuration and builds every subsystem. Nothing listens or
// dials until Start.
func New(log *slog.Logger, styled logger.StyledLogger) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	fs := afero.NewOsFs()

	embedder := detector.NewEmbeddingHTTPClient(cfg.Detectors.Embedding)
	detectors := detector.NewRegistry(cfg.Detectors, embedder, log)
	heuristic := detector.NewHeuristicScanner(fs, cfg.Detectors.RulesPath, log)

	featureStore := preprocess.NewFeatureStore()
	preprocessor := preprocess.NewService(featureStore)

	tenant := policy.NewStaticTenantProvider(cfg.TenantID)
	var policyEval ports.PolicyEvaluator
	switch cfg.Policy.Evaluator {
	case "external":
		policyEval = policy.NewExternalEvaluator(cfg.Policy, tenant, fs, log)
	default:
		policyEval = policy.NewTableEvaluator(policy.NewLoader(fs, cfg.Policy.RulesPath, log), tenant, log)
	}

	orch := orchestrator.New(
		orchestrator.NewMemoryIdempotencyStore(),
		orchestrator.NewLogAlerter(log),
		tenant,
		log,
	)

	factory := func(models map[string]string) (ports.Analyzer, error) {
		ml, err := mlfilter.New(detectors, heuristic, models, log)
		if err != nil {
			return nil, err
		}
		return analyzer.New(preprocessor, ml, policyEval, orch, log), nil
	}

	metricsMgr := metrics.NewManager(cfg.Metrics.MaxEvents, log)
	hub := ws.NewHub(log)

	backend := gateway.NewHTTPBackendClient(cfg.Backend)
	gw := gateway.New(factory, backend, cfg.Gateway.AnalyzeEgress, log, metricsMgr, hub)

	benchStore, err := storage.OpenSQLite(cfg.Benchmark.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open benchmark store: %w", err)
	}
	datasets, err := storage.NewDatasetStore(fs, cfg.Benchmark.DatasetDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise dataset store: %w", err)
	}
	loader := benchmark.NewLoader(fs, cfg.Benchmark.DatasetDir, log)

	defaultAnalyzer, err := factory(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build default analyzer: %w", err)
	}
	runner := benchmark.NewRunner(defaultAnalyzer, benchStore, loader, datasets, cfg.Benchmark, log)
	comparator := benchmark.NewComparator(benchStore, log)

	app := &Application{
		config:     cfg,
		log:        log,
		styled:     styled,
		registry:   router.NewRouteRegistry(styled),
		detectors:  detectors,
		gateway:    gw,
		metrics:    metricsMgr,
		hub:        hub,
		benchStore: benchStore,
		datasets:   datasets,
		dsLoader:   loader,
		runner:     runner,
		comparator: comparator,
		errCh:      make(chan error, 1),
	}

	app.server = &http.Server{
		Addr:         cfg.Server.GetAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return app, nil
}

func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.styled.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.hub.Run(hubCtx)

	// Warmup dials the model services; a cold start must not block the
	// listener.
	go func() {
		if err := a.detectors.Warmup(ctx); err != nil {
			a.styled.Warn("Detector warmup incomplete", "error", err)
		}
	}()

	a.startWebServer()

	a.styled.Info("Palisade started", "bind", a.server.Addr)
	return nil
}

func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.getConfig().Server.ShutdownTimeout)
	defer cancel()

	if a.hubCancel != nil {
		a.hubCancel()
	}

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	if err := a.benchStore.Close(); err != nil {
		a.styled.Error("Failed to close benchmark store", "error", err)
	}

	return nil
}

func (a *Application) getConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}
