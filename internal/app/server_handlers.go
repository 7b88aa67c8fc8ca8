package app

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (a *Application) registerRoutes() {
	a.registry.RegisterWithMethod("/api/chat", a.chatHandler, "Firewalled chat endpoint", "POST")
	a.registry.Register("/health", a.healthHandler, "Health check endpoint")

	a.registry.Register("/api/stats", a.statsHandler, "Dashboard aggregates")
	a.registry.Register("/api/recent-requests", a.recentRequestsHandler, "Recent analyzed requests")
	a.registry.Register("/api/session-analytics", a.sessionAnalyticsHandler, "Per-session analytics")
	a.registry.Register("/api/temporal-breakdown", a.temporalBreakdownHandler, "Per-minute risk categories")
	a.registry.RegisterWithMethod("/api/stats/reset", a.statsResetHandler, "Reset the metrics window", "POST")

	a.registry.Register("/api/models/available", a.modelsAvailableHandler, "Available detector models")
	a.registry.Register("/api/models/cache", a.modelsCacheHandler, "Detector cache contents")
	a.registry.RegisterWithMethod("/api/models/cache/clear", a.modelsCacheClearHandler, "Evict all cached detectors", "POST")

	a.registry.RegisterWithMethod("/api/benchmarks/start", a.benchmarkStartHandler, "Start a benchmark run", "POST")
	a.registry.Register("/api/benchmarks/runs", a.benchmarkRunsHandler, "List benchmark runs")
	a.registry.Register("/api/benchmarks/status/{id}", a.benchmarkStatusHandler, "Benchmark run status")
	a.registry.RegisterWithMethod("/api/benchmarks/cancel/{id}", a.benchmarkCancelHandler, "Cancel a benchmark run", "POST")
	a.registry.Register("/api/benchmarks/results/{id}", a.benchmarkResultsHandler, "Per-sample benchmark results")
	a.registry.Register("/api/benchmarks/metrics/{id}", a.benchmarkMetricsHandler, "Aggregate benchmark metrics")
	a.registry.Register("/api/benchmarks/errors/{id}", a.benchmarkErrorsHandler, "Misclassified and errored samples")
	a.registry.Register("/api/benchmarks/compare", a.benchmarkCompareHandler, "Compare benchmark runs")
	a.registry.RegisterWithMethod("/api/benchmarks/datasets", a.datasetUploadHandler, "Upload a custom dataset", "POST")
	a.registry.Register("/api/benchmarks/datasets", a.datasetListHandler, "List custom datasets")
	a.registry.RegisterWithMethod("/api/benchmarks/datasets/{id}", a.datasetDeleteHandler, "Delete a custom dataset", "DELETE")

	a.registry.Register("/ws/dashboard", a.wsHandler, "Live event stream")
}

func (a *Application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("response encode failed", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (a *Application) writeError(w http.ResponseWriter, err error) {
	var (
		validation  *domain.ValidationError
		notFound    *domain.NotFoundError
		unavailable *domain.ServiceUnavailableError
		backend     *domain.BackendError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &unavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &backend):
		status = http.StatusBadGateway
	}

	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}
