package orchestrator

import (
	"context"
	"log/slog"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// LogAlerter writes alerts to the structured log. Deployments with a real
// paging channel replace this implementation.
type LogAlerter struct {
	logger *slog.Logger
}

func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(_ context.Context, alert domain.Alert) {
	a.logger.Warn("security alert",
		"severity", alert.Severity,
		"request_id", alert.RequestID,
		"reason", alert.Reason,
		"confidence", alert.Confidence,
		"tenant_id", alert.TenantID,
	)
}

// NullAlerter swallows alerts; useful in tests and benchmarks.
type NullAlerter struct{}

func (NullAlerter) Alert(context.Context, domain.Alert) {}
