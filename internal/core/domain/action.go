package domain

import "time"

// Alert severities attached to blocked requests.
const (
	AlertSeverityLow    = "low"
	AlertSeverityMedium = "medium"
	AlertSeverityHigh   = "high"
)

// AlertSeverityFor grades a block by its policy confidence.
func AlertSeverityFor(confidence float64) string {
	switch {
	case confidence > 0.9:
		return AlertSeverityHigh
	case confidence > 0.8:
		return AlertSeverityMedium
	default:
		return AlertSeverityLow
	}
}

// Alert is the notification raised for a blocked request.
type Alert struct {
	RequestID  string    `json:"request_id"`
	Severity   string    `json:"severity"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	TenantID   string    `json:"tenant_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ActionOutcome is the orchestrator's record of what was done for one
// request. Replays of the same request ID return the stored outcome.
type ActionOutcome struct {
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Alerted   bool      `json:"alerted"`
	Replayed  bool      `json:"replayed"`
	Timestamp time.Time `json:"timestamp"`
}
