package ports

import (
	"time"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// LatencyAverages is the mean per-stage latency over the event window.
type LatencyAverages struct {
	Preprocessing float64 `json:"preprocessing"`
	ML            float64 `json:"ml"`
	Policy        float64 `json:"policy"`
	Backend       float64 `json:"backend"`
	Total         float64 `json:"total"`
}

// DashboardStats is the headline aggregate over the rolling event window.
type DashboardStats struct {
	TotalPrompts    int             `json:"total_prompts"`
	BenignCount     int             `json:"benign_count"`
	SuspiciousCount int             `json:"suspicious_count"`
	MaliciousCount  int             `json:"malicious_count"`
	BenignPct       float64         `json:"benign_pct"`
	SuspiciousPct   float64         `json:"suspicious_pct"`
	MaliciousPct    float64         `json:"malicious_pct"`
	BlockedCount    int             `json:"blocked_count"`
	AllowedCount    int             `json:"allowed_count"`
	BlockAllowRatio string          `json:"block_allow_ratio"`
	PromptsPerMin   float64         `json:"prompts_per_minute"`
	RiskTrend       string          `json:"risk_trend"`
	AvgLatencyMs    LatencyAverages `json:"avg_latency_ms"`
	RiskBreakdown   map[string]int  `json:"risk_breakdown"`
}

// SessionAnalytics summarises one session's activity inside the window.
type SessionAnalytics struct {
	SessionID       string    `json:"session_id"`
	TotalRequests   int       `json:"total_requests"`
	MaliciousCount  int       `json:"malicious_count"`
	SuspiciousCount int       `json:"suspicious_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

// TemporalBreakdown groups risk categories into per-minute buckets.
type TemporalBreakdown struct {
	Timestamps []string         `json:"timestamps"`
	Categories map[string][]int `json:"categories"`
}

// MetricsManager maintains the rolling window of events and derives the
// dashboard aggregates from it.
type MetricsManager interface {
	Record(event domain.Event)
	Stats() DashboardStats
	Recent(limit int) []domain.Event
	SessionAnalytics(topN int) []SessionAnalytics
	TemporalBreakdown(minutes int) TemporalBreakdown
	RiskBreakdown() map[string]int
	Reset()
}
