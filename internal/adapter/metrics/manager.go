package metrics

import (
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

var riskCategories = []string{
	domain.CategoryInjection,
	domain.CategoryPII,
	domain.CategoryToxicity,
	domain.CategoryLeak,
	domain.CategoryHarmful,
	domain.CategoryClean,
}

type sessionInfo struct {
	sessionID       string
	totalRequests   int
	maliciousCount  int
	suspiciousCount int
	firstSeen       time.Time
	lastSeen        time.Time
}

// Manager keeps the last N events in a ring buffer and computes the
// dashboard aggregates over that window. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	events   []domain.Event
	head     int
	count    int
	sessions map[string]*sessionInfo
	logger   *slog.Logger
}

func NewManager(maxEvents int, logger *slog.Logger) *Manager {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	logger.Info("metrics manager initialized", "max_events", maxEvents)
	return &Manager{
		events:   make([]domain.Event, maxEvents),
		sessions: make(map[string]*sessionInfo),
		logger:   logger,
	}
}

// Publish satisfies the event sink contract; the gateway feeds events
// through it.
func (m *Manager) Publish(event domain.Event) {
	m.Record(event)
}

// Record appends an event, evicting the oldest when the window is full.
func (m *Manager) Record(event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.head] = event
	m.head = (m.head + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}

	if event.SessionID != "" {
		s, ok := m.sessions[event.SessionID]
		if !ok {
			s = &sessionInfo{sessionID: event.SessionID, firstSeen: time.Now()}
			m.sessions[event.SessionID] = s
		}
		s.totalRequests++
		s.lastSeen = time.Now()
		switch event.RiskLevel {
		case domain.RiskMalicious:
			s.maliciousCount++
		case domain.RiskSuspicious:
			s.suspiciousCount++
		}
	}
}

// window returns the stored events oldest-first.
func (m *Manager) window() []domain.Event {
	out := make([]domain.Event, 0, m.count)
	start := m.head - m.count
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		out = append(out, m.events[(start+i)%len(m.events)])
	}
	return out
}

// Stats computes the headline KPIs over the window.
func (m *Manager) Stats() ports.DashboardStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return emptyStats()
	}

	events := m.window()
	total := len(events)

	stats := ports.DashboardStats{TotalPrompts: total}
	var latency ports.LatencyAverages
	fiveMinAgo := time.Now().UTC().Add(-5 * time.Minute)
	recentCount := 0

	for _, e := range events {
		switch e.RiskLevel {
		case domain.RiskBenign:
			stats.BenignCount++
		case domain.RiskSuspicious:
			stats.SuspiciousCount++
		case domain.RiskMalicious:
			stats.MaliciousCount++
		}
		if e.Action == domain.ActionBlock {
			stats.BlockedCount++
		}
		latency.Preprocessing += e.Latency.Preprocessing
		latency.ML += e.Latency.ML
		latency.Policy += e.Latency.Policy
		latency.Backend += e.Latency.Backend
		latency.Total += e.Latency.Total
		if e.Timestamp.After(fiveMinAgo) {
			recentCount++
		}
	}
	stats.AllowedCount = total - stats.BlockedCount

	n := float64(total)
	stats.BenignPct = round1(float64(stats.BenignCount) / n * 100)
	stats.SuspiciousPct = round1(float64(stats.SuspiciousCount) / n * 100)
	stats.MaliciousPct = round1(float64(stats.MaliciousCount) / n * 100)

	if stats.BlockedCount > 0 {
		stats.BlockAllowRatio = ratio(stats.AllowedCount / stats.BlockedCount)
	} else {
		stats.BlockAllowRatio = ratio(stats.AllowedCount)
	}

	if recentCount > 0 {
		stats.PromptsPerMin = round2(float64(recentCount) / 5)
	}

	stats.AvgLatencyMs = ports.LatencyAverages{
		Preprocessing: latency.Preprocessing / n,
		ML:            latency.ML / n,
		Policy:        latency.Policy / n,
		Backend:       latency.Backend / n,
		Total:         latency.Total / n,
	}

	stats.RiskTrend = riskTrend(events)
	stats.RiskBreakdown = breakdown(events)
	return stats
}

// riskTrend compares the last tenth of the window against the rest.
func riskTrend(events []domain.Event) string {
	total := len(events)
	split := total / 10
	if split < 1 {
		split = 1
	}

	recent := events[total-split:]
	previous := events[:total-split]

	recentAvg := avgRisk(recent)
	previousAvg := avgRisk(previous)

	switch {
	case recentAvg > previousAvg:
		return "increasing"
	case recentAvg < previousAvg:
		return "decreasing"
	default:
		return "stable"
	}
}

func avgRisk(events []domain.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += riskScore(e.RiskLevel)
	}
	return sum / float64(len(events))
}

func riskScore(level string) float64 {
	switch level {
	case domain.RiskSuspicious:
		return 0.5
	case domain.RiskMalicious:
		return 1.0
	default:
		return 0
	}
}

// Recent returns the newest events, most recent first.
func (m *Manager) Recent(limit int) []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.window()
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]domain.Event, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}

// SessionAnalytics returns the sessions with the most flagged activity.
func (m *Manager) SessionAnalytics(topN int) []ports.SessionAnalytics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*sessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].maliciousCount+sessions[i].suspiciousCount >
			sessions[j].maliciousCount+sessions[j].suspiciousCount
	})
	if topN > 0 && len(sessions) > topN {
		sessions = sessions[:topN]
	}

	out := make([]ports.SessionAnalytics, len(sessions))
	for i, s := range sessions {
		out[i] = ports.SessionAnalytics{
			SessionID:       s.sessionID,
			TotalRequests:   s.totalRequests,
			MaliciousCount:  s.maliciousCount,
			SuspiciousCount: s.suspiciousCount,
			FirstSeen:       s.firstSeen,
			LastSeen:        s.lastSeen,
		}
	}
	return out
}

// TemporalBreakdown groups the last N minutes of events into per-minute
// category counts.
func (m *Manager) TemporalBreakdown(minutes int) ports.TemporalBreakdown {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if minutes <= 0 {
		minutes = 10
	}
	cutoff := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)

	buckets := make(map[string]map[string]int)
	for _, e := range m.window() {
		if !e.Timestamp.After(cutoff) {
			continue
		}
		key := e.Timestamp.Format("2006-01-02 15:04")
		bucket, ok := buckets[key]
		if !ok {
			bucket = make(map[string]int, len(riskCategories))
			buckets[key] = bucket
		}
		bucket[e.RiskCategory]++
	}

	timestamps := make([]string, 0, len(buckets))
	for ts := range buckets {
		timestamps = append(timestamps, ts)
	}
	sort.Strings(timestamps)

	categories := make(map[string][]int, len(riskCategories))
	for _, cat := range riskCategories {
		counts := make([]int, len(timestamps))
		for i, ts := range timestamps {
			counts[i] = buckets[ts][cat]
		}
		categories[cat] = counts
	}

	return ports.TemporalBreakdown{Timestamps: timestamps, Categories: categories}
}

// RiskBreakdown counts events per risk category over the whole window.
func (m *Manager) RiskBreakdown() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return breakdown(m.window())
}

// Reset clears the window and session analytics.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = 0
	m.count = 0
	m.sessions = make(map[string]*sessionInfo)
	m.logger.Info("metrics window reset")
}

func breakdown(events []domain.Event) map[string]int {
	out := make(map[string]int, len(riskCategories))
	for _, cat := range riskCategories {
		out[cat] = 0
	}
	for _, e := range events {
		if _, ok := out[e.RiskCategory]; ok {
			out[e.RiskCategory]++
		}
	}
	return out
}

func emptyStats() ports.DashboardStats {
	return ports.DashboardStats{
		BlockAllowRatio: "1:0",
		RiskTrend:       "stable",
		RiskBreakdown:   breakdown(nil),
	}
}

func ratio(allowedPerBlock int) string {
	return "1:" + strconv.Itoa(allowedPerBlock)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
