package metrics

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

func newTestManager(maxEvents int) *Manager {
	return NewManager(maxEvents, slog.New(slog.DiscardHandler))
}

func testEvent(id, risk, category, action string) domain.Event {
	return domain.Event{
		ID:           id,
		Timestamp:    time.Now().UTC(),
		RiskLevel:    risk,
		RiskCategory: category,
		Action:       action,
	}
}

func TestStatsEmpty(t *testing.T) {
	m := newTestManager(10)

	stats := m.Stats()
	assert.Zero(t, stats.TotalPrompts)
	assert.Equal(t, "1:0", stats.BlockAllowRatio)
	assert.Equal(t, "stable", stats.RiskTrend)
	assert.Equal(t, 0, stats.RiskBreakdown[domain.CategoryClean])
}

func TestStatsCountsAndPercentages(t *testing.T) {
	m := newTestManager(10)

	m.Record(testEvent("1", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
	m.Record(testEvent("2", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
	m.Record(testEvent("3", domain.RiskSuspicious, domain.CategoryPII, domain.ActionAllow))
	m.Record(testEvent("4", domain.RiskMalicious, domain.CategoryInjection, domain.ActionBlock))

	stats := m.Stats()
	assert.Equal(t, 4, stats.TotalPrompts)
	assert.Equal(t, 2, stats.BenignCount)
	assert.Equal(t, 1, stats.SuspiciousCount)
	assert.Equal(t, 1, stats.MaliciousCount)
	assert.Equal(t, 1, stats.BlockedCount)
	assert.Equal(t, 3, stats.AllowedCount)
	assert.Equal(t, 50.0, stats.BenignPct)
	assert.Equal(t, 25.0, stats.SuspiciousPct)
	assert.Equal(t, 25.0, stats.MaliciousPct)
	assert.Equal(t, "1:3", stats.BlockAllowRatio)
	assert.Equal(t, 2, stats.RiskBreakdown[domain.CategoryClean])
	assert.Equal(t, 1, stats.RiskBreakdown[domain.CategoryInjection])
}

func TestStatsBlockAllowRatioWithoutBlocks(t *testing.T) {
	m := newTestManager(10)
	m.Record(testEvent("1", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
	m.Record(testEvent("2", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))

	assert.Equal(t, "1:2", m.Stats().BlockAllowRatio)
}

func TestStatsLatencyAverages(t *testing.T) {
	m := newTestManager(10)

	e1 := testEvent("1", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow)
	e1.Latency = domain.EventLatency{Preprocessing: 1, ML: 10, Policy: 2, Backend: 100, Total: 113}
	e2 := testEvent("2", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow)
	e2.Latency = domain.EventLatency{Preprocessing: 3, ML: 30, Policy: 4, Backend: 200, Total: 237}
	m.Record(e1)
	m.Record(e2)

	stats := m.Stats()
	assert.Equal(t, 2.0, stats.AvgLatencyMs.Preprocessing)
	assert.Equal(t, 20.0, stats.AvgLatencyMs.ML)
	assert.Equal(t, 3.0, stats.AvgLatencyMs.Policy)
	assert.Equal(t, 150.0, stats.AvgLatencyMs.Backend)
	assert.Equal(t, 175.0, stats.AvgLatencyMs.Total)
}

func TestWindowEviction(t *testing.T) {
	m := newTestManager(3)

	for i := 0; i < 5; i++ {
		m.Record(testEvent(fmt.Sprintf("req-%d", i), domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
	}

	assert.Equal(t, 3, m.Stats().TotalPrompts)

	recent := m.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "req-4", recent[0].ID)
	assert.Equal(t, "req-2", recent[2].ID)
}

func TestRecentNewestFirstWithLimit(t *testing.T) {
	m := newTestManager(10)
	for i := 0; i < 4; i++ {
		m.Record(testEvent(fmt.Sprintf("req-%d", i), domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
	}

	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "req-3", recent[0].ID)
	assert.Equal(t, "req-2", recent[1].ID)
}

func TestRiskTrend(t *testing.T) {
	t.Run("increasing", func(t *testing.T) {
		m := newTestManager(20)
		for i := 0; i < 9; i++ {
			m.Record(testEvent(fmt.Sprintf("b-%d", i), domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
		}
		m.Record(testEvent("m", domain.RiskMalicious, domain.CategoryInjection, domain.ActionBlock))
		assert.Equal(t, "increasing", m.Stats().RiskTrend)
	})

	t.Run("stable", func(t *testing.T) {
		m := newTestManager(20)
		for i := 0; i < 10; i++ {
			m.Record(testEvent(fmt.Sprintf("b-%d", i), domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
		}
		assert.Equal(t, "stable", m.Stats().RiskTrend)
	})
}

func TestSessionAnalyticsOrdering(t *testing.T) {
	m := newTestManager(50)

	record := func(session, risk string, n int) {
		for i := 0; i < n; i++ {
			e := testEvent(fmt.Sprintf("%s-%d", session, i), risk, domain.CategoryClean, domain.ActionAllow)
			e.SessionID = session
			m.Record(e)
		}
	}
	record("quiet", domain.RiskBenign, 5)
	record("noisy", domain.RiskMalicious, 3)
	record("mild", domain.RiskSuspicious, 1)

	analytics := m.SessionAnalytics(2)
	require.Len(t, analytics, 2)
	assert.Equal(t, "noisy", analytics[0].SessionID)
	assert.Equal(t, 3, analytics[0].MaliciousCount)
	assert.Equal(t, "mild", analytics[1].SessionID)
	assert.Equal(t, 1, analytics[1].SuspiciousCount)
}

func TestSessionAnalyticsIgnoresEmptySessionID(t *testing.T) {
	m := newTestManager(10)
	m.Record(testEvent("1", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))

	assert.Empty(t, m.SessionAnalytics(10))
}

func TestTemporalBreakdown(t *testing.T) {
	m := newTestManager(10)
	m.Record(testEvent("1", domain.RiskMalicious, domain.CategoryInjection, domain.ActionBlock))
	m.Record(testEvent("2", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))

	tb := m.TemporalBreakdown(10)
	require.Len(t, tb.Timestamps, 1)
	assert.Equal(t, []int{1}, tb.Categories[domain.CategoryInjection])
	assert.Equal(t, []int{1}, tb.Categories[domain.CategoryClean])
	assert.Equal(t, []int{0}, tb.Categories[domain.CategoryPII])
}

func TestTemporalBreakdownExcludesOldEvents(t *testing.T) {
	m := newTestManager(10)

	old := testEvent("old", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow)
	old.Timestamp = time.Now().UTC().Add(-time.Hour)
	m.Record(old)

	tb := m.TemporalBreakdown(10)
	assert.Empty(t, tb.Timestamps)
}

func TestReset(t *testing.T) {
	m := newTestManager(10)

	e := testEvent("1", domain.RiskMalicious, domain.CategoryInjection, domain.ActionBlock)
	e.SessionID = "s1"
	m.Record(e)
	require.Equal(t, 1, m.Stats().TotalPrompts)

	m.Reset()
	assert.Zero(t, m.Stats().TotalPrompts)
	assert.Empty(t, m.SessionAnalytics(10))
}

func TestPublishDelegatesToRecord(t *testing.T) {
	m := newTestManager(10)
	m.Publish(testEvent("1", domain.RiskBenign, domain.CategoryClean, domain.ActionAllow))
	assert.Equal(t, 1, m.Stats().TotalPrompts)
}
