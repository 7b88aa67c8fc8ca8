package benchmark

import (
	"math"
	"sort"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// CalculateMetrics aggregates per-sample results into the run's
// classification and latency metrics.
func CalculateMetrics(runID string, results []*domain.BenchmarkResult) *domain.BenchmarkMetrics {
	m := &domain.BenchmarkMetrics{RunID: runID}

	var latencies []float64
	for _, r := range results {
		switch r.ResultType {
		case domain.ResultTruePositive:
			m.TruePositives++
		case domain.ResultFalsePositive:
			m.FalsePositives++
		case domain.ResultTrueNegative:
			m.TrueNegatives++
		case domain.ResultFalseNegative:
			m.FalseNegatives++
		}
		if r.LatencyMs > 0 {
			latencies = append(latencies, r.LatencyMs)
		}
	}

	total := m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
	if m.TruePositives+m.FalsePositives > 0 {
		m.Precision = round4(float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives))
	}
	if m.TruePositives+m.FalseNegatives > 0 {
		m.Recall = round4(float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives))
	}
	if m.Precision+m.Recall > 0 {
		m.F1Score = round4(2 * m.Precision * m.Recall / (m.Precision + m.Recall))
	}
	if total > 0 {
		m.Accuracy = round4(float64(m.TruePositives+m.TrueNegatives) / float64(total))
	}

	if len(latencies) > 0 {
		var sum float64
		for _, v := range latencies {
			sum += v
		}
		m.AvgLatencyMs = sum / float64(len(latencies))

		sort.Float64s(latencies)
		m.P50LatencyMs = percentile(latencies, 50)
		m.P95LatencyMs = percentile(latencies, 95)
		m.P99LatencyMs = percentile(latencies, 99)
	}

	return m
}

// percentile computes the p-th percentile of sorted values with linear
// interpolation between the nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
