package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// metricSpec names a compared metric and whether growth is an improvement.
type metricSpec struct {
	name         string
	value        func(*domain.BenchmarkMetrics) float64
	higherBetter bool
}

var comparedMetrics = []metricSpec{
	{"precision", func(m *domain.BenchmarkMetrics) float64 { return m.Precision }, true},
	{"recall", func(m *domain.BenchmarkMetrics) float64 { return m.Recall }, true},
	{"f1_score", func(m *domain.BenchmarkMetrics) float64 { return m.F1Score }, true},
	{"accuracy", func(m *domain.BenchmarkMetrics) float64 { return m.Accuracy }, true},
	{"avg_latency_ms", func(m *domain.BenchmarkMetrics) float64 { return m.AvgLatencyMs }, false},
	{"p50_latency_ms", func(m *domain.BenchmarkMetrics) float64 { return m.P50LatencyMs }, false},
	{"p95_latency_ms", func(m *domain.BenchmarkMetrics) float64 { return m.P95LatencyMs }, false},
	{"p99_latency_ms", func(m *domain.BenchmarkMetrics) float64 { return m.P99LatencyMs }, false},
}

// Comparator measures candidate runs against a baseline run over the same
// dataset, surfacing metric deltas and per-sample verdict transitions.
type Comparator struct {
	store  ports.BenchmarkStore
	logger *slog.Logger
}

func NewComparator(store ports.BenchmarkStore, logger *slog.Logger) *Comparator {
	return &Comparator{store: store, logger: logger}
}

func (c *Comparator) Compare(ctx context.Context, baselineID string, candidateIDs []string) (*domain.ComparisonReport, error) {
	if len(candidateIDs) == 0 {
		return nil, &domain.ValidationError{Field: "candidate_run_ids", Reason: "at least one candidate required"}
	}

	baseline, err := c.completedRun(ctx, baselineID)
	if err != nil {
		return nil, err
	}

	report := &domain.ComparisonReport{
		BaselineRunID: baselineID,
		DatasetName:   baseline.DatasetName,
		DatasetSplit:  baseline.DatasetSplit,
	}

	baselineMetrics, err := c.store.GetMetrics(ctx, baselineID)
	if err != nil {
		return nil, err
	}
	baselineResults, err := c.store.ResultsBySampleIndex(ctx, baselineID)
	if err != nil {
		return nil, err
	}

	for _, candidateID := range candidateIDs {
		if candidateID == baselineID {
			return nil, &domain.ValidationError{
				Field:  "candidate_run_ids",
				Reason: fmt.Sprintf("run %s cannot be compared against itself", baselineID),
			}
		}
		candidate, err := c.completedRun(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		if candidate.DatasetName != baseline.DatasetName || candidate.DatasetSplit != baseline.DatasetSplit {
			return nil, &domain.ValidationError{
				Field: "candidate_run_ids",
				Reason: fmt.Sprintf("run %s uses dataset %s/%s, baseline uses %s/%s",
					candidateID, candidate.DatasetName, candidate.DatasetSplit,
					baseline.DatasetName, baseline.DatasetSplit),
			}
		}

		candidateMetrics, err := c.store.GetMetrics(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		candidateResults, err := c.store.ResultsBySampleIndex(ctx, candidateID)
		if err != nil {
			return nil, err
		}

		comparison := domain.CandidateComparison{
			RunID:   candidateID,
			Metrics: metricDeltas(baselineMetrics, candidateMetrics),
		}
		comparison.SampleChanges, comparison.Summary = sampleTransitions(baselineResults, candidateResults)
		report.Candidates = append(report.Candidates, comparison)
	}

	c.logger.Info("comparison built",
		"baseline", baselineID, "candidates", len(report.Candidates), "dataset", report.DatasetName)
	return report, nil
}

func (c *Comparator) completedRun(ctx context.Context, runID string) (*domain.BenchmarkRun, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != domain.RunStatusCompleted {
		return nil, &domain.ValidationError{
			Field:  "run_id",
			Reason: fmt.Sprintf("run %s is %s, only completed runs can be compared", runID, run.Status),
		}
	}
	return run, nil
}

func metricDeltas(baseline, candidate *domain.BenchmarkMetrics) map[string]domain.MetricDelta {
	deltas := make(map[string]domain.MetricDelta, len(comparedMetrics))
	for _, spec := range comparedMetrics {
		b, c := spec.value(baseline), spec.value(candidate)
		delta := c - b

		var percent float64
		if b != 0 {
			percent = math.Round(delta/b*10000) / 100
		}

		polarity := domain.PolarityNeutral
		switch {
		case delta == 0:
		case (delta > 0) == spec.higherBetter:
			polarity = domain.PolarityPositive
		default:
			polarity = domain.PolarityNegative
		}

		deltas[spec.name] = domain.MetricDelta{
			Baseline:  b,
			Candidate: c,
			Delta:     math.Round(delta*10000) / 10000,
			Percent:   percent,
			Polarity:  polarity,
		}
	}
	return deltas
}

// sampleTransitions joins the two runs on sample index and classifies every
// verdict movement. Samples present in only one run are skipped, as are
// ERROR results on either side.
func sampleTransitions(baseline, candidate map[int]*domain.BenchmarkResult) ([]domain.SampleChange, domain.SampleChangeSummary) {
	var changes []domain.SampleChange
	var summary domain.SampleChangeSummary

	for index, base := range baseline {
		cand, ok := candidate[index]
		if !ok {
			continue
		}
		transition := classifyTransition(base.ResultType, cand.ResultType)
		if transition == "" {
			continue
		}

		changes = append(changes, domain.SampleChange{
			SampleIndex: index,
			InputText:   base.InputText,
			Transition:  transition,
			From:        base.ResultType,
			To:          cand.ResultType,
		})

		switch transition {
		case domain.TransitionCriticalRegression:
			summary.CriticalRegressions++
		case domain.TransitionNewFalsePositive:
			summary.NewFalsePositives++
		case domain.TransitionNewDetection:
			summary.NewDetections++
		case domain.TransitionFixedFalsePositive:
			summary.FixedFalsePositives++
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].SampleIndex < changes[j].SampleIndex })

	summary.NetChange = (summary.NewDetections + summary.FixedFalsePositives) -
		(summary.CriticalRegressions + summary.NewFalsePositives)
	return changes, summary
}

func classifyTransition(from, to string) string {
	switch {
	case from == domain.ResultTruePositive && to == domain.ResultFalseNegative:
		return domain.TransitionCriticalRegression
	case from == domain.ResultTrueNegative && to == domain.ResultFalsePositive:
		return domain.TransitionNewFalsePositive
	case from == domain.ResultFalseNegative && to == domain.ResultTruePositive:
		return domain.TransitionNewDetection
	case from == domain.ResultFalsePositive && to == domain.ResultTrueNegative:
		return domain.TransitionFixedFalsePositive
	default:
		return ""
	}
}
