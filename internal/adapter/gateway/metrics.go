package gateway

import (
	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Per-detector block thresholds surfaced in the response so the dashboard
// can render score bars against them.
const (
	piiThreshold       = 0.8
	toxicityThreshold  = 0.7
	injectionThreshold = 0.8
	heuristicThreshold = 1.0
)

func detectorStatus(score, threshold float64) string {
	switch {
	case score >= threshold:
		return "block"
	case score >= threshold*0.7:
		return "warn"
	default:
		return "pass"
	}
}

func detectorMetrics(signals *domain.MLSignals) []ports.DetectorMetrics {
	if signals == nil {
		return nil
	}
	return []ports.DetectorMetrics{
		{
			Name:      "pii",
			Score:     signals.PII.Score,
			LatencyMs: signals.PII.LatencyMs,
			Threshold: piiThreshold,
			Status:    detectorStatus(signals.PII.Score, piiThreshold),
		},
		{
			Name:      "toxicity",
			Score:     signals.Toxicity.Score,
			LatencyMs: signals.Toxicity.LatencyMs,
			Threshold: toxicityThreshold,
			Status:    detectorStatus(signals.Toxicity.Score, toxicityThreshold),
		},
		{
			Name:      "prompt_injection",
			Score:     signals.PromptInjection.Score,
			LatencyMs: signals.PromptInjection.LatencyMs,
			Threshold: injectionThreshold,
			Status:    detectorStatus(signals.PromptInjection.Score, injectionThreshold),
		},
		{
			Name:      "heuristic",
			Score:     signals.Heuristic.Score,
			LatencyMs: signals.Heuristic.LatencyMs,
			Threshold: heuristicThreshold,
			Status:    detectorStatus(signals.Heuristic.Score, heuristicThreshold),
		},
	}
}

func preprocessingMetrics(pre *domain.PreprocessedText) *ports.PreprocessingMetrics {
	if pre == nil {
		return nil
	}
	return &ports.PreprocessingMetrics{
		OriginalLength:   len(pre.Original),
		NormalizedLength: len(pre.Normalized),
		WordCount:        pre.Features.WordCount,
		CharCount:        len(pre.Original),
	}
}

func policyMetrics(decision *domain.PolicyDecision, signals *domain.MLSignals) *ports.PolicyMetrics {
	if decision == nil {
		return nil
	}
	return &ports.PolicyMetrics{
		MatchedRule: decision.MatchedRule,
		Confidence:  decision.Confidence,
		RiskLevel:   domain.RiskGrade(signals),
	}
}

func latencyBreakdown(stages domain.StageLatencies) map[string]float64 {
	return map[string]float64{
		"preprocessing": stages.PreprocessingMs,
		"ml_analysis":   stages.MLMs,
		"policy_eval":   stages.PolicyMs,
		"backend":       stages.BackendMs,
	}
}
