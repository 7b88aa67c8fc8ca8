package domain

// Internal risk grades before mapping to the standardized dashboard levels.
const (
	riskGradeLow      = "low"
	riskGradeMedium   = "medium"
	riskGradeHigh     = "high"
	riskGradeCritical = "critical"
)

// RiskGrade computes the raw risk grade from the detector scores.
func RiskGrade(signals *MLSignals) string {
	max := signals.MaxScore()
	switch {
	case max >= 0.8 || signals.Heuristic.Blocked:
		return riskGradeCritical
	case max >= 0.6:
		return riskGradeHigh
	case max >= 0.3:
		return riskGradeMedium
	default:
		return riskGradeLow
	}
}

// StandardRiskLevel maps the raw grade onto the three dashboard levels:
// low is benign, medium and high are suspicious, critical is malicious.
func StandardRiskLevel(signals *MLSignals) string {
	switch RiskGrade(signals) {
	case riskGradeCritical:
		return RiskMalicious
	case riskGradeHigh, riskGradeMedium:
		return RiskSuspicious
	default:
		return RiskBenign
	}
}

// RiskCategoryOf determines the dominant risk category. A heuristic block
// always wins and reads as an exfiltration attempt.
func RiskCategoryOf(signals *MLSignals) string {
	if signals.Heuristic.Blocked {
		return CategoryLeak
	}

	category := CategoryInjection
	best := signals.PromptInjection.Score
	if signals.PII.Score > best {
		category, best = CategoryPII, signals.PII.Score
	}
	if signals.Toxicity.Score > best {
		category, best = CategoryToxicity, signals.Toxicity.Score
	}

	if best > 0.3 {
		return category
	}
	return CategoryClean
}
