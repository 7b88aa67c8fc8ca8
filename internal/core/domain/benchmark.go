package domain

import "time"

// Benchmark run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Expected labels. "jailbreak" is the positive class.
const (
	LabelJailbreak = "jailbreak"
	LabelBenign    = "benign"
)

// Predicted labels.
const (
	PredictedBlocked = "blocked"
	PredictedAllowed = "allowed"
	PredictedError   = "error"
)

// Confusion-matrix result types.
const (
	ResultTruePositive  = "TRUE_POSITIVE"
	ResultFalsePositive = "FALSE_POSITIVE"
	ResultTrueNegative  = "TRUE_NEGATIVE"
	ResultFalseNegative = "FALSE_NEGATIVE"
	ResultError         = "ERROR"
)

// ClassifyResult maps ground truth and the firewall verdict onto the
// confusion matrix.
func ClassifyResult(expectedLabel string, predictedBlocked bool) string {
	expectedMalicious := expectedLabel == LabelJailbreak
	switch {
	case expectedMalicious && predictedBlocked:
		return ResultTruePositive
	case expectedMalicious && !predictedBlocked:
		return ResultFalseNegative
	case !expectedMalicious && predictedBlocked:
		return ResultFalsePositive
	default:
		return ResultTrueNegative
	}
}

// BenchmarkRun is one replay of a labeled dataset through the pipeline.
type BenchmarkRun struct {
	ID               string         `json:"id"`
	DatasetName      string         `json:"dataset_name"`
	DatasetSource    string         `json:"dataset_source"`
	DatasetSplit     string         `json:"dataset_split"`
	ConfigSnapshot   map[string]any `json:"config_snapshot,omitempty"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	Status           string         `json:"status"`
	TotalSamples     int            `json:"total_samples"`
	ProcessedSamples int            `json:"processed_samples"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}

// BenchmarkResult is the per-sample outcome of a run.
type BenchmarkResult struct {
	RunID           string         `json:"run_id"`
	SampleIndex     int            `json:"sample_index"`
	InputText       string         `json:"input_text"`
	ExpectedLabel   string         `json:"expected_label"`
	PredictedLabel  string         `json:"predicted_label"`
	IsCorrect       bool           `json:"is_correct"`
	ResultType      string         `json:"result_type"`
	AnalysisDetails map[string]any `json:"analysis_details,omitempty"`
	LatencyMs       float64        `json:"latency_ms"`
	CreatedAt       time.Time      `json:"created_at"`
}

// BenchmarkMetrics aggregates a completed run.
type BenchmarkMetrics struct {
	RunID          string  `json:"run_id"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`
	Accuracy       float64 `json:"accuracy"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	P50LatencyMs   float64 `json:"p50_latency_ms"`
	P95LatencyMs   float64 `json:"p95_latency_ms"`
	P99LatencyMs   float64 `json:"p99_latency_ms"`
}

// DatasetSample is a normalized dataset row ready for replay.
type DatasetSample struct {
	Prompt        string `json:"prompt"`
	ExpectedLabel string `json:"expected_label"`
	Index         int    `json:"index"`
}

// Allowed upload content types.
const (
	DatasetTypeCSV  = "text/csv"
	DatasetTypeJSON = "application/json"
)

// DatasetMetadata records a custom uploaded dataset.
type DatasetMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	FileKey      string    `json:"file_key"`
	FileType     string    `json:"file_type"`
	TotalSamples int       `json:"total_samples"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comparison polarity values.
const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
	PolarityNeutral  = "neutral"
)

// Sample transition classes between a baseline and candidate run.
const (
	TransitionCriticalRegression = "critical_regression"  // TP to FN
	TransitionNewFalsePositive   = "new_false_positive"   // TN to FP
	TransitionNewDetection       = "new_detection"        // FN to TP
	TransitionFixedFalsePositive = "fixed_false_positive" // FP to TN
)

// MetricDelta is one metric's movement from baseline to candidate.
type MetricDelta struct {
	Baseline  float64 `json:"baseline"`
	Candidate float64 `json:"candidate"`
	Delta     float64 `json:"delta"`
	Percent   float64 `json:"percent"`
	Polarity  string  `json:"polarity"`
}

// SampleChange records a single sample whose verdict moved between runs.
type SampleChange struct {
	SampleIndex int    `json:"sample_index"`
	InputText   string `json:"input_text"`
	Transition  string `json:"transition"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// SampleChangeSummary counts the transitions for one candidate.
type SampleChangeSummary struct {
	CriticalRegressions int `json:"critical_regressions"`
	NewFalsePositives   int `json:"new_false_positives"`
	NewDetections       int `json:"new_detections"`
	FixedFalsePositives int `json:"fixed_false_positives"`
	NetChange           int `json:"net_change"`
}

// CandidateComparison is one candidate measured against the baseline.
type CandidateComparison struct {
	RunID         string                 `json:"run_id"`
	Metrics       map[string]MetricDelta `json:"metrics"`
	SampleChanges []SampleChange         `json:"sample_changes"`
	Summary       SampleChangeSummary    `json:"summary"`
}

// ComparisonReport is the full baseline-vs-candidates comparison.
type ComparisonReport struct {
	BaselineRunID string                `json:"baseline_run_id"`
	DatasetName   string                `json:"dataset_name"`
	DatasetSplit  string                `json:"dataset_split"`
	Candidates    []CandidateComparison `json:"candidates"`
}
