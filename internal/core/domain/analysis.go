package domain

// Features are the lightweight lexical features extracted during
// preprocessing. They feed both the policy context and the event stream.
type Features struct {
	Length          int  `json:"length"`
	WordCount       int  `json:"word_count"`
	CharCount       int  `json:"char_count"`
	HasNumbers      bool `json:"has_numbers"`
	HasSpecialChars bool `json:"has_special_chars"`
	URLCount        int  `json:"url_count"`
	EmailCount      int  `json:"email_count"`
}

// PreprocessedText is the immutable output of the preprocessor, owned by
// the analyzer for the duration of one request.
type PreprocessedText struct {
	Original   string    `json:"original"`
	Normalized string    `json:"normalized"`
	Features   Features  `json:"features"`
	Embedding  []float32 `json:"embedding,omitempty"`
	VectorID   string    `json:"vector_id"`
}

// DetectorScore carries a single detector's score and its wall-clock cost.
type DetectorScore struct {
	Score     float64 `json:"score"`
	LatencyMs float64 `json:"latency_ms"`
}

// HeuristicResult is the rule-driven detector outcome.
type HeuristicResult struct {
	Blocked   bool     `json:"blocked"`
	Flags     []string `json:"flags"`
	Reason    string   `json:"reason,omitempty"`
	Score     float64  `json:"score"` // 0 or 1
	LatencyMs float64  `json:"latency_ms"`
}

// MLSignals aggregates the parallel detector fan-out. TotalLatencyMs is the
// enclosing wall-clock of the fan-out, not the sum of the parts.
type MLSignals struct {
	PII             DetectorScore   `json:"pii"`
	Toxicity        DetectorScore   `json:"toxicity"`
	PromptInjection DetectorScore   `json:"prompt_injection"`
	Heuristic       HeuristicResult `json:"heuristic"`
	TotalLatencyMs  float64         `json:"total_latency_ms"`
}

// MaxScore returns the highest of the three ML detector scores.
func (s *MLSignals) MaxScore() float64 {
	max := s.PII.Score
	if s.Toxicity.Score > max {
		max = s.Toxicity.Score
	}
	if s.PromptInjection.Score > max {
		max = s.PromptInjection.Score
	}
	return max
}

// PolicyDecision is the policy engine verdict for one request.
type PolicyDecision struct {
	Blocked     bool    `json:"blocked"`
	Reason      string  `json:"reason,omitempty"`
	Confidence  float64 `json:"confidence"`
	MatchedRule string  `json:"matched_rule,omitempty"`
}

// Direction marks whether content travelled user-to-backend or backend-to-user.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// StageLatencies is the per-stage latency breakdown of one analysis pass.
type StageLatencies struct {
	PreprocessingMs float64 `json:"preprocessing"`
	MLMs            float64 `json:"ml_analysis"`
	PolicyMs        float64 `json:"policy_eval"`
	BackendMs       float64 `json:"backend"`
}

// AnalysisResult is the full outcome of one pipeline pass over a text.
type AnalysisResult struct {
	Preprocessed *PreprocessedText `json:"preprocessed"`
	Signals      *MLSignals        `json:"ml_signals"`
	Decision     *PolicyDecision   `json:"decision"`
	Direction    Direction         `json:"direction"`
	LatencyMs    float64           `json:"latency_ms"`
	Stages       StageLatencies    `json:"stages"`
}
