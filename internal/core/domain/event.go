package domain

import "time"

// Risk levels as surfaced on the dashboard.
const (
	RiskBenign     = "benign"
	RiskSuspicious = "suspicious"
	RiskMalicious  = "malicious"
)

// Risk categories.
const (
	CategoryInjection = "injection"
	CategoryPII       = "pii"
	CategoryToxicity  = "toxicity"
	CategoryLeak      = "leak"
	CategoryHarmful   = "harmful"
	CategoryClean     = "clean"
)

// Actions.
const (
	ActionAllow = "allow"
	ActionBlock = "block"
)

const eventTextLimit = 500

// EventScores is the per-detector score snapshot carried on every event.
type EventScores struct {
	PromptInjection float64 `json:"prompt_injection"`
	PII             float64 `json:"pii"`
	Toxicity        float64 `json:"toxicity"`
	Heuristic       float64 `json:"heuristic"`
}

// EventPolicy records the policy outcome on an event.
type EventPolicy struct {
	MatchedRule string `json:"matched_rule,omitempty"`
	Decision    string `json:"decision"`
}

// EventLatency is the per-stage latency breakdown on an event.
type EventLatency struct {
	Preprocessing float64 `json:"preprocessing"`
	ML            float64 `json:"ml"`
	Policy        float64 `json:"policy"`
	Backend       float64 `json:"backend"`
	Total         float64 `json:"total"`
}

// PreprocessingInfo summarises the preprocessor pass for the dashboard.
type PreprocessingInfo struct {
	OriginalLength   int `json:"original_length"`
	NormalizedLength int `json:"normalized_length"`
	WordCount        int `json:"word_count"`
}

// Event is the standardized record emitted for every request. It feeds
// both the rolling metrics store and the WebSocket fan-out.
type Event struct {
	ID                string             `json:"id"`
	Timestamp         time.Time          `json:"timestamp"`
	Prompt            string             `json:"prompt"`
	Response          string             `json:"response"`
	RiskLevel         string             `json:"risk_level"`
	RiskCategory      string             `json:"risk_category"`
	Scores            EventScores        `json:"scores"`
	Heuristics        []string           `json:"heuristics"`
	Policy            EventPolicy        `json:"policy"`
	Action            string             `json:"action"`
	Latency           EventLatency       `json:"latency_ms"`
	SessionID         string             `json:"session_id,omitempty"`
	PreprocessingInfo *PreprocessingInfo `json:"preprocessing_info,omitempty"`
	DetectorConfig    map[string]string  `json:"detector_config,omitempty"`
}

// NewEvent builds a standardized event from one analysis pass.
func NewEvent(
	requestID, prompt, response string,
	blocked bool,
	signals *MLSignals,
	preprocessed *PreprocessedText,
	decision *PolicyDecision,
	latency EventLatency,
	sessionID string,
	detectorConfig map[string]string,
) Event {
	action := ActionAllow
	if blocked {
		action = ActionBlock
	}

	var heuristics []string
	if signals.Heuristic.Blocked {
		heuristics = append(heuristics, "heuristic_match")
	}

	var info *PreprocessingInfo
	if preprocessed != nil {
		info = &PreprocessingInfo{
			OriginalLength:   len(preprocessed.Original),
			NormalizedLength: len(preprocessed.Normalized),
			WordCount:        preprocessed.Features.WordCount,
		}
	}

	matchedRule := ""
	if decision != nil {
		matchedRule = decision.MatchedRule
	}

	return Event{
		ID:           requestID,
		Timestamp:    time.Now().UTC(),
		Prompt:       truncate(prompt, eventTextLimit),
		Response:     truncate(response, eventTextLimit),
		RiskLevel:    StandardRiskLevel(signals),
		RiskCategory: RiskCategoryOf(signals),
		Scores: EventScores{
			PromptInjection: signals.PromptInjection.Score,
			PII:             signals.PII.Score,
			Toxicity:        signals.Toxicity.Score,
			Heuristic:       signals.Heuristic.Score,
		},
		Heuristics:        heuristics,
		Policy:            EventPolicy{MatchedRule: matchedRule, Decision: action},
		Action:            action,
		Latency:           latency,
		SessionID:         sessionID,
		PreprocessingInfo: info,
		DetectorConfig:    detectorConfig,
	}
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
