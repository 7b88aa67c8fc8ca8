package ports

import (
	"context"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message        string            `json:"message"`
	DetectorConfig map[string]string `json:"detector_config,omitempty"`
}

// DetectorMetrics reports one detector's contribution to a verdict.
type DetectorMetrics struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	LatencyMs float64 `json:"latency_ms"`
	Threshold float64 `json:"threshold,omitempty"`
	Status    string  `json:"status"`
}

// PreprocessingMetrics summarizes the normalization phase.
type PreprocessingMetrics struct {
	OriginalLength   int `json:"original_length"`
	NormalizedLength int `json:"normalized_length"`
	WordCount        int `json:"word_count"`
	CharCount        int `json:"char_count"`
}

// PolicyMetrics summarizes the policy verdict.
type PolicyMetrics struct {
	MatchedRule string  `json:"matched_rule,omitempty"`
	Confidence  float64 `json:"confidence"`
	RiskLevel   string  `json:"risk_level"`
}

// ChatResponse is what the gateway returns for allowed and blocked
// requests alike. A content block still answers 200 with Blocked set;
// backend and pipeline failures surface as typed errors instead.
type ChatResponse struct {
	RequestID        string                `json:"request_id"`
	Blocked          bool                  `json:"blocked"`
	Reason           string                `json:"reason,omitempty"`
	Reply            string                `json:"reply,omitempty"`
	Direction        string                `json:"direction,omitempty"`
	RiskLevel        string                `json:"risk_level"`
	MLDetectors      []DetectorMetrics     `json:"ml_detectors,omitempty"`
	Preprocessing    *PreprocessingMetrics `json:"preprocessing,omitempty"`
	Policy           *PolicyMetrics        `json:"policy,omitempty"`
	LatencyBreakdown map[string]float64    `json:"latency_breakdown,omitempty"`
	TotalLatencyMs   float64               `json:"total_latency_ms"`
}

// Gateway is the request-facing firewall service.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest, reqCtx domain.RequestContext) (*ChatResponse, error)
}

// BackendClient forwards an allowed message to the upstream LLM service.
type BackendClient interface {
	Chat(ctx context.Context, message string) (string, error)
}
