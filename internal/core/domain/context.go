package domain

import "time"

// RequestContext carries request metadata through the analysis pipeline.
// It is created once per inbound request and passed by value; some
// detectors consume it to condition their embeddings.
type RequestContext struct {
	RequestID          string         `json:"request_id"`
	Timestamp          time.Time      `json:"timestamp"`
	UserID             string         `json:"user_id"`
	SessionID          string         `json:"session_id"`
	TenantID           string         `json:"tenant_id"`
	Endpoint           string         `json:"endpoint"`
	Device             string         `json:"device"`
	RateLimitRemaining int            `json:"rate_limit_remaining"`
	Temperature        float64        `json:"temperature"`
	MaxTokens          int            `json:"max_tokens"`
	TurnCount          int            `json:"turn_count"`
	Custom             map[string]any `json:"custom,omitempty"`
}

// Defaults applied when the corresponding headers are absent.
const (
	DefaultUserID      = "96424373-aa08-44ae-98ff-9d63e2981663"
	DefaultSessionID   = "a1e423e8-8486-4309-a660-fdf5b3d55ae9"
	DefaultDevice      = "Unknown"
	DefaultEndpoint    = "/threat/query"
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 20
	DefaultTurnCount   = 1
	DefaultRateLimit   = 0
)

// Normalized returns the context with defaults substituted for empty
// fields, matching the shape the embedding formatter expects.
func (c RequestContext) Normalized() RequestContext {
	if c.UserID == "" {
		c.UserID = "unknown"
	}
	if c.SessionID == "" {
		c.SessionID = "unknown"
	}
	if c.TenantID == "" {
		c.TenantID = "default"
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.TurnCount == 0 {
		c.TurnCount = DefaultTurnCount
	}
	return c
}
