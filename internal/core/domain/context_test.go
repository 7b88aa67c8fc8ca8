package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestContextNormalized(t *testing.T) {
	c := RequestContext{}.Normalized()

	assert.Equal(t, "unknown", c.UserID)
	assert.Equal(t, "unknown", c.SessionID)
	assert.Equal(t, "default", c.TenantID)
	assert.Equal(t, DefaultEndpoint, c.Endpoint)
	assert.Equal(t, DefaultDevice, c.Device)
	assert.Equal(t, DefaultTemperature, c.Temperature)
	assert.Equal(t, DefaultMaxTokens, c.MaxTokens)
	assert.Equal(t, DefaultTurnCount, c.TurnCount)
}

func TestRequestContextNormalizedKeepsValues(t *testing.T) {
	c := RequestContext{
		UserID:      "user-1",
		SessionID:   "sess-1",
		TenantID:    "acme",
		Endpoint:    "/api/chat",
		Device:      "cli",
		Temperature: 0.9,
		MaxTokens:   256,
		TurnCount:   7,
	}.Normalized()

	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, "sess-1", c.SessionID)
	assert.Equal(t, "acme", c.TenantID)
	assert.Equal(t, "/api/chat", c.Endpoint)
	assert.Equal(t, "cli", c.Device)
	assert.Equal(t, 0.9, c.Temperature)
	assert.Equal(t, 256, c.MaxTokens)
	assert.Equal(t, 7, c.TurnCount)
}
