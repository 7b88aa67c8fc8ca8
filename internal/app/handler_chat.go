package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Request metadata headers. Absent headers fall back to the documented
// defaults so anonymous clients still produce a full context.
const (
	headerUserID      = "X-User-ID"
	headerSessionID   = "X-Session-ID"
	headerTemperature = "X-Temperature"
	headerMaxTokens   = "X-Max-Tokens"
	headerTurnCount   = "X-Turn-Count"
	headerRateLimit   = "X-Rate-Limit"
)

func (a *Application) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ports.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON payload"})
		return
	}
	if req.Message == "" {
		a.writeError(w, &domain.ValidationError{Field: "message", Reason: "message must not be empty"})
		return
	}

	reqCtx := extractRequestContext(r)
	resp, err := a.gateway.Chat(r.Context(), req, reqCtx)
	if err != nil {
		a.log.Error("chat request failed", "request_id", reqCtx.RequestID, "error", err)
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, resp)
}

func extractRequestContext(r *http.Request) domain.RequestContext {
	return domain.RequestContext{
		RequestID:          uuid.NewString(),
		Timestamp:          time.Now().UTC(),
		UserID:             headerOr(r, headerUserID, domain.DefaultUserID),
		SessionID:          headerOr(r, headerSessionID, domain.DefaultSessionID),
		Endpoint:           r.URL.Path,
		Device:             headerOr(r, "User-Agent", domain.DefaultDevice),
		RateLimitRemaining: headerInt(r, headerRateLimit, domain.DefaultRateLimit),
		Temperature:        headerFloat(r, headerTemperature, domain.DefaultTemperature),
		MaxTokens:          headerInt(r, headerMaxTokens, domain.DefaultMaxTokens),
		TurnCount:          headerInt(r, headerTurnCount, domain.DefaultTurnCount),
	}
}

func headerOr(r *http.Request, key, fallback string) string {
	if v := r.Header.Get(key); v != "" {
		return v
	}
	return fallback
}

func headerInt(r *http.Request, key string, fallback int) int {
	v := r.Header.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func headerFloat(r *http.Request, key string, fallback float64) float64 {
	v := r.Header.Get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
