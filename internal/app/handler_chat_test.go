package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

type stubGateway struct {
	resp   *ports.ChatResponse
	err    error
	reqCtx domain.RequestContext
}

func (g *stubGateway) Chat(_ context.Context, _ ports.ChatRequest, reqCtx domain.RequestContext) (*ports.ChatResponse, error) {
	g.reqCtx = reqCtx
	if g.err != nil {
		return nil, g.err
	}
	resp := *g.resp
	resp.RequestID = reqCtx.RequestID
	return &resp, nil
}

func newChatApp(gateway ports.Gateway) *Application {
	return &Application{
		log:     slog.New(slog.DiscardHandler),
		gateway: gateway,
	}
}

func postChat(t *testing.T, a *Application, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.chatHandler(rec, req)
	return rec
}

func TestChatHandlerSuccess(t *testing.T) {
	gw := &stubGateway{resp: &ports.ChatResponse{Reply: "echo: hello", RiskLevel: domain.RiskBenign}}
	a := newChatApp(gw)

	rec := postChat(t, a, `{"message": "hello"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get(ContentTypeHeader))

	var resp ports.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Blocked)
	assert.Equal(t, "echo: hello", resp.Reply)
	assert.NotEmpty(t, resp.RequestID)
}

func TestChatHandlerEmptyMessage(t *testing.T) {
	a := newChatApp(&stubGateway{})

	rec := postChat(t, a, `{"message": ""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")
}

func TestChatHandlerInvalidJSON(t *testing.T) {
	a := newChatApp(&stubGateway{})

	rec := postChat(t, a, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerBackendFailureMapsTo502(t *testing.T) {
	gw := &stubGateway{err: &domain.BackendError{Err: errors.New("connection refused"), BackendURL: "http://backend:8000"}}
	a := newChatApp(gw)

	rec := postChat(t, a, `{"message": "hello"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "backend")
}

func TestChatHandlerInternalFailureMapsTo500(t *testing.T) {
	gw := &stubGateway{err: &domain.FirewallError{Err: errors.New("boom"), Stage: "ml_filter"}}
	a := newChatApp(gw)

	rec := postChat(t, a, `{"message": "hello"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "ml_filter")
}

func TestChatHandlerRequestContextFromHeaders(t *testing.T) {
	gw := &stubGateway{resp: &ports.ChatResponse{}}
	a := newChatApp(gw)

	postChat(t, a, `{"message": "hello"}`, map[string]string{
		"X-User-ID":     "user-42",
		"X-Session-ID":  "sess-42",
		"User-Agent":    "curl/8.0",
		"X-Temperature": "0.9",
		"X-Max-Tokens":  "128",
		"X-Turn-Count":  "3",
		"X-Rate-Limit":  "17",
	})

	assert.Equal(t, "user-42", gw.reqCtx.UserID)
	assert.Equal(t, "sess-42", gw.reqCtx.SessionID)
	assert.Equal(t, "curl/8.0", gw.reqCtx.Device)
	assert.Equal(t, 0.9, gw.reqCtx.Temperature)
	assert.Equal(t, 128, gw.reqCtx.MaxTokens)
	assert.Equal(t, 3, gw.reqCtx.TurnCount)
	assert.Equal(t, 17, gw.reqCtx.RateLimitRemaining)
	assert.Equal(t, "/api/chat", gw.reqCtx.Endpoint)
	assert.NotEmpty(t, gw.reqCtx.RequestID)
}

func TestChatHandlerRequestContextDefaults(t *testing.T) {
	gw := &stubGateway{resp: &ports.ChatResponse{}}
	a := newChatApp(gw)

	// httptest requests carry no User-Agent header.
	postChat(t, a, `{"message": "hello"}`, nil)

	assert.Equal(t, domain.DefaultUserID, gw.reqCtx.UserID)
	assert.Equal(t, domain.DefaultSessionID, gw.reqCtx.SessionID)
	assert.Equal(t, domain.DefaultDevice, gw.reqCtx.Device)
	assert.Equal(t, domain.DefaultTemperature, gw.reqCtx.Temperature)
	assert.Equal(t, domain.DefaultMaxTokens, gw.reqCtx.MaxTokens)
	assert.Equal(t, domain.DefaultTurnCount, gw.reqCtx.TurnCount)
	assert.Equal(t, domain.DefaultRateLimit, gw.reqCtx.RateLimitRemaining)
}

func TestChatHandlerIgnoresMalformedNumericHeaders(t *testing.T) {
	gw := &stubGateway{resp: &ports.ChatResponse{}}
	a := newChatApp(gw)

	postChat(t, a, `{"message": "hello"}`, map[string]string{
		"X-Temperature": "hot",
		"X-Max-Tokens":  "many",
	})

	assert.Equal(t, domain.DefaultTemperature, gw.reqCtx.Temperature)
	assert.Equal(t, domain.DefaultMaxTokens, gw.reqCtx.MaxTokens)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	a := newChatApp(&stubGateway{})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &domain.ValidationError{Field: "x", Reason: "bad"}, http.StatusBadRequest},
		{"not found", &domain.NotFoundError{Kind: "run", ID: "r1"}, http.StatusNotFound},
		{"unavailable", &domain.ServiceUnavailableError{Service: "benchmark"}, http.StatusServiceUnavailable},
		{"backend", &domain.BackendError{Err: errors.New("refused"), BackendURL: "http://backend:8000"}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.writeError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestHealthHandler(t *testing.T) {
	a := newChatApp(&stubGateway{})

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "semantic-firewall", body["service"])
}
