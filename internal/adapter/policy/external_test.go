package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-sh/palisade/internal/config"
	"github.com/palisade-sh/palisade/internal/core/domain"
)

func externalConfig(engineURL string, failOpen bool) config.PolicyConfig {
	return config.PolicyConfig{
		Evaluator: "external",
		FailOpen:  failOpen,
		External: config.ExternalConfig{
			EngineURL:  engineURL,
			PolicyName: "firewall/policy",
			PolicyPath: "policy.rego",
		},
	}
}

func policyFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "policy.rego", []byte("package firewall.policy"), 0o644))
	return fs
}

func TestExternalEvaluatorDecision(t *testing.T) {
	var uploads, queries atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/v1/policies/firewall.policy":
			uploads.Add(1)
			assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/data/firewall/policy/decision":
			queries.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"result":{"blocked":true,"reason":"High PII score detected","confidence":0.9,"matched_rule":"pii_threshold"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	e := NewExternalEvaluator(externalConfig(server.URL, false), NewStaticTenantProvider("default"), policyFs(t), discard())

	signals := &domain.MLSignals{PII: domain.DetectorScore{Score: 0.9}}
	decision, err := e.Evaluate(context.Background(), signals, &domain.PreprocessedText{}, domain.RequestContext{})
	require.NoError(t, err)

	assert.True(t, decision.Blocked)
	assert.Equal(t, "High PII score detected", decision.Reason)
	assert.Equal(t, 0.9, decision.Confidence)
	assert.Equal(t, "pii_threshold", decision.MatchedRule)

	// Second evaluation reuses the uploaded policy.
	_, err = e.Evaluate(context.Background(), signals, &domain.PreprocessedText{}, domain.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), uploads.Load())
	assert.Equal(t, int64(2), queries.Load())
}

func TestExternalEvaluatorNoResultDefaultsToAllow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	e := NewExternalEvaluator(externalConfig(server.URL, false), NewStaticTenantProvider("default"), policyFs(t), discard())

	decision, err := e.Evaluate(context.Background(), &domain.MLSignals{}, &domain.PreprocessedText{}, domain.RequestContext{})
	require.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, 0.5, decision.Confidence)
}

func TestExternalEvaluatorFailOpen(t *testing.T) {
	e := NewExternalEvaluator(externalConfig("http://127.0.0.1:1", true), NewStaticTenantProvider("default"), policyFs(t), discard())

	decision, err := e.Evaluate(context.Background(), &domain.MLSignals{}, &domain.PreprocessedText{}, domain.RequestContext{})
	require.NoError(t, err)

	assert.False(t, decision.Blocked)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Contains(t, decision.Reason, "Policy evaluation error:")
}

func TestExternalEvaluatorFailClosed(t *testing.T) {
	e := NewExternalEvaluator(externalConfig("http://127.0.0.1:1", false), NewStaticTenantProvider("default"), policyFs(t), discard())

	decision, err := e.Evaluate(context.Background(), &domain.MLSignals{}, &domain.PreprocessedText{}, domain.RequestContext{})
	require.NoError(t, err)

	assert.True(t, decision.Blocked)
	assert.Equal(t, "Policy evaluation unavailable", decision.Reason)
	assert.Equal(t, 0.0, decision.Confidence)
}

func TestExternalEvaluatorMissingPolicyFile(t *testing.T) {
	e := NewExternalEvaluator(externalConfig("http://127.0.0.1:1", true), NewStaticTenantProvider("default"), afero.NewMemMapFs(), discard())

	decision, err := e.Evaluate(context.Background(), &domain.MLSignals{}, &domain.PreprocessedText{}, domain.RequestContext{})
	require.NoError(t, err)

	assert.False(t, decision.Blocked)
	assert.Contains(t, decision.Reason, "read policy")
}
