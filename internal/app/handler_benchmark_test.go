package app

import (
	"context"
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

// stubBenchStore serves a fixed result set; only the methods the result
// handlers touch are implemented.
type stubBenchStore struct {
	ports.BenchmarkStore
	results []*domain.BenchmarkResult
}

func (s *stubBenchStore) GetResults(_ context.Context, _, _ string) ([]*domain.BenchmarkResult, error) {
	return s.results, nil
}

type stubComparator struct {
	baseline   string
	candidates []string
	report     *domain.ComparisonReport
	err        error
}

func (c *stubComparator) Compare(_ context.Context, baselineID string, candidateIDs []string) (*domain.ComparisonReport, error) {
	c.baseline = baselineID
	c.candidates = candidateIDs
	if c.err != nil {
		return nil, c.err
	}
	return c.report, nil
}

func benchResults(n int) []*domain.BenchmarkResult {
	out := make([]*domain.BenchmarkResult, n)
	for i := range out {
		out[i] = &domain.BenchmarkResult{RunID: "run-1", SampleIndex: i}
	}
	return out
}

func getResults(t *testing.T, a *Application, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/benchmarks/results/run-1"+query, nil)
	req.SetPathValue("id", "run-1")
	rec := httptest.NewRecorder()
	a.benchmarkResultsHandler(rec, req)
	return rec
}

type resultsPage struct {
	RunID   string                    `json:"run_id"`
	Results []*domain.BenchmarkResult `json:"results"`
	Count   int                       `json:"count"`
	Total   int                       `json:"total"`
}

func TestBenchmarkResultsPaging(t *testing.T) {
	a := &Application{
		log:        slog.New(slog.DiscardHandler),
		benchStore: &stubBenchStore{results: benchResults(5)},
	}

	rec := getResults(t, a, "?limit=2&offset=1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var page resultsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "run-1", page.RunID)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, 1, page.Results[0].SampleIndex)
	assert.Equal(t, 2, page.Results[1].SampleIndex)
}

func TestBenchmarkResultsDefaultReturnsAll(t *testing.T) {
	a := &Application{
		log:        slog.New(slog.DiscardHandler),
		benchStore: &stubBenchStore{results: benchResults(3)},
	}

	rec := getResults(t, a, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var page resultsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Results, 3)
}

func TestBenchmarkResultsOffsetPastEnd(t *testing.T) {
	a := &Application{
		log:        slog.New(slog.DiscardHandler),
		benchStore: &stubBenchStore{results: benchResults(5)},
	}

	rec := getResults(t, a, "?offset=10")
	assert.Equal(t, http.StatusOK, rec.Code)

	var page resultsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 0, page.Count)
	assert.Empty(t, page.Results)
}

func TestBenchmarkCompareGetQueryParams(t *testing.T) {
	cmp := &stubComparator{report: &domain.ComparisonReport{BaselineRunID: "base"}}
	a := &Application{log: slog.New(slog.DiscardHandler), comparator: cmp}

	req := httptest.NewRequest(http.MethodGet,
		"/api/benchmarks/compare?baseline_run_id=base&candidate_run_ids=c1,%20c2", nil)
	rec := httptest.NewRecorder()
	a.benchmarkCompareHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "base", cmp.baseline)
	assert.Equal(t, []string{"c1", "c2"}, cmp.candidates)

	var report domain.ComparisonReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "base", report.BaselineRunID)
}

func TestBenchmarkComparePostBody(t *testing.T) {
	cmp := &stubComparator{report: &domain.ComparisonReport{BaselineRunID: "base"}}
	a := &Application{log: slog.New(slog.DiscardHandler), comparator: cmp}

	body := `{"baseline_run_id": "base", "candidate_run_ids": ["c1", "c2"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/benchmarks/compare", strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.benchmarkCompareHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "base", cmp.baseline)
	assert.Equal(t, []string{"c1", "c2"}, cmp.candidates)
}

func TestBenchmarkCompareMissingBaseline(t *testing.T) {
	a := &Application{log: slog.New(slog.DiscardHandler), comparator: &stubComparator{}}

	req := httptest.NewRequest(http.MethodGet, "/api/benchmarks/compare", nil)
	rec := httptest.NewRecorder()
	a.benchmarkCompareHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "baseline_run_id")
}
