package app

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

const maxDatasetUploadBytes = 32 << 20

type benchmarkStartRequest struct {
	DatasetSource string `json:"dataset_source"`
	DatasetSplit  string `json:"dataset_split"`
	DatasetID     string `json:"dataset_id"`
	SampleLimit   int    `json:"sample_limit"`
}

type benchmarkCompareRequest struct {
	BaselineRunID   string   `json:"baseline_run_id"`
	CandidateRunIDs []string `json:"candidate_run_ids"`
}

func (a *Application) benchmarkStartHandler(w http.ResponseWriter, r *http.Request) {
	var req benchmarkStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON payload"})
		return
	}

	var (
		run *domain.BenchmarkRun
		err error
	)
	switch {
	case req.DatasetID != "":
		run, err = a.runner.StartCustom(r.Context(), req.DatasetID, req.SampleLimit)
	case req.DatasetSource != "":
		split := req.DatasetSplit
		if split == "" {
			split = "train"
		}
		run, err = a.runner.Start(r.Context(), req.DatasetSource, split, req.SampleLimit)
	default:
		err = &domain.ValidationError{Field: "dataset_source", Reason: "dataset_source or dataset_id required"}
	}
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusAccepted, run)
}

func (a *Application) benchmarkRunsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	runs, err := a.benchStore.ListRuns(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (a *Application) benchmarkStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	run, err := a.benchStore.GetRun(r.Context(), runID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	response := map[string]any{"run": run}
	if progress, ok := a.runner.Progress(runID); ok {
		response["progress"] = progress
	}
	a.writeJSON(w, http.StatusOK, response)
}

// benchmarkCancelHandler is idempotent: cancelling a finished run reports
// its terminal status instead of failing.
func (a *Application) benchmarkCancelHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	if err := a.runner.Cancel(runID); err != nil {
		run, getErr := a.benchStore.GetRun(r.Context(), runID)
		if getErr != nil {
			a.writeError(w, getErr)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]string{"run_id": runID, "status": run.Status})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"run_id": runID, "status": domain.RunStatusCancelled})
}

func (a *Application) benchmarkResultsHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	resultType := r.URL.Query().Get("result_type")
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	results, err := a.benchStore.GetResults(r.Context(), runID, resultType)
	if err != nil {
		a.writeError(w, err)
		return
	}

	total := len(results)
	if offset > 0 {
		if offset >= len(results) {
			results = nil
		} else {
			results = results[offset:]
		}
	}
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"results": results,
		"count":   len(results),
		"total":   total,
	})
}

func (a *Application) benchmarkMetricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics, err := a.benchStore.GetMetrics(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, metrics)
}

// benchmarkErrorsHandler lists every misclassified or errored sample so an
// operator can inspect what the firewall got wrong.
func (a *Application) benchmarkErrorsHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	falsePositives, err := a.benchStore.GetResults(r.Context(), runID, domain.ResultFalsePositive)
	if err != nil {
		a.writeError(w, err)
		return
	}
	falseNegatives, err := a.benchStore.GetResults(r.Context(), runID, domain.ResultFalseNegative)
	if err != nil {
		a.writeError(w, err)
		return
	}
	errored, err := a.benchStore.GetResults(r.Context(), runID, domain.ResultError)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":          runID,
		"false_positives": falsePositives,
		"false_negatives": falseNegatives,
		"errors":          errored,
	})
}

// benchmarkCompareHandler accepts GET with baseline_run_id and a comma
// separated candidate_run_ids, or POST with the same fields as JSON.
func (a *Application) benchmarkCompareHandler(w http.ResponseWriter, r *http.Request) {
	var req benchmarkCompareRequest
	if r.Method == http.MethodGet {
		req.BaselineRunID = r.URL.Query().Get("baseline_run_id")
		for _, id := range strings.Split(r.URL.Query().Get("candidate_run_ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.CandidateRunIDs = append(req.CandidateRunIDs, id)
			}
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON payload"})
		return
	}
	if req.BaselineRunID == "" {
		a.writeError(w, &domain.ValidationError{Field: "baseline_run_id", Reason: "baseline_run_id required"})
		return
	}

	report, err := a.comparator.Compare(r.Context(), req.BaselineRunID, req.CandidateRunIDs)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, report)
}

func (a *Application) datasetUploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDatasetUploadBytes); err != nil {
		a.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, &domain.ValidationError{Field: "file", Reason: "file field required"})
		return
	}
	defer file.Close()

	var fileType string
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		fileType = domain.DatasetTypeCSV
	case ".json":
		fileType = domain.DatasetTypeJSON
	default:
		a.writeError(w, &domain.ValidationError{Field: "file", Reason: "only .csv and .json files are supported"})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxDatasetUploadBytes))
	if err != nil {
		a.writeError(w, err)
		return
	}

	// Parse up front so malformed uploads are rejected before storage.
	samples, err := a.dsLoader.LoadBytes(content, fileType)
	if err != nil {
		a.writeError(w, err)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	meta := &domain.DatasetMetadata{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  r.FormValue("description"),
		FileType:     fileType,
		TotalSamples: len(samples),
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.datasets.Save(r.Context(), meta, content); err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, meta)
}

func (a *Application) datasetListHandler(w http.ResponseWriter, r *http.Request) {
	metas, err := a.datasets.List(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"datasets": metas, "count": len(metas)})
}

func (a *Application) datasetDeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.datasets.Delete(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
