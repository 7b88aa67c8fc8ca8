package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/palisade-sh/palisade/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore persists benchmark runs, per-sample results and aggregate
// metrics.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the benchmark database and applies
// pending migrations.
func OpenSQLite(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent batches.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("benchmark database ready", "path", dbPath)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func migrateUp(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: init source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate: init db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.BenchmarkRun) error {
	snapshot, err := json.Marshal(run.ConfigSnapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO benchmark_runs
		(id, dataset_name, dataset_source, dataset_split, config_snapshot,
		 start_time, status, total_samples, processed_samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DatasetName, run.DatasetSource, run.DatasetSplit, string(snapshot),
		run.StartTime.UTC().Format(timeLayout), run.Status, run.TotalSamples, run.ProcessedSamples,
	)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *domain.BenchmarkRun) error {
	var endTime any
	if run.EndTime != nil {
		endTime = run.EndTime.UTC().Format(timeLayout)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE benchmark_runs
		SET status = ?, end_time = ?, processed_samples = ?, error_message = ?
		WHERE id = ?`,
		run.Status, endTime, run.ProcessedSamples, nullableString(run.ErrorMessage), run.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &domain.NotFoundError{Kind: "run", ID: run.ID}
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.BenchmarkRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, dataset_name, dataset_source, dataset_split, config_snapshot,
		       start_time, end_time, status, total_samples, processed_samples, error_message
		FROM benchmark_runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "run", ID: runID}
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.BenchmarkRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_name, dataset_source, dataset_split, config_snapshot,
		       start_time, end_time, status, total_samples, processed_samples, error_message
		FROM benchmark_runs ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.BenchmarkRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.BenchmarkRun, error) {
	var (
		run            domain.BenchmarkRun
		split, snap    sql.NullString
		startRaw       string
		endRaw, errMsg sql.NullString
		total, done    sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.DatasetName, &run.DatasetSource, &split, &snap,
		&startRaw, &endRaw, &run.Status, &total, &done, &errMsg); err != nil {
		return nil, err
	}

	run.DatasetSplit = split.String
	run.ErrorMessage = errMsg.String
	run.TotalSamples = int(total.Int64)
	run.ProcessedSamples = int(done.Int64)

	if snap.Valid && snap.String != "" {
		if err := json.Unmarshal([]byte(snap.String), &run.ConfigSnapshot); err != nil {
			return nil, fmt.Errorf("run %s: config snapshot: %w", run.ID, err)
		}
	}

	start, err := time.Parse(timeLayout, startRaw)
	if err != nil {
		return nil, fmt.Errorf("run %s: start_time: %w", run.ID, err)
	}
	run.StartTime = start

	if endRaw.Valid && endRaw.String != "" {
		end, err := time.Parse(timeLayout, endRaw.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: end_time: %w", run.ID, err)
		}
		run.EndTime = &end
	}
	return &run, nil
}

// SaveResultsBatch inserts a batch of results in a single transaction.
func (s *SQLiteStore) SaveResultsBatch(ctx context.Context, results []*domain.BenchmarkResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO benchmark_results
		(run_id, sample_index, input_text, expected_label, predicted_label,
		 is_correct, result_type, analysis_details, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		details, err := json.Marshal(r.AnalysisDetails)
		if err != nil {
			return err
		}
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			r.RunID, r.SampleIndex, r.InputText, r.ExpectedLabel, r.PredictedLabel,
			boolToInt(r.IsCorrect), r.ResultType, string(details), r.LatencyMs,
			createdAt.UTC().Format(timeLayout),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetResults returns a run's results, optionally filtered by result type.
func (s *SQLiteStore) GetResults(ctx context.Context, runID, resultType string) ([]*domain.BenchmarkResult, error) {
	query := `
		SELECT run_id, sample_index, input_text, expected_label, predicted_label,
		       is_correct, result_type, analysis_details, latency_ms, created_at
		FROM benchmark_results WHERE run_id = ?`
	args := []any{runID}
	if resultType != "" {
		query += " AND result_type = ?"
		args = append(args, resultType)
	}
	query += " ORDER BY sample_index"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.BenchmarkResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResultsBySampleIndex returns a run's results keyed by sample index, the
// shape the comparison engine joins on.
func (s *SQLiteStore) ResultsBySampleIndex(ctx context.Context, runID string) (map[int]*domain.BenchmarkResult, error) {
	results, err := s.GetResults(ctx, runID, "")
	if err != nil {
		return nil, err
	}
	out := make(map[int]*domain.BenchmarkResult, len(results))
	for _, r := range results {
		out[r.SampleIndex] = r
	}
	return out, nil
}

func scanResult(rows *sql.Rows) (*domain.BenchmarkResult, error) {
	var (
		r          domain.BenchmarkResult
		isCorrect  int
		details    sql.NullString
		latency    sql.NullFloat64
		createdRaw string
	)
	if err := rows.Scan(&r.RunID, &r.SampleIndex, &r.InputText, &r.ExpectedLabel,
		&r.PredictedLabel, &isCorrect, &r.ResultType, &details, &latency, &createdRaw); err != nil {
		return nil, err
	}
	r.IsCorrect = isCorrect != 0
	r.LatencyMs = latency.Float64
	if details.Valid && details.String != "" && details.String != "null" {
		if err := json.Unmarshal([]byte(details.String), &r.AnalysisDetails); err != nil {
			return nil, err
		}
	}
	created, err := time.Parse(timeLayout, createdRaw)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = created
	return &r, nil
}

func (s *SQLiteStore) SaveMetrics(ctx context.Context, m *domain.BenchmarkMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO benchmark_metrics
		(run_id, true_positives, false_positives, true_negatives, false_negatives,
		 precision, recall, f1_score, accuracy,
		 avg_latency_ms, p50_latency_ms, p95_latency_ms, p99_latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives,
		m.Precision, m.Recall, m.F1Score, m.Accuracy,
		m.AvgLatencyMs, m.P50LatencyMs, m.P95LatencyMs, m.P99LatencyMs,
	)
	return err
}

func (s *SQLiteStore) GetMetrics(ctx context.Context, runID string) (*domain.BenchmarkMetrics, error) {
	var m domain.BenchmarkMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, true_positives, false_positives, true_negatives, false_negatives,
		       precision, recall, f1_score, accuracy,
		       avg_latency_ms, p50_latency_ms, p95_latency_ms, p99_latency_ms
		FROM benchmark_metrics WHERE run_id = ?`, runID).Scan(
		&m.RunID, &m.TruePositives, &m.FalsePositives, &m.TrueNegatives, &m.FalseNegatives,
		&m.Precision, &m.Recall, &m.F1Score, &m.Accuracy,
		&m.AvgLatencyMs, &m.P50LatencyMs, &m.P95LatencyMs, &m.P99LatencyMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "metrics", ID: runID}
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
