// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/skillcast/skillcast/internal/forecast"
	"github.com/skillcast/skillcast/internal/logging"
)

// DuckDBStore implements forecast.RunStore on DuckDB for durable audit
// history. DuckDB's columnar layout keeps analytical reads over large run
// histories cheap while the write path stays a simple transactional
// append.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenDuckDB opens (or creates) a DuckDB ledger at path and ensures the
// schema exists. Use ":memory:" for an ephemeral ledger.
func OpenDuckDB(ctx context.Context, path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb ledger: %w", err)
	}
	store := NewDuckDBStore(db)
	if err := store.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewDuckDBStore wraps an existing DuckDB handle. The caller must run
// CreateTables before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTables creates the ledger tables if they don't exist.
func (s *DuckDBStore) CreateTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS forecast_runs (
			id TEXT PRIMARY KEY,
			run_date TIMESTAMPTZ NOT NULL,
			triggered_by TEXT NOT NULL,
			horizon_years INTEGER NOT NULL,
			engine_used TEXT NOT NULL,
			total_predictions INTEGER NOT NULL,
			total_recommendations INTEGER NOT NULL,
			skipped_contexts INTEGER NOT NULL,
			parameters JSON
		);

		CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			job_role_id TEXT NOT NULL,
			skill_id TEXT NOT NULL,
			horizon_years INTEGER NOT NULL,
			level TEXT NOT NULL,
			score DOUBLE NOT NULL,
			engine_id TEXT NOT NULL,
			rationale TEXT,
			context JSON NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recommendations (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			skill_id TEXT NOT NULL,
			job_role_id TEXT NOT NULL,
			horizon_years INTEGER NOT NULL,
			priority TEXT NOT NULL,
			action TEXT NOT NULL,
			budget_hint_k DOUBLE NOT NULL,
			rationale TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_run_date ON forecast_runs(run_date DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_horizon ON forecast_runs(horizon_years);
		CREATE INDEX IF NOT EXISTS idx_predictions_run_id ON predictions(run_id);
		CREATE INDEX IF NOT EXISTS idx_predictions_skill_id ON predictions(skill_id);
		CREATE INDEX IF NOT EXISTS idx_recommendations_run_id ON recommendations(run_id)
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute ledger schema statement: %w", err)
		}
	}

	logging.Info().Msg("Forecast ledger tables created/verified")
	return nil
}

// SaveRun appends one run with all its predictions and recommendations in
// a single transaction.
func (s *DuckDBStore) SaveRun(ctx context.Context, run *forecast.RunRecord, preds []forecast.PredictionResult, recs []forecast.Recommendation) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	for i := range preds {
		if err := insertPrediction(ctx, tx, &preds[i]); err != nil {
			return err
		}
	}
	for i := range recs {
		if err := insertRecommendation(ctx, tx, &recs[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run *forecast.RunRecord) error {
	params := marshalParameters(run.Parameters)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO forecast_runs (
			id, run_date, triggered_by, horizon_years, engine_used,
			total_predictions, total_recommendations, skipped_contexts, parameters
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RunDate, run.TriggeredBy, run.HorizonYears, run.EngineUsed,
		run.TotalPredictions, run.TotalRecommendations, run.SkippedContexts, params,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func insertPrediction(ctx context.Context, tx *sql.Tx, pred *forecast.PredictionResult) error {
	contextJSON, err := json.Marshal(pred.Context)
	if err != nil {
		return fmt.Errorf("marshal context for prediction %s: %w", pred.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO predictions (
			id, run_id, job_role_id, skill_id, horizon_years,
			level, score, engine_id, rationale, context, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pred.ID, pred.RunID, pred.Context.JobRoleID, pred.Context.SkillID,
		pred.Context.HorizonYears, string(pred.Level), pred.Score, pred.EngineID,
		pred.Rationale, string(contextJSON), pred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", pred.ID, err)
	}
	return nil
}

func insertRecommendation(ctx context.Context, tx *sql.Tx, rec *forecast.Recommendation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO recommendations (
			id, run_id, skill_id, job_role_id, horizon_years,
			priority, action, budget_hint_k, rationale, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.SkillID, rec.JobRoleID, rec.HorizonYears,
		string(rec.Priority), rec.Action, rec.BudgetHintK, rec.Rationale, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation %s: %w", rec.ID, err)
	}
	return nil
}

// marshalParameters marshals run parameters to a JSON string for DuckDB.
func marshalParameters(params map[string]string) string {
	if len(params) == 0 {
		return "{}"
	}
	if data, err := json.Marshal(params); err == nil {
		return string(data)
	}
	return "{}"
}

const runColumns = `
	id, run_date, triggered_by, horizon_years, engine_used,
	total_predictions, total_recommendations, skipped_contexts,
	CAST(parameters AS VARCHAR) as parameters
`

// GetRun retrieves one run record by ID.
func (s *DuckDBStore) GetRun(ctx context.Context, runID string) (*forecast.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM forecast_runs WHERE id = ?", runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", forecast.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, up to limit (0 for all).
func (s *DuckDBStore) ListRuns(ctx context.Context, limit int) ([]forecast.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + runColumns + " FROM forecast_runs ORDER BY run_date DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []forecast.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan run row")
			continue
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

const predictionColumns = `
	id, run_id, level, score, engine_id, rationale,
	CAST(context AS VARCHAR) as context, created_at
`

// GetPrediction retrieves one prediction by ID, including its stored
// context so it can be re-explained later.
func (s *DuckDBStore) GetPrediction(ctx context.Context, predictionID string) (*forecast.PredictionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+predictionColumns+" FROM predictions WHERE id = ?", predictionID)
	pred, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", forecast.ErrPredictionNotFound, predictionID)
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return pred, nil
}

// runExistsLocked reports whether a run row exists. Callers hold s.mu.
func (s *DuckDBStore) runExistsLocked(ctx context.Context, runID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM forecast_runs WHERE id = ?", runID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check run existence: %w", err)
	}
	return n > 0, nil
}

// PredictionsByRun returns a run's predictions in role-then-skill order.
func (s *DuckDBStore) PredictionsByRun(ctx context.Context, runID string) ([]forecast.PredictionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ok, err := s.runExistsLocked(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+predictionColumns+" FROM predictions WHERE run_id = ? ORDER BY job_role_id, skill_id",
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var preds []forecast.PredictionResult
	for rows.Next() {
		pred, err := scanPrediction(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan prediction row")
			continue
		}
		preds = append(preds, *pred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}
	return preds, nil
}

// QueryPredictions returns prediction history across runs, newest first,
// narrowed by the filter.
func (s *DuckDBStore) QueryPredictions(ctx context.Context, filter forecast.PredictionFilter) ([]forecast.PredictionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + predictionColumns + " FROM predictions WHERE 1=1"
	var args []any
	if filter.JobRoleID != "" {
		query += " AND job_role_id = ?"
		args = append(args, filter.JobRoleID)
	}
	if filter.SkillID != "" {
		query += " AND skill_id = ?"
		args = append(args, filter.SkillID)
	}
	if filter.HorizonYears > 0 {
		query += " AND horizon_years = ?"
		args = append(args, filter.HorizonYears)
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction history: %w", err)
	}
	defer rows.Close()

	var preds []forecast.PredictionResult
	for rows.Next() {
		pred, err := scanPrediction(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan prediction row")
			continue
		}
		preds = append(preds, *pred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction history: %w", err)
	}
	return preds, nil
}

// RecommendationsByRun returns a run's recommendations, HIGH priority
// first.
func (s *DuckDBStore) RecommendationsByRun(ctx context.Context, runID string) ([]forecast.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ok, err := s.runExistsLocked(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", forecast.ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, skill_id, job_role_id, horizon_years,
			priority, action, budget_hint_k, rationale, created_at
		FROM recommendations
		WHERE run_id = ?
		ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
			job_role_id, skill_id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []forecast.Recommendation
	for rows.Next() {
		var rec forecast.Recommendation
		var priority string
		err := rows.Scan(&rec.ID, &rec.RunID, &rec.SkillID, &rec.JobRoleID,
			&rec.HorizonYears, &priority, &rec.Action, &rec.BudgetHintK,
			&rec.Rationale, &rec.CreatedAt)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan recommendation row")
			continue
		}
		rec.Priority = forecast.Level(priority)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recommendations: %w", err)
	}
	return recs, nil
}

// Stats summarizes the ledger contents for the health and admin surfaces.
type Stats struct {
	TotalRuns        int64            `json:"total_runs"`
	TotalPredictions int64            `json:"total_predictions"`
	RunsByEngine     map[string]int64 `json:"runs_by_engine"`
	OldestRun        *time.Time       `json:"oldest_run,omitempty"`
	NewestRun        *time.Time       `json:"newest_run,omitempty"`
}

// GetStats returns ledger-wide counts.
func (s *DuckDBStore) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{RunsByEngine: make(map[string]int64)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM forecast_runs").Scan(&stats.TotalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&stats.TotalPredictions); err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT engine_used, COUNT(*) FROM forecast_runs GROUP BY engine_used")
	if err != nil {
		return nil, fmt.Errorf("failed to get engine counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var engine string
		var count int64
		if err := rows.Scan(&engine, &count); err == nil {
			stats.RunsByEngine[engine] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating engine counts: %w", err)
	}

	var oldest, newest sql.NullTime
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(run_date), MAX(run_date) FROM forecast_runs").Scan(&oldest, &newest); err == nil {
		if oldest.Valid {
			stats.OldestRun = &oldest.Time
		}
		if newest.Valid {
			stats.NewestRun = &newest.Time
		}
	}

	return stats, nil
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(src scanner) (*forecast.RunRecord, error) {
	var run forecast.RunRecord
	var params sql.NullString
	err := src.Scan(&run.ID, &run.RunDate, &run.TriggeredBy, &run.HorizonYears,
		&run.EngineUsed, &run.TotalPredictions, &run.TotalRecommendations,
		&run.SkippedContexts, &params)
	if err != nil {
		return nil, err
	}
	if params.Valid && params.String != "" && params.String != "{}" {
		if err := json.Unmarshal([]byte(params.String), &run.Parameters); err != nil {
			logging.Debug().Err(err).Str("parameters", params.String).Msg("Failed to parse run parameters JSON")
		}
	}
	return &run, nil
}

func scanPrediction(src scanner) (*forecast.PredictionResult, error) {
	var pred forecast.PredictionResult
	var level string
	var rationale sql.NullString
	var contextJSON string
	err := src.Scan(&pred.ID, &pred.RunID, &level, &pred.Score, &pred.EngineID,
		&rationale, &contextJSON, &pred.CreatedAt)
	if err != nil {
		return nil, err
	}
	pred.Level = forecast.Level(level)
	if rationale.Valid {
		pred.Rationale = rationale.String
	}
	if err := json.Unmarshal([]byte(contextJSON), &pred.Context); err != nil {
		return nil, fmt.Errorf("parse prediction context: %w", err)
	}
	return &pred, nil
}

// Close closes the underlying database handle.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
