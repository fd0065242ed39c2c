// Package audit persists run artifacts (classification decisions,
// selection assignments, module activations) to a local SQLite database.
// The decision core itself holds no cross-run state; the pipeline caller
// writes here after the fact so operators can inspect why a run behaved
// the way it did.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"lexflow/internal/pipeline"
)

// Store is a SQLite-backed audit trail.
type Store struct {
	db *sql.DB
}

// Open creates or opens the audit database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			output_type TEXT,
			started_at TEXT,
			duration_ms INTEGER,
			fallbacks INTEGER,
			active_modules INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			document_id TEXT,
			category_id TEXT,
			confidence REAL,
			rationale TEXT,
			fallback_applied INTEGER,
			fallback_reason TEXT,
			classified_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			run_id TEXT,
			document_id TEXT,
			role TEXT,
			output_type TEXT,
			rank INTEGER,
			PRIMARY KEY (run_id, document_id)
		);`,
		`CREATE TABLE IF NOT EXISTS activations (
			run_id TEXT,
			module_id TEXT,
			active INTEGER,
			evaluated_variables TEXT,
			missing_variables TEXT,
			PRIMARY KEY (run_id, module_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun writes the full report in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *pipeline.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, output_type, started_at, duration_ms, fallbacks, active_modules)
		VALUES (?, ?, ?, ?, ?, ?)
	`, report.RunID, report.OutputType, report.StartedAt.Format("2006-01-02T15:04:05Z"),
		report.Duration.Milliseconds(), report.FallbacksApplied, report.ActiveModules)
	if err != nil {
		return err
	}

	for _, d := range report.Decisions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decisions (id, run_id, document_id, category_id, confidence, rationale, fallback_applied, fallback_reason, classified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.ID.String(), report.RunID, d.DocumentID, d.CategoryID, d.Confidence, d.Rationale,
			boolToInt(d.FallbackApplied), d.FallbackReason, d.ClassifiedAt.Format("2006-01-02T15:04:05Z"))
		if err != nil {
			return err
		}
	}

	for _, a := range report.Assignments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (run_id, document_id, role, output_type, rank)
			VALUES (?, ?, ?, ?, ?)
		`, report.RunID, a.DocumentID, string(a.Role), a.OutputType, a.Rank)
		if err != nil {
			return err
		}
	}

	for _, act := range report.Activations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activations (run_id, module_id, active, evaluated_variables, missing_variables)
			VALUES (?, ?, ?, ?, ?)
		`, report.RunID, act.ModuleID, boolToInt(act.Active),
			strings.Join(act.EvaluatedVariables, ","), strings.Join(act.MissingVariables, ","))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID         string
	OutputType    string
	StartedAt     string
	Fallbacks     int
	ActiveModules int
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, output_type, started_at, fallbacks, active_modules
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.OutputType, &r.StartedAt, &r.Fallbacks, &r.ActiveModules); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FallbackDecisions lists the decisions of a run where the fallback policy
// fired, for operator review.
func (s *Store) FallbackDecisions(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id || ' -> ' || category_id || ' (' || fallback_reason || ')'
		FROM decisions WHERE run_id = ? AND fallback_applied = 1
		ORDER BY document_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
