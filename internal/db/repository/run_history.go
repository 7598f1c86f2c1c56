// Package repository persists ingestion run history to SQLite.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lakeloader/internal/domain"
)

var _ domain.RunRepository = (*RunHistoryRepo)(nil)

// RunHistoryRepo stores runs and their per-file outcomes. Writes go through
// the single-connection write pool; reads may use a separate read pool.
type RunHistoryRepo struct {
	db *sql.DB
}

// NewRunHistoryRepo creates a repository over the given pool.
func NewRunHistoryRepo(db *sql.DB) *RunHistoryRepo {
	return &RunHistoryRepo{db: db}
}

// InsertRun records the start of a run.
func (r *RunHistoryRepo) InsertRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, processed, skipped, status)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.StartedAt, rec.Processed, rec.Skipped, rec.Status)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// FinishRun closes out a run with its final counts and status.
func (r *RunHistoryRepo) FinishRun(ctx context.Context, runID string, finishedAt time.Time, processed, skipped int, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, status = ?
		 WHERE run_id = ?`,
		finishedAt, processed, skipped, status, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}

// InsertOutcome appends one per-file outcome to a run.
func (r *RunHistoryRepo) InsertOutcome(ctx context.Context, runID string, outcome domain.IngestionOutcome) error {
	processed := 0
	if outcome.Processed {
		processed = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_outcomes (run_id, identifier, processed, reason, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, outcome.Identifier, processed, string(outcome.Reason), outcome.Detail)
	if err != nil {
		return fmt.Errorf("insert outcome for run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunHistoryRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, processed, skipped, status
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetRun returns one run by id, or nil when absent.
func (r *RunHistoryRepo) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, finished_at, processed, skipped, status
		 FROM runs WHERE run_id = ?`, runID)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListOutcomes returns a run's outcomes in insertion order.
func (r *RunHistoryRepo) ListOutcomes(ctx context.Context, runID string) ([]domain.IngestionOutcome, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT identifier, processed, reason, detail
		 FROM run_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var outcomes []domain.IngestionOutcome
	for rows.Next() {
		var o domain.IngestionOutcome
		var processed int
		var reason string
		if err := rows.Scan(&o.Identifier, &processed, &reason, &o.Detail); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Processed = processed != 0
		o.Reason = domain.SkipReason(reason)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (domain.RunRecord, error) {
	var rec domain.RunRecord
	var finishedAt sql.NullTime
	if err := row.Scan(&rec.RunID, &rec.StartedAt, &finishedAt, &rec.Processed, &rec.Skipped, &rec.Status); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("scan run: %w", err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}
