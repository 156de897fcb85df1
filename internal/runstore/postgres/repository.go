// Package postgres archives reconciliation runs so past results stay
// queryable after the process exits.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	reconcile "utilibill/internal/reconcile/domain"
)

// Run is one archived reconciliation run.
type Run struct {
	ID           string
	CycleLabel   string
	CycleStart   time.Time
	WindowMonths int
	Status       string
	SourceFile   string
	StartedAt    time.Time
	FinishedAt   time.Time
	EventCount   int
}

// Repository persists runs and their overage events.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository over an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveRun inserts the run and its events in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run Run, events []reconcile.OverageEvent) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO reconciliation_runs (
	id, cycle_label, cycle_start, window_months, status, source_file,
	started_at, finished_at, event_count
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		run.ID, run.CycleLabel, run.CycleStart, run.WindowMonths, run.Status, run.SourceFile,
		run.StartedAt, run.FinishedAt, len(events),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for position, event := range events {
		_, err := tx.ExecContext(ctx, `
INSERT INTO reconciliation_overages (
	run_id, position, property_key, total_cost, allowance, overage
) VALUES ($1,$2,$3,$4,$5,$6)`,
			run.ID, position, event.PropertyKey, event.TotalCost, event.Allowance, event.Overage)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListRecent returns the most recent runs, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("run repo: nil db")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, cycle_label, cycle_start, window_months, status, source_file,
	started_at, finished_at, event_count
FROM reconciliation_runs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.CycleLabel, &run.CycleStart, &run.WindowMonths,
			&run.Status, &run.SourceFile, &run.StartedAt, &run.FinishedAt, &run.EventCount); err != nil {
			return nil, err
		}
		run.CycleStart = run.CycleStart.UTC()
		run.StartedAt = run.StartedAt.UTC()
		run.FinishedAt = run.FinishedAt.UTC()
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListEvents returns the archived events of one run in stored order.
func (r *Repository) ListEvents(ctx context.Context, runID string) ([]reconcile.OverageEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("run repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT property_key, total_cost, allowance, overage
FROM reconciliation_overages
WHERE run_id = $1
ORDER BY position ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reconcile.OverageEvent
	for rows.Next() {
		var event reconcile.OverageEvent
		if err := rows.Scan(&event.PropertyKey, &event.TotalCost, &event.Allowance, &event.Overage); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
