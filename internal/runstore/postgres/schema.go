package postgres

import (
	"context"
	"errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS reconciliation_runs (
	id            TEXT PRIMARY KEY,
	cycle_label   TEXT NOT NULL,
	cycle_start   TIMESTAMPTZ NOT NULL,
	window_months INT NOT NULL,
	status        TEXT NOT NULL,
	source_file   TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	event_count   INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reconciliation_overages (
	run_id       TEXT NOT NULL REFERENCES reconciliation_runs(id),
	position     INT NOT NULL,
	property_key TEXT NOT NULL,
	total_cost   NUMERIC(12,2) NOT NULL,
	allowance    NUMERIC(12,2) NOT NULL,
	overage      NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_started
	ON reconciliation_runs (started_at DESC);
`

// EnsureSchema creates the archive tables when they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}
