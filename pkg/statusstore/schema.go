package statusstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema for the status database.
//
// loader_status is the shared per-loader status table, keyed by job name;
// orchestrator_runs records one row per completed orchestrator run.
// Both tables are designed for backward-compatible, additive extension.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS loader_status (
	job_name          TEXT PRIMARY KEY,
	last_run_at       TIMESTAMP NOT NULL,
	status            TEXT NOT NULL,
	records_processed INTEGER NOT NULL DEFAULT 0,
	notes             TEXT,
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS orchestrator_runs (
	run_id         TEXT PRIMARY KEY,
	started_at     TIMESTAMP NOT NULL,
	ended_at       TIMESTAMP NOT NULL,
	total_jobs     INTEGER NOT NULL,
	successful     INTEGER NOT NULL,
	failed         INTEGER NOT NULL,
	records_total  INTEGER NOT NULL,
	report_path    TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at
	ON orchestrator_runs (started_at DESC);
`

// EnsureSchema creates the status tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply status store schema: %w", err)
	}
	return nil
}
