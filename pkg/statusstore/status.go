package statusstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Status values persisted in loader_status. Part of the stable contract
// with dashboards and downstream tooling.
const (
	// StatusSuccess - the loader's last run succeeded.
	StatusSuccess = "success"
	// StatusFailed - the loader ran but exited non-zero or timed out.
	StatusFailed = "failed"
	// StatusError - the loader could not be started at all.
	StatusError = "error"
)

// LoaderStatus is one row of the shared loader-status table.
type LoaderStatus struct {
	JobName          string
	LastRunAt        time.Time
	Status           string
	RecordsProcessed int64
	Notes            string
	UpdatedAt        time.Time
}

// RunRow is one row of the orchestrator run history.
type RunRow struct {
	RunID        string
	StartedAt    time.Time
	EndedAt      time.Time
	TotalJobs    int
	Successful   int
	Failed       int
	RecordsTotal int64
	ReportPath   string
}

// UpsertLoaderStatus writes a loader's latest status, keyed by job name.
// Last write wins.
func UpsertLoaderStatus(ctx context.Context, db *sql.DB, st LoaderStatus) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO loader_status
		 (job_name, last_run_at, status, records_processed, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_name) DO UPDATE SET
		 	last_run_at = excluded.last_run_at,
		 	status = excluded.status,
		 	records_processed = excluded.records_processed,
		 	notes = excluded.notes,
		 	updated_at = excluded.updated_at`,
		st.JobName, st.LastRunAt, st.Status, st.RecordsProcessed, st.Notes, st.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert loader status %s: %w", st.JobName, err)
	}
	return nil
}

// GetLoaderStatus retrieves one loader's status row.
func GetLoaderStatus(ctx context.Context, db *sql.DB, jobName string) (*LoaderStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var st LoaderStatus
	var notes sql.NullString

	err := db.QueryRowContext(ctx,
		`SELECT job_name, last_run_at, status, records_processed, notes, updated_at
		 FROM loader_status WHERE job_name = ?`,
		jobName).Scan(&st.JobName, &st.LastRunAt, &st.Status, &st.RecordsProcessed, &notes, &st.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loader status not found: %s", jobName)
	}
	if err != nil {
		return nil, fmt.Errorf("get loader status: %w", err)
	}

	if notes.Valid {
		st.Notes = notes.String
	}
	return &st, nil
}

// ListLoaderStatus returns every loader's status row ordered by job name.
func ListLoaderStatus(ctx context.Context, db *sql.DB) ([]LoaderStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := db.QueryContext(ctx,
		`SELECT job_name, last_run_at, status, records_processed, notes, updated_at
		 FROM loader_status
		 ORDER BY job_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list loader status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []LoaderStatus
	for rows.Next() {
		var st LoaderStatus
		var notes sql.NullString

		if err := rows.Scan(&st.JobName, &st.LastRunAt, &st.Status, &st.RecordsProcessed, &notes, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan loader status: %w", err)
		}
		if notes.Valid {
			st.Notes = notes.String
		}
		statuses = append(statuses, st)
	}

	return statuses, rows.Err()
}

// InsertRun records a completed orchestrator run in the history table.
func InsertRun(ctx context.Context, db *sql.DB, run RunRow) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO orchestrator_runs
		 (run_id, started_at, ended_at, total_jobs, successful, failed, records_total, report_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.EndedAt, run.TotalJobs, run.Successful,
		run.Failed, run.RecordsTotal, run.ReportPath)

	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}
