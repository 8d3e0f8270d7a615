package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/pkg/job"
	"github.com/quantfabric/batchflow/pkg/statusstore"
)

// artifactTimeLayout names report files sortably by timestamp.
const artifactTimeLayout = "20060102T150405Z"

// WriteArtifact persists the report as a timestamped JSON file in dir and
// returns the file path.
func WriteArtifact(dir string, rep *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create logs directory: %w", err)
	}

	name := fmt.Sprintf("run_report_%s.json", rep.GeneratedAt.UTC().Format(artifactTimeLayout))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write run report: %w", err)
	}
	return path, nil
}

// PushStatuses forwards per-job status to the shared loader-status table.
//
// This is best-effort by contract: a failure to update a loader's status
// row is logged and swallowed, never escalated to the caller.
func PushStatuses(ctx context.Context, db *sql.DB, outcomes []*job.Outcome, logger *zap.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, out := range outcomes {
		st := statusstore.LoaderStatus{
			JobName:          out.Name,
			LastRunAt:        out.StartTime,
			Status:           statusFor(out),
			RecordsProcessed: out.RecordsProcessed,
			Notes:            notesFor(out),
		}
		if err := statusstore.UpsertLoaderStatus(ctx, db, st); err != nil {
			logger.Warn("failed to update loader status",
				zap.String("job", out.Name),
				zap.Error(err))
		}
	}
}

// RecordRun inserts the run summary into the history table, best-effort.
func RecordRun(ctx context.Context, db *sql.DB, rep *Report, artifactPath string, logger *zap.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	row := statusstore.RunRow{
		RunID:        rep.RunID,
		StartedAt:    rep.StartedAt,
		EndedAt:      rep.EndedAt,
		TotalJobs:    rep.TotalJobs,
		Successful:   rep.Successful,
		Failed:       rep.Failed,
		RecordsTotal: rep.TotalRecords,
		ReportPath:   artifactPath,
	}
	if err := statusstore.InsertRun(ctx, db, row); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

// statusFor maps an outcome to the status-table vocabulary: spawn-level
// failures (the loader never ran) are "error", runtime failures "failed".
func statusFor(out *job.Outcome) string {
	if out.Success {
		return statusstore.StatusSuccess
	}
	if out.Err != nil {
		switch out.Err.Kind {
		case job.ErrMissingTarget, job.ErrEmptyTarget, job.ErrMissingEnv:
			return statusstore.StatusError
		}
	}
	return statusstore.StatusFailed
}

func notesFor(out *job.Outcome) string {
	if out.Err != nil {
		return out.Err.Message
	}
	if len(out.Warnings) > 0 {
		return fmt.Sprintf("%d warning(s); completed in %s",
			len(out.Warnings), out.Duration.Round(time.Millisecond))
	}
	return ""
}
