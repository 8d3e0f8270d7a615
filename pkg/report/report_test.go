package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/batchflow/pkg/job"
	"github.com/quantfabric/batchflow/pkg/statusstore"
)

func outcome(name string, success bool, dur time.Duration, records int64) *job.Outcome {
	start := time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC)
	out := &job.Outcome{
		Name:             name,
		Success:          success,
		StartTime:        start,
		EndTime:          start.Add(dur),
		Duration:         dur,
		RecordsProcessed: records,
	}
	if !success {
		out.Err = &job.Error{Kind: job.ErrExit, Message: "exited with code 1", ExitCode: 1}
	}
	return out
}

func TestBuild(t *testing.T) {
	started := time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)

	t.Run("aggregates statistics", func(t *testing.T) {
		outcomes := []*job.Outcome{
			outcome("slow", true, 10*time.Minute, 1000),
			outcome("fast", true, time.Minute, 500),
			outcome("broken", false, 4*time.Minute, 0),
		}
		outcomes[2].AttemptsUsed = 2

		rep := Build("run-1", started, ended, outcomes)

		assert.Equal(t, 3, rep.TotalJobs)
		assert.Equal(t, 2, rep.Successful)
		assert.Equal(t, 1, rep.Failed)
		assert.InDelta(t, 66.67, rep.SuccessRate, 0.01)
		assert.Equal(t, 15*time.Minute, rep.TotalDuration)
		assert.Equal(t, 5*time.Minute, rep.AverageDuration)
		assert.Equal(t, "fast", rep.FastestJob)
		assert.Equal(t, "slow", rep.SlowestJob)
		assert.Equal(t, int64(1500), rep.TotalRecords)

		require.Len(t, rep.Failures, 1)
		assert.Equal(t, "broken", rep.Failures[0].Name)
		assert.Equal(t, job.ErrExit, rep.Failures[0].Kind)
		assert.Equal(t, 3, rep.Failures[0].Attempts)
	})

	t.Run("outcomes sorted by name", func(t *testing.T) {
		rep := Build("run-2", started, ended, []*job.Outcome{
			outcome("zeta", true, time.Second, 0),
			outcome("alpha", true, time.Second, 0),
		})
		assert.Equal(t, "alpha", rep.Outcomes[0].Name)
		assert.Equal(t, "zeta", rep.Outcomes[1].Name)
	})

	t.Run("empty run", func(t *testing.T) {
		rep := Build("run-3", started, ended, nil)
		assert.Zero(t, rep.TotalJobs)
		assert.Zero(t, rep.SuccessRate)
		assert.Empty(t, rep.FastestJob)
	})

	t.Run("repeated builds are byte identical", func(t *testing.T) {
		outcomes := []*job.Outcome{
			outcome("b", true, time.Minute, 10),
			outcome("a", false, time.Second, 0),
		}

		first := Build("run-4", started, ended, outcomes)
		second := Build("run-4", started, ended, outcomes)
		second.GeneratedAt = first.GeneratedAt

		fj, err := json.Marshal(first)
		require.NoError(t, err)
		sj, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, fj, sj)
	})
}

func TestBuildAborted(t *testing.T) {
	started := time.Now().UTC()
	failures := []string{
		"environment variable not set: BATCHFLOW_DB_URL",
		"required tool not found on PATH: python3",
	}

	rep := BuildAborted("run-5", started, failures)

	assert.Equal(t, failures, rep.PrerequisiteErrors)
	assert.Zero(t, rep.TotalJobs)
	assert.Empty(t, rep.Outcomes)
	assert.Contains(t, rep.Summary(), "aborted")
	assert.Contains(t, rep.Summary(), "2 prerequisite failure(s)")
}

func TestWriteArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	rep := Build("run-6", time.Now().UTC(), time.Now().UTC(), []*job.Outcome{
		outcome("a", true, time.Second, 42),
	})

	path, err := WriteArtifact(dir, rep)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "run_report_")
	assert.Contains(t, filepath.Base(path), rep.GeneratedAt.Format("20060102"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-6", decoded.RunID)
	assert.Equal(t, int64(42), decoded.TotalRecords)
}

func TestPushStatuses(t *testing.T) {
	ctx := context.Background()
	db, err := statusstore.Open(ctx, statusstore.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ok := outcome("load_ok", true, time.Minute, 777)
	runFail := outcome("load_fail", false, time.Minute, 0)
	spawnFail := outcome("load_spawn", false, 0, 0)
	spawnFail.Err = &job.Error{Kind: job.ErrMissingTarget, Message: "target not found: x.py"}

	PushStatuses(ctx, db, []*job.Outcome{ok, runFail, spawnFail}, nil)

	st, err := statusstore.GetLoaderStatus(ctx, db, "load_ok")
	require.NoError(t, err)
	assert.Equal(t, statusstore.StatusSuccess, st.Status)
	assert.Equal(t, int64(777), st.RecordsProcessed)

	st, err = statusstore.GetLoaderStatus(ctx, db, "load_fail")
	require.NoError(t, err)
	assert.Equal(t, statusstore.StatusFailed, st.Status)
	assert.Equal(t, "exited with code 1", st.Notes)

	st, err = statusstore.GetLoaderStatus(ctx, db, "load_spawn")
	require.NoError(t, err)
	assert.Equal(t, statusstore.StatusError, st.Status)
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	db, err := statusstore.Open(ctx, statusstore.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rep := Build("run-7", time.Now().UTC().Add(-time.Hour), time.Now().UTC(), []*job.Outcome{
		outcome("a", true, time.Minute, 10),
		outcome("b", false, time.Minute, 0),
	})

	RecordRun(ctx, db, rep, "logs/run_report_x.json", nil)

	var total, failed int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT total_jobs, failed FROM orchestrator_runs WHERE run_id = ?", "run-7").
		Scan(&total, &failed))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)
}
