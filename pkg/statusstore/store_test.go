package statusstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory", func(t *testing.T) {
		db, err := Open(ctx, Config{Path: ":memory:"})
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		var one int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT 1").Scan(&one))
		assert.Equal(t, 1, one)
	})

	t.Run("creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "status.db")
		db, err := Open(ctx, Config{Path: path})
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		require.NoError(t, UpsertLoaderStatus(ctx, db, LoaderStatus{
			JobName: "load_symbols", Status: StatusSuccess, LastRunAt: time.Now().UTC(),
		}))
	})

	t.Run("empty path rejected", func(t *testing.T) {
		_, err := Open(ctx, Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")
	})
}

func TestLoaderStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now().UTC().Truncate(time.Second)

	t.Run("upsert inserts then updates", func(t *testing.T) {
		require.NoError(t, UpsertLoaderStatus(ctx, db, LoaderStatus{
			JobName:          "load_prices_daily",
			LastRunAt:        now,
			Status:           StatusFailed,
			RecordsProcessed: 0,
			Notes:            "exited with code 1",
		}))

		require.NoError(t, UpsertLoaderStatus(ctx, db, LoaderStatus{
			JobName:          "load_prices_daily",
			LastRunAt:        now.Add(time.Hour),
			Status:           StatusSuccess,
			RecordsProcessed: 4521,
		}))

		st, err := GetLoaderStatus(ctx, db, "load_prices_daily")
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, st.Status)
		assert.Equal(t, int64(4521), st.RecordsProcessed)
		assert.Empty(t, st.Notes)
		assert.False(t, st.UpdatedAt.IsZero())
	})

	t.Run("get unknown job", func(t *testing.T) {
		_, err := GetLoaderStatus(ctx, db, "no_such_job")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("list ordered by name", func(t *testing.T) {
		require.NoError(t, UpsertLoaderStatus(ctx, db, LoaderStatus{
			JobName: "compute_scores", LastRunAt: now, Status: StatusError, Notes: "target not found",
		}))

		statuses, err := ListLoaderStatus(ctx, db)
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		assert.Equal(t, "compute_scores", statuses[0].JobName)
		assert.Equal(t, "load_prices_daily", statuses[1].JobName)
	})
}

func TestInsertRun(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	started := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, InsertRun(ctx, db, RunRow{
		RunID:        "run-abc",
		StartedAt:    started,
		EndedAt:      started.Add(45 * time.Minute),
		TotalJobs:    9,
		Successful:   8,
		Failed:       1,
		RecordsTotal: 120000,
		ReportPath:   "logs/run_report_20260826T010000Z.json",
	}))

	// Same run id twice violates the primary key.
	err = InsertRun(ctx, db, RunRow{RunID: "run-abc", StartedAt: started, EndedAt: started})
	require.Error(t, err)
}
