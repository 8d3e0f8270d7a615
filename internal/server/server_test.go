package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/batchflow/pkg/job"
)

func newTestServer(tracker *RunTracker, metrics *Metrics) *Server {
	return New(Options{Addr: "127.0.0.1:0"}, tracker, metrics, nil)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(NewRunTracker("run-1", nil), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCurrentRun(t *testing.T) {
	t.Run("no tracker", func(t *testing.T) {
		srv := newTestServer(nil, nil)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/current", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("snapshot reflects lifecycle", func(t *testing.T) {
		tracker := NewRunTracker("run-2", nil)
		srv := newTestServer(tracker, nil)

		tracker.TierStarted(job.PriorityCritical, 2)
		tracker.JobStarted("load_symbols")
		tracker.JobStarted("load_prices_daily")
		tracker.JobFinished(&job.Outcome{
			Name:             "load_symbols",
			Success:          true,
			Duration:         time.Minute,
			RecordsProcessed: 900,
		})
		tracker.JobFinished(&job.Outcome{
			Name:     "load_prices_daily",
			Success:  false,
			Duration: time.Minute,
			Err:      &job.Error{Kind: job.ErrExit, Message: "exited with code 1", ExitCode: 1},
		})

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/current", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var snap RunSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))

		assert.Equal(t, "run-2", snap.RunID)
		assert.Equal(t, "critical", snap.CurrentTier)
		assert.Equal(t, 0, snap.Running)
		assert.Equal(t, 2, snap.Finished)
		assert.Equal(t, 1, snap.Failed)
		require.Len(t, snap.Jobs, 2)
		assert.Equal(t, "load_symbols", snap.Jobs[0].Name)
		assert.Equal(t, StateSuccess, snap.Jobs[0].State)
		assert.Equal(t, int64(900), snap.Jobs[0].Records)
		assert.Equal(t, StateFailed, snap.Jobs[1].State)
		assert.Contains(t, snap.Jobs[1].Error, "exited with code 1")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()
	tracker := NewRunTracker("run-3", metrics)
	srv := newTestServer(tracker, metrics)

	tracker.JobStarted("a")
	tracker.JobFinished(&job.Outcome{Name: "a", Success: true, Duration: time.Second, RecordsProcessed: 5})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "# HELP batchflow_jobs_started_total Number of jobs whose execution started. Counted once per job; retries do not increment.")
	assert.Contains(t, body, "batchflow_jobs_started_total 1")
	assert.Contains(t, body, `batchflow_jobs_finished_total{status="success"} 1`)
	assert.Contains(t, body, "batchflow_records_processed_total 5")
}

func TestMetricsDisabled(t *testing.T) {
	srv := newTestServer(NewRunTracker("run-4", nil), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
