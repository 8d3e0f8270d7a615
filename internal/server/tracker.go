package server

import (
	"sync"
	"time"

	"github.com/quantfabric/batchflow/pkg/job"
	"github.com/quantfabric/batchflow/pkg/runner"
)

// Job execution states as reported by /runs/current.
const (
	StateRunning = "running"
	StateSuccess = "success"
	StateFailed  = "failed"
)

// JobState is the live view of one job within the current run.
type JobState struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Records    int64     `json:"records_processed,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunSnapshot is the JSON document served at /runs/current.
type RunSnapshot struct {
	RunID       string     `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	CurrentTier string     `json:"current_tier,omitempty"`
	Running     int        `json:"running"`
	Finished    int        `json:"finished"`
	Failed      int        `json:"failed"`
	Jobs        []JobState `json:"jobs"`
}

// RunTracker observes a run and maintains a snapshot for the status
// server plus the Prometheus collectors. Safe for concurrent use.
type RunTracker struct {
	mu      sync.Mutex
	metrics *Metrics

	runID     string
	startedAt time.Time
	tier      string
	order     []string
	jobs      map[string]*JobState
}

var _ runner.Observer = (*RunTracker)(nil)

// NewRunTracker creates a tracker for the given run. metrics may be nil.
func NewRunTracker(runID string, metrics *Metrics) *RunTracker {
	return &RunTracker{
		metrics:   metrics,
		runID:     runID,
		startedAt: time.Now().UTC(),
		jobs:      make(map[string]*JobState),
	}
}

// TierStarted records the tier currently being drained.
func (t *RunTracker) TierStarted(priority job.Priority, jobs int) {
	t.mu.Lock()
	t.tier = string(priority)
	t.mu.Unlock()
}

// JobStarted marks a job as running.
func (t *RunTracker) JobStarted(name string) {
	t.mu.Lock()
	if _, seen := t.jobs[name]; !seen {
		t.order = append(t.order, name)
	}
	t.jobs[name] = &JobState{
		Name:      name,
		State:     StateRunning,
		StartedAt: time.Now().UTC(),
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.jobsStarted.Inc()
		t.metrics.jobsRunning.Inc()
	}
}

// JobFinished records the final outcome of a job.
func (t *RunTracker) JobFinished(out *job.Outcome) {
	t.mu.Lock()
	st, ok := t.jobs[out.Name]
	if !ok {
		st = &JobState{Name: out.Name, StartedAt: out.StartTime}
		t.order = append(t.order, out.Name)
		t.jobs[out.Name] = st
	}
	st.FinishedAt = time.Now().UTC()
	if out.Success {
		st.State = StateSuccess
		st.Records = out.RecordsProcessed
	} else {
		st.State = StateFailed
		if out.Err != nil {
			st.Error = out.Err.Error()
		}
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.jobsRunning.Dec()
		t.metrics.jobDuration.Observe(out.Duration.Seconds())
		if out.Success {
			t.metrics.jobsFinished.WithLabelValues(StateSuccess).Inc()
			t.metrics.recordsTotal.Add(float64(out.RecordsProcessed))
		} else {
			t.metrics.jobsFinished.WithLabelValues(StateFailed).Inc()
		}
	}
}

// Snapshot returns a copy of the current run state.
func (t *RunTracker) Snapshot() RunSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := RunSnapshot{
		RunID:       t.runID,
		StartedAt:   t.startedAt,
		CurrentTier: t.tier,
		Jobs:        make([]JobState, 0, len(t.order)),
	}
	for _, name := range t.order {
		st := *t.jobs[name]
		snap.Jobs = append(snap.Jobs, st)
		switch st.State {
		case StateRunning:
			snap.Running++
		case StateSuccess:
			snap.Finished++
		case StateFailed:
			snap.Finished++
			snap.Failed++
		}
	}
	return snap
}
