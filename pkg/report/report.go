// Package report aggregates job outcomes into the run summary, persists it
// as a timestamped JSON artifact, and forwards per-job status to the shared
// loader-status table.
//
// Building a report is pure and deterministic: the same outcome list always
// produces identical summary statistics, so re-running the builder over a
// persisted outcome set is safe.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfabric/batchflow/pkg/job"
)

// Failure describes one failed job in the run summary.
type Failure struct {
	// Name is the job name.
	Name string `json:"name"`

	// Error is the final attempt's failure text.
	Error string `json:"error"`

	// Kind classifies the failure.
	Kind job.ErrorKind `json:"kind"`

	// Attempts is the total number of attempts consumed (AttemptsUsed + 1).
	Attempts int `json:"attempts"`
}

// Report is the immutable summary of one orchestrator run.
type Report struct {
	// RunID correlates the report with logs and the run history table.
	RunID string `json:"run_id"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// StartedAt / EndedAt bound the whole run.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// TotalJobs is the number of jobs that produced an outcome.
	TotalJobs int `json:"total_jobs"`

	// Successful / Failed partition TotalJobs.
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	// SuccessRate is Successful/TotalJobs as a percentage (0 when empty).
	SuccessRate float64 `json:"success_rate"`

	// TotalDuration is the sum of per-job durations (not wall clock).
	TotalDuration time.Duration `json:"total_duration_ns"`

	// AverageDuration is TotalDuration / TotalJobs.
	AverageDuration time.Duration `json:"average_duration_ns"`

	// FastestJob / SlowestJob name the extremes by per-job duration.
	FastestJob string `json:"fastest_job,omitempty"`
	SlowestJob string `json:"slowest_job,omitempty"`

	// TotalRecords sums the advisory records-processed counts.
	TotalRecords int64 `json:"total_records"`

	// Failures lists every failed job with error text and attempt counts,
	// sorted by job name.
	Failures []Failure `json:"failures,omitempty"`

	// SkippedJobs names jobs excluded by scheduling policy before the
	// run (e.g. market-hours gating).
	SkippedJobs []string `json:"skipped_jobs,omitempty"`

	// PrerequisiteErrors carries the accumulated failures when the run
	// was aborted before any job executed.
	PrerequisiteErrors []string `json:"prerequisite_errors,omitempty"`

	// Outcomes is the full per-job detail, sorted by job name.
	Outcomes []*job.Outcome `json:"outcomes,omitempty"`
}

// Build aggregates outcomes into a run report.
//
// Outcomes and failures are sorted by job name so repeated builds over the
// same list produce byte-identical reports.
func Build(runID string, startedAt, endedAt time.Time, outcomes []*job.Outcome) *Report {
	rep := &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		TotalJobs:   len(outcomes),
	}

	sorted := make([]*job.Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	rep.Outcomes = sorted

	var fastest, slowest *job.Outcome
	for _, out := range sorted {
		if out.Success {
			rep.Successful++
		} else {
			rep.Failed++
			msg := ""
			kind := job.ErrorKind("")
			if out.Err != nil {
				msg = out.Err.Message
				kind = out.Err.Kind
			}
			rep.Failures = append(rep.Failures, Failure{
				Name:     out.Name,
				Error:    msg,
				Kind:     kind,
				Attempts: out.AttemptsUsed + 1,
			})
		}

		rep.TotalDuration += out.Duration
		rep.TotalRecords += out.RecordsProcessed

		if fastest == nil || out.Duration < fastest.Duration {
			fastest = out
		}
		if slowest == nil || out.Duration > slowest.Duration {
			slowest = out
		}
	}

	if rep.TotalJobs > 0 {
		rep.SuccessRate = float64(rep.Successful) / float64(rep.TotalJobs) * 100
		rep.AverageDuration = rep.TotalDuration / time.Duration(rep.TotalJobs)
		rep.FastestJob = fastest.Name
		rep.SlowestJob = slowest.Name
	}

	return rep
}

// BuildAborted creates the report for a run that never executed a job
// because prerequisites failed. The accumulated errors are carried
// verbatim.
func BuildAborted(runID string, startedAt time.Time, prereqErrors []string) *Report {
	return &Report{
		RunID:              runID,
		GeneratedAt:        time.Now().UTC(),
		StartedAt:          startedAt,
		EndedAt:            time.Now().UTC(),
		PrerequisiteErrors: prereqErrors,
	}
}

// Summary returns a one-line human summary for log output.
func (r *Report) Summary() string {
	if len(r.PrerequisiteErrors) > 0 {
		return fmt.Sprintf("run aborted: %d prerequisite failure(s)", len(r.PrerequisiteErrors))
	}
	return fmt.Sprintf("%d/%d loaders succeeded (%.1f%%), %d records processed in %s",
		r.Successful, r.TotalJobs, r.SuccessRate, r.TotalRecords,
		r.TotalDuration.Round(time.Millisecond))
}
