// Package job defines the static and runtime entities the orchestrator
// schedules: the declarative Spec for one loader program and the Outcome
// recorded for each execution.
//
// Loaders are opaque external programs. The orchestrator never assumes
// anything about what a loader does internally; it only knows the loader's
// invocation target, its scheduling metadata, and the exit-code contract.
package job

import "time"

// Priority is the coarse-grained scheduling tier of a loader.
//
// Tiers execute strictly in order: all critical jobs finish before any
// high job starts, and so on.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists all tiers in execution order.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// Rank returns the execution rank of a priority (lower runs first).
// Unknown priorities rank after low so they are never silently promoted.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the four known tiers.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// Spec is the immutable configuration for one schedulable loader.
//
// Specs are built once at startup from the built-in job set, optionally
// overridden by a manifest file, and are read-only for the duration of
// a run. Name is the graph node key and must be unique across the set.
type Spec struct {
	// Name uniquely identifies the loader across the whole job set.
	Name string `json:"name" yaml:"name"`

	// Target is the external program to invoke (path or command).
	// The orchestrator treats it as opaque.
	Target string `json:"target" yaml:"target"`

	// Priority selects the execution tier.
	Priority Priority `json:"priority" yaml:"priority"`

	// Timeout bounds a single execution attempt. Must be positive.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RetryBudget is the number of additional attempts after the first.
	RetryBudget int `json:"retry_budget" yaml:"retry_budget"`

	// Dependencies names other Specs that must be resolved earlier.
	// A name not present in the job set is treated as already satisfied.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// RequiredEnv lists environment variables that must be set before
	// the target is spawned.
	RequiredEnv []string `json:"required_env,omitempty" yaml:"required_env,omitempty"`

	// RequiresMarketHours is a scheduling-policy hint consumed by the
	// run command. The core executor does not enforce it.
	RequiresMarketHours bool `json:"requires_market_hours,omitempty" yaml:"requires_market_hours,omitempty"`
}

// ErrorKind classifies why a job attempt failed.
//
// These values are persisted in run reports and the status table, so they
// are part of the stable on-disk contract.
type ErrorKind string

const (
	// ErrMissingTarget - the invocation target does not exist.
	ErrMissingTarget ErrorKind = "missing_target"

	// ErrEmptyTarget - the invocation target exists but is zero-length.
	ErrEmptyTarget ErrorKind = "empty_target"

	// ErrMissingEnv - a required environment variable is unset.
	ErrMissingEnv ErrorKind = "missing_env"

	// ErrTimeout - the child process exceeded its configured timeout.
	ErrTimeout ErrorKind = "timeout"

	// ErrExit - the child process exited with a non-zero status.
	ErrExit ErrorKind = "exit"
)

// Error is the failure recorded on an Outcome.
//
// Job-level failures are data, not control flow: they never propagate as
// Go errors past the retry loop.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable detail. For exit failures it carries
	// the exit code and captured stderr; for timeouts it names the
	// configured timeout.
	Message string `json:"message"`

	// ExitCode is the child's exit status for exit failures.
	ExitCode int `json:"exit_code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Outcome is the recorded result of attempting one Spec during a run.
//
// An Outcome is created at the start of the first attempt, updated in place
// across retries by the retry coordinator that owns it, and is immutable
// once handed to the concurrent runner.
type Outcome struct {
	// Name echoes the Spec name.
	Name string `json:"name"`

	// Success is true only if the final attempt exited zero.
	Success bool `json:"success"`

	// StartTime and EndTime bound the final attempt.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Duration is EndTime - StartTime for the final attempt.
	Duration time.Duration `json:"duration_ns"`

	// RecordsProcessed is a best-effort count scraped from the loader's
	// stdout. It is advisory only and never affects success or failure.
	RecordsProcessed int64 `json:"records_processed"`

	// Err is the failure of the final attempt, nil on success.
	Err *Error `json:"error,omitempty"`

	// Warnings carries stderr lines emitted by a loader that still
	// succeeded.
	Warnings []string `json:"warnings,omitempty"`

	// AttemptsUsed is the 0-based index of the attempt that concluded
	// the retry loop (0 means the first attempt decided the outcome).
	AttemptsUsed int `json:"attempts_used"`
}
