package runner

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/pkg/executor"
	"github.com/quantfabric/batchflow/pkg/job"
)

// Backoff defaults: linear 30s per consumed attempt, capped at 5 minutes.
const (
	backoffStep = 30 * time.Second
	backoffCap  = 5 * time.Minute
)

// linearBackoff implements backoff.BackOff with the orchestrator's retry
// policy: the nth retry waits min(30s * n, 300s).
type linearBackoff struct {
	attempt int
}

// NextBackOff returns the wait before the next retry.
func (b *linearBackoff) NextBackOff() time.Duration {
	b.attempt++
	d := time.Duration(b.attempt) * backoffStep
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// Reset restarts the policy for a new job.
func (b *linearBackoff) Reset() {
	b.attempt = 0
}

// Compile-time check against the shared backoff contract.
var _ backoff.BackOff = (*linearBackoff)(nil)

// RetryCoordinator executes a Spec via the Executor up to
// RetryBudget + 1 total attempts and returns the outcome of the last one.
type RetryCoordinator struct {
	exec   executor.Executor
	logger *zap.Logger

	// newPolicy builds a fresh backoff policy per job. Retry sequences
	// run concurrently, so policy state is never shared across jobs.
	newPolicy func() backoff.BackOff

	// after is swapped out in tests to avoid real sleeps.
	after func(d time.Duration) <-chan time.Time
}

// NewRetryCoordinator wraps an executor with the default linear retry
// policy.
func NewRetryCoordinator(exec executor.Executor, logger *zap.Logger) *RetryCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryCoordinator{
		exec:      exec,
		logger:    logger,
		newPolicy: func() backoff.BackOff { return &linearBackoff{} },
		after:     time.After,
	}
}

// WithBackOff replaces the per-job backoff policy. Returns the
// coordinator for chaining.
func (r *RetryCoordinator) WithBackOff(newPolicy func() backoff.BackOff) *RetryCoordinator {
	r.newPolicy = newPolicy
	return r
}

// Run executes spec with bounded retries.
//
// The first attempt starts immediately; each subsequent attempt waits out
// the backoff policy first (linear by default). A policy returning
// backoff.Stop ends the sequence early even with budget remaining. A
// cooperative shutdown observed before a further
// attempt (including during the backoff sleep) stops the loop early, and
// the most recent outcome is still returned. The returned outcome's
// AttemptsUsed is the 0-based index of the attempt that concluded the loop.
func (r *RetryCoordinator) Run(ctx context.Context, rc *RunContext, spec job.Spec) *job.Outcome {
	policy := r.newPolicy()
	policy.Reset()

	var out *job.Outcome
	for attempt := 0; attempt <= spec.RetryBudget; attempt++ {
		if attempt > 0 {
			wait := policy.NextBackOff()
			if wait == backoff.Stop {
				// The policy gave up before the budget did.
				return out
			}
			r.logger.Info("retrying loader",
				zap.String("job", spec.Name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", spec.RetryBudget+1),
				zap.Duration("backoff", wait))

			if !r.sleep(ctx, rc, wait) {
				// Shutdown or cancellation during backoff: return the
				// most recent outcome as-is.
				return out
			}
		}

		out = r.exec.Run(ctx, spec)
		out.AttemptsUsed = attempt

		if out.Success {
			return out
		}

		r.logger.Warn("loader attempt failed",
			zap.String("job", spec.Name),
			zap.Int("attempt", attempt+1),
			zap.String("error", errMessage(out)))

		if rc.ShutdownRequested() {
			return out
		}
	}

	return out
}

// sleep waits for d, returning false if shutdown or cancellation
// interrupted the wait.
func (r *RetryCoordinator) sleep(ctx context.Context, rc *RunContext, d time.Duration) bool {
	if rc.ShutdownRequested() {
		return false
	}
	select {
	case <-r.after(d):
		return true
	case <-rc.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func errMessage(out *job.Outcome) string {
	if out == nil || out.Err == nil {
		return ""
	}
	return out.Err.Error()
}
