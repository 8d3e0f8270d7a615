// Package runner drives the retry and concurrency machinery of a run:
// the RetryCoordinator wraps the executor with bounded retries and capped
// linear backoff, and the ConcurrentRunner executes the priority tiers
// sequentially with a bounded worker pool per tier.
package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RunContext carries the shared mutable orchestration state of one run:
// the cooperative shutdown flag and the concurrency settings.
//
// It is passed explicitly to every component instead of living in package
// globals. Setting the shutdown flag never kills running loaders; it only
// prevents new attempts and submissions from starting.
type RunContext struct {
	// RunID correlates log lines, report artifacts, and status rows.
	RunID string

	// MaxParallel is the hard cap on in-flight jobs within a tier.
	MaxParallel int

	limiter  *rate.Limiter
	shutdown atomic.Bool
	done     chan struct{}
	once     sync.Once
}

// NewRunContext creates the shared state for one run.
//
// launchRate, when positive, caps job launches per second across the whole
// run so that dozens of loaders starting at once do not stampede upstream
// APIs. Zero means unlimited.
func NewRunContext(runID string, maxParallel int, launchRate float64) *RunContext {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	rc := &RunContext{
		RunID:       runID,
		MaxParallel: maxParallel,
		done:        make(chan struct{}),
	}
	if launchRate > 0 {
		rc.limiter = rate.NewLimiter(rate.Limit(launchRate), 1)
	}
	return rc
}

// RequestShutdown sets the cooperative shutdown flag.
//
// Safe to call multiple times from signal handlers.
func (rc *RunContext) RequestShutdown() {
	rc.shutdown.Store(true)
	rc.once.Do(func() { close(rc.done) })
}

// ShutdownRequested reports whether a cooperative shutdown was requested.
func (rc *RunContext) ShutdownRequested() bool {
	return rc.shutdown.Load()
}

// Done returns a channel closed when shutdown is requested, for use in
// select loops (backoff sleeps, launch throttling).
func (rc *RunContext) Done() <-chan struct{} {
	return rc.done
}

// WaitLaunch blocks until the launch rate limiter admits another job
// start. Returns immediately when no rate limit is configured.
func (rc *RunContext) WaitLaunch(ctx context.Context) error {
	if rc.limiter == nil {
		return nil
	}
	return rc.limiter.Wait(ctx)
}
