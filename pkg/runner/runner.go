package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/pkg/graph"
	"github.com/quantfabric/batchflow/pkg/job"
)

// Observer receives run lifecycle callbacks.
//
// Implementations must be safe for concurrent use; callbacks fire from
// worker goroutines. The runner works fine with a nil observer.
type Observer interface {
	TierStarted(priority job.Priority, jobs int)
	JobStarted(name string)
	JobFinished(out *job.Outcome)
}

// ConcurrentRunner executes the priority tiers of a run.
//
// Tiers are strictly sequential: a tier's workers are fully drained before
// the next tier starts. Within a tier, up to RunContext.MaxParallel retry
// sequences run concurrently, submitted in topological order.
type ConcurrentRunner struct {
	retry    *RetryCoordinator
	logger   *zap.Logger
	observer Observer
}

// NewConcurrentRunner creates a runner driving the given retry coordinator.
func NewConcurrentRunner(retry *RetryCoordinator, logger *zap.Logger) *ConcurrentRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConcurrentRunner{retry: retry, logger: logger}
}

// WithObserver attaches a lifecycle observer (status server, metrics).
// Returns the runner for chaining.
func (r *ConcurrentRunner) WithObserver(obs Observer) *ConcurrentRunner {
	r.observer = obs
	return r
}

// Run executes every tier to completion and returns the outcomes of all
// submitted jobs, in no particular order.
//
// A cooperative shutdown stops new submissions in the current and all
// subsequent tiers; already-submitted jobs are still awaited (bounded by
// their own timeouts). A failed critical job is logged but never aborts
// the run: the remaining tiers still execute best-effort.
func (r *ConcurrentRunner) Run(ctx context.Context, rc *RunContext, tiers *graph.Tiers) []*job.Outcome {
	var (
		mu       sync.Mutex
		outcomes []*job.Outcome
	)

	collect := func(out *job.Outcome) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
		if r.observer != nil {
			r.observer.JobFinished(out)
		}
	}

	for _, tier := range tiers.Ordered() {
		if rc.ShutdownRequested() {
			r.logger.Warn("shutdown requested; skipping tier",
				zap.String("tier", string(tier.Priority)),
				zap.Int("jobs", len(tier.Jobs)))
			continue
		}

		r.logger.Info("starting tier",
			zap.String("tier", string(tier.Priority)),
			zap.Int("jobs", len(tier.Jobs)),
			zap.Int("max_parallel", rc.MaxParallel))
		if r.observer != nil {
			r.observer.TierStarted(tier.Priority, len(tier.Jobs))
		}

		tierOutcomes := r.runTier(ctx, rc, tier, collect)

		if tier.Priority == job.PriorityCritical {
			if failed := failedNames(tierOutcomes); len(failed) > 0 {
				// Deliberate best-effort policy: report, don't abort.
				r.logger.Warn("critical loaders failed; continuing with remaining tiers",
					zap.Strings("failed", failed))
			}
		}
	}

	return outcomes
}

// runTier submits the tier's jobs through a semaphore-bounded worker pool
// and waits for all submitted work to drain.
func (r *ConcurrentRunner) runTier(ctx context.Context, rc *RunContext, tier graph.Tier, collect func(*job.Outcome)) []*job.Outcome {
	sem := make(chan struct{}, rc.MaxParallel)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		outs []*job.Outcome
	)

	for _, spec := range tier.Jobs {
		if rc.ShutdownRequested() {
			r.logger.Warn("shutdown requested; not submitting job",
				zap.String("job", spec.Name))
			break
		}

		if err := rc.WaitLaunch(ctx); err != nil {
			break
		}

		// Acquire the semaphore before spawning so the cap is a hard
		// bound on in-flight jobs, or bail out on shutdown.
		select {
		case sem <- struct{}{}:
		case <-rc.Done():
		}
		if rc.ShutdownRequested() {
			break
		}

		wg.Add(1)
		go func(spec job.Spec) {
			defer wg.Done()
			defer func() { <-sem }()

			if r.observer != nil {
				r.observer.JobStarted(spec.Name)
			}

			out := r.retry.Run(ctx, rc, spec)

			mu.Lock()
			outs = append(outs, out)
			mu.Unlock()
			collect(out)
		}(spec)
	}

	wg.Wait()
	return outs
}

func failedNames(outs []*job.Outcome) []string {
	var failed []string
	for _, out := range outs {
		if out != nil && !out.Success {
			failed = append(failed, out.Name)
		}
	}
	return failed
}
