package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfabric/batchflow/pkg/job"
)

// fakeExecutor returns canned success/failure per attempt and records
// invocation order. Safe for concurrent use.
type fakeExecutor struct {
	mu sync.Mutex

	// failFirst fails the first N attempts of every job.
	failFirst int

	// delay simulates execution time.
	delay time.Duration

	// onRun, when set, is called at the start of every attempt.
	onRun func(name string)

	attempts map[string]int
	order    []string
}

func newFakeExecutor(failFirst int) *fakeExecutor {
	return &fakeExecutor{failFirst: failFirst, attempts: make(map[string]int)}
}

func (f *fakeExecutor) Run(ctx context.Context, spec job.Spec) *job.Outcome {
	f.mu.Lock()
	f.attempts[spec.Name]++
	n := f.attempts[spec.Name]
	f.order = append(f.order, spec.Name)
	onRun := f.onRun
	f.mu.Unlock()

	if onRun != nil {
		onRun(spec.Name)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	out := &job.Outcome{
		Name:      spec.Name,
		StartTime: time.Now().UTC(),
	}
	out.EndTime = out.StartTime.Add(f.delay)
	out.Duration = f.delay

	if n <= f.failFirst {
		out.Err = &job.Error{Kind: job.ErrExit, Message: "boom", ExitCode: 1}
		return out
	}
	out.Success = true
	out.RecordsProcessed = 100
	return out
}

func (f *fakeExecutor) attemptsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

// instantAfter records requested backoff waits and fires immediately.
func instantAfter(waits *[]time.Duration, mu *sync.Mutex) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
}

func TestLinearBackoff(t *testing.T) {
	b := &linearBackoff{}
	assert.Equal(t, 30*time.Second, b.NextBackOff())
	assert.Equal(t, 60*time.Second, b.NextBackOff())
	assert.Equal(t, 90*time.Second, b.NextBackOff())

	for i := 0; i < 20; i++ {
		b.NextBackOff()
	}
	assert.Equal(t, 5*time.Minute, b.NextBackOff(), "capped at five minutes")

	b.Reset()
	assert.Equal(t, 30*time.Second, b.NextBackOff())
}

func TestRetryCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first attempt", func(t *testing.T) {
		exec := newFakeExecutor(0)
		rc := NewRunContext("run-1", 1, 0)
		coord := NewRetryCoordinator(exec, nil)

		out := coord.Run(ctx, rc, job.Spec{Name: "a", RetryBudget: 3})

		require.True(t, out.Success)
		assert.Equal(t, 0, out.AttemptsUsed)
		assert.Equal(t, 1, exec.attemptsFor("a"))
	})

	t.Run("budget bounds total attempts", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-2", 1, 0)
		coord := NewRetryCoordinator(exec, nil)

		var mu sync.Mutex
		var waits []time.Duration
		coord.after = instantAfter(&waits, &mu)

		out := coord.Run(ctx, rc, job.Spec{Name: "b", RetryBudget: 2})

		require.False(t, out.Success)
		assert.Equal(t, 3, exec.attemptsFor("b"), "budget 2 means 3 attempts total")
		assert.Equal(t, 2, out.AttemptsUsed)
		assert.Equal(t, []time.Duration{30 * time.Second, 60 * time.Second}, waits)
	})

	t.Run("succeeds after retries", func(t *testing.T) {
		exec := newFakeExecutor(2)
		rc := NewRunContext("run-3", 1, 0)
		coord := NewRetryCoordinator(exec, nil)

		var mu sync.Mutex
		var waits []time.Duration
		coord.after = instantAfter(&waits, &mu)

		out := coord.Run(ctx, rc, job.Spec{Name: "c", RetryBudget: 5})

		require.True(t, out.Success)
		assert.Equal(t, 2, out.AttemptsUsed)
		assert.Equal(t, 3, exec.attemptsFor("c"))
	})

	t.Run("zero budget runs once", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-4", 1, 0)
		coord := NewRetryCoordinator(exec, nil)

		out := coord.Run(ctx, rc, job.Spec{Name: "d", RetryBudget: 0})

		require.False(t, out.Success)
		assert.Equal(t, 1, exec.attemptsFor("d"))
	})

	t.Run("shutdown stops further attempts", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-5", 1, 0)

		var calls atomic.Int32
		exec.onRun = func(string) {
			if calls.Add(1) == 1 {
				rc.RequestShutdown()
			}
		}

		coord := NewRetryCoordinator(exec, nil)
		out := coord.Run(ctx, rc, job.Spec{Name: "e", RetryBudget: 5})

		require.NotNil(t, out)
		assert.False(t, out.Success)
		assert.Equal(t, 1, exec.attemptsFor("e"), "no retry after shutdown")
	})

	t.Run("shutdown during backoff returns last outcome", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-6", 1, 0)
		coord := NewRetryCoordinator(exec, nil)

		// Never fires; the sleep must be interrupted by shutdown.
		coord.after = func(time.Duration) <-chan time.Time {
			rc.RequestShutdown()
			return make(chan time.Time)
		}

		out := coord.Run(ctx, rc, job.Spec{Name: "f", RetryBudget: 3})

		require.NotNil(t, out)
		assert.False(t, out.Success)
		assert.Equal(t, 1, exec.attemptsFor("f"))
	})

	t.Run("injected policy drives the waits", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-8", 1, 0)
		coord := NewRetryCoordinator(exec, nil).WithBackOff(func() backoff.BackOff {
			return backoff.NewConstantBackOff(42 * time.Second)
		})

		var mu sync.Mutex
		var waits []time.Duration
		coord.after = instantAfter(&waits, &mu)

		out := coord.Run(ctx, rc, job.Spec{Name: "h", RetryBudget: 2})

		require.False(t, out.Success)
		assert.Equal(t, 3, exec.attemptsFor("h"))
		assert.Equal(t, []time.Duration{42 * time.Second, 42 * time.Second}, waits)
	})

	t.Run("policy stop ends the sequence before the budget", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-9", 1, 0)
		coord := NewRetryCoordinator(exec, nil).WithBackOff(func() backoff.BackOff {
			return &backoff.StopBackOff{}
		})

		out := coord.Run(ctx, rc, job.Spec{Name: "i", RetryBudget: 5})

		require.NotNil(t, out)
		assert.False(t, out.Success)
		assert.Equal(t, 1, exec.attemptsFor("i"), "stop policy allows no retries")
	})

	t.Run("context cancellation interrupts backoff", func(t *testing.T) {
		exec := newFakeExecutor(99)
		rc := NewRunContext("run-7", 1, 0)
		coord := NewRetryCoordinator(exec, nil)

		cctx, cancel := context.WithCancel(ctx)
		coord.after = func(time.Duration) <-chan time.Time {
			cancel()
			return make(chan time.Time)
		}

		out := coord.Run(cctx, rc, job.Spec{Name: "g", RetryBudget: 3})

		require.NotNil(t, out)
		assert.Equal(t, 1, exec.attemptsFor("g"))
	})
}
