// Package executor runs one loader as a child process.
//
// The executor is the only component that crosses the process boundary.
// It enforces the per-job timeout, captures stdout and stderr separately,
// and converts every failure into data on the job Outcome rather than a
// Go error: a loader that cannot be spawned, times out, or exits non-zero
// still yields a finalized Outcome.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/pkg/job"
)

// Executor is the process-boundary capability the retry coordinator
// depends on. Implementations run exactly one attempt of one Spec.
type Executor interface {
	Run(ctx context.Context, spec job.Spec) *job.Outcome
}

// Local executes loader targets as child processes on this host.
type Local struct {
	// WorkDir is the directory loaders run in. The child environment
	// additionally gets LOADER_HOME pointing at it so loaders can locate
	// shared modules regardless of how they were invoked.
	WorkDir string

	// Interpreter, when set, is prepended to the target invocation
	// (e.g. "python3" for script loaders). Empty means the target is
	// executed directly.
	Interpreter string

	logger *zap.Logger
}

// NewLocal creates a local process executor.
func NewLocal(workDir, interpreter string, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{WorkDir: workDir, Interpreter: interpreter, logger: logger}
}

// Run executes one attempt of the spec's target.
//
// Before spawning it verifies the target exists and is non-empty and that
// every required environment variable is set; either failure short-circuits
// without spawning. The child runs with a copy of the parent environment,
// its stdout and stderr captured separately, and is force-terminated if it
// exceeds spec.Timeout.
func (e *Local) Run(ctx context.Context, spec job.Spec) *job.Outcome {
	out := &job.Outcome{Name: spec.Name, StartTime: time.Now().UTC()}

	if jerr := e.checkTarget(spec); jerr != nil {
		return finalize(out, jerr)
	}
	if jerr := checkRequiredEnv(spec); jerr != nil {
		return finalize(out, jerr)
	}

	var stdout, stderr bytes.Buffer
	cmd := e.command(spec)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = e.WorkDir
	cmd.Env = append(os.Environ(), "LOADER_HOME="+e.WorkDir)

	if err := cmd.Start(); err != nil {
		return finalize(out, &job.Error{
			Kind:    job.ErrMissingTarget,
			Message: fmt.Sprintf("failed to start %s: %v", spec.Target, err),
		})
	}

	e.logger.Debug("loader started",
		zap.String("job", spec.Name),
		zap.String("target", spec.Target),
		zap.Int("pid", cmd.Process.Pid))

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	var waitErr error
	var timedOut bool
	select {
	case waitErr = <-waitCh:
	case <-timer.C:
		timedOut = true
		_ = cmd.Process.Kill()
		<-waitCh // reap the child
	case <-ctx.Done():
		// Cooperative shutdown does not kill running loaders; they keep
		// their own timeout. Wait for whichever fires first.
		select {
		case waitErr = <-waitCh:
		case <-timer.C:
			timedOut = true
			_ = cmd.Process.Kill()
			<-waitCh
		}
	}

	if timedOut {
		return finalize(out, &job.Error{
			Kind:    job.ErrTimeout,
			Message: fmt.Sprintf("timed out after %s; process killed", spec.Timeout),
		})
	}

	if waitErr != nil {
		code := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return finalize(out, &job.Error{
			Kind:     job.ErrExit,
			Message:  fmt.Sprintf("exited with code %d: %s", code, strings.TrimSpace(stderr.String())),
			ExitCode: code,
		})
	}

	out.Success = true
	out.RecordsProcessed = extractRecordCount(stdout.String())
	if warnings := splitLines(stderr.String()); len(warnings) > 0 {
		// A loader may warn on stderr yet still succeed.
		out.Warnings = warnings
	}
	return finalize(out, nil)
}

// command builds the child invocation, honoring the optional interpreter.
// Interpreted targets stay relative (the child resolves them against its
// working directory); direct targets are made absolute so PATH lookup
// never gets involved.
func (e *Local) command(spec job.Spec) *exec.Cmd {
	if e.Interpreter != "" {
		return exec.Command(e.Interpreter, spec.Target)
	}

	target := spec.Target
	if !filepath.IsAbs(target) && e.WorkDir != "" {
		target = filepath.Join(e.WorkDir, target)
	}
	return exec.Command(target)
}

// checkTarget verifies the invocation target exists and is non-empty.
// Relative targets resolve against WorkDir, matching how the child sees
// them once it runs with WorkDir as its working directory.
func (e *Local) checkTarget(spec job.Spec) *job.Error {
	target := spec.Target
	if !filepath.IsAbs(target) && e.WorkDir != "" {
		target = filepath.Join(e.WorkDir, target)
	}

	info, err := os.Stat(target)
	if err != nil {
		return &job.Error{
			Kind:    job.ErrMissingTarget,
			Message: fmt.Sprintf("target not found: %s", spec.Target),
		}
	}
	if info.Size() == 0 {
		return &job.Error{
			Kind:    job.ErrEmptyTarget,
			Message: fmt.Sprintf("target is empty: %s", spec.Target),
		}
	}
	return nil
}

// checkRequiredEnv verifies every required environment variable is set,
// reporting all missing names at once.
func checkRequiredEnv(spec job.Spec) *job.Error {
	var missing []string
	for _, name := range spec.RequiredEnv {
		if _, ok := os.LookupEnv(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &job.Error{
			Kind:    job.ErrMissingEnv,
			Message: "required environment not set: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// finalize stamps the end time and duration and attaches the error, if any.
func finalize(out *job.Outcome, jerr *job.Error) *job.Outcome {
	out.EndTime = time.Now().UTC()
	out.Duration = out.EndTime.Sub(out.StartTime)
	out.Err = jerr
	out.Success = jerr == nil && out.Success
	return out
}

// splitLines returns the non-empty lines of s.
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// Compile-time check that Local implements Executor.
var _ Executor = (*Local)(nil)
