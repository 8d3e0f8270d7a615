// Package prereq validates the environment before any tier executes.
//
// The checker is accumulating by design: every check runs even when an
// earlier one fails, so a single doctor pass reports everything wrong with
// the environment instead of the first problem only. If any check fails
// the orchestrator aborts the run before resolution or execution begins.
package prereq

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// MinFreeDisk is the minimum free disk space required to run loaders.
const MinFreeDisk = 2 << 30 // 2 GiB

// Checker runs the pre-run environment checks.
type Checker struct {
	// DB is the status-store handle the loaders will also reach the
	// database through. Nil skips the connectivity check.
	DB *sql.DB

	// RequiredEnv lists environment variables that must be set.
	RequiredEnv []string

	// RequiredTools lists executables the loaders depend on (interpreter,
	// client binaries); each must be resolvable on PATH.
	RequiredTools []string

	// DataDir is the filesystem whose free space is checked.
	DataDir string

	// MinFree overrides MinFreeDisk when positive (used in tests).
	MinFree uint64

	logger *zap.Logger
}

// NewChecker creates a prerequisite checker.
func NewChecker(db *sql.DB, requiredEnv, requiredTools []string, dataDir string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		DB:            db,
		RequiredEnv:   requiredEnv,
		RequiredTools: requiredTools,
		DataDir:       dataDir,
		logger:        logger,
	}
}

// Run executes all checks and returns whether the environment is fit to
// run, plus every failure found.
func (c *Checker) Run(ctx context.Context) (bool, []string) {
	var failures []string

	fail := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		failures = append(failures, msg)
		c.logger.Warn("prerequisite check failed", zap.String("reason", msg))
	}

	c.checkDatabase(ctx, fail)
	c.checkEnv(fail)
	c.checkTools(fail)
	c.checkDisk(fail)

	return len(failures) == 0, failures
}

// Combined folds the failure list into a single error, nil when empty.
func Combined(failures []string) error {
	var err error
	for _, f := range failures {
		err = multierr.Append(err, fmt.Errorf("%s", f))
	}
	return err
}

// checkDatabase issues a trivial query through the same connectivity path
// the loaders use.
func (c *Checker) checkDatabase(ctx context.Context, fail func(string, ...any)) {
	if c.DB == nil {
		fail("database connectivity: no status store configured")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var one int
	if err := c.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		fail("database connectivity: %v", err)
	}
}

// checkEnv verifies every required environment variable is set.
func (c *Checker) checkEnv(fail func(string, ...any)) {
	for _, name := range c.RequiredEnv {
		if _, ok := os.LookupEnv(name); !ok {
			fail("environment variable not set: %s", name)
		}
	}
}

// checkTools verifies every required executable resolves on PATH.
func (c *Checker) checkTools(fail func(string, ...any)) {
	for _, tool := range c.RequiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			fail("required tool not found on PATH: %s", tool)
		}
	}
}

// checkDisk verifies the data directory's filesystem has enough free space.
func (c *Checker) checkDisk(fail func(string, ...any)) {
	min := c.MinFree
	if min == 0 {
		min = MinFreeDisk
	}

	free, err := freeDiskSpace(c.DataDir)
	if err != nil {
		fail("disk space check failed for %s: %v", c.DataDir, err)
		return
	}
	if free < min {
		fail("insufficient disk space on %s: %d bytes free, %d required", c.DataDir, free, min)
	}
}
