package cmd

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/internal/observability"
	"github.com/quantfabric/batchflow/pkg/prereq"
	"github.com/quantfabric/batchflow/pkg/statusstore"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run the same prerequisite checks a run would perform, plus a few
environment diagnostics, and report each one individually.

Examples:
  batchflow doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cli := observability.CLILogger

	cli.Info("=== batchflow doctor ===")
	cli.Info("")
	cli.Info("Running diagnostic checks...")
	cli.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 4

	// Check 1: environment
	cli.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	// Check 2: interpreter
	if cfg.Interpreter == "" {
		cli.Info(fmt.Sprintf("[%d/%d] Checking interpreter... ✅ none configured, targets run directly", checkNum, totalChecks))
	} else if path, err := exec.LookPath(cfg.Interpreter); err != nil {
		cli.Error(fmt.Sprintf("[%d/%d] Checking interpreter... ❌ %s not on PATH", checkNum, totalChecks, cfg.Interpreter))
		allChecks = false
	} else {
		cli.Info(fmt.Sprintf("[%d/%d] Checking interpreter... ✅ %s", checkNum, totalChecks, path),
			zap.String("interpreter", path))
	}
	checkNum++

	// Check 3: status database
	ctx := cmd.Context()
	db, dbErr := statusstore.Open(ctx, statusstore.Config{Path: cfg.DBPath})
	if dbErr != nil {
		cli.Error(fmt.Sprintf("[%d/%d] Checking status database... ❌ %v", checkNum, totalChecks, dbErr))
		allChecks = false
	} else {
		cli.Info(fmt.Sprintf("[%d/%d] Checking status database... ✅ %s", checkNum, totalChecks, cfg.DBPath),
			zap.String("db_path", cfg.DBPath))
		defer func() { _ = db.Close() }()
	}
	checkNum++

	// Check 4: run prerequisites (env vars, tools, disk, DB connectivity)
	checker := prereq.NewChecker(db, cfg.RequiredEnv, cfg.RequiredTools, cfg.WorkDir, observability.Logger)
	if ok, failures := checker.Run(ctx); ok {
		cli.Info(fmt.Sprintf("[%d/%d] Checking run prerequisites... ✅ all satisfied", checkNum, totalChecks))
	} else {
		cli.Error(fmt.Sprintf("[%d/%d] Checking run prerequisites... ❌ %d failing", checkNum, totalChecks, len(failures)))
		for _, f := range failures {
			cli.Error("  - " + f)
		}
		allChecks = false
	}

	cli.Info("")
	if allChecks {
		cli.Info("All checks passed ✅")
		return nil
	}
	cli.Warn("Some checks failed; a run would abort before executing jobs")
	return fmt.Errorf("diagnostics failed")
}
