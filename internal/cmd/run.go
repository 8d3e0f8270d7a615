package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/internal/observability"
	"github.com/quantfabric/batchflow/internal/server"
	"github.com/quantfabric/batchflow/pkg/executor"
	"github.com/quantfabric/batchflow/pkg/graph"
	"github.com/quantfabric/batchflow/pkg/prereq"
	"github.com/quantfabric/batchflow/pkg/report"
	"github.com/quantfabric/batchflow/pkg/runner"
	"github.com/quantfabric/batchflow/pkg/statusstore"
)

var (
	runManifest     string
	runOnly         []string
	runSkip         []string
	runMaxParallel  int
	runMarketHours  bool
	runServerEnable bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the batch job set",
	Long: `Execute the full job set: prerequisite checks, dependency
resolution, tier-by-tier concurrent execution, and a JSON run report.

A failed critical job does not abort the run; remaining tiers still
execute and the failure is surfaced in the report and the exit code.
SIGINT or SIGTERM requests a cooperative shutdown: running jobs finish,
nothing new starts.

Examples:
  batchflow run
  batchflow run --manifest jobs.yaml --max-parallel 8
  batchflow run --only 'load_*' --skip load_prices_intraday`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runManifest, "manifest", "", "Job-set manifest file (overrides config)")
	runCmd.Flags().StringSliceVar(&runOnly, "only", nil, "Run only jobs matching these glob patterns")
	runCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "Skip jobs matching these glob patterns")
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Max concurrent jobs per tier (overrides config)")
	runCmd.Flags().BoolVar(&runMarketHours, "respect-market-hours", false, "Skip market-hours-only jobs when the market is closed")
	runCmd.Flags().BoolVar(&runServerEnable, "serve-status", false, "Serve run status over HTTP while running")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := observability.Logger
	cli := observability.CLILogger

	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	manifestPath := cfg.ManifestPath
	if runManifest != "" {
		manifestPath = runManifest
	}
	maxParallel := cfg.MaxParallel
	if runMaxParallel > 0 {
		maxParallel = runMaxParallel
	}

	specs, err := loadJobSet(manifestPath)
	if err != nil {
		return err
	}
	specs, err = selectJobs(specs, runOnly, runSkip)
	if err != nil {
		return err
	}

	var skipped []string
	if runMarketHours {
		specs, skipped = filterMarketHours(specs, time.Now())
		for _, name := range skipped {
			cli.Info("Market closed; skipping job", zap.String("job", name))
		}
	}
	if len(specs) == 0 {
		return fmt.Errorf("no jobs selected")
	}

	db, dbErr := statusstore.Open(ctx, statusstore.Config{Path: cfg.DBPath})
	if dbErr != nil {
		log.Warn("status database unavailable", zap.Error(dbErr))
	} else {
		defer func() { _ = db.Close() }()
	}

	// Prerequisites gate execution: any failure aborts before the first job.
	checker := prereq.NewChecker(db, cfg.RequiredEnv, cfg.RequiredTools, cfg.WorkDir, log)
	if ok, failures := checker.Run(ctx); !ok {
		rep := report.BuildAborted(runID, startedAt, failures)
		rep.SkippedJobs = skipped
		if path, werr := report.WriteArtifact(cfg.LogsDir, rep); werr != nil {
			log.Error("failed to write run report", zap.Error(werr))
		} else {
			cli.Info("Run report written", zap.String("path", path))
		}
		for _, f := range failures {
			cli.Error("Prerequisite failed: " + f)
		}
		return prereq.Combined(failures)
	}

	// Plan: validate, order, tier.
	if err := graph.ValidateNames(specs); err != nil {
		return err
	}
	ordered, err := graph.Resolve(specs)
	if err != nil {
		return err
	}
	if err := graph.ValidateTiers(ordered); err != nil {
		return err
	}
	tiers := graph.Group(ordered)

	cli.Info("Starting run",
		zap.String("run_id", runID),
		zap.Int("jobs", tiers.Len()),
		zap.Int("tiers", len(tiers.Ordered())),
		zap.Int("max_parallel", maxParallel))

	rc := runner.NewRunContext(runID, maxParallel, cfg.LaunchRate)

	// First signal requests cooperative shutdown, second one is immediate.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cli.Warn("Shutdown requested; waiting for running jobs to finish")
		rc.RequestShutdown()
		<-sigCh
		cli.Error("Forced shutdown")
		os.Exit(130)
	}()

	metrics := server.NewMetrics()
	tracker := server.NewRunTracker(runID, metrics)

	var statusSrv *server.Server
	if runServerEnable || cfg.Server.Enabled {
		statusSrv = server.New(server.Options{
			Addr:            cfg.Server.Addr,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, tracker, metrics, log)
		go func() {
			if serr := statusSrv.Start(); serr != nil {
				log.Error("status server failed", zap.Error(serr))
			}
		}()
	}

	exec := executor.NewLocal(cfg.WorkDir, cfg.Interpreter, log)
	retry := runner.NewRetryCoordinator(exec, log)
	outcomes := runner.NewConcurrentRunner(retry, log).WithObserver(tracker).Run(ctx, rc, tiers)

	if statusSrv != nil {
		if serr := statusSrv.Shutdown(context.Background()); serr != nil {
			log.Warn("status server shutdown failed", zap.Error(serr))
		}
	}

	// Report and status pushes are best-effort: a full set of outcomes
	// exists by now and must reach the operator even if persistence fails.
	rep := report.Build(runID, startedAt, time.Now().UTC(), outcomes)
	rep.SkippedJobs = skipped

	artifactPath, werr := report.WriteArtifact(cfg.LogsDir, rep)
	if werr != nil {
		log.Error("failed to write run report", zap.Error(werr))
	} else {
		cli.Info("Run report written", zap.String("path", artifactPath))
	}

	if db != nil && dbErr == nil {
		report.PushStatuses(ctx, db, outcomes, log)
		report.RecordRun(ctx, db, rep, artifactPath, log)
	}

	if cfg.S3.Bucket != "" && artifactPath != "" {
		if arch, aerr := report.NewS3Archiver(ctx, cfg.S3.Bucket, cfg.S3.Prefix); aerr != nil {
			log.Warn("report archival unavailable", zap.Error(aerr))
		} else if aerr := arch.Archive(ctx, artifactPath); aerr != nil {
			log.Warn("failed to archive run report", zap.Error(aerr))
		}
	}

	cli.Info(rep.Summary())
	if rc.ShutdownRequested() {
		return fmt.Errorf("run interrupted: %d of %d jobs completed", len(outcomes), len(ordered))
	}
	if rep.Failed > 0 {
		return fmt.Errorf("run completed with %d failed jobs", rep.Failed)
	}
	return nil
}
