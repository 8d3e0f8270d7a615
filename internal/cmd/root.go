// Package cmd implements the batchflow command-line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfabric/batchflow/internal/config"
	"github.com/quantfabric/batchflow/internal/observability"
)

// VersionInfo carries build-time identification, injected via ldflags.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

// Persistent flags shared by all commands.
var (
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
)

// cfg is the resolved configuration, populated before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "batchflow",
	Short: "Nightly batch job orchestrator for the market data platform",
	Long: `batchflow runs the platform's data loaders as a dependency-ordered,
priority-tiered batch: reference data first, derived series last, with
per-job timeouts, bounded retries, and a JSON run report at the end.

Examples:
  batchflow run                         # Execute the full job set
  batchflow run --only 'load_*'         # Run matching jobs only
  batchflow plan                        # Show the execution plan, run nothing
  batchflow doctor                      # Check prerequisites
  batchflow status                      # Show last known loader statuses`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}

		return observability.Init(observability.Config{
			Level:   cfg.Logging.Level,
			File:    cfg.Logging.File,
			Verbose: flagVerbose,
			Quiet:   flagQuiet,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: batchflow.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only warnings and errors on the console")
}

// Execute runs the CLI. Returns the error of the selected subcommand.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}
