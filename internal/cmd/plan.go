package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfabric/batchflow/internal/observability"
	"github.com/quantfabric/batchflow/pkg/graph"
)

var (
	planManifest    string
	planOnly        []string
	planSkip        []string
	planMarketHours bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan without running anything",
	Long: `Resolve dependencies, group jobs into priority tiers, and print
the order in which a run would execute them. No prerequisite checks run
and no process is spawned.

Examples:
  batchflow plan
  batchflow plan --manifest jobs.yaml --only 'compute_*'`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planManifest, "manifest", "", "Job-set manifest file (overrides config)")
	planCmd.Flags().StringSliceVar(&planOnly, "only", nil, "Plan only jobs matching these glob patterns")
	planCmd.Flags().StringSliceVar(&planSkip, "skip", nil, "Skip jobs matching these glob patterns")
	planCmd.Flags().BoolVar(&planMarketHours, "respect-market-hours", false, "Skip market-hours-only jobs when the market is closed")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cli := observability.CLILogger

	manifestPath := cfg.ManifestPath
	if planManifest != "" {
		manifestPath = planManifest
	}

	specs, err := loadJobSet(manifestPath)
	if err != nil {
		return err
	}
	specs, err = selectJobs(specs, planOnly, planSkip)
	if err != nil {
		return err
	}

	var skipped []string
	if planMarketHours {
		specs, skipped = filterMarketHours(specs, time.Now())
	}
	if len(specs) == 0 {
		return fmt.Errorf("no jobs selected")
	}

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

	cli.Info(fmt.Sprintf("Execution plan: %d jobs in %d tiers", tiers.Len(), len(tiers.Ordered())))
	for _, tier := range tiers.Ordered() {
		cli.Info(fmt.Sprintf("Tier %s (%d jobs):", tier.Priority, len(tier.Jobs)))
		for i, spec := range tier.Jobs {
			line := fmt.Sprintf("  %d. %s (timeout %s, retries %d)",
				i+1, spec.Name, spec.Timeout, spec.RetryBudget)
			if len(spec.Dependencies) > 0 {
				line += " <- " + strings.Join(spec.Dependencies, ", ")
			}
			cli.Info(line)
		}
	}
	for _, name := range skipped {
		cli.Info("Skipped (market closed): " + name)
	}
	return nil
}
