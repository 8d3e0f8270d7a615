package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfabric/batchflow/internal/observability"
	"github.com/quantfabric/batchflow/pkg/statusstore"
)

var statusJob string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show last known loader statuses",
	Long: `Read the shared loader-status table and print the last recorded
state of each loader.

Examples:
  batchflow status
  batchflow status --job load_prices_daily`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusJob, "job", "", "Show a single job only")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cli := observability.CLILogger

	db, err := statusstore.Open(ctx, statusstore.Config{Path: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("cannot open status database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if statusJob != "" {
		st, err := statusstore.GetLoaderStatus(ctx, db, statusJob)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("no status recorded for job %s", statusJob)
		}
		printStatus(cli, *st)
		return nil
	}

	statuses, err := statusstore.ListLoaderStatus(ctx, db)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		cli.Info("No loader statuses recorded yet")
		return nil
	}

	cli.Info(fmt.Sprintf("%-28s %-8s %12s  %-20s %s", "JOB", "STATUS", "RECORDS", "LAST RUN", "NOTES"))
	for _, st := range statuses {
		printStatus(cli, st)
	}
	return nil
}

func printStatus(cli *zap.Logger, st statusstore.LoaderStatus) {
	cli.Info(fmt.Sprintf("%-28s %-8s %12d  %-20s %s",
		st.JobName, st.Status, st.RecordsProcessed,
		st.LastRunAt.Format("2006-01-02 15:04:05"), st.Notes))
}
