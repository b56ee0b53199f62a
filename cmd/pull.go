package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Run one incremental harvest-enrich-sync cycle",
		Long: `Scans the listing for results not seen on previous runs, stages
them, enriches the staged batch, and inserts the enriched records
into Postgres. Exits non-zero if another run is already in progress.`,
		RunE: runPullCommand,
	}
}

func runPullCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.app.Pull(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("pull finished",
		zap.String("run_id", report.RunID),
		zap.Int("new_records", report.NewRecords),
		zap.Int64("inserted", report.Inserted),
	)
	return nil
}
