package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Truncate the database and reload it from the enriched history",
		Long: `Drops every row from the applications table and reloads it from the
cumulative enriched history file. Use after schema changes or when
the table has drifted from the file of record.`,
		RunE: runRebuildCommand,
	}
}

func runRebuildCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	rows, err := rt.app.Rebuild(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("rebuild finished", zap.Int64("rows", rows))
	return nil
}
