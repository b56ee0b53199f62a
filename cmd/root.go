// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradworks/gradcafe-harvester/internal/app"
	"github.com/gradworks/gradcafe-harvester/internal/config"
	"github.com/gradworks/gradcafe-harvester/internal/logging"
	"github.com/gradworks/gradcafe-harvester/internal/runstate"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Incremental admissions-result harvester",
		Long: `harvester scans the survey listing for new applicant results,
enriches them through an LLM normalization step, and syncs the
enriched records into Postgres. Runs are incremental: records seen
on previous runs are skipped, and the scan stops once it walks far
enough into already-harvested territory.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything a command needs after wiring.
type runtime struct {
	app     *app.App
	tracker *runstate.Tracker
	cfg     config.Config
	logger  *zap.Logger
	reg     *prometheus.Registry
	close   func()
}

// setup loads config, initializes logging, and builds the wired application.
func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	reg := prometheus.NewRegistry()
	a, tracker, cleanup, err := app.Build(ctx, cfg, logger, reg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &runtime{
		app:     a,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		close: func() {
			cleanup()
			_ = logger.Sync()
		},
	}, nil
}
