// Package app wires the pipeline stages together and owns the end-to-end
// run flows.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gradworks/gradcafe-harvester/internal/config"
	"github.com/gradworks/gradcafe-harvester/internal/enrich"
	"github.com/gradworks/gradcafe-harvester/internal/fetcher"
	"github.com/gradworks/gradcafe-harvester/internal/harvest"
	idgen "github.com/gradworks/gradcafe-harvester/internal/id/uuid"
	"github.com/gradworks/gradcafe-harvester/internal/llm"
	"github.com/gradworks/gradcafe-harvester/internal/metrics"
	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
	"github.com/gradworks/gradcafe-harvester/internal/runstate"
	"github.com/gradworks/gradcafe-harvester/internal/staging"
	"github.com/gradworks/gradcafe-harvester/internal/store"
)

// Options carries the collaborators an App runs with. Logger and Metrics
// default to no-ops; everything else is required.
type Options struct {
	Harvester *harvest.Harvester
	Enricher  *enrich.Stage
	Pending   *staging.Pending
	History   *staging.History
	Store     pipeline.Store
	Gate      pipeline.RunGate
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// App executes pull and rebuild runs with overlap protection.
type App struct {
	harvester *harvest.Harvester
	enricher  *enrich.Stage
	pending   *staging.Pending
	history   *staging.History
	store     pipeline.Store
	gate      pipeline.RunGate
	ids       *idgen.Generator
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New assembles an App from pre-built collaborators.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	return &App{
		harvester: opts.Harvester,
		enricher:  opts.Enricher,
		pending:   opts.Pending,
		history:   opts.History,
		store:     opts.Store,
		gate:      opts.Gate,
		ids:       idgen.New(),
		logger:    logger,
		metrics:   m,
	}
}

// Metrics returns the collectors the app reports into, for sharing with the
// HTTP layer.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Build constructs the full production wiring from config. The returned
// cleanup closes the store pool. The tracker is returned separately so the
// HTTP layer can expose run status.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, *runstate.Tracker, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := metrics.New(reg)

	client := fetcher.New(fetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
		BackoffBase: cfg.BackoffInitial(),
		BackoffMax:  cfg.BackoffMax(),
	}, logger.Named("fetch"))

	harvester := harvest.New(harvest.Config{
		BaseURL:         cfg.Source.BaseURL,
		SurveyURLFormat: cfg.Source.SurveyURLFormat,
		SeenLimit:       cfg.Harvest.SeenLimit,
		Concurrency:     cfg.Harvest.Concurrency,
		MaxRecords:      cfg.Harvest.MaxRecords,
		ListingRPS:      cfg.HTTP.ListingRPS,
	}, client, logger.Named("harvest"), m)

	pending := staging.NewPending(cfg.Files.StagingPath)
	history := staging.NewHistory(cfg.Files.HistoryPath)

	var normalizer llm.Normalizer
	if cfg.LLM.Endpoint != "" {
		normalizer = llm.NewClient(llm.Config{
			Endpoint: cfg.LLM.Endpoint,
			Model:    cfg.LLM.Model,
			APIKey:   os.Getenv(cfg.LLM.APIKeyEnv),
			Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
	} else {
		logger.Warn("llm.endpoint not set, using deterministic mock normalizer")
		normalizer = llm.NewMockNormalizer()
	}

	enricher := enrich.New(pending, history, normalizer, logger.Named("enrich"), m)

	pg, err := store.New(ctx, store.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build store: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	tracker := runstate.New(cfg.Files.StatePath, logger.Named("runstate"))

	a := New(Options{
		Harvester: harvester,
		Enricher:  enricher,
		Pending:   pending,
		History:   history,
		Store:     pg,
		Gate:      tracker,
		Logger:    logger,
		Metrics:   m,
	})
	return a, tracker, pg.Close, nil
}

// Pull runs the full incremental pipeline: scan the listing for unseen
// records, stage them, enrich the staged batch, and insert the enriched
// records into the store. Returns pipeline.ErrRunInProgress when another
// run holds the gate.
func (a *App) Pull(ctx context.Context) (pipeline.RunReport, error) {
	report := pipeline.RunReport{}
	runID, err := a.ids.NewID()
	if err != nil {
		return report, err
	}
	if err := a.gate.Begin(runstate.KindPull); err != nil {
		return report, err
	}

	report.RunID = runID
	logger := a.logger.With(zap.String("run_id", report.RunID))
	start := time.Now()

	err = a.pull(ctx, logger, &report)
	report.Elapsed = time.Since(start)

	status := pipeline.RunStatusComplete
	message := fmt.Sprintf("%d new records, %d inserted", report.NewRecords, report.Inserted)
	if err != nil {
		status = pipeline.RunStatusError
		message = err.Error()
	}
	a.gate.End(status, message)
	a.metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	a.metrics.RunDuration.Observe(report.Elapsed.Seconds())

	if err != nil {
		logger.Error("pull run failed", zap.Error(err), zap.Duration("elapsed", report.Elapsed))
		return report, err
	}
	logger.Info("pull run complete",
		zap.Int("new_records", report.NewRecords),
		zap.Int("pages_scanned", report.PagesScanned),
		zap.Int64("inserted", report.Inserted),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (a *App) pull(ctx context.Context, logger *zap.Logger, report *pipeline.RunReport) error {
	seen := make(map[string]struct{})
	if err := a.pending.AddSeenIDs(seen); err != nil {
		return fmt.Errorf("load staged ids: %w", err)
	}
	if err := a.history.AddSeenIDs(seen); err != nil {
		return fmt.Errorf("load history ids: %w", err)
	}
	logger.Info("seen set loaded", zap.Int("ids", len(seen)))

	result, err := a.harvester.Run(ctx, seen)
	report.PagesScanned = result.PagesScanned
	report.DetailFailures = result.DetailFailures
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	report.NewRecords = len(result.Entries)

	if len(result.Entries) > 0 {
		if err := a.pending.Append(result.Entries); err != nil {
			return fmt.Errorf("stage records: %w", err)
		}
	}

	enriched, err := a.enricher.Run(ctx)
	report.EnrichFailures = enriched.Failed
	if err != nil {
		return err
	}
	if len(enriched.Records) == 0 {
		return nil
	}

	inserted, err := a.store.UpsertIgnoreDuplicates(ctx, enriched.Records)
	report.Inserted = inserted
	if err != nil {
		return fmt.Errorf("sync store: %w", err)
	}
	a.metrics.RecordsSynced.Add(float64(inserted))
	return nil
}

// Rebuild truncates the store and reloads it from the enriched history file.
func (a *App) Rebuild(ctx context.Context) (int64, error) {
	if err := a.gate.Begin(runstate.KindRebuild); err != nil {
		return 0, err
	}

	records, err := a.history.ReadAll()
	if err != nil {
		a.gate.End(pipeline.RunStatusError, err.Error())
		return 0, fmt.Errorf("read history: %w", err)
	}

	inserted, err := a.store.RebuildAll(ctx, records)
	if err != nil {
		a.gate.End(pipeline.RunStatusError, err.Error())
		return inserted, fmt.Errorf("rebuild store: %w", err)
	}

	a.gate.End(pipeline.RunStatusComplete, fmt.Sprintf("%d rows loaded", inserted))
	a.logger.Info("store rebuilt", zap.Int64("rows", inserted))
	return inserted, nil
}
