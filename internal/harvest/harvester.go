// Package harvest walks listing pages, stops once the scan catches up to
// previously seen records, and merges detail pages concurrently.
package harvest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gradworks/gradcafe-harvester/internal/metrics"
	"github.com/gradworks/gradcafe-harvester/internal/normalize"
	"github.com/gradworks/gradcafe-harvester/internal/parser"
	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

// Config governs one harvester instance.
type Config struct {
	BaseURL         string
	SurveyURLFormat string // fmt format with one %d page placeholder
	SeenLimit       int    // consecutive already-seen records that stop the scan
	Concurrency     int    // detail-page worker pool width
	MaxRecords      int    // cap on new records per run; 0 means unlimited
	ListingRPS      float64
}

// Harvester runs the incremental scan. It is safe to reuse across runs; all
// per-run state lives on the stack of Run.
type Harvester struct {
	cfg     Config
	fetcher pipeline.Fetcher
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Harvester.
func New(cfg Config, fetcher pipeline.Fetcher, logger *zap.Logger, m *metrics.Metrics) *Harvester {
	if cfg.SeenLimit <= 0 {
		cfg.SeenLimit = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	limit := rate.Limit(cfg.ListingRPS)
	if cfg.ListingRPS <= 0 {
		limit = rate.Inf
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Harvester{
		cfg:     cfg,
		fetcher: fetcher,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: m,
	}
}

// Run scans listing pages starting at page 1, stages every unseen record,
// and fans out detail-page merges. seen is mutated in place: every staged
// identifier is added. A zero-entry result is a valid, non-error outcome.
func (h *Harvester) Run(ctx context.Context, seen map[string]struct{}) (pipeline.HarvestResult, error) {
	result := pipeline.HarvestResult{}
	batch, pages, err := h.scan(ctx, seen)
	result.PagesScanned = pages
	if err != nil {
		return result, err
	}
	if len(batch) == 0 {
		h.logger.Info("no new records found", zap.Int("pages_scanned", pages))
		return result, nil
	}

	failures := h.mergeDetails(ctx, batch)
	result.DetailFailures = failures
	h.metrics.DetailFailures.Add(float64(failures))

	for i := range batch {
		batch[i] = normalize.Entry(batch[i])
	}
	result.Entries = batch
	h.metrics.RecordsNew.Add(float64(len(batch)))
	h.logger.Info("harvest batch complete",
		zap.Int("new_records", len(batch)),
		zap.Int("pages_scanned", pages),
		zap.Int("detail_failures", failures),
	)
	return result, nil
}

// scan is the sequential pagination loop. The consecutive-seen counter is
// checked per record, so the scan halts mid-page the moment the threshold is
// reached.
func (h *Harvester) scan(ctx context.Context, seen map[string]struct{}) ([]pipeline.Entry, int, error) {
	var batch []pipeline.Entry
	consecutiveSeen := 0
	pages := 0

	for page := 1; ; page++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return batch, pages, fmt.Errorf("listing rate limit: %w", err)
		}
		url := fmt.Sprintf(h.cfg.SurveyURLFormat, page)
		body, err := h.fetcher.Fetch(ctx, url)
		if err != nil {
			return batch, pages, fmt.Errorf("listing page %d: %w", page, err)
		}
		stubs := parser.ParseListing(h.cfg.BaseURL, body)
		pages++
		h.metrics.PagesScanned.Inc()
		if len(stubs) == 0 {
			h.logger.Debug("listing exhausted", zap.Int("page", page))
			return batch, pages, nil
		}

		for _, stub := range stubs {
			if _, ok := seen[stub.ResultID]; ok {
				consecutiveSeen++
				if consecutiveSeen >= h.cfg.SeenLimit {
					h.logger.Debug("stop heuristic hit",
						zap.Int("page", page),
						zap.Int("consecutive_seen", consecutiveSeen),
					)
					return batch, pages, nil
				}
				continue
			}
			consecutiveSeen = 0
			seen[stub.ResultID] = struct{}{}
			batch = append(batch, stub)
			if h.cfg.MaxRecords > 0 && len(batch) >= h.cfg.MaxRecords {
				h.logger.Info("record cap reached", zap.Int("max_records", h.cfg.MaxRecords))
				return batch, pages, nil
			}
		}
	}
}
