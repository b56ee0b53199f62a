// Package enrich replays staged records through the external normalization
// capability and appends the result to the cumulative history.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/gradworks/gradcafe-harvester/internal/llm"
	"github.com/gradworks/gradcafe-harvester/internal/metrics"
	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
	"github.com/gradworks/gradcafe-harvester/internal/staging"
)

// Stage consumes the pending staging file and produces enriched history
// lines. The staging input is cleared only after the enriched output has
// been durably appended, so a crash can at worst cause duplicate
// reprocessing, never loss.
type Stage struct {
	pending    *staging.Pending
	history    *staging.History
	normalizer llm.Normalizer
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New builds a Stage.
func New(
	pending *staging.Pending,
	history *staging.History,
	normalizer llm.Normalizer,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Stage{
		pending:    pending,
		history:    history,
		normalizer: normalizer,
		logger:     logger,
		metrics:    m,
	}
}

// Run processes every staged record once. A per-record capability failure
// forwards the record with its raw program/university text and counts the
// failure; it never aborts the stage. Stage-level file I/O failures abort
// with path and progress context.
func (s *Stage) Run(ctx context.Context) (pipeline.EnrichReport, error) {
	report := pipeline.EnrichReport{}

	entries, err := s.pending.Read()
	if err != nil {
		return report, &pipeline.StageError{Stage: "enrich", Path: s.pending.Path(), Err: err}
	}
	if len(entries) == 0 {
		s.logger.Info("no staged records to enrich")
		return report, nil
	}

	enriched := make([]pipeline.EnrichedEntry, 0, len(entries))
	for _, e := range entries {
		rec := pipeline.EnrichedEntry{Entry: e}
		canonical, nerr := s.normalizer.Normalize(ctx, e.Program, e.University)
		if nerr != nil {
			// Forward unnormalized rather than dropping the record.
			rec.LLMProgram = e.Program
			rec.LLMUniversity = e.University
			report.Failed++
			if report.FirstErr == nil {
				report.FirstErr = nerr
			}
			s.metrics.EnrichFailures.Inc()
			s.logger.Warn("normalization failed, forwarding raw text",
				zap.String("result_id", e.ResultID),
				zap.Error(nerr),
			)
		} else {
			rec.LLMProgram = canonical.Program
			rec.LLMUniversity = canonical.University
			s.metrics.EnrichOK.Inc()
		}
		enriched = append(enriched, rec)
		report.Processed++
	}

	if err := s.history.Append(enriched); err != nil {
		// Staging stays intact; the whole batch is retried next run.
		return report, &pipeline.StageError{
			Stage:     "enrich",
			Path:      s.history.Path(),
			Processed: report.Processed,
			Err:       err,
		}
	}
	if err := s.pending.Clear(); err != nil {
		// Output is durable; a failed clear means at most duplicate
		// reprocessing on the next run.
		return report, &pipeline.StageError{
			Stage:     "enrich",
			Path:      s.pending.Path(),
			Processed: report.Processed,
			Err:       err,
		}
	}

	report.Records = enriched
	s.logger.Info("enrichment complete",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
