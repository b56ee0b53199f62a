package harvest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gradworks/gradcafe-harvester/internal/parser"
	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

// mergeDetails fans detail-page fetches out over a bounded worker pool and
// merges the returned fields into the batch in place. A failed fetch leaves
// that record partial; it is never dropped and never cancels sibling work.
// Returns the number of detail failures.
func (h *Harvester) mergeDetails(ctx context.Context, batch []pipeline.Entry) int {
	width := h.cfg.Concurrency
	if width > len(batch) {
		width = len(batch)
	}

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)

	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				body, err := h.fetcher.Fetch(ctx, batch[i].URL)
				if err != nil {
					h.logger.Warn("detail fetch failed, keeping partial record",
						zap.String("url", batch[i].URL),
						zap.Error(err),
					)
					mu.Lock()
					failures++
					mu.Unlock()
					continue
				}
				fields := parser.ParseDetail(body)
				mu.Lock()
				applyDetail(&batch[i], fields)
				mu.Unlock()
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return failures
}

// applyDetail overlays detail-page fields onto a listing stub. Detail values
// win when present; empty detail values keep the listing text.
func applyDetail(e *pipeline.Entry, d parser.DetailFields) {
	if d.Program != "" {
		e.Program = d.Program
	}
	if d.DegreeType != "" {
		e.DegreeType = d.DegreeType
	}
	if d.Comments != "" {
		e.Comments = d.Comments
	}
	e.GPA = d.GPA
	e.GREGeneral = d.GREGeneral
	e.GREVerbal = d.GREVerbal
	e.GREAnalytical = d.GREAnalytical
}
