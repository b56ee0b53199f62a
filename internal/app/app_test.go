package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradworks/gradcafe-harvester/internal/enrich"
	"github.com/gradworks/gradcafe-harvester/internal/harvest"
	"github.com/gradworks/gradcafe-harvester/internal/llm"
	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
	"github.com/gradworks/gradcafe-harvester/internal/runstate"
	"github.com/gradworks/gradcafe-harvester/internal/staging"
)

const (
	testBase   = "https://www.thegradcafe.com"
	testFormat = "https://www.thegradcafe.com/survey/index.php?page=%d"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	fail  map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string][]byte), fail: make(map[string]bool)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[url] {
		return nil, &pipeline.FetchError{URL: url, Attempts: 3, Err: fmt.Errorf("boom")}
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &pipeline.FetchError{URL: url, Attempts: 3, Err: fmt.Errorf("unexpected url")}
	}
	return body, nil
}

func (f *fakeFetcher) setListing(page int, ids ...string) {
	rows := make([]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, fmt.Sprintf(`<tr>
  <td>Univ %[1]s</td><td>Program %[1]s</td><td>March 01, 2026</td><td>Accepted</td>
  <td><a href="/result/%[1]s">See More</a></td>
</tr>`, id))
	}
	f.pages[fmt.Sprintf(testFormat, page)] = []byte("<table>" + strings.Join(rows, "\n") + "</table>")
}

func (f *fakeFetcher) setDetail(id string) {
	f.pages[testBase+"/result/"+id] = []byte(`<dl>
  <div><dt>Degree Type</dt><dd>PhD</dd></div>
  <div><dt>Undergrad GPA</dt><dd>3.5</dd></div>
</dl>`)
}

// fakeStore counts inserts with insert-ignore semantics keyed on URL.
type fakeStore struct {
	mu       sync.Mutex
	urls     map[string]bool
	rebuilds int
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{urls: make(map[string]bool)}
}

func (s *fakeStore) UpsertIgnoreDuplicates(_ context.Context, records []pipeline.EnrichedEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var inserted int64
	for _, r := range records {
		if !s.urls[r.URL] {
			s.urls[r.URL] = true
			inserted++
		}
	}
	return inserted, nil
}

func (s *fakeStore) RebuildAll(ctx context.Context, records []pipeline.EnrichedEntry) (int64, error) {
	s.mu.Lock()
	s.urls = make(map[string]bool)
	s.rebuilds++
	s.mu.Unlock()
	return s.UpsertIgnoreDuplicates(ctx, records)
}

type fixture struct {
	app     *App
	fetcher *fakeFetcher
	store   *fakeStore
	pending *staging.Pending
	history *staging.History
	tracker *runstate.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := newFakeFetcher()
	st := newFakeStore()
	pending := staging.NewPending(filepath.Join(dir, "staged.jsonl"))
	history := staging.NewHistory(filepath.Join(dir, "history.jsonl"))
	tracker := runstate.New(filepath.Join(dir, "pull_state.json"), nil)

	harvester := harvest.New(harvest.Config{
		BaseURL:         testBase,
		SurveyURLFormat: testFormat,
		SeenLimit:       3,
		Concurrency:     4,
	}, f, nil, nil)
	enricher := enrich.New(pending, history, llm.NewMockNormalizer(), nil, nil)

	a := New(Options{
		Harvester: harvester,
		Enricher:  enricher,
		Pending:   pending,
		History:   history,
		Store:     st,
		Gate:      tracker,
	})
	return &fixture{app: a, fetcher: f, store: st, pending: pending, history: history, tracker: tracker}
}

func TestPullEndToEnd(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.fetcher.setListing(1, "101", "102")
	fx.fetcher.setListing(2)
	fx.fetcher.setDetail("101")
	fx.fetcher.setDetail("102")

	report, err := fx.app.Pull(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 2, report.NewRecords)
	require.Equal(t, 2, report.PagesScanned)
	require.Equal(t, int64(2), report.Inserted)
	require.Zero(t, report.EnrichFailures)

	// Staging is cleared, history holds the enriched batch.
	staged, err := fx.pending.Read()
	require.NoError(t, err)
	require.Empty(t, staged)

	enriched, err := fx.history.ReadAll()
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	for _, rec := range enriched {
		require.NotEmpty(t, rec.LLMProgram)
		require.NotEmpty(t, rec.LLMUniversity)
		require.Equal(t, "PhD", rec.DegreeType)
	}

	st, err := fx.tracker.Current()
	require.NoError(t, err)
	require.Equal(t, "complete", st.Status)
	require.False(t, st.PullRunning)
}

func TestSecondPullFindsNothingNew(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.fetcher.setListing(1, "201", "202", "203")
	fx.fetcher.setListing(2)
	for _, id := range []string{"201", "202", "203"} {
		fx.fetcher.setDetail(id)
	}

	first, err := fx.app.Pull(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, first.NewRecords)

	second, err := fx.app.Pull(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.NewRecords)
	require.Zero(t, second.Inserted)
}

func TestPullRejectedWhileAnotherRunHoldsGate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	require.NoError(t, fx.tracker.Begin(runstate.KindPull))
	defer fx.tracker.End(pipeline.RunStatusComplete, "")

	_, err := fx.app.Pull(context.Background())
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)
}

func TestPullErrorReleasesGate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.fetcher.fail[fmt.Sprintf(testFormat, 1)] = true

	_, err := fx.app.Pull(context.Background())
	require.Error(t, err)

	st, err := fx.tracker.Current()
	require.NoError(t, err)
	require.Equal(t, "error", st.Status)

	// The gate is free again; a repaired source pulls normally.
	fx.fetcher.fail = map[string]bool{}
	fx.fetcher.setListing(1, "301")
	fx.fetcher.setListing(2)
	fx.fetcher.setDetail("301")

	report, err := fx.app.Pull(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.NewRecords)
}

func TestRebuildReloadsFromHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	records := []pipeline.EnrichedEntry{
		{
			Entry:         pipeline.Entry{ResultID: "401", URL: testBase + "/result/401"},
			LLMProgram:    "Computer Science",
			LLMUniversity: "Georgia Institute of Technology",
		},
		{
			Entry:         pipeline.Entry{ResultID: "402", URL: testBase + "/result/402"},
			LLMProgram:    "Mathematics",
			LLMUniversity: "University of Michigan",
		},
	}
	require.NoError(t, fx.history.Append(records))

	inserted, err := fx.app.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), inserted)
	require.Equal(t, 1, fx.store.rebuilds)

	st, err := fx.tracker.Current()
	require.NoError(t, err)
	require.Equal(t, "complete", st.Status)
}
