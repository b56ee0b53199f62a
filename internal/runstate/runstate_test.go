package runstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "pull_state.json"), nil)
}

func TestBeginEndCycle(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)
	require.NoError(t, tr.Begin(KindPull))

	st, err := tr.Current()
	require.NoError(t, err)
	require.True(t, st.PullRunning)
	require.False(t, st.RebuildRunning)
	require.Equal(t, "running", st.Status)

	tr.End(pipeline.RunStatusComplete, "42 new records")

	st, err = tr.Current()
	require.NoError(t, err)
	require.False(t, st.PullRunning)
	require.False(t, st.RebuildRunning)
	require.Equal(t, "complete", st.Status)
	require.Equal(t, "42 new records", st.Message)
}

func TestOverlappingRunsRejected(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)
	require.NoError(t, tr.Begin(KindPull))

	err := tr.Begin(KindRebuild)
	require.ErrorIs(t, err, pipeline.ErrRunInProgress)

	tr.End(pipeline.RunStatusComplete, "")
	require.NoError(t, tr.Begin(KindRebuild))
	tr.End(pipeline.RunStatusComplete, "")
}

func TestCrossTrackerExclusion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pull_state.json")
	a := New(path, nil)
	b := New(path, nil)

	require.NoError(t, a.Begin(KindPull))
	require.ErrorIs(t, b.Begin(KindPull), pipeline.ErrRunInProgress)

	a.End(pipeline.RunStatusError, "listing fetch failed")
	require.NoError(t, b.Begin(KindPull))
	b.End(pipeline.RunStatusComplete, "")
}

func TestEndWithoutBeginIsNoop(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)
	tr.End(pipeline.RunStatusComplete, "ignored")

	st, err := tr.Current()
	require.NoError(t, err)
	require.Equal(t, "idle", st.Status)
}

func TestBeginRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)
	require.Error(t, tr.Begin("vacuum"))
}
