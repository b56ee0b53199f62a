// Package runstate serializes pipeline runs across processes using a file
// lock, and publishes the current run status as a small JSON file.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/gradworks/gradcafe-harvester/internal/clock/system"
	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

// Run kinds accepted by Begin.
const (
	KindPull    = "pull"
	KindRebuild = "rebuild"
)

// State is the on-disk status record. The key names match the historical
// PullState schema consumed by the dashboard.
type State struct {
	PullRunning    bool      `json:"pull_running"`
	RebuildRunning bool      `json:"update_running"`
	Kind           string    `json:"kind,omitempty"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Tracker guards run exclusivity with an OS advisory lock. The lock is held
// from Begin until End, so overlap is enforced even across processes; the
// JSON state file is informational and rewritten on every transition.
type Tracker struct {
	statePath string
	lock      *flock.Flock
	clock     pipeline.Clock
	logger    *zap.Logger

	mu   sync.Mutex
	held bool
	kind string
}

// New creates a tracker whose state file lives at path. The companion lock
// file sits next to it with a .lock suffix.
func New(path string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		statePath: path,
		lock:      flock.New(path + ".lock"),
		clock:     system.New(),
		logger:    logger,
	}
}

// Begin attempts to start a run of the given kind. It returns
// pipeline.ErrRunInProgress when another run already holds the gate.
func (t *Tracker) Begin(kind string) error {
	if kind != KindPull && kind != KindRebuild {
		return fmt.Errorf("unknown run kind %q", kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held {
		return pipeline.ErrRunInProgress
	}

	locked, err := t.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return pipeline.ErrRunInProgress
	}

	t.held = true
	t.kind = kind
	t.writeState(State{
		PullRunning:    kind == KindPull,
		RebuildRunning: kind == KindRebuild,
		Kind:           kind,
		Status:         string(pipeline.RunStatusRunning),
		UpdatedAt:      t.clock.Now(),
	})
	return nil
}

// End releases the gate and records the terminal status. Calling End without
// a matching Begin is a no-op.
func (t *Tracker) End(status pipeline.RunStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.held {
		return
	}

	t.writeState(State{
		Kind:      t.kind,
		Status:    string(status),
		Message:   message,
		UpdatedAt: t.clock.Now(),
	})
	if err := t.lock.Unlock(); err != nil {
		t.logger.Warn("release run lock", zap.Error(err))
	}
	t.held = false
	t.kind = ""
}

// Current reads the last published state. A missing file reports an idle
// state rather than an error.
func (t *Tracker) Current() (State, error) {
	data, err := os.ReadFile(t.statePath)
	if os.IsNotExist(err) {
		return State{Status: "idle", UpdatedAt: time.Time{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read run state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode run state %s: %w", t.statePath, err)
	}
	return st, nil
}

// writeState replaces the state file atomically so readers never observe a
// partial record.
func (t *Tracker) writeState(st State) {
	data, err := json.Marshal(st)
	if err != nil {
		t.logger.Warn("encode run state", zap.Error(err))
		return
	}
	tmp := t.statePath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(t.statePath), 0o755); err != nil {
		t.logger.Warn("create run state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.logger.Warn("write run state", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, t.statePath); err != nil {
		t.logger.Warn("publish run state", zap.Error(err))
	}
}
