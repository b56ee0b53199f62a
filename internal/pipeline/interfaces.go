package pipeline

import (
	"context"
	"time"
)

// Fetcher retrieves the body of a single URL, retrying internally.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store persists enriched entries keyed by their source URL.
type Store interface {
	UpsertIgnoreDuplicates(ctx context.Context, records []EnrichedEntry) (int64, error)
	RebuildAll(ctx context.Context, records []EnrichedEntry) (int64, error)
}

// RunGate is the caller-owned exclusion hook pair around a run. Begin returns
// ErrRunInProgress when another run holds the gate.
type RunGate interface {
	Begin(kind string) error
	End(status RunStatus, message string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
