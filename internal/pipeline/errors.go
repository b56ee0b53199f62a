package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by the run gate when a pull or enrichment run
// already holds the lock.
var ErrRunInProgress = errors.New("a run is already in progress")

// FetchError is returned by the fetcher after all retry attempts are
// exhausted. It always carries the last underlying cause.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

// Unwrap exposes the last cause for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StageError reports a stage-level I/O failure with enough context for the
// caller to retry safely.
type StageError struct {
	Stage     string
	Path      string
	Processed int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed at %s after %d records: %v", e.Stage, e.Path, e.Processed, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
