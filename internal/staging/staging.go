// Package staging implements the append-only NDJSON handoff files between
// the harvest, enrichment, and sync stages.
package staging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/gradworks/gradcafe-harvester/internal/pipeline"
)

var resultURLRe = regexp.MustCompile(`/result/(\d+)`)

// Pending holds newly harvested records awaiting enrichment. One JSON object
// per line, append-only, cleared only after the enriched output is durable.
type Pending struct {
	path string
}

// NewPending creates a handle; the file itself is created on first append.
func NewPending(path string) *Pending {
	return &Pending{path: path}
}

// Path returns the backing file path, for error context.
func (p *Pending) Path() string {
	return p.path
}

// Append writes entries as NDJSON lines and syncs before returning.
func (p *Pending) Append(entries []pipeline.Entry) error {
	return appendLines(p.path, len(entries), func(enc *json.Encoder, i int) error {
		return enc.Encode(entries[i])
	})
}

// Read returns all staged entries. A missing file is an empty stage, not an
// error; malformed lines are skipped.
func (p *Pending) Read() ([]pipeline.Entry, error) {
	var entries []pipeline.Entry
	err := readLines(p.path, func(line []byte) {
		var e pipeline.Entry
		if json.Unmarshal(line, &e) == nil && e.URL != "" {
			entries = append(entries, e)
		}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear truncates the staged file. Call only after the corresponding output
// has been durably appended downstream.
func (p *Pending) Clear() error {
	if err := os.Truncate(p.path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("truncate %s: %w", p.path, err)
	}
	return nil
}

// AddSeenIDs folds the identifiers of staged records into seen.
func (p *Pending) AddSeenIDs(seen map[string]struct{}) error {
	return addSeenIDs(p.path, seen)
}

// History is the cumulative enriched-record log read by the sync stage and
// by the harvester when rebuilding its seen-identifier set.
type History struct {
	path string
}

// NewHistory creates a handle; the file is created on first append.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Path returns the backing file path, for error context.
func (h *History) Path() string {
	return h.path
}

// Append durably appends enriched records as NDJSON lines. The write is
// synced before returning so callers may safely clear their input afterward.
func (h *History) Append(records []pipeline.EnrichedEntry) error {
	return appendLines(h.path, len(records), func(enc *json.Encoder, i int) error {
		return enc.Encode(records[i])
	})
}

// ReadAll returns every record in the history, skipping malformed lines.
func (h *History) ReadAll() ([]pipeline.EnrichedEntry, error) {
	var records []pipeline.EnrichedEntry
	err := readLines(h.path, func(line []byte) {
		var r pipeline.EnrichedEntry
		if json.Unmarshal(line, &r) == nil && r.URL != "" {
			records = append(records, r)
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AddSeenIDs folds the identifiers of all historical records into seen.
func (h *History) AddSeenIDs(seen map[string]struct{}) error {
	return addSeenIDs(h.path, seen)
}

func appendLines(path string, n int, encode func(*json.Encoder, int) error) error {
	if n == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 0; i < n; i++ {
		if err := encode(enc, i); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode record %d to %s: %w", i, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func readLines(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

func addSeenIDs(path string, seen map[string]struct{}) error {
	return readLines(path, func(line []byte) {
		var rec struct {
			URL string `json:"url_link"`
		}
		if json.Unmarshal(line, &rec) != nil {
			return
		}
		if m := resultURLRe.FindStringSubmatch(rec.URL); m != nil {
			seen[m[1]] = struct{}{}
		}
	})
}
