// Package system provides the real clock behind run-state timestamps.
package system

import "time"

// Clock implements pipeline.Clock using time.Now. Timestamps are UTC so
// run state files compare cleanly across hosts.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
