// Package llm wraps the external text-normalization capability that maps
// free-form program and university text onto canonical names.
package llm

import "context"

// Canonical is the pair of standardized fields returned per record.
type Canonical struct {
	Program    string `json:"standardized_program"`
	University string `json:"standardized_university"`
}

// Normalizer is the black-box capability contract. Implementations have
// nonzero, variable latency; callers own any per-record failure policy.
type Normalizer interface {
	Normalize(ctx context.Context, program, university string) (Canonical, error)
}

// NormalizerFunc adapts a function to the Normalizer interface.
type NormalizerFunc func(ctx context.Context, program, university string) (Canonical, error)

// Normalize calls f.
func (f NormalizerFunc) Normalize(ctx context.Context, program, university string) (Canonical, error) {
	return f(ctx, program, university)
}
