package llm

import (
	"context"
	"strings"
)

// MockNormalizer is a deterministic Normalizer for tests and offline runs.
// It echoes cleaned-up input instead of consulting a model.
type MockNormalizer struct{}

// NewMockNormalizer builds a MockNormalizer.
func NewMockNormalizer() *MockNormalizer {
	return &MockNormalizer{}
}

// Normalize title-cases the inputs, substituting placeholders for empty text.
func (MockNormalizer) Normalize(_ context.Context, program, university string) (Canonical, error) {
	return Canonical{
		Program:    mockField(program, "Unknown Program"),
		University: mockField(university, "Unknown University"),
	}, nil
}

func mockField(s, fallback string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return fallback
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
