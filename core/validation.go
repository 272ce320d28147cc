package core

import (
	"fmt"
	"math"
	"strings"
)

// Retrieval parameter bounds and defaults.
const (
	MinTopK              = 1
	MaxTopK              = 20
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.3
)

// QueryOptions are the caller-tunable retrieval parameters shared by the
// search and query pipelines.
type QueryOptions struct {
	TopK          int
	MinSimilarity float64
}

// Normalize fills zero values with defaults. A TopK of 0 means "use the
// default"; an explicit out-of-range value is rejected by Validate.
func (o QueryOptions) Normalize() QueryOptions {
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// Validate checks the options against their contract bounds.
func (o QueryOptions) Validate() error {
	if o.TopK < MinTopK || o.TopK > MaxTopK {
		return NewQueryError("ValidateOptions", ErrInvalidInput,
			fmt.Sprintf("top_k must be between %d and %d, got %d", MinTopK, MaxTopK, o.TopK), false)
	}
	if o.MinSimilarity < 0 || o.MinSimilarity > 1 {
		return NewQueryError("ValidateOptions", ErrInvalidInput,
			fmt.Sprintf("min_similarity must be between 0 and 1, got %g", o.MinSimilarity), false)
	}
	return nil
}

// ValidateQueryText checks that a query is non-empty after trimming.
func ValidateQueryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewQueryError("ValidateQueryText", ErrInvalidInput, "query cannot be empty", false)
	}
	return nil
}

// ValidateEmbedding checks that a vector has the expected dimension and
// contains no NaN or infinite values.
func ValidateEmbedding(vec EmbeddingVector, dimension int) error {
	if len(vec) == 0 {
		return NewQueryError("ValidateEmbedding", ErrInvalidInput, "embedding cannot be empty", false)
	}
	if len(vec) != dimension {
		return NewQueryError("ValidateEmbedding", ErrDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", dimension, len(vec)), false)
	}
	for i, val := range vec {
		f := float64(val)
		if math.IsNaN(f) {
			return NewQueryError("ValidateEmbedding", ErrInvalidInput,
				fmt.Sprintf("embedding contains NaN at index %d", i), false)
		}
		if math.IsInf(f, 0) {
			return NewQueryError("ValidateEmbedding", ErrInvalidInput,
				fmt.Sprintf("embedding contains infinite value at index %d", i), false)
		}
	}
	return nil
}

// ValidateNote checks the writable fields of a note before storage.
func ValidateNote(note Note) error {
	if note.OwnerID == "" {
		return NewQueryError("ValidateNote", ErrInvalidInput, "owner id cannot be empty", false)
	}
	if strings.TrimSpace(note.Title) == "" {
		return NewQueryError("ValidateNote", ErrInvalidInput, "title cannot be empty", false)
	}
	if len(note.Title) > 255 {
		return NewQueryError("ValidateNote", ErrInvalidInput, "title cannot exceed 255 characters", false)
	}
	if strings.TrimSpace(note.Content) == "" {
		return NewQueryError("ValidateNote", ErrInvalidInput, "content cannot be empty", false)
	}
	return nil
}
