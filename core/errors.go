package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidInput indicates a bad or empty query, or a malformed vector
	ErrInvalidInput = errors.New("invalid query input")

	// ErrDimensionMismatch indicates an embedding provider returned a vector
	// whose length does not match EmbeddingDimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexUnavailable indicates the similarity store could not be reached
	ErrIndexUnavailable = errors.New("similarity index unavailable")

	// ErrTranscription indicates no speech could be recognized in the audio
	ErrTranscription = errors.New("transcription failed")

	// ErrUnsupportedAudio indicates the audio content type is not allowed
	ErrUnsupportedAudio = errors.New("unsupported audio format")

	// ErrSynthesis indicates the language-model call failed after retries
	ErrSynthesis = errors.New("answer synthesis failed")

	// ErrNoteNotFound indicates the requested note does not exist for the owner
	ErrNoteNotFound = errors.New("note not found")
)

// QueryError represents a structured pipeline error with context
type QueryError struct {
	Op        string // Operation that failed
	Err       error  // Underlying error
	Details   string // Additional details
	Retryable bool   // Whether the operation can be retried
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("query error in %s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("query error in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError creates a new query error
func NewQueryError(op string, err error, details string, retryable bool) *QueryError {
	return &QueryError{
		Op:        op,
		Err:       err,
		Details:   details,
		Retryable: retryable,
	}
}

// IsRetryable reports whether the error is marked as a transient failure
// worth retrying. Only errors classified by a provider adapter carry the
// retryable flag; everything else fails fast.
func IsRetryable(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Retryable
	}
	return false
}

// IsInvalidInput checks if the error indicates bad client input
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDimensionMismatch checks if the error indicates a provider contract violation
func IsDimensionMismatch(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}

// IsIndexUnavailable checks if the error indicates the similarity store is down
func IsIndexUnavailable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable)
}

// IsTranscription checks if the error indicates unusable audio input
func IsTranscription(err error) bool {
	return errors.Is(err, ErrTranscription) || errors.Is(err, ErrUnsupportedAudio)
}

// IsNoteNotFound checks if the error indicates a missing note
func IsNoteNotFound(err error) bool {
	return errors.Is(err, ErrNoteNotFound)
}
