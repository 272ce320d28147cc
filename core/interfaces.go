package core

import (
	"context"

	"github.com/google/uuid"
)

// Embedder turns text into a fixed-length semantic vector. Implementations
// must reject input that is empty after trimming and must return a vector
// of exactly Dimension() values or fail; they never truncate or pad.
type Embedder interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) (EmbeddingVector, error)

	// Dimension returns the fixed output dimension
	Dimension() int
}

// Transcriber turns an audio blob into text. Implementations validate the
// content type against a fixed allow-list and fail with a transcription
// error when no speech is recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// TranscriptionRequest carries one audio transcription call.
type TranscriptionRequest struct {
	Audio       []byte
	ContentType string
	Filename    string
	Language    string // optional BCP-47 hint, e.g. "en"
}

// CompletionProvider invokes a language model. Implementations classify
// transient failures (timeouts, rate limits, 5xx) as retryable so the
// synthesis retry policy can distinguish them from fatal errors.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// SimilarityIndex answers ranked nearest-neighbor queries over stored note
// embeddings, scoped to a single owner. A backend may push ordering and
// threshold down to storage; the ranker re-enforces both regardless.
type SimilarityIndex interface {
	// SearchByOwner returns candidate notes belonging to ownerID with their
	// cosine similarity to the query vector, best first. Notes without an
	// embedding are never returned.
	SearchByOwner(ctx context.Context, ownerID string, query EmbeddingVector, limit int, minSimilarity float64) ([]ScoredNote, error)
}

// NoteStore is the durable home of notes. All operations are owner-scoped;
// a note is only visible to the owner that created it.
type NoteStore interface {
	CreateNote(ctx context.Context, note Note) (Note, error)
	GetNote(ctx context.Context, ownerID string, id uuid.UUID) (Note, error)
	ListNotes(ctx context.Context, ownerID string, opts ListOptions) ([]Note, int, error)
	UpdateNote(ctx context.Context, note Note) (Note, error)
	DeleteNote(ctx context.Context, ownerID string, id uuid.UUID) error
	ListTags(ctx context.Context, ownerID string) ([]string, error)

	// FindByOwnerAndIDs resolves a set of note IDs for one owner. Unknown
	// IDs are skipped, not errors.
	FindByOwnerAndIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]Note, error)

	// Lifecycle
	Close() error
}
