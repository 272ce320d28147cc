package core

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is the output dimension of the embedding model
// (sentence-transformers/all-MiniLM-L6-v2). Stored note embeddings and
// query embeddings must both have this length.
const EmbeddingDimension = 384

// EmbeddingVector is a fixed-length semantic vector produced by an Embedder.
type EmbeddingVector []float32

// Note is a single user-owned note. Embedding may be nil for notes that
// were stored before an embedding could be generated; such notes are
// invisible to similarity search.
type Note struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   string          `json:"-"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Tags      []string        `json:"tags"`
	Embedding EmbeddingVector `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ScoredNote pairs a note with its similarity to a query vector. Produced
// by a SimilarityIndex, consumed by the ranker.
type ScoredNote struct {
	Note       Note
	Similarity float64
}

// RankedMatch is a note selected by the ranker for one query. Position is
// 1-based rank order; within one result set similarity scores are
// non-increasing by position.
type RankedMatch struct {
	Note       Note
	Similarity float64
	Position   int
}

// ConfidenceLevel is a coarse classification of answer trustworthiness
// derived from the best retrieval similarity score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// CompletionRequest carries one language-model invocation.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	TopP         float64
	MaxTokens    int
}

// Synthesis is the output of one answer-synthesis invocation: the answer
// text plus the identifiers of the supplied notes the answer cited.
type Synthesis struct {
	Answer       string
	CitedNoteIDs []uuid.UUID
}

// QueryResult is the complete outcome of one query pipeline run. Immutable
// once constructed; the transport layer serializes it for the client.
type QueryResult struct {
	Query           string
	Matches         []RankedMatch
	Confidence      ConfidenceLevel
	Answer          string
	CitedNoteIDs    []uuid.UUID
	ExecutionTimeMS float64
}

// ListOptions controls paginated note listing.
type ListOptions struct {
	Offset int
	Limit  int
	Tag    string
}
