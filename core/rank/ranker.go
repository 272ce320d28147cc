// Package rank selects and orders the notes most similar to a query
// embedding. Ownership scoping, the similarity threshold, and top-k
// truncation all live here so that every retrieval path shares one
// contract, regardless of how much work the backing index pushes down to
// storage.
package rank

import (
	"context"
	"sort"

	"github.com/mnemonic-kb/mnemonic/core"
)

// Ranker produces ordered RankedMatch sets from a SimilarityIndex.
type Ranker struct {
	index core.SimilarityIndex
}

// NewRanker creates a ranker over the given similarity index.
func NewRanker(index core.SimilarityIndex) *Ranker {
	return &Ranker{index: index}
}

// Rank returns at most opts.TopK notes owned by ownerID whose cosine
// similarity to the query vector is strictly greater than
// opts.MinSimilarity, ordered by descending similarity. Exact score ties
// are broken by more recent creation time so result order is
// deterministic.
//
// The owner filter is mandatory: candidates that do not belong to ownerID
// are dropped here even when the index already filtered, so a misbehaving
// backend cannot leak another owner's notes.
func (r *Ranker) Rank(ctx context.Context, ownerID string, query core.EmbeddingVector, opts core.QueryOptions) ([]core.RankedMatch, error) {
	if ownerID == "" {
		return nil, core.NewQueryError("Rank", core.ErrInvalidInput, "owner id cannot be empty", false)
	}
	if err := core.ValidateEmbedding(query, core.EmbeddingDimension); err != nil {
		return nil, err
	}
	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	candidates, err := r.index.SearchByOwner(ctx, ownerID, query, opts.TopK, opts.MinSimilarity)
	if err != nil {
		if core.IsIndexUnavailable(err) {
			return nil, err
		}
		return nil, core.NewQueryError("Rank", core.ErrIndexUnavailable, err.Error(), false)
	}

	filtered := make([]core.ScoredNote, 0, len(candidates))
	for _, c := range candidates {
		if c.Note.OwnerID != ownerID {
			continue
		}
		if len(c.Note.Embedding) == 0 {
			continue
		}
		// Strict threshold: equal-to-threshold is excluded.
		if c.Similarity <= opts.MinSimilarity {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].Note.CreatedAt.After(filtered[j].Note.CreatedAt)
	})

	if len(filtered) > opts.TopK {
		filtered = filtered[:opts.TopK]
	}

	matches := make([]core.RankedMatch, len(filtered))
	for i, c := range filtered {
		matches[i] = core.RankedMatch{
			Note:       c.Note,
			Similarity: c.Similarity,
			Position:   i + 1,
		}
	}
	return matches, nil
}
