package persistence

import (
	"sort"

	"github.com/mnemonic-kb/mnemonic/core"
)

// scanSimilar computes cosine similarity between the query vector and
// every candidate note with an embedding, keeping scores strictly above
// minSimilarity, best first, newer note first on exact ties, capped at
// limit. Used by the flat-scan backends (memory, bolt); the postgres
// backend pushes the same semantics down to pgvector.
func scanSimilar(notes []core.Note, query core.EmbeddingVector, limit int, minSimilarity float64) ([]core.ScoredNote, error) {
	scored := make([]core.ScoredNote, 0, len(notes))
	for _, note := range notes {
		if len(note.Embedding) == 0 {
			continue
		}
		similarity, err := core.CosineSimilarity(query, note.Embedding)
		if err != nil {
			return nil, err
		}
		if similarity <= minSimilarity {
			continue
		}
		scored = append(scored, core.ScoredNote{Note: note, Similarity: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Note.CreatedAt.After(scored[j].Note.CreatedAt)
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
