package core

import (
	"fmt"
	"math"
)

// CosineSimilarity calculates cosine similarity between two vectors
// Returns similarity score in [-1, 1] (higher = more similar)
func CosineSimilarity(a, b EmbeddingVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions must match: %d != %d", len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// CosineDistance calculates cosine distance (1 - cosine similarity)
// Returns distance score (lower = more similar)
func CosineDistance(a, b EmbeddingVector) (float64, error) {
	similarity, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - similarity, nil
}
