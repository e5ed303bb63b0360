package embeddings

import (
	"math"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// MockDimensions is the dimensionality of the deterministic mock vector,
// matching the default vendor embedding size.
const MockDimensions = 1536

// MockEmbedding computes the deterministic offline embedding for a text:
// a rolling hash of the input seeds a sine transform per dimension, then
// the vector is L2-normalized. Identical text always yields an identical
// vector, which keeps retrieval testable without network access.
func MockEmbedding(text string) *models.EmbeddingResult {
	var hash uint64
	for _, b := range []byte(text) {
		hash = hash*31 + uint64(b)
	}
	// Keep the seed small so float64 sine stays well-conditioned.
	seed := float64(hash % 100003)

	vector := make([]float64, MockDimensions)
	var norm float64
	for i := range vector {
		v := math.Sin(seed + float64(i))
		vector[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}

	return &models.EmbeddingResult{Vector: vector, Dimensions: MockDimensions}
}
