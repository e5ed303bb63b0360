package vectorstore

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// ScanIndex is the exact vector index: chunk rows live in the relational
// store and every query computes cosine similarity against all rows in
// the namespace. Results are exact, latency grows linearly with corpus
// size. Suitable for development and small knowledge bases.
type ScanIndex struct {
	chunks store.ChunkStore
}

// NewScanIndex creates a brute-force index over the given chunk store.
func NewScanIndex(chunks store.ChunkStore) *ScanIndex {
	return &ScanIndex{chunks: chunks}
}

func (s *ScanIndex) Kind() string { return "scan" }

func (s *ScanIndex) Upsert(ctx context.Context, namespace string, items []models.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.VectorChunk, len(items))
	for i, item := range items {
		idx, _ := strconv.Atoi(item.Metadata["chunk_index"])
		rows[i] = models.VectorChunk{
			VectorID:        item.ID,
			KnowledgeBaseID: item.Metadata["knowledge_base_id"],
			ChunkIndex:      idx,
			Text:            item.Metadata["text"],
			Embedding:       item.Vector,
			Metadata:        item.Metadata,
		}
	}
	return s.chunks.UpsertChunks(ctx, namespace, rows)
}

// Query scans every row in the namespace. Rows whose vector length differs
// from the query vector are skipped. Ties keep storage order, which the
// chunk store guarantees is the original insertion order.
func (s *ScanIndex) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]models.Match, error) {
	rows, err := s.chunks.ListChunks(ctx, namespace)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, 0, len(rows))
	for _, row := range rows {
		if len(row.Embedding) != len(vector) {
			continue
		}
		matches = append(matches, models.Match{
			ID:       row.VectorID,
			Score:    cosineSimilarity(vector, row.Embedding),
			Metadata: row.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *ScanIndex) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	return s.chunks.DeleteChunksByVectorID(ctx, namespace, ids)
}

func (s *ScanIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.chunks.DeleteChunkNamespace(ctx, namespace)
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
