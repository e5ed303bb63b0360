package knowledge

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/internal/embeddings"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/contracts"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// Retriever answers question-time similarity queries against an agent's
// namespace, hydrating match metadata back into chunk text.
type Retriever struct {
	embeddings *embeddings.Provider
	index      contracts.VectorIndex
	chunks     store.ChunkStore
}

// NewRetriever creates a retriever over the given index. The chunk store
// is the hydration fallback for backends that do not return text in
// match metadata.
func NewRetriever(emb *embeddings.Provider, index contracts.VectorIndex, chunks store.ChunkStore) *Retriever {
	return &Retriever{embeddings: emb, index: index, chunks: chunks}
}

// Retrieve embeds the question and returns the topK most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, agent *models.Agent, apiKey, question string, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	kind, model := embeddingModel(agent.Provider)
	embedded := r.embeddings.Generate(ctx, kind, question, apiKey, model)

	matches, err := r.index.Query(ctx, agent.Namespace(), embedded.Vector, topK)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievedChunk, 0, len(matches))
	var missing []string
	for _, m := range matches {
		text, ok := m.Metadata["text"]
		if !ok {
			missing = append(missing, m.ID)
		}
		results = append(results, models.RetrievedChunk{
			Text:     text,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}

	// Backends that strip metadata fall back to the relational rows.
	if len(missing) > 0 && r.chunks != nil {
		rows, err := r.chunks.GetChunksByVectorID(ctx, agent.Namespace(), missing)
		if err != nil {
			log.Warn().Err(err).Msg("Chunk text hydration failed")
			return results, nil
		}
		byID := make(map[string]string, len(rows))
		for _, row := range rows {
			byID[row.VectorID] = row.Text
		}
		for i, m := range matches {
			if results[i].Text == "" {
				results[i].Text = byID[m.ID]
			}
		}
	}
	return results, nil
}
