package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/internal/embeddings"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/contracts"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// Default embedding models per vendor.
const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"
)

// Ingester runs the synchronous knowledge base pipeline:
// chunk → embed → upsert, with status transitions persisted at each stage.
// Vector IDs are derived from the knowledge base ID and chunk index, so
// re-ingesting the same document overwrites its previous vectors.
type Ingester struct {
	store      store.Store
	embeddings *embeddings.Provider
	index      contracts.VectorIndex
	chunker    ChunkerConfig
}

// NewIngester creates a knowledge base ingester.
func NewIngester(st store.Store, emb *embeddings.Provider, index contracts.VectorIndex, chunker ChunkerConfig) *Ingester {
	return &Ingester{store: st, embeddings: emb, index: index, chunker: chunker}
}

// Ingest processes an uploaded document for the agent's namespace. The
// knowledge base moves uploaded → processing → indexed, or → failed with
// the error recorded. Embedding never fails (offline fallback), so the
// only failure mode is the index upsert or the store itself.
func (ing *Ingester) Ingest(ctx context.Context, agent *models.Agent, apiKey string, kb *models.KnowledgeBase, text string) error {
	kb.Status = models.KBProcessing
	kb.UpdatedAt = time.Now()
	if err := ing.store.UpdateKnowledgeBase(ctx, kb); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	chunks := ChunkText(text, ing.chunker)
	kind, model := embeddingModel(agent.Provider)

	items := make([]models.VectorItem, len(chunks))
	for i, chunk := range chunks {
		result := ing.embeddings.Generate(ctx, kind, chunk.Text, apiKey, model)
		items[i] = models.VectorItem{
			ID:     VectorID(kb.ID, chunk.Index),
			Vector: result.Vector,
			Metadata: map[string]string{
				"knowledge_base_id": kb.ID,
				"chunk_index":       fmt.Sprintf("%d", chunk.Index),
				"file_name":         kb.FileName,
				"text":              chunk.Text,
			},
		}
	}

	if err := ing.index.Upsert(ctx, agent.Namespace(), items); err != nil {
		kb.Status = models.KBFailed
		kb.Error = err.Error()
		kb.UpdatedAt = time.Now()
		if uerr := ing.store.UpdateKnowledgeBase(ctx, kb); uerr != nil {
			log.Error().Err(uerr).Str("kb_id", kb.ID).Msg("Failed to record ingestion failure")
		}
		return fmt.Errorf("upsert vectors: %w", err)
	}

	kb.Status = models.KBIndexed
	kb.ChunkCount = len(chunks)
	kb.Error = ""
	kb.UpdatedAt = time.Now()
	if err := ing.store.UpdateKnowledgeBase(ctx, kb); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}

	log.Info().
		Str("kb_id", kb.ID).
		Str("agent_id", agent.ID).
		Int("chunks", len(chunks)).
		Msg("Knowledge base indexed")
	return nil
}

// Remove deletes a knowledge base and its vectors. Vector IDs are
// recomputed from the recorded chunk count.
func (ing *Ingester) Remove(ctx context.Context, agent *models.Agent, kb *models.KnowledgeBase) error {
	if kb.ChunkCount > 0 {
		ids := make([]string, kb.ChunkCount)
		for i := range ids {
			ids[i] = VectorID(kb.ID, i)
		}
		if err := ing.index.DeleteByIDs(ctx, agent.Namespace(), ids); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
	}
	return ing.store.DeleteKnowledgeBase(ctx, kb.ID)
}

// VectorID returns the deterministic index ID for one chunk.
func VectorID(kbID string, chunkIndex int) string {
	return fmt.Sprintf("%s-%d", kbID, chunkIndex)
}

// embeddingModel maps a chat provider to its embedding driver kind and
// default embedding model.
func embeddingModel(provider models.LLMProvider) (kind, model string) {
	switch provider {
	case models.ProviderGemini:
		return "gemini", defaultGeminiModel
	default:
		return "openai", defaultOpenAIModel
	}
}
