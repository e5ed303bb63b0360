package embeddings

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Provider wraps a vendor driver with the deterministic offline fallback.
// Generate never fails: an empty API key or any vendor error falls back
// to the mock embedding, so ingestion and retrieval work without network
// access or credentials.
type Provider struct {
	drivers *Registry
}

// NewProvider creates an embedding provider over the given registry.
func NewProvider(drivers *Registry) *Provider {
	return &Provider{drivers: drivers}
}

// Generate produces an embedding for the text using the named vendor,
// with the mock fallback on empty key or vendor failure.
func (p *Provider) Generate(ctx context.Context, kind, text, apiKey, model string) *models.EmbeddingResult {
	if apiKey == "" {
		return MockEmbedding(text)
	}

	driver, err := p.drivers.Get(kind)
	if err != nil {
		log.Warn().Str("kind", kind).Msg("Unknown embedding vendor, using mock embedding")
		return MockEmbedding(text)
	}

	result, err := driver.Embed(ctx, text, apiKey, model)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("Embedding vendor failed, using mock embedding")
		return MockEmbedding(text)
	}
	return result
}
