package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// PineconeIndex implements VectorIndex against a Pinecone serverless index.
// The host is the index-specific endpoint from the Pinecone console
// (e.g. https://my-index-abc123.svc.us-east-1.pinecone.io). Chunk text
// travels in vector metadata so queries return it without a second hop.
type PineconeIndex struct {
	host   string
	apiKey string
	client *http.Client
}

// NewPineconeIndex creates a Pinecone-backed vector index.
func NewPineconeIndex(host, apiKey string) *PineconeIndex {
	log.Info().Str("host", host).Msg("Pinecone vector index initialized")
	return &PineconeIndex{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PineconeIndex) Kind() string { return "pinecone" }

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (p *PineconeIndex) Upsert(ctx context.Context, namespace string, items []models.VectorItem) error {
	if len(items) == 0 {
		return nil
	}
	vectors := make([]pineconeVector, len(items))
	for i, item := range items {
		vectors[i] = pineconeVector{ID: item.ID, Values: item.Vector, Metadata: item.Metadata}
	}
	payload := map[string]any{"vectors": vectors, "namespace": namespace}
	return p.post(ctx, "/vectors/upsert", payload, nil)
}

func (p *PineconeIndex) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]models.Match, error) {
	payload := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"namespace":       namespace,
		"includeMetadata": true,
	}
	var result struct {
		Matches []struct {
			ID       string            `json:"id"`
			Score    float64           `json:"score"`
			Metadata map[string]string `json:"metadata"`
		} `json:"matches"`
	}
	if err := p.post(ctx, "/query", payload, &result); err != nil {
		return nil, err
	}

	matches := make([]models.Match, len(result.Matches))
	for i, m := range result.Matches {
		matches[i] = models.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return matches, nil
}

func (p *PineconeIndex) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]any{"ids": ids, "namespace": namespace}
	return p.post(ctx, "/vectors/delete", payload, nil)
}

func (p *PineconeIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	payload := map[string]any{"deleteAll": true, "namespace": namespace}
	return p.post(ctx, "/vectors/delete", payload, nil)
}

func (p *PineconeIndex) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinecone %s returned %d: %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
