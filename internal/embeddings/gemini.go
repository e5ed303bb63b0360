package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// GeminiDriver implements EmbeddingDriver for the Gemini embedContent API.
// Supports text-embedding-004 (768d) and gemini-embedding-001 (3072d).
type GeminiDriver struct {
	endpoint string // defaults to https://generativelanguage.googleapis.com/v1beta
	client   *http.Client
}

// GeminiOption configures the Gemini driver.
type GeminiOption func(*GeminiDriver)

// WithGeminiEndpoint sets a custom API base URL (proxies, tests).
func WithGeminiEndpoint(endpoint string) GeminiOption {
	return func(d *GeminiDriver) { d.endpoint = endpoint }
}

// NewGeminiDriver creates a Gemini embedding driver.
func NewGeminiDriver(opts ...GeminiOption) *GeminiDriver {
	d := &GeminiDriver{
		endpoint: "https://generativelanguage.googleapis.com/v1beta",
		client:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *GeminiDriver) Kind() string { return "gemini" }

type geminiEmbedRequest struct {
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding vector for one text.
func (d *GeminiDriver) Embed(ctx context.Context, text, apiKey, model string) (*models.EmbeddingResult, error) {
	var payload geminiEmbedRequest
	payload.Content.Parts = append(payload.Content.Parts, struct {
		Text string `json:"text"`
	}{Text: text})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", d.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini embed API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result geminiEmbedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("gemini error: %s (%s)", result.Error.Message, result.Error.Status)
	}
	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding")
	}

	vec := result.Embedding.Values
	return &models.EmbeddingResult{Vector: vec, Dimensions: len(vec)}, nil
}
