package llm

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

// geminiMaxOutputTokens caps completion length; the Gemini API otherwise
// defaults very low for some models.
const geminiMaxOutputTokens = 2048

// GeminiDriver implements ChatDriver against the Gemini generateContent API.
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

// NewGeminiDriver creates a Gemini chat driver.
func NewGeminiDriver(opts ...GeminiOption) *GeminiDriver {
	d := &GeminiDriver{
		endpoint: "https://generativelanguage.googleapis.com/v1beta",
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *GeminiDriver) Kind() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiChatRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiChatResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Chat issues one completion. Identical manifest and tool-call parsing as
// the OpenAI driver; only the wire shape differs — Gemini takes the system
// instruction out of band and maps the assistant role to "model".
func (d *GeminiDriver) Chat(ctx context.Context, model string, messages []models.ChatMessage, tools []models.ToolDef, apiKey string) (*models.Completion, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}

	system, rest := splitSystem(messages)

	payload := geminiChatRequest{}
	if instruction := BuildInstruction(system, tools); instruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: instruction}}}
	}
	for _, m := range rest {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		payload.Contents = append(payload.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	payload.GenerationConfig.Temperature = chatTemperature
	payload.GenerationConfig.MaxOutputTokens = geminiMaxOutputTokens

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", d.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result geminiChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("gemini: %s (%s)", result.Error.Message, result.Error.Status)
	}

	content := ""
	if len(result.Candidates) > 0 {
		for _, p := range result.Candidates[0].Content.Parts {
			content += p.Text
		}
	}

	return &models.Completion{
		Content:  content,
		ToolCall: ParseToolCall(content),
		Usage: models.TokenUsage{
			InputTokens:  result.UsageMetadata.PromptTokenCount,
			OutputTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  result.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
