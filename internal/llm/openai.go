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

// chatTemperature is the fixed sampling temperature for all chat turns.
const chatTemperature = 0.7

// OpenAIDriver implements ChatDriver against the OpenAI chat completions API.
type OpenAIDriver struct {
	endpoint string // defaults to https://api.openai.com/v1
	client   *http.Client
}

// OpenAIOption configures the OpenAI driver.
type OpenAIOption func(*OpenAIDriver)

// WithOpenAIEndpoint sets a custom API base URL (proxies, tests).
func WithOpenAIEndpoint(endpoint string) OpenAIOption {
	return func(d *OpenAIDriver) { d.endpoint = endpoint }
}

// NewOpenAIDriver creates an OpenAI chat driver.
func NewOpenAIDriver(opts ...OpenAIOption) *OpenAIDriver {
	d := &OpenAIDriver{
		endpoint: "https://api.openai.com/v1",
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OpenAIDriver) Kind() string { return "openai" }

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat issues one completion. The tool catalog is folded into the system
// message via BuildInstruction; any vendor failure propagates unmodified.
func (d *OpenAIDriver) Chat(ctx context.Context, model string, messages []models.ChatMessage, tools []models.ToolDef, apiKey string) (*models.Completion, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is empty")
	}

	system, rest := splitSystem(messages)
	wire := make([]openAIChatMessage, 0, len(rest)+1)
	wire = append(wire, openAIChatMessage{Role: "system", Content: BuildInstruction(system, tools)})
	for _, m := range rest {
		wire = append(wire, openAIChatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(openAIChatRequest{Model: model, Messages: wire, Temperature: chatTemperature})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := d.endpoint + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result openAIChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("openai: %s (%s)", result.Error.Message, result.Error.Type)
	}

	content := ""
	if len(result.Choices) > 0 {
		content = result.Choices[0].Message.Content
	}

	return &models.Completion{
		Content:  content,
		ToolCall: ParseToolCall(content),
		Usage: models.TokenUsage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
			TotalTokens:  result.Usage.TotalTokens,
		},
	}, nil
}

// splitSystem separates the leading system prompt from the conversation.
func splitSystem(messages []models.ChatMessage) (string, []models.ChatMessage) {
	system := ""
	rest := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" && system == "" {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
