package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentbridge/agentbridge/pkg/models"
)

func chatMessages() []models.ChatMessage {
	return []models.ChatMessage{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Weather in Berlin?"},
		{Role: "assistant", Content: "Let me check."},
		{Role: "user", Content: "Thanks."},
	}
}

func weatherTool() []models.ToolDef {
	return []models.ToolDef{{
		Name:        "getWeather",
		Description: "Fetch current weather",
		Variables:   []models.ActionVariable{{Name: "city", Type: models.VarString}},
	}}
}

// ─── OpenAI wire shape ───────────────────────────────────────

func TestOpenAIChat(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "```json\n{\"tool\": \"getWeather\", \"inputs\": {\"city\": \"Berlin\"}}\n```"}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20},
		})
	}))
	defer srv.Close()

	d := NewOpenAIDriver(WithOpenAIEndpoint(srv.URL))
	got, err := d.Chat(context.Background(), "gpt-4o-mini", chatMessages(), weatherTool(), "sk-key")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotAuth != "Bearer sk-key" {
		t.Errorf("Authorization = %q, want Bearer", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotReq["model"])
	}
	if gotReq["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotReq["temperature"])
	}

	msgs := gotReq["messages"].([]any)
	first := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first wire message role = %v, want system", first["role"])
	}
	if !strings.Contains(first["content"].(string), "getWeather") {
		t.Error("system message does not carry the tool catalog")
	}
	if len(msgs) != 4 {
		t.Errorf("wire messages = %d, want 4", len(msgs))
	}

	if got.ToolCall == nil || got.ToolCall.Tool != "getWeather" {
		t.Errorf("ToolCall = %+v, want parsed getWeather", got.ToolCall)
	}
	if got.Usage.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", got.Usage.TotalTokens)
	}
}

func TestOpenAIChat_EmptyAPIKey(t *testing.T) {
	d := NewOpenAIDriver()
	if _, err := d.Chat(context.Background(), "gpt-4o-mini", chatMessages(), nil, ""); err == nil {
		t.Fatal("Chat() with empty key should fail")
	}
}

func TestOpenAIChat_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	d := NewOpenAIDriver(WithOpenAIEndpoint(srv.URL))
	_, err := d.Chat(context.Background(), "gpt-4o-mini", chatMessages(), nil, "sk-bad")
	if err == nil {
		t.Fatal("Chat() should propagate vendor error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %v, want status included", err)
	}
}

// ─── Gemini wire shape ───────────────────────────────────────

func TestGeminiChat(t *testing.T) {
	var gotKey, gotPath string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{
					{"text": "It is "}, {"text": "sunny."},
				}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 9, "candidatesTokenCount": 3, "totalTokenCount": 12},
		})
	}))
	defer srv.Close()

	d := NewGeminiDriver(WithGeminiEndpoint(srv.URL))
	got, err := d.Chat(context.Background(), "gemini-2.0-flash", chatMessages(), weatherTool(), "g-key")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotKey != "g-key" {
		t.Errorf("x-goog-api-key = %q", gotKey)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}

	// System prompt travels out of band, not in contents.
	si := gotReq["system_instruction"].(map[string]any)
	siText := si["parts"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(siText, "You are helpful.") || !strings.Contains(siText, "getWeather") {
		t.Error("system_instruction missing prompt or tool catalog")
	}

	contents := gotReq["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("contents = %d, want 3 (system excluded)", len(contents))
	}
	second := contents[1].(map[string]any)
	if second["role"] != "model" {
		t.Errorf("assistant role mapped to %v, want model", second["role"])
	}

	gc := gotReq["generationConfig"].(map[string]any)
	if gc["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gc["temperature"])
	}
	if gc["maxOutputTokens"] != float64(2048) {
		t.Errorf("maxOutputTokens = %v, want 2048", gc["maxOutputTokens"])
	}

	if got.Content != "It is sunny." {
		t.Errorf("Content = %q, want joined parts", got.Content)
	}
	if got.Usage.TotalTokens != 12 {
		t.Errorf("TotalTokens = %d, want 12", got.Usage.TotalTokens)
	}
}

func TestGeminiChat_EmptyAPIKey(t *testing.T) {
	d := NewGeminiDriver()
	if _, err := d.Chat(context.Background(), "gemini-2.0-flash", chatMessages(), nil, ""); err == nil {
		t.Fatal("Chat() with empty key should fail")
	}
}
