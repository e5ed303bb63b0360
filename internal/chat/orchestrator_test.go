package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentbridge/agentbridge/internal/action"
	"github.com/agentbridge/agentbridge/internal/chat"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/internal/secrets"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/internal/template"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// scriptedDriver returns canned completions and records every call.
type scriptedDriver struct {
	kind    string
	replies []*models.Completion
	calls   []driverCall
}

type driverCall struct {
	model    string
	messages []models.ChatMessage
	tools    []models.ToolDef
	apiKey   string
}

func (d *scriptedDriver) Kind() string { return d.kind }

func (d *scriptedDriver) Chat(_ context.Context, model string, messages []models.ChatMessage, tools []models.ToolDef, apiKey string) (*models.Completion, error) {
	d.calls = append(d.calls, driverCall{model: model, messages: messages, tools: tools, apiKey: apiKey})
	reply := d.replies[len(d.calls)-1]
	return reply, nil
}

type turnFixture struct {
	orch   *chat.Orchestrator
	store  store.Store
	driver *scriptedDriver
	agent  *models.Agent
}

func newTurnFixture(t *testing.T, replies ...*models.Completion) *turnFixture {
	t.Helper()
	s := store.NewMemoryStore()
	cipher, err := secrets.NewCipher("test-passphrase")
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	driver := &scriptedDriver{kind: "openai", replies: replies}
	drivers := llm.NewRegistry()
	drivers.Register(driver)

	exec := action.NewExecutor(s, template.NewResolver(s, cipher))

	agent := &models.Agent{
		ID:           "a1",
		Name:         "weather-bot",
		SystemPrompt: "You are a weather assistant.",
		Provider:     models.ProviderOpenAI,
		Model:        "gpt-4o-mini",
	}
	if err := s.CreateAgent(context.Background(), agent); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}

	return &turnFixture{
		orch:   chat.NewOrchestrator(s, drivers, exec),
		store:  s,
		driver: driver,
		agent:  agent,
	}
}

func (f *turnFixture) bindAction(t *testing.T, upstream string) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateIntegration(ctx, &models.Integration{ID: "int1", Name: "weather-api", URL: upstream, Method: "GET"}); err != nil {
		t.Fatalf("CreateIntegration() error = %v", err)
	}
	act := &models.Action{
		ID:            "act1",
		Name:          "getWeather",
		Description:   "Fetch current weather",
		IntegrationID: "int1",
		Variables:     []models.ActionVariable{{Name: "city", Type: models.VarString}},
	}
	if err := f.store.CreateAction(ctx, act); err != nil {
		t.Fatalf("CreateAction() error = %v", err)
	}
	f.agent.Bindings = []models.ActionBinding{{ActionID: "act1", Enabled: true}}
	if err := f.store.UpdateAgent(ctx, f.agent); err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}
}

func userMessage(text string) []models.ChatMessage {
	return []models.ChatMessage{{Role: "user", Content: text}}
}

// ─── Plain answer ────────────────────────────────────────────

func TestRun_NoToolCall_SingleCompletion(t *testing.T) {
	f := newTurnFixture(t, &models.Completion{
		Content: "It is sunny.",
		Usage:   models.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	})

	result, err := f.orch.Run(context.Background(), f.agent, "sk-key", userMessage("Weather?"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.driver.calls) != 1 {
		t.Fatalf("driver calls = %d, want 1", len(f.driver.calls))
	}
	if result.Content != "It is sunny." {
		t.Errorf("Content = %q", result.Content)
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want none", result.ToolCalls)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", result.Usage.TotalTokens)
	}
}

func TestRun_SystemPromptPrepended(t *testing.T) {
	f := newTurnFixture(t, &models.Completion{Content: "hi"})

	if _, err := f.orch.Run(context.Background(), f.agent, "", userMessage("hello")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	msgs := f.driver.calls[0].messages
	if msgs[0].Role != "system" || msgs[0].Content != "You are a weather assistant." {
		t.Errorf("first message = %+v, want system prompt", msgs[0])
	}
}

// ─── Tool-call turn ──────────────────────────────────────────

func TestRun_ToolCall_TwoCompletions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"temp": 21}`))
	}))
	defer srv.Close()

	f := newTurnFixture(t,
		&models.Completion{
			Content:  "Let me check.",
			ToolCall: &models.ToolCall{Tool: "getWeather", Inputs: map[string]any{"city": "Berlin"}},
			Usage:    models.TokenUsage{TotalTokens: 20},
		},
		&models.Completion{
			Content: "It is 21 degrees in Berlin.",
			Usage:   models.TokenUsage{TotalTokens: 30},
		},
	)
	f.bindAction(t, srv.URL)

	result, err := f.orch.Run(context.Background(), f.agent, "sk-key", userMessage("Weather in Berlin?"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.driver.calls) != 2 {
		t.Fatalf("driver calls = %d, want 2", len(f.driver.calls))
	}

	// First completion sees the tool catalog, second must not.
	if len(f.driver.calls[0].tools) != 1 {
		t.Errorf("first call tools = %d, want 1", len(f.driver.calls[0].tools))
	}
	if f.driver.calls[1].tools != nil {
		t.Errorf("second call tools = %v, want nil", f.driver.calls[1].tools)
	}

	// The second completion's conversation folds in the tool result.
	second := f.driver.calls[1].messages
	last := second[len(second)-1]
	if last.Role != "user" || !strings.Contains(last.Content, `"temp":21`) {
		t.Errorf("tool result message = %+v", last)
	}

	if result.Content != "It is 21 degrees in Berlin." {
		t.Errorf("Content = %q", result.Content)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Tool != "getWeather" {
		t.Errorf("ToolCalls = %+v", result.ToolCalls)
	}
	if len(result.ToolResults) != 1 || !result.ToolResults[0].Success {
		t.Errorf("ToolResults = %+v", result.ToolResults)
	}
	if result.Usage.TotalTokens != 50 {
		t.Errorf("TotalTokens = %d, want summed 50", result.Usage.TotalTokens)
	}
}

func TestRun_ToolFailure_SecondCompletionStillRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("unknown city"))
	}))
	defer srv.Close()

	f := newTurnFixture(t,
		&models.Completion{
			ToolCall: &models.ToolCall{Tool: "getWeather", Inputs: map[string]any{"city": "Atlantis"}},
		},
		&models.Completion{Content: "I could not find that city."},
	)
	f.bindAction(t, srv.URL)

	result, err := f.orch.Run(context.Background(), f.agent, "", userMessage("Weather in Atlantis?"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.driver.calls) != 2 {
		t.Fatalf("driver calls = %d, want 2", len(f.driver.calls))
	}
	second := f.driver.calls[1].messages
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "failed") {
		t.Errorf("failure message = %q, want failure explanation request", last.Content)
	}
	if len(result.ToolResults) != 1 || result.ToolResults[0].Success {
		t.Errorf("ToolResults = %+v, want recorded failure", result.ToolResults)
	}
}

func TestRun_UnknownTool_Dropped(t *testing.T) {
	f := newTurnFixture(t, &models.Completion{
		Content:  "Calling a tool you never gave me.",
		ToolCall: &models.ToolCall{Tool: "launchRockets", Inputs: map[string]any{}},
	})

	result, err := f.orch.Run(context.Background(), f.agent, "", userMessage("hi"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.driver.calls) != 1 {
		t.Fatalf("driver calls = %d, want 1 (no second completion)", len(f.driver.calls))
	}
	if len(result.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %+v, want none", result.ToolCalls)
	}
	if result.Content != "Calling a tool you never gave me." {
		t.Errorf("Content = %q, want first completion text", result.Content)
	}
}

func TestRun_DisabledBinding_ExcludedFromCatalog(t *testing.T) {
	f := newTurnFixture(t, &models.Completion{Content: "ok"})
	f.bindAction(t, "http://unused.invalid")

	f.agent.Bindings[0].Enabled = false
	if err := f.store.UpdateAgent(context.Background(), f.agent); err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}

	if _, err := f.orch.Run(context.Background(), f.agent, "", userMessage("hi")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(f.driver.calls[0].tools); got != 0 {
		t.Errorf("catalog size = %d, want 0 for disabled binding", got)
	}
}

func TestRun_UnknownProvider(t *testing.T) {
	f := newTurnFixture(t, &models.Completion{Content: "ok"})
	f.agent.Provider = "anthropic"

	if _, err := f.orch.Run(context.Background(), f.agent, "", userMessage("hi")); err == nil {
		t.Fatal("Run() with unregistered provider should fail")
	}
}
