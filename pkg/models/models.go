// Package models defines the domain types for the Agent Bridge control plane.
//
// The model centers on three configuration entities — Integration, Action,
// Secret — plus per-tenant Agents that bind Actions as LLM-invokable tools
// and own KnowledgeBase document collections for retrieval.
package models

import (
	"time"
)

// ── Integration ──────────────────────────────────────────────

// AuthParamType says where an auth parameter is injected on the wire.
type AuthParamType string

const (
	AuthParamHeader AuthParamType = "header"
	AuthParamQuery  AuthParamType = "query"
)

// AuthParam is one auth entry on an Integration. Value is a template; when
// Secret is true it is typically a secret-indirection token like
// {{SERVICE_API_KEY}} resolved at execution time.
type AuthParam struct {
	Type   AuthParamType `json:"type"`
	Key    string        `json:"key"`
	Value  string        `json:"value"`
	Secret bool          `json:"secret,omitempty"`
}

// Integration is an HTTP endpoint template shared by one or more Actions.
type Integration struct {
	ID             string            `json:"id" db:"id"`
	Name           string            `json:"name" db:"name"`
	Method         string            `json:"method" db:"method"`
	URL            string            `json:"url" db:"url"`
	AuthEnabled    bool              `json:"auth_enabled" db:"auth_enabled"`
	AuthParams     []AuthParam       `json:"auth_params,omitempty"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`
	DefaultParams  map[string]string `json:"default_params,omitempty"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// ── Action ───────────────────────────────────────────────────

// VariableType is the declared type of an Action input variable.
type VariableType string

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarBoolean VariableType = "boolean"
	VarObject  VariableType = "object"
	VarArray   VariableType = "array"
)

// ActionVariable declares one input of an Action's tool schema.
type ActionVariable struct {
	Name        string       `json:"name"`
	Type        VariableType `json:"type"`
	Description string       `json:"description,omitempty"`
}

// ExecutionMode controls when an action runs relative to the chat turn.
type ExecutionMode string

const (
	ExecSync ExecutionMode = "sync"
)

// Action is a named, LLM-invokable operation bound to an Integration.
type Action struct {
	ID            string            `json:"id" db:"id"`
	Name          string            `json:"name" db:"name"`
	Description   string            `json:"description" db:"description"`
	IntegrationID string            `json:"integration_id" db:"integration_id"`
	ExecutionMode ExecutionMode     `json:"execution_mode,omitempty" db:"execution_mode"`
	Variables     []ActionVariable  `json:"variables,omitempty"`
	URLTemplate   string            `json:"url_template,omitempty" db:"url_template"`
	BodyTemplate  string            `json:"body_template,omitempty" db:"body_template"`
	QueryTemplate map[string]string `json:"query_template,omitempty"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// ── Secret ───────────────────────────────────────────────────

// Secret is a named credential. Value holds the AES-GCM ciphertext; the
// plaintext is only materialized at execution time, never cached.
type Secret struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Value     string    `json:"-" db:"value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ── Agent ────────────────────────────────────────────────────

// LLMProvider identifies the chat-completion vendor for an agent.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// ActionBinding links an Action to an Agent. Only bindings with
// Enabled=true appear in the agent's tool catalog.
type ActionBinding struct {
	ActionID string `json:"action_id"`
	Enabled  bool   `json:"enabled"`
}

// Agent is a configured LLM persona with bound actions and knowledge bases.
// APIKey holds ciphertext; handlers decrypt it just before a chat turn.
type Agent struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	SystemPrompt string          `json:"system_prompt" db:"system_prompt"`
	Provider     LLMProvider     `json:"llm_provider" db:"llm_provider"`
	Model        string          `json:"llm_model" db:"llm_model"`
	APIKey       string          `json:"-" db:"api_key"`
	Bindings     []ActionBinding `json:"bindings,omitempty"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Namespace returns the vector index namespace for this agent. One
// namespace per agent keeps retrieval isolated between agents.
func (a *Agent) Namespace() string {
	return "agent-" + a.ID
}

// ── Knowledge Base ───────────────────────────────────────────

// KnowledgeBaseStatus is the ingestion lifecycle state. Transitions are
// monotonic: uploaded → processing → indexed, with processing → failed
// terminal on error.
type KnowledgeBaseStatus string

const (
	KBUploaded   KnowledgeBaseStatus = "uploaded"
	KBProcessing KnowledgeBaseStatus = "processing"
	KBIndexed    KnowledgeBaseStatus = "indexed"
	KBFailed     KnowledgeBaseStatus = "failed"
)

// KnowledgeBase is one ingested document owned by an agent.
type KnowledgeBase struct {
	ID         string              `json:"id" db:"id"`
	AgentID    string              `json:"agent_id" db:"agent_id"`
	FileName   string              `json:"file_name" db:"file_name"`
	FileSize   int64               `json:"file_size,omitempty" db:"file_size"`
	MimeType   string              `json:"mime_type,omitempty" db:"mime_type"`
	Status     KnowledgeBaseStatus `json:"status" db:"status"`
	ChunkCount int                 `json:"chunk_count" db:"chunk_count"`
	Error      string              `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" db:"updated_at"`
}

// VectorChunk is the unit of embedding and retrieval: one bounded slice of
// an extracted document. ChunkIndex is contiguous 0..n-1 within its
// knowledge base; VectorID is globally unique across the index.
type VectorChunk struct {
	ID              string            `json:"id" db:"id"`
	KnowledgeBaseID string            `json:"knowledge_base_id" db:"knowledge_base_id"`
	ChunkIndex      int               `json:"chunk_index" db:"chunk_index"`
	Text            string            `json:"text" db:"text"`
	VectorID        string            `json:"vector_id" db:"vector_id"`
	Embedding       []float64         `json:"-"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// ── Chat ─────────────────────────────────────────────────────

// ChatMessage is one turn of a conversation in provider-neutral form.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// ToolDef is one entry of the tool catalog exposed to the model for a
// chat turn: an enabled Action joined with its Integration.
type ToolDef struct {
	ActionID    string           `json:"action_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Variables   []ActionVariable `json:"variables,omitempty"`
}

// ToolCall is the structured {tool, inputs} directive parsed out of a
// model's free-text response.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Inputs map[string]any `json:"inputs"`
}

// TokenUsage carries best-effort usage counters. Vendors that do not
// report a counter leave it at zero; missing usage is never an error.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Completion is the provider-neutral result of one chat completion.
type Completion struct {
	Content  string     `json:"content"`
	ToolCall *ToolCall  `json:"tool_call,omitempty"`
	Usage    TokenUsage `json:"usage"`
}

// ChatResult is the final answer of one orchestrated chat turn.
type ChatResult struct {
	Role        string            `json:"role"`
	Content     string            `json:"content"`
	ToolCalls   []ToolCall        `json:"tool_calls,omitempty"`
	ToolResults []ExecutionResult `json:"tool_results,omitempty"`
	Usage       TokenUsage        `json:"usage"`
}

// ── Action Execution ─────────────────────────────────────────

// RequestEcho is the outbound request echoed back in an ExecutionResult,
// with sensitive header values masked.
type RequestEcho struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// ExecutionResult is the outcome of one action execution. Every failure
// mode is captured here; the executor never panics or raises.
type ExecutionResult struct {
	Success bool         `json:"success"`
	Status  int          `json:"status,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Request *RequestEcho `json:"request,omitempty"`
}

// ── Retrieval ────────────────────────────────────────────────

// VectorItem is one entry upserted into a vector index.
type VectorItem struct {
	ID       string            `json:"id"`
	Vector   []float64         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is one ranked result of a vector index query.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievedChunk is a query match hydrated with its stored text.
type RetrievedChunk struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EmbeddingResult is the output of one embedding generation.
type EmbeddingResult struct {
	Vector     []float64 `json:"vector"`
	Dimensions int       `json:"dimensions"`
}
