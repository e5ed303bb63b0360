// Package handlers implements the HTTP handlers for the AgentBridge API.
// All handlers go through the Store interface; secrets and agent API keys
// are encrypted before they reach the store and masked on the way out.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/internal/action"
	"github.com/agentbridge/agentbridge/internal/chat"
	"github.com/agentbridge/agentbridge/internal/knowledge"
	"github.com/agentbridge/agentbridge/internal/secrets"
	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/contracts"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store        store.Store
	Cipher       *secrets.Cipher
	Orchestrator *chat.Orchestrator
	Executor     *action.Executor
	Ingester     *knowledge.Ingester
	Retriever    *knowledge.Retriever
	Index        contracts.VectorIndex
}

// New creates a Handlers instance with all dependencies.
func New(s store.Store, cipher *secrets.Cipher, orch *chat.Orchestrator, exec *action.Executor, ing *knowledge.Ingester, ret *knowledge.Retriever, index contracts.VectorIndex) *Handlers {
	return &Handlers{
		Store:        s,
		Cipher:       cipher,
		Orchestrator: orch,
		Executor:     exec,
		Ingester:     ing,
		Retriever:    ret,
		Index:        index,
	}
}

// ── Agent Handlers ───────────────────────────────────────────

type agentRequest struct {
	Name         string                 `json:"name"`
	SystemPrompt string                 `json:"system_prompt"`
	Provider     models.LLMProvider     `json:"llm_provider"`
	Model        string                 `json:"llm_model"`
	APIKey       string                 `json:"api_key"`
	Bindings     []models.ActionBinding `json:"bindings"`
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	respondJSON(w, http.StatusOK, agents)
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Agent name is required")
		return
	}
	if req.Provider != models.ProviderOpenAI && req.Provider != models.ProviderGemini {
		respondError(w, http.StatusBadRequest, "Unsupported llm_provider")
		return
	}

	agent := models.Agent{
		ID:           uuid.NewString(),
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		Provider:     req.Provider,
		Model:        req.Model,
		Bindings:     req.Bindings,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if req.APIKey != "" {
		enc, err := h.Cipher.Encrypt(req.APIKey)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to encrypt API key")
			return
		}
		agent.APIKey = enc
	}

	if err := h.Store.CreateAgent(r.Context(), &agent); err != nil {
		respondStoreError(w, err)
		return
	}

	log.Info().Str("agent", agent.Name).Str("id", agent.ID).Msg("Agent created")
	respondJSON(w, http.StatusCreated, agent)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name != "" {
		agent.Name = req.Name
	}
	agent.SystemPrompt = req.SystemPrompt
	if req.Provider != "" {
		agent.Provider = req.Provider
	}
	if req.Model != "" {
		agent.Model = req.Model
	}
	if req.Bindings != nil {
		agent.Bindings = req.Bindings
	}
	if req.APIKey != "" {
		enc, err := h.Cipher.Encrypt(req.APIKey)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to encrypt API key")
			return
		}
		agent.APIKey = enc
	}
	agent.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateAgent(r.Context(), agent); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	// Drop the agent's vectors and knowledge base records first.
	if err := h.Index.DeleteNamespace(r.Context(), agent.Namespace()); err != nil {
		log.Warn().Err(err).Str("agent_id", agent.ID).Msg("Failed to delete vector namespace")
	}
	kbs, err := h.Store.ListKnowledgeBases(r.Context(), agent.ID)
	if err == nil {
		for _, kb := range kbs {
			if err := h.Store.DeleteKnowledgeBase(r.Context(), kb.ID); err != nil {
				log.Warn().Err(err).Str("kb_id", kb.ID).Msg("Failed to delete knowledge base")
			}
		}
	}

	if err := h.Store.DeleteAgent(r.Context(), agent.ID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Chat Handler ─────────────────────────────────────────────

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "At least one message is required")
		return
	}

	apiKey := ""
	if agent.APIKey != "" {
		apiKey, err = h.Cipher.Decrypt(agent.APIKey)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to decrypt API key")
			return
		}
	}

	result, err := h.Orchestrator.Run(r.Context(), agent, apiKey, req.Messages)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ── Integration Handlers ─────────────────────────────────────

func (h *Handlers) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := h.Store.ListIntegrations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if integrations == nil {
		integrations = []models.Integration{}
	}
	respondJSON(w, http.StatusOK, integrations)
}

func (h *Handlers) CreateIntegration(w http.ResponseWriter, r *http.Request) {
	var req models.Integration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		respondError(w, http.StatusBadRequest, "Integration name and url are required")
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = time.Now().UTC()

	if err := h.Store.CreateIntegration(r.Context(), &req); err != nil {
		respondStoreError(w, err)
		return
	}
	log.Info().Str("integration", req.Name).Str("id", req.ID).Msg("Integration created")
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) GetIntegration(w http.ResponseWriter, r *http.Request) {
	integration, err := h.Store.GetIntegration(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	respondJSON(w, http.StatusOK, integration)
}

func (h *Handlers) UpdateIntegration(w http.ResponseWriter, r *http.Request) {
	existing, err := h.Store.GetIntegration(r.Context(), chi.URLParam(r, "integrationID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req models.Integration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = existing.ID
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateIntegration(r.Context(), &req); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) DeleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteIntegration(r.Context(), chi.URLParam(r, "integrationID")); err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Action Handlers ──────────────────────────────────────────

func (h *Handlers) ListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.Store.ListActions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	respondJSON(w, http.StatusOK, actions)
}

func (h *Handlers) CreateAction(w http.ResponseWriter, r *http.Request) {
	var req models.Action
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.IntegrationID == "" {
		respondError(w, http.StatusBadRequest, "Action name and integration_id are required")
		return
	}

	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = time.Now().UTC()

	if err := h.Store.CreateAction(r.Context(), &req); err != nil {
		if errors.As(err, new(*store.ErrNotFound)) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	log.Info().Str("action", req.Name).Str("id", req.ID).Msg("Action created")
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) GetAction(w http.ResponseWriter, r *http.Request) {
	act, err := h.Store.GetAction(r.Context(), chi.URLParam(r, "actionID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	respondJSON(w, http.StatusOK, act)
}

func (h *Handlers) UpdateAction(w http.ResponseWriter, r *http.Request) {
	existing, err := h.Store.GetAction(r.Context(), chi.URLParam(r, "actionID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req models.Action
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = existing.ID
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateAction(r.Context(), &req); err != nil {
		if errors.As(err, new(*store.ErrNotFound)) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) DeleteAction(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAction(r.Context(), chi.URLParam(r, "actionID")); err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExecuteAction runs an action directly with caller-supplied inputs.
// Used to test an action definition before binding it to an agent.
func (h *Handlers) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	var inputs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := h.Executor.Execute(r.Context(), chi.URLParam(r, "actionID"), inputs)
	respondJSON(w, http.StatusOK, result)
}

// ── Secret Handlers ──────────────────────────────────────────

type secretRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// secretView is the API shape of a secret: the value never leaves the
// server, only its mask does.
type secretView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MaskedValue string    `json:"masked_value"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (h *Handlers) maskSecret(s *models.Secret) secretView {
	masked := "***"
	if plain, err := h.Cipher.Decrypt(s.Value); err == nil {
		masked = secrets.Mask(plain)
	}
	return secretView{
		ID:          s.ID,
		Name:        s.Name,
		MaskedValue: masked,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (h *Handlers) ListSecrets(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListSecrets(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]secretView, len(list))
	for i := range list {
		views[i] = h.maskSecret(&list[i])
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handlers) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Value == "" {
		respondError(w, http.StatusBadRequest, "Secret name and value are required")
		return
	}

	enc, err := h.Cipher.Encrypt(req.Value)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encrypt secret")
		return
	}

	secret := models.Secret{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Value:     enc,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateSecret(r.Context(), &secret); err != nil {
		respondStoreError(w, err)
		return
	}

	log.Info().Str("secret", secret.Name).Msg("Secret created")
	respondJSON(w, http.StatusCreated, h.maskSecret(&secret))
}

func (h *Handlers) UpdateSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "secretName")
	secret, err := h.Store.GetSecretByName(r.Context(), name)
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Value == "" {
		respondError(w, http.StatusBadRequest, "Secret value is required")
		return
	}

	enc, err := h.Cipher.Encrypt(req.Value)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encrypt secret")
		return
	}
	secret.Value = enc
	secret.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateSecret(r.Context(), secret); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.maskSecret(secret))
}

func (h *Handlers) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "secretName")
	secret, err := h.Store.GetSecretByName(r.Context(), name)
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	if err := h.Store.DeleteSecret(r.Context(), secret.ID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Knowledge Base Handlers ──────────────────────────────────

type uploadRequest struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Content  string `json:"content"`
}

func (h *Handlers) ListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	kbs, err := h.Store.ListKnowledgeBases(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if kbs == nil {
		kbs = []models.KnowledgeBase{}
	}
	respondJSON(w, http.StatusOK, kbs)
}

// UploadKnowledge accepts a document and ingests it synchronously. The
// response carries the terminal status: indexed or failed.
func (h *Handlers) UploadKnowledge(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileName == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "file_name and content are required")
		return
	}

	kb := models.KnowledgeBase{
		ID:        uuid.NewString(),
		AgentID:   agent.ID,
		FileName:  req.FileName,
		FileSize:  int64(len(req.Content)),
		MimeType:  req.MimeType,
		Status:    models.KBUploaded,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateKnowledgeBase(r.Context(), &kb); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	apiKey := ""
	if agent.APIKey != "" {
		if plain, err := h.Cipher.Decrypt(agent.APIKey); err == nil {
			apiKey = plain
		}
	}

	if err := h.Ingester.Ingest(r.Context(), agent, apiKey, &kb, req.Content); err != nil {
		log.Error().Err(err).Str("kb_id", kb.ID).Msg("Ingestion failed")
		// The record carries status "failed" and the error string.
		respondJSON(w, http.StatusBadGateway, kb)
		return
	}
	respondJSON(w, http.StatusCreated, kb)
}

func (h *Handlers) DeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	kb, err := h.Store.GetKnowledgeBase(r.Context(), chi.URLParam(r, "kbID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}
	if kb.AgentID != agent.ID {
		respondError(w, http.StatusNotFound, "Knowledge base not found for agent")
		return
	}

	if err := h.Ingester.Remove(r.Context(), agent, kb); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// QueryKnowledge runs a similarity search against the agent's namespace.
func (h *Handlers) QueryKnowledge(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondNotFoundOr500(w, err)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	apiKey := ""
	if agent.APIKey != "" {
		if plain, err := h.Cipher.Decrypt(agent.APIKey); err == nil {
			apiKey = plain
		}
	}

	chunks, err := h.Retriever.Retrieve(r.Context(), agent, apiKey, req.Question, req.TopK)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chunks == nil {
		chunks = []models.RetrievedChunk{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondNotFoundOr500(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// respondStoreError maps store errors on writes: uniqueness conflicts
// answer 409, dangling references 404, anything else 500.
func respondStoreError(w http.ResponseWriter, err error) {
	var conflict *store.ErrConflict
	if errors.As(err, &conflict) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondNotFoundOr500(w, err)
}
