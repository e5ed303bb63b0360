// Package store — in-memory Store implementation.
// Zero-configuration backing for local development and tests.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// MemoryStore implements Store with in-memory maps guarded by one RWMutex.
type MemoryStore struct {
	mu           sync.RWMutex
	agents       map[string]*models.Agent       // key: id
	integrations map[string]*models.Integration // key: id
	actions      map[string]*models.Action      // key: id
	secrets      map[string]*models.Secret      // key: id
	knowledge    map[string]*models.KnowledgeBase

	// Chunk rows per namespace. The slice preserves storage order so
	// brute-force similarity ties rank deterministically; the position
	// map makes upserts by vector ID idempotent and order-preserving.
	chunks   map[string][]*models.VectorChunk
	chunkPos map[string]map[string]int // namespace → vectorID → slice index
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:       make(map[string]*models.Agent),
		integrations: make(map[string]*models.Integration),
		actions:      make(map[string]*models.Action),
		secrets:      make(map[string]*models.Secret),
		knowledge:    make(map[string]*models.KnowledgeBase),
		chunks:       make(map[string][]*models.VectorChunk),
		chunkPos:     make(map[string]map[string]int),
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// ── Agents ──────────────────────────────────────────────────

func (m *MemoryStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, *a)
	}
	return out, nil
}

func (m *MemoryStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "agent", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetAgentByName(_ context.Context, name string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agents {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "agent", Key: name}
}

func (m *MemoryStore) CreateAgent(_ context.Context, agent *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.Name == agent.Name {
			return &ErrConflict{Entity: "agent", Key: agent.Name}
		}
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	agent.UpdatedAt = agent.CreatedAt
	cp := *agent
	m.agents[agent.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateAgent(_ context.Context, agent *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[agent.ID]; !ok {
		return &ErrNotFound{Entity: "agent", Key: agent.ID}
	}
	for id, a := range m.agents {
		if id != agent.ID && a.Name == agent.Name {
			return &ErrConflict{Entity: "agent", Key: agent.Name}
		}
	}
	agent.UpdatedAt = time.Now().UTC()
	cp := *agent
	m.agents[agent.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteAgent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return &ErrNotFound{Entity: "agent", Key: id}
	}
	delete(m.agents, id)
	return nil
}

// ── Integrations ────────────────────────────────────────────

func (m *MemoryStore) ListIntegrations(_ context.Context) ([]models.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Integration, 0, len(m.integrations))
	for _, in := range m.integrations {
		out = append(out, *in)
	}
	return out, nil
}

func (m *MemoryStore) GetIntegration(_ context.Context, id string) (*models.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.integrations[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "integration", Key: id}
	}
	cp := *in
	return &cp, nil
}

func (m *MemoryStore) GetIntegrationByName(_ context.Context, name string) (*models.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, in := range m.integrations {
		if in.Name == name {
			cp := *in
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "integration", Key: name}
}

func (m *MemoryStore) CreateIntegration(_ context.Context, integration *models.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.integrations {
		if in.Name == integration.Name {
			return &ErrConflict{Entity: "integration", Key: integration.Name}
		}
	}
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = time.Now().UTC()
	}
	integration.UpdatedAt = integration.CreatedAt
	cp := *integration
	m.integrations[integration.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateIntegration(_ context.Context, integration *models.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.integrations[integration.ID]; !ok {
		return &ErrNotFound{Entity: "integration", Key: integration.ID}
	}
	for id, in := range m.integrations {
		if id != integration.ID && in.Name == integration.Name {
			return &ErrConflict{Entity: "integration", Key: integration.Name}
		}
	}
	integration.UpdatedAt = time.Now().UTC()
	cp := *integration
	m.integrations[integration.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteIntegration(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.integrations[id]; !ok {
		return &ErrNotFound{Entity: "integration", Key: id}
	}
	delete(m.integrations, id)
	return nil
}

// ── Actions ─────────────────────────────────────────────────

func (m *MemoryStore) ListActions(_ context.Context) ([]models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Action, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, *a)
	}
	return out, nil
}

func (m *MemoryStore) GetAction(_ context.Context, id string) (*models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "action", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetActionByName(_ context.Context, name string) (*models.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.actions {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "action", Key: name}
}

func (m *MemoryStore) CreateAction(_ context.Context, action *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.integrations[action.IntegrationID]; !ok {
		return &ErrNotFound{Entity: "integration", Key: action.IntegrationID}
	}
	for _, a := range m.actions {
		if a.Name == action.Name {
			return &ErrConflict{Entity: "action", Key: action.Name}
		}
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	action.UpdatedAt = action.CreatedAt
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateAction(_ context.Context, action *models.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[action.ID]; !ok {
		return &ErrNotFound{Entity: "action", Key: action.ID}
	}
	if _, ok := m.integrations[action.IntegrationID]; !ok {
		return &ErrNotFound{Entity: "integration", Key: action.IntegrationID}
	}
	for id, a := range m.actions {
		if id != action.ID && a.Name == action.Name {
			return &ErrConflict{Entity: "action", Key: action.Name}
		}
	}
	action.UpdatedAt = time.Now().UTC()
	cp := *action
	m.actions[action.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteAction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[id]; !ok {
		return &ErrNotFound{Entity: "action", Key: id}
	}
	delete(m.actions, id)
	return nil
}

// ── Secrets ─────────────────────────────────────────────────

func (m *MemoryStore) ListSecrets(_ context.Context) ([]models.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Secret, 0, len(m.secrets))
	for _, s := range m.secrets {
		out = append(out, *s)
	}
	return out, nil
}

func (m *MemoryStore) GetSecretByName(_ context.Context, name string) (*models.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.secrets {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "secret", Key: name}
}

func (m *MemoryStore) CreateSecret(_ context.Context, secret *models.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.secrets {
		if s.Name == secret.Name {
			return &ErrConflict{Entity: "secret", Key: secret.Name}
		}
	}
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now().UTC()
	}
	secret.UpdatedAt = secret.CreatedAt
	cp := *secret
	m.secrets[secret.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateSecret(_ context.Context, secret *models.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[secret.ID]; !ok {
		return &ErrNotFound{Entity: "secret", Key: secret.ID}
	}
	for id, s := range m.secrets {
		if id != secret.ID && s.Name == secret.Name {
			return &ErrConflict{Entity: "secret", Key: secret.Name}
		}
	}
	secret.UpdatedAt = time.Now().UTC()
	cp := *secret
	m.secrets[secret.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSecret(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[id]; !ok {
		return &ErrNotFound{Entity: "secret", Key: id}
	}
	delete(m.secrets, id)
	return nil
}

// ── Knowledge Bases ─────────────────────────────────────────

func (m *MemoryStore) ListKnowledgeBases(_ context.Context, agentID string) ([]models.KnowledgeBase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.KnowledgeBase
	for _, kb := range m.knowledge {
		if kb.AgentID == agentID {
			out = append(out, *kb)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetKnowledgeBase(_ context.Context, id string) (*models.KnowledgeBase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kb, ok := m.knowledge[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "knowledge base", Key: id}
	}
	cp := *kb
	return &cp, nil
}

func (m *MemoryStore) CreateKnowledgeBase(_ context.Context, kb *models.KnowledgeBase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kb.CreatedAt.IsZero() {
		kb.CreatedAt = time.Now().UTC()
	}
	kb.UpdatedAt = kb.CreatedAt
	cp := *kb
	m.knowledge[kb.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateKnowledgeBase(_ context.Context, kb *models.KnowledgeBase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.knowledge[kb.ID]; !ok {
		return &ErrNotFound{Entity: "knowledge base", Key: kb.ID}
	}
	kb.UpdatedAt = time.Now().UTC()
	cp := *kb
	m.knowledge[kb.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteKnowledgeBase(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.knowledge[id]; !ok {
		return &ErrNotFound{Entity: "knowledge base", Key: id}
	}
	delete(m.knowledge, id)
	return nil
}

// ── Chunk rows ──────────────────────────────────────────────

func (m *MemoryStore) UpsertChunks(_ context.Context, namespace string, chunks []models.VectorChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.chunkPos[namespace]
	if !ok {
		pos = make(map[string]int)
		m.chunkPos[namespace] = pos
	}

	for _, c := range chunks {
		cp := c
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		if i, exists := pos[cp.VectorID]; exists {
			// Replace in place to keep the original storage order.
			m.chunks[namespace][i] = &cp
			continue
		}
		pos[cp.VectorID] = len(m.chunks[namespace])
		m.chunks[namespace] = append(m.chunks[namespace], &cp)
	}
	return nil
}

func (m *MemoryStore) ListChunks(_ context.Context, namespace string) ([]models.VectorChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.chunks[namespace]
	out := make([]models.VectorChunk, 0, len(rows))
	for _, c := range rows {
		out = append(out, *c)
	}
	return out, nil
}

func (m *MemoryStore) GetChunksByVectorID(_ context.Context, namespace string, vectorIDs []string) ([]models.VectorChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos := m.chunkPos[namespace]
	var out []models.VectorChunk
	for _, id := range vectorIDs {
		if i, ok := pos[id]; ok {
			out = append(out, *m.chunks[namespace][i])
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteChunksByVectorID(_ context.Context, namespace string, vectorIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		drop[id] = true
	}

	var kept []*models.VectorChunk
	pos := make(map[string]int)
	for _, c := range m.chunks[namespace] {
		if drop[c.VectorID] {
			continue
		}
		pos[c.VectorID] = len(kept)
		kept = append(kept, c)
	}
	m.chunks[namespace] = kept
	m.chunkPos[namespace] = pos
	return nil
}

func (m *MemoryStore) DeleteChunkNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, namespace)
	delete(m.chunkPos, namespace)
	return nil
}

func (m *MemoryStore) CountChunks(_ context.Context, namespace string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[namespace]), nil
}
