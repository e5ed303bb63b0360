package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/models"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return s
}

// ─── Agent CRUD ──────────────────────────────────────────────

func TestCreateAndGetAgent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &models.Agent{
		ID:       "a1",
		Name:     "weather-bot",
		Provider: models.ProviderOpenAI,
		Model:    "gpt-4o-mini",
	}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}

	got, err := s.GetAgent(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if got.Name != "weather-bot" {
		t.Errorf("GetAgent().Name = %q, want %q", got.Name, "weather-bot")
	}
	if got.Provider != models.ProviderOpenAI {
		t.Errorf("GetAgent().Provider = %q, want %q", got.Provider, models.ProviderOpenAI)
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAgent(context.Background(), "missing")
	var nf *store.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("GetAgent() error = %v, want *store.ErrNotFound", err)
	}
}

func TestCreate_DuplicateNameRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAgent(ctx, &models.Agent{ID: "a1", Name: "support"}); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if err := s.CreateIntegration(ctx, &models.Integration{ID: "i1", Name: "weather-api", URL: "https://api.example.com"}); err != nil {
		t.Fatalf("CreateIntegration() error = %v", err)
	}
	if err := s.CreateAction(ctx, &models.Action{ID: "act1", Name: "getWeather", IntegrationID: "i1"}); err != nil {
		t.Fatalf("CreateAction() error = %v", err)
	}
	if err := s.CreateSecret(ctx, &models.Secret{ID: "s1", Name: "API_TOKEN", Value: "enc"}); err != nil {
		t.Fatalf("CreateSecret() error = %v", err)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"agent", s.CreateAgent(ctx, &models.Agent{ID: "a2", Name: "support"})},
		{"integration", s.CreateIntegration(ctx, &models.Integration{ID: "i2", Name: "weather-api", URL: "https://other.example.com"})},
		{"action", s.CreateAction(ctx, &models.Action{ID: "act2", Name: "getWeather", IntegrationID: "i1"})},
		{"secret", s.CreateSecret(ctx, &models.Secret{ID: "s2", Name: "API_TOKEN", Value: "enc2"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var conflict *store.ErrConflict
			if !errors.As(tt.err, &conflict) {
				t.Errorf("duplicate %s name error = %v, want *store.ErrConflict", tt.name, tt.err)
			}
		})
	}
}

func TestUpdateSecret_RenameOntoExistingRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateSecret(ctx, &models.Secret{ID: "s1", Name: "FIRST_KEY", Value: "enc"}); err != nil {
		t.Fatalf("CreateSecret() error = %v", err)
	}
	if err := s.CreateSecret(ctx, &models.Secret{ID: "s2", Name: "SECOND_KEY", Value: "enc"}); err != nil {
		t.Fatalf("CreateSecret() error = %v", err)
	}

	err := s.UpdateSecret(ctx, &models.Secret{ID: "s2", Name: "FIRST_KEY", Value: "enc"})
	var conflict *store.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("UpdateSecret() error = %v, want *store.ErrConflict", err)
	}

	// The original record keeps its value resolvable by name.
	got, err := s.GetSecretByName(ctx, "FIRST_KEY")
	if err != nil {
		t.Fatalf("GetSecretByName() error = %v", err)
	}
	if got.ID != "s1" {
		t.Errorf("GetSecretByName().ID = %q, want %q", got.ID, "s1")
	}
}

func TestGetAgentByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAgent(ctx, &models.Agent{ID: "a1", Name: "support"}); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}

	got, err := s.GetAgentByName(ctx, "support")
	if err != nil {
		t.Fatalf("GetAgentByName() error = %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("GetAgentByName().ID = %q, want %q", got.ID, "a1")
	}
}

func TestUpdateAgent_CopySemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &models.Agent{ID: "a1", Name: "v1"}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}

	// Mutating the caller's struct must not leak into the store.
	agent.Name = "mutated"

	got, err := s.GetAgent(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if got.Name != "v1" {
		t.Errorf("GetAgent().Name = %q, want %q", got.Name, "v1")
	}
}

func TestDeleteAgent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateAgent(ctx, &models.Agent{ID: "a1", Name: "gone"}); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if err := s.DeleteAgent(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAgent() error = %v", err)
	}
	if _, err := s.GetAgent(ctx, "a1"); err == nil {
		t.Error("GetAgent() after delete should fail")
	}
}

// ─── Action referential integrity ────────────────────────────

func TestCreateAction_RequiresIntegration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateAction(ctx, &models.Action{ID: "act1", Name: "getWeather", IntegrationID: "missing"})
	var nf *store.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("CreateAction() error = %v, want *store.ErrNotFound for missing integration", err)
	}

	if err := s.CreateIntegration(ctx, &models.Integration{ID: "int1", Name: "weather-api", URL: "https://api.example.com"}); err != nil {
		t.Fatalf("CreateIntegration() error = %v", err)
	}
	if err := s.CreateAction(ctx, &models.Action{ID: "act1", Name: "getWeather", IntegrationID: "int1"}); err != nil {
		t.Fatalf("CreateAction() with existing integration error = %v", err)
	}
}

// ─── Chunk store ─────────────────────────────────────────────

func TestUpsertChunks_KeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := "agent-a1"

	chunks := []models.VectorChunk{
		{VectorID: "kb1-0", Text: "first", Embedding: []float64{1, 0}},
		{VectorID: "kb1-1", Text: "second", Embedding: []float64{0, 1}},
		{VectorID: "kb1-2", Text: "third", Embedding: []float64{1, 1}},
	}
	if err := s.UpsertChunks(ctx, ns, chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}

	// Replacing the middle row keeps its position.
	update := []models.VectorChunk{{VectorID: "kb1-1", Text: "second-v2", Embedding: []float64{0, 1}}}
	if err := s.UpsertChunks(ctx, ns, update); err != nil {
		t.Fatalf("UpsertChunks() replace error = %v", err)
	}

	rows, err := s.ListChunks(ctx, ns)
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	wantOrder := []string{"kb1-0", "kb1-1", "kb1-2"}
	if len(rows) != len(wantOrder) {
		t.Fatalf("ListChunks() len = %d, want %d", len(rows), len(wantOrder))
	}
	for i, want := range wantOrder {
		if rows[i].VectorID != want {
			t.Errorf("rows[%d].VectorID = %q, want %q", i, rows[i].VectorID, want)
		}
	}
	if rows[1].Text != "second-v2" {
		t.Errorf("rows[1].Text = %q, want %q", rows[1].Text, "second-v2")
	}
}

func TestDeleteChunksByVectorID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ns := "agent-a1"

	chunks := []models.VectorChunk{
		{VectorID: "kb1-0", Embedding: []float64{1}},
		{VectorID: "kb1-1", Embedding: []float64{1}},
	}
	if err := s.UpsertChunks(ctx, ns, chunks); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}
	if err := s.DeleteChunksByVectorID(ctx, ns, []string{"kb1-0"}); err != nil {
		t.Fatalf("DeleteChunksByVectorID() error = %v", err)
	}

	count, err := s.CountChunks(ctx, ns)
	if err != nil {
		t.Fatalf("CountChunks() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountChunks() = %d, want 1", count)
	}

	rows, _ := s.ListChunks(ctx, ns)
	if len(rows) != 1 || rows[0].VectorID != "kb1-1" {
		t.Errorf("remaining chunk = %+v, want kb1-1", rows)
	}
}

func TestDeleteChunkNamespace_IsolatesNamespaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertChunks(ctx, "agent-a1", []models.VectorChunk{{VectorID: "x", Embedding: []float64{1}}})
	s.UpsertChunks(ctx, "agent-a2", []models.VectorChunk{{VectorID: "y", Embedding: []float64{1}}})

	if err := s.DeleteChunkNamespace(ctx, "agent-a1"); err != nil {
		t.Fatalf("DeleteChunkNamespace() error = %v", err)
	}

	if n, _ := s.CountChunks(ctx, "agent-a1"); n != 0 {
		t.Errorf("agent-a1 count = %d, want 0", n)
	}
	if n, _ := s.CountChunks(ctx, "agent-a2"); n != 1 {
		t.Errorf("agent-a2 count = %d, want 1", n)
	}
}
