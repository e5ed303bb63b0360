// Package store provides the storage interface and implementations for the
// Agent Bridge control plane.
//
// All handler and engine code depends on the Store interface, making it
// easy to swap between in-memory (tests, zero-config) and PostgreSQL
// (production) implementations.
package store

import (
	"context"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Store is the primary storage interface for the control plane.
type Store interface {
	AgentStore
	IntegrationStore
	ActionStore
	SecretStore
	KnowledgeStore
	ChunkStore

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Agent Store ─────────────────────────────────────────────

type AgentStore interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*models.Agent, error)
	CreateAgent(ctx context.Context, agent *models.Agent) error
	UpdateAgent(ctx context.Context, agent *models.Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

// ── Integration Store ───────────────────────────────────────

type IntegrationStore interface {
	ListIntegrations(ctx context.Context) ([]models.Integration, error)
	GetIntegration(ctx context.Context, id string) (*models.Integration, error)
	GetIntegrationByName(ctx context.Context, name string) (*models.Integration, error)
	CreateIntegration(ctx context.Context, integration *models.Integration) error
	UpdateIntegration(ctx context.Context, integration *models.Integration) error
	DeleteIntegration(ctx context.Context, id string) error
}

// ── Action Store ────────────────────────────────────────────

type ActionStore interface {
	ListActions(ctx context.Context) ([]models.Action, error)
	GetAction(ctx context.Context, id string) (*models.Action, error)
	GetActionByName(ctx context.Context, name string) (*models.Action, error)
	CreateAction(ctx context.Context, action *models.Action) error
	UpdateAction(ctx context.Context, action *models.Action) error
	DeleteAction(ctx context.Context, id string) error
}

// ── Secret Store ────────────────────────────────────────────

// SecretStore persists named secrets. Values are stored as ciphertext;
// decryption happens at execution time, never here.
type SecretStore interface {
	ListSecrets(ctx context.Context) ([]models.Secret, error)
	GetSecretByName(ctx context.Context, name string) (*models.Secret, error)
	CreateSecret(ctx context.Context, secret *models.Secret) error
	UpdateSecret(ctx context.Context, secret *models.Secret) error
	DeleteSecret(ctx context.Context, id string) error
}

// ── Knowledge Store ─────────────────────────────────────────

type KnowledgeStore interface {
	ListKnowledgeBases(ctx context.Context, agentID string) ([]models.KnowledgeBase, error)
	GetKnowledgeBase(ctx context.Context, id string) (*models.KnowledgeBase, error)
	CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error
	UpdateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error
	DeleteKnowledgeBase(ctx context.Context, id string) error
}

// ── Chunk Store ─────────────────────────────────────────────

// ChunkStore persists chunk rows keyed by vector ID within a namespace.
// It is the relational backing of the brute-force vector index: rows keep
// their original storage order so similarity ties rank deterministically.
type ChunkStore interface {
	// UpsertChunks inserts or replaces rows, idempotent per VectorID.
	// Replacing an existing row keeps its original storage position.
	UpsertChunks(ctx context.Context, namespace string, chunks []models.VectorChunk) error

	// ListChunks returns every row in the namespace in storage order.
	ListChunks(ctx context.Context, namespace string) ([]models.VectorChunk, error)

	// GetChunksByVectorID returns rows matching the given vector IDs.
	GetChunksByVectorID(ctx context.Context, namespace string, vectorIDs []string) ([]models.VectorChunk, error)

	// DeleteChunksByVectorID removes rows by vector ID.
	DeleteChunksByVectorID(ctx context.Context, namespace string, vectorIDs []string) error

	// DeleteChunkNamespace removes every row in the namespace.
	DeleteChunkNamespace(ctx context.Context, namespace string) error

	// CountChunks returns the row count for a namespace.
	CountChunks(ctx context.Context, namespace string) (int, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrConflict is returned when a create or rename would violate a
// uniqueness constraint. Names are unique per entity kind: secret
// resolution and tool-catalog lookup both go through names, so a
// duplicate would make those lookups ambiguous.
type ErrConflict struct {
	Entity string
	Key    string
}

func (e *ErrConflict) Error() string {
	return e.Entity + " already exists: " + e.Key
}
