// Package contracts defines the capability interfaces of the Agent Bridge
// control plane.
//
// Each vendor-variant concern — chat completion, embedding generation,
// vector indexing — is a closed set of drivers behind one interface,
// selected once at construction. Adding a vendor means adding a driver,
// not threading a new branch through every call site. Handlers and the
// chat orchestrator depend only on these interfaces, so tests substitute
// fakes without touching wiring code.
package contracts

import (
	"context"

	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// Store is a type alias for the internal Store interface, exposed in pkg/
// so embedding code outside internal/ can reference it.
type Store = store.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Chat Driver ──────────────────────────────────────────────

// ChatDriver is the interface for chat-completion vendors.
// Shipped drivers: OpenAI, Gemini.
//
// Both drivers build the identical tool-catalog system instruction and
// parse tool calls identically; they differ only in wire shape and
// message-role mapping. Vendor-level failures propagate unmodified —
// this layer performs no retry.
type ChatDriver interface {
	// Kind returns the provider identifier (e.g. "openai", "gemini").
	Kind() string

	// Chat issues one completion for the given messages and tool catalog.
	Chat(ctx context.Context, model string, messages []models.ChatMessage, tools []models.ToolDef, apiKey string) (*models.Completion, error)
}

// ── Embedding Driver ─────────────────────────────────────────

// EmbeddingDriver is the interface for embedding vendors.
// Shipped drivers: OpenAI, Gemini, and the deterministic offline mock.
type EmbeddingDriver interface {
	// Kind returns the provider identifier.
	Kind() string

	// Embed generates an embedding vector for one text.
	Embed(ctx context.Context, text, apiKey, model string) (*models.EmbeddingResult, error)
}

// ── Vector Index ─────────────────────────────────────────────

// VectorIndex is the interface for vector storage backends, chosen once
// at startup. Shipped backends: Pinecone (remote ANN) and the exact
// brute-force scan over relational chunk rows.
//
// Namespaces partition the index; retrieval uses one namespace per agent.
type VectorIndex interface {
	// Kind returns the backend identifier (e.g. "pinecone", "scan").
	Kind() string

	// Upsert stores items into the namespace, idempotent per item ID.
	Upsert(ctx context.Context, namespace string, items []models.VectorItem) error

	// Query returns the topK nearest items by cosine similarity, sorted
	// descending by score with ties broken by original storage order.
	Query(ctx context.Context, namespace string, vector []float64, topK int) ([]models.Match, error)

	// DeleteByIDs removes items by ID within the namespace.
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error

	// DeleteNamespace removes every item in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error
}

// ── Secret Cipher ────────────────────────────────────────────

// SecretCipher is the opaque encrypt/decrypt/mask capability used for
// field-level protection of secrets and agent API keys.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Mask(plaintext string) string
}
