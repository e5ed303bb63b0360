// Package vectorstore provides the vector index registry and the shipped
// backends: scan (exact brute-force over relational chunk rows) and
// pinecone (remote approximate nearest neighbor).
package vectorstore

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/pkg/contracts"
)

// Registry holds named vector index backends. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]contracts.VectorIndex
}

// NewRegistry creates an empty vector index registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]contracts.VectorIndex)}
}

// Register adds an index under its kind. Overwrites if exists.
func (r *Registry) Register(index contracts.VectorIndex) {
	r.mu.Lock()
	r.indexes[index.Kind()] = index
	r.mu.Unlock()
	log.Info().Str("kind", index.Kind()).Msg("Vector index registered")
}

// Get returns the index by kind, or error if not found.
func (r *Registry) Get(kind string) (contracts.VectorIndex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[kind]
	if !ok {
		return nil, fmt.Errorf("vector index not found: %s", kind)
	}
	return idx, nil
}

// List returns all registered index kinds.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.indexes))
	for k := range r.indexes {
		kinds = append(kinds, k)
	}
	return kinds
}
