// Package embeddings provides embedding driver registry, the shipped
// vendor drivers (OpenAI, Gemini), and the deterministic offline mock.
package embeddings

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/pkg/contracts"
)

// Registry holds named embedding drivers. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]contracts.EmbeddingDriver
}

// NewRegistry creates an empty embedding registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]contracts.EmbeddingDriver)}
}

// Register adds a driver under its kind. Overwrites if exists.
func (r *Registry) Register(driver contracts.EmbeddingDriver) {
	r.mu.Lock()
	r.drivers[driver.Kind()] = driver
	r.mu.Unlock()
	log.Info().Str("kind", driver.Kind()).Msg("Embedding driver registered")
}

// Get returns the driver by kind, or error if not found.
func (r *Registry) Get(kind string) (contracts.EmbeddingDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("embedding driver not found: %s", kind)
	}
	return d, nil
}

// List returns all registered driver kinds.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.drivers))
	for k := range r.drivers {
		kinds = append(kinds, k)
	}
	return kinds
}
