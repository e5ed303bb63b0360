package llm

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentbridge/agentbridge/pkg/contracts"
)

// Registry holds named chat drivers. Thread-safe.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]contracts.ChatDriver
}

// NewRegistry creates an empty chat driver registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]contracts.ChatDriver)}
}

// Register adds a driver under its kind. Overwrites if exists.
func (r *Registry) Register(driver contracts.ChatDriver) {
	r.mu.Lock()
	r.drivers[driver.Kind()] = driver
	r.mu.Unlock()
	log.Info().Str("kind", driver.Kind()).Msg("Chat driver registered")
}

// Get returns the driver for a provider, or error if not registered.
func (r *Registry) Get(kind string) (contracts.ChatDriver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("chat driver not found: %s", kind)
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
