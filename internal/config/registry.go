package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by [Registry.CreateChat] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// ChatFactory builds a chat provider from its config entry.
type ChatFactory func(ProviderEntry) (llm.Provider, error)

// Registry maps chat provider names to constructors. It is safe for
// concurrent use.
type Registry struct {
	mu   sync.RWMutex
	chat map[string]ChatFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{chat: make(map[string]ChatFactory)}
}

// RegisterChat registers a chat provider factory under name. A later call
// with the same name replaces the earlier one.
func (r *Registry) RegisterChat(name string, factory ChatFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = factory
}

// CreateChat instantiates the chat provider registered under entry.Name.
func (r *Registry) CreateChat(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.chat[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: chat/%q", ErrProviderNotRegistered, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create chat/%q: %w", entry.Name, err)
	}
	return p, nil
}

// ChatNames returns the registered chat provider names, sorted.
func (r *Registry) ChatNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chat))
	for n := range r.chat {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
