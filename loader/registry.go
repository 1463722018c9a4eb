package loader

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ghostlabs/seance/core"
)

// Factory constructs a plugin instance from its manifest descriptor. The
// registry replaces dynamic code loading: constructors are registered
// explicitly at startup and the manifest only supplies configuration.
type Factory func(desc Descriptor) (core.Plugin, error)

// Registry is a thread-safe map from factory name to constructor.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice is an
// error; replacement would silently change which code a manifest loads.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("seance: factory name is required")
	}
	if factory == nil {
		return fmt.Errorf("seance: factory %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("seance: factory %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Resolve looks up a factory by name.
func (r *Registry) Resolve(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	return factory, ok
}

// Names lists the registered factory names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
