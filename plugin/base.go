package plugin

import (
	"errors"
	"sync"

	"github.com/ghostlabs/seance/core"
)

// BasePlugin bundles shared identity, manifest and hub-handle bookkeeping.
// Embed it in concrete plugin implementations and supply a Process method to
// satisfy the core.Plugin interface. All exported methods are goroutine-safe
// unless otherwise documented.
type BasePlugin struct {
	id       string
	manifest core.PluginManifest
	mu       sync.Mutex
	hub      core.Hub
	active   bool
	subs     []core.Subscription
}

// NewBasePlugin constructs a BasePlugin with the given identity and manifest.
func NewBasePlugin(id string, manifest core.PluginManifest) BasePlugin {
	return BasePlugin{
		id:       id,
		manifest: manifest,
	}
}

// ID returns the unique plugin identity.
func (b *BasePlugin) ID() string { return b.id }

// Manifest returns the declared plugin manifest.
func (b *BasePlugin) Manifest() core.PluginManifest { return b.manifest }

// Attach stores the live hub handle and marks the plugin active. Concrete
// plugins call it from Init. Attaching twice is an error.
func (b *BasePlugin) Attach(h core.Hub) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active {
		return errors.New("plugin is already attached")
	}
	b.hub = h
	b.active = true
	return nil
}

// Hub returns the hub handle received during Init, or nil before Init.
func (b *BasePlugin) Hub() core.Hub {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hub
}

// Active reports whether the plugin currently holds a hub handle.
func (b *BasePlugin) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Track records a subscription so Detach can release it later.
func (b *BasePlugin) Track(sub core.Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
}

// Detach releases every tracked subscription and drops the hub handle.
// Concrete plugins call it from Teardown. Detach is idempotent.
func (b *BasePlugin) Detach() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.hub = nil
	b.active = false
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}
