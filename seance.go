// Package seance provides a high-level façade over the event hub and the
// plugin loader, enabling rapid construction of event-driven plugin systems.
// Most applications interact with this package by:
//  1. Creating a Seance via New() (optionally overriding the default policy,
//     logger or metrics collector)
//  2. Registering one or more plugin factories
//  3. Loading a manifest with LoadAll and emitting events with Emit
//
// The façade delegates event delivery to hub.Hub and lifecycle management to
// loader.Loader while keeping setup ergonomics concise. All defaults are safe
// for local development and testing; production deployments typically supply
// a structured logger and a Prometheus registry.
package seance

import (
	"context"

	"github.com/ghostlabs/seance/core"
	"github.com/ghostlabs/seance/hub"
	"github.com/ghostlabs/seance/loader"
	"github.com/ghostlabs/seance/logging"
	"github.com/ghostlabs/seance/metrics"
)

// Options configures the Seance instance.
type Options struct {
	// Policy decides disturbance injection and the spontaneous-emission
	// draw. Defaults to the production pseudo-random policy; tests supply
	// core.QuietPolicy or a seeded policy for determinism.
	Policy core.HauntPolicy

	// Logger receives structured diagnostics from the hub and the loader.
	// Defaults to the NoOp logger if nil.
	Logger logging.Logger

	// Collector records Prometheus metrics. Nil disables instrumentation.
	Collector *metrics.Collector

	// HubOptions further customizes the underlying hub (retry ceiling,
	// debounce window, idle unit).
	HubOptions func(o *hub.Options)

	// LoaderOptions further customizes the underlying loader (retry
	// ceiling, cascade depth, health interval).
	LoaderOptions func(o *loader.Options)
}

// Seance is the high-level façade aggregating the hub, the factory registry
// and the loader.
type Seance struct {
	opts     Options
	hub      *hub.Hub
	registry *loader.Registry
	loader   *loader.Loader
}

// New creates a Seance instance with optional overrides.
func New(optFns ...func(o *Options)) *Seance {
	opts := Options{
		Policy: core.NewHauntPolicy(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	h := hub.New(func(o *hub.Options) {
		o.Policy = opts.Policy
		o.Logger = opts.Logger
		o.Collector = opts.Collector
		if opts.HubOptions != nil {
			opts.HubOptions(o)
		}
	})

	registry := loader.NewRegistry()

	l := loader.New(h, registry, func(o *loader.Options) {
		o.Policy = opts.Policy
		o.Logger = opts.Logger
		o.Collector = opts.Collector
		if opts.LoaderOptions != nil {
			opts.LoaderOptions(o)
		}
	})

	return &Seance{opts: opts, hub: h, registry: registry, loader: l}
}

// Hub exposes the underlying event hub.
func (s *Seance) Hub() *hub.Hub { return s.hub }

// Loader exposes the underlying plugin loader.
func (s *Seance) Loader() *loader.Loader { return s.loader }

// RegisterFactory adds a plugin factory under name.
func (s *Seance) RegisterFactory(name string, factory loader.Factory) error {
	return s.registry.Register(name, factory)
}

// LoadAll loads the manifest at path and initializes every plugin it names.
func (s *Seance) LoadAll(ctx context.Context, manifestPath string) (*loader.LoadReport, error) {
	return s.loader.LoadAll(ctx, manifestPath)
}

// Emit publishes an event through the hub.
func (s *Seance) Emit(ev core.Event) {
	s.hub.Emit(ev)
}

// StartHealthMonitoring begins periodic plugin health polling until ctx is
// cancelled.
func (s *Seance) StartHealthMonitoring(ctx context.Context) {
	s.loader.StartHealthMonitoring(ctx)
}

// Shutdown tears down every loaded plugin.
func (s *Seance) Shutdown() error {
	return s.loader.TeardownAll()
}
