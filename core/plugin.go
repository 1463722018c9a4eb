package core

import "context"

// Subscription is a revocable registration handle. Unsubscribe is idempotent
// and safe to call after the source has already completed.
type Subscription interface {
	Unsubscribe()
}

// Transform maps one incoming event onto a sub-stream of outgoing events.
// Returning a nil channel means no output for this item. An error return is a
// per-item failure: the surrounding stream isolates it and continues.
type Transform func(ctx context.Context, ev Event) (<-chan Event, error)

// EventStream is a multicast stream of events produced by a transformation.
// Every subscriber shares one upstream execution; the most recent value is
// replayed to late joiners.
type EventStream interface {
	Subscribe(ctx context.Context) <-chan Event
}

// Hub is the bus handle a plugin receives at initialization. It is the sole
// coupling path between plugins: plugins never hold references to each other,
// only to the hub they were initialized with.
type Hub interface {
	// Emit synchronously multicasts the event to every current subscriber.
	Emit(ev Event)
	// Subscribe registers an observer called once per emitted event. A
	// failing observer never prevents delivery to the others.
	Subscribe(observer func(Event) error) Subscription
	// SetState writes the latest value for key and notifies observers.
	SetState(key string, value any)
	// GetState reads the latest value; ok is false while the key is unset.
	GetState(key string) (value any, ok bool)
	// Select observes the non-unset values of one key. The most recent
	// value is replayed to new observers.
	Select(key string, observer func(any)) Subscription
	// ProcessStream applies transform to every item of source with per-item
	// error containment and bounded retries for faults escaping isolation.
	ProcessStream(ctx context.Context, source <-chan Event, transform Transform) EventStream
	// FuseStreams combines sources into a stream of tuples, re-emitting
	// whenever any source produces once all have produced at least once.
	FuseStreams(ctx context.Context, sources ...<-chan any) <-chan []any
}

// PluginManifest is the self-description every plugin exposes.
type PluginManifest struct {
	// Version is the plugin's own version string.
	Version string
	// Descriptors names the event types the plugin claims to handle.
	// Informational only; routing delivers every event regardless.
	Descriptors []string
	// HauntWeight is the plugin's default spontaneous-emission probability
	// in [0, 1]. A manifest descriptor weight overrides it.
	HauntWeight float64
}

// Plugin is the contract every extension unit implements. Process is a
// pure-ish transformation of one incoming event into zero or more outgoing
// events; it must not emit directly during a routing pass.
type Plugin interface {
	// ID returns the plugin's identity; it must match the manifest
	// descriptor it was loaded from.
	ID() string
	// Manifest returns the plugin's self-description.
	Manifest() PluginManifest
	// Init wires the plugin to its hub handle. It may perform asynchronous
	// setup and should honour ctx cancellation.
	Init(ctx context.Context, hub Hub) error
	// Process transforms one event into zero or more output events.
	Process(ev Event) ([]Event, error)
	// Teardown releases the plugin's resources. It must not fail during
	// normal operation.
	Teardown() error
}

// SpontaneousEmitter is the optional hook for plugins that emit events on
// their own initiative. The returned stream is long-lived and independently
// driven; it should close when ctx is cancelled.
type SpontaneousEmitter interface {
	SpontaneousEmission(ctx context.Context) <-chan Event
}

// DistressReporter is the optional cheap synchronous self-check hook polled
// by health monitoring.
type DistressReporter interface {
	ReportsDistress() bool
}
