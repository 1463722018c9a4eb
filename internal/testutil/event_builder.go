package testutil

import (
	"time"

	"github.com/ghostlabs/seance/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Type("user_message").Source("test").Data("hi").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	id          string
	eventType   string
	source      string
	data        any
	timestamp   time.Time
	disturbance *bool
	intensity   *float64
	provenance  map[string]string
}

// NewEventBuilder creates a builder with default source "test".
func NewEventBuilder() *EventBuilder { return &EventBuilder{source: "test"} }

// ID overrides the auto-generated event ID (chainable). Use mainly in tests where determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Type sets the event type (chainable).
func (b *EventBuilder) Type(t string) *EventBuilder { b.eventType = t; return b }

// Source sets the emitter identity (chainable).
func (b *EventBuilder) Source(s string) *EventBuilder { b.source = s; return b }

// Data sets the event payload (chainable).
func (b *EventBuilder) Data(d any) *EventBuilder { b.data = d; return b }

// Timestamp overrides the event timestamp (chainable).
func (b *EventBuilder) Timestamp(ts time.Time) *EventBuilder { b.timestamp = ts; return b }

// Disturbance marks the event as disturbed with the given intensity (chainable).
func (b *EventBuilder) Disturbance(intensity float64) *EventBuilder {
	t := true
	b.disturbance = &t
	b.intensity = &intensity
	return b
}

// Provenance sets one provenance key/value pair (chainable).
func (b *EventBuilder) Provenance(key, value string) *EventBuilder {
	if b.provenance == nil {
		b.provenance = map[string]string{}
	}
	b.provenance[key] = value
	return b
}

// Build assembles the event, generating an ID and timestamp when unset.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.eventType, b.source, b.data)
	if b.id != "" {
		ev.ID = b.id
	}
	if !b.timestamp.IsZero() {
		ev.Timestamp = b.timestamp
	}
	if b.provenance != nil {
		ev = ev.WithProvenance(b.provenance)
	}
	if b.disturbance != nil {
		if ev.Metadata == nil {
			ev.Metadata = &core.Metadata{}
		}
		ev.Metadata.Disturbance = *b.disturbance
		ev.Metadata.Intensity = *b.intensity
	}
	return ev
}
