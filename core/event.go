package core

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Metadata carries the optional annotations a hub or downstream consumer may
// attach to an event before re-emission. The identifying fields of the event
// itself (Type, Timestamp, Source) stay immutable; Metadata is the one place
// where provenance accumulates as an event travels through routing.
type Metadata struct {
	// Disturbance marks an event that the haunt policy flagged on emission.
	Disturbance bool `json:"disturbance,omitempty"`
	// Intensity is a severity scalar in [0, 1].
	Intensity float64 `json:"intensity,omitempty"`
	// Provenance holds free-form routing breadcrumbs such as processed_by,
	// original_source, haunted_by and the cascade hop counter.
	Provenance map[string]string `json:"provenance,omitempty"`
}

// clone returns a deep copy so attaching provenance never mutates the
// metadata observed by earlier subscribers.
func (m *Metadata) clone() *Metadata {
	if m == nil {
		return &Metadata{}
	}
	c := &Metadata{Disturbance: m.Disturbance, Intensity: m.Intensity}
	if len(m.Provenance) > 0 {
		c.Provenance = make(map[string]string, len(m.Provenance))
		for k, v := range m.Provenance {
			c.Provenance[k] = v
		}
	}
	return c
}

// Event is the immutable message unit flowing through the bus. After emission
// Type, Timestamp and Source are never mutated; downstream code derives new
// copies via WithProvenance / WithHop when it needs to annotate before
// re-emission. No field carries a uniqueness constraint beyond ID.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      any       `json:"data,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// NewEvent constructs an event with a fresh ID and UTC timestamp.
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        NewID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      data,
	}
}

// NewID generates a unique identifier for events.
func NewID() string { return uuid.NewString() }

// Provenance returns the provenance value for key, if present.
func (e Event) Provenance(key string) (string, bool) {
	if e.Metadata == nil || e.Metadata.Provenance == nil {
		return "", false
	}
	v, ok := e.Metadata.Provenance[key]
	return v, ok
}

// WithProvenance returns a copy of the event with the given provenance pairs
// attached. The receiver is left untouched.
func (e Event) WithProvenance(pairs map[string]string) Event {
	meta := e.Metadata.clone()
	if meta.Provenance == nil {
		meta.Provenance = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		meta.Provenance[k] = v
	}
	e.Metadata = meta
	return e
}

// ProvenanceHop is the provenance key carrying the cascade depth counter.
const ProvenanceHop = "hop"

// Hop reports how many routing passes produced this event. Externally sourced
// events start at zero.
func (e Event) Hop() int {
	v, ok := e.Provenance(ProvenanceHop)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// WithHop returns a copy of the event with the cascade hop counter set.
func (e Event) WithHop(hop int) Event {
	return e.WithProvenance(map[string]string{ProvenanceHop: strconv.Itoa(hop)})
}

// Diagnostic event types emitted by the hub and loader.
const (
	EventTypeSubscriberError       = "subscriber_error"
	EventTypeStreamRetry           = "stream_retry"
	EventTypeStreamFailure         = "stream_failure"
	EventTypeDisturbanceDetected   = "disturbance_detected"
	EventTypePluginProcessingError = "plugin_processing_error"
	EventTypePluginDisturbance     = "plugin_disturbance"
	EventTypePluginBanished        = "plugin_banished"
	EventTypeManifestLoaded        = "manifest_loaded"
	EventTypePluginLoaded          = "plugin_loaded"
	EventTypePluginFailed          = "plugin_failed"
	EventTypeLoadComplete          = "load_complete"
)

// Diagnostic is the payload of every diagnostic event. Outer layers use the
// kind and Recoverable flag to decide whether to alert, retry, or ignore.
type Diagnostic struct {
	Kind        FaultKind `json:"kind"`
	Message     string    `json:"message"`
	Severity    float64   `json:"severity"`
	Recoverable bool      `json:"recoverable"`
}

// NewDiagnosticEvent wraps a fault into a structured diagnostic event.
func NewDiagnosticEvent(eventType, source string, f *Fault) Event {
	return NewEvent(eventType, source, Diagnostic{
		Kind:        f.Kind,
		Message:     f.Message(),
		Severity:    f.Severity,
		Recoverable: f.RecoveryPossible(),
	})
}
