package hub

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ghostlabs/seance/core"
	"github.com/ghostlabs/seance/logging"
	"github.com/ghostlabs/seance/metrics"
)

// Source identifier stamped on diagnostics the hub emits about itself.
const diagnosticSource = "hub"

// ProvenanceSignature is the provenance key carrying the derived signature the
// hub appends to every emitted event.
const ProvenanceSignature = "signature"

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Logger receives structured hub diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// Policy concentrates probabilistic behavior (disturbance injection).
	// Defaults to the production random policy; use core.QuietPolicy to
	// disable injection entirely.
	Policy core.HauntPolicy
	// Collector records Prometheus metrics. Nil disables instrumentation.
	Collector *metrics.Collector
	// RetryBaseDelay is the backoff base for stream processing retries.
	RetryBaseDelay time.Duration
	// MaxRetries bounds the retry budget for faults escaping per-item
	// isolation in ProcessStream.
	MaxRetries int
	// FuseDebounce is the window within which rapid-fire updates to fused
	// streams collapse into one tuple emission.
	FuseDebounce time.Duration
	// IdleUnit is the iterator idle-timeout time unit; the iterator gives
	// up after 30 units without an event.
	IdleUnit time.Duration
}

// Hub is the bus: a single multicast channel plus keyed reactive state plus
// resilient stream-transformation utilities. Construct instances explicitly
// with New and pass the handle to whoever needs it; multiple isolated hubs
// per process are supported.
//
// All bus mutation is serialized behind the hub's mutex and events are
// delivered synchronously in emit order, so a single subscriber always
// observes the hub's own emission order.
type Hub struct {
	id        string
	logger    logging.Logger
	policy    core.HauntPolicy
	collector *metrics.Collector

	retryBaseDelay time.Duration
	maxRetries     int
	fuseDebounce   time.Duration
	idleUnit       time.Duration

	mu         sync.Mutex
	subs       []*subEntry
	state      map[string]*stateEntry
	pending    []core.Event
	delivering bool
	nextSubID  uint64
	emitted    uint64
}

type subEntry struct {
	id       uint64
	observer func(core.Event) error
}

// New constructs a Hub with optional overrides.
func New(optFns ...func(o *Options)) *Hub {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		Policy:         core.NewHauntPolicy(),
		RetryBaseDelay: 50 * time.Millisecond,
		MaxRetries:     3,
		FuseDebounce:   10 * time.Millisecond,
		IdleUnit:       100 * time.Millisecond,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Hub{
		id:             core.NewID(),
		logger:         opts.Logger,
		policy:         opts.Policy,
		collector:      opts.Collector,
		retryBaseDelay: opts.RetryBaseDelay,
		maxRetries:     opts.MaxRetries,
		fuseDebounce:   opts.FuseDebounce,
		idleUnit:       opts.IdleUnit,
		state:          make(map[string]*stateEntry),
	}
}

// ID returns the hub instance identifier used in logs.
func (h *Hub) ID() string { return h.id }

// EmitCount reports how many events have been emitted, for diagnostics.
func (h *Hub) EmitCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.emitted
}

// Emit appends hub-managed metadata and synchronously pushes the event to
// every current subscriber in subscription order. It never blocks on a
// consumer and never fails for a well-formed event.
//
// Events emitted by an observer during delivery are queued and delivered
// after the current event finishes its fan-out, preserving the hub's total
// emission order for every subscriber.
func (h *Hub) Emit(ev core.Event) {
	ev = h.decorate(ev)

	h.mu.Lock()
	h.emitted++
	h.collector.EventEmitted()
	h.pending = append(h.pending, ev)
	if h.delivering {
		h.mu.Unlock()
		return
	}
	h.delivering = true

	for len(h.pending) > 0 {
		next := h.pending[0]
		h.pending = h.pending[1:]
		subs := make([]*subEntry, len(h.subs))
		copy(subs, h.subs)
		h.mu.Unlock()

		for _, sub := range subs {
			h.deliver(sub, next)
		}

		h.mu.Lock()
	}
	h.delivering = false
	h.mu.Unlock()
}

// decorate fills defaults and appends the derived signature plus any
// policy-injected disturbance flag.
func (h *Hub) decorate(ev core.Event) core.Event {
	if ev.ID == "" {
		ev.ID = core.NewID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev = ev.WithProvenance(map[string]string{ProvenanceSignature: signature(ev)})
	if h.policy != nil && !ev.Metadata.Disturbance {
		if disturbed, intensity := h.policy.Disturb(); disturbed {
			ev.Metadata.Disturbance = true
			ev.Metadata.Intensity = intensity
		}
	}
	return ev
}

// deliver invokes one observer with panic and error containment. A failing
// observer never prevents delivery to the others and keeps its subscription.
func (h *Hub) deliver(sub *subEntry, ev core.Event) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("observer panic: %v", r)
			}
		}()
		return sub.observer(ev)
	}()
	if err == nil {
		return
	}

	h.collector.SubscriberError()
	h.logger.Warn("hub subscriber failed hub_id=%s event_type=%s error=%v", h.id, ev.Type, err)

	// A failure while delivering a subscriber_error diagnostic is only
	// logged; emitting another diagnostic for it would loop.
	if ev.Type == core.EventTypeSubscriberError {
		return
	}
	fault := core.NewDisturbanceFault(fmt.Sprintf("subscriber failed on %s", ev.Type), err)
	h.Emit(core.NewDiagnosticEvent(core.EventTypeSubscriberError, diagnosticSource, fault))
}

// Subscribe registers an observer invoked once per emitted event for the
// lifetime of the subscription.
func (h *Hub) Subscribe(observer func(core.Event) error) core.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSubID++
	entry := &subEntry{id: h.nextSubID, observer: observer}
	h.subs = append(h.subs, entry)

	return newSubscription(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == entry.id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	})
}

// subscription implements core.Subscription with idempotent revocation.
type subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *subscription {
	return &subscription{cancel: cancel}
}

// Unsubscribe revokes the registration. Safe to call multiple times or after
// the source has completed.
func (s *subscription) Unsubscribe() { s.once.Do(s.cancel) }

// signature derives a stable non-cryptographic fingerprint from the event's
// type and payload.
func signature(ev core.Event) string {
	hash := fnv.New64a()
	fmt.Fprintf(hash, "%s\x00%v", ev.Type, ev.Data)
	return fmt.Sprintf("%016x", hash.Sum64())
}

// emitDiagnostic is the shared helper for hub-internal fault reporting.
func (h *Hub) emitDiagnostic(eventType string, fault *core.Fault) {
	h.Emit(core.NewDiagnosticEvent(eventType, diagnosticSource, fault))
}
