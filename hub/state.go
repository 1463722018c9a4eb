package hub

import (
	"fmt"
	"time"

	"github.com/ghostlabs/seance/core"
)

// stateEntry tracks one key of the reactive store. Entries are created lazily
// on first read, write or selection and are never deleted automatically.
type stateEntry struct {
	value     any
	set       bool
	updatedAt time.Time
	observers []*stateObserver
	nextObsID uint64
}

type stateObserver struct {
	id uint64
	fn func(any)
}

// StateInfo is the per-key diagnostic view of the store.
type StateInfo struct {
	Key         string
	Set         bool
	LastUpdate  time.Time
	Subscribers int
}

// SetState overwrites the latest value for key and synchronously notifies all
// current observers in registration order.
func (h *Hub) SetState(key string, value any) {
	h.mu.Lock()
	entry := h.stateEntryLocked(key)
	entry.value = value
	entry.set = true
	entry.updatedAt = time.Now().UTC()
	observers := make([]*stateObserver, len(entry.observers))
	copy(observers, entry.observers)
	h.mu.Unlock()

	for _, obs := range observers {
		h.notifyState(key, obs, value)
	}
}

// GetState reads the latest value for key. ok is false while the key has
// never been written; an unset key is not an error.
func (h *Hub) GetState(key string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry := h.stateEntryLocked(key)
	if !entry.set {
		return nil, false
	}
	return entry.value, true
}

// Select observes the non-unset values of one key. All observers of a key
// multiplex over the same underlying entry, and the most recent value is
// replayed synchronously to a new observer before live notifications begin.
func (h *Hub) Select(key string, observer func(any)) core.Subscription {
	h.mu.Lock()
	entry := h.stateEntryLocked(key)
	entry.nextObsID++
	obs := &stateObserver{id: entry.nextObsID, fn: observer}
	entry.observers = append(entry.observers, obs)
	replay := entry.set
	value := entry.value
	h.mu.Unlock()

	if replay {
		h.notifyState(key, obs, value)
	}

	return newSubscription(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		e, ok := h.state[key]
		if !ok {
			return
		}
		for i, o := range e.observers {
			if o.id == obs.id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	})
}

// DeleteState removes a key and its observers. Deletion is an explicit
// subsystem action; the store never expires entries on its own.
func (h *Hub) DeleteState(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.state, key)
}

// StateKeys lists the keys currently tracked by the store.
func (h *Hub) StateKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.state))
	for k := range h.state {
		keys = append(keys, k)
	}
	return keys
}

// StateDiagnostics reports the diagnostic view of one key.
func (h *Hub) StateDiagnostics(key string) (StateInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.state[key]
	if !ok {
		return StateInfo{}, false
	}
	return StateInfo{
		Key:         key,
		Set:         entry.set,
		LastUpdate:  entry.updatedAt,
		Subscribers: len(entry.observers),
	}, true
}

// stateEntryLocked returns the entry for key, creating it lazily. Caller must
// hold h.mu.
func (h *Hub) stateEntryLocked(key string) *stateEntry {
	entry, ok := h.state[key]
	if !ok {
		entry = &stateEntry{}
		h.state[key] = entry
	}
	return entry
}

// notifyState invokes one state observer with panic containment so a failing
// observer cannot corrupt the write path.
func (h *Hub) notifyState(key string, obs *stateObserver, value any) {
	defer func() {
		if r := recover(); r != nil {
			h.collector.SubscriberError()
			fault := core.NewDisturbanceFault(fmt.Sprintf("state observer failed on %q", key), fmt.Errorf("%v", r))
			h.emitDiagnostic(core.EventTypeSubscriberError, fault)
		}
	}()
	obs.fn(value)
}
