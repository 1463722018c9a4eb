package hub

import (
	"context"
	"sync"
	"time"

	"github.com/ghostlabs/seance/core"
)

// idleUnits is the number of idle time units after which an iterator stops
// waiting for further events.
const idleUnits = 30

// IteratorOptions configures pull-based consumption of the event stream.
type IteratorOptions struct {
	// Filter keeps only matching events. Nil keeps everything.
	Filter func(core.Event) bool
	// Max caps how many events the iterator yields. Zero means no cap.
	Max int
	// IdleTimeout overrides the default idle window (30 hub idle units).
	IdleTimeout time.Duration
}

// Iterator supports blocking-free sequential consumption of the hub's event
// stream. Events emitted while the consumer is not actively pulling are
// queued and never lost; a Next call that sees no event within the idle
// window yields stream-end instead of waiting forever.
type Iterator struct {
	hub  *Hub
	sub  core.Subscription
	opts IteratorOptions

	mu      sync.Mutex
	queue   []core.Event
	yielded int
	closed  bool
	notify  chan struct{}
	ctx     context.Context
}

// Events starts pull-based consumption of the hub's stream.
func (h *Hub) Events(ctx context.Context, optFns ...func(o *IteratorOptions)) *Iterator {
	opts := IteratorOptions{IdleTimeout: idleUnits * h.idleUnit}
	for _, fn := range optFns {
		fn(&opts)
	}

	it := &Iterator{
		hub:    h,
		opts:   opts,
		notify: make(chan struct{}, 1),
		ctx:    ctx,
	}
	it.sub = h.Subscribe(func(ev core.Event) error {
		it.push(ev)
		return nil
	})
	return it
}

func (it *Iterator) push(ev core.Event) {
	if it.opts.Filter != nil && !it.opts.Filter(ev) {
		return
	}

	it.mu.Lock()
	if it.closed {
		it.mu.Unlock()
		return
	}
	it.queue = append(it.queue, ev)
	it.mu.Unlock()

	select {
	case it.notify <- struct{}{}:
	default:
	}
}

// Next returns the next event in emission order. ok is false once the
// iterator ended: max count reached, context cancelled, Close called, or no
// event arrived within the idle window.
func (it *Iterator) Next() (core.Event, bool) {
	timer := time.NewTimer(it.opts.IdleTimeout)
	defer timer.Stop()

	for {
		it.mu.Lock()
		if it.closed || (it.opts.Max > 0 && it.yielded >= it.opts.Max) {
			it.mu.Unlock()
			it.Close()
			return core.Event{}, false
		}
		if len(it.queue) > 0 {
			ev := it.queue[0]
			it.queue = it.queue[1:]
			it.yielded++
			it.mu.Unlock()
			return ev, true
		}
		it.mu.Unlock()

		select {
		case <-it.ctx.Done():
			it.Close()
			return core.Event{}, false
		case <-timer.C:
			it.Close()
			return core.Event{}, false
		case <-it.notify:
		}
	}
}

// Close ends iteration and revokes the underlying subscription. Safe to call
// multiple times.
func (it *Iterator) Close() {
	it.mu.Lock()
	if it.closed {
		it.mu.Unlock()
		return
	}
	it.closed = true
	it.queue = nil
	it.mu.Unlock()

	it.sub.Unsubscribe()
}
