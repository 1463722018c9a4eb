package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ghostlabs/seance/core"
	"github.com/ghostlabs/seance/logging"
	"github.com/ghostlabs/seance/metrics"
)

// Stream is the multicast result of a stream transformation. All subscribers
// share the single upstream execution and a late joiner is replayed the most
// recent value before receiving live ones.
type Stream struct {
	logger    logging.Logger
	collector *metrics.Collector

	mu      sync.Mutex
	taps    map[uint64]chan core.Event
	nextTap uint64
	last    core.Event
	hasLast bool
	closed  bool
	done    chan struct{}
}

func newStream(logger logging.Logger, collector *metrics.Collector) *Stream {
	return &Stream{
		logger:    logger,
		collector: collector,
		taps:      make(map[uint64]chan core.Event),
		done:      make(chan struct{}),
	}
}

// Subscribe returns a channel of the stream's events. The channel is closed
// when the upstream terminates or ctx is cancelled. Subscribing never
// triggers additional upstream work.
func (s *Stream) Subscribe(ctx context.Context) <-chan core.Event {
	out := make(chan core.Event, 64)

	s.mu.Lock()
	if s.hasLast {
		out <- s.last
	}
	if s.closed {
		close(out)
		s.mu.Unlock()
		return out
	}
	s.nextTap++
	id := s.nextTap
	s.taps[id] = out
	s.mu.Unlock()

	if d := ctx.Done(); d != nil {
		go func() {
			select {
			case <-d:
				s.removeTap(id)
			case <-s.done:
			}
		}()
	}

	return out
}

func (s *Stream) removeTap(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tap, ok := s.taps[id]; ok {
		delete(s.taps, id)
		close(tap)
	}
}

// publish fans one event out to every tap. A tap whose buffer is full misses
// the event rather than stalling the shared upstream; every miss is counted
// and logged so the loss stays observable.
func (s *Stream) publish(ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.last = ev
	s.hasLast = true
	for id, tap := range s.taps {
		select {
		case tap <- ev:
		default:
			s.collector.BackpressureDrop("stream_tap")
			s.logger.Debug("stream tap overflow tap_id=%d event_type=%s", id, ev.Type)
		}
	}
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, tap := range s.taps {
		delete(s.taps, id)
		close(tap)
	}
	close(s.done)
}

// StreamOf returns a closed channel pre-loaded with the given events. Handy
// for transforms producing a fixed set of outputs.
func StreamOf(events ...core.Event) <-chan core.Event {
	ch := make(chan core.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

// ProcessStream applies transform to every item from source. The transform
// returns a sub-stream, supporting zero, one or many outputs per input and
// asynchronous production.
//
// Failure containment is two-tiered: an error returned by the transform is a
// per-item failure that terminates only that item's sub-stream and surfaces
// as one diagnostic event, while a fault escaping isolation (a transform
// panic) triggers up to MaxRetries retries with exponential backoff and
// jitter before the stream fails terminally. Every retry and the terminal
// failure emit diagnostic events.
//
// The returned stream is multicast with replay-one semantics: the transform
// runs once per input regardless of subscriber count.
func (h *Hub) ProcessStream(ctx context.Context, source <-chan core.Event, transform core.Transform) core.EventStream {
	stream := newStream(h.logger, h.collector)
	go h.runProcess(ctx, source, transform, stream)
	return stream
}

func (h *Hub) runProcess(ctx context.Context, source <-chan core.Event, transform core.Transform, stream *Stream) {
	defer stream.close()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = h.retryBaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 1
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 0; ; attempt++ {
		err := h.consume(ctx, source, transform, stream)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt >= h.maxRetries {
			h.collector.StreamFailure()
			h.emitDiagnostic(core.EventTypeStreamFailure,
				core.NewDisturbanceFault("stream processing failed terminally", err))
			return
		}

		delay := bo.NextBackOff()
		h.collector.StreamRetry()
		h.emitDiagnostic(core.EventTypeStreamRetry,
			core.NewDisturbanceFault(fmt.Sprintf("stream processing retry %d of %d", attempt+1, h.maxRetries), err))
		h.logger.Warn("stream processing retry hub_id=%s attempt=%d delay=%s error=%v", h.id, attempt+1, delay, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// consume drains source through transform until exhaustion or cancellation.
// An error return means a fault escaped per-item isolation and the caller
// should retry.
func (h *Hub) consume(ctx context.Context, source <-chan core.Event, transform core.Transform, stream *Stream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream transform panic: %v", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-source:
			if !ok {
				return nil
			}

			sub, itemErr := transform(ctx, ev)
			if itemErr != nil {
				// Per-item failure: only this item's sub-stream dies.
				h.emitDiagnostic(core.EventTypeDisturbanceDetected,
					core.NewDisturbanceFault(fmt.Sprintf("transform failed for event %s", ev.Type), itemErr))
				continue
			}
			if sub == nil {
				continue
			}

		drain:
			for {
				select {
				case <-ctx.Done():
					return nil
				case out, open := <-sub:
					if !open {
						break drain
					}
					stream.publish(out)
				}
			}
		}
	}
}
