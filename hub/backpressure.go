package hub

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ghostlabs/seance/core"
)

// OverflowPolicy selects what a bounded buffer does when it is full.
type OverflowPolicy int

const (
	// DropOldest evicts the head of the buffer to admit the new event.
	DropOldest OverflowPolicy = iota
	// DropNewest rejects the incoming event while the buffer is full.
	DropNewest
	// Fail terminates the stream with an overflow fault.
	Fail
)

// String returns the policy label used in metrics and diagnostics.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Backpressure wraps source with a fixed-size buffer protecting a slow
// consumer from a fast producer. Buffered items are delivered one at a time
// with a cooperative yield between items so draining the buffer cannot
// monopolize the scheduler.
//
// Under the Fail policy an overflow emits a stream_failure diagnostic and
// closes the output; the drop policies discard per their name and record the
// drop. Cancelling ctx stops the draining loop promptly.
func (h *Hub) Backpressure(ctx context.Context, source <-chan core.Event, size int, policy OverflowPolicy) <-chan core.Event {
	if size <= 0 {
		size = 1
	}
	out := make(chan core.Event)

	go func() {
		defer close(out)

		buffer := make([]core.Event, 0, size)
		sourceOpen := true

		for {
			if !sourceOpen && len(buffer) == 0 {
				return
			}

			// With nothing buffered, the only thing to do is wait for
			// the producer.
			if len(buffer) == 0 {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-source:
					if !ok {
						sourceOpen = false
						continue
					}
					buffer = append(buffer, ev)
				}
				continue
			}

			if sourceOpen {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-source:
					if !ok {
						sourceOpen = false
						continue
					}
					if len(buffer) < size {
						buffer = append(buffer, ev)
						continue
					}
					switch policy {
					case DropOldest:
						buffer = append(buffer[1:], ev)
						h.collector.BackpressureDrop(policy.String())
						h.logger.Debug("backpressure evicted oldest hub_id=%s size=%d", h.id, size)
					case DropNewest:
						h.collector.BackpressureDrop(policy.String())
						h.logger.Debug("backpressure rejected newest hub_id=%s size=%d", h.id, size)
					case Fail:
						h.collector.StreamFailure()
						h.emitDiagnostic(core.EventTypeStreamFailure,
							core.NewDisturbanceFault(fmt.Sprintf("backpressure buffer overflow at %d", size), nil))
						return
					}
				case out <- buffer[0]:
					buffer = buffer[1:]
					runtime.Gosched()
				}
			} else {
				select {
				case <-ctx.Done():
					return
				case out <- buffer[0]:
					buffer = buffer[1:]
					runtime.Gosched()
				}
			}
		}
	}()

	return out
}
