package hub

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// FuseStreams combines N value streams into a stream of N-tuples, re-emitting
// whenever any source produces a new value once every source has produced at
// least once. Bursts within the debounce window collapse into one emission,
// and a tuple structurally equal to the previous one is suppressed.
//
// A source that terminates before producing its first value degrades to an
// empty tuple instead of failing the fused stream; its slot stays nil in
// subsequent tuples. The output closes when all sources have terminated or
// ctx is cancelled.
func (h *Hub) FuseStreams(ctx context.Context, sources ...<-chan any) <-chan []any {
	out := make(chan []any, 16)
	if len(sources) == 0 {
		close(out)
		return out
	}

	type update struct {
		idx    int
		val    any
		closed bool
	}

	updates := make(chan update)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(idx int, src <-chan any) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-src:
					if !ok {
						select {
						case updates <- update{idx: idx, closed: true}:
						case <-ctx.Done():
						}
						return
					}
					select {
					case updates <- update{idx: idx, val: v}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i, src)
	}
	go func() {
		wg.Wait()
		close(updates)
	}()

	go func() {
		defer close(out)

		latest := make([]any, len(sources))
		seen := make([]bool, len(sources))
		var prev []any
		havePrev := false
		pending := false

		allSeen := func() bool {
			for _, s := range seen {
				if !s {
					return false
				}
			}
			return true
		}

		flush := func() {
			if !pending || !allSeen() {
				return
			}
			pending = false
			tuple := make([]any, len(latest))
			copy(tuple, latest)
			if havePrev && reflect.DeepEqual(tuple, prev) {
				return
			}
			prev = tuple
			havePrev = true
			select {
			case out <- tuple:
			case <-ctx.Done():
			}
		}

		timer := time.NewTimer(h.fuseDebounce)
		if !timer.Stop() {
			<-timer.C
		}
		var timerC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					flush()
					return
				}
				if u.closed {
					if !seen[u.idx] {
						// Degraded source: surface an empty tuple and
						// keep the fused stream alive.
						seen[u.idx] = true
						select {
						case out <- []any{}:
						case <-ctx.Done():
							return
						}
					}
					continue
				}
				latest[u.idx] = u.val
				seen[u.idx] = true
				pending = true
				if timerC != nil && !timer.Stop() {
					<-timer.C
				}
				timer.Reset(h.fuseDebounce)
				timerC = timer.C
			case <-timerC:
				timerC = nil
				flush()
			}
		}
	}()

	return out
}
