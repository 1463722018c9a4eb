package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostlabs/seance/core"
)

func drainEvents(t *testing.T, out <-chan core.Event) []core.Event {
	t.Helper()
	var events []core.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-out:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("backpressure output did not close")
		}
	}
}

func TestBackpressurePassesThroughUnderCapacity(t *testing.T) {
	h := newTestHub()

	source := make(chan core.Event, 3)
	for i := 0; i < 3; i++ {
		source <- core.NewEvent("knock", "test", i)
	}
	close(source)

	events := drainEvents(t, h.Backpressure(context.Background(), source, 10, DropOldest))

	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i, ev.Data)
	}
}

func TestBackpressureDropOldest(t *testing.T) {
	h := newTestHub()

	// No consumer pulls until the producer is done, so the buffer of 2
	// overflows and evicts from the head.
	source := make(chan core.Event, 5)
	for i := 0; i < 5; i++ {
		source <- core.NewEvent("knock", "test", i)
	}
	close(source)

	out := h.Backpressure(context.Background(), source, 2, DropOldest)
	time.Sleep(50 * time.Millisecond)

	events := drainEvents(t, out)

	// The two newest survive; payload order is preserved.
	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].Data)
	assert.Equal(t, 4, events[1].Data)
}

func TestBackpressureDropNewest(t *testing.T) {
	h := newTestHub()

	source := make(chan core.Event, 5)
	for i := 0; i < 5; i++ {
		source <- core.NewEvent("knock", "test", i)
	}
	close(source)

	out := h.Backpressure(context.Background(), source, 2, DropNewest)
	time.Sleep(50 * time.Millisecond)

	events := drainEvents(t, out)

	// The two oldest survive; later events were rejected.
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Data)
	assert.Equal(t, 1, events[1].Data)
}

func TestBackpressureFailPolicy(t *testing.T) {
	h := newTestHub()

	var failures int
	h.Subscribe(func(ev core.Event) error {
		if ev.Type == core.EventTypeStreamFailure {
			failures++
		}
		return nil
	})

	source := make(chan core.Event, 5)
	for i := 0; i < 5; i++ {
		source <- core.NewEvent("knock", "test", i)
	}
	close(source)

	out := h.Backpressure(context.Background(), source, 2, Fail)
	time.Sleep(50 * time.Millisecond)

	events := drainEvents(t, out)

	// The stream terminated on overflow instead of draining everything.
	assert.Less(t, len(events), 5)
	assert.Equal(t, 1, failures)
}

func TestBackpressureStopsOnCancel(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	source := make(chan core.Event)
	out := h.Backpressure(ctx, source, 2, DropOldest)

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("output did not close after cancellation")
	}
}

func TestOverflowPolicyLabels(t *testing.T) {
	assert.Equal(t, "drop_oldest", DropOldest.String())
	assert.Equal(t, "drop_newest", DropNewest.String())
	assert.Equal(t, "fail", Fail.String())
	assert.Equal(t, "unknown", OverflowPolicy(99).String())
}
