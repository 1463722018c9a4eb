package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostlabs/seance/core"
	"github.com/ghostlabs/seance/logging"
)

func newIteratorHub() *Hub {
	return New(func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Policy = core.QuietPolicy{}
		o.IdleUnit = time.Millisecond
	})
}

func TestIteratorYieldsInEmissionOrder(t *testing.T) {
	h := newIteratorHub()
	it := h.Events(context.Background())
	defer it.Close()

	h.Emit(core.NewEvent("knock", "test", 1))
	h.Emit(core.NewEvent("knock", "test", 2))
	h.Emit(core.NewEvent("knock", "test", 3))

	for want := 1; want <= 3; want++ {
		ev, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, want, ev.Data)
	}
}

func TestIteratorQueuesWhileNotPulling(t *testing.T) {
	h := newIteratorHub()
	it := h.Events(context.Background())
	defer it.Close()

	// Events emitted before any Next call are queued, not lost.
	for i := 0; i < 10; i++ {
		h.Emit(core.NewEvent("knock", "test", i))
	}

	var count int
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 10, count)
}

func TestIteratorIdleTimeout(t *testing.T) {
	h := newIteratorHub()
	it := h.Events(context.Background())
	defer it.Close()

	start := time.Now()
	_, ok := it.Next()
	elapsed := time.Since(start)

	assert.False(t, ok)
	// 30 idle units of 1ms each.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestIteratorFilter(t *testing.T) {
	h := newIteratorHub()
	it := h.Events(context.Background(), func(o *IteratorOptions) {
		o.Filter = func(ev core.Event) bool { return ev.Type == "knock" }
	})
	defer it.Close()

	h.Emit(core.NewEvent("ignored", "test", nil))
	h.Emit(core.NewEvent("knock", "test", nil))
	h.Emit(core.NewEvent("ignored", "test", nil))

	ev, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "knock", ev.Type)

	_, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorMax(t *testing.T) {
	h := newIteratorHub()
	it := h.Events(context.Background(), func(o *IteratorOptions) {
		o.Max = 2
	})
	defer it.Close()

	for i := 0; i < 5; i++ {
		h.Emit(core.NewEvent("knock", "test", i))
	}

	_, ok := it.Next()
	require.True(t, ok)
	_, ok = it.Next()
	require.True(t, ok)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorContextCancel(t *testing.T) {
	h := newIteratorHub()
	ctx, cancel := context.WithCancel(context.Background())
	it := h.Events(ctx, func(o *IteratorOptions) {
		o.IdleTimeout = time.Minute
	})
	defer it.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, ok := it.Next()

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIteratorCloseStopsQueueing(t *testing.T) {
	h := newIteratorHub()
	it := h.Events(context.Background())

	it.Close()
	h.Emit(core.NewEvent("knock", "test", nil))

	_, ok := it.Next()
	assert.False(t, ok)
}
