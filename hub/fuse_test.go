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

func newFuseHub() *Hub {
	return New(func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Policy = core.QuietPolicy{}
		o.FuseDebounce = 10 * time.Millisecond
	})
}

func collectTuples(t *testing.T, fused <-chan []any) [][]any {
	t.Helper()
	var tuples [][]any
	timeout := time.After(5 * time.Second)
	for {
		select {
		case tuple, ok := <-fused:
			if !ok {
				return tuples
			}
			tuples = append(tuples, tuple)
		case <-timeout:
			t.Fatal("fused stream did not close")
		}
	}
}

func TestFuseWaitsForAllSources(t *testing.T) {
	h := newFuseHub()
	ctx := context.Background()

	a := make(chan any, 4)
	b := make(chan any, 4)
	fused := h.FuseStreams(ctx, readOnly(a), readOnly(b))

	a <- 1
	// No emission until b produces too.
	select {
	case tuple := <-fused:
		t.Fatalf("premature tuple %v", tuple)
	case <-time.After(50 * time.Millisecond):
	}

	b <- "x"
	close(a)
	close(b)

	tuples := collectTuples(t, fused)
	require.Len(t, tuples, 1)
	assert.Equal(t, []any{1, "x"}, tuples[0])
}

func TestFuseDebouncesBursts(t *testing.T) {
	h := newFuseHub()
	ctx := context.Background()

	a := make(chan any, 8)
	b := make(chan any, 8)
	fused := h.FuseStreams(ctx, readOnly(a), readOnly(b))

	// A rapid burst lands within one debounce window.
	b <- "x"
	for i := 1; i <= 5; i++ {
		a <- i
	}
	close(a)
	close(b)

	tuples := collectTuples(t, fused)
	require.Len(t, tuples, 1)
	assert.Equal(t, []any{5, "x"}, tuples[0])
}

func TestFuseSuppressesDuplicateTuples(t *testing.T) {
	h := newFuseHub()
	ctx := context.Background()

	a := make(chan any)
	b := make(chan any)
	fused := h.FuseStreams(ctx, readOnly(a), readOnly(b))

	a <- 1
	b <- "x"
	time.Sleep(30 * time.Millisecond)

	// The same value again produces a structurally equal tuple.
	a <- 1
	time.Sleep(30 * time.Millisecond)

	a <- 2
	close(a)
	close(b)

	tuples := collectTuples(t, fused)
	require.Len(t, tuples, 2)
	assert.Equal(t, []any{1, "x"}, tuples[0])
	assert.Equal(t, []any{2, "x"}, tuples[1])
}

func TestFuseDegradesClosedEmptySource(t *testing.T) {
	h := newFuseHub()
	ctx := context.Background()

	a := make(chan any, 2)
	b := make(chan any)
	close(b) // terminates before producing anything

	fused := h.FuseStreams(ctx, readOnly(a), readOnly(b))

	a <- 1
	close(a)

	tuples := collectTuples(t, fused)
	require.NotEmpty(t, tuples)
	// The degraded source surfaces as an empty tuple and its slot stays
	// nil afterwards.
	assert.Equal(t, []any{}, tuples[0])
	last := tuples[len(tuples)-1]
	if len(last) == 2 {
		assert.Equal(t, 1, last[0])
		assert.Nil(t, last[1])
	}
}

func TestFuseNoSources(t *testing.T) {
	h := newFuseHub()

	fused := h.FuseStreams(context.Background())
	_, ok := <-fused
	assert.False(t, ok)
}

func TestFuseStopsOnCancel(t *testing.T) {
	h := newFuseHub()
	ctx, cancel := context.WithCancel(context.Background())

	a := make(chan any)
	fused := h.FuseStreams(ctx, readOnly(a))

	cancel()

	select {
	case _, ok := <-fused:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("fused stream did not close after cancellation")
	}
}

func readOnly(ch chan any) <-chan any { return ch }
