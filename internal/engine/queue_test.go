package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpQueue_FIFO(t *testing.T) {
	q := newOpQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(request{id: id}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.id)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestOpQueue_WaitSignalsEnqueue(t *testing.T) {
	q := newOpQueue()
	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Enqueue(request{id: "late"})
	}()

	select {
	case <-q.Wait():
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, "late", r.id)
	case <-time.After(time.Second):
		t.Fatal("wait did not fire")
	}
}

func TestOpQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newOpQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(request{id: "x"}))
	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed queue did not wake waiter")
	}
}

func TestOpQueue_Drain(t *testing.T) {
	q := newOpQueue()
	q.Enqueue(request{id: "a"})
	q.Enqueue(request{id: "b"})

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "a", drained[0].id)
	assert.Equal(t, 0, q.Len())
}
