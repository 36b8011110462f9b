package ila

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncQueue_FillDrain(t *testing.T) {
	q := &asyncQueue{}
	assert.True(t, q.Empty())
	assert.False(t, q.Full())

	for i := 0; i < cdcDepth; i++ {
		require.True(t, q.TryPush(StreamWord{Payload: uint64(i)}), "push %d", i)
	}
	assert.True(t, q.Full())

	// A push against a full queue is refused and loses nothing.
	assert.False(t, q.TryPush(StreamWord{Payload: 999}))

	for i := 0; i < cdcDepth; i++ {
		w, ok := q.Peek()
		require.True(t, ok)
		assert.Equal(t, uint64(i), w.Payload)
		q.Pop()
	}
	assert.True(t, q.Empty())

	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestAsyncQueue_WrapAround(t *testing.T) {
	q := &asyncQueue{}

	// Push and pop past the capacity several times over so the cursors
	// wrap the ring.
	next := uint64(0)
	for round := 0; round < 10; round++ {
		for i := 0; i < cdcDepth-1; i++ {
			require.True(t, q.TryPush(StreamWord{Payload: next + uint64(i)}))
		}
		for i := 0; i < cdcDepth-1; i++ {
			w, ok := q.Peek()
			require.True(t, ok)
			assert.Equal(t, next+uint64(i), w.Payload)
			q.Pop()
		}
		next += cdcDepth - 1
	}
	assert.True(t, q.Empty())
}

func TestAsyncQueue_Concurrent(t *testing.T) {
	const n = 100000

	q := &asyncQueue{}
	go func() {
		for i := uint64(0); i < n; {
			if q.TryPush(StreamWord{Payload: i}) {
				i++
			}
		}
	}()

	for i := uint64(0); i < n; {
		w, ok := q.Peek()
		if !ok {
			continue
		}
		require.Equal(t, i, w.Payload)
		q.Pop()
		i++
	}
}
