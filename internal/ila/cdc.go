package ila

import "sync/atomic"

// cdcDepth is the capacity of the domain-crossing queue.
const cdcDepth = 16

// asyncQueue is a bounded single-producer/single-consumer queue used to
// pass stream words between the capture domain and an independent output
// domain. The write side owns tail and the slots it points at; the read
// side owns head. The cursors are free-running and reduced modulo the
// capacity on access, so full/empty are exact and no locking is needed.
type asyncQueue struct {
	buf  [cdcDepth]StreamWord
	head atomic.Uint64
	tail atomic.Uint64
}

// TryPush appends w and reports whether there was room.
func (q *asyncQueue) TryPush(w StreamWord) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == cdcDepth {
		return false
	}
	q.buf[tail%cdcDepth] = w
	q.tail.Store(tail + 1)
	return true
}

// Peek returns the oldest queued word without removing it.
func (q *asyncQueue) Peek() (StreamWord, bool) {
	head := q.head.Load()
	if q.tail.Load() == head {
		return StreamWord{}, false
	}
	return q.buf[head%cdcDepth], true
}

// Pop discards the oldest queued word. It must only be called after a
// successful Peek on the same side.
func (q *asyncQueue) Pop() {
	q.head.Store(q.head.Load() + 1)
}

// Full reports whether a push would be refused.
func (q *asyncQueue) Full() bool {
	return q.tail.Load()-q.head.Load() == cdcDepth
}

// Empty reports whether a pop would find nothing.
func (q *asyncQueue) Empty() bool {
	return q.tail.Load() == q.head.Load()
}
