package ila

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStreamTransport(t *testing.T, streamCfg StreamConfig) *StreamTransport {
	t.Helper()
	set, err := NewSignalSet(Signal{Name: "count", Width: 8})
	require.NoError(t, err)

	tr, err := NewStreamTransport(Config{Signals: set, Depth: 8}, streamCfg)
	require.NoError(t, err)
	return tr
}

// runCapture triggers the transport and ticks it until the analyzer
// reports completion, presenting 0x40, 0x41, ... as the sample stream.
func runCapture(t *testing.T, tr *StreamTransport) {
	t.Helper()
	tr.Tick(StreamInput{Capture: Input{Word: 0x40}})
	_, st := tr.Tick(StreamInput{Capture: Input{Trigger: true, Word: 0x40}})
	for v := 0x41; !st.Complete; v++ {
		require.Less(t, v, 0x100, "capture never completed")
		_, st = tr.Tick(StreamInput{Capture: Input{Word: uint64(v)}})
	}
}

func TestStreamTransport_WordSize(t *testing.T) {
	tr := newTestStreamTransport(t, StreamConfig{})
	assert.Equal(t, 8, tr.BitsPerSample())
	assert.Equal(t, 1, tr.BytesPerSample())

	set, err := NewSignalSet(Signal{Name: "bus", Width: 12})
	require.NoError(t, err)
	wide, err := NewStreamTransport(Config{Signals: set, Depth: 4}, StreamConfig{})
	require.NoError(t, err)
	assert.Equal(t, 16, wide.BitsPerSample())
	assert.Equal(t, 2, wide.BytesPerSample())

	set, err = NewSignalSet(Signal{Name: "bit", Width: 1})
	require.NoError(t, err)
	narrow, err := NewStreamTransport(Config{Signals: set, Depth: 4}, StreamConfig{})
	require.NoError(t, err)
	assert.Equal(t, 8, narrow.BitsPerSample())
	assert.Equal(t, 1, narrow.BytesPerSample())
}

func TestStreamTransport_Burst(t *testing.T) {
	tr := newTestStreamTransport(t, StreamConfig{})
	runCapture(t, tr)

	// Collect the burst with the consumer stuttering: ready only every
	// other tick. Valid words must be held until accepted.
	var words []StreamWord
	ready := false
	for ticks := 0; len(words) < 8; ticks++ {
		require.Less(t, ticks, 100, "burst never finished")
		ready = !ready
		out, _ := tr.Tick(StreamInput{Ready: ready})
		if out.Valid && ready {
			words = append(words, out.StreamWord)
		}
	}

	for i, w := range words {
		assert.Equal(t, uint64(0x40+i), w.Payload, "word %d", i)
		assert.Equal(t, i == 0, w.First, "word %d first", i)
		assert.Equal(t, i == 7, w.Last, "word %d last", i)
	}

	// After the last word is accepted the transport is idle again and
	// valid stays low.
	out, _ := tr.Tick(StreamInput{Ready: true})
	assert.False(t, out.Valid)

	// A second trigger produces a second, identical burst.
	runCapture(t, tr)
	out, _ = tr.Tick(StreamInput{Ready: true})
	assert.True(t, out.Valid)
	assert.True(t, out.First)
	assert.Equal(t, uint64(0x40), out.Payload)
}

func TestStreamTransport_TriggerBlockedWhileSending(t *testing.T) {
	tr := newTestStreamTransport(t, StreamConfig{})
	runCapture(t, tr)

	// The transport is mid-burst; a trigger now must not disturb it.
	out, _ := tr.Tick(StreamInput{Capture: Input{Trigger: true}, Ready: true})
	require.True(t, out.Valid)

	collected := 1
	for ticks := 0; collected < 8; ticks++ {
		require.Less(t, ticks, 100)
		out, _ = tr.Tick(StreamInput{Ready: true})
		if out.Valid {
			collected++
		}
	}
	assert.True(t, out.Last)
}

// The domain crossing must hand over the same words, in the same order,
// with the same burst markers.
func TestStreamTransport_CrossDomain(t *testing.T) {
	tr := newTestStreamTransport(t, StreamConfig{CrossDomain: true})
	runCapture(t, tr)

	// Interleave the two domains tick for tick, with the output side
	// pausing periodically to exercise the queue's back-pressure.
	var words []StreamWord
	for ticks := 0; len(words) < 8; ticks++ {
		require.Less(t, ticks, 1000, "crossing never delivered the burst")
		tr.Tick(StreamInput{})
		ready := ticks%3 != 0
		out := tr.TickOutput(ready)
		if out.Valid && ready {
			words = append(words, out.StreamWord)
		}
	}

	for i, w := range words {
		assert.Equal(t, uint64(0x40+i), w.Payload, "word %d", i)
		assert.Equal(t, i == 0, w.First, "word %d first", i)
		assert.Equal(t, i == 7, w.Last, "word %d last", i)
	}
}

// The two domains are driven from separate goroutines, as they would be
// with independent clocks.
func TestStreamTransport_CrossDomainConcurrent(t *testing.T) {
	tr := newTestStreamTransport(t, StreamConfig{CrossDomain: true})
	runCapture(t, tr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			tr.Tick(StreamInput{})
		}
	}()

	var words []StreamWord
	for len(words) < 8 {
		out := tr.TickOutput(true)
		if out.Valid {
			words = append(words, out.StreamWord)
		}
	}
	<-done

	for i, w := range words {
		assert.Equal(t, uint64(0x40+i), w.Payload, "word %d", i)
		assert.Equal(t, i == 0, w.First, "word %d first", i)
		assert.Equal(t, i == 7, w.Last, "word %d last", i)
	}
}
