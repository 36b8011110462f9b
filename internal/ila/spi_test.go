package ila

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSPITransport(t *testing.T, spiCfg SPIConfig) *SPITransport {
	t.Helper()
	set, err := NewSignalSet(Signal{Name: "bus", Width: 12})
	require.NoError(t, err)

	tr, err := NewSPITransport(Config{Signals: set, Depth: 16}, spiCfg)
	require.NoError(t, err)
	return tr
}

// captureRamp fills the transport's buffer with 0xF00..0xF0F.
func captureRamp(tr *SPITransport) {
	idle := tr.cfg.ClockPolarity == 1

	tick := func(in Input) Status {
		out := tr.Tick(SPIInput{Capture: in, SCK: idle})
		return out.Status
	}

	tick(Input{Word: 0xF00})
	tick(Input{Trigger: true, Word: 0xF00})
	for i := 1; i < 16; i++ {
		tick(Input{Word: uint64(0xF00 | i)})
	}
	for i := 0; i < 5; i++ {
		tick(Input{Word: 0xF0F})
	}
}

// spiExchangeWords clocks n full words out of an asserted-select
// transport, one SCK toggle per tick, and returns them MSB-first.
func spiExchangeWords(t *testing.T, tr *SPITransport, n int) []uint64 {
	t.Helper()
	cpol := tr.cfg.ClockPolarity == 1
	cpha := tr.cfg.ClockPhase

	// Assert select with the clock idle.
	tr.Tick(SPIInput{CS: true, SCK: cpol})

	words := make([]uint64, 0, n)
	bits := tr.BitsPerSample()
	for w := 0; w < n; w++ {
		var word uint64
		for b := 0; b < bits; b++ {
			leading := tr.Tick(SPIInput{CS: true, SCK: !cpol})
			trailing := tr.Tick(SPIInput{CS: true, SCK: cpol})

			// Phase 0 samples on the leading edge, phase 1 on the
			// trailing edge.
			sampled := leading.SDO
			if cpha == 1 {
				sampled = trailing.SDO
			}
			word <<= 1
			if sampled {
				word |= 1
			}
		}
		words = append(words, word)
	}
	return words
}

func TestSPITransport_WordSize(t *testing.T) {
	tr := newTestSPITransport(t, SPIConfig{})
	assert.Equal(t, 32, tr.BitsPerSample())
	assert.Equal(t, 4, tr.BytesPerSample())

	// 33 bits needs two 32-bit words, rounded up to a 64-bit boundary.
	set, err := NewSignalSet(Signal{Name: "wide", Width: 33})
	require.NoError(t, err)
	wide, err := NewSPITransport(Config{Signals: set, Depth: 4}, SPIConfig{})
	require.NoError(t, err)
	assert.Equal(t, 64, wide.BitsPerSample())
	assert.Equal(t, 8, wide.BytesPerSample())
}

func TestSPITransport_Readout(t *testing.T) {
	tr := newTestSPITransport(t, SPIConfig{ClockPolarity: 1, ClockPhase: 0})

	captureRamp(tr)
	st := tr.Tick(SPIInput{SCK: true})
	require.True(t, st.Complete)

	words := spiExchangeWords(t, tr, 16)
	for i, w := range words {
		assert.Equal(t, uint64(0xF00|i), w, "word %d", i)
	}
}

func TestSPITransport_ReadoutMode0(t *testing.T) {
	tr := newTestSPITransport(t, SPIConfig{ClockPolarity: 0, ClockPhase: 1})

	captureRamp(tr)

	words := spiExchangeWords(t, tr, 16)
	for i, w := range words {
		assert.Equal(t, uint64(0xF00|i), w, "word %d", i)
	}
}

// De-asserting select must rewind the transaction to sample 0.
func TestSPITransport_SelectResetsIndex(t *testing.T) {
	tr := newTestSPITransport(t, SPIConfig{ClockPolarity: 1, ClockPhase: 0})

	captureRamp(tr)

	words := spiExchangeWords(t, tr, 3)
	assert.Equal(t, []uint64{0xF00, 0xF01, 0xF02}, words)

	// Drop select for a couple of ticks, then start a new transaction.
	tr.Tick(SPIInput{SCK: true})
	tr.Tick(SPIInput{SCK: true})

	words = spiExchangeWords(t, tr, 2)
	assert.Equal(t, []uint64{0xF00, 0xF01}, words)
}

func TestSPITransport_CSIdlesHigh(t *testing.T) {
	set, err := NewSignalSet(Signal{Name: "bus", Width: 12})
	require.NoError(t, err)
	tr, err := NewSPITransport(
		Config{Signals: set, Depth: 16},
		SPIConfig{ClockPolarity: 1, ClockPhase: 0, CSIdlesHigh: true},
	)
	require.NoError(t, err)

	// With the select inverted the bus is idle while CS is driven high.
	tick := func(in Input) {
		tr.Tick(SPIInput{Capture: in, SCK: true, CS: true})
	}
	tick(Input{Word: 0xF00})
	tick(Input{Trigger: true, Word: 0xF00})
	for i := 1; i < 16; i++ {
		tick(Input{Word: uint64(0xF00 | i)})
	}

	// Drive CS low to frame the transaction.
	tr.Tick(SPIInput{SCK: true, CS: false})
	var word uint64
	for b := 0; b < 32; b++ {
		leading := tr.Tick(SPIInput{CS: false, SCK: false})
		tr.Tick(SPIInput{CS: false, SCK: true})
		word <<= 1
		if leading.SDO {
			word |= 1
		}
	}
	assert.Equal(t, uint64(0xF00), word)
}
