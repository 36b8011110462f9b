package ila

import (
	"errors"
	"fmt"
)

// Errors returned while building an analyzer.
var (
	ErrSampleDepth = errors.New("ila: sample depth must be at least 1")
	ErrPretrigger  = errors.New("ila: pretrigger sample count is negative")
	ErrSampleRate  = errors.New("ila: sample rate must be positive")
)

// DefaultSampleRate is assumed when Config.SampleRate is left zero.
const DefaultSampleRate = 60e6

// Config holds the immutable configuration of an Analyzer.
type Config struct {
	// Signals is the ordered set of monitored signals.
	Signals *SignalSet

	// Depth is the capture buffer depth, in samples.
	Depth int

	// Pretrigger is the number of samples recorded from before the
	// trigger cycle. Zero means the first recorded sample is the one
	// taken on the trigger cycle itself.
	Pretrigger int

	// SampleRate is the nominal sample rate in Hz. It never affects
	// capture behavior; it scales the timestamps the host derives.
	SampleRate float64

	// WithEnable gates sampling on the per-tick Enable input. When
	// false the enable input is ignored and every capture tick samples.
	WithEnable bool
}

// Input carries one tick's worth of analyzer inputs.
type Input struct {
	// Trigger is a one-cycle strobe that arms a capture session. It is
	// honored only while the analyzer is idle.
	Trigger bool

	// Enable gates sampling when the analyzer was built WithEnable.
	Enable bool

	// Word is the concatenated value of all monitored signals for this
	// tick, packed per the analyzer's signal set.
	Word uint64
}

// Status reports the analyzer outputs for one tick.
type Status struct {
	// Capturing is high for the entire capture state, from the cycle
	// after the trigger until the buffer fills, regardless of enable.
	Capturing bool

	// Sampling is high on ticks where a sample is written to the buffer.
	Sampling bool

	// Complete is high once a capture session has filled the buffer,
	// until the next trigger is accepted.
	Complete bool
}

type engineState int

const (
	stateIdle engineState = iota
	stateCapture
)

// Analyzer is the sample capture engine. It owns the sample buffer, the
// pretrigger delay pipeline, and the arm/capture/complete state machine.
//
// The buffer is written exactly Depth times per capture session, never
// wraps, and may be read at any address at any time through Sample,
// including mid-capture.
type Analyzer struct {
	cfg    Config
	buffer []uint64
	pipe   *delayPipeline

	state    engineState
	cursor   int
	complete bool
}

// NewAnalyzer validates cfg and builds an idle analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Signals == nil || len(cfg.Signals.signals) == 0 {
		return nil, ErrNoSignals
	}
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("%w: %d", ErrSampleDepth, cfg.Depth)
	}
	if cfg.Pretrigger < 0 {
		return nil, fmt.Errorf("%w: %d", ErrPretrigger, cfg.Pretrigger)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.SampleRate < 0 {
		return nil, fmt.Errorf("%w: %v", ErrSampleRate, cfg.SampleRate)
	}

	return &Analyzer{
		cfg:    cfg,
		buffer: make([]uint64, cfg.Depth),
		pipe:   newDelayPipeline(cfg.Pretrigger),
	}, nil
}

// Tick advances the analyzer by one clock cycle.
func (a *Analyzer) Tick(in Input) Status {
	if !a.cfg.WithEnable {
		in.Enable = true
	}

	delayed := a.pipe.output()

	var st Status
	switch a.state {
	case stateIdle:
		if in.Trigger {
			a.cursor = 0
			a.complete = false
			a.state = stateCapture
		}

	case stateCapture:
		st.Capturing = true
		st.Sampling = delayed.enable
		if delayed.enable {
			a.buffer[a.cursor] = delayed.word
			if a.cursor == len(a.buffer)-1 {
				a.complete = true
				a.state = stateIdle
			} else {
				a.cursor++
			}
		}
	}
	st.Complete = a.complete

	a.pipe.shift(delayEntry{word: in.Word, enable: in.Enable})
	return st
}

// Sample is the combinational readback port: it returns the most recently
// written word at address i, valid in any state. Addresses at or past the
// current write cursor hold stale data until a session overwrites them.
func (a *Analyzer) Sample(i int) uint64 {
	if i < 0 || i >= len(a.buffer) {
		return 0
	}
	return a.buffer[i]
}

// Signals returns the monitored signals in declaration order.
func (a *Analyzer) Signals() []Signal { return a.cfg.Signals.Signals() }

// SampleWidth returns the concatenated sample width in bits.
func (a *Analyzer) SampleWidth() int { return a.cfg.Signals.Width() }

// SampleDepth returns the capture buffer depth in samples.
func (a *Analyzer) SampleDepth() int { return a.cfg.Depth }

// SampleRate returns the nominal sample rate in Hz.
func (a *Analyzer) SampleRate() float64 { return a.cfg.SampleRate }

// SamplePeriod returns the nominal time between samples in seconds.
func (a *Analyzer) SamplePeriod() float64 { return 1 / a.cfg.SampleRate }
