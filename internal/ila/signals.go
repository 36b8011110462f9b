// Package ila implements a tick-stepped integrated logic analyzer: a
// triggered capture engine that records a fixed-depth window of monitored
// signal samples, plus the transports that expose the captured buffer over
// SPI, a back-pressured stream, or a byte-serial line.
//
// Every component in this package advances on discrete clock ticks. A Tick
// call consumes the inputs for one cycle and returns outputs derived from
// the component's state at the start of that cycle; state updates become
// visible on the next tick.
package ila

import (
	"errors"
	"fmt"
)

// Maximum concatenated width of a signal set, in bits. Sample words are
// carried as uint64 throughout the capture path.
const MaxSampleWidth = 64

// Errors returned while building a signal set.
var (
	ErrNoSignals     = errors.New("ila: signal set is empty")
	ErrSignalWidth   = errors.New("ila: signal width out of range")
	ErrSignalName    = errors.New("ila: signal name is empty")
	ErrDuplicateName = errors.New("ila: duplicate signal name")
	ErrSampleWidth   = errors.New("ila: combined sample width exceeds limit")
)

// Signal is one named, fixed-width bit-field monitored by the analyzer.
type Signal struct {
	Name  string
	Width int
}

// SignalSet is an ordered collection of monitored signals. Declaration
// order is significant: signals are concatenated least-significant-field
// first into a single sample word, and the same order drives host-side
// decoding. The set is immutable once built.
type SignalSet struct {
	signals []Signal
	width   int
}

// NewSignalSet validates and builds a signal set from the given signals.
func NewSignalSet(signals ...Signal) (*SignalSet, error) {
	if len(signals) == 0 {
		return nil, ErrNoSignals
	}

	seen := make(map[string]bool, len(signals))
	width := 0
	for _, sig := range signals {
		if sig.Name == "" {
			return nil, ErrSignalName
		}
		if seen[sig.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, sig.Name)
		}
		seen[sig.Name] = true

		if sig.Width < 1 || sig.Width > MaxSampleWidth {
			return nil, fmt.Errorf("%w: %q is %d bits", ErrSignalWidth, sig.Name, sig.Width)
		}
		width += sig.Width
	}
	if width > MaxSampleWidth {
		return nil, fmt.Errorf("%w: %d bits", ErrSampleWidth, width)
	}

	set := &SignalSet{
		signals: append([]Signal(nil), signals...),
		width:   width,
	}
	return set, nil
}

// Width returns the concatenated sample width in bits.
func (s *SignalSet) Width() int { return s.width }

// Signals returns the signals in declaration order.
func (s *SignalSet) Signals() []Signal {
	return append([]Signal(nil), s.signals...)
}

// Pack concatenates one value per signal, in declaration order, into a
// sample word. Values wider than their declared signal are masked.
func (s *SignalSet) Pack(values ...uint64) (uint64, error) {
	if len(values) != len(s.signals) {
		return 0, fmt.Errorf("ila: pack needs %d values, got %d", len(s.signals), len(values))
	}

	var word uint64
	shift := 0
	for i, sig := range s.signals {
		word |= (values[i] & mask(sig.Width)) << shift
		shift += sig.Width
	}
	return word, nil
}

// Unpack splits a sample word back into per-signal values, keyed by
// signal name.
func (s *SignalSet) Unpack(word uint64) map[string]uint64 {
	values := make(map[string]uint64, len(s.signals))
	shift := 0
	for _, sig := range s.signals {
		values[sig.Name] = (word >> shift) & mask(sig.Width)
		shift += sig.Width
	}
	return values
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}
