// Package frontend is the host side of the capture path: it fetches raw
// captured bytes from a transport, reconstructs named per-signal sample
// values, and renders them as a VCD waveform with an optional GTKWave
// layout file.
package frontend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	"sigscope/internal/logging"
	"sigscope/internal/snapshot"
)

// Errors returned while fetching or parsing samples.
var (
	ErrShortRead = errors.New("frontend: transport returned fewer bytes than one capture")
	ErrNoSamples = errors.New("frontend: no samples fetched")
)

// SampleReader fetches one capture's worth of raw bytes from a transport.
// A reader may return more than one capture's worth; the frontend uses
// the leading RawSize bytes.
type SampleReader interface {
	ReadRaw() ([]byte, error)
}

// Sample maps signal names to the values they held on one capture tick.
type Sample map[string]uint64

// Frontend decodes raw captures described by a parameter snapshot.
type Frontend struct {
	params  snapshot.Parameters
	reader  SampleReader
	samples []Sample
}

// New builds a frontend that decodes captures shaped by params, fetching
// raw bytes from reader.
func New(params snapshot.Parameters, reader SampleReader) *Frontend {
	return &Frontend{params: params, reader: reader}
}

// Params returns the parameter snapshot the frontend decodes against.
func (f *Frontend) Params() snapshot.Parameters { return f.params }

// Refresh fetches the latest capture from the transport and re-parses
// the sample cache.
func (f *Frontend) Refresh() error {
	raw, err := f.reader.ReadRaw()
	if err != nil {
		return fmt.Errorf("read samples: %w", err)
	}

	samples, err := f.parse(raw)
	if err != nil {
		return err
	}
	f.samples = samples

	logging.Debug("refreshed capture",
		"samples", len(samples),
		"bytes", len(raw))
	return nil
}

// parse slices raw bytes into samples: one big-endian word of
// BytesPerSample bytes per sample, each word split LSB-first by declared
// signal width in declared signal order.
func (f *Frontend) parse(raw []byte) ([]Sample, error) {
	need := f.params.RawSize()
	if len(raw) < need {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortRead, len(raw), need)
	}

	wordBytes := f.params.BytesPerSample
	samples := make([]Sample, f.params.SampleDepth)
	for i := range samples {
		word := beWord(raw[i*wordBytes : (i+1)*wordBytes])

		sample := make(Sample, len(f.params.Signals))
		shift := 0
		for _, sig := range f.params.Signals {
			sample[sig.Name] = word >> shift & widthMask(sig.Width)
			shift += sig.Width
		}
		samples[i] = sample
	}
	return samples, nil
}

// Samples returns the cached samples from the last Refresh.
func (f *Frontend) Samples() []Sample { return f.samples }

// Enumerate returns a restartable sequence of (timestamp, sample) pairs,
// with timestamps in seconds derived from the sample period. If no
// samples are cached yet it refreshes first; a capture that decodes to
// zero samples is ErrNoSamples.
func (f *Frontend) Enumerate() (iter.Seq2[float64, Sample], error) {
	if f.samples == nil {
		if err := f.Refresh(); err != nil {
			return nil, err
		}
	}
	if len(f.samples) == 0 {
		return nil, ErrNoSamples
	}

	period := f.params.SamplePeriod()
	samples := f.samples
	return func(yield func(float64, Sample) bool) {
		for i, sample := range samples {
			if !yield(float64(i)*period, sample) {
				return
			}
		}
	}, nil
}

// PrintSamples writes one line per sample to w, for quick CLI debugging.
func (f *Frontend) PrintSamples(w io.Writer) error {
	seq, err := f.Enumerate()
	if err != nil {
		return err
	}

	for timestamp, sample := range seq {
		fmt.Fprintf(w, "%012.6fus:", timestamp*1e6)
		for _, sig := range f.params.Signals {
			fmt.Fprintf(w, " %s=0x%x", sig.Name, sample[sig.Name])
		}
		fmt.Fprintln(w)
	}
	return nil
}

// beWord decodes up to eight big-endian bytes.
func beWord(b []byte) uint64 {
	if len(b) >= 8 {
		return binary.BigEndian.Uint64(b[len(b)-8:])
	}
	var w uint64
	for _, c := range b {
		w = w<<8 | uint64(c)
	}
	return w
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// NormalizeWireOrder converts raw bytes received least-significant-byte
// first (as the serial-line transport transmits them) into the canonical
// big-endian word layout the parser expects. Trailing bytes that do not
// fill a whole word are left untouched.
func NormalizeWireOrder(raw []byte, wordBytes int) {
	if wordBytes <= 1 {
		return
	}
	for i := 0; i+wordBytes <= len(raw); i += wordBytes {
		word := raw[i : i+wordBytes]
		for l, r := 0, wordBytes-1; l < r; l, r = l+1, r-1 {
			word[l], word[r] = word[r], word[l]
		}
	}
}
