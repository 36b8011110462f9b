package ila

// StreamWord is one word on the stream interface: the payload plus the
// burst boundary markers.
type StreamWord struct {
	Payload uint64
	First   bool
	Last    bool
}

// StreamOutput is the producer half of the stream handshake for one tick.
// The word is transferred on ticks where both Valid and the consumer's
// Ready are high.
type StreamOutput struct {
	Valid bool
	StreamWord
}

// StreamInput carries one tick of inputs for the stream-wrapped analyzer.
type StreamInput struct {
	Capture Input

	// Ready is the consumer's back-pressure signal. With an output
	// domain configured it is ignored here; the output domain applies
	// back-pressure through TickOutput instead.
	Ready bool
}

// StreamTransport exposes an Analyzer's capture buffer as one
// depth-long burst of stream words per trigger.
//
// After the analyzer completes a capture, the transport emits every
// buffered sample in address order with First marking the initial word
// and Last the final one, honoring consumer back-pressure, then returns
// to idle where the next trigger is accepted.
//
// With CrossDomain set, words cross into a second timing domain through
// a bounded lock-free queue: the capture domain runs through Tick, the
// output domain through TickOutput, and the two may be driven from
// separate goroutines. The crossing preserves word content and order.
type StreamTransport struct {
	eng *Analyzer

	bitsPerSample  int
	bytesPerSample int

	state streamState
	index int
	first bool

	cdc *asyncQueue
}

type streamState int

const (
	streamIdle streamState = iota
	streamSampling
	streamSending
)

// StreamConfig holds the transport-specific settings.
type StreamConfig struct {
	// CrossDomain routes the output through the domain-crossing queue,
	// for consumers clocked independently of the capture domain.
	CrossDomain bool
}

// NewStreamTransport builds the analyzer described by cfg and wraps it in
// a stream readout port. The stream word size is the sample width rounded
// up to a power of two, with a one byte minimum.
func NewStreamTransport(cfg Config, streamCfg StreamConfig) (*StreamTransport, error) {
	eng, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	bits := nextPow2(eng.SampleWidth())
	if bits < 8 {
		bits = 8
	}

	t := &StreamTransport{
		eng:            eng,
		bitsPerSample:  bits,
		bytesPerSample: bits / 8,
	}
	if streamCfg.CrossDomain {
		t.cdc = &asyncQueue{}
	}
	return t, nil
}

// Tick advances the capture domain by one clock cycle. With no output
// domain configured the returned StreamOutput is the external stream;
// otherwise it reflects the internal, pre-crossing stream and the
// external side must be driven through TickOutput.
func (t *StreamTransport) Tick(in StreamInput) (StreamOutput, Status) {
	engIn := in.Capture
	if t.state != streamIdle {
		// Block triggers mid-session so a capture and its readout
		// cannot race.
		engIn.Trigger = false
	}
	st := t.eng.Tick(engIn)

	var out StreamOutput
	switch t.state {
	case streamIdle:
		if engIn.Trigger {
			t.state = streamSampling
		}

	case streamSampling:
		if st.Complete {
			t.index = 0
			t.first = true
			t.state = streamSending
		}

	case streamSending:
		out.Valid = true
		out.Payload = t.eng.Sample(t.index)
		out.First = t.first
		out.Last = t.index == t.eng.SampleDepth()-1

		ready := in.Ready
		if t.cdc != nil {
			ready = t.cdc.TryPush(out.StreamWord)
		}
		if ready {
			if out.Last {
				t.state = streamIdle
			} else {
				t.index++
				t.first = false
			}
		}
	}
	return out, st
}

// TickOutput advances the output domain by one clock cycle and returns
// the external stream state. ready is the consumer's back-pressure
// signal. Only valid when the transport was built with CrossDomain.
func (t *StreamTransport) TickOutput(ready bool) StreamOutput {
	w, ok := t.cdc.Peek()
	out := StreamOutput{Valid: ok, StreamWord: w}
	if ok && ready {
		t.cdc.Pop()
	}
	return out
}

// CrossDomain reports whether the output side runs in its own domain.
func (t *StreamTransport) CrossDomain() bool { return t.cdc != nil }

// Analyzer returns the wrapped capture engine.
func (t *StreamTransport) Analyzer() *Analyzer { return t.eng }

// Signals returns the monitored signals in declaration order.
func (t *StreamTransport) Signals() []Signal { return t.eng.Signals() }

// SampleWidth returns the concatenated sample width in bits.
func (t *StreamTransport) SampleWidth() int { return t.eng.SampleWidth() }

// SampleDepth returns the capture buffer depth in samples.
func (t *StreamTransport) SampleDepth() int { return t.eng.SampleDepth() }

// SampleRate returns the nominal sample rate in Hz.
func (t *StreamTransport) SampleRate() float64 { return t.eng.SampleRate() }

// BitsPerSample returns the stream word size in bits.
func (t *StreamTransport) BitsPerSample() int { return t.bitsPerSample }

// BytesPerSample returns the stream word size in bytes.
func (t *StreamTransport) BytesPerSample() int { return t.bytesPerSample }
