package ila

import (
	"errors"
	"fmt"
)

// ErrDivisor reports an unusable bit-period divisor.
var ErrDivisor = errors.New("ila: uart divisor must be at least 1")

// UARTConfig holds the serial-line transport settings.
type UARTConfig struct {
	// Divisor is the number of clock ticks per bit period.
	Divisor int

	// Stream configures the wrapped stream transport.
	Stream StreamConfig
}

// UARTInput carries one tick of capture-side inputs for the serial-line
// wrapped analyzer.
type UARTInput struct {
	Capture Input
}

// UARTOutput is the per-tick output of the serial-line wrapped analyzer.
type UARTOutput struct {
	Status
	TX bool
}

// UARTTransport re-serializes a StreamTransport's output words onto a
// byte-serial line. Each accepted word is broken into BytesPerSample
// individual 8N1 byte frames, sent least-significant-byte first, with no
// framing beyond the per-byte start and stop bits.
type UARTTransport struct {
	stream *StreamTransport
	tx     *uartMultibyteTransmitter
}

// NewUARTTransport builds the analyzer described by cfg and wraps it in a
// byte-serial readout port.
func NewUARTTransport(cfg Config, uartCfg UARTConfig) (*UARTTransport, error) {
	if uartCfg.Divisor < 1 {
		return nil, fmt.Errorf("%w: %d", ErrDivisor, uartCfg.Divisor)
	}
	if uartCfg.Stream.CrossDomain {
		return nil, errors.New("ila: uart transport requires a same-domain stream")
	}

	stream, err := NewStreamTransport(cfg, uartCfg.Stream)
	if err != nil {
		return nil, err
	}

	return &UARTTransport{
		stream: stream,
		tx:     newUARTMultibyteTransmitter(stream.BytesPerSample(), uartCfg.Divisor),
	}, nil
}

// Tick advances the transport and its analyzer by one clock cycle.
func (t *UARTTransport) Tick(in UARTInput) UARTOutput {
	ready := t.tx.Ready()
	out, st := t.stream.Tick(StreamInput{Capture: in.Capture, Ready: ready})
	if out.Valid && ready {
		t.tx.Accept(out.Payload)
	}
	return UARTOutput{Status: st, TX: t.tx.Tick()}
}

// Analyzer returns the wrapped capture engine.
func (t *UARTTransport) Analyzer() *Analyzer { return t.stream.Analyzer() }

// Signals returns the monitored signals in declaration order.
func (t *UARTTransport) Signals() []Signal { return t.stream.Signals() }

// SampleWidth returns the concatenated sample width in bits.
func (t *UARTTransport) SampleWidth() int { return t.stream.SampleWidth() }

// SampleDepth returns the capture buffer depth in samples.
func (t *UARTTransport) SampleDepth() int { return t.stream.SampleDepth() }

// SampleRate returns the nominal sample rate in Hz.
func (t *UARTTransport) SampleRate() float64 { return t.stream.SampleRate() }

// BitsPerSample returns the stream word size in bits.
func (t *UARTTransport) BitsPerSample() int { return t.stream.BitsPerSample() }

// BytesPerSample returns the stream word size in bytes.
func (t *UARTTransport) BytesPerSample() int { return t.stream.BytesPerSample() }

// uartTransmitter shifts single bytes out as 8N1 frames: one low start
// bit, eight data bits least-significant first, one high stop bit, each
// held for divisor ticks. The line idles high.
type uartTransmitter struct {
	divisor int

	active   bool
	frame    uint16 // start + data + stop, LSB transmitted first
	bitsLeft int
	phase    int
	tx       bool
}

func newUARTTransmitter(divisor int) *uartTransmitter {
	return &uartTransmitter{divisor: divisor, tx: true}
}

func (u *uartTransmitter) Idle() bool { return !u.active }

// Load starts transmission of one byte. Only legal while idle.
func (u *uartTransmitter) Load(b byte) {
	u.frame = uint16(b)<<1 | 1<<9
	u.bitsLeft = 10
	u.phase = 0
	u.active = true
}

// Tick advances one clock cycle and returns the line level.
func (u *uartTransmitter) Tick() bool {
	if !u.active {
		u.tx = true
		return u.tx
	}

	u.tx = u.frame&1 == 1
	u.phase++
	if u.phase == u.divisor {
		u.phase = 0
		u.frame >>= 1
		u.bitsLeft--
		if u.bitsLeft == 0 {
			u.active = false
		}
	}
	return u.tx
}

// uartMultibyteTransmitter feeds whole stream words through a byte
// transmitter, least-significant byte first.
type uartMultibyteTransmitter struct {
	inner     *uartTransmitter
	byteWidth int

	pending   uint64
	bytesLeft int
}

func newUARTMultibyteTransmitter(byteWidth, divisor int) *uartMultibyteTransmitter {
	return &uartMultibyteTransmitter{
		inner:     newUARTTransmitter(divisor),
		byteWidth: byteWidth,
	}
}

// Ready reports whether a new word can be accepted this tick.
func (m *uartMultibyteTransmitter) Ready() bool {
	return m.bytesLeft == 0 && m.inner.Idle()
}

// Accept queues one word for transmission. Only legal while Ready.
func (m *uartMultibyteTransmitter) Accept(word uint64) {
	m.pending = word
	m.bytesLeft = m.byteWidth
}

// Tick advances one clock cycle and returns the line level.
func (m *uartMultibyteTransmitter) Tick() bool {
	if m.inner.Idle() && m.bytesLeft > 0 {
		m.inner.Load(byte(m.pending))
		m.pending >>= 8
		m.bytesLeft--
	}
	return m.inner.Tick()
}
