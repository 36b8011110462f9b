package main

import (
	"fmt"

	"sigscope/internal/config"
	"sigscope/internal/frontend"
	"sigscope/internal/ila"
	"sigscope/internal/logging"
	"sigscope/internal/snapshot"
)

// driver runs one simulated capture session: it stimulates the analyzer
// tick by tick, then plays the configured transport's master role to
// read the buffer back out.
type driver struct {
	cfg         *config.Config
	stim        stimulus
	triggerAt   int
	enableEvery int
}

// engineConfig translates the [capture] section into an analyzer config.
func (d *driver) engineConfig() (ila.Config, error) {
	sigs := make([]ila.Signal, len(d.cfg.Capture.Signals))
	for i, s := range d.cfg.Capture.Signals {
		sigs[i] = ila.Signal{Name: s.Name, Width: s.Width}
	}
	set, err := ila.NewSignalSet(sigs...)
	if err != nil {
		return ila.Config{}, err
	}

	return ila.Config{
		Signals:    set,
		Depth:      d.cfg.Capture.Depth,
		Pretrigger: d.cfg.Capture.Pretrigger,
		SampleRate: d.cfg.Capture.SampleRateHz,
		WithEnable: d.cfg.Capture.WithEnable,
	}, nil
}

// build constructs the configured transport without running a capture.
func (d *driver) build() (snapshot.Source, error) {
	engCfg, err := d.engineConfig()
	if err != nil {
		return nil, err
	}

	switch d.cfg.Transport.Kind {
	case config.TransportSPI:
		return ila.NewSPITransport(engCfg, d.spiConfig())
	case config.TransportStream:
		return ila.NewStreamTransport(engCfg, ila.StreamConfig{
			CrossDomain: d.cfg.Transport.Stream.CrossDomain,
		})
	case config.TransportUART:
		return ila.NewUARTTransport(engCfg, ila.UARTConfig{
			Divisor: d.cfg.Transport.UART.Divisor,
		})
	default:
		return nil, fmt.Errorf("unknown transport kind %q", d.cfg.Transport.Kind)
	}
}

func (d *driver) spiConfig() ila.SPIConfig {
	spiCfg := ila.SPIConfig{CSIdlesHigh: d.cfg.Transport.SPI.CSIdlesHigh}
	if d.cfg.Transport.SPI.ClockPolarity {
		spiCfg.ClockPolarity = 1
	}
	if d.cfg.Transport.SPI.ClockPhase {
		spiCfg.ClockPhase = 1
	}
	return spiCfg
}

// capture runs one full trigger-to-readout session and returns the
// transport (for the parameter snapshot) plus the capture in the
// canonical big-endian byte layout.
func (d *driver) capture() (snapshot.Source, []byte, error) {
	engCfg, err := d.engineConfig()
	if err != nil {
		return nil, nil, err
	}

	switch d.cfg.Transport.Kind {
	case config.TransportSPI:
		return d.captureSPI(engCfg)
	case config.TransportStream:
		return d.captureStream(engCfg)
	case config.TransportUART:
		return d.captureUART(engCfg)
	default:
		return nil, nil, fmt.Errorf("unknown transport kind %q", d.cfg.Transport.Kind)
	}
}

// captureInput builds the analyzer inputs for one stimulus tick.
func (d *driver) captureInput(tick, width int) ila.Input {
	return ila.Input{
		Trigger: tick == d.triggerAt,
		Enable:  tick%d.enableEvery == 0,
		Word:    d.stim(tick, width),
	}
}

// tickLimit bounds the stimulus phase so a wedged capture fails instead
// of spinning.
func (d *driver) tickLimit() int {
	c := d.cfg.Capture
	return d.triggerAt + (c.Depth+c.Pretrigger+4)*d.enableEvery + 16
}

func (d *driver) captureSPI(engCfg ila.Config) (snapshot.Source, []byte, error) {
	tr, err := ila.NewSPITransport(engCfg, d.spiConfig())
	if err != nil {
		return nil, nil, err
	}

	// Bus lines at rest: clock at its idle polarity, select released.
	spiCfg := d.spiConfig()
	idleSCK := spiCfg.ClockPolarity == 1
	deselect := spiCfg.CSIdlesHigh
	selected := !spiCfg.CSIdlesHigh

	width := tr.SampleWidth()
	complete := false
	for tick := 0; tick < d.tickLimit(); tick++ {
		out := tr.Tick(ila.SPIInput{
			Capture: d.captureInput(tick, width),
			SCK:     idleSCK,
			CS:      deselect,
		})
		if out.Complete {
			complete = true
			break
		}
	}
	if !complete {
		return nil, nil, fmt.Errorf("capture did not complete within %d ticks", d.tickLimit())
	}
	logging.Debug("capture complete, reading out", "transport", "spi")

	// Master role: one transaction walks the whole buffer. A tick with
	// select asserted and the clock idle frames the transaction, then
	// each bit is one leading and one trailing clock tick.
	idle := ila.SPIInput{SCK: idleSCK, CS: deselect}
	tr.Tick(ila.SPIInput{SCK: idleSCK, CS: selected})

	words := make([]uint64, tr.SampleDepth())
	for w := range words {
		var word uint64
		for bit := 0; bit < tr.BitsPerSample(); bit++ {
			leading := tr.Tick(ila.SPIInput{SCK: !idleSCK, CS: selected})
			trailing := tr.Tick(ila.SPIInput{SCK: idleSCK, CS: selected})

			sdo := leading.SDO
			if spiCfg.ClockPhase == 1 {
				sdo = trailing.SDO
			}
			word <<= 1
			if sdo {
				word |= 1
			}
		}
		words[w] = word
	}
	tr.Tick(idle)

	return tr, wordsToBytes(words, tr.BytesPerSample()), nil
}

func (d *driver) captureStream(engCfg ila.Config) (snapshot.Source, []byte, error) {
	tr, err := ila.NewStreamTransport(engCfg, ila.StreamConfig{
		CrossDomain: d.cfg.Transport.Stream.CrossDomain,
	})
	if err != nil {
		return nil, nil, err
	}

	width := tr.SampleWidth()
	depth := tr.SampleDepth()
	limit := d.tickLimit() + depth + 16

	var words []uint64
	for tick := 0; tick < limit && len(words) < depth; tick++ {
		out, _ := tr.Tick(ila.StreamInput{
			Capture: d.captureInput(tick, width),
			Ready:   true,
		})
		if tr.CrossDomain() {
			if o := tr.TickOutput(true); o.Valid {
				words = append(words, o.Payload)
			}
		} else if out.Valid {
			words = append(words, out.Payload)
		}
	}
	if len(words) < depth {
		return nil, nil, fmt.Errorf("stream produced %d of %d words", len(words), depth)
	}
	logging.Debug("capture complete", "transport", "stream", "words", len(words))

	return tr, wordsToBytes(words, tr.BytesPerSample()), nil
}

func (d *driver) captureUART(engCfg ila.Config) (snapshot.Source, []byte, error) {
	divisor := d.cfg.Transport.UART.Divisor
	tr, err := ila.NewUARTTransport(engCfg, ila.UARTConfig{Divisor: divisor})
	if err != nil {
		return nil, nil, err
	}

	width := tr.SampleWidth()
	wireBytes := tr.SampleDepth() * tr.BytesPerSample()

	// Sample the line for the whole capture plus every byte frame, with
	// generous slack for inter-word gaps.
	limit := d.tickLimit() + (wireBytes+4)*12*divisor

	line := make([]bool, 0, limit)
	for tick := 0; tick < limit; tick++ {
		out := tr.Tick(ila.UARTInput{Capture: d.captureInput(tick, width)})
		line = append(line, out.TX)
	}

	raw, err := decodeUARTLine(line, divisor, wireBytes)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("capture complete", "transport", "uart", "bytes", len(raw))

	// The wire carries each word least-significant byte first.
	frontend.NormalizeWireOrder(raw, tr.BytesPerSample())
	return tr, raw, nil
}

// decodeUARTLine recovers count 8N1 bytes from a tick-sampled line
// trace, sampling each bit at its center.
func decodeUARTLine(line []bool, divisor, count int) ([]byte, error) {
	bytes := make([]byte, 0, count)
	i := 0
	for len(bytes) < count {
		// Hunt for a start bit.
		for i < len(line) && line[i] {
			i++
		}
		if i+10*divisor > len(line) {
			return nil, fmt.Errorf("line trace ended after %d of %d bytes", len(bytes), count)
		}

		var b byte
		for bit := 0; bit < 8; bit++ {
			if line[i+(bit+1)*divisor+divisor/2] {
				b |= 1 << bit
			}
		}
		if !line[i+9*divisor+divisor/2] {
			return nil, fmt.Errorf("framing error at tick %d", i)
		}
		bytes = append(bytes, b)
		i += 10 * divisor
	}
	return bytes, nil
}

// wordsToBytes renders readout words in the canonical big-endian layout
// the host frontend parses.
func wordsToBytes(words []uint64, bytesPerSample int) []byte {
	raw := make([]byte, 0, len(words)*bytesPerSample)
	for _, w := range words {
		for i := bytesPerSample - 1; i >= 0; i-- {
			raw = append(raw, byte(w>>(8*i)))
		}
	}
	return raw
}
