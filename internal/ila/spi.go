package ila

// SPIConfig selects the electrical flavor of the SPI readout port.
type SPIConfig struct {
	// ClockPolarity is CPOL: the idle level of SCK (0 or 1).
	ClockPolarity int

	// ClockPhase is CPHA. With phase 0 the first bit is valid at select
	// time and the shifter advances on trailing edges; with phase 1 bits
	// are presented on leading edges.
	ClockPhase int

	// CSIdlesHigh inverts the chip select, so the transaction is framed
	// by CS low. Lets two endpoints share one select line with opposite
	// polarities.
	CSIdlesHigh bool
}

// SPIInput carries one tick of inputs for the SPI-wrapped analyzer: the
// capture-side inputs plus the serial bus lines driven by the master.
type SPIInput struct {
	Capture Input
	SCK     bool
	CS      bool
}

// SPIOutput is the per-tick output of the SPI-wrapped analyzer.
type SPIOutput struct {
	Status
	SDO bool
}

// SPITransport exposes an Analyzer's capture buffer over a chip-select
// framed word shifter.
//
// Each transaction walks the buffer from address 0: the word presented at
// select time is sample 0, the rising edge of chip select latches sample 1
// as the next index, and every accepted word advances the index by one.
// De-asserting chip select resets the index. The transport holds no buffer
// of its own; it reads the analyzer's combinational readback port live.
type SPITransport struct {
	eng *Analyzer
	dev *spiDevice
	cfg SPIConfig

	bitsPerSample  int
	bytesPerSample int

	index  int
	addr   int
	prevCS bool
}

// NewSPITransport builds the analyzer described by cfg and wraps it in an
// SPI readout port.
//
// The shift word size is the sample width rounded up to a whole number of
// 32-bit words and then to a power of two, so transfers land on boundaries
// convenient for word-oriented SPI engines.
func NewSPITransport(cfg Config, spiCfg SPIConfig) (*SPITransport, error) {
	eng, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	words := (eng.SampleWidth() + 31) / 32
	bits := nextPow2(words * 32)

	return &SPITransport{
		eng:            eng,
		dev:            newSPIDevice(bits, spiCfg.ClockPolarity, spiCfg.ClockPhase),
		cfg:            spiCfg,
		bitsPerSample:  bits,
		bytesPerSample: bits / 8,
	}, nil
}

// Tick advances the transport and its analyzer by one clock cycle.
func (t *SPITransport) Tick(in SPIInput) SPIOutput {
	cs := in.CS
	if t.cfg.CSIdlesHigh {
		cs = !cs
	}

	st := t.eng.Tick(in.Capture)

	// The shifter always sees the currently addressed sample.
	devOut := t.dev.Tick(spiDeviceInput{
		SCK:    in.SCK,
		CS:     cs,
		CSRose: cs && !t.prevCS,
		WordIn: t.eng.Sample(t.addr),
	})

	// The readback address presented to the analyzer lags the
	// transaction index by one cycle, matching a registered address port.
	oldIndex := t.index
	if cs {
		if !t.prevCS {
			t.index = 1
		} else if devOut.WordAccepted {
			t.index = (t.index + 1) % t.eng.SampleDepth()
		}
	} else {
		t.index = 0
	}
	t.addr = oldIndex % t.eng.SampleDepth()
	t.prevCS = cs

	return SPIOutput{Status: st, SDO: devOut.SDO}
}

// Analyzer returns the wrapped capture engine.
func (t *SPITransport) Analyzer() *Analyzer { return t.eng }

// Signals returns the monitored signals in declaration order.
func (t *SPITransport) Signals() []Signal { return t.eng.Signals() }

// SampleWidth returns the concatenated sample width in bits.
func (t *SPITransport) SampleWidth() int { return t.eng.SampleWidth() }

// SampleDepth returns the capture buffer depth in samples.
func (t *SPITransport) SampleDepth() int { return t.eng.SampleDepth() }

// SampleRate returns the nominal sample rate in Hz.
func (t *SPITransport) SampleRate() float64 { return t.eng.SampleRate() }

// BitsPerSample returns the shift word size in bits.
func (t *SPITransport) BitsPerSample() int { return t.bitsPerSample }

// BytesPerSample returns the shift word size in bytes.
func (t *SPITransport) BytesPerSample() int { return t.bytesPerSample }

// spiDeviceInput is one tick of bus state for the shifter primitive.
type spiDeviceInput struct {
	SCK    bool
	CS     bool
	CSRose bool
	WordIn uint64
}

type spiDeviceOutput struct {
	SDO          bool
	WordAccepted bool
}

// spiDevice is a select-gated, output-only word shifter. Words are shifted
// out most-significant-bit first; a new word is latched from WordIn at
// select time and at every word boundary, and WordAccepted strobes for one
// tick when a full word has been scanned out.
//
// SCK is treated as an ordinary synchronous input: edges are detected by
// comparing against the previous tick's level, so SCK must toggle at most
// once per tick.
type spiDevice struct {
	wordSize int
	cpol     int
	cpha     int

	prevSCK bool
	shift   uint64
	pos     int
	sdo     bool
}

func newSPIDevice(wordSize, cpol, cpha int) *spiDevice {
	return &spiDevice{
		wordSize: wordSize,
		cpol:     cpol,
		cpha:     cpha,
		prevSCK:  cpol == 1,
	}
}

func (d *spiDevice) Tick(in spiDeviceInput) spiDeviceOutput {
	idle := d.cpol == 1
	leading := in.SCK != d.prevSCK && d.prevSCK == idle
	trailing := in.SCK != d.prevSCK && in.SCK == idle
	d.prevSCK = in.SCK

	var out spiDeviceOutput
	if !in.CS {
		d.pos = 0
		out.SDO = d.sdo
		return out
	}

	if in.CSRose {
		d.shift = in.WordIn
		d.pos = 0
		if d.cpha == 0 {
			// Phase 0: first bit valid before the first leading edge.
			d.sdo = d.bit(0)
		}
	}

	switch d.cpha {
	case 0:
		if trailing {
			d.pos++
			if d.pos == d.wordSize {
				out.WordAccepted = true
				d.shift = in.WordIn
				d.pos = 0
			}
			d.sdo = d.bit(d.pos)
		}
	default:
		if leading {
			d.sdo = d.bit(d.pos)
			d.pos++
		}
		if trailing && d.pos == d.wordSize {
			out.WordAccepted = true
			d.shift = in.WordIn
			d.pos = 0
		}
	}

	out.SDO = d.sdo
	return out
}

// bit returns bit i of the current word, counting from the MSB.
func (d *spiDevice) bit(i int) bool {
	if i >= d.wordSize {
		return false
	}
	return d.shift>>(d.wordSize-1-i)&1 == 1
}

// nextPow2 rounds n up to the next power of two.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
