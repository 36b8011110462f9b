package frontend

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"sigscope/internal/logging"
)

// vcdScope is the module name the capture's variables are declared under,
// in both the VCD and the companion layout file.
const vcdScope = "ila"

// vcdClockName is the synthetic sample-clock variable.
const vcdClockName = "ila_clock"

// VCDOptions configures waveform emission.
type VCDOptions struct {
	// GTKWPath, when set, also writes a GTKWave layout file referencing
	// the emitted VCD.
	GTKWPath string

	// AddClock adds a replica of the sample clock, toggling every half
	// sample period, to make change points easier to see.
	AddClock bool
}

// EmitVCD writes the capture as a value-change-dump file at path, or to
// stdout when path is "-". Value changes are emitted in non-decreasing
// time order on a nanosecond timescale.
func (f *Frontend) EmitVCD(path string, opts VCDOptions) error {
	seq, err := f.Enumerate()
	if err != nil {
		return err
	}

	var out io.Writer
	if path == "-" {
		out = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create vcd: %w", err)
		}
		defer file.Close()
		out = file
	}

	w := newVCDWriter(out)
	w.header()

	var clockID string
	if opts.AddClock {
		clockID = w.declare(vcdClockName, 1)
	}
	ids := make(map[string]string, len(f.params.Signals))
	for _, sig := range f.params.Signals {
		ids[sig.Name] = w.declare(sig.Name, sig.Width)
	}
	w.endDefinitions()

	// Half the sample period, in nanoseconds.
	halfPeriod := f.params.SamplePeriod() / 2 / 1e-9

	clockValue := uint64(1)
	clockTime := 0.0
	prev := make(map[string]uint64, len(f.params.Signals))
	first := true

	for timestamp, sample := range seq {
		timeNs := timestamp / 1e-9

		if first {
			// Initial values for every variable at time zero.
			w.time(0)
			w.dumpvarsBegin()
			if opts.AddClock {
				w.change(clockID, clockValue)
				clockValue ^= 1
				clockTime += halfPeriod
			}
			for _, sig := range f.params.Signals {
				w.change(ids[sig.Name], sample[sig.Name])
				prev[sig.Name] = sample[sig.Name]
			}
			w.dumpvarsEnd()
			first = false
			continue
		}

		// Catch the clock replica up to this sample.
		if opts.AddClock {
			for clockTime < timeNs {
				w.time(round(clockTime))
				w.change(clockID, clockValue)
				clockValue ^= 1
				clockTime += halfPeriod
			}
		}

		for _, sig := range f.params.Signals {
			if value := sample[sig.Name]; value != prev[sig.Name] {
				w.time(round(timeNs))
				w.change(ids[sig.Name], value)
				prev[sig.Name] = value
			}
		}
	}

	if err := w.flush(); err != nil {
		return fmt.Errorf("write vcd: %w", err)
	}

	logging.Debug("emitted vcd", "path", path, "samples", len(f.samples))

	if opts.GTKWPath != "" {
		if path == "-" {
			return fmt.Errorf("frontend: cannot reference a stdout vcd from a layout file")
		}
		return f.EmitGTKW(opts.GTKWPath, path, opts.AddClock)
	}
	return nil
}

// vcdWriter emits VCD syntax, coalescing events that share a timestamp
// under a single time marker and keeping markers monotonic.
type vcdWriter struct {
	w        *bufio.Writer
	nextID   int
	lastTime uint64
	hasTime  bool
}

func newVCDWriter(out io.Writer) *vcdWriter {
	return &vcdWriter{w: bufio.NewWriter(out)}
}

func (w *vcdWriter) header() {
	fmt.Fprintf(w.w, "$date %s $end\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w.w, "$version sigscope $end\n")
	fmt.Fprintf(w.w, "$timescale 1 ns $end\n")
	fmt.Fprintf(w.w, "$scope module %s $end\n", vcdScope)
}

// declare registers a variable and returns its identifier code.
func (w *vcdWriter) declare(name string, width int) string {
	id := idCode(w.nextID)
	w.nextID++
	fmt.Fprintf(w.w, "$var integer %d %s %s $end\n", width, id, name)
	return id
}

func (w *vcdWriter) endDefinitions() {
	fmt.Fprintf(w.w, "$upscope $end\n")
	fmt.Fprintf(w.w, "$enddefinitions $end\n")
}

func (w *vcdWriter) dumpvarsBegin() { fmt.Fprintf(w.w, "$dumpvars\n") }
func (w *vcdWriter) dumpvarsEnd()   { fmt.Fprintf(w.w, "$end\n") }

// time emits a timestamp marker, clamped to be non-decreasing and
// coalesced with an identical previous marker.
func (w *vcdWriter) time(t uint64) {
	if w.hasTime {
		if t < w.lastTime {
			t = w.lastTime
		}
		if t == w.lastTime {
			return
		}
	}
	fmt.Fprintf(w.w, "#%d\n", t)
	w.lastTime = t
	w.hasTime = true
}

func (w *vcdWriter) change(id string, value uint64) {
	fmt.Fprintf(w.w, "b%s %s\n", strconv.FormatUint(value, 2), id)
}

func (w *vcdWriter) flush() error { return w.w.Flush() }

// idCode converts an index to a short printable VCD identifier.
func idCode(i int) string {
	const base = 94 // printable ASCII, '!' through '~'
	code := []byte{}
	for {
		code = append(code, byte('!'+i%base))
		i /= base
		if i == 0 {
			break
		}
		i--
	}
	return string(code)
}

func round(f float64) uint64 {
	return uint64(math.Round(f))
}
