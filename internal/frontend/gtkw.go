package frontend

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Layout defaults: start zoomed well out for the big picture, and leave
// enough room in the name pane for signal values to stay readable.
const (
	gtkwZoom         = -11.0
	gtkwSignalsWidth = 500
)

// EmitGTKW writes a GTKWave save file at path that opens the VCD at
// dumpPath with one trace per signal in declared order, the synthetic
// clock first when present.
func (f *Frontend) EmitGTKW(path, dumpPath string, addClock bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create layout: %w", err)
	}
	defer file.Close()

	abs, err := filepath.Abs(dumpPath)
	if err != nil {
		abs = dumpPath
	}

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "[*]\n[*] sigscope capture\n[*]\n")
	fmt.Fprintf(w, "[dumpfile] \"%s\"\n", abs)
	fmt.Fprintf(w, "[sst_expanded] 0\n")
	fmt.Fprintf(w, "[signals_width] %d\n", gtkwSignalsWidth)
	fmt.Fprintf(w, "*%f 0%s\n", gtkwZoom, strings.Repeat(" -1", 26))

	if addClock {
		fmt.Fprintf(w, "%s.%s\n", vcdScope, vcdClockName)
	}
	for _, sig := range f.params.Signals {
		fmt.Fprintf(w, "%s.%s\n", vcdScope, sig.Name)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
