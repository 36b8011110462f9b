package frontend

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"sigscope/internal/logging"
)

// viewerCommand is the external waveform viewer invoked by
// InteractiveDisplay.
const viewerCommand = "gtkwave"

// InteractiveDisplay writes the capture to temporary waveform and layout
// files, opens them in the external viewer, and removes the temporary
// files afterwards whether or not the viewer succeeded.
func (f *Frontend) InteractiveDisplay() error {
	vcdPath := tempName(".vcd")
	gtkwPath := tempName(".gtkw")
	defer func() {
		os.Remove(vcdPath)
		os.Remove(gtkwPath)
	}()

	if err := f.EmitVCD(vcdPath, VCDOptions{GTKWPath: gtkwPath, AddClock: true}); err != nil {
		return err
	}

	logging.Info("launching viewer", "viewer", viewerCommand, "vcd", vcdPath)

	cmd := exec.Command(viewerCommand, "-f", vcdPath, "-a", gtkwPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", viewerCommand, err)
	}
	return nil
}

// tempName picks an unpredictable filename in the temp directory; some
// platforms sandbox files created through the usual temp-file APIs away
// from GUI applications.
func tempName(ext string) string {
	var b [24]byte
	rand.Read(b[:])
	return filepath.Join(os.TempDir(), hex.EncodeToString(b[:])+ext)
}
