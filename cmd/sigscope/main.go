// sigscope - host-side frontend for captured signal traces
//
//	sigscope export        Export a capture as a VCD waveform
//	sigscope print         Print decoded samples to stdout
//	sigscope view          Open a capture in GTKWave
//	sigscope fetch         Fetch a capture over the serial port
//	sigscope watch         Re-export whenever the capture dump changes
//	sigscope archive       Archive a capture in the session store
//	sigscope sessions      List archived sessions
//	sigscope show          Export an archived session
//	sigscope delete        Delete an archived session
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"sigscope/internal/config"
	"sigscope/internal/frontend"
	"sigscope/internal/logging"
	"sigscope/internal/snapshot"
	"sigscope/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "export":
		cmdExport()
	case "print":
		cmdPrint()
	case "view":
		cmdView()
	case "fetch":
		cmdFetch()
	case "watch":
		cmdWatch()
	case "archive":
		cmdArchive()
	case "sessions":
		cmdSessions()
	case "show":
		cmdShow()
	case "delete":
		cmdDelete()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`sigscope - signal capture frontend

USAGE:
    sigscope <command> [options]

COMMANDS:
    export      Export a capture as a VCD waveform (with GTKWave layout)
    print       Print decoded samples to stdout
    view        Open a capture in GTKWave
    fetch       Fetch a capture over the serial port and store it
    watch       Watch the capture dump and re-export on every change
    archive     Archive a capture in the session store
    sessions    List archived sessions
    show        Export an archived session as a VCD waveform
    delete      Delete an archived session
    help        Show this help message

TYPICAL WORKFLOW:
    1. sigscope-capture run             # produce capture.bin + capture.json
    2. sigscope print                   # sanity-check the decoded samples
    3. sigscope view                    # inspect the waveform interactively
    4. sigscope archive -label bringup  # keep the capture for later

Paths default to the [output] section of the config file and can be
overridden per command with -raw, -snapshot, and friends.`)
}

// commonFlags carries the flags shared by every subcommand.
type commonFlags struct {
	configPath string
	snapshot   string
	raw        string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "config file path")
	fs.StringVar(&c.snapshot, "snapshot", "", "parameter snapshot path")
	fs.StringVar(&c.raw, "raw", "", "raw capture dump path")
	return c
}

// resolve loads the config, applies it to logging, and fills unset
// flag values from the [output] section.
func (c *commonFlags) resolve() *config.Config {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	setupLogging(cfg)

	if c.snapshot == "" {
		c.snapshot = cfg.Output.SnapshotPath
	}
	if c.raw == "" {
		c.raw = cfg.Output.RawPath
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		format = logging.FormatText
	}

	logger, err := logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "sigscope",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging setup failed: %v\n", err)
		return
	}
	logging.SetDefault(logger)
}

// loadFrontend builds a file-backed frontend from the resolved paths.
func (c *commonFlags) loadFrontend() *frontend.Frontend {
	params, err := snapshot.Load(c.snapshot)
	if err != nil {
		fatal("load snapshot: %v", err)
	}
	return frontend.New(params, frontend.FileReader{Path: c.raw})
}

func cmdExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	common := addCommonFlags(fs)
	out := fs.String("o", "", "output VCD path (- for stdout)")
	gtkw := fs.String("gtkw", "", "GTKWave layout path (empty skips it)")
	clock := fs.Bool("clock", true, "add a synthetic sample-clock trace")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *out == "" {
		*out = cfg.Output.VCDPath
	}
	if *gtkw == "" && *out != "-" {
		*gtkw = cfg.Output.GTKWPath
	}

	f := common.loadFrontend()
	opts := frontend.VCDOptions{GTKWPath: *gtkw, AddClock: *clock}
	if err := f.EmitVCD(*out, opts); err != nil {
		fatal("export: %v", err)
	}
	if *out != "-" {
		fmt.Printf("Wrote %s\n", *out)
	}
}

func cmdPrint() {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(os.Args[2:])

	common.resolve()
	f := common.loadFrontend()
	if err := f.PrintSamples(os.Stdout); err != nil {
		fatal("print: %v", err)
	}
}

func cmdView() {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(os.Args[2:])

	common.resolve()
	f := common.loadFrontend()
	if err := f.InteractiveDisplay(); err != nil {
		fatal("view: %v", err)
	}
}

func cmdFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	common := addCommonFlags(fs)
	device := fs.String("device", "", "serial port device")
	baud := fs.Int("baud", 0, "serial baud rate")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *device == "" {
		*device = cfg.Serial.Device
	}
	if *baud == 0 {
		*baud = cfg.Serial.Baud
	}

	params, err := snapshot.Load(common.snapshot)
	if err != nil {
		fatal("load snapshot: %v", err)
	}

	raw, err := fetchSerial(*device, *baud, params)
	if err != nil {
		fatal("fetch: %v", err)
	}

	if err := os.WriteFile(common.raw, raw, 0644); err != nil {
		fatal("write dump: %v", err)
	}
	fmt.Printf("Fetched %d bytes to %s\n", len(raw), common.raw)
}

func cmdWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := addCommonFlags(fs)
	out := fs.String("o", "", "output VCD path")
	clock := fs.Bool("clock", true, "add a synthetic sample-clock trace")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *out == "" {
		*out = cfg.Output.VCDPath
	}

	f := common.loadFrontend()
	export := func() {
		if err := f.Refresh(); err != nil {
			logging.Warn("refresh failed", "error", err)
			return
		}
		opts := frontend.VCDOptions{GTKWPath: cfg.Output.GTKWPath, AddClock: *clock}
		if err := f.EmitVCD(*out, opts); err != nil {
			logging.Warn("export failed", "error", err)
			return
		}
		logging.Info("re-exported capture", "vcd", *out)
	}
	export()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fatal("create watcher: %v", err)
	}
	defer watcher.Close()

	// Watch the directory: writers typically replace the dump file.
	if err := watcher.Add(filepath.Dir(common.raw)); err != nil {
		fatal("watch %s: %v", filepath.Dir(common.raw), err)
	}

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", common.raw)

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(common.raw) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, export)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("watch error", "error", err)
		}
	}
}

func cmdArchive() {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	common := addCommonFlags(fs)
	db := fs.String("db", "", "session database path")
	label := fs.String("label", "", "session label")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *db == "" {
		*db = cfg.Storage.Path
	}
	if *label == "" {
		*label = time.Now().Format("2006-01-02 15:04:05")
	}

	params, err := snapshot.Load(common.snapshot)
	if err != nil {
		fatal("load snapshot: %v", err)
	}
	raw, err := os.ReadFile(common.raw)
	if err != nil {
		fatal("read dump: %v", err)
	}

	s, err := store.Open(*db)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer s.Close()

	id, err := s.SaveSession(*label, params, raw)
	if err != nil {
		fatal("archive: %v", err)
	}
	fmt.Printf("Archived session %d (%q, %d bytes)\n", id, *label, len(raw))
}

func cmdSessions() {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	common := addCommonFlags(fs)
	db := fs.String("db", "", "session database path")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *db == "" {
		*db = cfg.Storage.Path
	}

	s, err := store.Open(*db)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer s.Close()

	infos, err := s.Sessions()
	if err != nil {
		fatal("list sessions: %v", err)
	}
	if len(infos) == 0 {
		fmt.Println("No archived sessions.")
		return
	}

	fmt.Printf("%-6s %-20s %-10s %s\n", "ID", "CREATED", "BYTES", "LABEL")
	for _, info := range infos {
		fmt.Printf("%-6d %-20s %-10d %s\n",
			info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"),
			info.RawBytes, info.Label)
	}
}

func cmdShow() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	common := addCommonFlags(fs)
	db := fs.String("db", "", "session database path")
	id := fs.Int64("id", 0, "session id")
	out := fs.String("o", "", "output VCD path (- for stdout, empty prints samples)")
	clock := fs.Bool("clock", true, "add a synthetic sample-clock trace")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *db == "" {
		*db = cfg.Storage.Path
	}
	if *id == 0 {
		fatal("show: -id is required")
	}

	s, err := store.Open(*db)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer s.Close()

	sess, err := s.Session(*id)
	if err != nil {
		fatal("show: %v", err)
	}

	f := frontend.New(sess.Params, memReader(sess.Raw))
	if *out == "" {
		if err := f.PrintSamples(os.Stdout); err != nil {
			fatal("show: %v", err)
		}
		return
	}

	opts := frontend.VCDOptions{AddClock: *clock}
	if err := f.EmitVCD(*out, opts); err != nil {
		fatal("show: %v", err)
	}
	if *out != "-" {
		fmt.Printf("Wrote %s\n", *out)
	}
}

func cmdDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	common := addCommonFlags(fs)
	db := fs.String("db", "", "session database path")
	id := fs.Int64("id", 0, "session id")
	fs.Parse(os.Args[2:])

	cfg := common.resolve()
	if *db == "" {
		*db = cfg.Storage.Path
	}
	if *id == 0 {
		fatal("delete: -id is required")
	}

	s, err := store.Open(*db)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer s.Close()

	if err := s.DeleteSession(*id); err != nil {
		fatal("delete: %v", err)
	}
	fmt.Printf("Deleted session %d\n", *id)
}

// memReader adapts an in-memory capture to the frontend's reader.
type memReader []byte

func (r memReader) ReadRaw() ([]byte, error) { return r, nil }

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
