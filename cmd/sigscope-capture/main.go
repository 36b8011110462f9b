// sigscope-capture - drive a simulated analyzer and produce capture
// artifacts
//
//	sigscope-capture run       Run a capture and write the dump + snapshot
//	sigscope-capture params    Print the computed parameter snapshot
//
// The analyzer geometry and transport come from the config file. The
// capture is stimulated with a synthetic signal pattern, read back
// through the configured transport exactly as a hardware master would,
// and written as a raw dump in the canonical big-endian layout next to
// its parameter snapshot.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/pkg/profile"

	"sigscope/internal/config"
	"sigscope/internal/logging"
	"sigscope/internal/snapshot"
	"sigscope/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "params":
		cmdParams()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`sigscope-capture - simulated capture driver

USAGE:
    sigscope-capture <command> [options]

COMMANDS:
    run         Run one capture and write the raw dump and snapshot
    params      Print the computed parameter snapshot to stdout
    help        Show this help message

RUN OPTIONS:
    -config       config file path
    -stimulus     synthetic input pattern: counter, walk, random
    -seed         seed for the random pattern
    -trigger-at   tick on which the trigger strobes
    -enable-every with enable gating, sample every Nth tick
    -archive      also archive the capture in the session store
    -label        session label used with -archive
    -profile      write a cpu or mem profile for this run`)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	stimName := fs.String("stimulus", "counter", "stimulus pattern: counter, walk, random")
	seed := fs.Int64("seed", 1, "seed for the random pattern")
	triggerAt := fs.Int("trigger-at", 4, "tick on which the trigger strobes")
	enableEvery := fs.Int("enable-every", 1, "with enable gating, sample every Nth tick")
	archive := fs.Bool("archive", false, "also archive the capture in the session store")
	label := fs.String("label", "", "session label used with -archive")
	prof := fs.String("profile", "", "write a cpu or mem profile")
	fs.Parse(os.Args[2:])

	switch *prof {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	case "":
	default:
		fatal("unknown profile kind %q", *prof)
	}

	cfg := loadConfig(*configPath)
	if err := cfg.EnsureDirectories(); err != nil {
		fatal("%v", err)
	}

	stim, err := newStimulus(*stimName, *seed)
	if err != nil {
		fatal("%v", err)
	}
	if *enableEvery < 1 {
		fatal("enable-every must be at least 1")
	}
	drv := &driver{
		cfg:         cfg,
		stim:        stim,
		triggerAt:   *triggerAt,
		enableEvery: *enableEvery,
	}

	src, raw, err := drv.capture()
	if err != nil {
		fatal("capture: %v", err)
	}

	params := snapshot.New(src)
	if err := os.WriteFile(cfg.Output.RawPath, raw, 0644); err != nil {
		fatal("write dump: %v", err)
	}
	if err := params.Save(cfg.Output.SnapshotPath); err != nil {
		fatal("%v", err)
	}

	logging.Info("capture written",
		"raw", cfg.Output.RawPath,
		"snapshot", cfg.Output.SnapshotPath,
		"samples", params.SampleDepth,
		"bytes", len(raw))
	fmt.Printf("Captured %d samples (%d bytes) via %s\n",
		params.SampleDepth, len(raw), cfg.Transport.Kind)

	if *archive {
		s, err := store.Open(cfg.Storage.Path)
		if err != nil {
			fatal("open store: %v", err)
		}
		defer s.Close()

		id, err := s.SaveSession(*label, params, raw)
		if err != nil {
			fatal("archive: %v", err)
		}
		fmt.Printf("Archived session %d\n", id)
	}
}

func cmdParams() {
	fs := flag.NewFlagSet("params", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*configPath)
	drv := &driver{cfg: cfg}

	src, err := drv.build()
	if err != nil {
		fatal("%v", err)
	}

	doc, err := snapshot.New(src).Encode()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s\n", doc)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("%v", err)
	}
	setupLogging(cfg)
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
		Component:  "sigscope-capture",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging setup failed: %v\n", err)
		return
	}
	logging.SetDefault(logger)
}

// stimulus produces one synthetic input word per tick, already masked
// to the sample width.
type stimulus func(tick int, width int) uint64

func newStimulus(name string, seed int64) (stimulus, error) {
	switch name {
	case "counter":
		return func(tick, width int) uint64 {
			return uint64(tick) & widthMask(width)
		}, nil
	case "walk":
		return func(tick, width int) uint64 {
			return 1 << (tick % width)
		}, nil
	case "random":
		rng := rand.New(rand.NewSource(seed))
		return func(tick, width int) uint64 {
			return rng.Uint64() & widthMask(width)
		}, nil
	default:
		return nil, fmt.Errorf("unknown stimulus %q", name)
	}
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
