package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("expected FormatJSON, got %v (%v)", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("expected FormatText, got %v (%v)", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty format should default to text, got %v (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
	}

	for _, test := range tests {
		if got := LevelString(test.level); got != test.expected {
			t.Errorf("LevelString(%v) = %q, want %q", test.level, got, test.expected)
		}
	}
}

func TestFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	logger, err := New(&Config{
		Level:    LevelDebug,
		Format:   FormatText,
		Output:   "file",
		FilePath: path,
		MaxSize:  10,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Close()

	logger.Info("capture complete", "samples", 32)
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "capture complete") {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), "samples=32") {
		t.Errorf("log file missing attribute: %s", data)
	}
}

func TestJSONFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    "file",
		FilePath:  path,
		MaxSize:   10,
		Component: "engine",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Close()

	logger.Info("triggered", "depth", 64)
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	if entry["msg"] != "triggered" {
		t.Errorf("expected msg triggered, got %v", entry["msg"])
	}
	if entry["component"] != "engine" {
		t.Errorf("expected component engine, got %v", entry["component"])
	}
	if entry["depth"] != float64(64) {
		t.Errorf("expected depth 64, got %v", entry["depth"])
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	logger, err := New(&Config{
		Level:    LevelWarn,
		Format:   FormatText,
		Output:   "file",
		FilePath: path,
		MaxSize:  10,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Close()

	logger.Debug("suppressed")
	logger.Info("also suppressed")
	logger.Warn("visible")
	logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "suppressed") {
		t.Errorf("below-threshold entries leaked: %s", data)
	}
	if !strings.Contains(string(data), "visible") {
		t.Errorf("warn entry missing: %s", data)
	}
}

func TestWithComponent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	logger, err := New(&Config{
		Level:    LevelInfo,
		Format:   FormatText,
		Output:   "file",
		FilePath: path,
		MaxSize:  10,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Close()

	child := logger.WithComponent("frontend")
	child.Info("hello")
	logger.Sync()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "component=frontend") {
		t.Errorf("missing component attribute: %s", data)
	}
}

func TestLogFileSizeRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	lf, err := openLogFile(&Config{
		FilePath:   path,
		MaxSize:    0, // every write past the first exceeds the cap
		MaxBackups: 5,
		MaxAge:     1,
	})
	if err != nil {
		t.Fatalf("openLogFile failed: %v", err)
	}
	defer lf.Close()

	for _, line := range []string{"first\n", "second\n", "third\n"} {
		if _, err := lf.Write([]byte(line)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	// Two rotations in the same second must still produce distinct
	// archive names.
	files := lf.Files()
	if len(files) != 3 {
		t.Fatalf("expected active file plus 2 archives, got %v", files)
	}
	seen := make(map[string]bool)
	for _, f := range files {
		if seen[f] {
			t.Errorf("duplicate file name %s in %v", f, files)
		}
		seen[f] = true
	}
}

func TestLogFileCompressesOnRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	lf, err := openLogFile(&Config{
		FilePath:   path,
		MaxSize:    0,
		MaxBackups: 5,
		MaxAge:     1,
		Compress:   true,
	})
	if err != nil {
		t.Fatalf("openLogFile failed: %v", err)
	}
	defer lf.Close()

	if _, err := lf.Write([]byte("first\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := lf.Write([]byte("second\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Compression is inline, so the archive is already gzipped when
	// Write returns.
	matches, err := filepath.Glob(filepath.Join(dir, "test-*.log.gz"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one compressed archive, got %v (%v)", matches, err)
	}
	if _, err := os.Stat(matches[0][:len(matches[0])-3]); !os.IsNotExist(err) {
		t.Errorf("uncompressed archive left behind: %v", err)
	}
}

func TestLogFileRotatesOversizedOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	if err := os.WriteFile(path, []byte("left over from a previous run\n"), 0640); err != nil {
		t.Fatalf("seed log file: %v", err)
	}

	lf, err := openLogFile(&Config{
		FilePath:   path,
		MaxSize:    0,
		MaxBackups: 5,
		MaxAge:     1,
	})
	if err != nil {
		t.Fatalf("openLogFile failed: %v", err)
	}
	defer lf.Close()

	if lf.size != 0 {
		t.Errorf("active file not fresh after open, size %d", lf.size)
	}
	if files := lf.Files(); len(files) != 2 {
		t.Errorf("expected the oversized file archived, got %v", files)
	}
}

func TestLogFilePrunesArchives(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	lf, err := openLogFile(&Config{
		FilePath:   path,
		MaxSize:    0,
		MaxBackups: 1,
		MaxAge:     1,
	})
	if err != nil {
		t.Fatalf("openLogFile failed: %v", err)
	}
	defer lf.Close()

	for _, line := range []string{"first\n", "second\n", "third\n"} {
		if _, err := lf.Write([]byte(line)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if files := lf.Files(); len(files) != 2 {
		t.Errorf("expected active file plus 1 retained archive, got %v", files)
	}
}
