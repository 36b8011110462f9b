// Package config handles configuration loading, validation, and management
// for sigscope.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Transport kinds accepted in [transport].
const (
	TransportSPI    = "spi"
	TransportStream = "stream"
	TransportUART   = "uart"
)

// Validation errors.
var (
	ErrNoSignals     = errors.New("config: no signals configured")
	ErrSignal        = errors.New("config: invalid signal")
	ErrCapture       = errors.New("config: invalid capture geometry")
	ErrTransportKind = errors.New("config: unknown transport kind")
	ErrUARTDivisor   = errors.New("config: uart divisor must be at least 1")
	ErrSerialBaud    = errors.New("config: serial baud must be positive")
	ErrLogging       = errors.New("config: invalid logging settings")
)

// Config holds the complete tool configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Capture describes the analyzer geometry.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Transport selects and configures the readout path.
	Transport TransportConfig `toml:"transport" json:"transport" yaml:"transport"`

	// Serial configures the host-side serial port for UART readout.
	Serial SerialConfig `toml:"serial" json:"serial" yaml:"serial"`

	// Output sets where captures and derived artifacts are written.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Storage configures the capture-session archive.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// SignalConfig names one monitored signal.
type SignalConfig struct {
	Name  string `toml:"name" json:"name" yaml:"name"`
	Width int    `toml:"width" json:"width" yaml:"width"`
}

// CaptureConfig holds the analyzer geometry.
type CaptureConfig struct {
	// Signals is the ordered list of monitored signals.
	Signals []SignalConfig `toml:"signals" json:"signals" yaml:"signals"`

	// Depth is the number of samples captured per trigger.
	Depth int `toml:"depth" json:"depth" yaml:"depth"`

	// Pretrigger is the number of samples retained from before the
	// trigger.
	Pretrigger int `toml:"pretrigger" json:"pretrigger" yaml:"pretrigger"`

	// SampleRateHz is the sample clock frequency. Zero selects the
	// analyzer's default rate.
	SampleRateHz float64 `toml:"sample_rate_hz" json:"sample_rate_hz" yaml:"sample_rate_hz"`

	// WithEnable adds a sample-enable input that gates which cycles are
	// stored.
	WithEnable bool `toml:"with_enable" json:"with_enable" yaml:"with_enable"`
}

// TransportConfig selects the readout path.
type TransportConfig struct {
	// Kind is "spi", "stream", or "uart".
	Kind string `toml:"kind" json:"kind" yaml:"kind"`

	SPI    SPIConfig    `toml:"spi" json:"spi" yaml:"spi"`
	Stream StreamConfig `toml:"stream" json:"stream" yaml:"stream"`
	UART   UARTConfig   `toml:"uart" json:"uart" yaml:"uart"`
}

// SPIConfig holds SPI readout settings.
type SPIConfig struct {
	// ClockPolarity is the SPI CPOL setting.
	ClockPolarity bool `toml:"clock_polarity" json:"clock_polarity" yaml:"clock_polarity"`

	// ClockPhase is the SPI CPHA setting.
	ClockPhase bool `toml:"clock_phase" json:"clock_phase" yaml:"clock_phase"`

	// CSIdlesHigh inverts the chip-select sense for active-low wiring.
	CSIdlesHigh bool `toml:"cs_idles_high" json:"cs_idles_high" yaml:"cs_idles_high"`
}

// StreamConfig holds stream readout settings.
type StreamConfig struct {
	// CrossDomain inserts a clock-domain-crossing queue between the
	// capture clock and the consumer.
	CrossDomain bool `toml:"cross_domain" json:"cross_domain" yaml:"cross_domain"`
}

// UARTConfig holds byte-serial readout settings.
type UARTConfig struct {
	// Divisor is the number of sample-clock ticks per bit time.
	Divisor int `toml:"divisor" json:"divisor" yaml:"divisor"`
}

// SerialConfig holds host serial-port settings for fetching UART
// captures.
type SerialConfig struct {
	// Device is the serial port path, e.g. /dev/ttyUSB0.
	Device string `toml:"device" json:"device" yaml:"device"`

	// Baud is the line rate.
	Baud int `toml:"baud" json:"baud" yaml:"baud"`
}

// OutputConfig sets artifact destinations.
type OutputConfig struct {
	// RawPath is where the raw capture dump is written.
	RawPath string `toml:"raw_path" json:"raw_path" yaml:"raw_path"`

	// SnapshotPath is where the parameter snapshot is written.
	SnapshotPath string `toml:"snapshot_path" json:"snapshot_path" yaml:"snapshot_path"`

	// VCDPath is where exported waveforms are written. "-" means stdout.
	VCDPath string `toml:"vcd_path" json:"vcd_path" yaml:"vcd_path"`

	// GTKWPath is where the viewer layout file is written. Empty skips
	// the layout file.
	GTKWPath string `toml:"gtkw_path" json:"gtkw_path" yaml:"gtkw_path"`

	// AddClock adds a synthetic sample-clock trace to exported
	// waveforms.
	AddClock bool `toml:"add_clock" json:"add_clock" yaml:"add_clock"`
}

// StorageConfig holds the capture-session archive settings.
type StorageConfig struct {
	// Path is the path to the archive database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Capture: CaptureConfig{
			Signals:    []SignalConfig{{Name: "data", Width: 8}},
			Depth:      32,
			Pretrigger: 0,
		},
		Transport: TransportConfig{
			Kind: TransportSPI,
			SPI: SPIConfig{
				ClockPolarity: false,
				ClockPhase:    true,
			},
			UART: UARTConfig{
				Divisor: 16,
			},
		},
		Serial: SerialConfig{
			Device: "/dev/ttyUSB0",
			Baud:   115200,
		},
		Output: OutputConfig{
			RawPath:      filepath.Join(dir, "capture.bin"),
			SnapshotPath: filepath.Join(dir, "capture.json"),
			VCDPath:      filepath.Join(dir, "capture.vcd"),
			GTKWPath:     filepath.Join(dir, "capture.gtkw"),
			AddClock:     true,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "sessions.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "sigscope.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// DataDir returns the base sigscope directory, honoring the
// SIGSCOPE_DATA_DIR environment override.
func DataDir() string {
	if envDir := os.Getenv("SIGSCOPE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sigscope"
	}
	return filepath.Join(home, ".sigscope")
}

// Load reads configuration from the specified path. If the file doesn't
// exist, it returns default configuration. TOML, JSON, and YAML formats
// are selected by file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Capture.Signals) == 0 {
		return ErrNoSignals
	}
	seen := make(map[string]bool, len(c.Capture.Signals))
	for _, sig := range c.Capture.Signals {
		if sig.Name == "" {
			return fmt.Errorf("%w: empty name", ErrSignal)
		}
		if sig.Width < 1 {
			return fmt.Errorf("%w: %s has width %d", ErrSignal, sig.Name, sig.Width)
		}
		if seen[sig.Name] {
			return fmt.Errorf("%w: duplicate name %s", ErrSignal, sig.Name)
		}
		seen[sig.Name] = true
	}

	if c.Capture.Depth < 1 {
		return fmt.Errorf("%w: depth %d", ErrCapture, c.Capture.Depth)
	}
	if c.Capture.Pretrigger < 0 || c.Capture.Pretrigger >= c.Capture.Depth {
		return fmt.Errorf("%w: pretrigger %d with depth %d",
			ErrCapture, c.Capture.Pretrigger, c.Capture.Depth)
	}
	if c.Capture.SampleRateHz < 0 {
		return fmt.Errorf("%w: sample rate %g", ErrCapture, c.Capture.SampleRateHz)
	}

	switch c.Transport.Kind {
	case TransportSPI, TransportStream:
	case TransportUART:
		if c.Transport.UART.Divisor < 1 {
			return fmt.Errorf("%w: %d", ErrUARTDivisor, c.Transport.UART.Divisor)
		}
		if c.Serial.Baud <= 0 {
			return fmt.Errorf("%w: %d", ErrSerialBaud, c.Serial.Baud)
		}
	default:
		return fmt.Errorf("%w: %q", ErrTransportKind, c.Transport.Kind)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: level %q", ErrLogging, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: format %q", ErrLogging, c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "file", "both":
	default:
		return fmt.Errorf("%w: output %q", ErrLogging, c.Logging.Output)
	}

	return nil
}

// EnsureDirectories creates all directories the configured paths live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Output.RawPath),
		filepath.Dir(c.Output.SnapshotPath),
		filepath.Dir(c.Storage.Path),
		filepath.Dir(c.Logging.FilePath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with SIGSCOPE_ and use
// underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("SIGSCOPE_RAW_PATH"); v != "" {
		c.Output.RawPath = v
	}
	if v := os.Getenv("SIGSCOPE_SNAPSHOT_PATH"); v != "" {
		c.Output.SnapshotPath = v
	}
	if v := os.Getenv("SIGSCOPE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SIGSCOPE_SERIAL_DEVICE"); v != "" {
		c.Serial.Device = v
	}
	if v := os.Getenv("SIGSCOPE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SIGSCOPE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
		c.Logging.Output = "file"
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:   c.Version,
		Capture:   c.Capture,
		Transport: c.Transport,
		Serial:    c.Serial,
		Output:    c.Output,
		Storage:   c.Storage,
		Logging:   c.Logging,
	}
	clone.Capture.Signals = append([]SignalConfig{}, c.Capture.Signals...)
	return clone
}

// Save writes the configuration to path in TOML format.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
