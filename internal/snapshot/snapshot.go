// Package snapshot serializes the capture parameters of an analyzer so
// the host-side decoder can run in a process that only has transport
// access, without reconstructing the engine.
//
// The document is plain JSON with an explicit schema version; loads are
// checked against an embedded JSON Schema and refused on version
// mismatch, so a stale snapshot fails loudly instead of silently
// mis-decoding a capture.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"sigscope/internal/ila"
)

// SchemaVersion is the current snapshot document version.
const SchemaVersion = 1

// Errors returned while loading a snapshot.
var (
	ErrSchemaVersion = errors.New("snapshot: unsupported schema version")
	ErrInvalid       = errors.New("snapshot: document failed validation")
)

// SignalDef describes one monitored signal.
type SignalDef struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
}

// Parameters is the serializable record of an analyzer's capture
// configuration: everything the host needs to slice raw bytes back into
// named per-signal values.
type Parameters struct {
	SchemaVersion  int         `json:"schema_version"`
	Signals        []SignalDef `json:"signals"`
	SampleWidth    int         `json:"sample_width"`
	SampleDepth    int         `json:"sample_depth"`
	SampleRateHz   float64     `json:"sample_rate_hz"`
	BitsPerSample  int         `json:"bits_per_sample"`
	BytesPerSample int         `json:"bytes_per_sample"`
}

// Source is the view of a transport-wrapped analyzer that a snapshot is
// taken from. All transports in the ila package implement it.
type Source interface {
	Signals() []ila.Signal
	SampleWidth() int
	SampleDepth() int
	SampleRate() float64
	BitsPerSample() int
	BytesPerSample() int
}

// New captures the parameters of src.
func New(src Source) Parameters {
	sigs := src.Signals()
	defs := make([]SignalDef, len(sigs))
	for i, s := range sigs {
		defs[i] = SignalDef{Name: s.Name, Width: s.Width}
	}
	return Parameters{
		SchemaVersion:  SchemaVersion,
		Signals:        defs,
		SampleWidth:    src.SampleWidth(),
		SampleDepth:    src.SampleDepth(),
		SampleRateHz:   src.SampleRate(),
		BitsPerSample:  src.BitsPerSample(),
		BytesPerSample: src.BytesPerSample(),
	}
}

// SamplePeriod returns the time between samples in seconds.
func (p Parameters) SamplePeriod() float64 {
	if p.SampleRateHz == 0 {
		return 0
	}
	return 1 / p.SampleRateHz
}

// RawSize returns the number of raw bytes one full capture occupies.
func (p Parameters) RawSize() int {
	return p.SampleDepth * p.BytesPerSample
}

// Encode renders the snapshot as indented JSON.
func (p Parameters) Encode() ([]byte, error) {
	if p.SchemaVersion == 0 {
		p.SchemaVersion = SchemaVersion
	}
	return json.MarshalIndent(p, "", "  ")
}

// Save writes the snapshot to path.
func (p Parameters) Save(path string) error {
	data, err := p.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Decode parses and validates a snapshot document.
func Decode(data []byte) (Parameters, error) {
	if err := validate(data); err != nil {
		return Parameters{}, err
	}

	var p Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		return Parameters{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if p.SchemaVersion != SchemaVersion {
		return Parameters{}, fmt.Errorf("%w: %d (want %d)", ErrSchemaVersion, p.SchemaVersion, SchemaVersion)
	}
	return p, nil
}

// Load reads and validates the snapshot at path.
func Load(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// schema constrains the document shape: the version marker, a non-empty
// signal list, and strictly positive geometry.
const schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "schema_version", "signals", "sample_width", "sample_depth",
    "sample_rate_hz", "bits_per_sample", "bytes_per_sample"
  ],
  "properties": {
    "schema_version": {"type": "integer", "minimum": 1},
    "signals": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "width"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "width": {"type": "integer", "minimum": 1}
        }
      }
    },
    "sample_width": {"type": "integer", "minimum": 1},
    "sample_depth": {"type": "integer", "minimum": 1},
    "sample_rate_hz": {"type": "number", "exclusiveMinimum": 0},
    "bits_per_sample": {"type": "integer", "minimum": 8},
    "bytes_per_sample": {"type": "integer", "minimum": 1}
  }
}`

var compiledSchema = jsonschema.MustCompileString("snapshot.schema.json", schema)

func validate(data []byte) error {
	var doc any
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
