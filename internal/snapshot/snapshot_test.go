package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigscope/internal/ila"
)

func testTransport(t *testing.T) *ila.SPITransport {
	t.Helper()
	set, err := ila.NewSignalSet(
		ila.Signal{Name: "valid", Width: 1},
		ila.Signal{Name: "data", Width: 30},
		ila.Signal{Name: "ready", Width: 1},
	)
	require.NoError(t, err)

	tr, err := ila.NewSPITransport(
		ila.Config{Signals: set, Depth: 32, SampleRate: 100e6},
		ila.SPIConfig{},
	)
	require.NoError(t, err)
	return tr
}

func TestNew(t *testing.T) {
	p := New(testTransport(t))

	assert.Equal(t, SchemaVersion, p.SchemaVersion)
	assert.Equal(t, []SignalDef{
		{Name: "valid", Width: 1},
		{Name: "data", Width: 30},
		{Name: "ready", Width: 1},
	}, p.Signals)
	assert.Equal(t, 32, p.SampleWidth)
	assert.Equal(t, 32, p.SampleDepth)
	assert.Equal(t, 32, p.BitsPerSample)
	assert.Equal(t, 4, p.BytesPerSample)
	assert.Equal(t, 128, p.RawSize())
	assert.InDelta(t, 1e-8, p.SamplePeriod(), 1e-15)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")

	p := New(testTransport(t))
	require.NoError(t, p.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecode_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name:    "not json",
			doc:     "not a snapshot",
			wantErr: nil, // parse error, no sentinel
		},
		{
			name:    "missing fields",
			doc:     `{"schema_version": 1}`,
			wantErr: ErrInvalid,
		},
		{
			name: "empty signal list",
			doc: `{"schema_version": 1, "signals": [],
			       "sample_width": 8, "sample_depth": 4, "sample_rate_hz": 1e6,
			       "bits_per_sample": 8, "bytes_per_sample": 1}`,
			wantErr: ErrInvalid,
		},
		{
			name: "future schema version",
			doc: `{"schema_version": 99,
			       "signals": [{"name": "a", "width": 1}],
			       "sample_width": 1, "sample_depth": 4, "sample_rate_hz": 1e6,
			       "bits_per_sample": 8, "bytes_per_sample": 1}`,
			wantErr: ErrSchemaVersion,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc))
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
