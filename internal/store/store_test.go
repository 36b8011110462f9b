package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigscope/internal/snapshot"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testParams() snapshot.Parameters {
	return snapshot.Parameters{
		SchemaVersion:  snapshot.SchemaVersion,
		Signals:        []snapshot.SignalDef{{Name: "bus", Width: 12}},
		SampleWidth:    12,
		SampleDepth:    4,
		SampleRateHz:   60e6,
		BitsPerSample:  16,
		BytesPerSample: 2,
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	s := testStore(t)

	raw := []byte{0x0F, 0x00, 0x0F, 0x01, 0x0F, 0x02, 0x0F, 0x03}
	id, err := s.SaveSession("bringup", testParams(), raw)
	require.NoError(t, err)
	require.Positive(t, id)

	sess, err := s.Session(id)
	require.NoError(t, err)

	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "bringup", sess.Label)
	assert.Equal(t, raw, sess.Raw)
	assert.Equal(t, testParams(), sess.Params)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestSessionNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.Session(42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsListing(t *testing.T) {
	s := testStore(t)

	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	first, err := s.SaveSession("first", testParams(), raw)
	require.NoError(t, err)
	second, err := s.SaveSession("second", testParams(), raw[:4])
	require.NoError(t, err)

	infos, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Newest first.
	assert.Equal(t, second, infos[0].ID)
	assert.Equal(t, "second", infos[0].Label)
	assert.Equal(t, int64(4), infos[0].RawBytes)
	assert.Equal(t, first, infos[1].ID)
	assert.Equal(t, int64(8), infos[1].RawBytes)
}

func TestDeleteSession(t *testing.T) {
	s := testStore(t)

	id, err := s.SaveSession("temp", testParams(), []byte{1, 2})
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(id))

	_, err = s.Session(id)
	require.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteSession(id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.SaveSession("persisted", testParams(), []byte{9, 9})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	sess, err := s2.Session(id)
	require.NoError(t, err)
	assert.Equal(t, "persisted", sess.Label)
	assert.Equal(t, []byte{9, 9}, sess.Raw)
}
