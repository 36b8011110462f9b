// Package store archives completed captures in a local SQLite database,
// keyed by an auto-assigned session id. Each session carries the
// parameter snapshot it was decoded with, so an archived capture stays
// replayable after the live configuration has moved on.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sigscope/internal/snapshot"
)

// Schema for the capture-session archive.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at  INTEGER NOT NULL,
    label       TEXT NOT NULL,
    params      TEXT NOT NULL,
    raw         BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_label ON sessions(label);
`

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("store: session not found")

// Session is one archived capture.
type Session struct {
	ID        int64
	CreatedAt time.Time
	Label     string
	Params    snapshot.Parameters
	Raw       []byte
}

// SessionInfo is the listing view of a session, without the raw blob.
type SessionInfo struct {
	ID        int64
	CreatedAt time.Time
	Label     string
	RawBytes  int64
}

// Store represents the SQLite session archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and
// applies the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSession archives one capture and returns its session id. The
// parameter snapshot is stored alongside the raw bytes in its canonical
// JSON form.
func (s *Store) SaveSession(label string, params snapshot.Parameters, raw []byte) (int64, error) {
	doc, err := params.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode parameters: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO sessions (created_at, label, params, raw)
		VALUES (?, ?, ?, ?)`,
		time.Now().UnixNano(), label, string(doc), raw,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	return id, nil
}

// Session retrieves an archived capture by id. The stored snapshot is
// validated on the way out, so a corrupted row fails instead of
// mis-decoding.
func (s *Store) Session(id int64) (*Session, error) {
	var (
		createdNs int64
		label     string
		doc       string
		raw       []byte
	)
	err := s.db.QueryRow(`
		SELECT created_at, label, params, raw FROM sessions WHERE id = ?`, id,
	).Scan(&createdNs, &label, &doc, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	params, err := snapshot.Decode([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", id, err)
	}

	return &Session{
		ID:        id,
		CreatedAt: time.Unix(0, createdNs),
		Label:     label,
		Params:    params,
		Raw:       raw,
	}, nil
}

// Sessions lists all archived captures, newest first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, label, length(raw)
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var (
			info      SessionInfo
			createdNs int64
		)
		if err := rows.Scan(&info.ID, &createdNs, &info.Label, &info.RawBytes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.CreatedAt = time.Unix(0, createdNs)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return infos, nil
}

// DeleteSession removes an archived capture.
func (s *Store) DeleteSession(id int64) error {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}
