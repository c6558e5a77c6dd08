package stores

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists a JSON-serializable value in a single row of a
// SQLite table, keyed by an arbitrary caller-chosen key. It is the
// module's addition to the reference store family: a durable,
// query-friendly store for deployments that would rather not scatter
// per-node JSON files across a directory tree.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// OpenSQLiteStore opens (creating if necessary) a SQLite database at
// path and ensures the backing table exists. The returned store family
// shares one *sql.DB per file; call NewSQLiteStore per key.
func OpenSQLiteStore(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("stores: open sqlite database %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS uberjob_store (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	modified_at INTEGER NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stores: create sqlite schema in %s: %w", path, err)
	}
	return db, nil
}

// NewSQLiteStore returns a ValueStore backed by the row identified by
// key in db (as opened by OpenSQLiteStore).
func NewSQLiteStore(db *sql.DB, key string) *SQLiteStore {
	return &SQLiteStore{db: db, key: key}
}

func (s *SQLiteStore) Read() (any, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM uberjob_store WHERE key = ?`, s.key).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("stores: read sqlite key %s: %w", s.key, err)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("stores: decode sqlite key %s: %w", s.key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Write(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("stores: encode sqlite key %s: %w", s.key, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO uberjob_store (key, value, modified_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, modified_at = excluded.modified_at`,
		s.key, string(data), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("stores: write sqlite key %s: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteStore) ModifiedTime() (time.Time, bool, error) {
	var nanos int64
	err := s.db.QueryRow(`SELECT modified_at FROM uberjob_store WHERE key = ?`, s.key).Scan(&nanos)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stores: modified time for sqlite key %s: %w", s.key, err)
	}
	return time.Unix(0, nanos), true, nil
}
