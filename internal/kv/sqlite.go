package kv

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dataDir = ".tp"
	dbFile  = "local.db"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite stores keys in a single table of a SQLite database. Writes are
// serialized across processes by a file lock next to the database.
type SQLite struct {
	conn    *sql.DB
	baseDir string
}

// Path returns the database path for a base directory.
func Path(baseDir string) string {
	return filepath.Join(baseDir, dataDir, dbFile)
}

// Exists reports whether a local database has been initialized in baseDir.
func Exists(baseDir string) bool {
	_, err := os.Stat(Path(baseDir))
	return err == nil
}

// Open opens (creating if needed) the local database under baseDir/.tp.
func Open(baseDir string) (*SQLite, error) {
	dbPath := Path(baseDir)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout as fallback protection (500ms, matches lock timeout)
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	s, err := New(conn, baseDir)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open connection and creates the schema. The caller
// picks the driver; baseDir locates the write lock file.
func New(conn *sql.DB, baseDir string) (*SQLite, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(baseDir, dataDir), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &SQLite{conn: conn, baseDir: baseDir}, nil
}

// Get returns the value stored under key.
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	return get(s.conn, key)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func get(q queryRower, key string) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLite) Set(key string, value []byte) error {
	return s.SetMany(map[string][]byte{key: value})
}

// SetMany writes every entry in one transaction while holding the write lock.
func (s *SQLite) SetMany(entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	return s.Update(func(Reader) (map[string][]byte, error) { return entries, nil })
}

// Update runs fn inside a transaction while holding the write lock. Reads
// made through the Reader see the transaction's snapshot.
func (s *SQLite) Update(fn UpdateFunc) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		entries, err := fn(readerFunc(func(key string) ([]byte, bool, error) {
			return get(tx, key)
		}))
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		now := time.Now().UTC()
		for k, v := range entries {
			if v == nil {
				if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, k); err != nil {
					return fmt.Errorf("delete %s: %w", k, err)
				}
				continue
			}
			if _, err := tx.Exec(
				`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now,
			); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// withWriteLock executes fn while holding an exclusive write lock.
// This prevents concurrent writes from multiple processes.
func (s *SQLite) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
