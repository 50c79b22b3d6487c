package dedup

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists markers in SQLite, scoped to one session ID. Markers
// of other sessions are invisible to it.
type SQLiteStore struct {
	db        *sql.DB
	sessionID string
}

// OpenSQLiteStore opens (or creates) the marker database at dbPath for
// sessionID. An empty sessionID starts a fresh session. ":memory:" keeps the
// database in memory.
func OpenSQLiteStore(dbPath, sessionID string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS dedup_markers (
		session_id TEXT NOT NULL,
		marker_key TEXT NOT NULL,
		claimed_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, marker_key)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &SQLiteStore{db: db, sessionID: sessionID}, nil
}

// SessionID returns the session the store is scoped to.
func (s *SQLiteStore) SessionID() string {
	return s.sessionID
}

// CheckAndSet implements Store. The insert is the check: a conflicting
// primary key leaves the row untouched and affects zero rows.
func (s *SQLiteStore) CheckAndSet(key string) (bool, error) {
	if s.db == nil {
		return false, errors.New("dedup store closed")
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO dedup_markers (session_id, marker_key, claimed_at) VALUES (?, ?, ?)`,
		s.sessionID, key, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return n == 1, nil
}

// Markers lists the keys claimed in this session, oldest first.
func (s *SQLiteStore) Markers() ([]string, error) {
	if s.db == nil {
		return nil, errors.New("dedup store closed")
	}
	rows, err := s.db.Query(
		`SELECT marker_key FROM dedup_markers WHERE session_id = ? ORDER BY claimed_at, marker_key`,
		s.sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database. Claims after Close fail and fall back.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
