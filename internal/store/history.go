// Package store keeps a SQLite history of audit runs so that regressions
// between deploys can be spotted.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ga4skill/internal/audit"
	"ga4skill/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded audit.
type Run struct {
	ID        string
	URL       string
	Source    string // audit, live, simulate
	Status    string
	StartedAt time.Time
	Duration  time.Duration
	Report    *audit.Report
}

// History is the run log. It is safe for concurrent use.
type History struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	h := &History{db: db, path: path, log: logging.Get(logging.CategoryStore)}
	if err := h.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db, h.log); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		report TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_url ON audit_runs(url, started_at);
	`
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create audit_runs: %w", err)
	}
	return nil
}

// Record stores run. An empty ID is assigned; a zero StartedAt becomes now.
// The stored status is taken from the report.
func (h *History) Record(run Run) (string, error) {
	if run.Report == nil {
		return "", errors.New("run has no report")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Source == "" {
		run.Source = "audit"
	}
	data, err := json.Marshal(run.Report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return "", errors.New("history is closed")
	}
	_, err = h.db.Exec(
		`INSERT INTO audit_runs (id, url, source, status, started_at, duration_ms, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.URL, run.Source, run.Report.Status,
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds(), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	h.log.Debug("run recorded", zap.String("id", run.ID), zap.String("url", run.URL), zap.String("status", run.Report.Status))
	return run.ID, nil
}

// Recent returns the latest runs, newest first. A non-empty url filters.
func (h *History) Recent(url string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, errors.New("history is closed")
	}

	query := `SELECT id, url, source, status, started_at, duration_ms, report FROM audit_runs`
	args := []any{}
	if url != "" {
		query += ` WHERE url = ?`
		args = append(args, url)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMS int64
			report     string
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.Source, &r.Status, &startedAt, &durationMS, &report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.Report = &audit.Report{}
		if err := json.Unmarshal([]byte(report), r.Report); err != nil {
			return nil, fmt.Errorf("parse report %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Regressed reports whether the newest run for url failed after the one
// before it passed.
func (h *History) Regressed(url string) (bool, error) {
	runs, err := h.Recent(url, 2)
	if err != nil {
		return false, err
	}
	if len(runs) < 2 {
		return false, nil
	}
	return !runs[0].Report.Passed() && runs[1].Report.Passed(), nil
}

// Path returns the database path.
func (h *History) Path() string {
	return h.path
}

// Close closes the database.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
