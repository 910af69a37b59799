// Package archive keeps a sqlite history of finished capture sessions so an
// operator can find the log file of an earlier walkthrough.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverPure is modernc.org/sqlite, no cgo required.
	DriverPure = "sqlite"
	// DriverCgo is github.com/mattn/go-sqlite3.
	DriverCgo = "sqlite3"
)

// Summary is one archived session.
type Summary struct {
	SessionID       string
	Profile         string
	Target          string
	StartedAt       time.Time
	EndedAt         time.Time
	Terminal        string
	LogPath         string
	Records         int
	Counts          map[string]int
	DownloadsSaved  int
	DownloadsFailed int
	FlushError      string
}

// Store is the session history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open opens or creates the archive at path using driver ("" means DriverPure).
// The parent directory must already exist.
func Open(path, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverPure
	}
	dsn := path
	if driver == DriverCgo {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		target TEXT NOT NULL,
		started_unix INTEGER NOT NULL,
		ended_unix INTEGER NOT NULL,
		terminal TEXT NOT NULL,
		log_path TEXT,
		records INTEGER NOT NULL DEFAULT 0,
		counts_json TEXT,
		downloads_saved INTEGER NOT NULL DEFAULT 0,
		downloads_failed INTEGER NOT NULL DEFAULT 0,
		flush_error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_unix);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a finished session. Recording the same session twice replaces it.
func (s *Store) Record(ctx context.Context, sum Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	countsJSON, err := json.Marshal(sum.Counts)
	if err != nil {
		return fmt.Errorf("failed to encode counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, profile, target, started_unix, ended_unix, terminal,
			log_path, records, counts_json, downloads_saved, downloads_failed, flush_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sum.SessionID, sum.Profile, sum.Target, sum.StartedAt.UnixNano(), sum.EndedAt.UnixNano(),
		sum.Terminal, sum.LogPath, sum.Records, string(countsJSON),
		sum.DownloadsSaved, sum.DownloadsFailed, sum.FlushError)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// List returns up to limit sessions, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile, target, started_unix, ended_unix, terminal, log_path,
			records, counts_json, downloads_saved, downloads_failed, flush_error
		FROM sessions
		ORDER BY started_unix DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum               Summary
			started, ended    int64
			logPath, flushErr sql.NullString
			countsJSON        sql.NullString
		)
		if err := rows.Scan(&sum.SessionID, &sum.Profile, &sum.Target, &started, &ended,
			&sum.Terminal, &logPath, &sum.Records, &countsJSON,
			&sum.DownloadsSaved, &sum.DownloadsFailed, &flushErr); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.StartedAt = time.Unix(0, started)
		sum.EndedAt = time.Unix(0, ended)
		sum.LogPath = logPath.String
		sum.FlushError = flushErr.String
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &sum.Counts); err != nil {
				return nil, fmt.Errorf("failed to decode counts for %s: %w", sum.SessionID, err)
			}
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
