// Package store provides SQLite persistence for intelbrief.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every connection in the pool sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
// Timestamps are stored as fixed-width UTC text so they compare correctly as strings.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_items (
		id TEXT PRIMARY KEY,
		url TEXT,
		title TEXT NOT NULL,
		content TEXT,
		source_name TEXT NOT NULL,
		tier TEXT NOT NULL,
		language TEXT,
		published_at TEXT,
		retrieved_at TEXT NOT NULL,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_raw_items_retrieved ON raw_items(retrieved_at);
	CREATE INDEX IF NOT EXISTS idx_raw_items_source ON raw_items(source_name);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		location TEXT NOT NULL,
		summary TEXT,
		entities TEXT,
		sources TEXT,
		confidence REAL NOT NULL,
		confidence_label TEXT NOT NULL,
		impact_tags TEXT,
		evidence_links TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_events_location ON events(location);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		target_key TEXT NOT NULL,
		overall REAL NOT NULL,
		sub_scores TEXT,
		delta_7d REAL,
		delta_30d REAL,
		delta_90d REAL,
		drivers TEXT,
		confidence REAL NOT NULL,
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_target ON assessments(target_key, generated_at DESC);

	CREATE TABLE IF NOT EXISTS historical_assessments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assessment_id TEXT NOT NULL,
		target TEXT NOT NULL,
		target_key TEXT NOT NULL,
		overall REAL NOT NULL,
		sub_scores TEXT,
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_target ON historical_assessments(target_key, generated_at);

	CREATE TABLE IF NOT EXISTS briefs (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		target_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		what_changed TEXT,
		why_it_matters TEXT,
		what_to_watch TEXT,
		citations TEXT,
		confidence_markers TEXT,
		generated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_briefs_target ON briefs(target_key, kind, generated_at DESC);

	CREATE TABLE IF NOT EXISTS event_correlations (
		event_id TEXT NOT NULL,
		other_id TEXT NOT NULL,
		score REAL NOT NULL,
		computed_at TEXT NOT NULL,
		PRIMARY KEY (event_id, other_id)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime renders t in UTC. The zero time is stored as the empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// encodeJSON marshals list and map columns.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeJSON unmarshals a column written by encodeJSON. Empty and NULL columns leave v untouched.
func decodeJSON(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}
