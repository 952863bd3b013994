// Package prefs persists client-side display preferences in a small SQLite
// database under .tplan/.
package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MaxRetries is the maximum number of retries for transient database errors.
const MaxRetries = 5

// RetryBaseDelay is the base delay for exponential backoff.
const RetryBaseDelay = 50 * time.Millisecond

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const (
	keyColumns  = "columns"
	keyViewMode = "viewMode"
)

// ViewMode selects how a collection is rendered.
type ViewMode string

const (
	ViewBoard ViewMode = "board"
	ViewTable ViewMode = "table"
)

func (m ViewMode) IsValid() bool {
	return m == ViewBoard || m == ViewTable
}

// Toggle returns the other view mode.
func (m ViewMode) Toggle() ViewMode {
	if m == ViewBoard {
		return ViewTable
	}
	return ViewBoard
}

// KnownColumns lists every column the table view can show, in display order.
var KnownColumns = []string{"kind", "title", "progress", "difficulty", "color", "begin", "end", "owner", "managers"}

// DefaultColumns is used until the user picks a set.
var DefaultColumns = []string{"kind", "title", "progress", "difficulty", "color"}

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrInvalidViewMode = errors.New("view mode must be board or table")
)

// Store is an open preferences database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the preferences database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var sqlDB *sql.DB
	err := withRetryNoResult(func() error {
		var err error
		sqlDB, err = sql.Open("sqlite", path)
		if err != nil {
			return fmt.Errorf("failed to open preferences: %w", err)
		}
		// Set busy timeout first so the remaining pragmas retry on contention.
		if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := &Store{db: sqlDB}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version >= SchemaVersion {
		return nil
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Columns returns the visible table columns.
func (s *Store) Columns() ([]string, error) {
	var cols []string
	found, err := s.get(keyColumns, &cols)
	if err != nil {
		return nil, err
	}
	if !found || len(cols) == 0 {
		return append([]string(nil), DefaultColumns...), nil
	}
	return cols, nil
}

// SetColumns stores the visible table columns. Names are case-insensitive
// and duplicates are dropped.
func (s *Store) SetColumns(cols []string) error {
	seen := map[string]bool{}
	var clean []string
	for _, c := range cols {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		if !isKnownColumn(c) {
			return fmt.Errorf("%w: %s (known: %s)", ErrUnknownColumn, c, strings.Join(KnownColumns, ", "))
		}
		seen[c] = true
		clean = append(clean, c)
	}
	if len(clean) == 0 {
		return fmt.Errorf("%w: at least one column is required", ErrUnknownColumn)
	}
	return s.set(keyColumns, clean)
}

// ViewMode returns the stored view mode, defaulting to the table.
func (s *Store) ViewMode() (ViewMode, error) {
	var mode ViewMode
	found, err := s.get(keyViewMode, &mode)
	if err != nil {
		return "", err
	}
	if !found || !mode.IsValid() {
		return ViewTable, nil
	}
	return mode, nil
}

func (s *Store) SetViewMode(mode ViewMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidViewMode, mode)
	}
	return s.set(keyViewMode, mode)
}

func (s *Store) get(key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed to parse preference %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode preference %s: %w", key, err)
	}
	return withRetryNoResult(func() error {
		_, err := s.db.Exec(`
			INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, string(data))
		if err != nil {
			return fmt.Errorf("failed to save preference %s: %w", key, err)
		}
		return nil
	})
}

func isKnownColumn(c string) bool {
	for _, k := range KnownColumns {
		if k == c {
			return true
		}
	}
	return false
}

// isRetryableError checks if an error is a transient SQLite error that can be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "SQLITE_LOCKED")
}

// withRetryNoResult runs fn with exponential backoff on transient errors.
func withRetryNoResult(fn func() error) error {
	var err error
	delay := RetryBaseDelay
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err = fn()
		if err == nil || !isRetryableError(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
	}
	return fmt.Errorf("failed after %d retries: %w", MaxRetries, err)
}
