package cache

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteKV stores values in a single sqlite table
type SQLiteKV struct {
	db *sql.DB
}

// KVStats contains store statistics
type KVStats struct {
	Entries    int
	Bytes      int64
	LastUpdate time.Time
}

// NewSQLiteKV initializes the database at the given path
func NewSQLiteKV(dbPath string) (*SQLiteKV, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	kv, err := newSQLiteKVFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

// newSQLiteKVFromDB uses an already opened database
func newSQLiteKVFromDB(db *sql.DB) (*SQLiteKV, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key '%s': %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO kv_store
		(key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write key '%s': %w", key, err)
	}
	return nil
}

// Delete removes a key, missing keys are ignored
func (s *SQLiteKV) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete key '%s': %w", key, err)
	}
	return nil
}

// Clear removes all entries
func (s *SQLiteKV) Clear() error {
	if _, err := s.db.Exec("DELETE FROM kv_store"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Stats returns store statistics
func (s *SQLiteKV) Stats() (KVStats, error) {
	var stats KVStats

	var lastUnix sql.NullInt64
	err := s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0), MAX(updated_at) FROM kv_store",
	).Scan(&stats.Entries, &stats.Bytes, &lastUnix)
	if err != nil {
		return stats, err
	}
	if lastUnix.Valid && lastUnix.Int64 > 0 {
		stats.LastUpdate = time.Unix(lastUnix.Int64, 0)
	}

	return stats, nil
}

// Close closes the database
func (s *SQLiteKV) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DefaultCachePath returns the default database path
func DefaultCachePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "feeds.db" // Fallback to current directory
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "rssreader", "feeds.db")
}
