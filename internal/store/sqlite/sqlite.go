// Package sqlite stores classification sets and results documents in one embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database created inside the cache directory
const FileName = "cache.db"

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
	set_name TEXT NOT NULL,
	repo     TEXT NOT NULL,
	added_at TIMESTAMP NOT NULL,
	PRIMARY KEY (set_name, repo)
);
CREATE TABLE IF NOT EXISTS documents (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// Store implements classify.SetStore and results.DocumentStore. Like the file backends
// their methods take no context; each statement is a short local call.
type Store struct {
	DB *sql.DB
}

// Open opens (and migrates) the database at path; ctx bounds the migration only
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	slog.Debug("Opened SQLite cache", "path", path)
	return &Store{DB: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.DB.Close()
}

// Contains reports whether repo is in set
func (s *Store) Contains(set, repo string) (bool, error) {
	var n int
	err := s.DB.QueryRow(
		`SELECT COUNT(*) FROM classifications WHERE set_name = ? AND repo = ?`, set, repo).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", set, err)
	}
	return n > 0, nil
}

// Add inserts repo into set; adding an existing member is a no-op
func (s *Store) Add(set, repo string) error {
	_, err := s.DB.Exec(
		`INSERT OR IGNORE INTO classifications (set_name, repo, added_at) VALUES (?, ?, ?)`,
		set, repo, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", repo, set, err)
	}
	return nil
}

// Members lists set, sorted
func (s *Store) Members(set string) ([]string, error) {
	rows, err := s.DB.Query(
		`SELECT repo FROM classifications WHERE set_name = ? ORDER BY repo`, set)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", set, err)
	}
	defer func() { _ = rows.Close() }()

	var repos []string
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", set, err)
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// Clear empties set
func (s *Store) Clear(set string) error {
	if _, err := s.DB.Exec(`DELETE FROM classifications WHERE set_name = ?`, set); err != nil {
		return fmt.Errorf("failed to clear %s: %w", set, err)
	}
	return nil
}

// Load returns the document called name, or nil when it does not exist
func (s *Store) Load(name string) ([]byte, error) {
	var data []byte
	err := s.DB.QueryRow(`SELECT data FROM documents WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return data, nil
}

// Save replaces the document called name inside a transaction
func (s *Store) Save(name string, data []byte) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("start tx: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO documents (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now().UTC())
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to save %s: %v (rollback failed: %w)", name, err, rbErr)
		}
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Delete removes the document called name
func (s *Store) Delete(name string) error {
	if _, err := s.DB.Exec(`DELETE FROM documents WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}
