package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database at the given file path, creating it if needed.
func New(path string) (*sql.DB, error) {
	return open(path, "rwc")
}

// OpenReadOnly opens an existing database without creating it.
func OpenReadOnly(path string) (*sql.DB, error) {
	return open(path, "ro")
}

// fileURI turns a file path into an escaped SQLite URI, so characters like
// '?', '#' and '%' in directory names stay part of the path.
func fileURI(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: url.Values{"mode": {mode}}.Encode(),
	}
	return u.String(), nil
}

func open(path, mode string) (*sql.DB, error) {
	dsn, err := fileURI(path, mode)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the chunks table.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			title TEXT,
			start_index INTEGER NOT NULL,
			text TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
