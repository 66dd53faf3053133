package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend keeps the namespace in a local SQLite file, for nodes whose
// dashboard reads the same file instead of a broker.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens the database and initializes the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=100")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			path TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Get returns the stored value.
func (b *SQLiteBackend) Get(ctx context.Context, p Path) (string, error) {
	var v string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE path = ?`, string(p)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return v, nil
}

// Put upserts the value.
func (b *SQLiteBackend) Put(ctx context.Context, p Path, v string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv (path, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, string(p), v, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
