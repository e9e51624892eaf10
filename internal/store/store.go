// Package store provides the SQLite persistence layer for vaultsync.
//
// The database runs embedded (ncruces/go-sqlite3) with WAL mode for
// concurrent readers. Every write is atomic at single-row granularity;
// the sync engine tolerates and reports partial completion rather than
// assuming multi-task transactions.
//
// Tables: projects, tasks, sync_logs, sync_conflicts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent
// reads. Missing parent directories are created. The caller MUST call
// Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the schema if it doesn't exist. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'todo',
		priority TEXT NOT NULL DEFAULT 'none',
		due_date TEXT,
		completed_at TEXT,
		tags TEXT,  -- JSON array
		project_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,

		-- Vault linkage
		obsidian_path TEXT,
		obsidian_line INTEGER,
		sync_token TEXT,
		fingerprint TEXT,

		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id TEXT PRIMARY KEY,
		sync_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		source_file TEXT,
		tasks_created INTEGER NOT NULL DEFAULT 0,
		tasks_updated INTEGER NOT NULL DEFAULT 0,
		tasks_skipped INTEGER NOT NULL DEFAULT 0,
		conflicts_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE TABLE IF NOT EXISTS sync_conflicts (
		id TEXT PRIMARY KEY,
		sync_log_id TEXT NOT NULL,
		task_id TEXT,

		obsidian_path TEXT NOT NULL,
		obsidian_line INTEGER NOT NULL,
		raw_line TEXT,

		obs_title TEXT NOT NULL,
		obs_status TEXT NOT NULL,
		obs_priority TEXT NOT NULL,
		obs_due_date TEXT,
		obs_tags TEXT,
		obs_modified TEXT NOT NULL,

		db_title TEXT,
		db_status TEXT,
		db_priority TEXT,
		db_due_date TEXT,
		db_tags TEXT,
		db_modified TEXT,

		resolution TEXT,
		resolved_at TEXT,
		resolved_by TEXT,
		created_at TEXT NOT NULL,

		FOREIGN KEY (sync_log_id) REFERENCES sync_logs(id) ON DELETE CASCADE,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_source ON tasks(obsidian_path, obsidian_line);
	CREATE INDEX IF NOT EXISTS idx_tasks_token ON tasks(sync_token);
	CREATE INDEX IF NOT EXISTS idx_tasks_fingerprint ON tasks(project_id, fingerprint);
	CREATE INDEX IF NOT EXISTS idx_sync_logs_status ON sync_logs(status);
	CREATE INDEX IF NOT EXISTS idx_conflicts_log ON sync_conflicts(sync_log_id);
	CREATE INDEX IF NOT EXISTS idx_conflicts_open ON sync_conflicts(resolution) WHERE resolution IS NULL;
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// timeToNullString converts a time pointer to a nullable string.
func timeToNullString(t *time.Time, layout string) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(layout), Valid: true}
}

// nullStringToTime converts a nullable string back to a time pointer.
func nullStringToTime(ns sql.NullString, layout string) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(layout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
