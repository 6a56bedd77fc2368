package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteSessionStore is a SessionStore backed by a local SQLite database so
// conversations survive restarts and can be shared by several processes on
// one host.
type SQLiteSessionStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// window is the number of turns kept per session.
	window int
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.ragchat/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a SQLiteSessionStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string, window int) (*SQLiteSessionStore, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteSessionStore{db: db, window: window}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteSessionStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS turns (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session      TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (nanoseconds)
);
CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns (session, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append implements SessionStore. Turns beyond the window are deleted in the
// same transaction.
func (s *SQLiteSessionStore) Append(ctx context.Context, session string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const ins = `INSERT INTO turns (session, role, content, created_at) VALUES (?, ?, ?, ?)`
	for _, t := range turns {
		ts := t.CreatedAt
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.ExecContext(ctx, ins, session, string(t.Role), t.Content, ts.UnixNano()); err != nil {
			return fmt.Errorf("store: append: %w", err)
		}
	}

	const trim = `
DELETE FROM turns
WHERE  session = ?
  AND  id NOT IN (SELECT id FROM turns WHERE session = ? ORDER BY id DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, trim, session, session, s.window); err != nil {
		return fmt.Errorf("store: append: trim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append: commit: %w", err)
	}
	return nil
}

// Window implements SessionStore.
func (s *SQLiteSessionStore) Window(ctx context.Context, session string) ([]Turn, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   turns
    WHERE  session = ?
    ORDER  BY id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, session, s.window)
	if err != nil {
		return nil, fmt.Errorf("store: window: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts int64
		var role string
		if err := rows.Scan(&role, &t.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: window scan: %w", err)
		}
		t.Role = Role(role)
		t.CreatedAt = time.Unix(0, ts)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: window rows: %w", err)
	}
	return turns, nil
}

// Clear implements SessionStore.
func (s *SQLiteSessionStore) Clear(ctx context.Context, session string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session = ?`, session); err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteSessionStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
