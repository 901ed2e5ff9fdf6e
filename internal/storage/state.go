package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expensetracker/internal/log"
	"expensetracker/internal/session"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("state key not found")

// StateStore is the persisted client state: a small key/value table in a
// local SQLite file. It stands in for browser local storage and is safe for
// concurrent use.
type StateStore struct {
	db      *sql.DB
	version uint
	logger  *log.Logger
}

var _ session.TokenStore = (*StateStore)(nil)

// NewStateStore opens (creating if needed) the state file at dbPath and
// migrates it to the current schema.
func NewStateStore(dbPath string, logger *log.Logger) (*StateStore, error) {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateState(dbPath, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &StateStore{db: db, version: version, logger: logger}, nil
}

// SchemaVersion is the migration version the store was opened at.
func (s *StateStore) SchemaVersion() uint {
	return s.version
}

func (s *StateStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *StateStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Token implements session.TokenStore
func (s *StateStore) Token(ctx context.Context) (string, error) {
	token, err := s.Get(ctx, session.TokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

// SetToken implements session.TokenStore
func (s *StateStore) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}
	if err := s.Set(ctx, session.TokenKey, token); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Auth token stored", "key", session.TokenKey)
	return nil
}

// ClearToken implements session.TokenStore
func (s *StateStore) ClearToken(ctx context.Context) error {
	if err := s.Delete(ctx, session.TokenKey); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Auth token cleared", "key", session.TokenKey)
	return nil
}
