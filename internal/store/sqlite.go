// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides bot/entry/document persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS bots (
			id                 TEXT PRIMARY KEY,
			api_key            TEXT NOT NULL UNIQUE,
			name               TEXT NOT NULL,
			personality_prompt TEXT NOT NULL DEFAULT '',
			persona            TEXT NOT NULL DEFAULT '',
			greeting           TEXT NOT NULL DEFAULT '',
			fallback           TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bots_api_key ON bots(api_key);

		CREATE TABLE IF NOT EXISTS conversation_entries (
			id                  TEXT PRIMARY KEY,
			bot_id              TEXT NOT NULL,
			chat_id             TEXT NOT NULL,
			sender_id           TEXT NOT NULL,
			username            TEXT NOT NULL DEFAULT '',
			external_message_id TEXT NOT NULL DEFAULT '',
			text                TEXT NOT NULL,
			is_bot_response     INTEGER NOT NULL DEFAULT 0,
			timestamp           TEXT NOT NULL,

			CHECK (is_bot_response IN (0, 1))
		);

		CREATE INDEX IF NOT EXISTS idx_entries_conversation
			ON conversation_entries(bot_id, chat_id, timestamp);

		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			bot_id     TEXT NOT NULL,
			file_name  TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_documents_bot ON documents(bot_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
