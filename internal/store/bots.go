// ABOUTME: Bot profile persistence for the SQLite store
// ABOUTME: CRUD plus API-key lookup, the flat namespace the webhook resolves bots through

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const botColumns = `id, api_key, name, personality_prompt, persona, greeting, fallback, created_at, updated_at`

// CreateBot inserts a new bot profile. Returns ErrDuplicateAPIKey if the
// API key is already registered to another bot.
func (s *SQLiteStore) CreateBot(ctx context.Context, bot *BotProfile) error {
	query := `
		INSERT INTO bots (` + botColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		bot.ID,
		bot.APIKey,
		bot.Name,
		bot.PersonalityPrompt,
		bot.Persona,
		bot.Greeting,
		bot.Fallback,
		bot.CreatedAt.Format(time.RFC3339),
		bot.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateAPIKey
		}
		return fmt.Errorf("inserting bot: %w", err)
	}

	s.logger.Debug("bot created", "bot_id", bot.ID, "name", bot.Name)
	return nil
}

// GetBot retrieves a bot profile by ID
func (s *SQLiteStore) GetBot(ctx context.Context, id string) (*BotProfile, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = ?`
	return s.scanBot(s.db.QueryRowContext(ctx, query, id))
}

// GetBotByAPIKey retrieves the bot profile registered under the given channel
// API key. This is the lookup the inbound webhook resolves bots through.
func (s *SQLiteStore) GetBotByAPIKey(ctx context.Context, apiKey string) (*BotProfile, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE api_key = ?`
	return s.scanBot(s.db.QueryRowContext(ctx, query, apiKey))
}

// UpdateBot replaces the mutable fields of a bot profile
func (s *SQLiteStore) UpdateBot(ctx context.Context, bot *BotProfile) error {
	query := `
		UPDATE bots
		SET api_key = ?, name = ?, personality_prompt = ?, persona = ?,
		    greeting = ?, fallback = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		bot.APIKey,
		bot.Name,
		bot.PersonalityPrompt,
		bot.Persona,
		bot.Greeting,
		bot.Fallback,
		time.Now().UTC().Format(time.RFC3339),
		bot.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateAPIKey
		}
		return fmt.Errorf("updating bot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrBotNotFound
	}
	return nil
}

// DeleteBot removes a bot profile along with its documents and entries
func (s *SQLiteStore) DeleteBot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrBotNotFound
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE bot_id = ?`, id); err != nil {
		return fmt.Errorf("deleting bot documents: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_entries WHERE bot_id = ?`, id); err != nil {
		return fmt.Errorf("deleting bot entries: %w", err)
	}

	s.logger.Debug("bot deleted", "bot_id", id)
	return nil
}

// ListBots returns all bot profiles ordered by creation time
func (s *SQLiteStore) ListBots(ctx context.Context) ([]*BotProfile, error) {
	query := `SELECT ` + botColumns + ` FROM bots ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying bots: %w", err)
	}
	defer rows.Close()

	var bots []*BotProfile
	for rows.Next() {
		bot, err := s.scanBotRow(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bot rows: %w", err)
	}
	return bots, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanBot(row *sql.Row) (*BotProfile, error) {
	bot, err := s.scanBotFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrBotNotFound
	}
	return bot, err
}

func (s *SQLiteStore) scanBotRow(rows *sql.Rows) (*BotProfile, error) {
	return s.scanBotFrom(rows)
}

func (s *SQLiteStore) scanBotFrom(row rowScanner) (*BotProfile, error) {
	bot := &BotProfile{}
	var createdStr, updatedStr string

	err := row.Scan(
		&bot.ID,
		&bot.APIKey,
		&bot.Name,
		&bot.PersonalityPrompt,
		&bot.Persona,
		&bot.Greeting,
		&bot.Fallback,
		&createdStr,
		&updatedStr,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bot row: %w", err)
	}

	if bot.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if bot.UpdatedAt, err = time.Parse(time.RFC3339, updatedStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return bot, nil
}
