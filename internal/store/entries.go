// ABOUTME: Conversation entry persistence, the append-only ledger behind context retrieval
// ABOUTME: Provides append, newest-first recent lookup, and per-chat summaries

package store

import (
	"context"
	"fmt"
	"time"
)

// entryTimeLayout is RFC3339 with fixed-width nanoseconds so that stored
// timestamps sort lexicographically. The pipeline relies on sub-second
// ordering between the inbound entry and the generated reply.
const entryTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = `id, bot_id, chat_id, sender_id, username, external_message_id, text, is_bot_response, timestamp`

// AppendEntry persists one conversation turn. Entries are never updated or
// deleted by the pipeline.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *ConversationEntry) error {
	query := `
		INSERT INTO conversation_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.BotID,
		entry.ChatID,
		entry.SenderID,
		entry.Username,
		entry.ExternalMessageID,
		entry.Text,
		boolToInt(entry.IsBotResponse),
		entry.Timestamp.UTC().Format(entryTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	s.logger.Debug("entry appended",
		"entry_id", entry.ID,
		"bot_id", entry.BotID,
		"chat_id", entry.ChatID,
		"is_bot_response", entry.IsBotResponse,
	)
	return nil
}

// RecentEntries retrieves the most recent entries for a (bot, chat) pair,
// newest first. Timestamp collisions fall back to insertion order via rowid.
func (s *SQLiteStore) RecentEntries(ctx context.Context, botID, chatID string, limit int) ([]*ConversationEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT ` + entryColumns + `
		FROM conversation_entries
		WHERE bot_id = ? AND chat_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, botID, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []*ConversationEntry
	for rows.Next() {
		entry := &ConversationEntry{}
		var timestampStr string
		var isBot int

		if err := rows.Scan(
			&entry.ID,
			&entry.BotID,
			&entry.ChatID,
			&entry.SenderID,
			&entry.Username,
			&entry.ExternalMessageID,
			&entry.Text,
			&isBot,
			&timestampStr,
		); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}

		entry.IsBotResponse = isBot != 0
		entry.Timestamp, err = time.Parse(entryTimeLayout, timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry rows: %w", err)
	}
	return entries, nil
}

// ListChats returns one summary per chat for a bot, newest conversation
// first. Used by the dashboard to show active conversations.
func (s *SQLiteStore) ListChats(ctx context.Context, botID string) ([]*ChatSummary, error) {
	// Pick the latest row per chat via a correlated rowid subquery so the
	// insertion-order tiebreak matches RecentEntries.
	query := `
		SELECT chat_id, sender_id, username, text, timestamp
		FROM conversation_entries ce
		WHERE bot_id = ?
		  AND rowid = (
			SELECT rowid FROM conversation_entries
			WHERE bot_id = ce.bot_id AND chat_id = ce.chat_id
			ORDER BY timestamp DESC, rowid DESC
			LIMIT 1
		  )
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("querying chats: %w", err)
	}
	defer rows.Close()

	var chats []*ChatSummary
	for rows.Next() {
		chat := &ChatSummary{}
		var timestampStr string

		if err := rows.Scan(
			&chat.ChatID,
			&chat.SenderID,
			&chat.Username,
			&chat.LastMessageText,
			&timestampStr,
		); err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}

		chat.LastMessageAt, err = time.Parse(entryTimeLayout, timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		chats = append(chats, chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat rows: %w", err)
	}
	return chats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
