// Package store provides persistent storage for docbot-gateway using SQLite.
//
// # Data Models
//
//   - BotProfile: A configured bot keyed by its channel API key, carrying the
//     persona the generation backend maintains and the fallback reply.
//   - ConversationEntry: One turn in a conversation. Append-only; the origin
//     of a turn is the explicit IsBotResponse flag, never inferred from other
//     columns.
//   - KnowledgeSnippet: Reference documents attached to a bot, injected into
//     prompts by the pipeline.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Entry timestamps are stored in a fixed-width RFC3339 nanosecond layout so
// that string ordering matches chronological ordering; timestamp collisions
// fall back to rowid (insertion order).
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrBotNotFound: No bot matches the given API key or ID
//   - ErrDuplicateAPIKey: API key already registered to another bot
//
// All methods accept context.Context for cancellation support. Use
// NewSQLiteStore(":memory:") for tests.
package store
