// ABOUTME: Store interfaces and data types for docbot-gateway persistence
// ABOUTME: Defines BotProfile, ConversationEntry, KnowledgeSnippet and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrBotNotFound is returned when no bot matches the given API key or ID
var ErrBotNotFound = errors.New("bot not found")

// ErrDuplicateAPIKey is returned when creating a bot with an API key that is
// already registered to another bot
var ErrDuplicateAPIKey = errors.New("api key already registered")

// BotSender is the sender sentinel used for bot-authored conversation entries.
// User-authored entries carry the platform sender ID instead.
const BotSender = "bot"

// BotProfile identifies a configured bot: its channel API key, the persona
// the generation backend is asked to maintain, and the fallback reply used
// when generation fails or returns nothing.
type BotProfile struct {
	ID                string
	APIKey            string
	Name              string
	PersonalityPrompt string
	Persona           string
	Greeting          string
	Fallback          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ConversationEntry is one persisted turn in a conversation. Entries are
// append-only; the pipeline writes one for the inbound message and one for
// the generated reply. IsBotResponse is an explicit origin flag, not inferred
// from any other column.
type ConversationEntry struct {
	ID                string
	BotID             string
	ChatID            string
	SenderID          string
	Username          string
	ExternalMessageID string
	Text              string
	IsBotResponse     bool
	Timestamp         time.Time
}

// KnowledgeSnippet is a reference document attached to a bot. Read-only to
// the pipeline; truncation happens at prompt-assembly time, not here.
type KnowledgeSnippet struct {
	ID        string
	BotID     string
	FileName  string
	Body      string
	CreatedAt time.Time
}

// ChatSummary describes one conversation for the dashboard: the chat ID and
// its most recent entry.
type ChatSummary struct {
	ChatID          string
	SenderID        string
	Username        string
	LastMessageText string
	LastMessageAt   time.Time
}

// Store defines the persistence interface for bots, conversation entries,
// and knowledge documents.
type Store interface {
	// Bot profiles
	CreateBot(ctx context.Context, bot *BotProfile) error
	GetBot(ctx context.Context, id string) (*BotProfile, error)
	GetBotByAPIKey(ctx context.Context, apiKey string) (*BotProfile, error)
	UpdateBot(ctx context.Context, bot *BotProfile) error
	DeleteBot(ctx context.Context, id string) error
	ListBots(ctx context.Context) ([]*BotProfile, error)

	// Conversation entries (append-only ledger)
	AppendEntry(ctx context.Context, entry *ConversationEntry) error
	RecentEntries(ctx context.Context, botID, chatID string, limit int) ([]*ConversationEntry, error)
	ListChats(ctx context.Context, botID string) ([]*ChatSummary, error)

	// Knowledge documents
	AddDocument(ctx context.Context, doc *KnowledgeSnippet) error
	GetDocument(ctx context.Context, id string) (*KnowledgeSnippet, error)
	DocumentsForBot(ctx context.Context, botID string) ([]*KnowledgeSnippet, error)
	ListDocuments(ctx context.Context) ([]*KnowledgeSnippet, error)
	DeleteDocument(ctx context.Context, id string) error

	// Close releases any resources held by the store
	Close() error
}
