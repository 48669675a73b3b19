// ABOUTME: ConversationPipeline orchestrating inbound message handling
// ABOUTME: Resolve bot, persist, assemble context, generate, persist, chunk, deliver

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docbot/docbot-gateway/internal/store"
)

// contextWindow is how many recent entries are retrieved for a conversation.
const contextWindow = 10

// DefaultFallback is used when a bot has no configured fallback text.
const DefaultFallback = "Sorry, I didn't quite understand that."

// ErrMalformedMessage is returned for inbound messages missing a sender or
// conversation identifier. Fatal for the run.
var ErrMalformedMessage = errors.New("malformed inbound message")

// State is the pipeline's position when a run ends.
type State string

const (
	StateShortCircuited State = "short_circuited"
	StateDelivered      State = "delivered"
	StateFailed         State = "failed"
)

// InboundMessage is one externally received chat message.
type InboundMessage struct {
	ExternalMessageID string
	SenderID          string
	Username          string
	ChatID            string
	Text              string
	Timestamp         time.Time
}

// Outcome summarizes one pipeline run.
type Outcome struct {
	State        State
	BotID        string
	Reply        string
	ChunksSent   int
	ChunksFailed int
	Info         string
}

// BotResolver looks up a bot profile by its channel API key.
type BotResolver interface {
	GetBotByAPIKey(ctx context.Context, apiKey string) (*store.BotProfile, error)
}

// ContextStore is the append-only conversation ledger the pipeline reads and
// writes.
type ContextStore interface {
	AppendEntry(ctx context.Context, entry *store.ConversationEntry) error
	RecentEntries(ctx context.Context, botID, chatID string, limit int) ([]*store.ConversationEntry, error)
}

// KnowledgeStore provides the reference documents attached to a bot.
type KnowledgeStore interface {
	DocumentsForBot(ctx context.Context, botID string) ([]*store.KnowledgeSnippet, error)
}

// Generator is the opaque text-generation call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChannelClient delivers one chunk to a conversation on the origin channel.
type ChannelClient interface {
	SendMessage(ctx context.Context, token, chatID, text string) error
}

// Pipeline drives one inbound message through context retrieval, generation,
// persistence, and chunked delivery. Each run is independent; the pipeline
// holds no per-conversation state.
type Pipeline struct {
	bots      BotResolver
	entries   ContextStore
	knowledge KnowledgeStore
	generator Generator
	channel   ChannelClient
	logger    *slog.Logger
}

// New creates a Pipeline wired to its collaborators.
func New(bots BotResolver, entries ContextStore, knowledge KnowledgeStore, generator Generator, channel ChannelClient) *Pipeline {
	return &Pipeline{
		bots:      bots,
		entries:   entries,
		knowledge: knowledge,
		generator: generator,
		channel:   channel,
		logger:    slog.Default().With("component", "pipeline"),
	}
}

// Handle runs the full pipeline for one inbound message. Bot resolution and
// malformed input are the only fatal failures; persistence, context,
// knowledge, generation, and delivery faults degrade and the run continues
// with the best available substitute.
func (p *Pipeline) Handle(ctx context.Context, apiKey string, msg *InboundMessage) (*Outcome, error) {
	bot, err := p.bots.GetBotByAPIKey(ctx, apiKey)
	if err != nil {
		return &Outcome{State: StateFailed}, fmt.Errorf("resolving bot: %w", err)
	}

	logger := p.logger.With("bot_id", bot.ID, "chat_id", msg.ChatID)

	if strings.TrimSpace(msg.Text) == "" {
		logger.Info("no message text to process, skipping")
		return &Outcome{State: StateShortCircuited, BotID: bot.ID, Info: "no text to process"}, nil
	}

	if msg.SenderID == "" || msg.ChatID == "" {
		return &Outcome{State: StateFailed, BotID: bot.ID}, fmt.Errorf("%w: missing sender or chat id", ErrMalformedMessage)
	}

	inboundAt := msg.Timestamp
	if inboundAt.IsZero() {
		inboundAt = time.Now().UTC()
	}

	inbound := &store.ConversationEntry{
		ID:                uuid.NewString(),
		BotID:             bot.ID,
		ChatID:            msg.ChatID,
		SenderID:          msg.SenderID,
		Username:          msg.Username,
		ExternalMessageID: msg.ExternalMessageID,
		Text:              msg.Text,
		IsBotResponse:     false,
		Timestamp:         inboundAt,
	}
	if err := p.entries.AppendEntry(ctx, inbound); err != nil {
		logger.Warn("failed to persist inbound entry, continuing", "error", err)
	}

	history := p.loadContext(ctx, logger, bot.ID, msg)
	docs := p.loadKnowledge(ctx, logger, bot.ID)

	persona := bot.Persona
	if persona == "" {
		persona = bot.PersonalityPrompt
	}
	prompt := BuildPrompt(persona, history, msg.Text, docs)

	reply := p.generate(ctx, logger, bot, prompt)

	outboundAt := time.Now().UTC()
	if !outboundAt.After(inboundAt) {
		outboundAt = inboundAt.Add(time.Millisecond)
	}
	outbound := &store.ConversationEntry{
		ID:            uuid.NewString(),
		BotID:         bot.ID,
		ChatID:        msg.ChatID,
		SenderID:      store.BotSender,
		Text:          reply,
		IsBotResponse: true,
		Timestamp:     outboundAt,
	}
	if err := p.entries.AppendEntry(ctx, outbound); err != nil {
		logger.Warn("failed to persist outbound entry, continuing", "error", err)
	}

	sent, failed := p.deliver(ctx, logger, bot.APIKey, msg.ChatID, reply)

	return &Outcome{
		State:        StateDelivered,
		BotID:        bot.ID,
		Reply:        reply,
		ChunksSent:   sent,
		ChunksFailed: failed,
	}, nil
}

// loadContext retrieves the recent conversation window, drops any entry that
// duplicates the current inbound message, and reverses to chronological
// order. A store failure yields an empty context.
func (p *Pipeline) loadContext(ctx context.Context, logger *slog.Logger, botID string, msg *InboundMessage) []*store.ConversationEntry {
	recent, err := p.entries.RecentEntries(ctx, botID, msg.ChatID, contextWindow)
	if err != nil {
		logger.Warn("failed to load context, proceeding without it", "error", err)
		return nil
	}

	history := make([]*store.ConversationEntry, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		entry := recent[i]
		if entry.SenderID == msg.SenderID && entry.Text == msg.Text {
			continue
		}
		history = append(history, entry)
	}
	return history
}

// loadKnowledge fetches the bot's documents; a failure yields no knowledge
// section.
func (p *Pipeline) loadKnowledge(ctx context.Context, logger *slog.Logger, botID string) []*store.KnowledgeSnippet {
	docs, err := p.knowledge.DocumentsForBot(ctx, botID)
	if err != nil {
		logger.Warn("failed to load knowledge documents, proceeding without them", "error", err)
		return nil
	}
	return docs
}

// generate calls the backend once, no retries. Empty output and failures both
// degrade to the bot's fallback text.
func (p *Pipeline) generate(ctx context.Context, logger *slog.Logger, bot *store.BotProfile, prompt string) string {
	fallback := bot.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("generation failed, using fallback", "error", err)
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		logger.Warn("generation returned empty output, using fallback")
		return fallback
	}
	return text
}

// deliver splits the reply and sends each chunk in order. A failed chunk is
// logged and does not stop the remaining sends.
func (p *Pipeline) deliver(ctx context.Context, logger *slog.Logger, token, chatID, reply string) (sent, failed int) {
	for i, chunk := range SplitMessage(reply, MaxChunkLen) {
		if err := p.channel.SendMessage(ctx, token, chatID, chunk); err != nil {
			logger.Warn("failed to deliver chunk", "chunk", i, "error", err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}
