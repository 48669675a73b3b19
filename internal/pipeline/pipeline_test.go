// ABOUTME: Tests for the conversation pipeline orchestrator
// ABOUTME: Uses in-memory fakes for store, backend, and channel collaborators

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot/docbot-gateway/internal/store"
)

type fakeResolver struct {
	bot   *store.BotProfile
	calls int
}

func (f *fakeResolver) GetBotByAPIKey(_ context.Context, apiKey string) (*store.BotProfile, error) {
	f.calls++
	if f.bot == nil || f.bot.APIKey != apiKey {
		return nil, store.ErrBotNotFound
	}
	return f.bot, nil
}

type fakeEntries struct {
	appended  []*store.ConversationEntry
	recent    []*store.ConversationEntry
	appendErr error
	recentErr error
	reads     int
}

func (f *fakeEntries) AppendEntry(_ context.Context, entry *store.ConversationEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, entry)
	return nil
}

func (f *fakeEntries) RecentEntries(_ context.Context, _, _ string, _ int) ([]*store.ConversationEntry, error) {
	f.reads++
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.recent, nil
}

type fakeKnowledge struct {
	docs []*store.KnowledgeSnippet
	err  error
}

func (f *fakeKnowledge) DocumentsForBot(_ context.Context, _ string) ([]*store.KnowledgeSnippet, error) {
	return f.docs, f.err
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type sentChunk struct {
	token  string
	chatID string
	text   string
}

type fakeChannel struct {
	calls   int
	sent    []sentChunk
	failIdx map[int]error
}

func (f *fakeChannel) SendMessage(_ context.Context, token, chatID, text string) error {
	idx := f.calls
	f.calls++
	if err, ok := f.failIdx[idx]; ok {
		return err
	}
	f.sent = append(f.sent, sentChunk{token: token, chatID: chatID, text: text})
	return nil
}

func testBot() *store.BotProfile {
	return &store.BotProfile{
		ID:       "bot-1",
		APIKey:   "tg-token-1",
		Name:     "Helper",
		Persona:  `{"tone":"friendly"}`,
		Fallback: "Let me get back to you on that.",
	}
}

func testMessage(text string) *InboundMessage {
	return &InboundMessage{
		ExternalMessageID: "42",
		SenderID:          "555",
		Username:          "ada",
		ChatID:            "9001",
		Text:              text,
		Timestamp:         time.Now().UTC().Add(-time.Second),
	}
}

func newTestPipeline(resolver *fakeResolver, entries *fakeEntries, knowledge *fakeKnowledge, gen *fakeGenerator, channel *fakeChannel) *Pipeline {
	return New(resolver, entries, knowledge, gen, channel)
}

func TestHandle_HappyPath(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{}
	gen := &fakeGenerator{reply: "We open at 9am."}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, channel)

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("when do you open?"))
	require.NoError(t, err)

	assert.Equal(t, StateDelivered, outcome.State)
	assert.Equal(t, "bot-1", outcome.BotID)
	assert.Equal(t, "We open at 9am.", outcome.Reply)
	assert.Equal(t, 1, outcome.ChunksSent)
	assert.Zero(t, outcome.ChunksFailed)

	// Exactly two entries: inbound then outbound.
	require.Len(t, entries.appended, 2)
	inbound, outbound := entries.appended[0], entries.appended[1]
	assert.Equal(t, "555", inbound.SenderID)
	assert.False(t, inbound.IsBotResponse)
	assert.Equal(t, "when do you open?", inbound.Text)
	assert.Equal(t, store.BotSender, outbound.SenderID)
	assert.True(t, outbound.IsBotResponse)
	assert.Equal(t, "We open at 9am.", outbound.Text)
	assert.True(t, outbound.Timestamp.After(inbound.Timestamp))

	require.Len(t, channel.sent, 1)
	assert.Equal(t, "tg-token-1", channel.sent[0].token)
	assert.Equal(t, "9001", channel.sent[0].chatID)
	assert.Equal(t, "We open at 9am.", channel.sent[0].text)
}

func TestHandle_BotNotFound(t *testing.T) {
	resolver := &fakeResolver{}
	entries := &fakeEntries{}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, &fakeGenerator{}, channel)

	outcome, err := p.Handle(context.Background(), "unknown-key", testMessage("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrBotNotFound)
	assert.Equal(t, StateFailed, outcome.State)

	// No store or channel activity after a failed resolution.
	assert.Empty(t, entries.appended)
	assert.Zero(t, entries.reads)
	assert.Empty(t, channel.sent)
}

func TestHandle_EmptyTextShortCircuits(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{}
	gen := &fakeGenerator{reply: "should never be used"}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, channel)

	for _, text := range []string{"", "   ", "\n\t "} {
		outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage(text))
		require.NoError(t, err)
		assert.Equal(t, StateShortCircuited, outcome.State)
		assert.Equal(t, "no text to process", outcome.Info)
	}

	assert.Empty(t, gen.prompts)
	assert.Empty(t, entries.appended)
	assert.Empty(t, channel.sent)
}

func TestHandle_MissingSenderIsMalformed(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	p := newTestPipeline(resolver, &fakeEntries{}, &fakeKnowledge{}, &fakeGenerator{}, &fakeChannel{})

	msg := testMessage("hi")
	msg.SenderID = ""

	outcome, err := p.Handle(context.Background(), "tg-token-1", msg)
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.Equal(t, StateFailed, outcome.State)
}

func TestHandle_EmptyGenerationUsesFallback(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{}
	gen := &fakeGenerator{reply: "   "}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, channel)

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, "Let me get back to you on that.", outcome.Reply)
	require.Len(t, channel.sent, 1)
	assert.Equal(t, "Let me get back to you on that.", channel.sent[0].text)
}

func TestHandle_GenerationErrorUsesFallback(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	gen := &fakeGenerator{err: errors.New("backend down")}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, &fakeEntries{}, &fakeKnowledge{}, gen, channel)

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Let me get back to you on that.", outcome.Reply)
}

func TestHandle_DefaultFallbackWhenUnconfigured(t *testing.T) {
	bot := testBot()
	bot.Fallback = ""
	resolver := &fakeResolver{bot: bot}
	gen := &fakeGenerator{reply: ""}
	p := newTestPipeline(resolver, &fakeEntries{}, &fakeKnowledge{}, gen, &fakeChannel{})

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFallback, outcome.Reply)
}

func TestHandle_PersistenceFailureDoesNotBlockReply(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{appendErr: errors.New("disk full")}
	gen := &fakeGenerator{reply: "still answering"}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, channel)

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, StateDelivered, outcome.State)
	require.Len(t, channel.sent, 1)
	assert.Equal(t, "still answering", channel.sent[0].text)
}

func TestHandle_ContextFailureProceedsWithBareMessage(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{recentErr: errors.New("query timeout")}
	gen := &fakeGenerator{reply: "answered anyway"}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, &fakeChannel{})

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, "answered anyway", outcome.Reply)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `User's latest message: "hello"`)
}

func TestHandle_KnowledgeFailureProceedsWithoutDocs(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	knowledge := &fakeKnowledge{err: errors.New("docs unavailable")}
	gen := &fakeGenerator{reply: "fine"}
	p := newTestPipeline(resolver, &fakeEntries{}, knowledge, gen, &fakeChannel{})

	_, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.NotContains(t, gen.prompts[0], "Relevant Documentation")
}

func TestHandle_ContextExcludesCurrentMessage(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{
		recent: []*store.ConversationEntry{
			// Newest first, as the store returns them.
			{SenderID: "555", Text: "repeat me"},
			{SenderID: store.BotSender, Text: "earlier bot reply", IsBotResponse: true},
			{SenderID: "555", Text: "earlier question"},
		},
	}
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, &fakeChannel{})

	msg := testMessage("repeat me")
	_, err := p.Handle(context.Background(), "tg-token-1", msg)
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	// The current message appears once, as the latest message, not in history.
	assert.Equal(t, 1, strings.Count(prompt, "repeat me"))
	// History is chronological: the older question precedes the bot reply.
	assert.Less(t, strings.Index(prompt, "earlier question"), strings.Index(prompt, "earlier bot reply"))
}

func TestHandle_SameTextDifferentSenderKept(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{
		recent: []*store.ConversationEntry{
			{SenderID: "777", Text: "repeat me"},
		},
	}
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, &fakeChannel{})

	_, err := p.Handle(context.Background(), "tg-token-1", testMessage("repeat me"))
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Equal(t, 2, strings.Count(gen.prompts[0], "repeat me"))
}

func TestHandle_LongReplyChunkedInOrder(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	reply := strings.Repeat("a", MaxChunkLen) + strings.Repeat("b", 100)
	gen := &fakeGenerator{reply: reply}
	channel := &fakeChannel{}
	p := newTestPipeline(resolver, &fakeEntries{}, &fakeKnowledge{}, gen, channel)

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.ChunksSent)
	require.Len(t, channel.sent, 2)
	assert.Equal(t, reply, channel.sent[0].text+channel.sent[1].text)
}

func TestHandle_PartialDeliveryContinues(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	reply := strings.Repeat("a", MaxChunkLen*2+10)
	gen := &fakeGenerator{reply: reply}
	channel := &fakeChannel{failIdx: map[int]error{0: errors.New("network blip")}}
	p := newTestPipeline(resolver, &fakeEntries{}, &fakeKnowledge{}, gen, channel)

	outcome, err := p.Handle(context.Background(), "tg-token-1", testMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, StateDelivered, outcome.State)
	assert.Equal(t, 2, outcome.ChunksSent)
	assert.Equal(t, 1, outcome.ChunksFailed)
	assert.Len(t, channel.sent, 2)
}

func TestHandle_OutboundTimestampAlwaysAfterInbound(t *testing.T) {
	resolver := &fakeResolver{bot: testBot()}
	entries := &fakeEntries{}
	gen := &fakeGenerator{reply: "ok"}
	p := newTestPipeline(resolver, entries, &fakeKnowledge{}, gen, &fakeChannel{})

	// Inbound stamped in the future; the outbound key must still sort after it.
	msg := testMessage("hello")
	msg.Timestamp = time.Now().UTC().Add(time.Hour)

	_, err := p.Handle(context.Background(), "tg-token-1", msg)
	require.NoError(t, err)

	require.Len(t, entries.appended, 2)
	assert.True(t, entries.appended[1].Timestamp.After(entries.appended[0].Timestamp))
}
