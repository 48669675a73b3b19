// ABOUTME: Tests for prompt assembly
// ABOUTME: Covers history windowing, knowledge truncation, and determinism

package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot/docbot-gateway/internal/store"
)

func userTurn(text string) *store.ConversationEntry {
	return &store.ConversationEntry{SenderID: "555", Text: text}
}

func botTurn(text string) *store.ConversationEntry {
	return &store.ConversationEntry{SenderID: store.BotSender, Text: text, IsBotResponse: true}
}

func TestBuildPrompt_RoleTags(t *testing.T) {
	history := []*store.ConversationEntry{
		userTurn("hi there"),
		botTurn("hello, how can I help?"),
	}

	prompt := BuildPrompt("friendly helper", history, "what time do you open?", nil)

	assert.Contains(t, prompt, `persona: "friendly helper"`)
	assert.Contains(t, prompt, "User: hi there\n")
	assert.Contains(t, prompt, "Bot: hello, how can I help?\n")
	assert.Contains(t, prompt, `User's latest message: "what time do you open?"`)
	assert.NotContains(t, prompt, "Relevant Documentation")
}

func TestBuildPrompt_UsesOnlyLastFiveTurns(t *testing.T) {
	var history []*store.ConversationEntry
	for i := 1; i <= 8; i++ {
		history = append(history, userTurn(fmt.Sprintf("turn-%d", i)))
	}

	prompt := BuildPrompt("p", history, "current", nil)

	assert.NotContains(t, prompt, "turn-3")
	for i := 4; i <= 8; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("turn-%d", i))
	}
}

func TestBuildPrompt_KnowledgeTruncation(t *testing.T) {
	long := strings.Repeat("k", 1500)
	docs := []*store.KnowledgeSnippet{
		{FileName: "faq.md", Body: long},
		{FileName: "hours.md", Body: "open 9-5"},
	}

	prompt := BuildPrompt("p", nil, "q", docs)

	assert.Contains(t, prompt, "Doc1 (faq.md):\n"+strings.Repeat("k", 1000)+"...")
	assert.Contains(t, prompt, "Doc2 (hours.md):\nopen 9-5")
	assert.NotContains(t, prompt, strings.Repeat("k", 1001))
}

func TestBuildPrompt_AtMostTwoDocs(t *testing.T) {
	docs := []*store.KnowledgeSnippet{
		{FileName: "a.md", Body: "alpha"},
		{FileName: "b.md", Body: "beta"},
		{FileName: "c.md", Body: "gamma"},
	}

	prompt := BuildPrompt("p", nil, "q", docs)

	assert.Contains(t, prompt, "Doc1 (a.md)")
	assert.Contains(t, prompt, "Doc2 (b.md)")
	assert.NotContains(t, prompt, "c.md")
}

func TestBuildPrompt_ShortDocNotTruncated(t *testing.T) {
	exact := strings.Repeat("x", 1000)
	docs := []*store.KnowledgeSnippet{{FileName: "d.md", Body: exact}}

	prompt := BuildPrompt("p", nil, "q", docs)
	assert.Contains(t, prompt, exact+"\n")
	assert.NotContains(t, prompt, exact+"...")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	history := []*store.ConversationEntry{userTurn("a"), botTurn("b")}
	docs := []*store.KnowledgeSnippet{{FileName: "d.md", Body: "doc body"}}

	first := BuildPrompt("persona", history, "msg", docs)
	second := BuildPrompt("persona", history, "msg", docs)
	require.Equal(t, first, second)
}

func TestBuildPrompt_PlainTextInstruction(t *testing.T) {
	prompt := BuildPrompt("p", nil, "q", nil)
	assert.Contains(t, prompt, "Do NOT use Markdown or HTML")
}
