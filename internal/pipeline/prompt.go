// ABOUTME: Deterministic prompt assembly for the generation backend
// ABOUTME: Combines persona, recent turns, the current message, and knowledge snippets

package pipeline

import (
	"fmt"
	"strings"

	"github.com/docbot/docbot-gateway/internal/store"
)

const (
	// promptHistoryTurns is how many of the retrieved context entries make it
	// into the prompt.
	promptHistoryTurns = 5

	// maxKnowledgeDocs bounds the knowledge section.
	maxKnowledgeDocs = 2

	// knowledgeRuneLimit truncates each snippet body, with a trailing "..."
	// marker when cut.
	knowledgeRuneLimit = 1000
)

// BuildPrompt assembles the generation prompt from the persona descriptor,
// the chronological context entries, the current message body, and the bot's
// knowledge snippets. Identical inputs always yield identical output.
func BuildPrompt(persona string, history []*store.ConversationEntry, current string, docs []*store.KnowledgeSnippet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a general assistant with the following persona: %q.\n", persona)
	b.WriteString("Your goal is to provide helpful, conversational, and concise responses.\n")
	b.WriteString("You should always maintain your assigned persona.\n\n")

	b.WriteString("Conversation History (oldest first):\n")
	for _, entry := range lastTurns(history, promptHistoryTurns) {
		role := "User"
		if entry.IsBotResponse {
			role = "Bot"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, entry.Text)
	}
	fmt.Fprintf(&b, "User's latest message: %q\n", current)

	if len(docs) > 0 {
		b.WriteString("\nRelevant Documentation:\n")
		limit := min(len(docs), maxKnowledgeDocs)
		for i, doc := range docs[:limit] {
			fmt.Fprintf(&b, "Doc%d (%s):\n%s\n\n", i+1, doc.FileName, truncateRunes(doc.Body, knowledgeRuneLimit))
		}
	}

	b.WriteString("\nBased on the above, generate a direct conversational response.\n")
	b.WriteString("Do NOT use Markdown or HTML in your response.\n")
	b.WriteString("Be conversational and offer further assistance if appropriate.\n")
	b.WriteString("If you don't have enough information to provide a specific answer, state that politely.")

	return b.String()
}

// lastTurns returns the trailing n entries of history.
func lastTurns(history []*store.ConversationEntry, n int) []*store.ConversationEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// truncateRunes cuts s to at most limit runes, appending "..." when truncated.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
