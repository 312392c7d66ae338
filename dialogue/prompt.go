package dialogue

import (
	"strings"

	"github.com/room4-2/OpenCanteen/session"
)

const systemPrompt = `You are a friendly assistant for the campus cafeteria. You answer questions about food, the menu and campus dining, and you help students place delivery orders.

Rules:
- Never state a price or availability that is not in the verified tool context below. If an item is listed as not on the menu, say it is unavailable; do not offer similar-sounding items as if they were available.
- Keep answers short and conversational.
- Stay on topic: campus dining. Politely redirect anything else.`

// buildPrompt assembles the augmented prompt for one turn: system prompt,
// verified tool contexts, the session's conversation log, then the new
// user message.
func buildPrompt(contexts []string, history []session.Turn, userMessage string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	for _, ctx := range contexts {
		b.WriteString("\n\n")
		b.WriteString(ctx)
	}
	b.WriteString("\nCHAT HISTORY: \n")
	for _, turn := range history {
		switch turn.Role {
		case session.RoleUser:
			b.WriteString("User: " + turn.Text + "\n")
		case session.RoleAssistant:
			b.WriteString("Assistant: " + turn.Text + "\n")
		}
	}
	b.WriteString("User: " + userMessage + "\nAssistant:")
	return b.String()
}
