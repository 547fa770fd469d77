package chat

import (
	"fmt"

	"github.com/suPer8Hu/ai-tutor/internal/ai"
	"github.com/suPer8Hu/ai-tutor/internal/content"
)

func systemPrompt(c *content.Content) string {
	return fmt.Sprintf(`You are an expert tutor teaching the user about %q.
Summary of the topic: %s.

Your goal is to explain concepts clearly, answer questions, and check understanding.
Be encouraging and concise.`, c.Title, c.Summary)
}

// seedTurn stands in for the user when a lesson starts with no messages.
func seedTurn(c *content.Content) ai.Message {
	return ai.Message{
		Role:    ai.RoleUser,
		Content: fmt.Sprintf("Please introduce the topic %q and start the lesson. Be concise and engaging.", c.Title),
	}
}

// buildPrompt prepends the system prompt to the client's turns, keeping only
// the last historyLimit turns when historyLimit > 0.
func buildPrompt(c *content.Content, turns []ai.Message, historyLimit int) []ai.Message {
	if historyLimit > 0 && len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}
	out := make([]ai.Message, 0, len(turns)+2)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: systemPrompt(c)})
	if len(turns) == 0 {
		return append(out, seedTurn(c))
	}
	return append(out, turns...)
}
