package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"analyzer-backend/internal/llm"
)

const helpText = "Supported: /help, /sum a b, /upper text, time. Anything else is summarized locally."

// Bot is a deterministic reply backend used when no API key is configured.
// It answers a small command vocabulary and digests everything else, so both
// the chat endpoint and the analysis pipeline work offline.
type Bot struct {
	Now func() time.Time
}

// Complete answers the last user message in the assembled history.
func (b Bot) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := lastUserMessage(messages)
	if text == "" {
		return helpText, nil
	}
	if strings.HasPrefix(text, "/") {
		return b.command(text), nil
	}
	low := strings.ToLower(text)
	if low == "help" || strings.Contains(low, "time") {
		return b.command(text), nil
	}
	return digest(text), nil
}

func (b Bot) command(text string) string {
	low := strings.ToLower(text)
	switch {
	case text == "/help" || low == "help":
		return helpText
	case strings.HasPrefix(low, "/sum"):
		parts := strings.Fields(text)
		if len(parts) == 3 {
			a, errA := strconv.ParseFloat(parts[1], 64)
			c, errC := strconv.ParseFloat(parts[2], 64)
			if errA == nil && errC == nil {
				return fmt.Sprintf("%g + %g = %g", a, c, a+c)
			}
		}
		return "Usage: /sum 3 5"
	case strings.HasPrefix(low, "/upper"):
		payload := strings.TrimSpace(text[len("/upper"):])
		if payload == "" {
			return "Usage: /upper your sentence"
		}
		return strings.ToUpper(payload)
	case strings.Contains(low, "time"):
		now := time.Now
		if b.Now != nil {
			now = b.Now
		}
		return "Current time: " + now().Format("2006-01-02 15:04:05")
	default:
		return "Unknown command: " + text
	}
}

// digest produces a deterministic local summary of arbitrary input.
func digest(text string) string {
	words := len(strings.Fields(text))
	const limit = 400
	excerpt := text
	if len(excerpt) > limit {
		excerpt = excerpt[:limit] + "..."
	}
	return fmt.Sprintf("Summary (%d words): %s", words, excerpt)
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
