package llm

import "context"

// Roles used in chat transcripts and prompts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to the backend.
type Message struct {
	Role    string
	Content string
}

// Client abstracts reply-generation backends. A backend receives the full
// assembled history and returns exactly one completion.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
