package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"analyzer-backend/internal/llm"
	"analyzer-backend/internal/shared/metrics"
	"analyzer-backend/internal/shared/telemetry"
)

const (
	// DefaultHistoryMax bounds how many stored turns are sent to the backend.
	DefaultHistoryMax = 20
	// DefaultContextChars bounds how much document context rides along.
	DefaultContextChars = 10000
)

// ContextResolver maps a client-supplied context reference (a job id) to
// document context for the prompt. It returns false when the reference does
// not resolve; the turn then proceeds without context.
type ContextResolver func(ref string) (string, bool)

// Session is one conversation. Turns are serialized: each Send appends the
// user message, performs exactly one backend call, and appends exactly one
// assistant message, so the transcript always alternates cleanly.
type Session struct {
	Store    SessionStore
	Backend  llm.Client
	Resolver ContextResolver

	HistoryMax   int
	ContextChars int

	mu sync.Mutex
}

// NewSession constructs a Session with default turn limits.
func NewSession(store SessionStore, backend llm.Client) *Session {
	return &Session{
		Store:        store,
		Backend:      backend,
		HistoryMax:   DefaultHistoryMax,
		ContextChars: DefaultContextChars,
	}
}

// ErrEmptyMessage rejects blank user input before it reaches the transcript.
var ErrEmptyMessage = errors.New("empty message")

// Send runs one conversation turn. The user message is committed before the
// backend is called; if the backend fails, a synthetic assistant message
// records the failure so the transcript stays consistent.
func (s *Session) Send(ctx context.Context, text, contextRef string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userMsg := UserMessage(text)
	if err := s.Store.Append(userMsg); err != nil {
		return Message{}, err
	}

	prompt, err := s.assemblePrompt(contextRef)
	if err != nil {
		return Message{}, err
	}

	metrics.IncChatTurn()
	reply, err := s.Backend.Complete(ctx, prompt)
	if err != nil {
		metrics.IncChatTurnFailed()
		telemetry.Error("chat.turn_failed", map[string]any{"err": err.Error()})
		failMsg := AssistantMessage("Sorry, I could not generate a reply. Please try again.")
		if appendErr := s.Store.Append(failMsg); appendErr != nil {
			return Message{}, appendErr
		}
		return failMsg, nil
	}

	assistantMsg := AssistantMessage(strings.TrimSpace(reply))
	if err := s.Store.Append(assistantMsg); err != nil {
		return Message{}, err
	}
	return assistantMsg, nil
}

// History returns the transcript, oldest first.
func (s *Session) History() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Store.Load()
}

// Reset clears the transcript.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Store.Clear()
}

// assemblePrompt builds the backend request: system prompt, optional document
// context, then the most recent turns including the just-appended user input.
func (s *Session) assemblePrompt(contextRef string) ([]llm.Message, error) {
	history, err := s.Store.Load()
	if err != nil {
		return nil, err
	}

	limit := s.HistoryMax
	if limit <= 0 {
		limit = DefaultHistoryMax
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: llm.ChatSystemPrompt})

	if docCtx := s.resolveContext(contextRef); docCtx != "" {
		prompt = append(prompt, llm.Message{
			Role:    llm.RoleSystem,
			Content: "The user is discussing this document analysis:\n\n" + docCtx,
		})
	}

	for _, m := range history {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		prompt = append(prompt, llm.Message{Role: role, Content: m.Text})
	}
	return prompt, nil
}

func (s *Session) resolveContext(contextRef string) string {
	contextRef = strings.TrimSpace(contextRef)
	if contextRef == "" || s.Resolver == nil {
		return ""
	}
	docCtx, ok := s.Resolver(contextRef)
	if !ok {
		return ""
	}
	limit := s.ContextChars
	if limit <= 0 {
		limit = DefaultContextChars
	}
	if len(docCtx) > limit {
		docCtx = docCtx[:limit]
	}
	return docCtx
}
