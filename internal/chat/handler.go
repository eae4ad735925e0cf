package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"analyzer-backend/internal/llm"
	"analyzer-backend/internal/shared/server/respond"
)

// Handler serves the conversation API. Requests that carry their own history
// run against an ephemeral in-memory session; requests without history use
// the server-side transcript, so a bare client still gets continuity.
type Handler struct {
	Backend  llm.Client
	Resolver ContextResolver

	HistoryMax   int
	ContextChars int

	// persistent is the single session over the server-side store; all
	// history-less turns funnel through it so they serialize properly.
	persistent *Session
}

// NewHandler constructs a chat Handler around a backend and the server-side
// session store.
func NewHandler(backend llm.Client, persist SessionStore, resolver ContextResolver) *Handler {
	if persist == nil {
		persist = NewMemoryStore(nil)
	}
	h := &Handler{
		Backend:      backend,
		Resolver:     resolver,
		HistoryMax:   DefaultHistoryMax,
		ContextChars: DefaultContextChars,
	}
	h.persistent = NewSession(persist, backend)
	h.persistent.Resolver = resolver
	return h
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.chat)
	rg.GET("/chat/history", h.history)
	rg.POST("/chat/reset", h.reset)
}

type chatRequest struct {
	Message string        `json:"message"`
	History []chatMessage `json:"history"`
	Context string        `json:"context"`
}

type chatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "message is required", nil)
		return
	}

	sess := h.sessionFor(req.History)
	reply, err := sess.Send(c.Request.Context(), req.Message, req.Context)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "message is required", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process chat turn", nil)
		return
	}

	respond.OK(c, gin.H{
		"reply":     reply.Text,
		"timestamp": reply.Timestamp,
	})
}

func (h *Handler) history(c *gin.Context) {
	msgs, err := h.persistent.History()
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load history", nil)
		return
	}
	respond.OK(c, gin.H{"messages": msgs})
}

func (h *Handler) reset(c *gin.Context) {
	if err := h.persistent.Reset(); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to clear history", nil)
		return
	}
	respond.OK(c, gin.H{"success": true})
}

// sessionFor picks the session for one turn. Client-supplied history wins: it
// is seeded into a throwaway store so concurrent requests cannot interleave
// their transcripts. Without history the shared server-side session is used.
func (h *Handler) sessionFor(history []chatMessage) *Session {
	if len(history) == 0 {
		return h.persistent
	}

	seed := make([]Message, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		seed = append(seed, Message{Role: role, Text: m.Text})
	}

	sess := NewSession(NewMemoryStore(seed), h.Backend)
	sess.Resolver = h.Resolver
	if h.HistoryMax > 0 {
		sess.HistoryMax = h.HistoryMax
	}
	if h.ContextChars > 0 {
		sess.ContextChars = h.ContextChars
	}
	return sess
}
