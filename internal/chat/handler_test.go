package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

var errTestBackend = errors.New("backend unavailable")

func newChatRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func postChat(t *testing.T, r *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatEndpointReplies(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"hello back"}}
	r := newChatRouter(NewHandler(backend, NewMemoryStore(nil), nil))

	w := postChat(t, r, gin.H{"message": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "hello back" {
		t.Fatalf("reply = %q", resp.Reply)
	}
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	r := newChatRouter(NewHandler(&scriptedBackend{}, NewMemoryStore(nil), nil))

	for _, body := range []gin.H{{}, {"message": "   "}} {
		w := postChat(t, r, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d for body %v", w.Code, body)
		}
	}
}

func TestChatEndpointClientHistory(t *testing.T) {
	backend := &scriptedBackend{}
	store := NewMemoryStore(nil)
	r := newChatRouter(NewHandler(backend, store, nil))

	w := postChat(t, r, gin.H{
		"message": "next question",
		"history": []gin.H{
			{"role": "user", "text": "first question"},
			{"role": "assistant", "text": "first answer"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	prompt := backend.lastPrompt()
	// system + 2 seeded turns + new user message
	if len(prompt) != 4 {
		t.Fatalf("prompt length = %d", len(prompt))
	}
	if prompt[1].Content != "first question" || prompt[2].Content != "first answer" {
		t.Fatalf("seeded history missing: %+v", prompt)
	}

	// Request-scoped history never leaks into the server-side transcript.
	msgs, _ := store.Load()
	if len(msgs) != 0 {
		t.Fatalf("server transcript polluted: %v", msgs)
	}
}

func TestChatEndpointServerTranscript(t *testing.T) {
	backend := &scriptedBackend{}
	store := NewMemoryStore(nil)
	r := newChatRouter(NewHandler(backend, store, nil))

	for _, msg := range []string{"one", "two"} {
		w := postChat(t, r, gin.H{"message": msg})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("transcript length = %d, want 4", len(resp.Messages))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	msgs, _ := store.Load()
	if len(msgs) != 0 {
		t.Fatalf("transcript survived reset: %v", msgs)
	}
}

func TestChatEndpointBackendFailure(t *testing.T) {
	backend := &scriptedBackend{err: errTestBackend}
	store := NewMemoryStore(nil)
	r := newChatRouter(NewHandler(backend, store, nil))

	w := postChat(t, r, gin.H{"message": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply == "" {
		t.Fatal("no synthetic reply on backend failure")
	}

	msgs, _ := store.Load()
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("transcript inconsistent after failure: %v", msgs)
	}
}
