package chat

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const transcriptFileName = "chat_history.json"

// transcriptFile is the on-disk shape of a saved conversation.
type transcriptFile struct {
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore is a JSON-on-disk SessionStore holding one transcript under a
// fixed file name. A missing or corrupt file reads as an empty transcript;
// the next Append rewrites it.
type FileStore struct {
	mu   sync.Mutex
	Root string
}

// NewFileStore constructs a FileStore rooted at dir. An empty dir falls back
// to a per-user data directory.
func NewFileStore(dir string) *FileStore {
	if strings.TrimSpace(dir) == "" {
		dir = defaultStoreRoot()
	}
	return &FileStore{Root: dir}
}

func defaultStoreRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "analyzer-backend", "sessions")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "analyzer-backend", "sessions")
	}
	return filepath.Join(os.TempDir(), "analyzer-backend", "sessions")
}

func (s *FileStore) path() string {
	return filepath.Join(s.Root, transcriptFileName)
}

func (s *FileStore) Load() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() ([]Message, error) {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Message{}, nil
		}
		return nil, err
	}
	var payload transcriptFile
	if err := json.Unmarshal(b, &payload); err != nil {
		// Unreadable history is dropped rather than wedging the session.
		return []Message{}, nil
	}
	if payload.Messages == nil {
		return []Message{}, nil
	}
	return payload.Messages, nil
}

func (s *FileStore) Append(msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	payload := transcriptFile{
		Messages:  append(existing, msgs...),
		UpdatedAt: time.Now().UTC(),
	}
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), b, 0o644)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
