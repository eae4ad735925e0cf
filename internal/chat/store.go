package chat

import "sync"

// SessionStore persists a single conversation transcript in order.
type SessionStore interface {
	// Load returns the full transcript, oldest first. A store with nothing
	// saved returns an empty slice, not an error.
	Load() ([]Message, error)
	// Append adds messages to the end of the transcript.
	Append(msgs ...Message) error
	// Clear removes the transcript.
	Clear() error
}

// MemoryStore keeps the transcript in memory. Used for the stateless HTTP
// path, where each request carries its own history.
type MemoryStore struct {
	mu   sync.Mutex
	msgs []Message
}

// NewMemoryStore constructs a MemoryStore seeded with an existing transcript.
func NewMemoryStore(seed []Message) *MemoryStore {
	msgs := make([]Message, len(seed))
	copy(msgs, seed)
	return &MemoryStore{msgs: msgs}
}

func (s *MemoryStore) Load() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out, nil
}

func (s *MemoryStore) Append(msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
	return nil
}
