package conversation

import (
	"context"
	"sync"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// MemoryStore keeps conversation histories in process memory. Used in tests
// and as a fallback when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]models.ChatMessage)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]models.ChatMessage, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, messages []models.ChatMessage) error {
	sanitized := Sanitize(messages)
	s.mu.Lock()
	s.data[key] = sanitized
	s.mu.Unlock()
	return nil
}

// Update applies a read-modify-write under the store lock, so concurrent
// updates to one context never lose each other's changes.
func (s *MemoryStore) Update(_ context.Context, key string, apply func([]models.ChatMessage) []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := make([]models.ChatMessage, len(s.data[key]))
	copy(current, s.data[key])
	s.data[key] = Sanitize(apply(current))
	return nil
}
