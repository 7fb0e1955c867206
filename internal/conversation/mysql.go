package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// MySQLStore persists conversation histories as JSON rows keyed by context.
type MySQLStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, locks: make(map[string]*sync.Mutex)}
}

func (s *MySQLStore) Get(ctx context.Context, key string) ([]models.ChatMessage, error) {
	const query = `SELECT messages FROM conversation_states WHERE context_key = ?`
	row := s.db.QueryRowContext(ctx, query, key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", key, err)
	}
	return messages, nil
}

func (s *MySQLStore) Put(ctx context.Context, key string, messages []models.ChatMessage) error {
	sanitized := Sanitize(messages)
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", key, err)
	}
	const query = `
INSERT INTO conversation_states (context_key, messages)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE messages = VALUES(messages), updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("store conversation %s: %w", key, err)
	}
	return nil
}

// Update serializes the read-modify-write per context key. The lock is
// in-process only; the backend runs as a single instance.
func (s *MySQLStore) Update(ctx context.Context, key string, apply func([]models.ChatMessage) []models.ChatMessage) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	messages, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, apply(messages))
}

func (s *MySQLStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
