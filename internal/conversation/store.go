// Package conversation persists per-context creation chat histories. Each
// context is one (function tab, prompt template) pair; its messages form an
// insertion-ordered list that is always replaced wholesale on write.
package conversation

import (
	"context"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// GeneralContext is the prompt segment used when the user chats without a
// template selected.
const GeneralContext = "geral"

// Store is the repository for conversation histories. Put is a whole-list
// replacement; concurrent writers (handlers and video poll chains share
// context keys) must go through Update, which implementations serialize per
// key so one writer's stale read cannot clobber another's mutation.
type Store interface {
	Get(ctx context.Context, key string) ([]models.ChatMessage, error)
	Put(ctx context.Context, key string, messages []models.ChatMessage) error
	Update(ctx context.Context, key string, apply func([]models.ChatMessage) []models.ChatMessage) error
}

// ContextKey builds the storage key for a conversation context.
func ContextKey(fn models.FunctionID, promptID string) string {
	if promptID == "" {
		promptID = GeneralContext
	}
	return fmt.Sprintf("criar-gerar-msg-%s-%s", fn, promptID)
}

// Sanitize returns a copy of messages with the inline binary payload fields
// cleared. Data URLs can reach tens of megabytes; persisting them would blow
// up the store, so only text fields survive a round-trip.
func Sanitize(messages []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(messages))
	copy(out, messages)
	for i := range out {
		out[i].ImageDataURL = ""
		out[i].VideoDataURL = ""
	}
	return out
}
