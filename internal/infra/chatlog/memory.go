package chatlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/health-insight/internal/domain/chat"
)

// MemoryLog stores conversation turns in-memory.
type MemoryLog struct {
	mu       sync.RWMutex
	messages map[int64][]chat.Message
}

// NewMemoryLog constructs the in-memory message log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{messages: make(map[int64][]chat.Message)}
}

// Append stores messages in order.
func (l *MemoryLog) Append(_ context.Context, userID int64, messages ...chat.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range messages {
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		l.messages[userID] = append(l.messages[userID], msg)
	}
	return nil
}

// List returns the newest limit messages in chronological order.
func (l *MemoryLog) List(_ context.Context, userID int64, limit int) ([]chat.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear drops a user's conversation.
func (l *MemoryLog) Clear(_ context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.messages, userID)
	return nil
}

var _ chat.MessageLog = (*MemoryLog)(nil)
