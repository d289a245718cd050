package chatlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/health-insight/internal/domain/chat"
)

// PostgresLog persists chat_messages in Postgres.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog constructs the adapter.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// Append inserts the messages in one batch so their order is preserved.
func (l *PostgresLog) Append(ctx context.Context, userID int64, messages ...chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, msg := range messages {
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		batch.Queue(`
			INSERT INTO chat_messages (id, user_id, role, content, token_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, msg.ID, userID, msg.Role, msg.Content, msg.TokenCount, msg.CreatedAt)
	}
	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range messages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}
	return nil
}

// List returns the newest limit messages in chronological order.
func (l *PostgresLog) List(ctx context.Context, userID int64, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, role, content, token_count, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collected := make([]chat.Message, 0)
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.TokenCount, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		collected = append(collected, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to chronological order
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// Clear drops a user's conversation.
func (l *PostgresLog) Clear(ctx context.Context, userID int64) error {
	_, err := l.pool.Exec(ctx, `DELETE FROM chat_messages WHERE user_id = $1`, userID)
	return err
}

var _ chat.MessageLog = (*PostgresLog)(nil)
