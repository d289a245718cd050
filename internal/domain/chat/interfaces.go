package chat

import (
	"context"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
	"github.com/yanqian/health-insight/pkg/metrics"
)

// Backend produces assistant replies.
type Backend interface {
	Name() string
	Reply(ctx context.Context, req BackendRequest) (BackendReply, error)
}

// MessageLog persists conversations per user.
type MessageLog interface {
	Append(ctx context.Context, userID int64, messages ...Message) error
	// List returns the newest limit messages oldest first; limit <= 0 means all.
	List(ctx context.Context, userID int64, limit int) ([]Message, error)
	Clear(ctx context.Context, userID int64) error
}

// TokenCounter estimates prompt size.
type TokenCounter interface {
	Count(text string) int
}

// HealthContextProvider supplies the user's recent metrics.
type HealthContextProvider interface {
	Snapshot(ctx context.Context, userID int64, req healthdata.SnapshotRequest) (healthdata.Snapshot, error)
}

// Observer receives chat telemetry.
type Observer interface {
	ChatBackendFailure(backend string)
	ChatUsage(usage metrics.TokenUsage)
}

type noopObserver struct{}

func (noopObserver) ChatBackendFailure(string)     {}
func (noopObserver) ChatUsage(metrics.TokenUsage) {}
