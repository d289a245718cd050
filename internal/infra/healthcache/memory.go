package healthcache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

type cachedSnapshot struct {
	payload   healthdata.Snapshot
	expiresAt time.Time
}

// MemoryCache is an in-process snapshot cache for tests/dev.
type MemoryCache struct {
	mu          sync.RWMutex
	entries     map[healthdata.SnapshotKey]cachedSnapshot
	invalidated map[int64]time.Time
	now         func() time.Time
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:     make(map[healthdata.SnapshotKey]cachedSnapshot),
		invalidated: make(map[int64]time.Time),
		now:         time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key healthdata.SnapshotKey) (healthdata.Snapshot, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return healthdata.Snapshot{}, false, nil
	}
	if c.expired(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return healthdata.Snapshot{}, false, nil
	}
	return entry.payload, true, nil
}

// Set caches the snapshot; a non-positive ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key healthdata.SnapshotKey, snapshot healthdata.Snapshot, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if snapshot.GeneratedAt.Before(c.invalidated[key.UserID]) {
		return nil
	}
	c.entries[key] = cachedSnapshot{payload: snapshot, expiresAt: exp}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at.After(c.invalidated[userID]) {
		c.invalidated[userID] = at
	}
	for key := range c.entries {
		if key.UserID == userID {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) expired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(c.now())
}

var _ healthdata.SnapshotCache = (*MemoryCache)(nil)
