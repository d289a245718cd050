package healthcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

// markerTTL bounds how long an invalidation cutoff outlives the ingest.
const markerTTL = 24 * time.Hour

// setSnapshot writes the entry unless the user's cutoff is newer than the
// snapshot. KEYS: entry, index, marker. ARGV: payload, ttl seconds,
// generatedAt in unix micros.
var setSnapshot = valkey.NewLuaScript(`
local cutoff = redis.call('GET', KEYS[3])
if cutoff and tonumber(cutoff) > tonumber(ARGV[3]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
redis.call('SADD', KEYS[2], KEYS[1])
redis.call('EXPIRE', KEYS[2], ARGV[2])
return 1
`)

// ValkeyCache keeps computed snapshots in a Valkey-compatible database.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "health"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

func (c *ValkeyCache) Get(ctx context.Context, key healthdata.SnapshotKey) (healthdata.Snapshot, bool, error) {
	payload, err := c.client.Do(ctx, c.client.B().Get().Key(c.entryKey(key)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return healthdata.Snapshot{}, false, nil
		}
		return healthdata.Snapshot{}, false, err
	}
	var snapshot healthdata.Snapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return healthdata.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

// Set stores the snapshot and tracks its key in the user's index so a
// later ingest can drop every cached window at once. A snapshot generated
// before the user's last invalidation is dropped.
func (c *ValkeyCache) Set(ctx context.Context, key healthdata.SnapshotKey, snapshot healthdata.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	keys := []string{c.entryKey(key), c.indexKey(key.UserID), c.markerKey(key.UserID)}
	args := []string{
		string(payload),
		strconv.FormatInt(int64(ttl/time.Second), 10),
		strconv.FormatInt(snapshot.GeneratedAt.UnixMicro(), 10),
	}
	return setSnapshot.Exec(ctx, c.client, keys, args).Error()
}

// Invalidate records at as the user's cutoff before dropping the cached
// windows, so an in-flight Set from an older snapshot is refused.
func (c *ValkeyCache) Invalidate(ctx context.Context, userID int64, at time.Time) error {
	marker := c.client.B().Set().Key(c.markerKey(userID)).Value(strconv.FormatInt(at.UnixMicro(), 10)).Ex(markerTTL).Build()
	if err := c.client.Do(ctx, marker).Error(); err != nil {
		return err
	}
	index := c.indexKey(userID)
	members, err := c.client.Do(ctx, c.client.B().Smembers().Key(index).Build()).AsStrSlice()
	if err != nil && !valkey.IsValkeyNil(err) {
		return err
	}
	keys := append(members, index)
	return c.client.Do(ctx, c.client.B().Del().Key(keys...).Build()).Error()
}

// Keys are hash-tagged by user so the script touches a single cluster slot.
func (c *ValkeyCache) entryKey(key healthdata.SnapshotKey) string {
	return fmt.Sprintf("%s:snapshot:{%d}:%s:%d", c.prefix, key.UserID, key.Date, key.Days)
}

func (c *ValkeyCache) indexKey(userID int64) string {
	return fmt.Sprintf("%s:snapshots:{%d}", c.prefix, userID)
}

func (c *ValkeyCache) markerKey(userID int64) string {
	return fmt.Sprintf("%s:invalidated:{%d}", c.prefix, userID)
}

var _ healthdata.SnapshotCache = (*ValkeyCache)(nil)
