package healthdata

import (
	"context"
	"time"
)

// Provider is the read side of a user's health data source.
type Provider interface {
	// Available reports whether the user has any health source at all.
	Available(ctx context.Context, userID int64) (bool, error)
	// QuerySamples returns samples of identifier overlapping [start, end).
	QuerySamples(ctx context.Context, userID int64, identifier string, start, end time.Time) ([]Sample, error)
	// MostRecent returns the latest sample of identifier starting before the given instant.
	MostRecent(ctx context.Context, userID int64, identifier string, before time.Time) (Sample, bool, error)
}

// Store persists device samples and serves them back as a Provider.
type Store interface {
	Provider
	Append(ctx context.Context, userID int64, identifier string, samples []Sample) error
}

// SnapshotKey identifies a cached snapshot.
type SnapshotKey struct {
	UserID int64
	Date   string
	Days   int
}

// SnapshotCache keeps computed snapshots for a short time.
type SnapshotCache interface {
	Get(ctx context.Context, key SnapshotKey) (Snapshot, bool, error)
	// Set is a no-op when the user was invalidated after snapshot.GeneratedAt,
	// so a snapshot computed before an ingest cannot land after it.
	Set(ctx context.Context, key SnapshotKey, snapshot Snapshot, ttl time.Duration) error
	// Invalidate drops the user's snapshots and records at as the cutoff.
	Invalidate(ctx context.Context, userID int64, at time.Time) error
}

// Archive stores raw ingest payloads.
type Archive interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Observer receives aggregation telemetry.
type Observer interface {
	AddSamples(metric string, n int)
	MetricFailure(metric string)
	CacheLookup(hit bool)
}

type noopObserver struct{}

func (noopObserver) AddSamples(string, int) {}
func (noopObserver) MetricFailure(string)   {}
func (noopObserver) CacheLookup(bool)       {}
