package healthstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/health-insight/internal/domain/healthdata"
)

type sampleKey struct {
	start    int64
	end      int64
	source   string
	category string
}

// MemoryStore keeps samples in process memory for tests/dev.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]map[string]map[sampleKey]healthdata.Sample
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]map[string]map[sampleKey]healthdata.Sample)}
}

// Available reports whether the user has synced anything.
func (s *MemoryStore) Available(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, samples := range s.users[userID] {
		if len(samples) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// QuerySamples returns samples overlapping [start, end) ordered by start.
func (s *MemoryStore) QuerySamples(_ context.Context, userID int64, identifier string, start, end time.Time) ([]healthdata.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []healthdata.Sample
	for _, sample := range s.users[userID][identifier] {
		if !sample.End.Before(start) && sample.Start.Before(end) {
			out = append(out, sample)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// MostRecent returns the latest sample starting before the given instant.
func (s *MemoryStore) MostRecent(_ context.Context, userID int64, identifier string, before time.Time) (healthdata.Sample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest healthdata.Sample
		found  bool
	)
	for _, sample := range s.users[userID][identifier] {
		if sample.Start.Before(before) && (!found || sample.Start.After(latest.Start)) {
			latest, found = sample, true
		}
	}
	return latest, found, nil
}

// Append stores samples; a resent sample replaces the stored value.
func (s *MemoryStore) Append(_ context.Context, userID int64, identifier string, samples []healthdata.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byIdentifier, ok := s.users[userID]
	if !ok {
		byIdentifier = make(map[string]map[sampleKey]healthdata.Sample)
		s.users[userID] = byIdentifier
	}
	bucket, ok := byIdentifier[identifier]
	if !ok {
		bucket = make(map[sampleKey]healthdata.Sample)
		byIdentifier[identifier] = bucket
	}
	for _, sample := range samples {
		bucket[keyOf(sample)] = sample
	}
	return nil
}

func keyOf(sample healthdata.Sample) sampleKey {
	return sampleKey{
		start:    sample.Start.UnixNano(),
		end:      sample.End.UnixNano(),
		source:   sample.SourceTag,
		category: sample.Category,
	}
}

var _ healthdata.Store = (*MemoryStore)(nil)
