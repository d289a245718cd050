package healthdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/yanqian/health-insight/pkg/errors"
	"github.com/yanqian/health-insight/pkg/util"
)

// Service exposes the health metrics workflows.
type Service interface {
	Snapshot(ctx context.Context, userID int64, req SnapshotRequest) (Snapshot, error)
	Metric(ctx context.Context, userID int64, name string, req SnapshotRequest) (MetricResult, error)
	Ingest(ctx context.Context, userID int64, req IngestRequest) (IngestResponse, error)
}

const (
	defaultWindowDays       = 7
	defaultMaxWindowDays    = 90
	defaultMaxIngestSamples = 5000

	// maxSampleValue bounds a single reading so daily sums stay finite.
	maxSampleValue = 1e7
)

type service struct {
	cfg      Config
	store    Store
	cache    SnapshotCache
	archive  Archive
	observer Observer
	prefs    []SourceMatcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the health data domain. cache and archive may be nil.
func NewService(cfg Config, store Store, cache SnapshotCache, archive Archive, observer Observer, logger *slog.Logger) Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.MaxWindowDays <= 0 {
		cfg.MaxWindowDays = defaultMaxWindowDays
	}
	if cfg.MaxIngestSamples <= 0 {
		cfg.MaxIngestSamples = defaultMaxIngestSamples
	}
	if observer == nil {
		observer = noopObserver{}
	}
	prefs := make([]SourceMatcher, 0, len(cfg.SourcePreference))
	for _, tag := range cfg.SourcePreference {
		if tag = strings.TrimSpace(tag); tag != "" {
			prefs = append(prefs, SourceContains(tag))
		}
	}
	if len(prefs) == 0 {
		prefs = DefaultSourcePreference()
	}
	return &service{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		archive:  archive,
		observer: observer,
		prefs:    prefs,
		logger:   logger.With("component", "healthdata.service"),
		now:      time.Now,
	}
}

func (s *service) Snapshot(ctx context.Context, userID int64, req SnapshotRequest) (Snapshot, error) {
	window, queryEnd, err := s.resolveWindow(req)
	if err != nil {
		return Snapshot{}, err
	}
	key := SnapshotKey{UserID: userID, Date: window.AnchorDay.Format(util.DayLayout), Days: window.SpanDays}
	if cached, ok := s.cachedSnapshot(ctx, key); ok {
		return cached, nil
	}

	available, err := s.store.Available(ctx, userID)
	if err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeUpstream, "health source unavailable", err)
	}

	catalog := Catalog()
	snapshot := Snapshot{
		Date:        key.Date,
		Days:        key.Days,
		Available:   available,
		Source:      SourceProvider,
		Metrics:     make([]MetricResult, len(catalog)),
		GeneratedAt: s.now().UTC(),
	}
	if !available {
		snapshot.Source = SourceSample
		for i, spec := range catalog {
			snapshot.Metrics[i] = sampleResult(spec, window)
		}
		return snapshot, nil
	}

	// A failing metric is reported on its own result; peers keep going.
	var g errgroup.Group
	for i, spec := range catalog {
		i, spec := i, spec
		g.Go(func() error {
			result, err := s.fetchMetric(ctx, userID, spec, window, queryEnd)
			if err != nil {
				s.logger.Warn("metric fetch failed", "metric", spec.Name, "userId", userID, "error", err)
				result = MetricResult{Name: spec.Name, Unit: spec.Unit, Kind: spec.Kind, Error: apperrors.MessageOf(err)}
			}
			snapshot.Metrics[i] = result
			return nil
		})
	}
	_ = g.Wait()

	complete := true
	for _, m := range snapshot.Metrics {
		if m.Error != "" {
			complete = false
			break
		}
	}
	if complete && s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, snapshot, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("snapshot cache write failed", "userId", userID, "error", err)
		}
	}
	return snapshot, nil
}

func (s *service) Metric(ctx context.Context, userID int64, name string, req SnapshotRequest) (MetricResult, error) {
	spec, ok := LookupMetric(strings.TrimSpace(name))
	if !ok {
		return MetricResult{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("unknown metric %q", name), nil)
	}
	window, queryEnd, err := s.resolveWindow(req)
	if err != nil {
		return MetricResult{}, err
	}
	available, err := s.store.Available(ctx, userID)
	if err != nil {
		return MetricResult{}, apperrors.Wrap(apperrors.CodeUpstream, "health source unavailable", err)
	}
	if !available {
		return sampleResult(spec, window), nil
	}
	result, err := s.fetchMetric(ctx, userID, spec, window, queryEnd)
	if err != nil {
		return MetricResult{}, err
	}
	return result, nil
}

func (s *service) Ingest(ctx context.Context, userID int64, req IngestRequest) (IngestResponse, error) {
	if len(req.Samples) == 0 {
		return IngestResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "samples cannot be empty", nil)
	}
	if len(req.Samples) > s.cfg.MaxIngestSamples {
		return IngestResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("at most %d samples per request", s.cfg.MaxIngestSamples), nil)
	}

	grouped := make(map[string][]Sample)
	var resp IngestResponse
	for _, raw := range req.Samples {
		identifier, sample, err := parseIngestSample(raw)
		if err != nil {
			s.logger.Debug("sample rejected", "userId", userID, "identifier", raw.Identifier, "error", err)
			resp.Rejected++
			continue
		}
		grouped[identifier] = append(grouped[identifier], sample)
		resp.Accepted++
	}
	if resp.Accepted == 0 {
		return IngestResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no valid samples in request", nil)
	}

	if s.archive != nil {
		key, err := s.archivePayload(ctx, userID, req)
		if err != nil {
			s.logger.Warn("ingest archive failed", "userId", userID, "error", err)
		} else {
			resp.ArchiveKey = key
		}
	}

	identifiers := make([]string, 0, len(grouped))
	for identifier := range grouped {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	for _, identifier := range identifiers {
		if err := s.store.Append(ctx, userID, identifier, grouped[identifier]); err != nil {
			return IngestResponse{}, apperrors.Wrap(apperrors.CodeUpstream, "failed to store samples", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID, s.now()); err != nil {
			s.logger.Warn("snapshot cache invalidate failed", "userId", userID, "error", err)
		}
	}
	s.logger.Info("samples ingested", "userId", userID, "accepted", resp.Accepted, "rejected", resp.Rejected)
	return resp, nil
}

func (s *service) resolveWindow(req SnapshotRequest) (Window, time.Time, error) {
	now := s.now().In(s.cfg.Location)
	today := util.StartOfDay(now, s.cfg.Location)

	anchor := today
	if date := strings.TrimSpace(req.Date); date != "" {
		parsed, err := util.ParseDay(date, s.cfg.Location)
		if err != nil {
			return Window{}, time.Time{}, apperrors.Wrap(apperrors.CodeInvalidInput, "date must be formatted as YYYY-MM-DD", err)
		}
		if parsed.After(today) {
			return Window{}, time.Time{}, apperrors.Wrap(apperrors.CodeInvalidInput, "date cannot be in the future", nil)
		}
		anchor = parsed
	}

	days := req.Days
	if days == 0 {
		days = s.cfg.WindowDays
	}
	if days < 0 || days > s.cfg.MaxWindowDays {
		return Window{}, time.Time{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("days must be between 1 and %d", s.cfg.MaxWindowDays), nil)
	}

	window, err := NewWindow(anchor, days)
	if err != nil {
		return Window{}, time.Time{}, err
	}
	queryEnd := window.End()
	if anchor.Equal(today) {
		queryEnd = now
	}
	return window, queryEnd, nil
}

func (s *service) fetchMetric(ctx context.Context, userID int64, spec MetricSpec, window Window, queryEnd time.Time) (MetricResult, error) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}
	result := MetricResult{Name: spec.Name, Unit: spec.Unit, Kind: spec.Kind}

	if spec.Kind == KindLatest {
		sample, found, err := s.store.MostRecent(ctx, userID, spec.Identifier, window.End())
		if err != nil {
			s.observer.MetricFailure(spec.Name)
			return MetricResult{}, apperrors.Wrap(apperrors.CodeUpstream, "failed to load "+spec.Name, err)
		}
		reading := Reading{}
		if found {
			reading = Reading{Value: sample.Value, Time: sample.Start, SourceTag: sample.SourceTag}
		}
		result.Latest = &reading
		return result, nil
	}

	samples, err := s.store.QuerySamples(ctx, userID, spec.Identifier, window.Start(), queryEnd)
	if err != nil {
		s.observer.MetricFailure(spec.Name)
		return MetricResult{}, apperrors.Wrap(apperrors.CodeUpstream, "failed to load "+spec.Name, err)
	}
	series, err := Aggregate(samples, window.AnchorDay, window.SpanDays, spec.Policy, Options{
		CategoryFilter:   spec.CategoryFilter,
		SourcePreference: s.prefs,
	})
	if err != nil {
		return MetricResult{}, err
	}
	s.observer.AddSamples(spec.Name, len(samples))
	result.Series = &series
	return result, nil
}

func (s *service) cachedSnapshot(ctx context.Context, key SnapshotKey) (Snapshot, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return Snapshot{}, false
	}
	snapshot, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", "userId", key.UserID, "error", err)
		return Snapshot{}, false
	}
	s.observer.CacheLookup(ok)
	return snapshot, ok
}

func (s *service) archivePayload(ctx context.Context, userID int64, req IngestRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	key := fmt.Sprintf("ingest/%d/%s/%s.json", userID, s.now().UTC().Format(util.DayLayout), uuid.NewString())
	if err := s.archive.Put(ctx, key, "application/json", body); err != nil {
		return "", err
	}
	return key, nil
}

func parseIngestSample(raw IngestSample) (string, Sample, error) {
	identifier := strings.TrimSpace(raw.Identifier)
	if _, ok := LookupIdentifier(identifier); !ok {
		return "", Sample{}, fmt.Errorf("unknown identifier %q", raw.Identifier)
	}
	start, err := parseTimestamp(raw.StartDate)
	if err != nil {
		return "", Sample{}, fmt.Errorf("startDate: %w", err)
	}
	end := start
	if strings.TrimSpace(raw.EndDate) != "" {
		end, err = parseTimestamp(raw.EndDate)
		if err != nil {
			return "", Sample{}, fmt.Errorf("endDate: %w", err)
		}
	}
	if end.Before(start) {
		return "", Sample{}, errors.New("endDate before startDate")
	}
	if math.IsNaN(raw.Value) || math.Abs(raw.Value) > maxSampleValue {
		return "", Sample{}, fmt.Errorf("value %v out of range", raw.Value)
	}
	return identifier, Sample{
		Start:     start,
		End:       end,
		Value:     raw.Value,
		SourceTag: strings.TrimSpace(raw.SourceName),
		Category:  strings.TrimSpace(raw.Category),
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}
