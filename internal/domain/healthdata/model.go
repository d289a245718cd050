package healthdata

import (
	"time"

	"github.com/yanqian/health-insight/pkg/util"
)

// Sleep analysis categories.
const (
	CategoryAsleepCore        = "asleep-core"
	CategoryAsleepDeep        = "asleep-deep"
	CategoryAsleepREM         = "asleep-rem"
	CategoryAsleepUnspecified = "asleep-unspecified"
	CategoryAwake             = "awake"
	CategoryInBed             = "in-bed"
)

// AsleepCategories selects the sleep stages that count as sleep.
func AsleepCategories() map[string]struct{} {
	return map[string]struct{}{
		CategoryAsleepCore:        {},
		CategoryAsleepDeep:        {},
		CategoryAsleepREM:         {},
		CategoryAsleepUnspecified: {},
	}
}

// Sample is one observation from the health data store. End equals Start for
// instantaneous readings.
type Sample struct {
	Start     time.Time `json:"startDate"`
	End       time.Time `json:"endDate"`
	Value     float64   `json:"value"`
	SourceTag string    `json:"sourceName,omitempty"`
	Category  string    `json:"category,omitempty"`
}

// DailySeries holds one bucket per day, oldest first, and their mean.
type DailySeries struct {
	Daily   []float64 `json:"daily"`
	Average float64   `json:"average"`
}

func newDailySeries(daily []float64) DailySeries {
	total := 0.0
	for _, v := range daily {
		total += v
	}
	avg := 0.0
	if len(daily) > 0 {
		avg = total / float64(len(daily))
	}
	return DailySeries{Daily: daily, Average: avg}
}

// Window is a trailing run of SpanDays calendar days ending on AnchorDay.
type Window struct {
	AnchorDay time.Time
	SpanDays  int
	bounds    []time.Time
}

// NewWindow normalizes the anchor to local midnight and precomputes day bounds.
func NewWindow(anchorDay time.Time, spanDays int) (Window, error) {
	if spanDays <= 0 {
		return Window{}, errSpanDays(spanDays)
	}
	anchor := util.StartOfDay(anchorDay, anchorDay.Location())
	first := util.AddDays(anchor, -(spanDays - 1))
	bounds := make([]time.Time, spanDays+1)
	for i := range bounds {
		bounds[i] = util.AddDays(first, i)
	}
	return Window{AnchorDay: anchor, SpanDays: spanDays, bounds: bounds}, nil
}

// Start is local midnight of the oldest day.
func (w Window) Start() time.Time { return w.bounds[0] }

// End is local midnight after the anchor day (exclusive).
func (w Window) End() time.Time { return w.bounds[w.SpanDays] }

// Day returns the start of the i-th day, 0 being the oldest.
func (w Window) Day(i int) time.Time { return w.bounds[i] }

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start()) && t.Before(w.End())
}

// index returns the bucket containing t, or -1 when t is outside the window.
func (w Window) index(t time.Time) int {
	if !w.Contains(t) {
		return -1
	}
	lo, hi := 0, w.SpanDays-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if w.bounds[mid].After(t) {
			hi = mid - 1
		} else {
			lo = mid
		}
	}
	return lo
}

// MetricKind distinguishes windowed series from single latest readings.
type MetricKind string

const (
	KindSeries MetricKind = "series"
	KindLatest MetricKind = "latest"
)

// Data sources reported on a snapshot.
const (
	SourceProvider = "provider"
	SourceSample   = "sample"
)

// Reading is the most recent value of a KindLatest metric.
type Reading struct {
	Value     float64   `json:"value"`
	Time      time.Time `json:"time"`
	SourceTag string    `json:"sourceName,omitempty"`
}

// MetricResult is the outcome of fetching one metric.
type MetricResult struct {
	Name   string       `json:"name"`
	Unit   string       `json:"unit"`
	Kind   MetricKind   `json:"kind"`
	Series *DailySeries `json:"series,omitempty"`
	Latest *Reading     `json:"latest,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Snapshot bundles every catalog metric for one window.
type Snapshot struct {
	Date        string         `json:"date"`
	Days        int            `json:"days"`
	Available   bool           `json:"available"`
	Source      string         `json:"source"`
	Metrics     []MetricResult `json:"metrics"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Metric finds a result by metric name.
func (s Snapshot) Metric(name string) (MetricResult, bool) {
	for _, m := range s.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricResult{}, false
}

// SnapshotRequest selects the window. Zero values mean today and the configured span.
type SnapshotRequest struct {
	Date string `form:"date" json:"date"`
	Days int    `form:"days" json:"days"`
}

// IngestSample is a device sample as posted by the client.
type IngestSample struct {
	Identifier string  `json:"identifier"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	Value      float64 `json:"value"`
	SourceName string  `json:"sourceName"`
	Category   string  `json:"category"`
}

// IngestRequest carries a batch of device samples.
type IngestRequest struct {
	Samples []IngestSample `json:"samples"`
}

// IngestResponse reports what was stored.
type IngestResponse struct {
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
	ArchiveKey string `json:"archiveKey,omitempty"`
}

// Config wires runtime settings for the health data domain.
type Config struct {
	Location         *time.Location
	WindowDays       int
	MaxWindowDays    int
	CacheTTL         time.Duration
	FetchTimeout     time.Duration
	MaxIngestSamples int
	SourcePreference []string
}
