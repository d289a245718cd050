package healthdata

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/yanqian/health-insight/pkg/errors"
)

// Policy selects how samples are folded into day buckets.
type Policy int

const (
	// PolicySum adds each sample's value to the day containing its start.
	PolicySum Policy = iota + 1
	// PolicyAverageDuration spreads each sample's duration over the days it
	// overlaps and reports hours per day.
	PolicyAverageDuration
	// PolicyDailyMean averages the readings that start on each day.
	PolicyDailyMean
)

func (p Policy) String() string {
	switch p {
	case PolicySum:
		return "sum"
	case PolicyAverageDuration:
		return "average_duration"
	case PolicyDailyMean:
		return "daily_mean"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// SourceMatcher reports whether a sample's source tag belongs to a device.
type SourceMatcher func(sourceTag string) bool

// SourceContains matches source tags containing sub, ignoring case.
func SourceContains(sub string) SourceMatcher {
	needle := strings.ToLower(sub)
	return func(sourceTag string) bool {
		return strings.Contains(strings.ToLower(sourceTag), needle)
	}
}

// DefaultSourcePreference prefers an Oura ring, then an Apple Watch, then the phone.
func DefaultSourcePreference() []SourceMatcher {
	return []SourceMatcher{SourceContains("oura"), SourceContains("apple watch"), SourceContains("iphone")}
}

// Options tunes a single aggregation.
type Options struct {
	// CategoryFilter restricts samples to these categories when non-empty.
	CategoryFilter map[string]struct{}
	// SourcePreference is tried in order; the first matcher that hits at
	// least one sample narrows the input to its matches.
	SourcePreference []SourceMatcher
}

func errSpanDays(spanDays int) error {
	return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("span days must be positive, got %d", spanDays), nil)
}

// Aggregate buckets samples into the spanDays calendar days ending on
// anchorDay. Day boundaries are local midnights in anchorDay's location.
// Malformed samples are dropped or clamped; only a non-positive span fails.
func Aggregate(samples []Sample, anchorDay time.Time, spanDays int, policy Policy, opts Options) (DailySeries, error) {
	window, err := NewWindow(anchorDay, spanDays)
	if err != nil {
		return DailySeries{}, err
	}
	samples = preferSources(samples, opts.SourcePreference)

	switch policy {
	case PolicySum:
		return newDailySeries(sumByDay(window, samples, opts.CategoryFilter)), nil
	case PolicyAverageDuration:
		return newDailySeries(durationByDay(window, samples, opts.CategoryFilter)), nil
	case PolicyDailyMean:
		return newDailySeries(meanByDay(window, samples, opts.CategoryFilter)), nil
	default:
		return DailySeries{}, apperrors.Wrap(apperrors.CodeInvalidInput, "unsupported aggregation policy "+policy.String(), nil)
	}
}

func preferSources(samples []Sample, prefs []SourceMatcher) []Sample {
	for _, match := range prefs {
		if match == nil {
			continue
		}
		var picked []Sample
		for _, s := range samples {
			if match(s.SourceTag) {
				picked = append(picked, s)
			}
		}
		if len(picked) > 0 {
			return picked
		}
	}
	return samples
}

func accepted(s Sample, filter map[string]struct{}) bool {
	if s.End.Before(s.Start) {
		return false
	}
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[s.Category]
	return ok
}

func clampValue(v float64) float64 {
	if v > 0 && !math.IsInf(v, 1) {
		return v
	}
	return 0
}

func sumByDay(w Window, samples []Sample, filter map[string]struct{}) []float64 {
	daily := make([]float64, w.SpanDays)
	for _, s := range samples {
		if !accepted(s, filter) {
			continue
		}
		if i := w.index(s.Start); i >= 0 {
			daily[i] += clampValue(s.Value)
		}
	}
	return daily
}

func meanByDay(w Window, samples []Sample, filter map[string]struct{}) []float64 {
	sums := make([]float64, w.SpanDays)
	counts := make([]int, w.SpanDays)
	for _, s := range samples {
		if !accepted(s, filter) {
			continue
		}
		if i := w.index(s.Start); i >= 0 {
			sums[i] += clampValue(s.Value)
			counts[i]++
		}
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}
	return sums
}

func durationByDay(w Window, samples []Sample, filter map[string]struct{}) []float64 {
	minutes := make([]float64, w.SpanDays)
	for _, s := range samples {
		if !accepted(s, filter) {
			continue
		}
		start, end := s.Start, s.End
		if start.Before(w.Start()) {
			start = w.Start()
		}
		if end.After(w.End()) {
			end = w.End()
		}
		if !start.Before(end) {
			continue
		}
		for i := w.index(start); i >= 0 && i < w.SpanDays; i++ {
			dayStart, dayEnd := w.Day(i), w.Day(i+1)
			if !dayStart.Before(end) {
				break
			}
			from, to := start, end
			if from.Before(dayStart) {
				from = dayStart
			}
			if to.After(dayEnd) {
				to = dayEnd
			}
			if from.Before(to) {
				minutes[i] += to.Sub(from).Minutes()
			}
		}
	}
	hours := make([]float64, len(minutes))
	for i, m := range minutes {
		hours[i] = m / 60
	}
	return hours
}
