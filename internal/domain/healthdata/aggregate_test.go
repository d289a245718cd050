package healthdata

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/health-insight/pkg/errors"
)

var anchor = time.Date(2025, time.June, 7, 15, 4, 0, 0, time.UTC)

func day(n, hour, minute int) time.Time {
	return time.Date(2025, time.June, n, hour, minute, 0, 0, time.UTC)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func TestAggregate_BucketCountMatchesSpan(t *testing.T) {
	for _, span := range []int{1, 7, 30} {
		for _, policy := range []Policy{PolicySum, PolicyAverageDuration, PolicyDailyMean} {
			series, err := Aggregate(nil, anchor, span, policy, Options{})
			require.NoError(t, err)
			require.Len(t, series.Daily, span)
			require.Zero(t, series.Average)
			for _, v := range series.Daily {
				require.Zero(t, v)
			}
		}
	}
}

func TestAggregate_AverageIsMeanOfAllBuckets(t *testing.T) {
	samples := []Sample{
		{Start: day(2, 8, 0), End: day(2, 8, 0), Value: 300},
		{Start: day(2, 9, 0), End: day(2, 9, 0), Value: 50},
		{Start: day(6, 12, 0), End: day(6, 12, 0), Value: 1000},
	}
	series, err := Aggregate(samples, anchor, 7, PolicySum, Options{})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 350, 0, 0, 0, 1000, 0}, series.Daily)
	require.Equal(t, mean(series.Daily), series.Average)
}

func TestAggregate_SumScenario(t *testing.T) {
	var samples []Sample
	for i := 0; i < 7; i++ {
		at := day(1+i, 10, 0)
		samples = append(samples, Sample{Start: at, End: at, Value: float64((i + 1) * 100)})
	}
	series, err := Aggregate(samples, anchor, 7, PolicySum, Options{})
	require.NoError(t, err)
	require.Equal(t, []float64{100, 200, 300, 400, 500, 600, 700}, series.Daily)
	require.Equal(t, 400.0, series.Average)
}

func TestAggregate_NegativeValuesClampToZero(t *testing.T) {
	samples := []Sample{
		{Start: day(7, 9, 0), End: day(7, 9, 0), Value: -5},
		{Start: day(7, 10, 0), End: day(7, 10, 0), Value: 12},
	}
	series, err := Aggregate(samples, anchor, 7, PolicySum, Options{})
	require.NoError(t, err)
	require.Equal(t, 12.0, series.Daily[6])
}

func TestAggregate_WindowStartBoundary(t *testing.T) {
	windowStart := day(1, 0, 0)
	samples := []Sample{
		{Start: windowStart, End: windowStart, Value: 10},
		{Start: windowStart.Add(-time.Millisecond), End: windowStart.Add(-time.Millisecond), Value: 99},
		{Start: day(8, 0, 0), End: day(8, 0, 0), Value: 77},
	}
	series, err := Aggregate(samples, anchor, 7, PolicySum, Options{})
	require.NoError(t, err)
	require.Equal(t, []float64{10, 0, 0, 0, 0, 0, 0}, series.Daily)
}

func TestAggregate_DurationSplitsAcrossMidnight(t *testing.T) {
	samples := []Sample{
		{Start: day(3, 23, 30), End: day(4, 0, 30), Category: CategoryAsleepCore},
	}
	series, err := Aggregate(samples, anchor, 7, PolicyAverageDuration, Options{CategoryFilter: AsleepCategories()})
	require.NoError(t, err)
	require.InDelta(t, 0.5, series.Daily[2], 1e-9)
	require.InDelta(t, 0.5, series.Daily[3], 1e-9)
	require.InDelta(t, mean(series.Daily), series.Average, 1e-12)
}

func TestAggregate_SleepScenario(t *testing.T) {
	samples := []Sample{
		{Start: day(3, 23, 0), End: day(4, 6, 0), Category: CategoryAsleepCore},
		{Start: day(4, 6, 0), End: day(4, 7, 0), Category: CategoryAwake},
		{Start: day(4, 7, 0), End: day(4, 8, 0), Category: CategoryInBed},
	}
	series, err := Aggregate(samples, anchor, 7, PolicyAverageDuration, Options{CategoryFilter: AsleepCategories()})
	require.NoError(t, err)
	require.InDelta(t, 1.0, series.Daily[2], 1e-9)
	require.InDelta(t, 6.0, series.Daily[3], 1e-9)
	require.InDelta(t, 1.0, series.Average, 1e-9)
}

func TestAggregate_DurationClipsToWindow(t *testing.T) {
	samples := []Sample{
		{Start: time.Date(2025, time.May, 31, 22, 0, 0, 0, time.UTC), End: day(1, 2, 0), Category: CategoryAsleepDeep},
		{Start: day(7, 23, 0), End: day(8, 3, 0), Category: CategoryAsleepREM},
		{Start: day(9, 1, 0), End: day(9, 3, 0), Category: CategoryAsleepREM},
	}
	series, err := Aggregate(samples, anchor, 7, PolicyAverageDuration, Options{CategoryFilter: AsleepCategories()})
	require.NoError(t, err)
	require.InDelta(t, 2.0, series.Daily[0], 1e-9)
	require.InDelta(t, 1.0, series.Daily[6], 1e-9)
	require.InDelta(t, 3.0/7.0, series.Average, 1e-9)
}

func TestAggregate_DiscardsInvertedSamples(t *testing.T) {
	samples := []Sample{
		{Start: day(5, 10, 0), End: day(5, 9, 0), Value: 40},
		{Start: day(5, 8, 0), End: day(5, 7, 0), Category: CategoryAsleepCore},
	}
	sum, err := Aggregate(samples, anchor, 7, PolicySum, Options{})
	require.NoError(t, err)
	require.Zero(t, sum.Average)

	sleep, err := Aggregate(samples, anchor, 7, PolicyAverageDuration, Options{})
	require.NoError(t, err)
	require.Zero(t, sleep.Average)
}

func TestAggregate_SourcePreference(t *testing.T) {
	phoneOnly := []Sample{
		{Start: day(6, 9, 0), End: day(6, 9, 0), Value: 100, SourceTag: "Jane's iPhone"},
		{Start: day(6, 10, 0), End: day(6, 10, 0), Value: 50, SourceTag: "iPhone"},
	}
	prefs := []SourceMatcher{SourceContains("oura"), SourceContains("watch")}
	series, err := Aggregate(phoneOnly, anchor, 7, PolicySum, Options{SourcePreference: prefs})
	require.NoError(t, err)
	require.Equal(t, 150.0, series.Daily[5])

	mixed := append([]Sample{
		{Start: day(6, 11, 0), End: day(6, 11, 0), Value: 7, SourceTag: "Apple Watch"},
		{Start: day(6, 12, 0), End: day(6, 12, 0), Value: 3, SourceTag: "Oura"},
	}, phoneOnly...)
	series, err = Aggregate(mixed, anchor, 7, PolicySum, Options{SourcePreference: DefaultSourcePreference()})
	require.NoError(t, err)
	require.Equal(t, 3.0, series.Daily[5])

	series, err = Aggregate(mixed, anchor, 7, PolicySum, Options{SourcePreference: prefs[1:]})
	require.NoError(t, err)
	require.Equal(t, 7.0, series.Daily[5])
}

func TestAggregate_DefaultPreferenceSkipsNonAppleWatches(t *testing.T) {
	samples := []Sample{
		{Start: day(6, 9, 0), End: day(6, 9, 0), Value: 400, SourceTag: "Galaxy Watch"},
		{Start: day(6, 10, 0), End: day(6, 10, 0), Value: 120, SourceTag: "Alex's iPhone"},
	}
	series, err := Aggregate(samples, anchor, 7, PolicySum, Options{SourcePreference: DefaultSourcePreference()})
	require.NoError(t, err)
	require.Equal(t, 120.0, series.Daily[5])
}

func TestAggregate_NonFiniteValuesCountAsZero(t *testing.T) {
	samples := []Sample{
		{Start: day(7, 8, 0), End: day(7, 8, 0), Value: math.Inf(1)},
		{Start: day(7, 9, 0), End: day(7, 9, 0), Value: math.NaN()},
		{Start: day(7, 10, 0), End: day(7, 10, 0), Value: 35},
	}
	for _, policy := range []Policy{PolicySum, PolicyDailyMean} {
		series, err := Aggregate(samples, anchor, 7, policy, Options{})
		require.NoError(t, err)
		for _, v := range series.Daily {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
		require.False(t, math.IsNaN(series.Average) || math.IsInf(series.Average, 0))
	}
}

func TestAggregate_DailyMean(t *testing.T) {
	samples := []Sample{
		{Start: day(7, 8, 0), End: day(7, 8, 0), Value: 60},
		{Start: day(7, 9, 0), End: day(7, 9, 0), Value: 80},
		{Start: day(6, 9, 0), End: day(6, 9, 0), Value: 70},
	}
	series, err := Aggregate(samples, anchor, 7, PolicyDailyMean, Options{})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 0, 0, 0, 70, 70}, series.Daily)
	require.InDelta(t, 20.0, series.Average, 1e-9)
}

func TestAggregate_DaylightSavingDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	dstAnchor := time.Date(2025, time.March, 10, 12, 0, 0, 0, ny)
	samples := []Sample{
		{
			Start:    time.Date(2025, time.March, 9, 0, 0, 0, 0, ny),
			End:      time.Date(2025, time.March, 10, 0, 0, 0, 0, ny),
			Category: CategoryAsleepUnspecified,
		},
	}
	series, err := Aggregate(samples, dstAnchor, 2, PolicyAverageDuration, Options{CategoryFilter: AsleepCategories()})
	require.NoError(t, err)
	require.InDelta(t, 23.0, series.Daily[0], 1e-9)
	require.Zero(t, series.Daily[1])
}

func TestAggregate_RejectsNonPositiveSpan(t *testing.T) {
	for _, span := range []int{0, -3} {
		_, err := Aggregate(nil, anchor, span, PolicySum, Options{})
		require.Error(t, err)
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	}
}

func TestAggregate_RejectsUnknownPolicy(t *testing.T) {
	_, err := Aggregate(nil, anchor, 7, Policy(42), Options{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestWindow_Bounds(t *testing.T) {
	w, err := NewWindow(anchor, 7)
	require.NoError(t, err)
	require.Equal(t, day(1, 0, 0), w.Start())
	require.Equal(t, day(8, 0, 0), w.End())
	require.Equal(t, 0, w.index(day(1, 0, 0)))
	require.Equal(t, 6, w.index(day(7, 23, 59)))
	require.Equal(t, -1, w.index(day(8, 0, 0)))
}
