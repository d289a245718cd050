package healthdata

// Example values shown before the user has ever synced a device.
var samplePatterns = map[string][]float64{
	MetricHeartRate:      {70, 72, 68, 75, 69, 71, 70},
	MetricStepCount:      {5000, 6500, 7000, 4000, 8000, 7500, 6000},
	MetricActiveEnergy:   {250, 300, 280, 200, 320, 310, 290},
	MetricFlightsClimbed: {10, 12, 8, 15, 9, 11, 10},
	MetricSleep:          {9, 8, 8, 9, 9, 8, 9},
}

const sampleBodyFat = 22.5

// sampleResult renders the example dataset for a window. Patterns repeat so
// that the anchor day always gets the last value.
func sampleResult(spec MetricSpec, window Window) MetricResult {
	result := MetricResult{Name: spec.Name, Unit: spec.Unit, Kind: spec.Kind}
	if spec.Kind == KindLatest {
		result.Latest = &Reading{Value: sampleBodyFat, Time: window.Day(window.SpanDays - 1), SourceTag: SourceSample}
		return result
	}
	pattern := samplePatterns[spec.Name]
	daily := make([]float64, window.SpanDays)
	if n := len(pattern); n > 0 {
		offset := n - window.SpanDays%n
		for i := range daily {
			daily[i] = pattern[(offset+i)%n]
		}
	}
	series := newDailySeries(daily)
	result.Series = &series
	return result
}
