package healthdata

// MetricSpec describes how one health metric is fetched and aggregated.
type MetricSpec struct {
	Name           string
	Identifier     string
	Unit           string
	Kind           MetricKind
	Policy         Policy
	CategoryFilter map[string]struct{}
}

// Metric names exposed over the API.
const (
	MetricStepCount      = "step_count"
	MetricHeartRate      = "heart_rate"
	MetricActiveEnergy   = "active_energy"
	MetricFlightsClimbed = "flights_climbed"
	MetricSleep          = "sleep"
	MetricBodyFat        = "body_fat"
)

// Catalog returns the metric table in display order.
func Catalog() []MetricSpec {
	return []MetricSpec{
		{Name: MetricStepCount, Identifier: "HKQuantityTypeIdentifierStepCount", Unit: "count", Kind: KindSeries, Policy: PolicySum},
		{Name: MetricHeartRate, Identifier: "HKQuantityTypeIdentifierHeartRate", Unit: "bpm", Kind: KindSeries, Policy: PolicyDailyMean},
		{Name: MetricActiveEnergy, Identifier: "HKQuantityTypeIdentifierActiveEnergyBurned", Unit: "kcal", Kind: KindSeries, Policy: PolicySum},
		{Name: MetricFlightsClimbed, Identifier: "HKQuantityTypeIdentifierFlightsClimbed", Unit: "count", Kind: KindSeries, Policy: PolicySum},
		{Name: MetricSleep, Identifier: "HKCategoryTypeIdentifierSleepAnalysis", Unit: "hr", Kind: KindSeries, Policy: PolicyAverageDuration, CategoryFilter: AsleepCategories()},
		{Name: MetricBodyFat, Identifier: "HKQuantityTypeIdentifierBodyFatPercentage", Unit: "%", Kind: KindLatest},
	}
}

// LookupMetric finds a catalog entry by its API name.
func LookupMetric(name string) (MetricSpec, bool) {
	for _, spec := range Catalog() {
		if spec.Name == name {
			return spec, true
		}
	}
	return MetricSpec{}, false
}

// LookupIdentifier finds a catalog entry by its device data type identifier.
func LookupIdentifier(identifier string) (MetricSpec, bool) {
	for _, spec := range Catalog() {
		if spec.Identifier == identifier {
			return spec, true
		}
	}
	return MetricSpec{}, false
}
