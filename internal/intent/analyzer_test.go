package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(catalog.Default())
}

func TestAnalyzeDefaults(t *testing.T) {
	a := newTestAnalyzer()

	for _, text := range []string{"", "hello there", "!!!", "¿qué?"} {
		got := a.Analyze(text)
		assert.Equal(t, TypeGeneral, got.Type, "text %q", text)
		assert.Equal(t, RegionNotSpecified, got.Region.Name)
		assert.Nil(t, got.Region.Bounds)
		assert.Empty(t, got.Parameters)
		assert.Equal(t, AllTime, got.TimePeriod.Label)
		assert.Equal(t, 1, got.Complexity)
	}
}

func TestAnalyzeThermoclineBayOfBengal(t *testing.T) {
	got := newTestAnalyzer().Analyze("Calculate thermocline for Bay of Bengal")

	assert.Equal(t, TypeGeographic, got.Type)
	assert.Equal(t, "Bay of Bengal", got.Region.Name)
	require.NotNil(t, got.Region.Bounds)
	assert.Equal(t, catalog.Bounds{LatMin: 5, LatMax: 25, LonMin: 80, LonMax: 100}, *got.Region.Bounds)
	require.NotNil(t, got.DepthZone)
	assert.Equal(t, "thermocline", got.DepthZone.Name)
	assert.Equal(t, 2, got.Complexity)
}

func TestAnalyzeComparison(t *testing.T) {
	got := newTestAnalyzer().Analyze("Compare temperature between Bay of Bengal and Arabian Sea")

	assert.Equal(t, TypeComparison, got.Type)
	// table order decides the primary region
	assert.Equal(t, "Arabian Sea", got.Region.Name)
	// text order decides the signal order
	assert.Equal(t, []string{"Bay of Bengal", "Arabian Sea"}, got.Signals.Regions)
	assert.Equal(t, []string{"temperature"}, got.Parameters)
	assert.Equal(t, 4, got.Complexity)
}

func TestAnalyzeStatisticsMultiParameter(t *testing.T) {
	got := newTestAnalyzer().Analyze("What is the average salinity, oxygen and temperature in October 2024?")

	assert.Equal(t, TypeStatistics, got.Type)
	assert.Equal(t, []string{"temperature", "salinity", "dissolved_oxygen"}, got.Parameters)
	assert.Equal(t, "Year 2024", got.TimePeriod.Label)
	assert.Equal(t, 2024, got.TimePeriod.Year)
	assert.Equal(t, 4, got.Complexity)
}

func TestAnalyzeWholeWordParameters(t *testing.T) {
	got := newTestAnalyzer().Analyze("Where does the salinity peak?")
	assert.Equal(t, []string{"salinity"}, got.Parameters)
}

func TestAnalyzeTimePeriods(t *testing.T) {
	tests := []struct {
		text  string
		label string
		days  int
		month int
	}{
		{"recent temperature", "Last 30 days", 30, 0},
		{"salinity last week", "Last 7 days", 7, 0},
		{"floats in the last 3 months", "Last 90 days", 90, 0},
		{"profiles from november", "November", 0, 11},
		{"profiles", "All time", 0, 0},
	}
	a := newTestAnalyzer()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := a.Analyze(tt.text).TimePeriod
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.days, got.Days)
			assert.Equal(t, tt.month, got.Month)
		})
	}
}

func TestAnalyzeNearestCoordinates(t *testing.T) {
	got := newTestAnalyzer().Analyze("Find the nearest floats to 15°N, 75°E within 200 km")

	assert.Equal(t, TypeNearest, got.Type)
	require.NotNil(t, got.Signals.Coordinates)
	assert.Equal(t, 15.0, got.Signals.Coordinates.Latitude)
	assert.Equal(t, 75.0, got.Signals.Coordinates.Longitude)
	assert.Equal(t, 200.0, got.Signals.RadiusKm)
	assert.Empty(t, got.Signals.FloatIDs)
}

func TestAnalyzeSouthWestAndLatLon(t *testing.T) {
	a := newTestAnalyzer()

	got := a.Analyze("closest profiles to 12.5S 45.25W")
	require.NotNil(t, got.Signals.Coordinates)
	assert.Equal(t, -12.5, got.Signals.Coordinates.Latitude)
	assert.Equal(t, -45.25, got.Signals.Coordinates.Longitude)

	got = a.Analyze("profiles around lat 10 lon 60")
	require.NotNil(t, got.Signals.Coordinates)
	assert.Equal(t, 10.0, got.Signals.Coordinates.Latitude)
	assert.Equal(t, 60.0, got.Signals.Coordinates.Longitude)

	got = a.Analyze("profiles near lat 95 lon 60")
	assert.Nil(t, got.Signals.Coordinates, "out of range latitude is ignored")
}

func TestAnalyzeNamedLocationMiles(t *testing.T) {
	got := newTestAnalyzer().Analyze("profiles near Mumbai within 50 miles")

	assert.Equal(t, TypeNearest, got.Type)
	require.NotNil(t, got.Signals.Coordinates)
	assert.Equal(t, "Mumbai", got.Signals.Coordinates.Source)
	assert.InDelta(t, 80.467, got.Signals.RadiusKm, 0.001)
}

func TestAnalyzeFloatSignals(t *testing.T) {
	got := newTestAnalyzer().Analyze("Show data for float 1901740 cycle 12, top 50 rows")

	assert.Equal(t, TypeFloatSpecific, got.Type)
	assert.Equal(t, []string{"1901740"}, got.Signals.FloatIDs)
	assert.Equal(t, 12, got.Signals.Cycle)
	assert.Equal(t, 50, got.Signals.Limit)
}

func TestAnalyzeLimitIgnoresTimeWindows(t *testing.T) {
	got := newTestAnalyzer().Analyze("temperature for the last 6 months")
	assert.Zero(t, got.Signals.Limit)
	assert.Equal(t, 180, got.TimePeriod.Days)
}

func TestAnalyzeUnfiltered(t *testing.T) {
	a := newTestAnalyzer()
	assert.True(t, a.Analyze("Show raw data including bad flags").Signals.Unfiltered)
	assert.False(t, a.Analyze("Show temperature data").Signals.Unfiltered)
}

func TestAnalyzeComplexityNeverBelowOne(t *testing.T) {
	a := newTestAnalyzer()
	inputs := []string{
		"compare", "average", "temperature salinity oxygen chlorophyll ph pressure",
		"arabian sea statistics of temperature, salinity and oxygen",
		"\x00\xff", "1901740", "15N 75E",
	}
	for _, in := range inputs {
		assert.GreaterOrEqual(t, a.Analyze(in).Complexity, 1, "input %q", in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "bay of bengal", Normalize("BAY OF BENGAL"))
	// fullwidth digits fold to ASCII under NFKC
	assert.Equal(t, "float 1901740", Normalize("float １９０１７４０"))
}
