package toolplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
)

func selectFor(text string) Plan {
	c := catalog.Default()
	return NewSelector(c).Select(text, intent.NewAnalyzer(c).Analyze(text))
}

func TestSelectThermoclineBayOfBengal(t *testing.T) {
	plan := selectFor("Calculate thermocline for Bay of Bengal")

	require.Equal(t, []string{FetchData, Thermocline}, plan.Names())
	assert.Equal(t, "fetch_data#1", plan.Invocations[0].ID)
	assert.Equal(t, map[string]any{"query": "Calculate thermocline for Bay of Bengal", "limit": 5000}, plan.Invocations[0].Arguments)
	assert.Equal(t, []string{"fetch_data#1"}, plan.Invocations[1].DependsOn)
	assert.NoError(t, plan.Validate())
}

func TestSelectShortCircuits(t *testing.T) {
	assert.Equal(t, []string{ListCapabilities}, selectFor("What tools are available to analyse thermocline data?").Names())
	assert.Equal(t, []string{DescribeSchema}, selectFor("Show me the database schema").Names())
	assert.Equal(t, []string{DescribeSchema}, selectFor("Which columns hold temperature?").Names())
}

func TestSelectDefaultsToFetch(t *testing.T) {
	plan := selectFor("hello there")
	assert.Equal(t, []string{FetchData}, plan.Names())
	assert.Empty(t, plan.Invocations[0].DependsOn)

	plan = selectFor("")
	assert.Equal(t, []string{FetchData}, plan.Names())
}

func TestSelectInsertsFetchBeforeAnalytics(t *testing.T) {
	// nothing in this text asks for data directly
	plan := selectFor("mixed layer depth near chennai")

	require.Equal(t, []string{FetchData, MixedLayerDepth}, plan.Names())
	assert.Equal(t, 0.5, plan.Invocations[1].Arguments["threshold"])
	assert.Equal(t, []string{"fetch_data#1"}, plan.Invocations[1].DependsOn)
}

func TestSelectCompareRegions(t *testing.T) {
	plan := selectFor("Compare temperature between Bay of Bengal and Arabian Sea")

	require.Equal(t, []string{FetchData, CompareRegions}, plan.Names())
	assert.Equal(t, map[string]any{
		"region1":   "Bay of Bengal",
		"region2":   "Arabian Sea",
		"parameter": "temperature",
	}, plan.Invocations[1].Arguments)
}

func TestSelectCompareNeedsTwoRegions(t *testing.T) {
	plan := selectFor("Compare salinity in the Arabian Sea")
	assert.NotContains(t, plan.Names(), CompareRegions)
}

func TestSelectTemporalTrend(t *testing.T) {
	plan := selectFor("Show salinity trend in the Arabian Sea")

	require.Equal(t, []string{FetchData, TemporalTrends}, plan.Names())
	assert.Equal(t, map[string]any{
		"region":    "Arabian Sea",
		"parameter": "salinity",
		"days":      90,
	}, plan.Invocations[1].Arguments)

	plan = selectFor("temperature trend for the last 6 months")
	assert.Equal(t, 180, plan.Invocations[1].Arguments["days"])
}

func TestSelectRuleOrder(t *testing.T) {
	plan := selectFor("Show the thermocline, mixed layer and the trend of water mass properties")

	assert.Equal(t, []string{FetchData, Thermocline, WaterMasses, TemporalTrends, MixedLayerDepth}, plan.Names())
}

func TestSelectSchemaWinsOverAnalytics(t *testing.T) {
	for _, text := range []string{
		"Show the thermocline and water mass structure",
		"Which table holds the mixed layer depth trend?",
	} {
		assert.Equal(t, []string{DescribeSchema}, selectFor(text).Names(), text)
	}
}

func TestSelectFloatProfileAndSimilarity(t *testing.T) {
	plan := selectFor("Analyze float 1901740")
	require.Equal(t, []string{FetchData, FloatProfile}, plan.Names())
	assert.Equal(t, map[string]any{"float_id": "1901740"}, plan.Invocations[1].Arguments)
	assert.Empty(t, plan.Invocations[1].DependsOn)

	plan = selectFor("Find profiles similar to a warm eddy")
	require.Equal(t, []string{FetchData, SimilarProfiles}, plan.Names())
	assert.Equal(t, 5, plan.Invocations[1].Arguments["top_k"])
	assert.Empty(t, plan.Invocations[1].DependsOn)
}

func TestSelectRequestedLimit(t *testing.T) {
	plan := selectFor("show top 50 temperature profiles")
	assert.Equal(t, 50, plan.Invocations[0].Arguments["limit"])
}

func TestSelectIsDeterministic(t *testing.T) {
	text := "Compare thermocline and mixed layer between Arabian Sea and Bay of Bengal over time"
	assert.Equal(t, selectFor(text), selectFor(text))
}

func TestSelectFetchPrecedesDerived(t *testing.T) {
	questions := []string{
		"Calculate thermocline for Bay of Bengal",
		"water masses in the arabian sea",
		"mld trend",
		"compare arabian sea vs bay of bengal temperature",
		"similar profiles with a sharp thermocline",
		"historical salinity",
	}
	for _, q := range questions {
		plan := selectFor(q)
		require.NoError(t, plan.Validate(), q)

		fetch := -1
		for i, inv := range plan.Invocations {
			if inv.Name == FetchData {
				fetch = i
			}
			if len(inv.DependsOn) > 0 {
				assert.GreaterOrEqual(t, fetch, 0, q)
				assert.Less(t, fetch, i, q)
			}
		}
	}
}
