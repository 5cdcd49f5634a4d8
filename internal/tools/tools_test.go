package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

var trendNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T, src datasource.Source, s Searcher) *engine.Registry {
	t.Helper()
	cat := catalog.Default()
	reg, err := NewRegistry(Deps{
		Catalog:  cat,
		Compiler: compiler.New(cat),
		Source:   src,
		Searcher: s,
		Clock:    clockwork.NewFakeClockAt(trendNow),
	})
	require.NoError(t, err)
	return reg
}

func lookup(t *testing.T, reg *engine.Registry, name string) engine.Tool {
	t.Helper()
	tool, ok := reg.Lookup(name)
	require.True(t, ok, "tool %s not registered", name)
	return tool
}

// withRows builds a call whose fetch_data dependency returned tbl.
func withRows(tbl *datasource.Table, args map[string]any) engine.Call {
	return engine.Call{
		Invocation: toolplan.Invocation{Arguments: args},
		Upstream: map[string]engine.ToolResult{
			toolplan.FetchData: {
				ToolName:  toolplan.FetchData,
				Succeeded: true,
				Payload:   FetchResult{Region: "Bay of Bengal", RowCount: tbl.Len(), Table: tbl},
			},
		},
	}
}

func profileTable() *datasource.Table {
	return &datasource.Table{
		Columns: []string{"pressure", "temperature"},
		Rows: [][]any{
			{0.0, 28.0},
			{10.0, 28.0},
			{20.0, 27.5},
			{30.0, 25.0},
			{40.0, 20.0},
			{50.0, 18.0},
		},
	}
}

func TestNewRegistryRegistersEveryTool(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(&datasource.Table{}), nil)

	var names []string
	for _, info := range reg.Describe() {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Description)
	}
	assert.ElementsMatch(t, []string{
		toolplan.ListCapabilities, toolplan.DescribeSchema, toolplan.FetchData,
		toolplan.Thermocline, toolplan.WaterMasses, toolplan.CompareRegions,
		toolplan.TemporalTrends, toolplan.MixedLayerDepth, toolplan.FloatProfile,
		toolplan.SimilarProfiles,
	}, names)
}

func TestDepsValidate(t *testing.T) {
	_, err := NewRegistry(Deps{})
	require.Error(t, err)

	cat := catalog.Default()
	d := Deps{Catalog: cat, Compiler: compiler.New(cat), Source: datasource.NewStatic(nil)}
	require.NoError(t, d.Validate())
	assert.NotNil(t, d.Analyzer)
	assert.NotNil(t, d.Clock)
	assert.NotNil(t, d.Logger)
}

func TestCapabilitiesAndSchema(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(&datasource.Table{}), nil)

	got, err := lookup(t, reg, toolplan.ListCapabilities).Call(context.Background(), engine.Call{})
	require.NoError(t, err)
	assert.Len(t, got, 10)

	got, err = lookup(t, reg, toolplan.DescribeSchema).Call(context.Background(), engine.Call{})
	require.NoError(t, err)
	schema := got.(SchemaResult)
	assert.Equal(t, "argo_profiles", schema.Table)
	assert.Contains(t, schema.Regions, "Bay of Bengal")
	assert.Equal(t, []int{1, 2, 3}, schema.Quality.Accepted)
}

func TestFetchToolCompilesAndTruncates(t *testing.T) {
	src := datasource.NewStatic(profileTable())
	reg := newRegistry(t, src, nil)

	got, err := lookup(t, reg, toolplan.FetchData).Call(context.Background(), engine.Call{
		Invocation: toolplan.Invocation{Arguments: map[string]any{
			"query": "show temperature in the Bay of Bengal",
			"limit": 2,
		}},
	})
	require.NoError(t, err)

	res := got.(FetchResult)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, 2, res.Table.Len())
	assert.True(t, res.Truncated)
	assert.Equal(t, "Bay of Bengal", res.Region)
	assert.Equal(t, compiler.SourceTemplate, res.Source)
	require.Len(t, src.Queries(), 1)
	assert.Equal(t, res.SQL, src.Queries()[0])
	assert.Contains(t, res.SQL, "FROM argo_profiles")
	// the shared table is not modified
	assert.Equal(t, 6, profileTable().Len())
}

func TestFetchToolFallsBackToQuestion(t *testing.T) {
	src := datasource.NewStatic(profileTable())
	reg := newRegistry(t, src, nil)

	got, err := lookup(t, reg, toolplan.FetchData).Call(context.Background(), engine.Call{
		Question: "temperature in the Arabian Sea",
	})
	require.NoError(t, err)
	res := got.(FetchResult)
	assert.Equal(t, "Arabian Sea", res.Region)
	assert.False(t, res.Truncated)
	assert.Equal(t, 6, res.RowCount)
}

func TestFetchToolSourceError(t *testing.T) {
	reg := newRegistry(t, datasource.NewFailing(errors.New("connection refused")), nil)

	_, err := lookup(t, reg, toolplan.FetchData).Call(context.Background(), engine.Call{Question: "temperature"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query: connection refused")
}

func TestDerivedToolsNeedFetchedRows(t *testing.T) {
	tool := &ThermoclineTool{}

	_, err := tool.Call(context.Background(), engine.Call{})
	assert.ErrorIs(t, err, ErrNoUpstream)

	_, err = tool.Call(context.Background(), engine.Call{Upstream: map[string]engine.ToolResult{
		toolplan.FetchData: {Succeeded: false, ErrorMessage: "TIMEOUT: deadline"},
	}})
	assert.ErrorIs(t, err, ErrUpstreamFailed)
	assert.Contains(t, err.Error(), "TIMEOUT: deadline")

	_, err = tool.Call(context.Background(), withRows(&datasource.Table{Columns: []string{"pressure"}}, nil))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMeanProfileBinsByPressure(t *testing.T) {
	tbl := &datasource.Table{
		Columns: []string{"pressure", "temperature"},
		Rows: [][]any{
			{15.0, 25.0},
			{5.0, 28.0},
			{7.0, 26.0},
			{nil, 30.0},
			{-1.0, 30.0},
			{25.0, nil},
		},
	}
	levels, err := meanProfile(tbl, "temperature")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.InDelta(t, 6.0, levels[0].Pressure, 1e-9)
	assert.InDelta(t, 27.0, levels[0].Value, 1e-9)
	assert.Equal(t, 2, levels[0].Count)
	assert.InDelta(t, 15.0, levels[1].Pressure, 1e-9)

	_, err = meanProfile(tbl, "salinity")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestThermocline(t *testing.T) {
	got, err := (&ThermoclineTool{}).Call(context.Background(), withRows(profileTable(), nil))
	require.NoError(t, err)

	res := got.(ThermoclineResult)
	assert.Equal(t, "Bay of Bengal", res.Region)
	assert.InDelta(t, 40.0, res.DepthDbar, 1e-9)
	assert.InDelta(t, 0.5, res.Strength, 1e-9)
	assert.InDelta(t, 28.0, res.SurfaceTemp, 1e-9)
	assert.InDelta(t, 18.0, res.DeepTemp, 1e-9)
	assert.Equal(t, 6, res.Levels)
	assert.Equal(t, 6, res.RecordCount)
}

func TestThermoclineNeedsTwoLevels(t *testing.T) {
	tbl := &datasource.Table{Columns: []string{"pressure", "temperature"}, Rows: [][]any{{3.0, 28.0}, {4.0, 27.0}}}
	_, err := (&ThermoclineTool{}).Call(context.Background(), withRows(tbl, nil))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMixedLayerDepth(t *testing.T) {
	tool := &MixedLayerTool{}

	got, err := tool.Call(context.Background(), withRows(profileTable(), map[string]any{"threshold": 0.5}))
	require.NoError(t, err)
	res := got.(MixedLayerResult)
	assert.InDelta(t, 30.0, res.MixedLayerDepth, 1e-9)
	assert.True(t, res.Reached)
	assert.Equal(t, "dbar", res.Unit)

	got, err = tool.Call(context.Background(), withRows(profileTable(), map[string]any{"threshold": 20.0}))
	require.NoError(t, err)
	res = got.(MixedLayerResult)
	assert.InDelta(t, 50.0, res.MixedLayerDepth, 1e-9)
	assert.False(t, res.Reached)

	_, err = tool.Call(context.Background(), withRows(profileTable(), map[string]any{"threshold": -1.0}))
	assert.Error(t, err)
}

func TestMixedLayerDefaultThreshold(t *testing.T) {
	got, err := (&MixedLayerTool{}).Call(context.Background(), withRows(profileTable(), nil))
	require.NoError(t, err)
	assert.InDelta(t, toolplan.DefaultMLDThreshold, got.(MixedLayerResult).Threshold, 1e-9)
}

func TestWaterMasses(t *testing.T) {
	tbl := &datasource.Table{
		Columns: []string{"pressure", "temperature", "salinity"},
		Rows: [][]any{
			{10.0, 28.0, 35.0},
			{100.0, 15.0, 35.0},
			{800.0, 4.0, 34.0},
			{1500.0, 2.0, 34.7},
			{1600.0, 2.5, 34.8},
			{50.0, 28.0, nil},
		},
	}
	got, err := (&WaterMassTool{}).Call(context.Background(), withRows(tbl, nil))
	require.NoError(t, err)

	res := got.(WaterMassResult)
	assert.Equal(t, []WaterMass{
		{Name: "Tropical Surface Water", MinPressure: 10, MaxPressure: 10, Count: 1},
		{Name: "Central Water", MinPressure: 100, MaxPressure: 100, Count: 1},
		{Name: "Antarctic Intermediate Water", MinPressure: 800, MaxPressure: 800, Count: 1},
		{Name: "Deep Water", MinPressure: 1500, MaxPressure: 1600, Count: 2},
	}, res.WaterMasses)
	assert.Equal(t, 6, res.RecordCount)
}

func TestWaterMassesRequireSalinity(t *testing.T) {
	_, err := (&WaterMassTool{}).Call(context.Background(), withRows(profileTable(), nil))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestCompareRegions(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)
	tbl := &datasource.Table{
		Columns: []string{"latitude", "longitude", "temperature"},
		Rows: [][]any{
			{15.0, 65.0, 28.0},
			{16.0, 66.0, 30.0},
			{15.0, 90.0, 27.0},
			{-40.0, 60.0, 5.0},
		},
	}
	got, err := lookup(t, reg, toolplan.CompareRegions).Call(context.Background(), withRows(tbl, map[string]any{
		"region1":   "Arabian Sea",
		"region2":   "Bay of Bengal",
		"parameter": "temperature",
	}))
	require.NoError(t, err)

	res := got.(CompareResult)
	require.Len(t, res.Regions, 2)
	assert.Equal(t, "Arabian Sea", res.Regions[0].Region)
	assert.Equal(t, 2, res.Regions[0].Count)
	assert.InDelta(t, 29.0, res.Regions[0].Mean, 1e-9)
	assert.Equal(t, 1, res.Regions[1].Count)
	assert.Zero(t, res.Regions[1].StdDev)
	require.NotNil(t, res.Difference)
	assert.InDelta(t, 2.0, *res.Difference, 1e-9)
}

func TestCompareRegionsWithoutDataOmitsDifference(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)
	tbl := &datasource.Table{
		Columns: []string{"latitude", "longitude", "temperature"},
		Rows:    [][]any{{15.0, 65.0, 28.0}},
	}
	got, err := lookup(t, reg, toolplan.CompareRegions).Call(context.Background(), withRows(tbl, map[string]any{
		"region1": "Arabian Sea",
		"region2": "Red Sea",
	}))
	require.NoError(t, err)
	res := got.(CompareResult)
	assert.Equal(t, toolplan.DefaultParameter, res.Parameter)
	assert.Zero(t, res.Regions[1].Count)
	assert.Nil(t, res.Difference)
}

func TestCompareRegionsUnknownRegion(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)
	_, err := lookup(t, reg, toolplan.CompareRegions).Call(context.Background(), withRows(profileTable(), map[string]any{
		"region1": "Atlantis",
		"region2": "Bay of Bengal",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Atlantis")
}

func trendTable() *datasource.Table {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 6, 0, 0, 0, time.UTC) }
	return &datasource.Table{
		Columns: []string{"timestamp", "latitude", "longitude", "temperature"},
		Rows: [][]any{
			{day(time.March, 4), 15.0, 90.0, 25.5},
			{day(time.March, 6), 15.0, 90.0, 26.5},
			{day(time.March, 11), 15.0, 90.0, 27.0},
			{day(time.March, 18), 15.0, 90.0, 28.0},
			// outside the region
			{day(time.March, 18), 15.0, 65.0, 100.0},
			// outside the window
			{time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), 15.0, 90.0, -50.0},
		},
	}
}

func TestTemporalTrend(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)

	got, err := lookup(t, reg, toolplan.TemporalTrends).Call(context.Background(), withRows(trendTable(), map[string]any{
		"region":    "Bay of Bengal",
		"parameter": "temperature",
		"days":      90,
	}))
	require.NoError(t, err)

	res := got.(TrendResult)
	require.Len(t, res.Weeks, 3)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), res.Weeks[0].Week)
	assert.Equal(t, 2, res.Weeks[0].Count)
	assert.InDelta(t, 26.0, res.Weeks[0].Mean, 1e-9)
	assert.InDelta(t, 1.0, res.Slope, 1e-9)
	assert.InDelta(t, 26.0, res.Intercept, 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.Equal(t, TrendIncreasing, res.Trend)
	assert.True(t, res.Significant)
}

func TestTemporalTrendUnknownRegionIsUnfiltered(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)

	got, err := lookup(t, reg, toolplan.TemporalTrends).Call(context.Background(), withRows(trendTable(), map[string]any{
		"region": intent.RegionNotSpecified,
	}))
	require.NoError(t, err)
	res := got.(TrendResult)
	require.Len(t, res.Weeks, 3)
	// the Arabian Sea row joins the last week
	assert.Equal(t, 2, res.Weeks[2].Count)
	assert.Equal(t, toolplan.DefaultTrendDays, res.Days)
}

func TestTemporalTrendInsufficientData(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)

	_, err := lookup(t, reg, toolplan.TemporalTrends).Call(context.Background(), withRows(trendTable(), map[string]any{
		"region": "Bay of Bengal",
		"days":   14,
	}))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitWeeksTwoPointsNotSignificant(t *testing.T) {
	_, slope, r2, p := fitWeeks([]WeeklyMean{{Mean: 2}, {Mean: 1}})
	assert.InDelta(t, -1.0, slope, 1e-9)
	assert.InDelta(t, 1.0, r2, 1e-9)
	assert.Equal(t, 1.0, p)
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, weekStart(time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, monday, weekStart(time.Date(2024, 3, 25, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, monday, weekStart(time.Date(2024, 3, 27, 0, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))))
}

func TestFloatProfile(t *testing.T) {
	ts1 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	ts2 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	src := datasource.NewStatic(&datasource.Table{
		Columns: []string{"float_id", "cycle_number", "latitude", "longitude", "timestamp", "pressure", "temperature", "salinity"},
		Rows: [][]any{
			{"b'2902746 '", int64(1), 10.0, 88.0, ts2, 5.0, 29.0, 34.0},
			{"b'2902746 '", int64(1), 12.0, 90.0, ts1, 500.0, 9.0, 35.0},
		},
	})
	reg := newRegistry(t, src, nil)

	got, err := lookup(t, reg, toolplan.FloatProfile).Call(context.Background(), engine.Call{
		Invocation: toolplan.Invocation{Arguments: map[string]any{"float_id": "2902746"}},
	})
	require.NoError(t, err)

	res := got.(FloatProfileResult)
	assert.Equal(t, 2, res.Measurements)
	assert.Contains(t, src.Queries()[0], "float_id LIKE '%2902746%'")
	require.NotNil(t, res.Location)
	assert.InDelta(t, 11.0, res.Location.Latitude, 1e-9)
	assert.InDelta(t, 89.0, res.Location.Longitude, 1e-9)
	require.NotNil(t, res.DateRange)
	assert.Equal(t, ts1, res.DateRange.Start)
	assert.Equal(t, ts2, res.DateRange.End)
	require.NotNil(t, res.Temperature)
	assert.InDelta(t, 9.0, res.Temperature.Min, 1e-9)
	assert.InDelta(t, 29.0, res.Temperature.Max, 1e-9)
	require.NotNil(t, res.Pressure)
	assert.InDelta(t, 500.0, res.Pressure.Max, 1e-9)
}

func TestFloatProfileNotFound(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(&datasource.Table{Columns: []string{"float_id"}}), nil)
	tool := lookup(t, reg, toolplan.FloatProfile)

	_, err := tool.Call(context.Background(), engine.Call{
		Invocation: toolplan.Invocation{Arguments: map[string]any{"float_id": "1901740"}},
	})
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = tool.Call(context.Background(), engine.Call{})
	assert.Error(t, err)
}

func TestSimilarProfiles(t *testing.T) {
	var gotK int
	searcher := SearcherFunc(func(_ context.Context, text string, k int) ([]Match, error) {
		gotK = k
		return []Match{
			{Score: 0.9, Profile: map[string]any{"float_id": "1"}},
			{Score: 0.8, Profile: map[string]any{"float_id": "2"}},
			{Score: 0.7, Profile: map[string]any{"float_id": "3"}},
		}, nil
	})
	reg := newRegistry(t, datasource.NewStatic(nil), searcher)

	got, err := lookup(t, reg, toolplan.SimilarProfiles).Call(context.Background(), engine.Call{
		Question:   "profiles like this one",
		Invocation: toolplan.Invocation{Arguments: map[string]any{"top_k": 2}},
	})
	require.NoError(t, err)
	res := got.(SimilarResult)
	assert.Equal(t, 2, gotK)
	assert.Equal(t, "profiles like this one", res.Query)
	assert.Len(t, res.Results, 2)
}

func TestSimilarProfilesWithoutSearcher(t *testing.T) {
	reg := newRegistry(t, datasource.NewStatic(nil), nil)
	_, err := lookup(t, reg, toolplan.SimilarProfiles).Call(context.Background(), engine.Call{Question: "similar"})
	assert.ErrorIs(t, err, ErrNoSearcher)
}

func TestThermoclinePlanEndToEnd(t *testing.T) {
	cat := catalog.Default()
	src := datasource.NewStatic(profileTable())
	reg := newRegistry(t, src, nil)
	orch := engine.New(reg, engine.WithConcurrency(2))
	defer orch.Close()

	question := "Calculate thermocline in the Bay of Bengal"
	a := intent.NewAnalyzer(cat).Analyze(question)
	plan := toolplan.NewSelector(cat).Select(question, a)

	report, err := orch.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed())

	res, ok := report.Result(toolplan.Thermocline)
	require.True(t, ok)
	thermo := res.Payload.(ThermoclineResult)
	assert.InDelta(t, 40.0, thermo.DepthDbar, 1e-9)
	assert.Equal(t, "Bay of Bengal", thermo.Region)
}
