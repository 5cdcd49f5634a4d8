package tools

import (
	"context"
	"fmt"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// RegionSummary is the parameter summary for the rows inside one region.
type RegionSummary struct {
	Region string `json:"region"`
	Summary
}

// CompareResult compares one parameter across two regions.
type CompareResult struct {
	Parameter string          `json:"parameter"`
	Regions   []RegionSummary `json:"regions"`
	// Difference is the first region's mean minus the second's. It is nil
	// unless both regions have data.
	Difference *float64 `json:"difference,omitempty"`
}

// CompareRegionsTool summarizes a parameter per region from rows fetched
// across both regions.
type CompareRegionsTool struct {
	catalog *catalog.Catalog
}

func (t *CompareRegionsTool) Name() string { return toolplan.CompareRegions }

func (t *CompareRegionsTool) Description() string {
	return "Compare a parameter between two ocean regions"
}

func (t *CompareRegionsTool) Call(_ context.Context, call engine.Call) (any, error) {
	names := []string{call.StringArg("region1", ""), call.StringArg("region2", "")}
	param := call.StringArg("parameter", toolplan.DefaultParameter)

	regions := make([]catalog.Region, len(names))
	for i, name := range names {
		r, ok := t.catalog.Region(name)
		if !ok {
			return nil, fmt.Errorf("unknown region %q", name)
		}
		regions[i] = r
	}

	data, err := fetched(call)
	if err != nil {
		return nil, err
	}
	tbl := data.Table
	if err := requireColumns(tbl, "latitude", "longitude", param); err != nil {
		return nil, err
	}

	res := CompareResult{Parameter: param}
	for _, r := range regions {
		res.Regions = append(res.Regions, RegionSummary{
			Region:  r.Name,
			Summary: Summarize(valuesWithin(tbl, r.Bounds, param)),
		})
	}
	a, b := res.Regions[0], res.Regions[1]
	if a.Count > 0 && b.Count > 0 {
		d := a.Mean - b.Mean
		res.Difference = &d
	}
	return res, nil
}

func valuesWithin(t *datasource.Table, b catalog.Bounds, column string) []float64 {
	var out []float64
	for r := range t.Rows {
		lat, ok1 := t.Float(r, "latitude")
		lon, ok2 := t.Float(r, "longitude")
		v, ok3 := t.Float(r, column)
		if ok1 && ok2 && ok3 && b.Contains(lat, lon) {
			out = append(out, v)
		}
	}
	return out
}
