package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// ErrProfileNotFound means no measurement matched the float.
var ErrProfileNotFound = errors.New("profile not found")

// Location is a mean position.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// TimeRange spans the first and last measurement.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FloatProfileResult summarizes every measurement of one float, or of one
// cycle when Cycle is set.
type FloatProfileResult struct {
	FloatID      string     `json:"float_id"`
	Cycle        int        `json:"cycle_number,omitempty"`
	SQL          string     `json:"sql"`
	Measurements int        `json:"measurements"`
	Location     *Location  `json:"location,omitempty"`
	DateRange    *TimeRange `json:"date_range,omitempty"`
	Temperature  *Summary   `json:"temperature,omitempty"`
	Salinity     *Summary   `json:"salinity,omitempty"`
	Pressure     *Summary   `json:"depth_range,omitempty"`
}

// FloatProfileTool fetches and summarizes one float's measurements. It
// runs its own query so it does not depend on fetch_data.
type FloatProfileTool struct {
	q *querier
}

func (t *FloatProfileTool) Name() string { return toolplan.FloatProfile }

func (t *FloatProfileTool) Description() string {
	return "Analyze the measurements of a single ARGO float"
}

func (t *FloatProfileTool) Call(ctx context.Context, call engine.Call) (any, error) {
	id := call.StringArg("float_id", "")
	if id == "" {
		return nil, errors.New("float_id is required")
	}
	cycle := call.IntArg("cycle_number", 0)

	question := "show all measurements for float " + id
	if cycle > 0 {
		question = fmt.Sprintf("%s cycle %d", question, cycle)
	}
	data, err := t.q.run(ctx, question)
	if err != nil {
		return nil, err
	}
	tbl := data.Table
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("%w: float %s", ErrProfileNotFound, id)
	}

	res := FloatProfileResult{FloatID: id, Cycle: cycle, SQL: data.SQL, Measurements: tbl.Len()}
	lats, lons := tbl.Floats("latitude"), tbl.Floats("longitude")
	if len(lats) > 0 && len(lons) > 0 {
		lat, _ := stats.Mean(lats)
		lon, _ := stats.Mean(lons)
		res.Location = &Location{Latitude: lat, Longitude: lon}
	}
	res.DateRange = timeRange(tbl.Len(), func(r int) (time.Time, bool) { return tbl.Time(r, "timestamp") })
	res.Temperature = summaryOf(tbl.Floats("temperature"))
	res.Salinity = summaryOf(tbl.Floats("salinity"))
	res.Pressure = summaryOf(tbl.Floats("pressure"))
	return res, nil
}

func summaryOf(values []float64) *Summary {
	if len(values) == 0 {
		return nil
	}
	s := Summarize(values)
	return &s
}

func timeRange(n int, at func(int) (time.Time, bool)) *TimeRange {
	var tr *TimeRange
	for r := 0; r < n; r++ {
		ts, ok := at(r)
		if !ok {
			continue
		}
		if tr == nil {
			tr = &TimeRange{Start: ts, End: ts}
			continue
		}
		if ts.Before(tr.Start) {
			tr.Start = ts
		}
		if ts.After(tr.End) {
			tr.End = ts
		}
	}
	return tr
}
