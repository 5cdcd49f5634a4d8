package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// SignificanceLevel is the p-value below which a trend is significant.
const SignificanceLevel = 0.05

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// WeeklyMean is the mean of one calendar week, weeks starting Monday UTC.
type WeeklyMean struct {
	Week  time.Time `json:"week"`
	Mean  float64   `json:"mean"`
	Count int       `json:"count"`
}

// TrendResult is a least-squares fit of weekly means against week index.
type TrendResult struct {
	Region    string  `json:"region"`
	Parameter string  `json:"parameter"`
	Days      int     `json:"days"`
	Trend     string  `json:"trend"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	// PValue is the two-sided p-value of the slope. It is 1 when only two
	// weeks are available.
	PValue      float64      `json:"p_value"`
	Significant bool         `json:"significant"`
	Weeks       []WeeklyMean `json:"weeks"`
}

// TrendTool fits a linear trend to the weekly means of a parameter over
// the trailing window.
type TrendTool struct {
	catalog *catalog.Catalog
	clock   clockwork.Clock
}

func (t *TrendTool) Name() string { return toolplan.TemporalTrends }

func (t *TrendTool) Description() string {
	return "Analyze how a parameter changes over time in a region"
}

func (t *TrendTool) Call(_ context.Context, call engine.Call) (any, error) {
	region := call.StringArg("region", "")
	param := call.StringArg("parameter", toolplan.DefaultParameter)
	days := call.IntArg("days", toolplan.DefaultTrendDays)
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	data, err := fetched(call)
	if err != nil {
		return nil, err
	}
	tbl := data.Table
	if err := requireColumns(tbl, "timestamp", param); err != nil {
		return nil, err
	}

	// an unrecognised region applies no spatial filter
	bounds, bounded := t.regionBounds(region)
	if bounded {
		if err := requireColumns(tbl, "latitude", "longitude"); err != nil {
			return nil, err
		}
	}
	since := t.clock.Now().UTC().AddDate(0, 0, -days)

	byWeek := map[time.Time][]float64{}
	for r := range tbl.Rows {
		ts, ok := tbl.Time(r, "timestamp")
		if !ok || ts.Before(since) {
			continue
		}
		v, ok := tbl.Float(r, param)
		if !ok {
			continue
		}
		if bounded {
			lat, ok1 := tbl.Float(r, "latitude")
			lon, ok2 := tbl.Float(r, "longitude")
			if !ok1 || !ok2 || !bounds.Contains(lat, lon) {
				continue
			}
		}
		w := weekStart(ts)
		byWeek[w] = append(byWeek[w], v)
	}

	weeks := make([]WeeklyMean, 0, len(byWeek))
	for w, vs := range byWeek {
		m, _ := stats.Mean(vs)
		weeks = append(weeks, WeeklyMean{Week: w, Mean: m, Count: len(vs)})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Week.Before(weeks[j].Week) })
	if len(weeks) < 2 {
		return nil, fmt.Errorf("%w: trend needs two weeks of data, have %d", ErrInsufficientData, len(weeks))
	}

	res := TrendResult{Region: region, Parameter: param, Days: days, Weeks: weeks}
	res.Intercept, res.Slope, res.RSquared, res.PValue = fitWeeks(weeks)
	res.Significant = res.PValue < SignificanceLevel
	switch {
	case res.Slope > 0:
		res.Trend = TrendIncreasing
	case res.Slope < 0:
		res.Trend = TrendDecreasing
	default:
		res.Trend = TrendStable
	}
	return res, nil
}

func (t *TrendTool) regionBounds(name string) (catalog.Bounds, bool) {
	r, ok := t.catalog.Region(name)
	return r.Bounds, ok
}

// fitWeeks regresses weekly means on week index 0..n-1.
func fitWeeks(weeks []WeeklyMean) (intercept, slope, r2, p float64) {
	n := len(weeks)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, w := range weeks {
		x[i] = float64(i)
		y[i] = w.Mean
	}
	intercept, slope = stat.LinearRegression(x, y, nil, false)
	r2 = stat.RSquared(x, y, nil, intercept, slope)
	if math.IsNaN(r2) {
		// constant series
		r2 = 0
	}

	switch {
	case n <= 2:
		p = 1
	case r2 >= 1:
		p = 0
	default:
		df := float64(n - 2)
		tStat := math.Sqrt(r2 * df / (1 - r2))
		p = 2 * (1 - distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.CDF(tStat))
	}
	return intercept, slope, r2, p
}

func weekStart(ts time.Time) time.Time {
	ts = ts.UTC()
	offset := (int(ts.Weekday()) + 6) % 7
	d := ts.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
