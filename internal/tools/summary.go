package tools

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
)

// Summary describes one column of values.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	// StdDev is the sample standard deviation, zero below two values.
	StdDev float64 `json:"std"`
}

// Summarize returns the zero Summary for an empty input.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(values)}
	s.Min, _ = stats.Min(values)
	s.Max, _ = stats.Max(values)
	s.Mean, _ = stats.Mean(values)
	s.Median, _ = stats.Median(values)
	if len(values) > 1 {
		s.StdDev, _ = stats.StandardDeviationSample(values)
	}
	return s
}

// BinWidthDbar is the pressure bin used to merge measurements from many
// casts into one mean profile.
const BinWidthDbar = 10.0

// Level is one bin of a mean profile.
type Level struct {
	Pressure float64 `json:"pressure_dbar"`
	Value    float64 `json:"value"`
	Count    int     `json:"count"`
}

// meanProfile bins rows by pressure and averages column within each bin.
// Levels are ordered shallow to deep. Rows with a null pressure or value,
// or a negative pressure, are skipped.
func meanProfile(t *datasource.Table, column string) ([]Level, error) {
	if err := requireColumns(t, "pressure", column); err != nil {
		return nil, err
	}
	type bin struct{ p, v []float64 }
	bins := map[int]*bin{}
	for r := range t.Rows {
		p, ok := t.Float(r, "pressure")
		if !ok || p < 0 {
			continue
		}
		v, ok := t.Float(r, column)
		if !ok {
			continue
		}
		k := int(math.Floor(p / BinWidthDbar))
		b, ok := bins[k]
		if !ok {
			b = &bin{}
			bins[k] = b
		}
		b.p = append(b.p, p)
		b.v = append(b.v, v)
	}

	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	levels := make([]Level, 0, len(keys))
	for _, k := range keys {
		b := bins[k]
		p, _ := stats.Mean(b.p)
		v, _ := stats.Mean(b.v)
		levels = append(levels, Level{Pressure: p, Value: v, Count: len(b.v)})
	}
	return levels, nil
}
