package tools

import (
	"context"
	"math"

	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// waterMassRule is a temperature-salinity envelope, bounds inclusive.
type waterMassRule struct {
	name             string
	tempMin, tempMax float64
	salMin, salMax   float64
}

func (r waterMassRule) contains(temp, sal float64) bool {
	return temp >= r.tempMin && temp <= r.tempMax && sal >= r.salMin && sal <= r.salMax
}

var waterMassRules = []waterMassRule{
	{name: "Tropical Surface Water", tempMin: 20, tempMax: math.Inf(1), salMin: 34.5, salMax: 35.5},
	{name: "Central Water", tempMin: 10, tempMax: 20, salMin: 34.2, salMax: 35.5},
	{name: "Antarctic Intermediate Water", tempMin: math.Inf(-1), tempMax: 5, salMin: 33.8, salMax: 34.4},
	{name: "Deep Water", tempMin: math.Inf(-1), tempMax: 5, salMin: 34.6, salMax: math.Inf(1)},
}

// WaterMass is one identified water mass. Envelopes may overlap, so a
// measurement can count toward more than one mass.
type WaterMass struct {
	Name        string  `json:"water_mass"`
	MinPressure float64 `json:"min_pressure_dbar"`
	MaxPressure float64 `json:"max_pressure_dbar"`
	Count       int     `json:"count"`
}

// WaterMassResult lists the masses present in the fetched rows in rule
// order.
type WaterMassResult struct {
	WaterMasses []WaterMass `json:"water_masses"`
	RecordCount int         `json:"record_count"`
}

// WaterMassTool classifies measurements by T-S envelope.
type WaterMassTool struct{}

func (t *WaterMassTool) Name() string { return toolplan.WaterMasses }

func (t *WaterMassTool) Description() string {
	return "Identify water masses from temperature-salinity characteristics"
}

func (t *WaterMassTool) Call(_ context.Context, call engine.Call) (any, error) {
	data, err := fetched(call)
	if err != nil {
		return nil, err
	}
	tbl := data.Table
	if err := requireColumns(tbl, "pressure", "temperature", "salinity"); err != nil {
		return nil, err
	}

	found := make([]*WaterMass, len(waterMassRules))
	for r := range tbl.Rows {
		p, ok1 := tbl.Float(r, "pressure")
		temp, ok2 := tbl.Float(r, "temperature")
		sal, ok3 := tbl.Float(r, "salinity")
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		for i, rule := range waterMassRules {
			if !rule.contains(temp, sal) {
				continue
			}
			wm := found[i]
			if wm == nil {
				found[i] = &WaterMass{Name: rule.name, MinPressure: p, MaxPressure: p, Count: 1}
				continue
			}
			wm.MinPressure = min(wm.MinPressure, p)
			wm.MaxPressure = max(wm.MaxPressure, p)
			wm.Count++
		}
	}

	res := WaterMassResult{WaterMasses: []WaterMass{}, RecordCount: data.RowCount}
	for _, wm := range found {
		if wm != nil {
			res.WaterMasses = append(res.WaterMasses, *wm)
		}
	}
	return res, nil
}
