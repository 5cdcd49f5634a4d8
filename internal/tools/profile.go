package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// ThermoclineResult locates the layer of fastest temperature decrease.
type ThermoclineResult struct {
	Region string `json:"region"`
	// DepthDbar is the pressure of the deeper level of the steepest step.
	DepthDbar float64 `json:"thermocline_depth_dbar"`
	// Strength is the absolute gradient in degC per dbar.
	Strength    float64 `json:"thermocline_strength"`
	SurfaceTemp float64 `json:"surface_temp"`
	DeepTemp    float64 `json:"deep_temp"`
	Levels      int     `json:"levels"`
	RecordCount int     `json:"record_count"`
}

// ThermoclineTool finds the maximum vertical temperature gradient of the
// mean profile.
type ThermoclineTool struct{}

func (t *ThermoclineTool) Name() string { return toolplan.Thermocline }

func (t *ThermoclineTool) Description() string {
	return "Calculate thermocline depth and strength from fetched temperature profiles"
}

func (t *ThermoclineTool) Call(_ context.Context, call engine.Call) (any, error) {
	data, err := fetched(call)
	if err != nil {
		return nil, err
	}
	levels, err := meanProfile(data.Table, "temperature")
	if err != nil {
		return nil, err
	}
	if len(levels) < 2 {
		return nil, fmt.Errorf("%w: thermocline needs two pressure levels, have %d", ErrInsufficientData, len(levels))
	}

	res := ThermoclineResult{
		Region:      data.Region,
		SurfaceTemp: levels[0].Value,
		DeepTemp:    levels[len(levels)-1].Value,
		Levels:      len(levels),
		RecordCount: data.RowCount,
	}
	for i := 1; i < len(levels); i++ {
		dp := levels[i].Pressure - levels[i-1].Pressure
		if dp <= 0 {
			continue
		}
		g := math.Abs((levels[i].Value - levels[i-1].Value) / dp)
		if g > res.Strength {
			res.Strength = g
			res.DepthDbar = levels[i].Pressure
		}
	}
	return res, nil
}

// MixedLayerResult is the depth at which temperature first drops below
// the surface value by the threshold.
type MixedLayerResult struct {
	MixedLayerDepth float64 `json:"mixed_layer_depth"`
	Threshold       float64 `json:"threshold"`
	Unit            string  `json:"unit"`
	SurfaceTemp     float64 `json:"surface_temp"`
	// Reached is false when no level is cold enough and the deepest
	// level is reported instead.
	Reached bool `json:"reached"`
}

// MixedLayerTool applies the temperature threshold method to the mean
// profile.
type MixedLayerTool struct{}

func (t *MixedLayerTool) Name() string { return toolplan.MixedLayerDepth }

func (t *MixedLayerTool) Description() string {
	return "Calculate mixed layer depth with the temperature threshold method"
}

func (t *MixedLayerTool) Call(_ context.Context, call engine.Call) (any, error) {
	threshold := call.FloatArg("threshold", toolplan.DefaultMLDThreshold)
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %g", threshold)
	}
	data, err := fetched(call)
	if err != nil {
		return nil, err
	}
	levels, err := meanProfile(data.Table, "temperature")
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no temperature levels", ErrInsufficientData)
	}

	surface := levels[0].Value
	res := MixedLayerResult{
		Threshold:       threshold,
		Unit:            "dbar",
		SurfaceTemp:     surface,
		MixedLayerDepth: levels[len(levels)-1].Pressure,
	}
	for _, l := range levels {
		if l.Value < surface-threshold {
			res.MixedLayerDepth = l.Pressure
			res.Reached = true
			break
		}
	}
	return res, nil
}
