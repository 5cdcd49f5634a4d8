// Package intent classifies free-text oceanographic questions.
//
// Analysis is total: any input, including empty or nonsensical text,
// produces an Analysis with safe defaults. Ambiguity is never an error.
package intent

import "github.com/Abuzaid-01/Float-Chat/internal/catalog"

// Type is the classified purpose of a question.
type Type string

const (
	TypeGeographic    Type = "geographic"
	TypeNearest       Type = "nearest"
	TypeTemporal      Type = "temporal"
	TypeDepth         Type = "depth"
	TypeParameter     Type = "parameter"
	TypeComparison    Type = "comparison"
	TypeStatistics    Type = "statistics"
	TypeFloatSpecific Type = "float_specific"
	TypeGeneral       Type = "general"
)

// Defaults used when a detection pass finds nothing.
const (
	RegionNotSpecified = "Not specified"
	AllTime            = "All time"
)

// Region is the resolved geographic region. Bounds is nil when no region
// was recognised.
type Region struct {
	Name   string          `json:"name"`
	Bounds *catalog.Bounds `json:"bounds,omitempty"`
}

// Resolved reports whether a named region was recognised.
func (r Region) Resolved() bool { return r.Bounds != nil }

// TimePeriod is the resolved time window. Days, Year and Month are zero
// when they do not apply.
type TimePeriod struct {
	Label string `json:"label"`
	Days  int    `json:"days,omitempty"`
	Year  int    `json:"year,omitempty"`
	Month int    `json:"month,omitempty"`
}

// Coordinates is a point extracted from the question.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Source is the named location the point came from, empty for
	// numeric coordinates.
	Source string `json:"source,omitempty"`
}

// Signals are the literal values pulled out of the question text.
type Signals struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	// RadiusKm is zero when no radius was stated.
	RadiusKm   float64  `json:"radius_km,omitempty"`
	FloatIDs   []string `json:"float_ids,omitempty"`
	Cycle      int      `json:"cycle,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Unfiltered bool     `json:"unfiltered,omitempty"`
	// Regions lists every recognised region in order of appearance.
	Regions []string `json:"regions,omitempty"`
}

// Analysis is the immutable result of classifying one question.
type Analysis struct {
	Type       Type               `json:"type"`
	Region     Region             `json:"region"`
	Parameters []string           `json:"parameters"`
	TimePeriod TimePeriod         `json:"time_period"`
	DepthZone  *catalog.DepthZone `json:"depth_zone,omitempty"`
	Complexity int                `json:"complexity"`
	Signals    Signals            `json:"signals"`
}

// HasParameter reports whether name was requested.
func (a Analysis) HasParameter(name string) bool {
	for _, p := range a.Parameters {
		if p == name {
			return true
		}
	}
	return false
}
