// Package catalog holds the versioned description of the argo_profiles
// table together with the ordered keyword tables that drive intent
// analysis and tool selection.
//
// The catalog is authored in CUE (catalog.cue, embedded at build time) so
// that region boxes, parameter synonyms and time phrases can be extended
// without touching code. A deployment can point at its own file with Load;
// the same constraints are enforced either way.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed catalog.cue
var defaultSource []byte

// Catalog is the decoded, validated catalog. Treat it as read-only once
// loaded; it is shared by every request.
type Catalog struct {
	Version     string           `json:"version"`
	Schema      Schema           `json:"schema"`
	Regions     []Region         `json:"regions"`
	QueryTypes  []QueryTypeRule  `json:"query_types"`
	Parameters  []ParameterRule  `json:"parameters"`
	TimePeriods []TimePeriodRule `json:"time_periods"`
	DepthZones  []DepthZone      `json:"depth_zones"`
	Locations   []Location       `json:"locations"`
	Tools       ToolKeywords     `json:"tools"`
	Unfiltered  Keywords         `json:"unfiltered"`
}

// Schema describes the single queryable table.
type Schema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
	Quality Quality  `json:"quality"`
	Limits  Limits   `json:"limits"`
}

// Column is one column of the table.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
	Identifier  bool   `json:"identifier"`
	BGC         bool   `json:"bgc"`
}

// Quality lists the quality-flag columns and the flag values a default
// query keeps.
type Quality struct {
	Columns  []string          `json:"columns"`
	Accepted []int             `json:"accepted"`
	Flags    map[string]string `json:"flags"`
}

// Limits bounds the number of rows a compiled query may return.
type Limits struct {
	DefaultRows int `json:"default_rows"`
	MaxRows     int `json:"max_rows"`
}

// Bounds is a latitude/longitude bounding box in decimal degrees.
type Bounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// Region is a named ocean region.
type Region struct {
	Name   string `json:"name"`
	Bounds Bounds `json:"bounds"`
	Keywords
}

// QueryTypeRule maps keywords to a query type.
type QueryTypeRule struct {
	Type string `json:"type"`
	Keywords
}

// ParameterRule maps keywords to a measured parameter column.
type ParameterRule struct {
	Name string `json:"name"`
	Keywords
}

// TimePeriodRule resolves a time phrase. At most one of Days, Year and
// Month is non-zero.
type TimePeriodRule struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Keywords
}

// DepthZone is a named pressure band. A negative bound is open.
type DepthZone struct {
	Name        string  `json:"name"`
	MinPressure float64 `json:"min_pressure"`
	MaxPressure float64 `json:"max_pressure"`
	Keywords
}

// Location is a named place used as a nearest-neighbour anchor.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Keywords
}

// ToolKeywords are the keyword groups consulted by the tool selector.
type ToolKeywords struct {
	Capabilities Keywords `json:"capabilities"`
	Schema       Keywords `json:"schema"`
	Data         Keywords `json:"data"`
	Thermocline  Keywords `json:"thermocline"`
	WaterMass    Keywords `json:"water_mass"`
	Comparison   Keywords `json:"comparison"`
	Temporal     Keywords `json:"temporal"`
	MLD          Keywords `json:"mld"`
	Analysis     Keywords `json:"analysis"`
	Similar      Keywords `json:"similar"`
}

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsIdentifier reports whether name is a noisy identifier column that must
// be matched with LIKE.
func (s Schema) IsIdentifier(name string) bool {
	c, ok := s.Column(name)
	return ok && c.Identifier
}

// Region returns the region with the given display name.
func (c *Catalog) Region(name string) (Region, bool) {
	for _, r := range c.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded source
// does not load, which is a build defect rather than a runtime condition.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse("catalog.cue", defaultSource)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", defaultErr))
	}
	return defaultCatalog
}

// Load reads and validates a catalog from a CUE file on disk.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(path, src)
}

// Parse compiles CUE source into a Catalog. filename is used only for
// error positions.
func Parse(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var c Catalog
	if err := v.Decode(&c); err != nil {
		return nil, formatCUEError(err)
	}
	if err := c.validate(v); err != nil {
		return nil, err
	}
	return &c, nil
}

var knownQueryTypes = map[string]bool{
	"geographic": true, "nearest": true, "temporal": true, "depth": true,
	"parameter": true, "comparison": true, "statistics": true,
	"float_specific": true, "general": true,
}

func (c *Catalog) validate(v cue.Value) error {
	if c.Schema.Table == "" {
		return &LoadError{Field: "schema.table", Message: "table name is required", Pos: v.LookupPath(cue.ParsePath("schema")).Pos()}
	}
	if len(c.Schema.Quality.Accepted) == 0 {
		return &LoadError{Field: "schema.quality.accepted", Message: "at least one accepted quality flag is required"}
	}
	for _, qc := range c.Schema.Quality.Columns {
		if _, ok := c.Schema.Column(qc); !ok {
			return &LoadError{Field: "schema.quality.columns", Message: fmt.Sprintf("quality column %q is not a table column", qc)}
		}
	}
	for i, rule := range c.QueryTypes {
		if !knownQueryTypes[rule.Type] {
			return &LoadError{
				Field:   fmt.Sprintf("query_types[%d]", i),
				Message: fmt.Sprintf("unknown query type %q", rule.Type),
				Pos:     v.LookupPath(cue.MakePath(cue.Str("query_types"), cue.Index(i))).Pos(),
			}
		}
	}
	for i, p := range c.Parameters {
		if _, ok := c.Schema.Column(p.Name); !ok {
			return &LoadError{Field: fmt.Sprintf("parameters[%d]", i), Message: fmt.Sprintf("parameter %q is not a table column", p.Name)}
		}
	}
	seen := make(map[string]bool, len(c.Regions))
	for i, r := range c.Regions {
		if seen[r.Name] {
			return &LoadError{Field: fmt.Sprintf("regions[%d]", i), Message: fmt.Sprintf("duplicate region %q", r.Name)}
		}
		seen[r.Name] = true
	}
	return nil
}

// LoadError is a catalog error with an optional source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
