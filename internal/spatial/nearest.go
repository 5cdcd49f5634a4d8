// Package spatial builds nearest-neighbour queries around a point.
package spatial

import (
	"fmt"
	"math"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/queryir"
	"github.com/Abuzaid-01/Float-Chat/internal/querysql"
)

const (
	// EarthRadiusKm is the mean earth radius used by the distance formula.
	EarthRadiusKm = 6371.0

	// DefaultRadiusKm is used when the question names a point but no
	// radius. Argo floats in the Indian Ocean are sparse, typically several
	// hundred kilometres apart, so smaller defaults routinely return
	// nothing.
	DefaultRadiusKm = 1000.0

	// DefaultRowLimit caps nearest-neighbour results.
	DefaultRowLimit = 1000

	// DistanceColumn is the alias of the computed distance.
	DistanceColumn = "distance_km"
)

// RangeError reports an out-of-range argument to BuildNearest.
type RangeError struct {
	Arg   string
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("spatial: %s out of range: %v", e.Arg, e.Value)
}

// Builder emits nearest-neighbour SELECTs against a table schema.
type Builder struct {
	schema catalog.Schema
	limit  int
}

// NewBuilder returns a builder for schema with the default row limit.
func NewBuilder(schema catalog.Schema) *Builder {
	return &Builder{schema: schema, limit: DefaultRowLimit}
}

// BuildNearest returns a terminated SELECT of quality-filtered rows within
// radiusKm of (lat, lon), nearest first. An infinite radius drops the
// distance filter entirely, so widening the radius never removes rows.
func (b *Builder) BuildNearest(lat, lon, radiusKm float64) (string, error) {
	q, err := b.Nearest(lat, lon, radiusKm)
	if err != nil {
		return "", err
	}
	sql, err := querysql.Render(q)
	if err != nil {
		return "", fmt.Errorf("render nearest query: %w", err)
	}
	return sql + ";", nil
}

// Nearest returns the query BuildNearest renders.
func (b *Builder) Nearest(lat, lon, radiusKm float64) (queryir.Select, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return queryir.Select{}, &RangeError{Arg: "latitude", Value: lat}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return queryir.Select{}, &RangeError{Arg: "longitude", Value: lon}
	}
	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		return queryir.Select{}, &RangeError{Arg: "radius", Value: radiusKm}
	}

	dist := queryir.GreatCircle{
		Latitude:      lat,
		Longitude:     lon,
		LatField:      "latitude",
		LonField:      "longitude",
		EarthRadiusKm: EarthRadiusKm,
	}

	var preds []queryir.Predicate
	for _, col := range b.schema.Quality.Columns {
		preds = append(preds, queryir.In{Field: col, Values: queryir.Ints(b.schema.Quality.Accepted)})
	}
	preds = append(preds,
		queryir.NotNull{Field: "latitude"},
		queryir.NotNull{Field: "longitude"},
	)
	if !math.IsInf(radiusKm, 1) {
		preds = append(preds, queryir.Compare{
			Left:  dist,
			Op:    queryir.OpLe,
			Right: queryir.Literal{Value: queryir.Float(radiusKm)},
		})
	}

	return queryir.Select{
		From: b.schema.Table,
		Columns: []queryir.Column{
			{Expr: queryir.Field{Name: "float_id"}},
			{Expr: queryir.Field{Name: "cycle_number"}},
			{Expr: queryir.Field{Name: "latitude"}},
			{Expr: queryir.Field{Name: "longitude"}},
			{Expr: queryir.Field{Name: "timestamp"}},
			{Expr: queryir.Field{Name: "pressure"}},
			{Expr: queryir.Field{Name: "temperature"}},
			{Expr: queryir.Field{Name: "salinity"}},
			{Expr: dist, Alias: DistanceColumn},
		},
		Filter: queryir.And{Predicates: preds},
		OrderBy: []queryir.Order{
			{Expr: queryir.Field{Name: DistanceColumn}},
			{Expr: queryir.Field{Name: "id"}},
		},
		Limit: b.limit,
	}, nil
}

// GreatCircleKm is the Go form of the distance expression used in SQL.
func GreatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	c := math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Cos(rad(lon2)-rad(lon1)) +
		math.Sin(rad(lat1))*math.Sin(rad(lat2))
	c = math.Max(-1, math.Min(1, c))
	return EarthRadiusKm * math.Acos(c)
}
