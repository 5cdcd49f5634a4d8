package spatial

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/queryir"
)

func newBuilder() *Builder {
	return NewBuilder(catalog.Default().Schema)
}

func TestBuildNearest(t *testing.T) {
	sql, err := newBuilder().BuildNearest(15, 75, 500)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT "))
	assert.True(t, strings.HasSuffix(sql, " LIMIT 1000;"))
	assert.Equal(t, 1, strings.Count(sql, ";"))
	assert.Contains(t, sql, "temp_qc IN (1, 2, 3) AND sal_qc IN (1, 2, 3)")
	assert.Contains(t, sql, "AS distance_km")
	assert.Contains(t, sql, ") <= 500 ORDER BY distance_km ASC, id ASC")
	assert.Contains(t, sql, "COS(RADIANS(15)) * COS(RADIANS(latitude)) * COS(RADIANS(longitude) - RADIANS(75))")
}

func TestBuildNearestValidatesAgainstSchema(t *testing.T) {
	q, err := newBuilder().Nearest(-12.5, 45, DefaultRadiusKm)
	require.NoError(t, err)
	result := queryir.Validate(q, catalog.Default().Schema)
	assert.True(t, result.Valid, "issues: %v", result.Issues)
}

func TestBuildNearestRanges(t *testing.T) {
	tests := []struct {
		name          string
		lat, lon, rad float64
		arg           string
	}{
		{"lat high", 90.1, 0, 10, "latitude"},
		{"lat low", -91, 0, 10, "latitude"},
		{"lat nan", math.NaN(), 0, 10, "latitude"},
		{"lon high", 0, 180.5, 10, "longitude"},
		{"lon low", 0, -181, 10, "longitude"},
		{"zero radius", 0, 0, 0, "radius"},
		{"negative radius", 0, 0, -5, "radius"},
		{"nan radius", 0, 0, math.NaN(), "radius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newBuilder().BuildNearest(tt.lat, tt.lon, tt.rad)
			var re *RangeError
			require.True(t, errors.As(err, &re), "got %v", err)
			assert.Equal(t, tt.arg, re.Arg)
		})
	}
}

func TestBuildNearestBoundaries(t *testing.T) {
	for _, p := range [][2]float64{{90, 180}, {-90, -180}, {0, 0}} {
		_, err := newBuilder().BuildNearest(p[0], p[1], 1)
		assert.NoError(t, err, "point %v", p)
	}
}

func TestBuildNearestInfiniteRadiusDropsDistanceFilter(t *testing.T) {
	bounded, err := newBuilder().BuildNearest(15, 75, 100)
	require.NoError(t, err)
	unbounded, err := newBuilder().BuildNearest(15, 75, math.Inf(1))
	require.NoError(t, err)

	assert.Contains(t, bounded, "<= 100")
	assert.NotContains(t, unbounded, "<=")
	// widening only removes the distance predicate; every other clause
	// is unchanged
	where := func(s string) string {
		return s[strings.Index(s, " WHERE "):strings.Index(s, " ORDER BY ")]
	}
	assert.True(t, strings.HasPrefix(where(bounded), where(unbounded)))
}

func TestGreatCircleKm(t *testing.T) {
	assert.InDelta(t, 0, GreatCircleKm(15, 75, 15, 75), 1e-6)
	// one degree of latitude is about 111.19 km on this sphere
	assert.InDelta(t, 111.19, GreatCircleKm(0, 0, 1, 0), 0.01)
	// Mumbai to Chennai
	assert.InDelta(t, 1030, GreatCircleKm(19.076, 72.8777, 13.0827, 80.2707), 15)
	// antipodes
	assert.InDelta(t, math.Pi*EarthRadiusKm, GreatCircleKm(0, 0, 0, 180), 1e-6)
}
