package intent

import (
	"regexp"
	"strconv"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
)

// KmPerMile converts stated miles to kilometres.
const KmPerMile = 1.60934

var (
	// 15°N, 75°E | 15.5n 75.2e | 12 s 45 w
	hemispherePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*°?\s*([ns])\b[\s,]*(\d+(?:\.\d+)?)\s*°?\s*([ew])\b`)
	// lat 15 lon 75 | latitude: -12.5, longitude 45
	latLonPattern = regexp.MustCompile(`\blat(?:itude)?\s*[:=]?\s*(-?\d+(?:\.\d+)?)[\s,]+(?:and\s+)?lon(?:g|gitude)?\s*[:=]?\s*(-?\d+(?:\.\d+)?)`)
	radiusPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(km|kms|kilometers?|kilometres?|miles?|mi)\b`)
	floatPattern  = regexp.MustCompile(`\bfloat\s*(?:id|number|no\.?|#)?\s*[:#]?\s*(\d{4,8})\b`)
	wmoPattern    = regexp.MustCompile(`\b(\d{7})\b`)
	cyclePattern  = regexp.MustCompile(`\bcycle\s*(?:number|no\.?|#)?\s*[:#]?\s*(\d{1,4})\b`)
	limitPattern  = regexp.MustCompile(`\b(?:top|limit|first|last)\s+(\d{1,6})\b(?:\s+(?:rows|records|measurements|profiles|results|floats))?`)
)

func (a *Analyzer) extractSignals(t string, regions []catalog.Region) Signals {
	s := Signals{
		Coordinates: a.extractCoordinates(t),
		RadiusKm:    extractRadius(t),
		FloatIDs:    extractFloatIDs(t),
		Cycle:       firstInt(cyclePattern, t),
		Limit:       extractLimit(t),
		Unfiltered:  a.catalog.Unfiltered.Match(t),
	}
	for _, r := range regions {
		s.Regions = append(s.Regions, r.Name)
	}
	return s
}

func (a *Analyzer) extractCoordinates(t string) *Coordinates {
	if m := hemispherePattern.FindStringSubmatch(t); m != nil {
		lat, _ := strconv.ParseFloat(m[1], 64)
		lon, _ := strconv.ParseFloat(m[3], 64)
		if m[2] == "s" {
			lat = -lat
		}
		if m[4] == "w" {
			lon = -lon
		}
		if validPoint(lat, lon) {
			return &Coordinates{Latitude: lat, Longitude: lon}
		}
	}
	if m := latLonPattern.FindStringSubmatch(t); m != nil {
		lat, _ := strconv.ParseFloat(m[1], 64)
		lon, _ := strconv.ParseFloat(m[2], 64)
		if validPoint(lat, lon) {
			return &Coordinates{Latitude: lat, Longitude: lon}
		}
	}
	for _, loc := range a.catalog.Locations {
		if loc.Match(t) {
			return &Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude, Source: loc.Name}
		}
	}
	return nil
}

func validPoint(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func extractRadius(t string) float64 {
	m := radiusPattern.FindStringSubmatch(t)
	if m == nil {
		return 0
	}
	r, err := strconv.ParseFloat(m[1], 64)
	if err != nil || r <= 0 {
		return 0
	}
	if m[2][0] == 'm' {
		r *= KmPerMile
	}
	return r
}

func extractFloatIDs(t string) []string {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, m := range floatPattern.FindAllStringSubmatch(t, -1) {
		add(m[1])
	}
	for _, m := range wmoPattern.FindAllStringSubmatch(t, -1) {
		add(m[1])
	}
	return ids
}

func extractLimit(t string) int {
	loc := limitPattern.FindStringSubmatchIndex(t)
	if loc == nil {
		return 0
	}
	// "last 3 months" is a time window, not a row count
	if timeUnitPattern.MatchString(t[loc[1]:]) {
		return 0
	}
	n, err := strconv.Atoi(t[loc[2]:loc[3]])
	if err != nil {
		return 0
	}
	return n
}

var timeUnitPattern = regexp.MustCompile(`^\s*(?:days?|weeks?|months?|years?)\b`)

func firstInt(re *regexp.Regexp, t string) int {
	m := re.FindStringSubmatch(t)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
