package intent

import (
	"log/slog"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
)

// Complexity weights.
const (
	baseComplexity       = 1
	aggregationWeight    = 2
	multiParameterWeight = 1
	regionWeight         = 1
)

// Analyzer classifies questions against a catalog's ordered rule tables.
// It is safe for concurrent use.
type Analyzer struct {
	catalog *catalog.Catalog
}

// NewAnalyzer returns an analyzer for c.
func NewAnalyzer(c *catalog.Catalog) *Analyzer {
	return &Analyzer{catalog: c}
}

// Normalize returns the form of text every keyword table is matched
// against: NFKC-normalized and lower-cased. A Caser is stateful, so one
// is built per call.
func Normalize(text string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(text))
}

// Analyze classifies text. The type, region, parameter, time and depth
// passes are independent, so one question may contribute to all of them.
func (a *Analyzer) Analyze(text string) Analysis {
	t := Normalize(text)

	out := Analysis{
		Type:       a.detectType(t),
		Region:     Region{Name: RegionNotSpecified},
		Parameters: a.detectParameters(t),
		TimePeriod: a.detectTimePeriod(t),
		DepthZone:  a.detectDepthZone(t),
	}

	regions := a.detectRegions(t)
	if len(regions) > 0 {
		// first match in table order, not in text order
		first := regions[0]
		for _, r := range a.catalog.Regions {
			if containsName(regions, r) {
				first = r
				break
			}
		}
		b := first.Bounds
		out.Region = Region{Name: first.Name, Bounds: &b}
	}

	out.Signals = a.extractSignals(t, regions)
	out.Complexity = complexity(out)

	slog.Debug("question analyzed",
		"type", out.Type,
		"region", out.Region.Name,
		"parameters", out.Parameters,
		"time_period", out.TimePeriod.Label,
		"complexity", out.Complexity,
	)
	return out
}

func (a *Analyzer) detectType(t string) Type {
	for _, rule := range a.catalog.QueryTypes {
		if rule.Match(t) {
			return Type(rule.Type)
		}
	}
	return TypeGeneral
}

// detectRegions returns every matching region ordered by where it first
// appears in the text.
func (a *Analyzer) detectRegions(t string) []catalog.Region {
	type hit struct {
		region catalog.Region
		pos    int
	}
	var hits []hit
	for _, r := range a.catalog.Regions {
		if pos := r.Index(t); pos >= 0 {
			hits = append(hits, hit{region: r, pos: pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]catalog.Region, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.region)
	}
	return out
}

func (a *Analyzer) detectParameters(t string) []string {
	params := []string{}
	for _, p := range a.catalog.Parameters {
		if p.Match(t) {
			params = append(params, p.Name)
		}
	}
	return params
}

func (a *Analyzer) detectTimePeriod(t string) TimePeriod {
	for _, rule := range a.catalog.TimePeriods {
		if rule.Match(t) {
			return TimePeriod{Label: rule.Label, Days: rule.Days, Year: rule.Year, Month: rule.Month}
		}
	}
	return TimePeriod{Label: AllTime}
}

func (a *Analyzer) detectDepthZone(t string) *catalog.DepthZone {
	for _, z := range a.catalog.DepthZones {
		if z.Match(t) {
			zone := z
			return &zone
		}
	}
	return nil
}

func complexity(a Analysis) int {
	c := baseComplexity
	if a.Type == TypeComparison || a.Type == TypeStatistics {
		c += aggregationWeight
	}
	if len(a.Parameters) > 2 {
		c += multiParameterWeight
	}
	if a.Region.Resolved() {
		c += regionWeight
	}
	return c
}

func containsName(regions []catalog.Region, r catalog.Region) bool {
	for _, x := range regions {
		if x.Name == r.Name {
			return true
		}
	}
	return false
}
