package toolplan

import (
	"log/slog"
	"strconv"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
)

// Default argument values.
const (
	DefaultFetchLimit   = 5000
	DefaultTrendDays    = 90
	DefaultMLDThreshold = 0.5
	DefaultTopK         = 5
	DefaultParameter    = "temperature"
)

// analyticRule appends one analytic tool when it fires.
type analyticRule struct {
	tool  string
	fires func(s *Selector, text string, a intent.Analysis) bool
	args  func(text string, a intent.Analysis) map[string]any
	// derived tools consume the rows fetch_data returns
	derived bool
}

// analyticRules are evaluated in this order; plan order follows it.
var analyticRules = []analyticRule{
	{
		tool:    Thermocline,
		fires:   func(s *Selector, t string, _ intent.Analysis) bool { return s.tools.Thermocline.Match(t) },
		args:    queryArgs,
		derived: true,
	},
	{
		tool:    WaterMasses,
		fires:   func(s *Selector, t string, _ intent.Analysis) bool { return s.tools.WaterMass.Match(t) },
		args:    queryArgs,
		derived: true,
	},
	{
		tool: CompareRegions,
		fires: func(s *Selector, t string, a intent.Analysis) bool {
			return s.tools.Comparison.Match(t) && len(a.Signals.Regions) >= 2
		},
		args: func(_ string, a intent.Analysis) map[string]any {
			return map[string]any{
				"region1":   a.Signals.Regions[0],
				"region2":   a.Signals.Regions[1],
				"parameter": primaryParameter(a),
			}
		},
		derived: true,
	},
	{
		tool:  TemporalTrends,
		fires: func(s *Selector, t string, _ intent.Analysis) bool { return s.tools.Temporal.Match(t) },
		args: func(_ string, a intent.Analysis) map[string]any {
			days := DefaultTrendDays
			if a.TimePeriod.Days > 0 {
				days = a.TimePeriod.Days
			}
			return map[string]any{
				"region":    a.Region.Name,
				"parameter": primaryParameter(a),
				"days":      days,
			}
		},
		derived: true,
	},
	{
		tool:  MixedLayerDepth,
		fires: func(s *Selector, t string, _ intent.Analysis) bool { return s.tools.MLD.Match(t) },
		args: func(text string, _ intent.Analysis) map[string]any {
			return map[string]any{"query": text, "threshold": DefaultMLDThreshold}
		},
		derived: true,
	},
	{
		tool: FloatProfile,
		fires: func(s *Selector, t string, a intent.Analysis) bool {
			return s.tools.Analysis.Match(t) && len(a.Signals.FloatIDs) > 0
		},
		args: func(_ string, a intent.Analysis) map[string]any {
			return map[string]any{"float_id": a.Signals.FloatIDs[0]}
		},
	},
	{
		tool:  SimilarProfiles,
		fires: func(s *Selector, t string, _ intent.Analysis) bool { return s.tools.Similar.Match(t) },
		args: func(text string, _ intent.Analysis) map[string]any {
			return map[string]any{"query_text": text, "top_k": DefaultTopK}
		},
	},
}

// Selector maps a question to a Plan. It is stateless and safe for
// concurrent use.
type Selector struct {
	tools catalog.ToolKeywords
}

// NewSelector returns a selector using the catalog's tool keyword groups.
func NewSelector(c *catalog.Catalog) *Selector {
	return &Selector{tools: c.Tools}
}

// Select returns the plan for text. Identical input always yields an
// identical plan.
//
// Capability and schema questions short-circuit to a single invocation.
// Otherwise fetch_data is planned when the text asks for data, each
// analytic rule that fires appends its tool, and fetch_data is placed
// first whenever an analytic tool is planned. With nothing planned the
// result is fetch_data alone.
func (s *Selector) Select(text string, a intent.Analysis) Plan {
	t := intent.Normalize(text)
	b := &planBuilder{plan: Plan{Question: text}}

	switch {
	case s.tools.Capabilities.Match(t):
		b.add(ListCapabilities, map[string]any{}, false)
		return b.done()
	case s.tools.Schema.Match(t):
		b.add(DescribeSchema, map[string]any{}, false)
		return b.done()
	}

	fetchArgs := fetchArgs(text, a)
	if s.tools.Data.Match(t) {
		b.add(FetchData, fetchArgs, false)
	}
	for _, r := range analyticRules {
		if !r.fires(s, t, a) {
			continue
		}
		if !b.has(FetchData) {
			b.prepend(FetchData, fetchArgs)
		}
		b.add(r.tool, r.args(text, a), r.derived)
	}
	if len(b.plan.Invocations) == 0 {
		b.add(FetchData, fetchArgs, false)
	}

	plan := b.done()
	slog.Debug("tools selected", "tools", plan.Names())
	return plan
}

// planBuilder assigns IDs as tool-name plus position in plan order so
// that plans are reproducible.
type planBuilder struct {
	plan Plan
}

func (b *planBuilder) has(name string) bool { return b.plan.Contains(name) }

func (b *planBuilder) add(name string, args map[string]any, derived bool) {
	inv := Invocation{Name: name, Arguments: args}
	if derived {
		inv.DependsOn = []string{FetchData}
	}
	b.plan.Invocations = append(b.plan.Invocations, inv)
}

func (b *planBuilder) prepend(name string, args map[string]any) {
	b.plan.Invocations = append([]Invocation{{Name: name, Arguments: args}}, b.plan.Invocations...)
}

// done assigns IDs and rewrites name-based dependencies to IDs.
func (b *planBuilder) done() Plan {
	ids := make(map[string]string, len(b.plan.Invocations))
	for i := range b.plan.Invocations {
		inv := &b.plan.Invocations[i]
		inv.ID = inv.Name + "#" + strconv.Itoa(i+1)
		if _, ok := ids[inv.Name]; !ok {
			ids[inv.Name] = inv.ID
		}
	}
	for i := range b.plan.Invocations {
		inv := &b.plan.Invocations[i]
		for j, dep := range inv.DependsOn {
			inv.DependsOn[j] = ids[dep]
		}
	}
	return b.plan
}

func fetchArgs(text string, a intent.Analysis) map[string]any {
	limit := DefaultFetchLimit
	if a.Signals.Limit > 0 {
		limit = a.Signals.Limit
	}
	return map[string]any{"query": text, "limit": limit}
}

func queryArgs(text string, _ intent.Analysis) map[string]any {
	return map[string]any{"query": text}
}

func primaryParameter(a intent.Analysis) string {
	if len(a.Parameters) > 0 {
		return a.Parameters[0]
	}
	return DefaultParameter
}
