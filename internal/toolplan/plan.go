// Package toolplan decides which analytic tools answer a question and in
// what order.
//
// A Plan is an ordered list of invocations with must-follow edges. Plan
// order is always a valid topological order; Levels groups invocations
// that may run concurrently.
package toolplan

import (
	"errors"
	"fmt"
	"strings"
)

// Tool names.
const (
	ListCapabilities = "list_capabilities"
	DescribeSchema   = "describe_schema"
	FetchData        = "fetch_data"
	Thermocline      = "calculate_thermocline"
	WaterMasses      = "identify_water_masses"
	CompareRegions   = "compare_regions"
	TemporalTrends   = "analyze_temporal_trends"
	MixedLayerDepth  = "calculate_mixed_layer_depth"
	FloatProfile     = "analyze_float_profile"
	SimilarProfiles  = "search_similar_profiles"
)

// Invocation is one planned tool call. DependsOn lists the IDs of
// invocations that must finish first.
type Invocation struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

// Plan is the ordered set of invocations for one question.
type Plan struct {
	Question    string       `json:"question"`
	Invocations []Invocation `json:"invocations"`
}

// Names returns the tool names in plan order.
func (p Plan) Names() []string {
	names := make([]string, len(p.Invocations))
	for i, inv := range p.Invocations {
		names[i] = inv.Name
	}
	return names
}

// Contains reports whether the plan invokes the named tool.
func (p Plan) Contains(name string) bool {
	for _, inv := range p.Invocations {
		if inv.Name == name {
			return true
		}
	}
	return false
}

// PlanErrorCode categorizes malformed plans.
type PlanErrorCode string

const (
	ErrCodeDuplicateID     PlanErrorCode = "DUPLICATE_ID"
	ErrCodeUnknownDep      PlanErrorCode = "UNKNOWN_DEPENDENCY"
	ErrCodeCycle           PlanErrorCode = "CYCLE"
	ErrCodeOrderViolation  PlanErrorCode = "ORDER_VIOLATION"
	ErrCodeEmptyInvocation PlanErrorCode = "EMPTY_INVOCATION"
)

// PlanError describes why a plan cannot be executed.
type PlanError struct {
	Code    PlanErrorCode
	Message string
	// Path is the offending cycle for ErrCodeCycle.
	Path []string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCycleError reports whether err is a dependency cycle.
func IsCycleError(err error) bool {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeCycle
	}
	return false
}

// Validate checks that IDs are unique and non-empty, every dependency
// exists, the dependency graph is acyclic and every invocation follows
// its dependencies in plan order.
func (p Plan) Validate() error {
	pos := make(map[string]int, len(p.Invocations))
	for i, inv := range p.Invocations {
		if inv.ID == "" || inv.Name == "" {
			return &PlanError{Code: ErrCodeEmptyInvocation, Message: fmt.Sprintf("invocation %d has no id or name", i)}
		}
		if _, dup := pos[inv.ID]; dup {
			return &PlanError{Code: ErrCodeDuplicateID, Message: fmt.Sprintf("duplicate invocation id %q", inv.ID)}
		}
		pos[inv.ID] = i
	}

	g := make(graph, len(p.Invocations))
	for _, inv := range p.Invocations {
		g[inv.ID] = []string{}
		for _, dep := range inv.DependsOn {
			if _, ok := pos[dep]; !ok {
				return &PlanError{Code: ErrCodeUnknownDep, Message: fmt.Sprintf("%s depends on unknown invocation %q", inv.ID, dep)}
			}
			g[inv.ID] = append(g[inv.ID], dep)
		}
	}

	if cycles := g.cycles(); len(cycles) > 0 {
		path := cycles[0]
		return &PlanError{
			Code:    ErrCodeCycle,
			Message: "dependency cycle " + strings.Join(path, " → "),
			Path:    path,
		}
	}

	for i, inv := range p.Invocations {
		for _, dep := range inv.DependsOn {
			if pos[dep] > i {
				return &PlanError{Code: ErrCodeOrderViolation, Message: fmt.Sprintf("%s is planned before its dependency %s", inv.ID, dep)}
			}
		}
	}
	return nil
}

// Levels groups invocations into waves: every invocation's dependencies
// sit in earlier waves. Within a wave plan order is kept.
func (p Plan) Levels() ([][]Invocation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	level := make(map[string]int, len(p.Invocations))
	var levels [][]Invocation
	// plan order is topological, so dependencies are always resolved first
	for _, inv := range p.Invocations {
		l := 0
		for _, dep := range inv.DependsOn {
			l = max(l, level[dep]+1)
		}
		level[inv.ID] = l
		if l == len(levels) {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], inv)
	}
	return levels, nil
}
