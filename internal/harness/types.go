package harness

import (
	"github.com/Abuzaid-01/Float-Chat/internal/service"
)

// TraceEvent is one planned invocation and how it ended. Timings and
// completion order are left out so that traces are reproducible.
type TraceEvent struct {
	InvocationID string         `json:"invocation_id"`
	Tool         string         `json:"tool"`
	Args         map[string]any `json:"args,omitempty"`
	DependsOn    []string       `json:"depends_on,omitempty"`
	Status       string         `json:"status"`
	ErrorCode    string         `json:"error_code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace lists the invocations in plan order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Answer is the full pipeline output.
	Answer *service.Answer `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// traceOf pairs each planned invocation with its result.
func traceOf(ans *service.Answer) []TraceEvent {
	status := make(map[string]TraceEvent, len(ans.Report.Results))
	for _, res := range ans.Report.Results {
		status[res.InvocationID] = TraceEvent{Status: string(res.Status), ErrorCode: res.ErrorCode}
	}
	trace := make([]TraceEvent, 0, len(ans.Plan.Invocations))
	for _, inv := range ans.Plan.Invocations {
		ev := status[inv.ID]
		ev.InvocationID = inv.ID
		ev.Tool = inv.Name
		ev.Args = inv.Arguments
		ev.DependsOn = inv.DependsOn
		trace = append(trace, ev)
	}
	return trace
}
