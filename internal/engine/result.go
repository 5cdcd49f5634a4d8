package engine

import "time"

// Status is the lifecycle state of one invocation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ToolResult is the outcome of one invocation. ErrorMessage is set if and
// only if Succeeded is false. Results are never modified after the
// orchestrator creates them.
type ToolResult struct {
	ToolName     string        `json:"tool_name"`
	InvocationID string        `json:"invocation_id"`
	Succeeded    bool          `json:"succeeded"`
	Status       Status        `json:"status"`
	Payload      any           `json:"payload,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	Attempts     int           `json:"attempts"`
	Duration     time.Duration `json:"duration"`
	// Seq is the completion order within the request, starting at 1.
	Seq int64 `json:"seq"`

	// Err is the *ExecutionError behind a failure.
	Err error `json:"-"`
}

// ExecutionReport is the outcome of one plan. Results are in plan order.
type ExecutionReport struct {
	RequestID string        `json:"request_id"`
	Question  string        `json:"question"`
	Results   []ToolResult  `json:"results"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Succeeded returns the number of successful results.
func (r *ExecutionReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded {
			n++
		}
	}
	return n
}

// Failed returns the number of failed results.
func (r *ExecutionReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Result returns the first result for the named tool.
func (r *ExecutionReport) Result(tool string) (ToolResult, bool) {
	for _, res := range r.Results {
		if res.ToolName == tool {
			return res, true
		}
	}
	return ToolResult{}, false
}
