package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario run. The SQL text is left
// out; sql_contains assertions pin the parts that matter.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Question string       `json:"question"`
	Type     string       `json:"type"`
	Region   string       `json:"region"`
	Compiled bool         `json:"compiled"`
	Trace    []TraceEvent `json:"trace"`
	Outcome  string       `json:"outcome"`
	Summary  string       `json:"summary"`
}

// NewSnapshot builds the snapshot for a result.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	ans := result.Answer
	return Snapshot{
		Scenario: scenario.Name,
		Question: scenario.Question,
		Type:     string(ans.Analysis.Type),
		Region:   ans.Analysis.Region.Name,
		Compiled: ans.Query != nil,
		Trace:    result.Trace,
		Outcome:  ans.Outcome(),
		Summary:  ans.Summary,
	}
}

// Marshal returns indented JSON with a trailing newline. Map keys are
// sorted, so the output is deterministic.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts Options) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenario, result).Marshal()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
