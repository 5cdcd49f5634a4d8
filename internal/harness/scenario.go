package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
)

// DefaultNow is the clock used when a scenario does not set one.
var DefaultNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario defines a conformance scenario: one question answered against
// fixed data, with assertions on the plan, the compiled SQL and the tool
// results.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden
	// file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Question is the natural-language question to answer.
	Question string `yaml:"question"`

	// Now fixes the clock. Temporal tools measure their window from it.
	Now time.Time `yaml:"now,omitempty"`

	// Data is the table every statement returns. Nil serves an empty
	// table.
	Data *TableData `yaml:"data,omitempty"`

	// SourceError makes every statement fail with this message.
	SourceError string `yaml:"source_error,omitempty"`

	// Draft replaces the template drafter with a fixed response, the way
	// a language model would answer.
	Draft string `yaml:"draft,omitempty"`

	// Assertions validate the answer.
	Assertions []Assertion `yaml:"assertions"`
}

// TableData is a result set in YAML form. RFC 3339 strings are read as
// timestamps.
type TableData struct {
	Columns []string `yaml:"columns"`
	Rows    [][]any  `yaml:"rows"`
}

// Table converts the YAML rows to a datasource.Table.
func (d *TableData) Table() *datasource.Table {
	if d == nil {
		return &datasource.Table{Columns: []string{}, Rows: [][]any{}}
	}
	rows := make([][]any, len(d.Rows))
	for i, row := range d.Rows {
		out := make([]any, len(row))
		for j, v := range row {
			out[j] = cell(v)
		}
		rows[i] = out
	}
	return &datasource.Table{Columns: d.Columns, Rows: rows}
}

func cell(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC()
	}
	return s
}

// Assertion validates one aspect of an answer.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Value is the expected string for single-valued checks.
	Value string `yaml:"value,omitempty"`

	// Tools is the expected plan order (used by tools).
	Tools []string `yaml:"tools,omitempty"`

	// Tool names the invocation under test (used by tool_status and
	// payload).
	Tool string `yaml:"tool,omitempty"`

	// Expect holds payload fields to match (used by payload). Subset
	// match; numbers compare within Tolerance.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Tolerance for numeric payload fields. Defaults to 1e-6.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion type constants.
const (
	AssertType            = "type"
	AssertRegion          = "region"
	AssertTools           = "tools"
	AssertSQLContains     = "sql_contains"
	AssertSQLExcludes     = "sql_excludes"
	AssertCompileError    = "compile_error"
	AssertToolStatus      = "tool_status"
	AssertPayload         = "payload"
	AssertOutcome         = "outcome"
	AssertSummaryContains = "summary_contains"
)

var validAssertionTypes = map[string]bool{
	AssertType:            true,
	AssertRegion:          true,
	AssertTools:           true,
	AssertSQLContains:     true,
	AssertSQLExcludes:     true,
	AssertCompileError:    true,
	AssertToolStatus:      true,
	AssertPayload:         true,
	AssertOutcome:         true,
	AssertSummaryContains: true,
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filepath.Base(path), err)
	}
	return &s, nil
}

// Validate checks required fields and assertion shapes.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Question == "" {
		return fmt.Errorf("question is required")
	}
	if s.Data != nil && s.SourceError != "" {
		return fmt.Errorf("data and source_error are mutually exclusive")
	}
	if s.Data != nil {
		for i, row := range s.Data.Rows {
			if len(row) != len(s.Data.Columns) {
				return fmt.Errorf("data row %d has %d cells, want %d", i, len(row), len(s.Data.Columns))
			}
		}
	}
	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func (a Assertion) validate() error {
	if !validAssertionTypes[a.Type] {
		return fmt.Errorf("unknown type %q", a.Type)
	}
	switch a.Type {
	case AssertTools:
		if len(a.Tools) == 0 {
			return fmt.Errorf("%s requires tools", a.Type)
		}
	case AssertToolStatus:
		if a.Tool == "" || a.Value == "" {
			return fmt.Errorf("%s requires tool and value", a.Type)
		}
	case AssertPayload:
		if a.Tool == "" || len(a.Expect) == 0 {
			return fmt.Errorf("%s requires tool and expect", a.Type)
		}
	case AssertCompileError:
		// an empty value accepts any error code
	default:
		if a.Value == "" {
			return fmt.Errorf("%s requires value", a.Type)
		}
	}
	return nil
}
