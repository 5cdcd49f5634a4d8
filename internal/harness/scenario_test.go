package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/thermocline_bay_of_bengal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "thermocline_bay_of_bengal", s.Name)
	assert.Equal(t, "Calculate thermocline in the Bay of Bengal", s.Question)
	assert.Equal(t, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), s.Now.UTC())
	require.NotNil(t, s.Data)
	assert.Equal(t, []string{"float_id", "pressure", "temperature", "salinity"}, s.Data.Columns)
	assert.Len(t, s.Data.Rows, 6)
	assert.Len(t, s.Assertions, 10)
}

func TestLoadScenario_AllFixturesValid(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		_, err := LoadScenario(p)
		assert.NoError(t, err, p)
	}
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: bad
question: show data
flow_token: abc
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow_token")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario")
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Scenario
		wantErr string
	}{
		{"missing name", Scenario{Question: "q"}, "name is required"},
		{"missing question", Scenario{Name: "n"}, "question is required"},
		{
			"data and source error",
			Scenario{Name: "n", Question: "q", Data: &TableData{}, SourceError: "down"},
			"mutually exclusive",
		},
		{
			"ragged row",
			Scenario{Name: "n", Question: "q", Data: &TableData{Columns: []string{"a", "b"}, Rows: [][]any{{1}}}},
			"data row 0 has 1 cells, want 2",
		},
		{
			"unknown assertion",
			Scenario{Name: "n", Question: "q", Assertions: []Assertion{{Type: "trace_order"}}},
			`unknown type "trace_order"`,
		},
		{
			"tools without list",
			Scenario{Name: "n", Question: "q", Assertions: []Assertion{{Type: AssertTools}}},
			"tools requires tools",
		},
		{
			"payload without expect",
			Scenario{Name: "n", Question: "q", Assertions: []Assertion{{Type: AssertPayload, Tool: "fetch_data"}}},
			"payload requires tool and expect",
		},
		{
			"status without value",
			Scenario{Name: "n", Question: "q", Assertions: []Assertion{{Type: AssertToolStatus, Tool: "fetch_data"}}},
			"tool_status requires tool and value",
		},
		{
			"region without value",
			Scenario{Name: "n", Question: "q", Assertions: []Assertion{{Type: AssertRegion}}},
			"region requires value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenarioValidate_CompileErrorAnyCode(t *testing.T) {
	s := Scenario{Name: "n", Question: "q", Assertions: []Assertion{{Type: AssertCompileError}}}
	assert.NoError(t, s.Validate())
}

func TestTableData_Table(t *testing.T) {
	d := &TableData{
		Columns: []string{"float_id", "timestamp", "temperature"},
		Rows:    [][]any{{"2902746", "2024-03-01T00:00:00Z", 28.5}},
	}
	table := d.Table()

	assert.Equal(t, 1, table.Len())
	ts, ok := table.Time(0, "timestamp")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ts)
	id, ok := table.String(0, "float_id")
	require.True(t, ok)
	assert.Equal(t, "2902746", id)
}

func TestTableData_NilIsEmpty(t *testing.T) {
	var d *TableData
	table := d.Table()
	require.NotNil(t, table)
	assert.Equal(t, 0, table.Len())
}
