package toolplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inv(id string, deps ...string) Invocation {
	return Invocation{ID: id, Name: id, Arguments: map[string]any{}, DependsOn: deps}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		code PlanErrorCode
	}{
		{"empty plan", Plan{}, ""},
		{"chain", Plan{Invocations: []Invocation{inv("a"), inv("b", "a"), inv("c", "b")}}, ""},
		{"duplicate", Plan{Invocations: []Invocation{inv("a"), inv("a")}}, ErrCodeDuplicateID},
		{"unknown dependency", Plan{Invocations: []Invocation{inv("a", "zzz")}}, ErrCodeUnknownDep},
		{"self loop", Plan{Invocations: []Invocation{inv("a", "a")}}, ErrCodeCycle},
		{"two cycle", Plan{Invocations: []Invocation{inv("a", "b"), inv("b", "a")}}, ErrCodeCycle},
		{"out of order", Plan{Invocations: []Invocation{inv("b", "a"), inv("a")}}, ErrCodeOrderViolation},
		{"missing id", Plan{Invocations: []Invocation{{Name: "fetch_data"}}}, ErrCodeEmptyInvocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var pe *PlanError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestValidateCyclePath(t *testing.T) {
	plan := Plan{Invocations: []Invocation{inv("a", "c"), inv("b", "a"), inv("c", "b")}}
	err := plan.Validate()
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	var pe *PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"a", "c", "b", "a"}, pe.Path)
}

func TestLevels(t *testing.T) {
	plan := Plan{Invocations: []Invocation{
		inv("fetch"),
		inv("search"),
		inv("thermocline", "fetch"),
		inv("mld", "fetch"),
		inv("report", "thermocline", "mld"),
	}}

	levels, err := plan.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"fetch", "search"}, ids(levels[0]))
	assert.Equal(t, []string{"thermocline", "mld"}, ids(levels[1]))
	assert.Equal(t, []string{"report"}, ids(levels[2]))
}

func TestLevelsRejectsInvalidPlan(t *testing.T) {
	_, err := Plan{Invocations: []Invocation{inv("a", "a")}}.Levels()
	assert.True(t, IsCycleError(err))
}

func ids(invs []Invocation) []string {
	out := make([]string, len(invs))
	for i, v := range invs {
		out[i] = v.ID
	}
	return out
}
