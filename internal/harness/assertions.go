package harness

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/Abuzaid-01/Float-Chat/internal/service"
)

// DefaultTolerance bounds numeric payload comparisons.
const DefaultTolerance = 1e-6

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(ans *service.Answer, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(ans, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(ans *service.Answer, a Assertion) error {
	switch a.Type {
	case AssertType:
		return expectEqual(a.Type, a.Value, string(ans.Analysis.Type))
	case AssertRegion:
		return expectEqual(a.Type, a.Value, ans.Analysis.Region.Name)
	case AssertTools:
		got := ans.Plan.Names()
		if !reflect.DeepEqual(a.Tools, got) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Tools), Actual: fmt.Sprint(got)}
		}
		return nil
	case AssertSQLContains, AssertSQLExcludes:
		return assertSQL(ans, a)
	case AssertCompileError:
		return assertCompileError(ans, a)
	case AssertToolStatus:
		res, ok := ans.Report.Result(a.Tool)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: a.Tool + " " + a.Value, Actual: "tool not planned"}
		}
		return expectEqual(a.Type+" "+a.Tool, a.Value, string(res.Status))
	case AssertPayload:
		return assertPayload(ans, a)
	case AssertOutcome:
		return expectEqual(a.Type, a.Value, ans.Outcome())
	case AssertSummaryContains:
		if !strings.Contains(ans.Summary, a.Value) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("summary containing %q", a.Value), Actual: ans.Summary}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func expectEqual(typ, want, got string) error {
	if want != got {
		return &AssertionError{Type: typ, Expected: want, Actual: got}
	}
	return nil
}

func assertSQL(ans *service.Answer, a Assertion) error {
	if ans.Query == nil {
		return &AssertionError{Type: a.Type, Expected: "compiled SQL", Actual: "compile error: " + ans.CompileError}
	}
	sql := strings.ToLower(ans.Query.SQL)
	has := strings.Contains(sql, strings.ToLower(a.Value))
	if a.Type == AssertSQLContains && !has {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL containing %q", a.Value), Actual: ans.Query.SQL}
	}
	if a.Type == AssertSQLExcludes && has {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("SQL without %q", a.Value), Actual: ans.Query.SQL}
	}
	return nil
}

func assertCompileError(ans *service.Answer, a Assertion) error {
	if ans.CompileError == "" {
		return &AssertionError{Type: a.Type, Expected: "compile error " + a.Value, Actual: "compiled successfully"}
	}
	if a.Value != "" && !strings.HasPrefix(ans.CompileError, a.Value) {
		return &AssertionError{Type: a.Type, Expected: a.Value, Actual: ans.CompileError}
	}
	return nil
}

// assertPayload compares the JSON form of a tool payload against the
// expected fields.
func assertPayload(ans *service.Answer, a Assertion) error {
	res, ok := ans.Report.Result(a.Tool)
	if !ok || !res.Succeeded {
		return &AssertionError{Type: a.Type, Expected: a.Tool + " payload", Actual: "tool not planned or failed"}
	}
	data, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Errorf("payload %s: %w", a.Tool, err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		return fmt.Errorf("payload %s is not an object: %w", a.Tool, err)
	}

	tol := a.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		actual, ok := got[k]
		if !ok {
			return &AssertionError{Type: a.Type + " " + a.Tool, Expected: fmt.Sprintf("field %q", k), Actual: "missing"}
		}
		if !matchValue(a.Expect[k], actual, tol) {
			return &AssertionError{
				Type:     a.Type + " " + a.Tool,
				Expected: fmt.Sprintf("%s=%v", k, a.Expect[k]),
				Actual:   fmt.Sprintf("%s=%v", k, actual),
			}
		}
	}
	return nil
}

// matchValue compares a YAML value against a decoded JSON value. Numbers
// compare within tol; maps are subset matches; slices must have equal
// length.
func matchValue(expected, actual any, tol float64) bool {
	if ef, ok := number(expected); ok {
		af, ok := number(actual)
		return ok && math.Abs(ef-af) <= tol
	}
	switch e := expected.(type) {
	case map[string]any:
		am, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range e {
			if !matchValue(v, am[k], tol) {
				return false
			}
		}
		return true
	case []any:
		as, ok := actual.([]any)
		if !ok || len(as) != len(e) {
			return false
		}
		for i := range e {
			if !matchValue(e[i], as[i], tol) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(expected, actual)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
