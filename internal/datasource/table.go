// Package datasource executes validated SQL and returns tabular results.
//
// The query compiler never talks to a database transport directly; it
// hands its statement to a Source. Postgres is the production Source,
// Static serves fixed tables for tests and offline runs.
package datasource

import (
	"context"
	"fmt"
	"time"
)

// Source runs one read-only statement.
type Source interface {
	Query(ctx context.Context, sql string) (*Table, error)
}

// Table is a result set. Rows hold driver values normalised to float64,
// int64, string, bool, time.Time or nil.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Has reports whether the table has the named column.
func (t *Table) Has(column string) bool { return t.Index(column) >= 0 }

// Value returns the cell at row, column.
func (t *Table) Value(row int, column string) (any, bool) {
	i := t.Index(column)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return nil, false
	}
	return t.Rows[row][i], true
}

// Float returns the cell as a float64. Nulls and non-numeric cells
// report false.
func (t *Table) Float(row int, column string) (float64, bool) {
	v, ok := t.Value(row, column)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// String returns the cell formatted as text. Nulls report false.
func (t *Table) String(row int, column string) (string, bool) {
	v, ok := t.Value(row, column)
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Time returns the cell as a time.
func (t *Table) Time(row int, column string) (time.Time, bool) {
	v, ok := t.Value(row, column)
	if !ok {
		return time.Time{}, false
	}
	ts, ok := v.(time.Time)
	return ts, ok
}

// Floats returns every non-null numeric value of a column in row order.
func (t *Table) Floats(column string) []float64 {
	var out []float64
	for r := range t.Rows {
		if f, ok := t.Float(r, column); ok {
			out = append(out, f)
		}
	}
	return out
}

// Filter returns a table holding the rows keep accepts.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := &Table{Columns: t.Columns}
	for r, row := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Records returns rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for r, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				rec[c] = row[i]
			}
		}
		out[r] = rec
	}
	return out
}

// ToFloat converts numeric values to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
