package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/queryir"
	"github.com/Abuzaid-01/Float-Chat/internal/querysql"
)

// defaultParameters are selected when the question names none.
var defaultParameters = []string{"temperature", "salinity"}

// TemplateDrafter builds statements directly from the analysis. It never
// produces a policy violation, so its drafts pass through cleanup
// unchanged apart from the terminator.
type TemplateDrafter struct {
	catalog *catalog.Catalog
}

// NewTemplateDrafter returns a drafter for the catalog's schema.
func NewTemplateDrafter(cat *catalog.Catalog) *TemplateDrafter {
	return &TemplateDrafter{catalog: cat}
}

func (d *TemplateDrafter) Name() string { return string(SourceTemplate) }

// Draft renders the query Build returns.
func (d *TemplateDrafter) Draft(_ context.Context, req DraftRequest) (string, error) {
	q := d.Build(req.Analysis)
	if res := queryir.Validate(q, d.catalog.Schema); !res.Valid {
		return "", fmt.Errorf("template query invalid: %s", strings.Join(res.Issues, "; "))
	}
	return querysql.Render(q)
}

// Build returns the query for an analysis.
func (d *TemplateDrafter) Build(a intent.Analysis) queryir.Select {
	schema := d.catalog.Schema
	params := a.Parameters
	if len(params) == 0 {
		params = defaultParameters
	}

	q := queryir.Select{
		From:  schema.Table,
		Limit: schema.Limits.DefaultRows,
	}
	if a.Signals.Limit > 0 {
		q.Limit = min(a.Signals.Limit, schema.Limits.MaxRows)
	}

	if a.Type == intent.TypeStatistics {
		q.Columns = statisticsColumns(params)
	} else {
		q.Columns = fieldColumns("float_id", "cycle_number", "latitude", "longitude", "timestamp", "pressure")
		q.Columns = append(q.Columns, fieldColumns(params...)...)
		q.OrderBy = d.order(a)
	}

	var preds []queryir.Predicate
	if !a.Signals.Unfiltered {
		for _, col := range schema.Quality.Columns {
			preds = append(preds, queryir.In{Field: col, Values: queryir.Ints(schema.Quality.Accepted)})
		}
	}
	preds = append(preds, d.regionFilter(a)...)
	preds = append(preds, floatFilter(a.Signals)...)
	preds = append(preds, timeFilter(a.TimePeriod)...)
	preds = append(preds, depthFilter(a.DepthZone)...)
	for _, p := range params {
		if col, ok := schema.Column(p); ok && col.BGC {
			preds = append(preds, queryir.NotNull{Field: p})
		}
	}
	if len(preds) > 0 {
		q.Filter = queryir.And{Predicates: preds}
	}
	return q
}

func (d *TemplateDrafter) order(a intent.Analysis) []queryir.Order {
	switch {
	case len(a.Signals.FloatIDs) > 0:
		return []queryir.Order{
			{Expr: queryir.Field{Name: "cycle_number"}},
			{Expr: queryir.Field{Name: "pressure"}},
		}
	case a.Type == intent.TypeDepth || a.DepthZone != nil:
		return []queryir.Order{{Expr: queryir.Field{Name: "pressure"}}}
	default:
		return []queryir.Order{{Expr: queryir.Field{Name: "timestamp"}, Desc: true}}
	}
}

// regionFilter keeps rows inside the resolved region, or inside any of the
// named regions for comparisons.
func (d *TemplateDrafter) regionFilter(a intent.Analysis) []queryir.Predicate {
	if a.Type == intent.TypeComparison && len(a.Signals.Regions) > 1 {
		var boxes []queryir.Predicate
		for _, name := range a.Signals.Regions {
			if r, ok := d.catalog.Region(name); ok {
				boxes = append(boxes, boxFilter(r.Bounds))
			}
		}
		if len(boxes) > 0 {
			return []queryir.Predicate{queryir.Or{Predicates: boxes}}
		}
	}
	if a.Region.Resolved() {
		return boxFilter(*a.Region.Bounds).Predicates
	}
	return nil
}

func boxFilter(b catalog.Bounds) queryir.And {
	return queryir.And{Predicates: []queryir.Predicate{
		queryir.Between{Field: "latitude", Low: queryir.Float(b.LatMin), High: queryir.Float(b.LatMax)},
		queryir.Between{Field: "longitude", Low: queryir.Float(b.LonMin), High: queryir.Float(b.LonMax)},
	}}
}

// floatFilter matches identifiers by substring; stored values carry
// encoding noise around the digits.
func floatFilter(s intent.Signals) []queryir.Predicate {
	var preds []queryir.Predicate
	switch len(s.FloatIDs) {
	case 0:
	case 1:
		preds = append(preds, queryir.Contains("float_id", s.FloatIDs[0]))
	default:
		ids := make([]queryir.Predicate, len(s.FloatIDs))
		for i, id := range s.FloatIDs {
			ids[i] = queryir.Contains("float_id", id)
		}
		preds = append(preds, queryir.Or{Predicates: ids})
	}
	if s.Cycle > 0 {
		preds = append(preds, queryir.Compare{
			Left:  queryir.Field{Name: "cycle_number"},
			Op:    queryir.OpEq,
			Right: queryir.Literal{Value: queryir.Int(s.Cycle)},
		})
	}
	return preds
}

func timeFilter(t intent.TimePeriod) []queryir.Predicate {
	switch {
	case t.Days > 0:
		return []queryir.Predicate{queryir.Since{Field: "timestamp", Days: t.Days}}
	case t.Year > 0:
		return []queryir.Predicate{extractEquals("YEAR", t.Year)}
	case t.Month > 0:
		return []queryir.Predicate{extractEquals("MONTH", t.Month)}
	}
	return nil
}

func extractEquals(part string, v int) queryir.Compare {
	return queryir.Compare{
		Left:  queryir.Extract{Part: part, Field: "timestamp"},
		Op:    queryir.OpEq,
		Right: queryir.Literal{Value: queryir.Int(v)},
	}
}

func depthFilter(z *catalog.DepthZone) []queryir.Predicate {
	if z == nil {
		return nil
	}
	var preds []queryir.Predicate
	if z.MinPressure >= 0 {
		preds = append(preds, pressureBound(queryir.OpGe, z.MinPressure))
	}
	if z.MaxPressure >= 0 {
		preds = append(preds, pressureBound(queryir.OpLe, z.MaxPressure))
	}
	return preds
}

func pressureBound(op queryir.CompareOp, v float64) queryir.Compare {
	return queryir.Compare{
		Left:  queryir.Field{Name: "pressure"},
		Op:    op,
		Right: queryir.Literal{Value: queryir.Float(v)},
	}
}

func fieldColumns(names ...string) []queryir.Column {
	cols := make([]queryir.Column, len(names))
	for i, n := range names {
		cols[i] = queryir.Column{Expr: queryir.Field{Name: n}}
	}
	return cols
}

func statisticsColumns(params []string) []queryir.Column {
	var cols []queryir.Column
	for _, p := range params {
		f := queryir.Field{Name: p}
		cols = append(cols,
			queryir.Column{Expr: queryir.Round{Arg: queryir.Aggregate{Func: queryir.AggAvg, Arg: f}, Places: 2}, Alias: "avg_" + p},
			queryir.Column{Expr: queryir.Aggregate{Func: queryir.AggMin, Arg: f}, Alias: "min_" + p},
			queryir.Column{Expr: queryir.Aggregate{Func: queryir.AggMax, Arg: f}, Alias: "max_" + p},
		)
	}
	return append(cols, queryir.Column{Expr: queryir.Aggregate{Func: queryir.AggCount}, Alias: "measurement_count"})
}
