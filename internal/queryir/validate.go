package queryir

import (
	"fmt"

	"github.com/Abuzaid-01/Float-Chat/internal/catalog"
)

// ValidationResult reports the problems found in a query.
type ValidationResult struct {
	// Valid is true when Issues is empty.
	Valid bool

	// Issues lists every problem found, in traversal order.
	Issues []string
}

// Validate checks a query against the table schema:
//  1. it reads the schema's table
//  2. every Field names a column or a select-list alias
//  3. identifier columns are never compared for equality or set membership
//  4. aggregates, extracts and time windows are well formed
//
// Validate is pure. It never modifies q.
func Validate(q Query, schema catalog.Schema) ValidationResult {
	v := &validator{
		schema: schema,
		issues: []string{},
	}
	v.validateQuery(q)

	return ValidationResult{
		Valid:  len(v.issues) == 0,
		Issues: v.issues,
	}
}

type validator struct {
	schema  catalog.Schema
	aliases map[string]bool
	issues  []string
}

func (v *validator) addIssue(format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addIssue("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addIssue("nil query")
	default:
		v.addIssue("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From != v.schema.Table {
		v.addIssue("query reads %q, only %q is queryable", sel.From, v.schema.Table)
	}
	if sel.Limit < 0 {
		v.addIssue("negative limit %d", sel.Limit)
	}

	v.aliases = make(map[string]bool, len(sel.Columns))
	for _, c := range sel.Columns {
		if c.Alias != "" {
			v.aliases[c.Alias] = true
		}
	}

	for _, c := range sel.Columns {
		v.validateExpr(c.Expr)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
	for _, g := range sel.GroupBy {
		v.validateExpr(g)
	}
	for _, o := range sel.OrderBy {
		v.validateExpr(o.Expr)
	}
}

func (v *validator) checkField(name string) {
	if v.aliases[name] {
		return
	}
	if _, ok := v.schema.Column(name); !ok {
		v.addIssue("unknown column %q", name)
	}
}

func (v *validator) validateExpr(e Expr) {
	switch expr := e.(type) {
	case Field:
		v.checkField(expr.Name)
	case *Field:
		v.checkField(expr.Name)
	case Literal, *Literal:
	case Aggregate:
		v.validateAggregate(expr)
	case *Aggregate:
		v.validateAggregate(*expr)
	case Round:
		v.validateExpr(expr.Arg)
	case *Round:
		v.validateExpr(expr.Arg)
	case Extract:
		v.validateExtract(expr)
	case *Extract:
		v.validateExtract(*expr)
	case GreatCircle:
		v.validateGreatCircle(expr)
	case *GreatCircle:
		v.validateGreatCircle(*expr)
	case nil:
		v.addIssue("nil expression")
	default:
		v.addIssue("unknown expression type: %T", e)
	}
}

func (v *validator) validateAggregate(a Aggregate) {
	if a.Arg == nil {
		if a.Func != AggCount {
			v.addIssue("%s requires an argument", a.Func)
		}
		return
	}
	v.validateExpr(a.Arg)
}

func (v *validator) validateExtract(x Extract) {
	switch x.Part {
	case "YEAR", "MONTH", "DAY":
	default:
		v.addIssue("unsupported EXTRACT part %q", x.Part)
	}
	v.checkField(x.Field)
}

func (v *validator) validateGreatCircle(g GreatCircle) {
	v.checkField(g.LatField)
	v.checkField(g.LonField)
	if g.EarthRadiusKm <= 0 {
		v.addIssue("great-circle distance needs a positive earth radius")
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case And:
		v.validatePredicates(pred.Predicates)
	case *And:
		v.validatePredicates(pred.Predicates)
	case Or:
		v.validatePredicates(pred.Predicates)
	case *Or:
		v.validatePredicates(pred.Predicates)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case Between:
		v.checkField(pred.Field)
	case *Between:
		v.checkField(pred.Field)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case Like:
		v.checkField(pred.Field)
	case *Like:
		v.checkField(pred.Field)
	case NotNull:
		v.checkField(pred.Field)
	case *NotNull:
		v.checkField(pred.Field)
	case Since:
		v.validateSince(pred)
	case *Since:
		v.validateSince(*pred)
	case nil:
		v.addIssue("nil predicate")
	default:
		v.addIssue("unknown predicate type: %T", p)
	}
}

func (v *validator) validatePredicates(ps []Predicate) {
	for _, p := range ps {
		v.validatePredicate(p)
	}
}

func (v *validator) validateCompare(c Compare) {
	v.validateExpr(c.Left)
	v.validateExpr(c.Right)
	if c.Op != OpEq && c.Op != OpNe {
		return
	}
	for _, side := range []Expr{c.Left, c.Right} {
		if name, ok := fieldName(side); ok && v.schema.IsIdentifier(name) {
			v.addIssue("exact comparison on identifier column %q; match it with LIKE", name)
		}
	}
}

func (v *validator) validateIn(in In) {
	v.checkField(in.Field)
	if len(in.Values) == 0 {
		v.addIssue("IN on %q has no values", in.Field)
	}
	if v.schema.IsIdentifier(in.Field) {
		v.addIssue("set membership on identifier column %q; match it with LIKE", in.Field)
	}
}

func (v *validator) validateSince(s Since) {
	v.checkField(s.Field)
	if s.Days <= 0 {
		v.addIssue("time window on %q must be positive, got %d days", s.Field, s.Days)
	}
}

func fieldName(e Expr) (string, bool) {
	switch f := e.(type) {
	case Field:
		return f.Name, true
	case *Field:
		return f.Name, true
	}
	return "", false
}
