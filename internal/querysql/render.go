// Package querysql renders queryir queries to PostgreSQL text.
//
// The output is a single self-contained statement: literals are inlined
// through quoteString/formatFloat rather than bound as parameters because
// the compiled artifact is handed to the data-access collaborator as one
// string. Identifiers are checked against a strict pattern so no value
// from user text can reach the statement unescaped.
//
// Rendering is deterministic: the same Select always yields byte-identical
// SQL, which the query cache and golden tests rely on.
package querysql

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Abuzaid-01/Float-Chat/internal/queryir"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Render converts a query to SQL without a statement terminator.
func Render(q queryir.Query) (string, error) {
	switch query := q.(type) {
	case queryir.Select:
		return renderSelect(query)
	case *queryir.Select:
		if query == nil {
			return "", fmt.Errorf("cannot render nil query")
		}
		return renderSelect(*query)
	case nil:
		return "", fmt.Errorf("cannot render nil query")
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
}

func renderSelect(q queryir.Select) (string, error) {
	if err := checkIdent(q.From); err != nil {
		return "", fmt.Errorf("from: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ")

	if len(q.Columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range q.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		expr, err := renderExpr(c.Expr)
		if err != nil {
			return "", fmt.Errorf("column %d: %w", i, err)
		}
		b.WriteString(expr)
		if c.Alias != "" {
			if err := checkIdent(c.Alias); err != nil {
				return "", fmt.Errorf("alias: %w", err)
			}
			b.WriteString(" AS ")
			b.WriteString(c.Alias)
		}
	}

	b.WriteString(" FROM ")
	b.WriteString(q.From)

	if q.Filter != nil {
		where, err := renderPredicate(q.Filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if len(q.GroupBy) > 0 {
		parts := make([]string, 0, len(q.GroupBy))
		for _, g := range q.GroupBy {
			s, err := renderExpr(g)
			if err != nil {
				return "", fmt.Errorf("group by: %w", err)
			}
			parts = append(parts, s)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			s, err := renderExpr(o.Expr)
			if err != nil {
				return "", fmt.Errorf("order by: %w", err)
			}
			dir := " ASC"
			if o.Desc {
				dir = " DESC"
			}
			parts = append(parts, s+dir)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}

	return b.String(), nil
}

func renderExpr(e queryir.Expr) (string, error) {
	switch expr := e.(type) {
	case queryir.Field:
		return renderField(expr.Name)
	case *queryir.Field:
		return renderField(expr.Name)
	case queryir.Literal:
		return renderValue(expr.Value)
	case *queryir.Literal:
		return renderValue(expr.Value)
	case queryir.Aggregate:
		return renderAggregate(expr)
	case *queryir.Aggregate:
		return renderAggregate(*expr)
	case queryir.Round:
		return renderRound(expr)
	case *queryir.Round:
		return renderRound(*expr)
	case queryir.Extract:
		return renderExtract(expr)
	case *queryir.Extract:
		return renderExtract(*expr)
	case queryir.GreatCircle:
		return renderGreatCircle(expr)
	case *queryir.GreatCircle:
		return renderGreatCircle(*expr)
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

func renderField(name string) (string, error) {
	if err := checkIdent(name); err != nil {
		return "", err
	}
	return name, nil
}

func renderAggregate(a queryir.Aggregate) (string, error) {
	switch a.Func {
	case queryir.AggAvg, queryir.AggMin, queryir.AggMax, queryir.AggCount, queryir.AggStddev:
	default:
		return "", fmt.Errorf("unsupported aggregate %q", a.Func)
	}
	if a.Arg == nil {
		return string(a.Func) + "(*)", nil
	}
	arg, err := renderExpr(a.Arg)
	if err != nil {
		return "", err
	}
	if a.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("%s(%s)", a.Func, arg), nil
}

func renderRound(r queryir.Round) (string, error) {
	arg, err := renderExpr(r.Arg)
	if err != nil {
		return "", err
	}
	// ROUND(double precision, int) does not exist in PostgreSQL
	return fmt.Sprintf("ROUND(CAST(%s AS numeric), %d)", arg, r.Places), nil
}

func renderExtract(x queryir.Extract) (string, error) {
	switch x.Part {
	case "YEAR", "MONTH", "DAY":
	default:
		return "", fmt.Errorf("unsupported EXTRACT part %q", x.Part)
	}
	field, err := renderField(x.Field)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", x.Part, field), nil
}

func renderGreatCircle(g queryir.GreatCircle) (string, error) {
	lat, err := renderField(g.LatField)
	if err != nil {
		return "", err
	}
	lon, err := renderField(g.LonField)
	if err != nil {
		return "", err
	}
	r, err := formatFloat(g.EarthRadiusKm)
	if err != nil {
		return "", err
	}
	plat, err := formatFloat(g.Latitude)
	if err != nil {
		return "", err
	}
	plon, err := formatFloat(g.Longitude)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"%s * ACOS(LEAST(1, GREATEST(-1, COS(RADIANS(%s)) * COS(RADIANS(%s)) * COS(RADIANS(%s) - RADIANS(%s)) + SIN(RADIANS(%s)) * SIN(RADIANS(%s)))))",
		r, plat, lat, lon, plon, plat, lat,
	), nil
}

func renderPredicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.And:
		return renderJunction(pred.Predicates, " AND ", "TRUE")
	case *queryir.And:
		return renderJunction(pred.Predicates, " AND ", "TRUE")
	case queryir.Or:
		return renderOr(pred.Predicates)
	case *queryir.Or:
		return renderOr(pred.Predicates)
	case queryir.Compare:
		return renderCompare(pred)
	case *queryir.Compare:
		return renderCompare(*pred)
	case queryir.Between:
		return renderBetween(pred)
	case *queryir.Between:
		return renderBetween(*pred)
	case queryir.In:
		return renderIn(pred)
	case *queryir.In:
		return renderIn(*pred)
	case queryir.Like:
		return renderLike(pred)
	case *queryir.Like:
		return renderLike(*pred)
	case queryir.NotNull:
		return renderNotNull(pred)
	case *queryir.NotNull:
		return renderNotNull(*pred)
	case queryir.Since:
		return renderSince(pred)
	case *queryir.Since:
		return renderSince(*pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func renderJunction(preds []queryir.Predicate, sep, empty string) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		s, err := renderPredicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

// renderOr always parenthesizes so it binds correctly inside an And.
func renderOr(preds []queryir.Predicate) (string, error) {
	s, err := renderJunction(preds, " OR ", "FALSE")
	if err != nil {
		return "", err
	}
	if len(preds) < 2 {
		return s, nil
	}
	return "(" + s + ")", nil
}

func renderCompare(c queryir.Compare) (string, error) {
	switch c.Op {
	case queryir.OpEq, queryir.OpNe, queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
	default:
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}
	left, err := renderExpr(c.Left)
	if err != nil {
		return "", err
	}
	right, err := renderExpr(c.Right)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", left, c.Op, right), nil
}

func renderBetween(b queryir.Between) (string, error) {
	field, err := renderField(b.Field)
	if err != nil {
		return "", err
	}
	low, err := renderValue(b.Low)
	if err != nil {
		return "", err
	}
	high, err := renderValue(b.High)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", field, low, high), nil
}

func renderIn(in queryir.In) (string, error) {
	field, err := renderField(in.Field)
	if err != nil {
		return "", err
	}
	if len(in.Values) == 0 {
		return "", fmt.Errorf("IN on %s has no values", in.Field)
	}
	vals := make([]string, 0, len(in.Values))
	for _, v := range in.Values {
		s, err := renderValue(v)
		if err != nil {
			return "", err
		}
		vals = append(vals, s)
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(vals, ", ")), nil
}

func renderLike(l queryir.Like) (string, error) {
	field, err := renderField(l.Field)
	if err != nil {
		return "", err
	}
	return field + " LIKE " + quoteString(l.Pattern), nil
}

func renderNotNull(n queryir.NotNull) (string, error) {
	field, err := renderField(n.Field)
	if err != nil {
		return "", err
	}
	return field + " IS NOT NULL", nil
}

func renderSince(s queryir.Since) (string, error) {
	field, err := renderField(s.Field)
	if err != nil {
		return "", err
	}
	if s.Days <= 0 {
		return "", fmt.Errorf("time window must be positive, got %d days", s.Days)
	}
	return fmt.Sprintf("%s >= NOW() - INTERVAL '%d days'", field, s.Days), nil
}

func renderValue(v queryir.Value) (string, error) {
	switch val := v.(type) {
	case queryir.String:
		return quoteString(string(val)), nil
	case queryir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case queryir.Float:
		return formatFloat(float64(val))
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}

// formatFloat renders the shortest exact decimal form. NaN and infinities
// have no portable literal and are rejected.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// quoteString renders a standard-conforming string literal. Backslashes
// are literal under standard_conforming_strings, so doubling quotes is the
// only escape required; NUL bytes are dropped because PostgreSQL text
// cannot hold them.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
