package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Abuzaid-01/Float-Chat/internal/intent"
	"github.com/Abuzaid-01/Float-Chat/internal/sqlguard"
)

var (
	digitsPattern = regexp.MustCompile(`\d+`)
	limitPattern  = regexp.MustCompile(`(?i)^LIMIT\s+(\d+|ALL)\b`)
)

// clauseKeywords end a WHERE clause, in no particular order.
var clauseKeywords = []string{"GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET"}

// enforce applies the row, quality and identifier policies to a cleaned
// flat SELECT and appends the terminator.
func (c *Compiler) enforce(sql string, a intent.Analysis) (string, error) {
	schema := c.catalog.Schema

	for _, col := range schema.Columns {
		if !col.Identifier {
			continue
		}
		sql = rewriteIdentifierMatch(sql, col.Name)
		if err := checkIdentifierMatch(sql, col.Name); err != nil {
			return "", err
		}
	}

	if !a.Signals.Unfiltered && len(schema.Quality.Columns) > 0 {
		accepted := joinInts(schema.Quality.Accepted)
		filter := make([]string, len(schema.Quality.Columns))
		for i, qc := range schema.Quality.Columns {
			filter[i] = fmt.Sprintf("%s IN (%s)", qc, accepted)
		}
		if !hasConjuncts(whereClause(sql), filter) {
			sql = injectCondition(sql, strings.Join(filter, " AND "))
		}
	}

	sql, err := c.enforceLimit(sql, a.Signals.Limit)
	if err != nil {
		return "", err
	}
	return sql + ";", nil
}

// hasConjuncts reports whether every condition in want is one of the
// top-level AND terms of where. A top-level OR means no term is
// guaranteed, so it never matches. Terms compare ignoring case and
// unquoted whitespace.
func hasConjuncts(where string, want []string) bool {
	t := sqlguard.Scan(where)
	if t.Index("OR", 0, true) >= 0 {
		return false
	}
	have := make(map[string]bool)
	for _, term := range conjuncts(t) {
		have[squash(term)] = true
	}
	for _, w := range want {
		if !have[squash(w)] {
			return false
		}
	}
	return true
}

// conjuncts splits t at its top-level ANDs. The AND of a BETWEEN is part
// of the term.
func conjuncts(t sqlguard.Scanned) []string {
	var terms []string
	start, between := 0, false
	for i := 0; i < len(t.Text); i++ {
		if t.Depth[i] != 0 {
			continue
		}
		switch {
		case t.KeywordAt(i, "BETWEEN"):
			between = true
		case t.KeywordAt(i, "AND"):
			if between {
				between = false
				continue
			}
			terms = append(terms, t.Text[start:i])
			start = i + len("AND")
		}
	}
	return append(terms, t.Text[start:])
}

// squash lower-cases s and drops unquoted whitespace.
func squash(s string) string {
	t := sqlguard.Scan(s)
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !t.Quoted[i] && (c == ' ' || c == '\t' || c == '\n' || c == '\r') {
			continue
		}
		b.WriteByte(c)
	}
	return strings.ToLower(b.String())
}

// rewriteIdentifierMatch turns col = 'x' / col = 123 / col IN (...) and
// anchored LIKE patterns into LIKE patterns on the digits of each value.
func rewriteIdentifierMatch(sql, col string) string {
	name := regexp.QuoteMeta(col)
	eq := regexp.MustCompile(`(?i)\b` + name + `\s*==?\s*('(?:[^']|'')*'|\d+)`)
	sql = eq.ReplaceAllStringFunc(sql, func(m string) string {
		sub := eq.FindStringSubmatch(m)
		return col + " LIKE " + likePattern(sub[1])
	})

	in := regexp.MustCompile(`(?i)\b` + name + `\s+IN\s*\(([^()]*)\)`)
	sql = in.ReplaceAllStringFunc(sql, func(m string) string {
		sub := in.FindStringSubmatch(m)
		values := regexp.MustCompile(`'(?:[^']|'')*'|\d+`).FindAllString(sub[1], -1)
		if len(values) == 0 {
			return m
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = col + " LIKE " + likePattern(v)
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	})

	like := regexp.MustCompile(`(?i)\b` + name + `(\s+NOT)?\s+(I?LIKE)\s+('(?:[^']|'')*')`)
	return like.ReplaceAllStringFunc(sql, func(m string) string {
		sub := like.FindStringSubmatch(m)
		if unanchored(sub[3]) {
			return m
		}
		return col + strings.ToUpper(sub[1]) + " " + strings.ToUpper(sub[2]) + " " + likePattern(sub[3])
	})
}

// unanchored reports whether a quoted LIKE pattern starts and ends with %.
func unanchored(literal string) bool {
	return len(literal) >= 4 && strings.HasPrefix(literal, "'%") && strings.HasSuffix(literal, "%'")
}

// likePattern builds '%digits%' from a literal, falling back to the whole
// literal text when it holds no digits.
func likePattern(literal string) string {
	raw := literal
	if strings.HasPrefix(raw, "'") {
		raw = strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	if d := digitsPattern.FindString(raw); d != "" {
		raw = d
	}
	raw = strings.Trim(raw, "%")
	return "'%" + strings.ReplaceAll(raw, "'", "''") + "%'"
}

// checkIdentifierMatch rejects any comparison on col that rewriting could
// not turn into an unanchored LIKE: equality, inequality or IN on the bare
// column, on the column wrapped in a function or cast, or with the column
// on the right-hand side, and anchored LIKE patterns.
func checkIdentifierMatch(sql, col string) error {
	name := regexp.QuoteMeta(col)
	op := `(?:==?|<>|!=|(?:NOT\s+)?IN\b)`
	checks := []*regexp.Regexp{
		// col = / col IN, with optional ::casts
		regexp.MustCompile(`(?i)\b` + name + `(?:\s*::\s*\w+)*\s*` + op),
		// fn(col ...) = / CAST(col AS text) IN
		regexp.MustCompile(`(?i)\b` + name + `\b[^()';]*(?:\)\s*(?:::\s*\w+\s*)*)+` + op),
		// 'x' = col / 'x' = TRIM(col)
		regexp.MustCompile(`(?i)(?:==?|<>|!=)\s*(?:\w+\s*\(\s*)*` + name + `\b`),
	}
	t := sqlguard.Scan(sql)
	for _, re := range checks {
		for _, loc := range re.FindAllStringIndex(sql, -1) {
			if !t.Quoted[loc[0]] {
				return fmt.Errorf("exact comparison on identifier column %s survived rewriting", col)
			}
		}
	}

	like := regexp.MustCompile(`(?i)\b` + name + `(?:\s+NOT)?\s+I?LIKE\s+('(?:[^']|'')*')`)
	for _, sub := range like.FindAllStringSubmatchIndex(sql, -1) {
		if !t.Quoted[sub[0]] && !unanchored(sql[sub[2]:sub[3]]) {
			return fmt.Errorf("anchored LIKE on identifier column %s survived rewriting", col)
		}
	}
	return nil
}

// whereClause returns the body of the top-level WHERE clause, or "".
func whereClause(sql string) string {
	t := sqlguard.Scan(sql)
	where := t.Index("WHERE", 0, true)
	if where < 0 {
		return ""
	}
	return sql[where+len("WHERE") : clauseEnd(t, where)]
}

func clauseEnd(t sqlguard.Scanned, from int) int {
	end := len(t.Text)
	for _, kw := range clauseKeywords {
		if i := t.Index(kw, from, true); i >= 0 && i < end {
			end = i
		}
	}
	return end
}

// injectCondition ANDs cond into the top-level WHERE clause, wrapping the
// existing condition in parentheses so an OR cannot escape it.
func injectCondition(sql, cond string) string {
	t := sqlguard.Scan(sql)
	where := t.Index("WHERE", 0, true)

	from := 0
	if where >= 0 {
		from = where
	}
	tail := clauseEnd(t, from)

	rest := ""
	if tail < len(sql) {
		rest = " " + strings.TrimSpace(sql[tail:])
	}
	if where < 0 {
		return strings.TrimSpace(sql[:tail]) + " WHERE " + cond + rest
	}
	existing := strings.TrimSpace(sql[where+len("WHERE") : tail])
	if existing == "" {
		return strings.TrimSpace(sql[:where]) + " WHERE " + cond + rest
	}
	return strings.TrimSpace(sql[:where]) + " WHERE " + cond + " AND (" + existing + ")" + rest
}

// enforceLimit appends a LIMIT when missing and caps one that exceeds the
// hard maximum.
func (c *Compiler) enforceLimit(sql string, requested int) (string, error) {
	limits := c.catalog.Schema.Limits
	want := limits.DefaultRows
	if requested > 0 {
		want = min(requested, limits.MaxRows)
	}

	t := sqlguard.Scan(sql)
	at := t.Index("LIMIT", 0, true)
	if at < 0 {
		return sql + " LIMIT " + strconv.Itoa(want), nil
	}

	m := limitPattern.FindStringSubmatchIndex(sql[at:])
	if m == nil {
		return "", fmt.Errorf("LIMIT clause is not a plain row count")
	}
	value := sql[at+m[2] : at+m[3]]
	n, err := strconv.Atoi(value)
	if err != nil || n > limits.MaxRows {
		// ALL, overflow or over policy
		n = limits.MaxRows
	}
	if n <= 0 {
		n = want
	}
	return sql[:at] + "LIMIT " + strconv.Itoa(n) + sql[at+m[1]:], nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
