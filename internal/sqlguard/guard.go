// Package sqlguard decides whether a SQL string is safe to hand to the
// data-access layer. Every function here is pure and total.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// MinLength is the shortest statement accepted.
const MinLength = 10

// Blocklist holds the mutating, DDL and procedural keywords that must not
// appear anywhere in a statement, as whole words.
var Blocklist = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "TRUNCATE", "ALTER", "CREATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "DECLARE", "CURSOR", "MERGE",
	"COPY", "CALL", "VACUUM", "ATTACH", "REPLACE", "UPSERT",
}

var blocklistPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(Blocklist, "|") + `)\b`)

// suspicious substrings are logged for audit but never fail a statement
var suspicious = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"quote-terminator", regexp.MustCompile(`';`)},
	{"line-comment", regexp.MustCompile(`--`)},
	{"block-comment", regexp.MustCompile(`/\*`)},
	{"extended-procedure", regexp.MustCompile(`(?i)\bxp_`)},
	{"stored-procedure", regexp.MustCompile(`(?i)\bsp_`)},
	{"union-select", regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`)},
}

// FindForbidden returns the first blocklisted keyword in s, upper-cased,
// or "" when there is none.
func FindForbidden(s string) string {
	return strings.ToUpper(blocklistPattern.FindString(s))
}

// Violation names one failed hard check.
type Violation struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Check + ": " + v.Message }

// Report is the outcome of Check.
type Report struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
	// Warnings are audit flags; they do not affect Valid.
	Warnings []string `json:"warnings,omitempty"`
}

// Err returns nil for a valid report, otherwise an error listing every
// violation.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	parts := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// Guard checks statements against one table.
type Guard struct {
	table *regexp.Regexp
	name  string
}

// New returns a guard that requires statements to reference table.
func New(table string) *Guard {
	return &Guard{
		table: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(table) + `\b`),
		name:  table,
	}
}

// Validate reports whether sql passes every hard check.
func (g *Guard) Validate(sql string) bool {
	return g.Check(sql).Valid
}

// Check runs every hard check and collects audit warnings. Accepted
// statements begin with SELECT, contain exactly one terminator as their
// final character, reference the table and contain no blocklisted word.
// Keywords, terminators and the table name only count outside quoted
// literals.
func (g *Guard) Check(sql string) Report {
	var r Report
	fail := func(check, format string, args ...any) {
		r.Violations = append(r.Violations, Violation{Check: check, Message: fmt.Sprintf(format, args...)})
	}

	trimmed := strings.TrimSpace(sql)
	t := Scan(trimmed)
	bare := t.Unquoted()
	if len(trimmed) < MinLength {
		fail("length", "statement is empty or shorter than %d characters", MinLength)
	}
	if t.Open {
		fail("literal", "unterminated quoted string")
	}
	if m := blocklistPattern.FindAllString(bare, -1); len(m) > 0 {
		fail("blocklist", "forbidden keyword %s", strings.ToUpper(m[0]))
	}
	if !hasSelectPrefix(trimmed) {
		fail("select", "statement must begin with SELECT")
	}
	if !g.table.MatchString(bare) && !strings.Contains(strings.ToLower(trimmed), `"`+strings.ToLower(g.name)+`"`) {
		fail("table", "statement must reference %s", g.name)
	}
	switch n := t.CountByte(';'); {
	case n == 0:
		fail("terminator", "statement must end with ;")
	case n > 1:
		fail("terminator", "multiple statements (%d terminators)", n)
	case !strings.HasSuffix(bare, ";"):
		fail("terminator", "terminator must be the final character")
	}

	for _, s := range suspicious {
		if s.pattern.MatchString(sql) {
			r.Warnings = append(r.Warnings, s.name)
		}
	}

	r.Valid = len(r.Violations) == 0
	return r
}

func hasSelectPrefix(s string) bool {
	if len(s) < len("SELECT") || !strings.EqualFold(s[:len("SELECT")], "SELECT") {
		return false
	}
	if len(s) == len("SELECT") {
		return true
	}
	c := s[len("SELECT")]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '('
}
