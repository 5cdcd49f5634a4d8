package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Abuzaid-01/Float-Chat/internal/sqlguard"
)

// Cleanup failures.
var (
	ErrEmptyDraft          = errors.New("draft contains no SQL")
	ErrNotSelect           = errors.New("draft is not a SELECT statement")
	ErrMultipleStatements  = errors.New("draft contains more than one statement")
	ErrNestedSelect        = errors.New("draft contains a nested or compound SELECT")
	ErrUnflattenableCTE    = errors.New("common table expression cannot be collapsed to a flat SELECT")
	ErrUnterminatedLiteral = errors.New("draft contains an unterminated quoted string")
	ErrUnbalanced          = errors.New("draft has unbalanced parentheses")
	ErrForbiddenKeyword    = errors.New("draft contains a non-SELECT keyword")
)

var statementStart = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)

// draftResponse is the JSON shape a model may answer with.
type draftResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// Clean reduces a raw draft to one flat SELECT without a terminator.
//
// It accepts bare SQL, a ```sql fenced block, or a JSON object with an
// "sql" field, and drops surrounding prose and comments. A WITH query is
// collapsed to its final SELECT only when that SELECT reads the table
// directly; anything else that is not a single SELECT chain is rejected.
func Clean(draft, table string) (string, error) {
	sql := extractSQL(draft)

	// prose may hold apostrophes, so cut it before any quote-aware pass
	loc := statementStart.FindStringIndex(sql)
	if loc == nil {
		if err := forbidden(sql); err != nil {
			return "", err
		}
		if strings.TrimSpace(sql) == "" {
			return "", ErrEmptyDraft
		}
		return "", ErrNotSelect
	}
	if err := forbidden(sql[:loc[0]]); err != nil {
		return "", err
	}
	sql = stripComments(sql[loc[0]:])

	t := sqlguard.Scan(sql)
	if err := forbidden(t.Unquoted()); err != nil {
		return "", err
	}
	if t.Open {
		return "", ErrUnterminatedLiteral
	}
	if semi := t.IndexByte(';'); semi >= 0 {
		if strings.TrimSpace(strings.ReplaceAll(sql[semi:], ";", "")) != "" {
			return "", ErrMultipleStatements
		}
		sql = sql[:semi]
	}
	sql = collapseSpace(sql)

	t = sqlguard.Scan(sql)
	if t.KeywordAt(0, "WITH") {
		main := t.Index("SELECT", 0, true)
		if main < 0 {
			return "", ErrUnflattenableCTE
		}
		sql = sql[main:]
		t = sqlguard.Scan(sql)
		if t.Count("JOIN") > 0 || !readsTable(sql, table) {
			return "", ErrUnflattenableCTE
		}
	}

	if !t.KeywordAt(0, "SELECT") {
		return "", ErrNotSelect
	}
	if !balanced(sql) {
		return "", ErrUnbalanced
	}
	if t.Count("SELECT") != 1 {
		return "", ErrNestedSelect
	}
	return sql, nil
}

func extractSQL(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "{") {
		var parsed draftResponse
		if err := json.Unmarshal([]byte(response), &parsed); err == nil && parsed.SQL != "" {
			return parsed.SQL
		}
	}

	if start := strings.Index(response, "```sql"); start != -1 {
		start += len("```sql")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return response[start : start+end]
		}
	}
	if start := strings.Index(response, "```"); start != -1 {
		start += len("```")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return response[start : start+end]
		}
	}
	return response
}

func readsTable(sql, table string) bool {
	re := regexp.MustCompile(`(?i)\bFROM\s+` + regexp.QuoteMeta(table) + `\b`)
	return re.MatchString(sql)
}

func forbidden(s string) error {
	if kw := sqlguard.FindForbidden(s); kw != "" {
		return fmt.Errorf("%w: %s", ErrForbiddenKeyword, kw)
	}
	return nil
}

func balanced(sql string) bool {
	t := sqlguard.Scan(sql)
	depth := 0
	for i := 0; i < len(sql); i++ {
		if t.Quoted[i] {
			continue
		}
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
