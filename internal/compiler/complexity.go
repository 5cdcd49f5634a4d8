package compiler

import "github.com/Abuzaid-01/Float-Chat/internal/sqlguard"

// complexityWeights score the clauses of a statement. A plain SELECT
// scores 1.
var complexityWeights = []struct {
	keyword string
	weight  int
}{
	{"JOIN", 2},
	{"GROUP", 1},
	{"HAVING", 1},
	{"CASE", 1},
	{"DISTINCT", 1},
	{"ORDER", 1},
	{"OR", 1},
}

// Complexity scores a statement by the clauses it uses. Keywords inside
// quoted literals do not count.
func Complexity(sql string) int {
	t := sqlguard.Scan(sql)
	score := 1
	for _, w := range complexityWeights {
		score += w.weight * t.Count(w.keyword)
	}
	if n := t.Count("SELECT"); n > 1 {
		score += 2 * (n - 1)
	}
	return score
}
