package queryir

// Query is a complete statement. Select is the only implementation.
type Query interface {
	queryNode()
}

// Expr is a scalar expression usable in a select list, filter or ordering.
type Expr interface {
	exprNode()
}

// Predicate is a boolean filter condition.
type Predicate interface {
	predicateNode()
}

// Value is a typed literal.
type Value interface {
	valueNode()
}

// Select is a flat single-table query.
//
//	SELECT <columns> FROM <from> [WHERE <filter>] [GROUP BY <group>]
//	[ORDER BY <order>] [LIMIT <limit>]
//
// An empty Columns list renders as SELECT *. Limit 0 means no LIMIT
// clause; the compiler always supplies one before a query leaves the
// package boundary.
type Select struct {
	From    string
	Columns []Column
	Filter  Predicate // nil = no WHERE
	GroupBy []Expr
	OrderBy []Order
	Limit   int
}

func (Select) queryNode() {}

// Column is one entry of the select list.
type Column struct {
	Expr  Expr
	Alias string // empty = no AS
}

// Order is one ORDER BY key.
type Order struct {
	Expr Expr
	Desc bool
}

// Field references a table column or a select-list alias.
type Field struct {
	Name string
}

func (Field) exprNode() {}

// Literal embeds a typed value.
type Literal struct {
	Value Value
}

func (Literal) exprNode() {}

// AggFunc names an aggregate function.
type AggFunc string

const (
	AggAvg    AggFunc = "AVG"
	AggMin    AggFunc = "MIN"
	AggMax    AggFunc = "MAX"
	AggCount  AggFunc = "COUNT"
	AggStddev AggFunc = "STDDEV"
)

// Aggregate applies an aggregate function. A nil Arg renders as (*),
// which is only meaningful for COUNT.
type Aggregate struct {
	Func     AggFunc
	Arg      Expr
	Distinct bool
}

func (Aggregate) exprNode() {}

// Round rounds Arg to Places decimal places.
type Round struct {
	Arg    Expr
	Places int
}

func (Round) exprNode() {}

// Extract pulls a calendar part (YEAR, MONTH, DAY) out of a timestamp
// column.
type Extract struct {
	Part  string
	Field string
}

func (Extract) exprNode() {}

// GreatCircle is the spherical law of cosines distance in kilometres
// between a fixed point and the row position:
//
//	R * acos(cos(rad(lat1))*cos(rad(lat2))*cos(rad(lon2)-rad(lon1)) +
//	         sin(rad(lat1))*sin(rad(lat2)))
//
// The acos argument is clamped to [-1, 1] so rounding on coincident points
// cannot produce NaN.
type GreatCircle struct {
	Latitude      float64
	Longitude     float64
	LatField      string
	LonField      string
	EarthRadiusKm float64
}

func (GreatCircle) exprNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Compare compares two expressions.
type Compare struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (Compare) predicateNode() {}

// Between is an inclusive range test on a column.
type Between struct {
	Field string
	Low   Value
	High  Value
}

func (Between) predicateNode() {}

// In tests column membership in a literal set.
type In struct {
	Field  string
	Values []Value
}

func (In) predicateNode() {}

// Like is a pattern match. Pattern is rendered as an escaped literal.
type Like struct {
	Field   string
	Pattern string
}

func (Like) predicateNode() {}

// Contains is shorthand for a Like with %Substring% as the pattern.
func Contains(field, substring string) Like {
	return Like{Field: field, Pattern: "%" + substring + "%"}
}

// NotNull is field IS NOT NULL.
type NotNull struct {
	Field string
}

func (NotNull) predicateNode() {}

// Since keeps rows whose timestamp column falls within the last Days days.
type Since struct {
	Field string
	Days  int
}

func (Since) predicateNode() {}

// String is a text literal.
type String string

func (String) valueNode() {}

// Int is an integer literal.
type Int int64

func (Int) valueNode() {}

// Float is a floating-point literal.
type Float float64

func (Float) valueNode() {}

// Ints converts a slice of ints into Values.
func Ints(xs []int) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = Int(x)
	}
	return out
}
