// Package queryir provides the typed intermediate representation for the
// single, flat SELECT statements this system is allowed to produce.
//
// Drafts built from an analysis are assembled as a Select value, checked
// with Validate, and rendered to PostgreSQL text by package querysql.
// Building a Select instead of concatenating strings keeps two rules
// structural rather than conventional:
//
//   - There is exactly one statement and no sub-select. Query has a single
//     implementation and no Expr can contain a Query.
//   - Literal values are typed (String, Int, Float) and only ever rendered
//     through the escaping routine in querysql.
//
// SEALED INTERFACES:
//
// Query, Expr, Predicate and Value are sealed with marker methods. Only
// types in this package implement them, so renderers can switch
// exhaustively:
//
//	switch e := expr.(type) {
//	case Field:
//	case *Field:
//	    // ...
//	default:
//	    return fmt.Errorf("unsupported expression: %T", expr)
//	}
//
// Both value and pointer forms are accepted everywhere.
//
// IDENTIFIER COLUMNS:
//
// Some columns (float_id) are stored with encoding noise, for example
// b'1901740 '. Validate flags any equality comparison against such a
// column; callers must use Like with a substring pattern instead.
package queryir
