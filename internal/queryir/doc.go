// Package queryir provides the portable query representation built by read
// entry points and executed by a backend.
//
// The query IR is the boundary between the request builder and the storage
// engine. The builder never emits SQL; it emits a Select and lets the backend
// compile it (see package querysql for the SQLite compiler).
//
// SUPPORTED FRAGMENT:
//   - Select(from, fields, filter, limit) - single-resource access
//   - Predicates: Equals, And
//   - Explicit field lists (no SELECT *)
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	default:
//	    // Impossible - compiler knows all Query types
//	}
//
// All literal values in predicates are ir.IRValue (no floats), so a query has
// the same canonical encoding every time it is built from the same arguments.
package queryir
