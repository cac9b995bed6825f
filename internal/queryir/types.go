package queryir

import "github.com/roach88/resgate/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads records of one resource.
//
// Semantics:
//
//	SELECT <fields> FROM <from> WHERE <filter> ORDER BY <primary key> LIMIT <limit>
//
// Example:
//
//	Select{
//	  From:   "User",
//	  Fields: []string{"id", "first_name", "last_name"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "first_name", Value: ir.IRString("fred")},
//	  }},
//	  Limit: 2,
//	}
//
// A get request uses Limit 2 so the engine can tell "exactly one" from
// "more than one" without reading the whole table.
type Select struct {
	From   string    // Resource name
	Fields []string  // Explicit field list (declaration order)
	Filter Predicate // WHERE conditions (nil = no filter)
	Limit  int       // 0 = unlimited
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// NULLs never equal anything; a null argument produces an empty result.
type Equals struct {
	Field string     // Field name on the resource
	Value ir.IRValue // Literal value
}

func (Equals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Conjoin folds predicates into a single predicate.
// Returns nil for no predicates and the predicate itself for one.
func Conjoin(preds ...Predicate) Predicate {
	var flat []Predicate
	for _, p := range preds {
		if p != nil {
			flat = append(flat, p)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return And{Predicates: flat}
	}
}

// FilterValues returns the field/value pairs of every Equals reachable from p,
// in traversal order.
func FilterValues(p Predicate) []Equals {
	var out []Equals
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Equals:
			out = append(out, pred)
		case *Equals:
			out = append(out, *pred)
		case And:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		case *And:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		}
	}
	walk(p)
	return out
}
