package queryir

import (
	"fmt"

	"github.com/roach88/resgate/internal/ir"
)

// ValidationResult contains the problems found in a query.
type ValidationResult struct {
	// Errors lists every problem found, in traversal order.
	Errors []string
}

// OK reports whether the query is valid.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err returns nil for a valid query, otherwise an error joining every problem.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	fields := make([]ir.FieldError, len(r.Errors))
	for i, msg := range r.Errors {
		fields[i] = ir.FieldError{Field: "query", Message: msg}
	}
	return ir.NewValidationError(fields...)
}

// Validate checks a query against the schema of the resource it reads.
//
// Rules:
//  1. From names the schema's resource
//  2. Fields is non-empty and lists only known fields
//  3. Every predicate references a known field
//  4. Equals values match the field type (null is allowed and matches nothing)
//  5. Limit is not negative
//
// Validate is a pure function with no side effects.
func Validate(query Query, schema *ir.ResourceSchema) ValidationResult {
	v := &validator{schema: schema}
	v.validateQuery(query)
	return ValidationResult{Errors: v.errors}
}

type validator struct {
	schema *ir.ResourceSchema
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addError("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if v.schema == nil {
		v.addError("no schema for resource %q", sel.From)
		return
	}
	if sel.From != v.schema.Name {
		v.addError("query reads %q, schema describes %q", sel.From, v.schema.Name)
	}

	if len(sel.Fields) == 0 {
		v.addError("empty field list - select requires explicit fields")
	}
	for _, f := range sel.Fields {
		if _, ok := v.schema.Field(f); !ok {
			v.addError("unknown field %q in field list", f)
		}
	}

	if sel.Limit < 0 {
		v.addError("negative limit %d", sel.Limit)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	field, ok := v.schema.Field(eq.Field)
	if !ok {
		v.addError("unknown field %q in filter", eq.Field)
		return
	}
	if ir.IsNull(eq.Value) {
		return
	}
	if err := ir.CheckType(field.Type, eq.Value); err != nil {
		v.addError("filter on %q: %v", eq.Field, err)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
