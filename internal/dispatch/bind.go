package dispatch

import (
	"fmt"

	"github.com/roach88/resgate/internal/ir"
)

// Bound is the result of binding one call: named argument values plus the
// call options. It is consumed by the builder and not retained.
type Bound struct {
	Resource  string
	Interface string
	Target    string

	// Args maps argument names to the supplied values. Optional arguments
	// without a value are absent, never null.
	Args ir.IRObject

	// Record is the update subject, or the record consumed by a _record argument.
	Record *ir.Record

	Options Options
}

// Bind maps positional values onto the entry's arguments.
//
// Update entries take the record to update as their first value. A _record
// argument consumes one record and yields every field the calculation
// references.
func (e *Entry) Bind(positional []ir.IRValue, opts Options) (*Bound, error) {
	b := &Bound{
		Resource:  e.schema.Name,
		Interface: e.name,
		Target:    e.def.Target,
		Args:      ir.IRObject{},
		Options:   opts,
	}

	values := positional
	slots := len(e.args)
	if e.kind == ir.ActionUpdate {
		slots++
		if len(values) == 0 {
			return nil, ir.NewMissingArgument("record")
		}
		rec, err := e.record("record", values[0])
		if err != nil {
			return nil, err
		}
		b.Record = &rec
		values = values[1:]
	}

	if len(positional) > slots {
		return nil, ir.NewTooManyArguments(slots, len(positional))
	}

	for i, arg := range e.args {
		if i >= len(values) {
			if !arg.Optional {
				return nil, ir.NewMissingArgument(arg.Name)
			}
			continue
		}

		if arg.Name != ir.RecordArgument {
			b.Args[arg.Name] = values[i]
			continue
		}

		rec, err := e.record(arg.Name, values[i])
		if err != nil {
			return nil, err
		}
		b.Record = &rec
		for _, field := range e.calc.Fields {
			if v, ok := rec.Attributes[field]; ok {
				b.Args[field] = v
			}
		}
	}

	return b, nil
}

// record checks that v is a record of the entry's resource. A record with
// no resource is taken to belong to the entry's resource.
func (e *Entry) record(name string, v ir.IRValue) (ir.Record, error) {
	rec, ok := v.(ir.Record)
	if !ok {
		return ir.Record{}, ir.NewValidationError(ir.FieldError{
			Field:   name,
			Message: fmt.Sprintf("expected record, got %s", ir.TypeName(v)),
		})
	}
	if rec.Resource != "" && rec.Resource != e.schema.Name {
		return ir.Record{}, ir.NewValidationError(ir.FieldError{
			Field:   name,
			Message: fmt.Sprintf("expected %s record, got %s", e.schema.Name, rec.Resource),
		})
	}
	if rec.Resource == "" {
		rec.Resource = e.schema.Name
	}
	return rec, nil
}
