package dispatch

import (
	"context"
	"fmt"

	"github.com/roach88/resgate/internal/ir"
)

// Fetcher loads one record by primary key.
type Fetcher interface {
	Get(ctx context.Context, resource string, key ir.IRValue) (ir.Record, error)
}

// RecordSlots returns the positional indexes that take a whole record:
// the update subject and any _record argument.
func (e *Entry) RecordSlots() []int {
	var slots []int
	offset := 0
	if e.kind == ir.ActionUpdate && e.calc == nil {
		slots = append(slots, 0)
		offset = 1
	}
	for i, arg := range e.args {
		if arg.Name == ir.RecordArgument {
			slots = append(slots, i+offset)
		}
	}
	return slots
}

// ResolveRecords turns loosely typed values in record slots into records.
// Callers that cannot construct records (the CLI, scenario files) pass the
// primary key or the attribute object instead. Keys are fetched through f;
// objects are taken as the record's attributes.
func (e *Entry) ResolveRecords(ctx context.Context, f Fetcher, args []ir.IRValue) ([]ir.IRValue, error) {
	out := append([]ir.IRValue(nil), args...)
	for _, i := range e.RecordSlots() {
		if i >= len(out) {
			continue
		}
		switch v := out[i].(type) {
		case ir.Record:
		case ir.IRObject:
			out[i] = ir.Record{Resource: e.schema.Name, Attributes: v}
		case ir.IRString, ir.IRInt:
			if f == nil {
				return nil, fmt.Errorf("argument %d: no record source to fetch key %v", i, ir.ToGo(v))
			}
			rec, err := f.Get(ctx, e.schema.Name, v)
			if err != nil {
				return nil, err
			}
			out[i] = rec
		}
	}
	return out, nil
}
