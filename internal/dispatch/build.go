package dispatch

import (
	"sort"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/queryir"
	"github.com/roach88/resgate/internal/request"
)

// getLimit is the row limit of get reads: one more than allowed, so a key
// that is not unique surfaces as MULTIPLE_RESULTS instead of a silent pick.
const getLimit = 2

// build turns a bound call into the request for the entry's target.
func (e *Entry) build(b *Bound) (request.Request, error) {
	base := request.Base{
		Resource:  b.Resource,
		Target:    b.Target,
		Interface: b.Interface,
		Actor:     b.Options.Actor,
		Tenant:    b.Options.Tenant,
		Context:   b.Options.Context,
		Options:   b.Options.Action,
	}

	if e.calc != nil {
		base.Arguments = b.Args.Clone()
		base.Requires = e.calc.Requires
		return &request.Calculation{Base: base, Spec: *e.calc}, nil
	}

	base.Requires = e.action.Requires
	switch e.kind {
	case ir.ActionRead:
		return e.buildRead(base, b)
	case ir.ActionCreate, ir.ActionUpdate:
		return e.buildMutation(base, b)
	default:
		args, err := e.actionArguments(b.Args)
		if err != nil {
			return nil, err
		}
		base.Arguments = args
		return &request.ActionInput{Base: base, Returns: e.action.Returns}, nil
	}
}

func (e *Entry) buildRead(base request.Base, b *Bound) (request.Request, error) {
	args, err := e.actionArguments(b.Args)
	if err != nil {
		return nil, err
	}
	base.Arguments = args

	var preds []queryir.Predicate

	fields := make([]string, 0, len(e.action.Filter))
	for field := range e.action.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if v, ok := args[e.action.Filter[field]]; ok {
			preds = append(preds, queryir.Equals{Field: field, Value: v})
		}
	}

	for _, key := range e.getBy {
		v, ok := b.Args[key]
		if !ok {
			return nil, ir.NewMissingArgument(key)
		}
		preds = append(preds, queryir.Equals{Field: key, Value: v})
	}

	read := &request.Read{
		Base: base,
		Query: queryir.Select{
			From:   e.schema.Name,
			Fields: e.schema.FieldNames(),
			Filter: queryir.Conjoin(preds...),
		},
		Get: e.get,
	}
	if e.get {
		read.Query.Limit = getLimit
	}
	return read, nil
}

// buildMutation splits bound values into accepted attributes, written as the
// mutation input, and action arguments. Attributes without a value are left
// out, so create applies field defaults and update leaves them untouched.
func (e *Entry) buildMutation(base request.Base, b *Bound) (request.Request, error) {
	input := ir.IRObject{}
	rest := ir.IRObject{}
	for name, v := range b.Args {
		if e.action.Accepts(name) {
			input[name] = v
		} else {
			rest[name] = v
		}
	}

	args, err := e.actionArguments(rest)
	if err != nil {
		return nil, err
	}
	base.Arguments = args

	return &request.Mutation{
		Base:   base,
		Action: e.kind,
		Record: b.Record,
		Input:  input,
	}, nil
}

// actionArguments applies argument defaults and checks argument types.
func (e *Entry) actionArguments(bound ir.IRObject) (ir.IRObject, error) {
	args := bound.Clone()
	for _, spec := range e.action.Arguments {
		if _, ok := args[spec.Name]; !ok && spec.HasDefault() {
			args[spec.Name] = spec.Default
		}
	}
	if errs := ir.ValidateArguments(e.action.Arguments, args); len(errs) > 0 {
		return nil, ir.NewValidationError(errs...)
	}
	return args, nil
}
