package dispatch

import (
	"context"
	"fmt"

	"github.com/roach88/resgate/internal/authz"
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
)

// Entry is the entry point family generated from one interface definition.
// Every form shares Bind and the builder and differs only in what happens
// to the built request.
type Entry struct {
	d      *Dispatcher
	schema *ir.ResourceSchema
	name   string
	def    ir.InterfaceDefinition

	// Exactly one of action and calc is set.
	action *ir.ActionSpec
	calc   *ir.CalculationSpec
	kind   ir.ActionKind

	// args is the positional argument list, get-by keys included.
	args  []ir.InterfaceArg
	get   bool
	getBy []string
}

func newEntry(d *Dispatcher, schema *ir.ResourceSchema, def ir.InterfaceDefinition) (*Entry, error) {
	e := &Entry{
		d:      d,
		schema: schema,
		name:   def.Name,
		def:    def,
		args:   append([]ir.InterfaceArg(nil), def.Args...),
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("interface %s.%s: %s", schema.Name, def.Name, fmt.Sprintf(format, args...))
	}

	var valid map[string]bool
	if def.Calculation {
		spec, ok := schema.Calculations[def.Target]
		if !ok {
			return nil, fail("unknown calculation %q", def.Target)
		}
		if spec.Name == "" {
			spec.Name = def.Target
		}
		if spec.Calculation == "" {
			spec.Calculation = spec.Name
		}
		e.calc = &spec
		valid = map[string]bool{ir.RecordArgument: true}
		for _, a := range spec.Arguments {
			valid[a.Name] = true
		}
		for _, f := range spec.Fields {
			valid[f] = true
		}
	} else {
		spec, ok := schema.Actions[def.Target]
		if !ok {
			return nil, fail("unknown action %q", def.Target)
		}
		if spec.Name == "" {
			spec.Name = def.Target
		}
		e.action = &spec
		e.kind = spec.Kind
		valid = make(map[string]bool)
		for _, a := range spec.Arguments {
			valid[a.Name] = true
		}
		for _, name := range spec.Accept {
			valid[name] = true
		}
	}

	if len(def.GetBy) > 0 || def.Get != nil || def.NotFoundError != nil {
		if e.kind != ir.ActionRead {
			return nil, fail("get, get_by and not_found_error are only valid for read actions")
		}
	}
	if e.kind == ir.ActionRead {
		e.resolveGet()
		for _, key := range e.getBy {
			if _, ok := schema.Field(key); !ok {
				return nil, fail("get_by field %q is not a field of %s", key, schema.Name)
			}
			valid[key] = true
		}
		for _, argName := range e.action.Filter {
			valid[argName] = true
		}
	}

	seen := make(map[string]bool, len(e.args))
	for _, arg := range e.args {
		if arg.Name == ir.RecordArgument && e.calc == nil {
			return nil, fail("%s is only valid for calculations", ir.RecordArgument)
		}
		if !valid[arg.Name] {
			return nil, fail("argument %q is not an argument of %s", arg.Name, def.Target)
		}
		if seen[arg.Name] {
			return nil, fail("duplicate argument %q", arg.Name)
		}
		seen[arg.Name] = true
	}

	for _, key := range e.getBy {
		if !seen[key] {
			e.args = append(e.args, ir.InterfaceArg{Name: key})
			seen[key] = true
		}
	}

	return e, nil
}

// resolveGet decides whether a read entry is a get and by which key:
// definition get_by, then action get_by, then the primary key.
func (e *Entry) resolveGet() {
	e.getBy = e.def.GetBy
	if len(e.getBy) == 0 {
		e.getBy = e.action.GetBy
	}

	switch {
	case e.def.Get != nil:
		e.get = *e.def.Get
	default:
		e.get = e.action.Get
	}
	if len(e.getBy) > 0 {
		e.get = true
	}
	if e.get && len(e.getBy) == 0 {
		e.getBy = e.schema.PrimaryKey()
	}
}

func (e *Entry) actionNotFoundError() *bool {
	if e.action == nil {
		return nil
	}
	return e.action.NotFoundError
}

// Name returns the definition name.
func (e *Entry) Name() string { return e.name }

// Resource returns the resource name.
func (e *Entry) Resource() string { return e.schema.Name }

// Definition returns the interface definition the entry was generated from.
func (e *Entry) Definition() ir.InterfaceDefinition { return e.def }

// Args returns the positional arguments, in binding order.
func (e *Entry) Args() []ir.InterfaceArg {
	return append([]ir.InterfaceArg(nil), e.args...)
}

// Kind returns the kind of request the entry builds.
func (e *Entry) Kind() request.Kind {
	switch {
	case e.calc != nil:
		return request.KindCalculation
	case e.kind == ir.ActionRead:
		return request.KindRead
	case e.kind == ir.ActionCreate:
		return request.KindCreate
	case e.kind == ir.ActionUpdate:
		return request.KindUpdate
	default:
		return request.KindAction
	}
}

// GetBy returns the key fields of a get read, nil for anything else.
func (e *Entry) GetBy() []string {
	if !e.get {
		return nil
	}
	return append([]string(nil), e.getBy...)
}

// prepare is the pipeline shared by every form.
func (e *Entry) prepare(args []ir.IRValue, opts Options) (request.Request, error) {
	bound, err := e.Bind(args, opts)
	if err != nil {
		return nil, err
	}
	return e.build(bound)
}

// Result runs the entry and returns the tagged result.
func (e *Entry) Result(ctx context.Context, args []ir.IRValue, opts Options) Result {
	req, err := e.prepare(args, opts)
	if err != nil {
		return Errored(err)
	}
	return e.d.run(ctx, req, opts, notFoundError(opts.NotFoundError, e.def.NotFoundError, e.actionNotFoundError()))
}

// Call runs the entry and returns the value, or the failure as an error.
func (e *Entry) Call(ctx context.Context, args []ir.IRValue, opts Options) (ir.IRValue, error) {
	return e.Result(ctx, args, opts).Unwrap()
}

// Build returns the request the entry would run, without authorizing or
// executing it. Only read, create and update entries have a builder form.
func (e *Entry) Build(ctx context.Context, args []ir.IRValue, opts Options) (request.Request, error) {
	if e.calc != nil || e.kind == ir.ActionGeneric {
		return nil, ErrNoBuilder
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.prepare(args, opts)
}

// Can runs only the authorization gate for the call.
// Returns (true, nil) when allowed, (false, nil) when denied and
// (false, err) when the call cannot be built or the check fails.
func (e *Entry) Can(ctx context.Context, actor *ir.Actor, args []ir.IRValue, opts Options) (bool, error) {
	opts.Actor = actor
	req, err := e.prepare(args, opts)
	if err != nil {
		return false, err
	}
	return authz.Check(ctx, e.d.authorizer, req, actor)
}

// Allowed is the boolean form of Can. It never fails.
func (e *Entry) Allowed(ctx context.Context, actor *ir.Actor, args []ir.IRValue, opts Options) bool {
	ok, _ := e.Can(ctx, actor, args, opts)
	return ok
}
