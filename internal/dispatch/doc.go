// Package dispatch turns interface definitions into callable entry points.
//
// Every definition goes through one pipeline: the binder maps positional
// values onto named arguments, the builder turns them into a request, the
// authorization gate checks the request and the engine runs it. The entry
// point forms (Call, Result, Build, Can, Allowed) differ only in where they
// stop and how they shape the outcome.
//
//	d, err := dispatch.New(schemas, dispatch.WithBackend(st), dispatch.WithEvaluator(calc.New()))
//	entry, err := d.Entry("User", "get_user")
//	user, err := entry.Call(ctx, []ir.IRValue{ir.IRString(id)}, dispatch.Options{})
package dispatch
