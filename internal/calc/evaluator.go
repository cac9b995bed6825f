package calc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/roach88/resgate/internal/ir"
)

// Evaluator evaluates calculation expressions.
// Parsed expressions are cached; an Evaluator is safe for concurrent use.
type Evaluator struct {
	functions map[string]function.Function
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]hcl.Expression
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFunction registers an extra function callable from expressions.
func WithFunction(name string, fn function.Function) Option {
	return func(e *Evaluator) {
		e.functions[name] = fn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an evaluator with the standard function set.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		functions: Functions(),
		logger:    slog.Default(),
		cache:     make(map[string]hcl.Expression),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Functions returns the functions available to every expression.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"upper":     stdlib.UpperFunc,
		"lower":     stdlib.LowerFunc,
		"trimspace": stdlib.TrimSpaceFunc,
		"substr":    stdlib.SubstrFunc,
		"strlen":    stdlib.StrlenFunc,
		"join":      stdlib.JoinFunc,
		"split":     stdlib.SplitFunc,
		"concat":    stdlib.ConcatFunc,
		"length":    stdlib.LengthFunc,
		"coalesce":  stdlib.CoalesceFunc,
		"format":    stdlib.FormatFunc,
		"min":       stdlib.MinFunc,
		"max":       stdlib.MaxFunc,
	}
}

// Parse parses a calculation expression as an HCL template.
func Parse(name, expr string) (hcl.Expression, error) {
	parsed, diags := hclsyntax.ParseTemplate([]byte(expr), name, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", name, diags.Error())
	}
	return parsed, nil
}

// Variables returns the root names an expression references, sorted and
// without duplicates.
func Variables(expr hcl.Expression) []string {
	seen := make(map[string]bool)
	var names []string
	for _, traversal := range expr.Variables() {
		root := traversal.RootName()
		if !seen[root] {
			seen[root] = true
			names = append(names, root)
		}
	}
	sort.Strings(names)
	return names
}

// Evaluate runs the calculation against the bound arguments.
//
// Argument defaults are applied first. Missing required arguments and
// referenced record fields are reported as a validation failure before any
// evaluation happens. A null record field may be handled by the expression
// itself; when evaluation fails with one present, the failure is a
// validation failure naming the null fields. Other evaluation failures are
// runtime errors.
func (e *Evaluator) Evaluate(ctx context.Context, spec ir.CalculationSpec, args ir.IRObject) (ir.IRValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vars, err := e.bindVariables(spec, args)
	if err != nil {
		return nil, err
	}

	expr, err := e.parse(spec)
	if err != nil {
		return nil, ir.NewRuntimeError(err)
	}

	evalCtx := &hcl.EvalContext{
		Variables: vars,
		Functions: e.functions,
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		if nulls := nullFields(spec, vars); len(nulls) > 0 {
			return nil, ir.NewValidationError(nulls...)
		}
		return nil, ir.NewRuntimeError(fmt.Errorf("evaluate %s: %s", spec.Name, diags.Error()))
	}

	if want, ok := scalarType(spec.Returns); ok && !val.IsNull() {
		converted, err := convert.Convert(val, want)
		if err != nil {
			return nil, ir.NewRuntimeError(fmt.Errorf("calculation %s returns %s: %w", spec.Name, spec.Returns, err))
		}
		val = converted
	}

	result, err := FromCty(val)
	if err != nil {
		return nil, ir.NewRuntimeError(fmt.Errorf("calculation %s: %w", spec.Name, err))
	}

	e.logger.Debug("calculation evaluated",
		"calculation", spec.Name,
		"type", ir.TypeName(result),
	)
	return result, nil
}

func (e *Evaluator) bindVariables(spec ir.CalculationSpec, args ir.IRObject) (map[string]cty.Value, error) {
	bound := args.Clone()
	var missing []ir.FieldError

	for _, arg := range spec.Arguments {
		if _, ok := bound[arg.Name]; ok {
			continue
		}
		switch {
		case arg.HasDefault():
			bound[arg.Name] = arg.Default
		case arg.AllowNil:
			bound[arg.Name] = ir.IRNull{}
		default:
			missing = append(missing, ir.FieldError{Field: arg.Name, Message: "is required"})
		}
	}
	for _, field := range spec.Fields {
		if _, ok := bound[field]; !ok {
			missing = append(missing, ir.FieldError{Field: field, Message: "is required"})
		}
	}
	if len(missing) > 0 {
		return nil, ir.NewValidationError(missing...)
	}

	if errs := ir.ValidateArguments(spec.Arguments, bound); len(errs) > 0 {
		return nil, ir.NewValidationError(errs...)
	}

	vars := make(map[string]cty.Value, len(bound))
	for name, v := range bound {
		if ir.IsNull(v) {
			// Typed nulls let functions such as coalesce unify argument types.
			arg, _ := spec.Argument(name)
			if ty, ok := scalarType(arg.Type); ok {
				vars[name] = cty.NullVal(ty)
				continue
			}
		}
		c, err := ToCty(v)
		if err != nil {
			return nil, ir.NewValidationError(ir.FieldError{Field: name, Message: err.Error()})
		}
		vars[name] = c
	}
	return vars, nil
}

// nullFields lists the referenced record fields bound to null.
func nullFields(spec ir.CalculationSpec, vars map[string]cty.Value) []ir.FieldError {
	var out []ir.FieldError
	for _, field := range spec.Fields {
		if v, ok := vars[field]; ok && v.IsNull() {
			out = append(out, ir.FieldError{Field: field, Message: "is null"})
		}
	}
	return out
}

func (e *Evaluator) parse(spec ir.CalculationSpec) (hcl.Expression, error) {
	e.mu.RLock()
	expr, ok := e.cache[spec.Expr]
	e.mu.RUnlock()
	if ok {
		return expr, nil
	}

	expr, err := Parse(spec.Name, spec.Expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[spec.Expr] = expr
	e.mu.Unlock()
	return expr, nil
}

// scalarType maps a scalar schema type to the cty type results are converted to.
// Collection types are left as evaluated.
func scalarType(typ string) (cty.Type, bool) {
	switch typ {
	case "string":
		return cty.String, true
	case "int":
		return cty.Number, true
	case "bool":
		return cty.Bool, true
	default:
		return cty.NilType, false
	}
}
