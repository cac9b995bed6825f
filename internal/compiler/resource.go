package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/resgate/internal/ir"
)

// CompileResource parses a CUE value into a ResourceSchema.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the resource struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`resource: User: { fields: { ... } }`)
//	schema, err := CompileResource(v.LookupPath(cue.ParsePath("resource.User")))
//
// Fields may be written as a bare CUE type (`age: int`) or as a struct
// (`first_name: { type: "string", default: "fred" }`). Declaration order is kept.
func CompileResource(v cue.Value) (*ir.ResourceSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &ir.ResourceSchema{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		schema.Name = labels[len(labels)-1].String()
	}

	var err error
	schema.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	if len(schema.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}

	if schema.Actions, err = parseActions(v); err != nil {
		return nil, err
	}
	if schema.Calculations, err = parseCalculations(v); err != nil {
		return nil, err
	}
	if schema.Interfaces, err = parseInterfaces(v); err != nil {
		return nil, err
	}

	return schema, nil
}

// parseFields extracts the field list in declaration order.
func parseFields(v cue.Value) ([]ir.FieldSpec, error) {
	var fields []ir.FieldSpec

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return fields, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()
		field := ir.FieldSpec{Name: name}

		if !hasPath(fv, "type") {
			field.Type, err = extractTypeName(fv)
			if err != nil {
				return nil, err
			}
			fields = append(fields, field)
			continue
		}

		if field.Type, err = lookupType(fv, "fields."+name); err != nil {
			return nil, err
		}
		if field.Default, err = lookupValue(fv, "default"); err != nil {
			return nil, err
		}
		if field.AllowNil, err = lookupBool(fv, "allow_nil"); err != nil {
			return nil, err
		}
		if field.PrimaryKey, err = lookupBool(fv, "primary_key"); err != nil {
			return nil, err
		}
		if field.Public, err = lookupBool(fv, "public"); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}

	return fields, nil
}

// parseActions extracts action definitions.
func parseActions(v cue.Value) (map[string]ir.ActionSpec, error) {
	actions := make(map[string]ir.ActionSpec)

	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		return actions, nil
	}

	iter, err := actionsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		av := iter.Value()
		action := ir.ActionSpec{Name: name}

		kind, err := lookupString(av, "kind")
		if err != nil {
			return nil, err
		}
		if kind == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("actions.%s.kind", name),
				Message: "action kind is required",
				Pos:     av.Pos(),
			}
		}
		action.Kind = ir.ActionKind(kind)

		if action.Arguments, err = parseArguments(av, "actions."+name); err != nil {
			return nil, err
		}
		if action.Accept, err = lookupStrings(av, "accept"); err != nil {
			return nil, err
		}
		if action.Requires, err = lookupStrings(av, "requires"); err != nil {
			return nil, err
		}
		if action.Get, err = lookupBool(av, "get"); err != nil {
			return nil, err
		}
		if action.GetBy, err = lookupStrings(av, "get_by"); err != nil {
			return nil, err
		}
		if action.NotFoundError, err = lookupOptionalBool(av, "not_found_error"); err != nil {
			return nil, err
		}
		if action.Filter, err = lookupStringMap(av, "filter"); err != nil {
			return nil, err
		}
		if hasPath(av, "returns") {
			if action.Returns, err = lookupType(av, "actions."+name+".returns", "returns"); err != nil {
				return nil, err
			}
		}

		actions[name] = action
	}

	return actions, nil
}

// parseCalculations extracts calculation definitions.
func parseCalculations(v cue.Value) (map[string]ir.CalculationSpec, error) {
	calcsVal := v.LookupPath(cue.ParsePath("calculations"))
	if !calcsVal.Exists() {
		return nil, nil
	}

	iter, err := calcsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	calcs := make(map[string]ir.CalculationSpec)
	for iter.Next() {
		name := iter.Label()
		cv := iter.Value()
		spec := ir.CalculationSpec{Name: name, Calculation: name}

		if hasPath(cv, "calculation") {
			if spec.Calculation, err = lookupString(cv, "calculation"); err != nil {
				return nil, err
			}
		}
		if spec.Expr, err = lookupString(cv, "expr"); err != nil {
			return nil, err
		}
		if spec.Expr == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("calculations.%s.expr", name),
				Message: "calculation expression is required",
				Pos:     cv.Pos(),
			}
		}
		if spec.Returns, err = lookupType(cv, "calculations."+name+".returns", "returns"); err != nil {
			return nil, err
		}
		if spec.Fields, err = lookupStrings(cv, "fields"); err != nil {
			return nil, err
		}
		if spec.Arguments, err = parseArguments(cv, "calculations."+name); err != nil {
			return nil, err
		}
		if spec.Requires, err = lookupStrings(cv, "requires"); err != nil {
			return nil, err
		}

		calcs[name] = spec
	}

	return calcs, nil
}

// parseArguments extracts an ordered argument list. Like fields, an argument
// is a bare CUE type or a struct with type, default and allow_nil.
func parseArguments(v cue.Value, path string) ([]ir.ArgumentSpec, error) {
	argsVal := v.LookupPath(cue.ParsePath("arguments"))
	if !argsVal.Exists() {
		return nil, nil
	}

	iter, err := argsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var args []ir.ArgumentSpec
	for iter.Next() {
		av := iter.Value()
		arg := ir.ArgumentSpec{Name: iter.Label()}

		if !hasPath(av, "type") {
			if arg.Type, err = extractTypeName(av); err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}

		if arg.Type, err = lookupType(av, path+".arguments."+arg.Name); err != nil {
			return nil, err
		}
		if arg.Default, err = lookupValue(av, "default"); err != nil {
			return nil, err
		}
		if arg.AllowNil, err = lookupBool(av, "allow_nil"); err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// parseInterfaces extracts interface definitions.
//
//	get_user:  { action: "read", get_by: ["id"] }
//	full_name: { calculation: "full_name", args: ["first_name", {optional: "separator"}] }
func parseInterfaces(v cue.Value) (map[string]ir.InterfaceDefinition, error) {
	ifacesVal := v.LookupPath(cue.ParsePath("interfaces"))
	if !ifacesVal.Exists() {
		return nil, nil
	}

	iter, err := ifacesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	defs := make(map[string]ir.InterfaceDefinition)
	for iter.Next() {
		name := iter.Label()
		dv := iter.Value()
		def := ir.InterfaceDefinition{Name: name}

		action, err := lookupString(dv, "action")
		if err != nil {
			return nil, err
		}
		calculation, err := lookupString(dv, "calculation")
		if err != nil {
			return nil, err
		}
		switch {
		case action != "" && calculation != "":
			return nil, &CompileError{
				Field:   fmt.Sprintf("interfaces.%s", name),
				Message: "interface targets either an action or a calculation, not both",
				Pos:     dv.Pos(),
			}
		case action != "":
			def.Target = action
		case calculation != "":
			def.Target = calculation
			def.Calculation = true
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("interfaces.%s", name),
				Message: "interface target is required (action or calculation)",
				Pos:     dv.Pos(),
			}
		}

		if def.Args, err = parseInterfaceArgs(dv, name); err != nil {
			return nil, err
		}
		if def.Get, err = lookupOptionalBool(dv, "get"); err != nil {
			return nil, err
		}
		if def.GetBy, err = lookupStrings(dv, "get_by"); err != nil {
			return nil, err
		}
		if def.NotFoundError, err = lookupOptionalBool(dv, "not_found_error"); err != nil {
			return nil, err
		}

		defs[name] = def
	}
	return defs, nil
}

// parseInterfaceArgs reads the positional list: a string is a required
// argument, {optional: "name"} an optional one.
func parseInterfaceArgs(v cue.Value, iface string) ([]ir.InterfaceArg, error) {
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return nil, nil
	}

	iter, err := argsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var args []ir.InterfaceArg
	for iter.Next() {
		av := iter.Value()
		if name, err := av.String(); err == nil {
			args = append(args, ir.InterfaceArg{Name: name})
			continue
		}
		name, err := lookupString(av, "optional")
		if err != nil || name == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("interfaces.%s.args", iface),
				Message: `argument must be a name or {optional: "name"}`,
				Pos:     av.Pos(),
			}
		}
		args = append(args, ir.InterfaceArg{Name: name, Optional: true})
	}
	return args, nil
}

func hasPath(v cue.Value, path string) bool {
	return v.LookupPath(cue.ParsePath(path)).Exists()
}

func lookupString(v cue.Value, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func lookupBool(v cue.Value, path string) (bool, error) {
	b, err := lookupOptionalBool(v, path)
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

func lookupOptionalBool(v cue.Value, path string) (*bool, error) {
	bv := v.LookupPath(cue.ParsePath(path))
	if !bv.Exists() {
		return nil, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &b, nil
}

func lookupStrings(v cue.Value, path string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func lookupStringMap(v cue.Value, path string) (map[string]string, error) {
	mv := v.LookupPath(cue.ParsePath(path))
	if !mv.Exists() {
		return nil, nil
	}
	iter, err := mv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[iter.Label()] = s
	}
	return out, nil
}

// lookupType reads a type name at key (default "type") and checks it.
func lookupType(v cue.Value, field string, key ...string) (string, error) {
	path := "type"
	if len(key) > 0 {
		path = key[0]
	}
	typ, err := lookupString(v, path)
	if err != nil {
		return "", err
	}
	if typ == "float" || typ == "number" {
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("%s: float types are forbidden - use int instead", field),
			Pos:     v.Pos(),
		}
	}
	if !ir.ValidTypes[typ] {
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("%s: invalid type %q (valid: array, bool, int, object, string)", field, typ),
			Pos:     v.Pos(),
		}
	}
	return typ, nil
}

// lookupValue converts the concrete value at path, nil if absent.
func lookupValue(v cue.Value, path string) (ir.IRValue, error) {
	dv := v.LookupPath(cue.ParsePath(path))
	if !dv.Exists() {
		return nil, nil
	}
	return toIRValue(dv)
}

// toIRValue converts a concrete CUE value to an IR value.
func toIRValue(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := toIRValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := toIRValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "type",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// extractTypeName converts a bare CUE type to an IR type string.
// Floats are forbidden.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: strings.TrimSpace(first.Error()),
			Pos:     positions[0],
		}
	}

	return err
}
