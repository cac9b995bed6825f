package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/resgate/internal/calc"
	"github.com/roach88/resgate/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Resource errors (E100-E109)
	ErrNoFields           = "E100" // at least one field required
	ErrPrimaryKey         = "E101" // exactly one primary key field
	ErrInvalidActionKind  = "E102" // unknown action kind
	ErrInvalidDefault     = "E103" // default does not match the declared type
	ErrInvalidFieldType   = "E104" // invalid type string
	ErrDuplicateName      = "E105" // duplicate field or argument name
	ErrFloatTypeForbidden = "E106" // float types not allowed

	// Action errors (E110-E119)
	ErrUnknownField    = "E110" // accept/get_by/filter/fields names an unknown field
	ErrUnknownArgument = "E111" // filter names an unknown argument
	ErrReadOnlyOption  = "E112" // get/get_by/not_found_error on a non-read action
	ErrMissingReturns  = "E113" // generic action or calculation without a return type

	// Calculation errors (E120-E129)
	ErrInvalidExpression = "E120" // expression does not parse
	ErrUnboundVariable   = "E121" // expression references an undeclared name

	// Interface errors (E130-E139)
	ErrUnknownTarget       = "E130" // interface target does not exist
	ErrInvalidInterfaceArg = "E131" // positional argument not accepted by the target
	ErrRecordArgument      = "E132" // _record outside a calculation, or twice
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled resource schema.
// Returns all errors found (does not fail-fast), ordered by field path.
func Validate(schema *ir.ResourceSchema) []ValidationError {
	v := &validator{schema: schema}
	v.validateFields()
	for _, name := range sortedKeys(schema.Actions) {
		v.validateAction(name, schema.Actions[name])
	}
	for _, name := range sortedKeys(schema.Calculations) {
		v.validateCalculation(name, schema.Calculations[name])
	}
	for _, name := range sortedKeys(schema.Interfaces) {
		v.validateInterface(name, schema.Interfaces[name])
	}
	return v.errs
}

type validator struct {
	schema *ir.ResourceSchema
	errs   []ValidationError
}

func (v *validator) add(code, field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) validateFields() {
	if len(v.schema.Fields) == 0 {
		v.add(ErrNoFields, "fields", "at least one field is required")
		return
	}

	seen := make(map[string]bool)
	keys := 0
	for i, f := range v.schema.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if seen[f.Name] {
			v.add(ErrDuplicateName, path+".name", "duplicate field name: %q", f.Name)
		}
		seen[f.Name] = true
		if f.PrimaryKey {
			keys++
		}
		if v.validateType(f.Type, path+".type", f.Name) && f.Default != nil && !ir.IsNull(f.Default) {
			if err := ir.CheckType(f.Type, f.Default); err != nil {
				v.add(ErrInvalidDefault, path+".default", "default for %q: %v", f.Name, err)
			}
		}
	}
	if keys != 1 {
		v.add(ErrPrimaryKey, "fields", "exactly one primary key field is required, found %d", keys)
	}
}

// validateType reports whether typ is a valid type, recording an error if not.
func (v *validator) validateType(typ, path, name string) bool {
	switch {
	case isFloatType(typ):
		v.add(ErrFloatTypeForbidden, path, "float type forbidden for %q, use int instead", name)
		return false
	case !ir.ValidTypes[typ]:
		v.add(ErrInvalidFieldType, path, "invalid type %q for %q", typ, name)
		return false
	}
	return true
}

func (v *validator) validateArguments(args []ir.ArgumentSpec, path string) {
	seen := make(map[string]bool)
	for i, arg := range args {
		argPath := fmt.Sprintf("%s.arguments[%d]", path, i)
		if seen[arg.Name] {
			v.add(ErrDuplicateName, argPath+".name", "duplicate argument name: %q", arg.Name)
		}
		seen[arg.Name] = true
		if v.validateType(arg.Type, argPath+".type", arg.Name) && arg.HasDefault() && !ir.IsNull(arg.Default) {
			if err := ir.CheckType(arg.Type, arg.Default); err != nil {
				v.add(ErrInvalidDefault, argPath+".default", "default for %q: %v", arg.Name, err)
			}
		}
	}
}

func (v *validator) validateFieldRefs(names []string, path string) {
	for i, name := range names {
		if _, ok := v.schema.Field(name); !ok {
			v.add(ErrUnknownField, fmt.Sprintf("%s[%d]", path, i), "unknown field %q", name)
		}
	}
}

func (v *validator) validateAction(name string, action ir.ActionSpec) {
	path := "actions." + name

	if !ir.ValidActionKinds[action.Kind] {
		v.add(ErrInvalidActionKind, path+".kind", "invalid action kind %q, must be read, create, update or generic", action.Kind)
	}
	v.validateArguments(action.Arguments, path)
	v.validateFieldRefs(action.Accept, path+".accept")

	if action.Kind != ir.ActionRead && (action.Get || len(action.GetBy) > 0 || action.NotFoundError != nil || len(action.Filter) > 0) {
		v.add(ErrReadOnlyOption, path, "get, get_by, not_found_error and filter are only valid for read actions")
	}
	v.validateFieldRefs(action.GetBy, path+".get_by")

	for _, field := range sortedKeys(action.Filter) {
		if _, ok := v.schema.Field(field); !ok {
			v.add(ErrUnknownField, path+".filter."+field, "unknown field %q", field)
		}
		if _, ok := action.Argument(action.Filter[field]); !ok {
			v.add(ErrUnknownArgument, path+".filter."+field, "unknown argument %q", action.Filter[field])
		}
	}

	if action.Kind == ir.ActionGeneric {
		if action.Returns == "" {
			v.add(ErrMissingReturns, path+".returns", "generic action %q must declare a return type", name)
		} else {
			v.validateType(action.Returns, path+".returns", name)
		}
	}
}

func (v *validator) validateCalculation(name string, spec ir.CalculationSpec) {
	path := "calculations." + name

	v.validateArguments(spec.Arguments, path)
	v.validateFieldRefs(spec.Fields, path+".fields")
	if spec.Returns == "" {
		v.add(ErrMissingReturns, path+".returns", "calculation %q must declare a return type", name)
	} else {
		v.validateType(spec.Returns, path+".returns", name)
	}

	expr, err := calc.Parse(name, spec.Expr)
	if err != nil {
		v.add(ErrInvalidExpression, path+".expr", "%v", err)
		return
	}
	for _, variable := range calc.Variables(expr) {
		if _, ok := spec.Argument(variable); ok || spec.References(variable) {
			continue
		}
		v.add(ErrUnboundVariable, path+".expr", "%q is neither an argument nor a referenced field", variable)
	}
}

func (v *validator) validateInterface(name string, def ir.InterfaceDefinition) {
	path := "interfaces." + name

	valid := make(map[string]bool)
	if def.Calculation {
		spec, ok := v.schema.Calculations[def.Target]
		if !ok {
			v.add(ErrUnknownTarget, path+".calculation", "unknown calculation %q", def.Target)
			return
		}
		for _, a := range spec.Arguments {
			valid[a.Name] = true
		}
		for _, f := range spec.Fields {
			valid[f] = true
		}
	} else {
		action, ok := v.schema.Actions[def.Target]
		if !ok {
			v.add(ErrUnknownTarget, path+".action", "unknown action %q", def.Target)
			return
		}
		for _, a := range action.Arguments {
			valid[a.Name] = true
		}
		for _, f := range action.Accept {
			valid[f] = true
		}
		for _, f := range action.GetBy {
			valid[f] = true
		}
		if action.Kind != ir.ActionRead && (def.Get != nil || len(def.GetBy) > 0 || def.NotFoundError != nil) {
			v.add(ErrReadOnlyOption, path, "get, get_by and not_found_error are only valid for read actions")
		}
	}

	v.validateFieldRefs(def.GetBy, path+".get_by")
	for _, f := range def.GetBy {
		valid[f] = true
	}

	records := 0
	seen := make(map[string]bool)
	for i, arg := range def.Args {
		argPath := fmt.Sprintf("%s.args[%d]", path, i)
		if arg.Name == ir.RecordArgument {
			records++
			if !def.Calculation {
				v.add(ErrRecordArgument, argPath, "%s is only valid for calculations", ir.RecordArgument)
			} else if records > 1 {
				v.add(ErrRecordArgument, argPath, "%s may appear once", ir.RecordArgument)
			}
			continue
		}
		if seen[arg.Name] {
			v.add(ErrDuplicateName, argPath, "duplicate argument %q", arg.Name)
		}
		seen[arg.Name] = true
		if !valid[arg.Name] {
			v.add(ErrInvalidInterfaceArg, argPath, "%q is not an argument of %s", arg.Name, def.Target)
		}
	}
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	switch t {
	case "float", "float32", "float64", "number", "double":
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
