package ir

// ActionKind is the kind of a resource action.
type ActionKind string

const (
	ActionRead    ActionKind = "read"
	ActionCreate  ActionKind = "create"
	ActionUpdate  ActionKind = "update"
	ActionGeneric ActionKind = "generic"
)

// ValidActionKinds defines allowed action kinds.
var ValidActionKinds = map[ActionKind]bool{
	ActionRead:    true,
	ActionCreate:  true,
	ActionUpdate:  true,
	ActionGeneric: true,
}

// ValidTypes defines the allowed type strings for fields, arguments and returns.
// NO "float" - floats are forbidden (they break canonical identity).
var ValidTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
}

// RecordArgument is the sentinel interface argument that consumes a whole
// record and yields every field a calculation references.
const RecordArgument = "_record"

// ResourceSchema is the static description of a resource.
// Built once at startup; read-only afterwards.
type ResourceSchema struct {
	Name         string                         `json:"name"`
	Fields       []FieldSpec                    `json:"fields"`
	Actions      map[string]ActionSpec          `json:"actions"`
	Calculations map[string]CalculationSpec     `json:"calculations,omitempty"`
	Interfaces   map[string]InterfaceDefinition `json:"interfaces,omitempty"`
}

// FieldSpec describes one attribute of a resource.
type FieldSpec struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Default    IRValue `json:"default,omitempty"` // nil = no default
	AllowNil   bool    `json:"allow_nil,omitempty"`
	PrimaryKey bool    `json:"primary_key,omitempty"`
	Public     bool    `json:"public,omitempty"`
}

// ActionSpec describes a read, create, update or generic action.
type ActionSpec struct {
	Name      string         `json:"name"`
	Kind      ActionKind     `json:"kind"`
	Arguments []ArgumentSpec `json:"arguments,omitempty"`
	Accept    []string       `json:"accept,omitempty"`   // create/update: settable attributes
	Requires  []string       `json:"requires,omitempty"` // permissions (authz)

	// Read actions only.
	Get           bool              `json:"get,omitempty"`
	GetBy         []string          `json:"get_by,omitempty"`
	NotFoundError *bool             `json:"not_found_error,omitempty"`
	Filter        map[string]string `json:"filter,omitempty"` // field -> argument name

	// Generic actions only. The handler is registered in Go code.
	Returns string `json:"returns,omitempty"`
}

// CalculationSpec describes a calculation evaluated against bound arguments.
type CalculationSpec struct {
	Name        string         `json:"name"`
	Calculation string         `json:"calculation"` // underlying name, defaults to Name
	Expr        string         `json:"expr"`
	Returns     string         `json:"returns"`
	Fields      []string       `json:"fields,omitempty"` // record fields the expression references
	Arguments   []ArgumentSpec `json:"arguments,omitempty"`
	Requires    []string       `json:"requires,omitempty"`
}

// ArgumentSpec describes a named action or calculation argument.
// An argument without Default that is not supplied is left out of the request
// entirely; it is never bound to null.
type ArgumentSpec struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	AllowNil bool    `json:"allow_nil,omitempty"`
	Default  IRValue `json:"default,omitempty"`
}

// HasDefault reports whether the argument declares a default value.
func (a ArgumentSpec) HasDefault() bool {
	return a.Default != nil
}

// InterfaceDefinition declares one generated entry point family.
type InterfaceDefinition struct {
	Name          string         `json:"name"`
	Target        string         `json:"target"`
	Calculation   bool           `json:"calculation,omitempty"`
	Args          []InterfaceArg `json:"args,omitempty"`
	Get           *bool          `json:"get,omitempty"`
	GetBy         []string       `json:"get_by,omitempty"`
	NotFoundError *bool          `json:"not_found_error,omitempty"`
}

// InterfaceArg is one positional argument of an interface definition.
type InterfaceArg struct {
	Name     string `json:"name"`
	Optional bool   `json:"optional,omitempty"`
}

// Actor is the caller on whose behalf a request runs.
type Actor struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"tenant_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Field returns the field with the given name.
func (s *ResourceSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// PrimaryKey returns the names of the primary-key fields in declaration order.
func (s *ResourceSchema) PrimaryKey() []string {
	var keys []string
	for _, f := range s.Fields {
		if f.PrimaryKey {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// FieldNames returns all field names in declaration order.
func (s *ResourceSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Argument returns the argument spec with the given name.
func (a *ActionSpec) Argument(name string) (ArgumentSpec, bool) {
	return findArgument(a.Arguments, name)
}

// Accepts reports whether the action accepts the attribute as input.
func (a *ActionSpec) Accepts(name string) bool {
	for _, n := range a.Accept {
		if n == name {
			return true
		}
	}
	return false
}

// Argument returns the argument spec with the given name.
func (c *CalculationSpec) Argument(name string) (ArgumentSpec, bool) {
	return findArgument(c.Arguments, name)
}

// References reports whether the calculation references the record field.
func (c *CalculationSpec) References(field string) bool {
	for _, f := range c.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func findArgument(args []ArgumentSpec, name string) (ArgumentSpec, bool) {
	for _, a := range args {
		if a.Name == name {
			return a, true
		}
	}
	return ArgumentSpec{}, false
}
