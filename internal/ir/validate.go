package ir

import "fmt"

// CheckType reports whether v is a value of the named schema type.
// Null is handled by the caller (see AllowNil).
func CheckType(typ string, v IRValue) error {
	got := TypeName(v)
	if got == typ || (typ == "object" && got == "record") {
		return nil
	}
	return fmt.Errorf("expected %s, got %s", typ, got)
}

// ApplyDefaults returns a copy of attrs with schema-level field defaults
// filled in for every field that is absent.
func (s *ResourceSchema) ApplyDefaults(attrs IRObject) IRObject {
	out := attrs.Clone()
	for _, f := range s.Fields {
		if _, ok := out[f.Name]; !ok && f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// ValidateAttributes checks attrs against the field list.
// Returns all errors (not fail-fast) so callers can report every bad field.
//
// When complete is true (create), every field that does not allow nil must be
// present; when false (update), only the supplied fields are checked.
func (s *ResourceSchema) ValidateAttributes(attrs IRObject, complete bool) []FieldError {
	var errs []FieldError

	for _, k := range attrs.SortedKeys() {
		if _, ok := s.Field(k); !ok {
			errs = append(errs, FieldError{Field: k, Message: "unknown attribute"})
		}
	}

	for _, f := range s.Fields {
		v, present := attrs[f.Name]
		if !present {
			if complete && !f.AllowNil {
				errs = append(errs, FieldError{Field: f.Name, Message: "is required"})
			}
			continue
		}
		if IsNull(v) {
			if !f.AllowNil {
				errs = append(errs, FieldError{Field: f.Name, Message: "is required"})
			}
			continue
		}
		if err := CheckType(f.Type, v); err != nil {
			errs = append(errs, FieldError{Field: f.Name, Message: err.Error()})
		}
	}

	return errs
}

// ValidateArguments checks supplied argument values against their specs.
// Absent arguments are not errors here; required-ness is decided by the
// interface definition when binding.
func ValidateArguments(specs []ArgumentSpec, args IRObject) []FieldError {
	var errs []FieldError
	for _, spec := range specs {
		v, ok := args[spec.Name]
		if !ok {
			continue
		}
		if IsNull(v) {
			if !spec.AllowNil {
				errs = append(errs, FieldError{Field: spec.Name, Message: "must not be nil"})
			}
			continue
		}
		if spec.Type == "" {
			continue
		}
		if err := CheckType(spec.Type, v); err != nil {
			errs = append(errs, FieldError{Field: spec.Name, Message: err.Error()})
		}
	}
	return errs
}
