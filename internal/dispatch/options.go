package dispatch

import (
	"errors"
	"fmt"

	"github.com/roach88/resgate/internal/ir"
)

// Recognized call-level option keys.
const (
	OptionActor         = "actor"
	OptionNotFoundError = "not_found_error?"
	OptionTenant        = "tenant"
	OptionAuthorize     = "authorize?"
	OptionContext       = "context"
)

// Options are the call-level controls of one invocation.
type Options struct {
	// Actor is the caller; nil for anonymous calls.
	Actor *ir.Actor

	// NotFoundError overrides whether a get that matches nothing fails.
	// nil defers to the interface definition, then the read action, then true.
	NotFoundError *bool

	// Tenant scopes the request.
	Tenant string

	// Authorize turns the authorization gate off when set to false.
	Authorize *bool

	// Context is opaque request context handed to the request.
	Context ir.IRObject

	// Action holds every unrecognized option; it reaches the request verbatim.
	Action ir.IRObject
}

// Bool returns a pointer to b, for the optional flags of Options.
func Bool(b bool) *bool {
	return &b
}

// ParseOptions splits a free-form option map into the recognized controls
// and the action-level passthrough.
func ParseOptions(raw ir.IRObject) (Options, error) {
	var opts Options
	var errs []ir.FieldError

	for _, key := range raw.SortedKeys() {
		v := raw[key]
		switch key {
		case OptionActor:
			actor, err := parseActor(v)
			if err != nil {
				errs = append(errs, ir.FieldError{Field: key, Message: err.Error()})
				continue
			}
			opts.Actor = actor
		case OptionNotFoundError, OptionAuthorize:
			b, ok := v.(ir.IRBool)
			if !ok {
				errs = append(errs, ir.FieldError{Field: key, Message: fmt.Sprintf("expected bool, got %s", ir.TypeName(v))})
				continue
			}
			if key == OptionNotFoundError {
				opts.NotFoundError = Bool(bool(b))
			} else {
				opts.Authorize = Bool(bool(b))
			}
		case OptionTenant:
			s, ok := v.(ir.IRString)
			if !ok {
				errs = append(errs, ir.FieldError{Field: key, Message: fmt.Sprintf("expected string, got %s", ir.TypeName(v))})
				continue
			}
			opts.Tenant = string(s)
		case OptionContext:
			obj, ok := v.(ir.IRObject)
			if !ok {
				errs = append(errs, ir.FieldError{Field: key, Message: fmt.Sprintf("expected object, got %s", ir.TypeName(v))})
				continue
			}
			opts.Context = obj
		default:
			if opts.Action == nil {
				opts.Action = ir.IRObject{}
			}
			opts.Action[key] = v
		}
	}

	if len(errs) > 0 {
		return Options{}, ir.NewValidationError(errs...)
	}
	return opts, nil
}

// parseActor accepts an actor id or an object with id, tenant_id and permissions.
func parseActor(v ir.IRValue) (*ir.Actor, error) {
	switch a := v.(type) {
	case ir.IRNull:
		return nil, nil
	case ir.IRString:
		return &ir.Actor{ID: string(a)}, nil
	case ir.IRObject:
		actor := &ir.Actor{}
		if id, ok := a["id"].(ir.IRString); ok {
			actor.ID = string(id)
		} else {
			return nil, errors.New("actor id must be a string")
		}
		if tenant, ok := a["tenant_id"].(ir.IRString); ok {
			actor.TenantID = string(tenant)
		}
		if perms, ok := a["permissions"].(ir.IRArray); ok {
			for _, p := range perms {
				s, ok := p.(ir.IRString)
				if !ok {
					return nil, errors.New("permissions must be strings")
				}
				actor.Permissions = append(actor.Permissions, string(s))
			}
		}
		return actor, nil
	default:
		return nil, fmt.Errorf("expected string or object, got %s", ir.TypeName(v))
	}
}

// notFoundError resolves the not_found_error? flag: the call option wins,
// then the definition, then the read action, then true.
func notFoundError(call, definition, action *bool) bool {
	for _, flag := range []*bool{call, definition, action} {
		if flag != nil {
			return *flag
		}
	}
	return true
}

// authorize reports whether the authorization gate runs for the call.
func (o Options) authorize() bool {
	return o.Authorize == nil || *o.Authorize
}
