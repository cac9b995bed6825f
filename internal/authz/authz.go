package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
)

// Effect is the outcome category of an authorization decision.
type Effect int

const (
	// Deny is the zero value so an uninitialized Decision never allows.
	Deny Effect = iota
	Allow
	Error
)

func (e Effect) String() string {
	switch e {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// Decision is the result of authorizing one request.
type Decision struct {
	Effect Effect
	Reason string
	Err    error
}

// Allowed returns an allow decision.
func Allowed() Decision { return Decision{Effect: Allow} }

// Denied returns a deny decision with a reason.
func Denied(format string, args ...any) Decision {
	return Decision{Effect: Deny, Reason: fmt.Sprintf(format, args...)}
}

// Failed returns an error decision.
func Failed(err error) Decision {
	return Decision{Effect: Error, Reason: "authorization check failed", Err: err}
}

// Authorizer decides whether an actor may run a request.
// Implementations must not execute the request or mutate it.
type Authorizer interface {
	Authorize(ctx context.Context, req request.Request, actor *ir.Actor) Decision
}

// Func adapts a function to the Authorizer interface.
type Func func(ctx context.Context, req request.Request, actor *ir.Actor) Decision

// Authorize implements Authorizer.
func (f Func) Authorize(ctx context.Context, req request.Request, actor *ir.Actor) Decision {
	return f(ctx, req, actor)
}

// AllowAll allows every request.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(context.Context, request.Request, *ir.Actor) Decision {
	return Allowed()
}

// All combines authorizers; the first decision that is not Allow wins.
func All(authorizers ...Authorizer) Authorizer {
	return Func(func(ctx context.Context, req request.Request, actor *ir.Actor) Decision {
		for _, a := range authorizers {
			if d := decide(ctx, a, req, actor); d.Effect != Allow {
				return d
			}
		}
		return Allowed()
	})
}

// Check runs the authorizer and reports the decision in tagged form:
// (true, nil) for Allow, (false, nil) for Deny and (false, err) for Error.
func Check(ctx context.Context, a Authorizer, req request.Request, actor *ir.Actor) (bool, error) {
	d := decide(ctx, a, req, actor)
	switch d.Effect {
	case Allow:
		return true, nil
	case Error:
		if d.Err == nil {
			return false, errors.New(d.Reason)
		}
		return false, d.Err
	default:
		return false, nil
	}
}

// IsAllowed is the boolean form of Check. It never fails: errors count as
// a refusal.
func IsAllowed(ctx context.Context, a Authorizer, req request.Request, actor *ir.Actor) bool {
	ok, _ := Check(ctx, a, req, actor)
	return ok
}

// Enforce runs the authorizer and converts a refusal into an error:
// FORBIDDEN for Deny, RUNTIME for Error, nil for Allow.
func Enforce(ctx context.Context, a Authorizer, req request.Request, actor *ir.Actor) error {
	d := decide(ctx, a, req, actor)
	meta := req.Meta()
	switch d.Effect {
	case Allow:
		return nil
	case Error:
		err := ir.NewRuntimeError(d.Err)
		err.Message = d.Reason
		err.Resource, err.Target = meta.Resource, meta.Target
		return err
	default:
		err := ir.NewForbidden(d.Reason)
		err.Resource, err.Target = meta.Resource, meta.Target
		return err
	}
}

// decide calls the authorizer, turning a nil authorizer into Allow and a
// panic into an Error decision.
func decide(ctx context.Context, a Authorizer, req request.Request, actor *ir.Actor) (d Decision) {
	if a == nil {
		return Allowed()
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	defer func() {
		if r := recover(); r != nil {
			d = Failed(fmt.Errorf("authorizer panic: %v", r))
		}
	}()
	return a.Authorize(ctx, req, actor)
}
