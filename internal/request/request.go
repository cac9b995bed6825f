// Package request defines the request objects produced by the request
// builder and consumed by the authorization gate and the execution engine.
//
// A request is a plain value: building one has no side effects, and the same
// request can be authorized, executed or inspected any number of times.
// Executing works on a stamped copy (see Stamped), so the built request keeps
// an empty ID.
package request

import (
	"fmt"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/queryir"
)

// Kind identifies the request variant.
type Kind string

const (
	KindRead        Kind = "read"
	KindCreate      Kind = "create"
	KindUpdate      Kind = "update"
	KindAction      Kind = "action"
	KindCalculation Kind = "calculation"
)

// Request is implemented by Read, Mutation, ActionInput and Calculation.
// This is a sealed interface.
type Request interface {
	Kind() Kind
	Meta() *Base
}

// Base carries what every request has in common.
type Base struct {
	// ID is the content-addressed request id (see ir.RequestID).
	ID string `json:"id"`

	// Resource and Target name the resource and the action or calculation.
	Resource string `json:"resource"`
	Target   string `json:"target"`

	// Interface is the definition the request was built from, if any.
	Interface string `json:"interface,omitempty"`

	// Actor is the caller; nil for anonymous requests.
	Actor *ir.Actor `json:"actor,omitempty"`

	// Tenant scopes the request; empty when not multitenant.
	Tenant string `json:"tenant,omitempty"`

	// Arguments are the bound action or calculation arguments.
	Arguments ir.IRObject `json:"arguments"`

	// Context is caller-supplied request context (the "context" option).
	Context ir.IRObject `json:"context,omitempty"`

	// Options holds unrecognized call options, passed through verbatim.
	Options ir.IRObject `json:"options,omitempty"`

	// Requires lists the permissions the actor needs.
	Requires []string `json:"requires,omitempty"`
}

// Read is a read-action request.
type Read struct {
	Base
	Query queryir.Select `json:"query"`

	// Get means the caller expects at most one record.
	Get bool `json:"get"`
}

// Kind implements Request.
func (r *Read) Kind() Kind { return KindRead }

// Meta implements Request.
func (r *Read) Meta() *Base { return &r.Base }

// Mutation is a create or update request.
type Mutation struct {
	Base
	Action ir.ActionKind `json:"action"`

	// Record is the record being updated; nil for create.
	Record *ir.Record `json:"record,omitempty"`

	// Input holds the accepted attribute values to write.
	Input ir.IRObject `json:"input"`
}

// Kind implements Request.
func (m *Mutation) Kind() Kind {
	if m.Action == ir.ActionUpdate {
		return KindUpdate
	}
	return KindCreate
}

// Meta implements Request.
func (m *Mutation) Meta() *Base { return &m.Base }

// ActionInput is a generic-action request.
type ActionInput struct {
	Base
	Returns string `json:"returns,omitempty"`
}

// Kind implements Request.
func (a *ActionInput) Kind() Kind { return KindAction }

// Meta implements Request.
func (a *ActionInput) Meta() *Base { return &a.Base }

// Calculation is a calculation request. Arguments hold the scalar arguments
// plus every record field the calculation references.
type Calculation struct {
	Base
	Spec ir.CalculationSpec `json:"-"`
}

// Kind implements Request.
func (c *Calculation) Kind() Kind { return KindCalculation }

// Meta implements Request.
func (c *Calculation) Meta() *Base { return &c.Base }

// Stamped returns a shallow copy of req carrying the id for seq. req itself
// is left untouched.
func Stamped(req Request, seq int64) (Request, error) {
	var out Request
	switch r := req.(type) {
	case *Read:
		c := *r
		out = &c
	case *Mutation:
		c := *r
		out = &c
	case *ActionInput:
		c := *r
		out = &c
	case *Calculation:
		c := *r
		out = &c
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
	if err := Stamp(out, seq); err != nil {
		return nil, err
	}
	return out, nil
}

// Stamp computes and stores the content-addressed id of req.
// seq distinguishes otherwise identical requests (e.g. two creates with the
// same input).
func Stamp(req Request, seq int64) error {
	b := req.Meta()
	args := b.Arguments.Clone()
	switch r := req.(type) {
	case *Mutation:
		args["_input"] = r.Input.Clone()
		if r.Record != nil {
			args["_record"] = *r.Record
		}
	case *Read:
		if len(r.Query.Fields) > 0 {
			filter := ir.IRObject{}
			for _, eq := range queryir.FilterValues(r.Query.Filter) {
				filter[eq.Field] = eq.Value
			}
			args["_filter"] = filter
		}
	}
	id, err := ir.RequestID(string(req.Kind()), b.Resource, b.Target, args, seq)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}
