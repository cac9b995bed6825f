package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/queryir"
	"github.com/roach88/resgate/internal/request"
	"github.com/roach88/resgate/internal/store"
)

// Backend persists and reads resource records.
// Implemented by *store.Store.
type Backend interface {
	Query(ctx context.Context, q queryir.Select) ([]ir.Record, error)
	QueryOne(ctx context.Context, q queryir.Select) (ir.Record, bool, error)
	Create(ctx context.Context, resource string, input ir.IRObject) (ir.Record, error)
	Update(ctx context.Context, rec ir.Record, changes ir.IRObject) (ir.Record, error)
}

// Evaluator computes calculations. Implemented by *calc.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, spec ir.CalculationSpec, args ir.IRObject) (ir.IRValue, error)
}

// Journal records requests and their outcomes. Implemented by *store.Store.
type Journal interface {
	WriteRequest(ctx context.Context, req store.JournalRequest) error
	WriteOutcome(ctx context.Context, out store.JournalOutcome) error
}

// Handler implements a generic action.
// Returning an *ir.Error keeps its code; any other error becomes RUNTIME.
type Handler func(ctx context.Context, input *request.ActionInput) (ir.IRValue, error)

// ErrNoBackend is returned when a read or mutation runs without a backend.
var ErrNoBackend = errors.New("no backend configured")

// ErrNoEvaluator is returned when a calculation runs without an evaluator.
var ErrNoEvaluator = errors.New("no calculation evaluator configured")

// Engine runs built requests.
//
// An Engine is immutable after New and safe for concurrent use; the backend,
// evaluator and journal it is given must be safe for concurrent use as well.
type Engine struct {
	backend   Backend
	evaluator Evaluator
	journal   Journal
	handlers  map[handlerKey]Handler
	clock     Sequencer
	logger    *slog.Logger
}

type handlerKey struct {
	resource string
	action   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator sets the calculation evaluator.
func WithEvaluator(ev Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithHandler registers the handler of a generic action.
func WithHandler(resource, action string, h Handler) Option {
	return func(e *Engine) {
		e.handlers[handlerKey{resource, action}] = h
	}
}

// WithClock sets the sequencer used to stamp requests.
// Default: a Clock starting at 0.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine over a backend.
func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:  backend,
		handlers: make(map[handlerKey]Handler),
		clock:    NewClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasHandler reports whether a generic action has a registered handler.
func (e *Engine) HasHandler(resource, action string) bool {
	_, ok := e.handlers[handlerKey{resource, action}]
	return ok
}

// Stamp assigns the next sequence number and returns a stamped copy of req.
// Every call yields a fresh id, so running one built request twice journals
// two requests.
func (e *Engine) Stamp(req request.Request) (request.Request, int64, error) {
	seq := e.clock.Next()
	stamped, err := request.Stamped(req, seq)
	if err != nil {
		return nil, 0, fmt.Errorf("stamp request: %w", err)
	}
	return stamped, seq, nil
}

// Run executes a request and classifies the result.
// Run never panics on handler failures and never retries.
func (e *Engine) Run(ctx context.Context, req request.Request) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	req, seq, err := e.Stamp(req)
	if err != nil {
		return Failed(err)
	}
	meta := req.Meta()

	e.journalRequest(ctx, req, seq)

	out := e.execute(ctx, req)
	if out.Err != nil {
		out.Err = annotate(out.Err, meta.Resource, meta.Target)
	}
	out.RequestID = meta.ID

	e.journalOutcome(ctx, meta.ID, out)

	e.logger.Debug("request executed",
		"request_id", meta.ID,
		"kind", string(req.Kind()),
		"resource", meta.Resource,
		"target", meta.Target,
		"case", string(out.Case),
	)
	return out
}

// annotate fills in the resource and target of an *ir.Error. The error is
// copied first: handlers may return shared values.
func annotate(err error, resource, target string) error {
	var irErr *ir.Error
	if !errors.As(err, &irErr) || (irErr.Resource != "" && irErr.Target != "") {
		return err
	}
	c := *irErr
	if c.Resource == "" {
		c.Resource = resource
	}
	if c.Target == "" {
		c.Target = target
	}
	return &c
}

func (e *Engine) execute(ctx context.Context, req request.Request) Outcome {
	switch r := req.(type) {
	case *request.Read:
		return e.runRead(ctx, r)
	case *request.Mutation:
		return e.runMutation(ctx, r)
	case *request.ActionInput:
		return e.runAction(ctx, r)
	case *request.Calculation:
		return e.runCalculation(ctx, r)
	default:
		return Failed(fmt.Errorf("unsupported request type %T", req))
	}
}

func (e *Engine) runRead(ctx context.Context, r *request.Read) Outcome {
	if e.backend == nil {
		return Failed(ErrNoBackend)
	}

	if r.Get {
		rec, found, err := e.backend.QueryOne(ctx, r.Query)
		if err != nil {
			return Failed(err)
		}
		if !found {
			return Failed(ir.NewNotFound(r.Resource, r.Target))
		}
		return Succeeded(rec)
	}

	records, err := e.backend.Query(ctx, r.Query)
	if err != nil {
		return Failed(err)
	}
	list := make(ir.IRArray, len(records))
	for i, rec := range records {
		list[i] = rec
	}
	return Succeeded(list)
}

func (e *Engine) runMutation(ctx context.Context, m *request.Mutation) Outcome {
	if e.backend == nil {
		return Failed(ErrNoBackend)
	}

	switch m.Action {
	case ir.ActionCreate:
		rec, err := e.backend.Create(ctx, m.Resource, m.Input)
		if err != nil {
			return Failed(err)
		}
		return Succeeded(rec)
	case ir.ActionUpdate:
		if m.Record == nil {
			return Failed(ir.NewValidationError(ir.FieldError{Field: "record", Message: "is required"}))
		}
		rec, err := e.backend.Update(ctx, *m.Record, m.Input)
		if err != nil {
			return Failed(err)
		}
		return Succeeded(rec)
	default:
		return Failed(fmt.Errorf("unsupported mutation %q", m.Action))
	}
}

func (e *Engine) runAction(ctx context.Context, a *request.ActionInput) (out Outcome) {
	h, ok := e.handlers[handlerKey{a.Resource, a.Target}]
	if !ok {
		return Failed(&ir.Error{
			Code:     ir.ErrCodeMissingHandler,
			Message:  "no handler registered",
			Resource: a.Resource,
			Target:   a.Target,
		})
	}

	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("handler panic: %v", r))
		}
	}()

	v, err := h(ctx, a)
	if err != nil {
		return Failed(err)
	}
	if v == nil {
		v = ir.IRNull{}
	}
	if a.Returns != "" && !ir.IsNull(v) {
		if err := ir.CheckType(a.Returns, v); err != nil {
			return Failed(fmt.Errorf("handler result: %w", err))
		}
	}
	return Succeeded(v)
}

func (e *Engine) runCalculation(ctx context.Context, c *request.Calculation) Outcome {
	if e.evaluator == nil {
		return Failed(ErrNoEvaluator)
	}
	v, err := e.evaluator.Evaluate(ctx, c.Spec, c.Arguments)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(v)
}

// journalRequest records the request. Journal failures are logged and do not
// fail the request.
func (e *Engine) journalRequest(ctx context.Context, req request.Request, seq int64) {
	if e.journal == nil {
		return
	}
	meta := req.Meta()
	entry := store.JournalRequest{
		ID:        meta.ID,
		Kind:      string(req.Kind()),
		Resource:  meta.Resource,
		Target:    meta.Target,
		Interface: meta.Interface,
		Tenant:    meta.Tenant,
		Args:      journalArgs(req),
		Seq:       seq,
	}
	if meta.Actor != nil {
		entry.ActorID = meta.Actor.ID
	}
	if err := e.journal.WriteRequest(ctx, entry); err != nil {
		e.logger.Warn("journal request failed", "request_id", meta.ID, "error", err)
	}
}

func (e *Engine) journalOutcome(ctx context.Context, requestID string, out Outcome) {
	if e.journal == nil {
		return
	}
	seq := e.clock.Next()
	value := out.Value
	if value == nil {
		value = ir.IRNull{}
	}
	id, err := ir.OutcomeID(requestID, string(out.Case), value, seq)
	if err != nil {
		e.logger.Warn("journal outcome failed", "request_id", requestID, "error", err)
		return
	}
	entry := store.JournalOutcome{
		ID:        id,
		RequestID: requestID,
		Case:      string(out.Case),
		Value:     value,
		Seq:       seq,
	}
	if out.Err != nil {
		entry.ErrorCode = ir.CodeOf(out.Err)
		entry.ErrorMessage = out.Err.Error()
	}
	if err := e.journal.WriteOutcome(ctx, entry); err != nil {
		e.logger.Warn("journal outcome failed", "request_id", requestID, "error", err)
	}
}

// journalArgs returns what is journaled as the request's arguments:
// bound arguments merged with mutation input.
func journalArgs(req request.Request) ir.IRObject {
	args := req.Meta().Arguments.Clone()
	if m, ok := req.(*request.Mutation); ok {
		for k, v := range m.Input {
			args[k] = v
		}
	}
	return args
}
