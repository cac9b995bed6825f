package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/resgate/internal/calc"
	"github.com/roach88/resgate/internal/compiler"
	"github.com/roach88/resgate/internal/dispatch"
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
	"github.com/roach88/resgate/internal/store"
	"github.com/roach88/resgate/internal/testutil"
)

// Harness runs one scenario against its own store and dispatcher.
type Harness struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	clock      *testutil.DeterministicClock
	actor      ir.IRValue
	logger     *slog.Logger
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger handed to the store and dispatcher.
// Defaults to a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Record ids are
// sequential ("rec-0001", "rec-0002", ... across all resources) and seq
// values come from a deterministic clock, so repeated runs are identical.
//
// Execution flow:
//  1. Load and compile the scenario's specs
//  2. Open an in-memory store and migrate every resource
//  3. Create setup records
//  4. Run flow steps, checking expect clauses
//  5. Read the journal into the trace and evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	schemas, err := compiler.LoadSchemas(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequenceIDs("rec")),
		store.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx, schemas...); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		logger: cfg.logger,
	}
	if scenario.Actor != nil {
		if h.actor, err = ir.FromGo(scenario.Actor); err != nil {
			return nil, fmt.Errorf("actor: %w", err)
		}
	}

	dopts := []dispatch.Option{
		dispatch.WithBackend(st),
		dispatch.WithEvaluator(calc.New(calc.WithLogger(cfg.logger))),
		dispatch.WithJournal(st),
		dispatch.WithClock(h.clock),
		dispatch.WithLogger(cfg.logger),
	}
	for _, stub := range scenario.Handlers {
		resource, action, _ := splitQualified(stub.Action)
		handler, err := stubHandler(stub)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", stub.Action, err)
		}
		dopts = append(dopts, dispatch.WithHandler(resource, action, handler))
	}
	if h.dispatcher, err = dispatch.New(schemas, dopts...); err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	entries, err := st.ReadJournal(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, e := range entries {
		result.AddJournalEntry(e)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// stubHandler returns a handler answering with the stub's value or error.
func stubHandler(stub HandlerStub) (dispatch.Handler, error) {
	if stub.Error != "" {
		return func(context.Context, *request.ActionInput) (ir.IRValue, error) {
			return nil, errors.New(stub.Error)
		}, nil
	}
	value, err := ir.FromGo(stub.Value)
	if err != nil {
		return nil, err
	}
	return func(context.Context, *request.ActionInput) (ir.IRValue, error) {
		return value, nil
	}, nil
}

// executeSetup creates setup records directly in the store.
// Setup writes are not journaled and do not advance the clock.
func (h *Harness) executeSetup(ctx context.Context, setup []SetupStep) error {
	for i, step := range setup {
		attrs, err := toIRObject(step.Attrs)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		rec, err := h.store.Create(ctx, step.Create, attrs)
		if err != nil {
			return fmt.Errorf("setup[%d]: create %s: %w", i, step.Create, err)
		}
		h.logger.Debug("setup record created", "step", i, "resource", rec.Resource)
	}
	return nil
}

// executeFlow runs every flow step in order. A failed expect clause is
// recorded and the flow continues, so one run reports every mismatch.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		sr, raw := h.executeStep(ctx, i, step)
		result.Steps = append(result.Steps, sr)

		if msg := checkExpect(step, sr, raw); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Target(), msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"interface", step.Target(),
			"ok", sr.OK,
			"error", sr.Error,
		)
	}
}

// executeStep runs one step and returns its result with the raw value.
func (h *Harness) executeStep(ctx context.Context, index int, step FlowStep) (StepResult, ir.IRValue) {
	sr := StepResult{Step: index, Call: step.Target()}

	fail := func(err error) (StepResult, ir.IRValue) {
		sr.OK = false
		sr.Error = errorCode(err)
		return sr, nil
	}

	resource, name, _ := splitQualified(step.Target())
	entry, err := h.dispatcher.Entry(resource, name)
	if err != nil {
		return fail(err)
	}

	args, err := toIRValues(step.Args)
	if err != nil {
		return fail(ir.NewValidationError(ir.FieldError{Field: "args", Message: err.Error()}))
	}
	if args, err = entry.ResolveRecords(ctx, h.store, args); err != nil {
		return fail(err)
	}

	opts, err := h.options(step.Opts)
	if err != nil {
		return fail(err)
	}

	if step.Can != "" {
		allowed, err := entry.Can(ctx, opts.Actor, args, opts)
		if err != nil {
			return fail(err)
		}
		sr.OK = true
		sr.Allowed = &allowed
		return sr, nil
	}

	res := entry.Result(ctx, args, opts)
	if !res.OK() {
		return fail(res.Err)
	}
	sr.OK = true
	sr.Value = ir.ToGo(res.Value)
	return sr, res.Value
}

// options parses step options, filling in the scenario actor.
func (h *Harness) options(raw map[string]any) (dispatch.Options, error) {
	obj, err := toIRObject(raw)
	if err != nil {
		return dispatch.Options{}, ir.NewValidationError(ir.FieldError{Field: "opts", Message: err.Error()})
	}
	if _, ok := obj[dispatch.OptionActor]; !ok && h.actor != nil {
		obj[dispatch.OptionActor] = h.actor
	}
	return dispatch.ParseOptions(obj)
}

// errorCode returns the ir code of err, or RUNTIME for anything else.
func errorCode(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return string(ir.ErrCodeRuntime)
}

func toIRObject(m map[string]any) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.IRObject), nil
}

func toIRValues(vs []any) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, len(vs))
	for i, v := range vs {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = iv
	}
	return out, nil
}
