package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/resgate/internal/authz"
	"github.com/roach88/resgate/internal/engine"
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/request"
)

// Handler implements a generic action.
type Handler = engine.Handler

// ErrNoBuilder is returned by Build for generic action and calculation entries.
var ErrNoBuilder = errors.New("builder form is only available for read, create and update interfaces")

// Dispatcher is the registry of entry points built from resource schemas.
//
// A Dispatcher is immutable after New and safe for concurrent use.
type Dispatcher struct {
	schemas    map[string]*ir.ResourceSchema
	entries    map[entryKey]*Entry
	engine     *engine.Engine
	authorizer authz.Authorizer
	logger     *slog.Logger
}

type entryKey struct {
	resource string
	name     string
}

type config struct {
	backend    engine.Backend
	authorizer authz.Authorizer
	logger     *slog.Logger
	engineOpts []engine.Option
}

// Option configures a Dispatcher.
type Option func(*config)

// WithBackend sets the persistence backend reads and mutations run against.
func WithBackend(b engine.Backend) Option {
	return func(c *config) {
		c.backend = b
	}
}

// WithEvaluator sets the calculation evaluator.
func WithEvaluator(ev engine.Evaluator) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, engine.WithEvaluator(ev))
	}
}

// WithAuthorizer sets the authorization gate.
// Default: authz.PermissionPolicy.
func WithAuthorizer(a authz.Authorizer) Option {
	return func(c *config) {
		c.authorizer = a
	}
}

// WithHandler registers the handler of a generic action.
func WithHandler(resource, action string, h Handler) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, engine.WithHandler(resource, action, h))
	}
}

// WithJournal records every executed request in j.
func WithJournal(j engine.Journal) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, engine.WithJournal(j))
	}
}

// WithClock sets the sequencer used to stamp requests.
func WithClock(s engine.Sequencer) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, engine.WithClock(s))
	}
}

// WithLogger sets the logger of the dispatcher and its engine.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New builds the entry point registry for every interface definition of
// every schema. Definitions are checked here; an invalid one fails New.
func New(schemas []*ir.ResourceSchema, opts ...Option) (*Dispatcher, error) {
	cfg := config{
		authorizer: authz.PermissionPolicy{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher{
		schemas:    make(map[string]*ir.ResourceSchema, len(schemas)),
		entries:    make(map[entryKey]*Entry),
		authorizer: cfg.authorizer,
		logger:     cfg.logger,
		engine:     engine.New(cfg.backend, append(cfg.engineOpts, engine.WithLogger(cfg.logger))...),
	}

	for _, schema := range schemas {
		if _, dup := d.schemas[schema.Name]; dup {
			return nil, fmt.Errorf("duplicate resource %q", schema.Name)
		}
		d.schemas[schema.Name] = schema

		for name, def := range schema.Interfaces {
			if def.Name == "" {
				def.Name = name
			}
			entry, err := newEntry(d, schema, def)
			if err != nil {
				return nil, err
			}
			d.entries[entryKey{schema.Name, def.Name}] = entry
		}
	}

	d.logger.Debug("dispatcher ready", "resources", len(d.schemas), "interfaces", len(d.entries))
	return d, nil
}

// Entry returns the entry point family of a definition.
// Returns an UNKNOWN_INTERFACE error if there is none.
func (d *Dispatcher) Entry(resource, name string) (*Entry, error) {
	entry, ok := d.entries[entryKey{resource, name}]
	if !ok {
		return nil, &ir.Error{
			Code:     ir.ErrCodeUnknownInterface,
			Message:  "no such interface",
			Resource: resource,
			Target:   name,
		}
	}
	return entry, nil
}

// Entries returns every entry ordered by resource, then name.
func (d *Dispatcher) Entries() []*Entry {
	entries := make([]*Entry, 0, len(d.entries))
	for _, e := range d.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].schema.Name != entries[j].schema.Name {
			return entries[i].schema.Name < entries[j].schema.Name
		}
		return entries[i].name < entries[j].name
	})
	return entries
}

// Schema returns the schema of a resource.
func (d *Dispatcher) Schema(resource string) (*ir.ResourceSchema, bool) {
	s, ok := d.schemas[resource]
	return s, ok
}

// Execute authorizes and runs a request produced by Build.
// Building with options and executing with the same options is equivalent
// to calling the entry directly. A nil opts.Actor keeps the request's actor.
func (d *Dispatcher) Execute(ctx context.Context, req request.Request, opts Options) Result {
	meta := req.Meta()
	var definition, action *bool
	if entry, ok := d.entries[entryKey{meta.Resource, meta.Interface}]; ok {
		definition, action = entry.def.NotFoundError, entry.actionNotFoundError()
	}
	if opts.Actor == nil {
		opts.Actor = meta.Actor
	}
	return d.run(ctx, req, opts, notFoundError(opts.NotFoundError, definition, action))
}

// run is where every executing form ends: gate, engine, shaper.
func (d *Dispatcher) run(ctx context.Context, req request.Request, opts Options, notFoundError bool) Result {
	meta := req.Meta()

	if opts.authorize() {
		if err := authz.Enforce(ctx, d.authorizer, req, opts.Actor); err != nil {
			d.logger.Warn("request not authorized",
				"interface", meta.Interface,
				"resource", meta.Resource,
				"target", meta.Target,
				"error", err,
			)
			return Errored(err)
		}
	}

	out := d.engine.Run(ctx, req)
	d.logger.Debug("interface dispatched",
		"interface", meta.Interface,
		"request_id", out.RequestID,
		"kind", string(req.Kind()),
		"case", string(out.Case),
	)
	return shape(out, notFoundError)
}
