package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/resgate/internal/authz"
	"github.com/roach88/resgate/internal/calc"
	"github.com/roach88/resgate/internal/compiler"
	"github.com/roach88/resgate/internal/config"
	"github.com/roach88/resgate/internal/dispatch"
	"github.com/roach88/resgate/internal/engine"
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/store"
)

// Runtime is a dispatcher wired to the configured store.
type Runtime struct {
	Schemas    []*ir.ResourceSchema
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
}

// OpenRuntime loads and validates the specs, opens and migrates the store,
// and builds a dispatcher over them. The clock resumes after the last
// journaled seq. Generic actions have no handlers and
// fail with MISSING_HANDLER.
func OpenRuntime(ctx context.Context, opts *RootOptions, specsDir string) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	logger := opts.logger()

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if verrs := ValidateSchemas(loadResult.Schemas); len(verrs) > 0 {
		return nil, verrs[0]
	}

	st, err := store.Open(cfg.Store.Path, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	if err := st.Migrate(ctx, loadResult.Schemas...); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	lastSeq, err := st.LastSeq(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	dopts := []dispatch.Option{
		dispatch.WithBackend(st),
		dispatch.WithClock(engine.NewClockAt(lastSeq)),
		dispatch.WithEvaluator(calc.New(calc.WithLogger(logger))),
		dispatch.WithAuthorizer(authorizerFor(cfg.Authz.Policy)),
		dispatch.WithLogger(logger),
	}
	if !cfg.Store.NoJournal {
		dopts = append(dopts, dispatch.WithJournal(st))
	}

	d, err := dispatch.New(loadResult.Schemas, dopts...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	logger.Debug("runtime ready",
		"specs", specsDir,
		"db", cfg.Store.Path,
		"resources", len(loadResult.Schemas),
		"journal", !cfg.Store.NoJournal,
		"seq", lastSeq,
	)
	return &Runtime{Schemas: loadResult.Schemas, Store: st, Dispatcher: d}, nil
}

// Close closes the store.
func (r *Runtime) Close() error {
	return r.Store.Close()
}

// Prepare resolves "Resource.interface" and parses the JSON positional
// arguments and options. Record slots are resolved against the store.
func (r *Runtime) Prepare(ctx context.Context, target, argsJSON, optsJSON string) (*dispatch.Entry, []ir.IRValue, dispatch.Options, error) {
	var opts dispatch.Options

	resource, name, ok := splitTarget(target)
	if !ok {
		return nil, nil, opts, &InputError{Message: fmt.Sprintf("interface must be Resource.interface, got %q", target)}
	}
	entry, err := r.Dispatcher.Entry(resource, name)
	if err != nil {
		return nil, nil, opts, err
	}

	args, err := parseArgs(argsJSON)
	if err != nil {
		return nil, nil, opts, err
	}
	if opts, err = parseOpts(optsJSON); err != nil {
		return nil, nil, opts, err
	}

	if args, err = entry.ResolveRecords(ctx, r.Store, args); err != nil {
		return nil, nil, opts, err
	}
	return entry, args, opts, nil
}

// InputError is a malformed --args or --opts value.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func parseArgs(s string) ([]ir.IRValue, error) {
	if s == "" {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(s))
	if err != nil {
		return nil, &InputError{Message: fmt.Sprintf("invalid --args JSON: %v", err)}
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, &InputError{Message: fmt.Sprintf("--args must be a JSON array, got %s", ir.TypeName(v))}
	}
	return arr, nil
}

func parseOpts(s string) (dispatch.Options, error) {
	if s == "" {
		return dispatch.Options{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(s))
	if err != nil {
		return dispatch.Options{}, &InputError{Message: fmt.Sprintf("invalid --opts JSON: %v", err)}
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return dispatch.Options{}, &InputError{Message: fmt.Sprintf("--opts must be a JSON object, got %s", ir.TypeName(v))}
	}
	return dispatch.ParseOptions(obj)
}

func authorizerFor(policy string) authz.Authorizer {
	if policy == config.PolicyAllowAll {
		return authz.AllowAll{}
	}
	return authz.PermissionPolicy{}
}

// splitTarget splits "Resource.interface".
func splitTarget(s string) (resource, name string, ok bool) {
	resource, name, ok = strings.Cut(s, ".")
	return resource, name, ok && resource != "" && name != ""
}

// errorCode returns the code to report for err: the ir code when there is
// one, E008 for bad input, E004 for anything else.
func errorCode(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return ErrCodeBadInput
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return ErrCodeLoadFailed
}
