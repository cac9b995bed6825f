package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/resgate/internal/ir"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args string
	Opts string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <Resource.interface>",
		Short: "Call an interface against the configured store",
		Long: `Call an interface against the configured store.

Arguments are positional, as a JSON array. A record slot (the subject of
an update, or a _record argument) takes the record's primary key or its
attribute object. Options are a JSON object: actor, tenant,
not_found_error?, authorize? and action-level extras.

Exit codes:
  0 - The call succeeded
  1 - The call failed (the error code is printed)
  2 - Command error (specs, store, malformed --args/--opts)

Examples:
  resgate invoke User.create_user --args '["ann","lee"]'
  resgate invoke User.get_user --args '["0192..."]' --format json
  resgate invoke User.update_user --args '["0192...","bea"]' --opts '{"actor":{"id":"admin","permissions":["User.*"]}}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeInterface(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "[]", "positional arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Opts, "opts", "{}", "call options as a JSON object")

	return cmd
}

func invokeInterface(ctx context.Context, opts *InvokeOptions, target string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	rt, err := OpenRuntime(ctx, opts.RootOptions, opts.specsDir(nil))
	if err != nil {
		return commandError(formatter, err)
	}
	defer rt.Close()

	entry, args, callOpts, err := rt.Prepare(ctx, target, opts.Args, opts.Opts)
	if err != nil {
		return callError(formatter, err)
	}

	formatter.Verbosef("Calling %s (%s) with %d argument(s)", target, entry.Kind(), len(args))

	value, err := entry.Call(ctx, args, callOpts)
	if err != nil {
		return callError(formatter, err)
	}

	return formatter.Value(value)
}

// callError reports a failed call: exit code 1 for ir errors, 2 for input
// and setup errors.
func callError(formatter *OutputFormatter, err error) error {
	if ir.CodeOf(err) == "" {
		return commandError(formatter, err)
	}
	code := errorCode(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, code, err)
}

// commandError reports an error that kept the command from running.
func commandError(formatter *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}
