package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// CanResult is the answer of the can command.
type CanResult struct {
	Interface string `json:"interface"`
	Allowed   bool   `json:"allowed"`
}

// NewCanCommand creates the can command.
func NewCanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "can <Resource.interface>",
		Short: "Check whether a call would be authorized",
		Long: `Check whether a call would be authorized, without running it.

The call is bound and built exactly as invoke would, then only the
authorization gate runs. Nothing is written and nothing is journaled.

Exit codes:
  0 - Allowed
  1 - Denied
  2 - The call could not be built, or the check itself failed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkInterface(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "[]", "positional arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Opts, "opts", "{}", "call options as a JSON object (the actor goes here)")

	return cmd
}

func checkInterface(ctx context.Context, opts *InvokeOptions, target string, cmd *cobra.Command) error {
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
		return commandError(formatter, err)
	}

	allowed, err := entry.Can(ctx, callOpts.Actor, args, callOpts)
	if err != nil {
		return commandError(formatter, err)
	}

	result := CanResult{Interface: target, Allowed: allowed}
	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if allowed {
		fmt.Fprintf(formatter.Writer, "✓ %s allowed\n", target)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s denied\n", target)
	}

	if !allowed {
		return NewExitError(ExitFailure, fmt.Sprintf("%s denied", target))
	}
	return nil
}
