package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/resgate/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // IR file path
}

// CompilationResult holds the compiled resource schemas.
type CompilationResult struct {
	Resources []*ir.ResourceSchema `json:"resources"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ResourceCount     int
	TotalFields       int
	TotalActions      int
	TotalCalculations int
	TotalInterfaces   int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [specs-dir]",
		Short: "Compile CUE resource definitions to IR",
		Long: `Compile CUE resource definitions to IR.

Every resource declared under the "resource" key is compiled and
validated. The schemas are summarized, printed as JSON with --format
json, or written to a file with --output. Without specs-dir the
configured specs directory is used.

Any compile or validation problem is a command error (exit code 2).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, opts.specsDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the IR as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, problems, err := checkSpecs(specsDir, formatter)
	if err != nil {
		return specsDirError(formatter, err)
	}

	if len(problems) > 0 {
		message := fmt.Sprintf("compilation failed with %d error(s)", len(problems))
		if formatter.JSON() {
			all := make([]CLIError, len(problems))
			for i, p := range problems {
				all[i] = CLIError{Code: p.Code, Message: p.Field + ": " + p.Message}
			}
			if err := formatter.Failure(all[0], all); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
			writeProblems(formatter.Writer, problems)
		}
		return NewExitError(ExitCommandError, message)
	}

	result := &CompilationResult{Resources: loaded.Schemas}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
		formatter.Verbosef("Wrote %d resource(s) to %s", len(result.Resources), opts.Output)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	stats := calculateStats(result)
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d resource(s)\n\n", stats.ResourceCount)
	fmt.Fprintln(formatter.Writer, "Resources:")
	for _, r := range result.Resources {
		fmt.Fprintf(formatter.Writer, "  %s: %d field(s), %d action(s), %d calculation(s), %d interface(s)\n",
			r.Name, len(r.Fields), len(r.Actions), len(r.Calculations), len(r.Interfaces))
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote IR to %s\n", opts.Output)
	}
	return nil
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{ResourceCount: len(result.Resources)}
	for _, r := range result.Resources {
		stats.TotalFields += len(r.Fields)
		stats.TotalActions += len(r.Actions)
		stats.TotalCalculations += len(r.Calculations)
		stats.TotalInterfaces += len(r.Interfaces)
	}
	return stats
}

// writeIRToFile writes the compiled schemas as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}
