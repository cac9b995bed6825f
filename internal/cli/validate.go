package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/resgate/internal/compiler"
	"github.com/roach88/resgate/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Resources []string                   `json:"resources,omitempty"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate resource definitions without writing IR",
		Long: `Validate CUE resource definitions without writing IR.

Reports every compile and consistency problem at once: unknown fields
in accept lists, filters naming missing arguments, interfaces targeting
missing actions, calculation expressions with unbound names.

Exit codes:
  0 - All specs valid
  1 - One or more problems found
  2 - The specs directory could not be read`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, rootOpts.specsDir(args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, problems, err := checkSpecs(specsDir, formatter)
	if err != nil {
		return specsDirError(formatter, err)
	}

	if len(problems) > 0 {
		message := fmt.Sprintf("validation failed with %d error(s)", len(problems))
		if formatter.JSON() {
			first := CLIError{Code: problems[0].Code, Message: problems[0].Message}
			if err := formatter.Failure(first, ValidationResult{Errors: problems}); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			writeProblems(formatter.Writer, problems)
		}
		return NewExitError(ExitFailure, message)
	}

	if formatter.JSON() {
		valid := ValidationResult{Valid: true}
		for _, s := range result.Schemas {
			valid.Resources = append(valid.Resources, s.Name)
		}
		return formatter.Success(valid)
	}
	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d resource(s))\n", len(result.Schemas))
	return nil
}

// checkSpecs loads every spec in specsDir and validates the compiled
// schemas. The error is set only when the directory itself could not be
// loaded; problems lists every compile and validation error. Compile
// problems carry the source position, or "load", as their field.
func checkSpecs(specsDir string, formatter *OutputFormatter) (*LoadResult, []compiler.ValidationError, error) {
	result, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if result == nil {
		return nil, nil, loadErrors[0]
	}
	formatter.Verbosef("Found %d CUE file(s) in %s", result.FileCount, specsDir)

	var problems []compiler.ValidationError
	for _, err := range loadErrors {
		problems = append(problems, loadProblem(err))
	}
	for _, schema := range result.Schemas {
		formatter.Verbosef("Validating resource: %s", schema.Name)
	}
	problems = append(problems, ValidateSchemas(result.Schemas)...)
	return result, problems, nil
}

// loadProblem converts a load error into a validation problem.
func loadProblem(err error) compiler.ValidationError {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
	}
	field := "load"
	if loadErr.Pos.IsValid() {
		field = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return compiler.ValidationError{Field: field, Message: loadErr.Message, Code: loadErr.Code}
}

// ValidateSchemas validates every schema. Field paths are prefixed with
// the resource name so errors from different resources stay apart.
func ValidateSchemas(schemas []*ir.ResourceSchema) []compiler.ValidationError {
	var all []compiler.ValidationError
	for _, schema := range schemas {
		for _, verr := range compiler.Validate(schema) {
			verr.Field = schema.Name + "." + verr.Field
			all = append(all, verr)
		}
	}
	return all
}

// ValidateSpecsDir validates all specs in a directory.
// The error is set when the directory itself could not be loaded.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	_, problems, err := checkSpecs(specsDir, &OutputFormatter{Writer: io.Discard})
	return problems, err
}

func writeProblems(w io.Writer, problems []compiler.ValidationError) {
	fmt.Fprintln(w)
	for _, p := range problems {
		fmt.Fprintf(w, "  %s: %s: %s\n", p.Code, p.Field, p.Message)
	}
	fmt.Fprintln(w)
}

// specsDirError reports a specs directory that could not be loaded at all.
func specsDirError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	message := err.Error()
	if loadErr != nil {
		message = loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
