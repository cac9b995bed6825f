package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/resgate/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <specs-dir> <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against the resource definitions.

Each scenario runs against a fresh in-memory store. Spec paths inside a
scenario are resolved against specs-dir. When
<scenarios-dir>/golden/<name>.golden exists, the scenario's snapshot
(step results and journal) must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  resgate test ./specs ./scenarios
  resgate test ./specs ./scenarios --filter "user_*"
  resgate test ./specs ./scenarios --update
  resgate test ./specs ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runTests(ctx, opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, specsDir, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(specsDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("specs directory not found: %s", specsDir))
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd.OutOrStdout(), TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	suite, err := harness.RunSuite(ctx, scenarioFiles, specsDir, harness.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "test run interrupted", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(suite.Results)),
		Total:     suite.Total,
	}
	failures := make(map[string][]string, len(suite.Failures))
	for _, f := range suite.Failures {
		failures[f.Path] = f.Errors
	}

	w := cmd.OutOrStdout()
	for _, summary := range suite.Results {
		sr := ScenarioResult{Name: summary.Name, Pass: summary.Pass, Errors: failures[summary.Path]}
		note := ""

		if summary.Result != nil {
			switch golden, err := checkGolden(summary, opts.Update); {
			case err != nil:
				sr.Pass = false
				sr.Errors = append(sr.Errors, err.Error())
			case golden == goldenUpdated:
				note = " (golden updated)"
			case golden == goldenMismatch:
				sr.Pass = false
				sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
			}
		}

		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)

		if opts.Format != "json" {
			writeScenarioLine(w, sr, note)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(w, result)
	}
	return outputTestText(w, result)
}

type goldenStatus int

const (
	goldenAbsent goldenStatus = iota
	goldenMatch
	goldenMismatch
	goldenUpdated
)

// checkGolden compares the scenario's snapshot with its golden file, or
// rewrites the file when update is set.
func checkGolden(summary harness.ScenarioSummary, update bool) (goldenStatus, error) {
	path := goldenFilePath(summary.Path)

	data, err := harness.NewSnapshot(summary.Scenario.Name, summary.Result).Canonical()
	if err != nil {
		return goldenAbsent, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return goldenAbsent, fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return goldenAbsent, fmt.Errorf("failed to write golden file: %w", err)
		}
		return goldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return goldenAbsent, nil
	}
	if err != nil {
		return goldenAbsent, fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return goldenMismatch, nil
	}
	return goldenMatch, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeScenarioLine(w io.Writer, sr ScenarioResult, note string) {
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s%s\n", sr.Name, note)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(w io.Writer, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := writeJSON(w, response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
