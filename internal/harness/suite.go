package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Results  []ScenarioSummary `json:"scenarios"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioSummary is the per-scenario line of a suite run.
// Scenario and Result are nil when the file could not be loaded or run.
type ScenarioSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Pass bool   `json:"pass"`

	Scenario *Scenario `json:"-"`
	Result   *Result   `json:"-"`
}

// ScenarioFailure explains why one scenario failed.
type ScenarioFailure struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
// When filter is set, only files whose base name (without extension)
// matches the glob are returned.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, err
}

// RunFile loads and runs one scenario file.
// specsDir, when set, is the base for relative spec paths; otherwise the
// scenario file's directory is used.
func RunFile(ctx context.Context, path, specsDir string, opts ...Option) (*Scenario, *Result, error) {
	base := specsDir
	if base == "" {
		base = filepath.Dir(path)
	}
	scenario, err := LoadScenarioWithBasePath(path, base)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario, opts...)
	if err != nil {
		return scenario, nil, fmt.Errorf("scenario execution failed: %w", err)
	}
	return scenario, result, nil
}

// RunSuite runs every scenario file and collects the results.
// A scenario that cannot be loaded or run counts as failed; the suite
// itself only fails on context cancellation.
func RunSuite(ctx context.Context, files []string, specsDir string, opts ...Option) (*SuiteResult, error) {
	suite := &SuiteResult{Results: []ScenarioSummary{}}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.Total++

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		scenario, result, err := RunFile(ctx, path, specsDir, opts...)
		if scenario != nil {
			name = scenario.Name
		}

		var errs []string
		switch {
		case err != nil:
			errs = []string{err.Error()}
		case !result.Pass:
			errs = result.Errors
		}

		suite.Results = append(suite.Results, ScenarioSummary{
			Name:     name,
			Path:     path,
			Pass:     len(errs) == 0,
			Scenario: scenario,
			Result:   result,
		})
		if len(errs) > 0 {
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{Name: name, Path: path, Errors: errs})
			continue
		}
		suite.Passed++
	}

	return suite, nil
}
