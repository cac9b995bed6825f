package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_flow.yaml", "a_flow.yml", "notes.txt", "sub/c_flow.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("name: x"), 0644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_flow.yml"),
		filepath.Join(dir, "b_flow.yaml"),
		filepath.Join(dir, "sub/c_flow.yaml"),
	}, files)

	files, err = FindScenarios(dir, "b_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b_flow.yaml")}, files)

	_, err = FindScenarios(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")

	_, err = FindScenarios(filepath.Join(dir, "missing"), "")
	require.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	specs, err := filepath.Abs("../../testdata/specs")
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	passing := write("passing.yaml", `
name: passing
specs: [user.cue]
flow:
  - call: User.list_users
    expect: {value: []}
`)
	failing := write("failing.yaml", `
name: failing
specs: [user.cue]
flow:
  - call: User.get_user
    args: [nobody]
`)
	broken := write("broken.yaml", "name: [")

	suite, err := RunSuite(context.Background(), []string{passing, failing, broken}, specs)
	require.NoError(t, err)

	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 2, suite.Failed)
	require.Len(t, suite.Results, 3)
	assert.True(t, suite.Results[0].Pass)
	assert.Equal(t, "failing", suite.Results[1].Name)
	assert.Equal(t, "broken", suite.Results[2].Name)
	assert.NotNil(t, suite.Results[0].Result)
	assert.NotNil(t, suite.Results[1].Scenario)
	assert.Nil(t, suite.Results[2].Scenario)
	assert.Nil(t, suite.Results[2].Result)

	require.Len(t, suite.Failures, 2)
	assert.Contains(t, suite.Failures[0].Errors[0], "NOT_FOUND")
	assert.Contains(t, suite.Failures[1].Errors[0], "failed to parse YAML")
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite, err := RunSuite(ctx, []string{"a.yaml"}, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, suite.Total)
}

func TestRunFile_SpecsRelativeToFile(t *testing.T) {
	scenario, result, err := RunFile(context.Background(), "../../testdata/scenarios/post_publishing.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "post_publishing", scenario.Name)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
