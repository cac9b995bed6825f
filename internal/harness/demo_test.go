package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDemoScenarios runs every scenario under testdata/scenarios and
// compares its snapshot with testdata/golden/<name>.golden.
//
// Regenerate with:
//
//	go test ./internal/harness -run TestDemoScenarios -update
func TestDemoScenarios(t *testing.T) {
	files, err := FindScenarios("../../testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		name := filepath.Base(path)
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err, "failed to load scenario from %s", path)
			assert.NotEmpty(t, scenario.Description, "scenario should have description")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err, "scenario execution should not error")
			assert.True(t, result.Pass, "scenario should pass: %v", result.Errors)
		})
	}
}

func TestDemoScenario_UserLifecycleTrace(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/user_lifecycle.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	// The forbidden greet and the can check never reach the journal.
	assert.Len(t, requests(result.Trace), 8)
	assert.Len(t, result.Steps, len(scenario.Flow))

	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq, "seq must be dense and ordered")
	}

	calc := result.Trace[6]
	assert.Equal(t, "calculation", calc.Kind)
	assert.Equal(t, "User.full_name", calc.Target)
	assert.Equal(t, map[string]any{"first_name": "bea", "last_name": "lee"}, calc.Args)
	assert.Equal(t, "bea lee", result.Trace[7].Value)
}
