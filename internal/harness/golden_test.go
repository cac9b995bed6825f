package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCanonical(t *testing.T) {
	allowed := false
	snapshot := Snapshot{
		ScenarioName: "canonical",
		Steps: []StepResult{
			{Step: 0, Call: "User.get_user", OK: true, Value: map[string]any{"z": "last", "a": nil}},
			{Step: 1, Call: "User.greet", OK: true, Allowed: &allowed},
			{Step: 2, Call: "User.get_user", Error: "NOT_FOUND"},
		},
		Trace: []TraceEvent{
			{Seq: 1, Type: "request", Kind: "read", Interface: "User.get_user", Target: "User.read", Args: map[string]any{"id": "x"}},
			{Seq: 2, Type: "outcome", Interface: "User.get_user", Case: "NotFound", ErrorCode: "NOT_FOUND"},
		},
	}

	data, err := snapshot.Canonical()
	require.NoError(t, err)

	want := `{"scenario_name":"canonical",` +
		`"steps":[{"call":"User.get_user","ok":true,"step":0,"value":{"a":null,"z":"last"}},` +
		`{"allowed":false,"call":"User.greet","ok":true,"step":1},` +
		`{"call":"User.get_user","error":"NOT_FOUND","ok":false,"step":2}],` +
		`"trace":[{"args":{"id":"x"},"interface":"User.get_user","kind":"read","seq":1,"target":"User.read","type":"request"},` +
		`{"case":"NotFound","error_code":"NOT_FOUND","interface":"User.get_user","seq":2,"type":"outcome"}]}`
	assert.Equal(t, want, string(data))
}

func TestSnapshotCanonical_Deterministic(t *testing.T) {
	snapshot := Snapshot{
		ScenarioName: "determinism",
		Steps: []StepResult{
			{Call: "User.list_users", OK: true, Value: map[string]any{"b": int64(1), "a": []any{"x", "y"}, "c": true}},
		},
		Trace: []TraceEvent{},
	}

	first, err := snapshot.Canonical()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := snapshot.Canonical()
		require.NoError(t, err)
		require.Equal(t, first, again, "canonical JSON must be deterministic")
	}
}

func TestSnapshotCanonical_RejectsFloats(t *testing.T) {
	snapshot := Snapshot{
		ScenarioName: "floats",
		Steps:        []StepResult{{Call: "User.greet", OK: true, Value: 1.5}},
	}

	_, err := snapshot.Canonical()
	require.Error(t, err)
}

func TestNewSnapshot(t *testing.T) {
	result := NewResult()
	result.Steps = append(result.Steps, StepResult{Call: "User.list_users", OK: true})
	result.Trace = append(result.Trace, TraceEvent{Seq: 1, Type: "request"})
	result.AddError("ignored")

	snapshot := NewSnapshot("named", result)
	assert.Equal(t, "named", snapshot.ScenarioName)
	assert.Equal(t, result.Steps, snapshot.Steps)
	assert.Equal(t, result.Trace, snapshot.Trace)
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("../../testdata/scenarios/post_publishing.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, scenario.Name, result))
}
