package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/compiler"
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/store"
	"github.com/roach88/resgate/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: "request", Kind: "create", Interface: "User.create_user", Args: map[string]any{"first_name": "ann", "last_name": "lee"}},
		{Seq: 2, Type: "outcome", Interface: "User.create_user", Case: "Success"},
		{Seq: 3, Type: "request", Kind: "read", Interface: "User.get_user", Args: map[string]any{"id": "rec-0001"}},
		{Seq: 4, Type: "outcome", Interface: "User.get_user", Case: "Success"},
		{Seq: 5, Type: "request", Kind: "read", Interface: "User.list_users", Args: map[string]any{}},
		{Seq: 6, Type: "outcome", Interface: "User.list_users", Case: "Success"},
		{Seq: 7, Type: "request", Kind: "read", Interface: "User.get_user", Args: map[string]any{"id": "missing"}},
		{Seq: 8, Type: "outcome", Interface: "User.get_user", Case: "NotFound", ErrorCode: "NOT_FOUND"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name    string
		call    string
		args    map[string]any
		wantErr bool
	}{
		{"no args required", "User.list_users", nil, false},
		{"subset match", "User.create_user", map[string]any{"first_name": "ann"}, false},
		{"second occurrence", "User.get_user", map[string]any{"id": "missing"}, false},
		{"wrong args", "User.get_user", map[string]any{"id": "rec-0002"}, true},
		{"extra expected key", "User.create_user", map[string]any{"age": 3}, true},
		{"not journaled", "User.update_user", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Call: tt.call, Args: tt.args})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var aerr *AssertionError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, AssertTraceContains, aerr.Type)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	t.Run("correct with intervening requests", func(t *testing.T) {
		err := assertTraceOrder(sampleTrace(), Assertion{Calls: []string{"User.create_user", "User.list_users"}})
		assert.NoError(t, err)
	})

	t.Run("wrong order", func(t *testing.T) {
		err := assertTraceOrder(sampleTrace(), Assertion{Calls: []string{"User.list_users", "User.create_user"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "should be before")
	})

	t.Run("first occurrence counts", func(t *testing.T) {
		err := assertTraceOrder(sampleTrace(), Assertion{Calls: []string{"User.list_users", "User.get_user"}})
		require.Error(t, err)
	})

	t.Run("missing request", func(t *testing.T) {
		err := assertTraceOrder(sampleTrace(), Assertion{Calls: []string{"User.create_user", "User.greet"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing request: User.greet")
	})
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		call    string
		count   int
		wantErr bool
	}{
		{"User.get_user", 2, false},
		{"User.create_user", 1, false},
		{"User.greet", 0, false},
		{"User.get_user", 1, true},
		{"User.get_user", 3, true},
	}

	for _, tt := range tests {
		err := assertTraceCount(sampleTrace(), Assertion{Call: tt.call, Count: tt.count})
		if tt.wantErr {
			assert.Error(t, err, "%s x%d", tt.call, tt.count)
		} else {
			assert.NoError(t, err, "%s x%d", tt.call, tt.count)
		}
	}
}

func TestMatchValue(t *testing.T) {
	record := ir.Record{Resource: "User", Attributes: ir.IRObject{
		"id":         ir.IRString("rec-0001"),
		"first_name": ir.IRString("ann"),
		"age":        ir.IRNull{},
	}}

	tests := []struct {
		name   string
		want   ir.IRValue
		actual ir.IRValue
		match  bool
	}{
		{"equal strings", ir.IRString("a"), ir.IRString("a"), true},
		{"different ints", ir.IRInt(1), ir.IRInt(2), false},
		{"string vs int", ir.IRString("1"), ir.IRInt(1), false},
		{"object subset", ir.IRObject{"a": ir.IRInt(1)}, ir.IRObject{"a": ir.IRInt(1), "b": ir.IRInt(2)}, true},
		{"object missing key", ir.IRObject{"c": ir.IRInt(1)}, ir.IRObject{"a": ir.IRInt(1)}, false},
		{"record by attributes", ir.IRObject{"first_name": ir.IRString("ann")}, record, true},
		{"record null attribute", ir.IRObject{"age": ir.IRNull{}}, record, true},
		{"nested subset", ir.IRObject{"o": ir.IRObject{"x": ir.IRBool(true)}}, ir.IRObject{"o": ir.IRObject{"x": ir.IRBool(true), "y": ir.IRBool(false)}}, true},
		{"array element-wise", ir.IRArray{ir.IRObject{"id": ir.IRString("rec-0001")}}, ir.IRArray{record}, true},
		{"array length differs", ir.IRArray{}, ir.IRArray{record}, false},
		{"object vs scalar", ir.IRObject{}, ir.IRString("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, matchValue(tt.want, tt.actual))
		})
	}
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{"id": "rec-0001", "n": int64(3)}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"n": 3}))
	assert.False(t, matchArgs(actual, map[string]any{"n": "3"}))
	assert.False(t, matchArgs(actual, map[string]any{"f": 1.5}))
}

func TestCheckExpect(t *testing.T) {
	allowed := true
	denied := false

	tests := []struct {
		name   string
		step   FlowStep
		sr     StepResult
		value  ir.IRValue
		wantOK bool
	}{
		{"no expect success", FlowStep{}, StepResult{OK: true}, nil, true},
		{"no expect failure", FlowStep{}, StepResult{Error: "RUNTIME"}, nil, false},
		{"error matches", FlowStep{Expect: &ExpectClause{Error: "NOT_FOUND"}}, StepResult{Error: "NOT_FOUND"}, nil, true},
		{"error differs", FlowStep{Expect: &ExpectClause{Error: "NOT_FOUND"}}, StepResult{Error: "FORBIDDEN"}, nil, false},
		{"error expected got success", FlowStep{Expect: &ExpectClause{Error: "NOT_FOUND"}}, StepResult{OK: true}, nil, false},
		{"allowed matches", FlowStep{Expect: &ExpectClause{Allowed: &allowed}}, StepResult{OK: true, Allowed: &allowed}, nil, true},
		{"allowed differs", FlowStep{Expect: &ExpectClause{Allowed: &allowed}}, StepResult{OK: true, Allowed: &denied}, nil, false},
		{"null matches", FlowStep{Expect: &ExpectClause{Null: true}}, StepResult{OK: true}, ir.IRNull{}, true},
		{"null expected got value", FlowStep{Expect: &ExpectClause{Null: true}}, StepResult{OK: true}, ir.IRString("x"), false},
		{"value matches", FlowStep{Expect: &ExpectClause{Value: "bea lee"}}, StepResult{OK: true}, ir.IRString("bea lee"), true},
		{"value differs", FlowStep{Expect: &ExpectClause{Value: "bea lee"}}, StepResult{OK: true}, ir.IRString("ann lee"), false},
		{"value expected got failure", FlowStep{Expect: &ExpectClause{Value: "x"}}, StepResult{Error: "RUNTIME"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := checkExpect(tt.step, tt.sr, tt.value)
			if tt.wantOK {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceContains,
		Expected: "request User.greet",
		Actual:   "not found in journal",
		Trace:    sampleTrace()[:2],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_contains")
	assert.Contains(t, msg, "Expected: request User.greet")
	assert.Contains(t, msg, "Actual: not found in journal")
	assert.Contains(t, msg, "[1] User.create_user")
	assert.NotContains(t, msg, "[2]")
}

func TestFormatWhere(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhere(nil, nil))

	where := map[string]any{"b": 2, "a": "x"}
	assert.Equal(t, "a=x AND b=2", formatWhere(where, sortedKeys(where)))
}

// newStateStore opens a store with the user spec migrated and two records.
func newStateStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	schemas, err := compiler.LoadSchemas(userSpec(t))
	require.NoError(t, err)

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequenceIDs("rec")))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx, schemas...))

	_, err = st.Create(ctx, "User", ir.IRObject{"first_name": ir.IRString("ann"), "last_name": ir.IRString("lee"), "age": ir.IRInt(30)})
	require.NoError(t, err)
	_, err = st.Create(ctx, "User", ir.IRObject{"first_name": ir.IRString("bob"), "last_name": ir.IRString("lee")})
	require.NoError(t, err)
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := newStateStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		where   map[string]any
		expect  map[string]any
		wantErr string
	}{
		{"match by id", map[string]any{"id": "rec-0001"}, map[string]any{"first_name": "ann", "age": 30}, ""},
		{"multiple conditions", map[string]any{"last_name": "lee", "first_name": "bob"}, map[string]any{"id": "rec-0002"}, ""},
		{"null attribute", map[string]any{"id": "rec-0002"}, map[string]any{"age": nil}, ""},
		{"value mismatch", map[string]any{"id": "rec-0001"}, map[string]any{"age": 31}, `field "age" = 31`},
		{"type mismatch", map[string]any{"id": "rec-0001"}, map[string]any{"age": "30"}, `field "age"`},
		{"missing field", map[string]any{"id": "rec-0001"}, map[string]any{"email": "x"}, `field "email" to exist`},
		{"not found", map[string]any{"id": "rec-0009"}, map[string]any{"age": 1}, "record not found"},
		{"ambiguous", map[string]any{"last_name": "lee"}, map[string]any{"age": 1}, "multiple records matched"},
		{"unknown where field", map[string]any{"nope": 1}, map[string]any{"age": 1}, "query error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, Assertion{Type: AssertFinalState, Resource: "User", Where: tt.where, Expect: tt.expect})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("unknown resource", func(t *testing.T) {
		err := assertFinalState(ctx, st, Assertion{Type: AssertFinalState, Resource: "Ghost", Expect: map[string]any{"a": 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown resource "Ghost"`)
	})
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	t.Run("all pass", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertTraceContains, Call: "User.get_user"},
			{Type: AssertTraceCount, Call: "User.get_user", Count: 2},
			{Type: AssertTraceOrder, Calls: []string{"User.create_user", "User.get_user"}},
		}, nil)
		assert.Empty(t, errs)
	})

	t.Run("some fail", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertTraceContains, Call: "User.get_user"},
			{Type: AssertTraceCount, Call: "User.get_user", Count: 5},
			{Type: "bogus"},
		}, nil)
		require.Len(t, errs, 2)
		assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
	})

	t.Run("final state without context", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertFinalState, Resource: "User", Expect: map[string]any{"a": 1}},
		}, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "requires store context")
	})

	t.Run("final state with context", func(t *testing.T) {
		st := newStateStore(t)
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertFinalState, Resource: "User", Where: map[string]any{"first_name": "bob"}, Expect: map[string]any{"last_name": "lee"}},
		}, &AssertionContext{Store: st, Ctx: context.Background()})
		assert.Empty(t, errs)
	})
}
