package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/queryir"
	"github.com/roach88/resgate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nJournaled requests:\n")
		for _, event := range e.Trace {
			if event.Type == "request" {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Interface, event.Args)
			}
		}
	}

	return buf.String()
}

// checkExpect compares a step result with the step's expect clause.
// Returns "" on a match.
func checkExpect(step FlowStep, sr StepResult, value ir.IRValue) string {
	exp := step.Expect
	if exp == nil {
		if !sr.OK {
			return fmt.Sprintf("expected success, got %s", sr.Error)
		}
		return ""
	}

	if exp.Error != "" {
		if sr.OK {
			return fmt.Sprintf("expected error %s, got success", exp.Error)
		}
		if sr.Error != exp.Error {
			return fmt.Sprintf("expected error %s, got %s", exp.Error, sr.Error)
		}
		return ""
	}
	if !sr.OK {
		return fmt.Sprintf("expected success, got %s", sr.Error)
	}

	if exp.Allowed != nil {
		if sr.Allowed == nil || *sr.Allowed != *exp.Allowed {
			return fmt.Sprintf("expected allowed=%t, got %v", *exp.Allowed, describeAllowed(sr.Allowed))
		}
		return ""
	}

	if exp.Null {
		if !ir.IsNull(value) {
			return fmt.Sprintf("expected null, got %v", sr.Value)
		}
		return ""
	}
	if exp.Value != nil {
		want, err := ir.FromGo(exp.Value)
		if err != nil {
			return fmt.Sprintf("expected value: %v", err)
		}
		if !matchValue(want, value) {
			return fmt.Sprintf("expected value %v, got %v", exp.Value, sr.Value)
		}
	}
	return ""
}

func describeAllowed(b *bool) string {
	if b == nil {
		return "no answer"
	}
	return fmt.Sprintf("allowed=%t", *b)
}

// matchValue reports whether actual matches want. Objects match as subsets
// (extra keys in actual are ignored) and records match by attributes. Lists
// must have the same length and match element-wise.
func matchValue(want, actual ir.IRValue) bool {
	if rec, ok := actual.(ir.Record); ok {
		actual = rec.Attributes
	}

	switch w := want.(type) {
	case ir.IRObject:
		a, ok := actual.(ir.IRObject)
		if !ok {
			return false
		}
		for k, wv := range w {
			av, exists := a[k]
			if !exists || !matchValue(wv, av) {
				return false
			}
		}
		return true
	case ir.IRArray:
		a, ok := actual.(ir.IRArray)
		if !ok || len(a) != len(w) {
			return false
		}
		for i := range w {
			if !matchValue(w[i], a[i]) {
				return false
			}
		}
		return true
	default:
		return ir.Equal(want, actual)
	}
}

// matchArgs checks if actual args contain all expected args (subset match).
func matchArgs(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	want, err := ir.FromGo(expected)
	if err != nil {
		return false
	}
	got, err := ir.FromGo(actual)
	if err != nil {
		return false
	}
	return matchValue(want, got)
}

// requests returns the journaled request events.
func requests(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, event := range trace {
		if event.Type == "request" {
			out = append(out, event)
		}
	}
	return out
}

// assertTraceContains checks that a request for the interface with
// matching args (subset match) was journaled.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range requests(trace) {
		if event.Interface == assertion.Call && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("request %s with args %v", assertion.Call, assertion.Args),
		Actual:   "not found in journal",
		Trace:    trace,
	}
}

// assertTraceOrder checks that requests appear in the given order.
// They don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range requests(trace) {
		if _, seen := positions[event.Interface]; !seen {
			positions[event.Interface] = i + 1
		}
	}

	for _, call := range assertion.Calls {
		if positions[call] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all requests present: %v", assertion.Calls),
				Actual:   fmt.Sprintf("missing request: %s", call),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Calls); i++ {
		prev, curr := assertion.Calls[i-1], assertion.Calls[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("requests in order: %v", assertion.Calls),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the interface was journaled exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range requests(trace) {
		if event.Interface == assertion.Call {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d requests for %s", assertion.Count, assertion.Call),
			Actual:   fmt.Sprintf("%d requests", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks that exactly one record of the resource matches
// Where and that it carries the Expect attributes (subset match).
// The query goes through queryir, so field names are checked against the
// schema rather than interpolated.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	schema, ok := st.Schema(assertion.Resource)
	if !ok {
		return fmt.Errorf("final_state: unknown resource %q", assertion.Resource)
	}

	keys := make([]string, 0, len(assertion.Where))
	for k := range assertion.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]queryir.Predicate, 0, len(keys))
	for _, k := range keys {
		v, err := ir.FromGo(assertion.Where[k])
		if err != nil {
			return fmt.Errorf("final_state: where %s: %w", k, err)
		}
		preds = append(preds, queryir.Equals{Field: k, Value: v})
	}

	records, err := st.Query(ctx, queryir.Select{
		From:   assertion.Resource,
		Fields: schema.FieldNames(),
		Filter: queryir.Conjoin(preds...),
		Limit:  2,
	})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query %s", assertion.Resource),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	switch len(records) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record in %s where %s", assertion.Resource, formatWhere(assertion.Where, keys)),
			Actual:   "record not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one record in %s where %s", assertion.Resource, formatWhere(assertion.Where, keys)),
			Actual:   "multiple records matched (assertion is ambiguous)",
		}
	}

	attrs := records[0].Attributes
	for _, k := range sortedKeys(assertion.Expect) {
		want, err := ir.FromGo(assertion.Expect[k])
		if err != nil {
			return fmt.Errorf("final_state: expect %s: %w", k, err)
		}
		got, exists := attrs[k]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", k),
				Actual:   fmt.Sprintf("fields present: %v", attrs.SortedKeys()),
			}
		}
		if !matchValue(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", k, assertion.Expect[k]),
				Actual:   fmt.Sprintf("field %q = %v", k, ir.ToGo(got)),
			}
		}
	}

	return nil
}

// formatWhere creates a human-readable description of Where conditions.
func formatWhere(where map[string]any, keys []string) string {
	if len(keys) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires store context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
