package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario loads resource specs, seeds records, runs a flow of interface
// calls against a fresh store and asserts on results, journal and state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring the resources under test.
	// Relative paths are resolved against the scenario file's directory.
	Specs []string `yaml:"specs"`

	// Actor is the default caller for every call step that does not set one.
	Actor map[string]any `yaml:"actor,omitempty"`

	// Handlers stub generic actions with a fixed value or error.
	Handlers []HandlerStub `yaml:"handlers,omitempty"`

	// Setup creates records directly in the store, bypassing interfaces.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Flow contains the interface calls under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final journal and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// HandlerStub stubs one generic action.
type HandlerStub struct {
	// Action is "Resource.action".
	Action string `yaml:"action"`

	// Value is returned on success.
	Value any `yaml:"value,omitempty"`

	// Error, when set, makes the handler fail with this message.
	Error string `yaml:"error,omitempty"`
}

// SetupStep creates one record.
type SetupStep struct {
	// Create is the resource name.
	Create string `yaml:"create"`

	// Attrs are the record attributes; field defaults apply to the rest.
	Attrs map[string]any `yaml:"attrs"`
}

// FlowStep is one interface call, or one authorization check when Can is set.
type FlowStep struct {
	// Call is the interface to run, "Resource.interface".
	Call string `yaml:"call,omitempty"`

	// Can is the interface to check without running it.
	Can string `yaml:"can,omitempty"`

	// Args are the positional values. Record slots accept a primary key
	// or an attribute object.
	Args []any `yaml:"args,omitempty"`

	// Opts are the call options (actor, tenant, not_found_error?, ...).
	Opts map[string]any `yaml:"opts,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Target returns the interface the step names.
func (s FlowStep) Target() string {
	if s.Can != "" {
		return s.Can
	}
	return s.Call
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Error is the expected ir error code (e.g. "NOT_FOUND").
	// Empty means the call must succeed.
	Error string `yaml:"error,omitempty"`

	// Value is the expected result. Objects match as subsets; lists match
	// element-wise.
	Value any `yaml:"value,omitempty"`

	// Null expects a null result; a YAML null in Value reads as absent.
	Null bool `yaml:"is_null,omitempty"`

	// Allowed is the expected authorization answer of a can step.
	Allowed *bool `yaml:"allowed,omitempty"`
}

// Assertion validates the journal or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a journaled request for Call with matching args
	// - "trace_order": journaled requests for Calls appear in order
	// - "trace_count": Call was journaled exactly Count times
	// - "final_state": one record of Resource matching Where has Expect
	Type string `yaml:"type"`

	// Call is the interface, "Resource.interface".
	Call string `yaml:"call,omitempty"`

	// Args are the expected request arguments (subset match).
	Args map[string]any `yaml:"args,omitempty"`

	// Calls is the expected order (used by trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of requests (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Resource is the resource to query (used by final_state).
	Resource string `yaml:"resource,omitempty"`

	// Where lists field equalities the record must satisfy.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected attribute values (subset match).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving spec paths
// relative to basePath instead of the file's directory.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML, resolving spec paths against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && baseDir != "" {
			scenario.Specs[i] = filepath.Join(baseDir, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs is required (at least one spec file)")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow is required (at least one step)")
	}

	for i, h := range s.Handlers {
		if !isQualified(h.Action) {
			return fmt.Errorf("handlers[%d]: action must be Resource.action, got %q", i, h.Action)
		}
	}
	for i, step := range s.Setup {
		if step.Create == "" {
			return fmt.Errorf("setup[%d]: create is required", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateFlowStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateFlowStep(step FlowStep, index int) error {
	switch {
	case step.Call == "" && step.Can == "":
		return fmt.Errorf("flow[%d]: one of call or can is required", index)
	case step.Call != "" && step.Can != "":
		return fmt.Errorf("flow[%d]: call and can are mutually exclusive", index)
	case !isQualified(step.Target()):
		return fmt.Errorf("flow[%d]: interface must be Resource.interface, got %q", index, step.Target())
	}
	if step.Expect == nil {
		return nil
	}
	if step.Can != "" && step.Expect.Allowed == nil {
		return fmt.Errorf("flow[%d]: can step expects allowed", index)
	}
	if step.Call != "" && step.Expect.Allowed != nil {
		return fmt.Errorf("flow[%d]: allowed is only valid for can steps", index)
	}
	if step.Expect.Error != "" && (step.Expect.Value != nil || step.Expect.Null) {
		return fmt.Errorf("flow[%d]: expect error and value are mutually exclusive", index)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Resource == "" {
			return fmt.Errorf("assertions[%d]: resource is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// splitQualified splits "Resource.name".
func splitQualified(s string) (resource, name string, ok bool) {
	resource, name, ok = strings.Cut(s, ".")
	return resource, name, ok && resource != "" && name != "" && !strings.Contains(name, ".")
}

func isQualified(s string) bool {
	_, _, ok := splitQualified(s)
	return ok
}
