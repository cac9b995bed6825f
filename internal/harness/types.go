package harness

import (
	"github.com/roach88/resgate/internal/ir"
	"github.com/roach88/resgate/internal/store"
)

// TraceEvent is one journal record: a request or its outcome.
// Request and outcome ids are left out; they are content hashes and say
// nothing a reader of a golden file needs.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"` // "request" or "outcome"
	Kind      string `json:"kind,omitempty"`
	Interface string `json:"interface,omitempty"` // "User.get_user"
	Target    string `json:"target,omitempty"`    // "User.read"
	ActorID   string `json:"actor_id,omitempty"`
	Args      any    `json:"args,omitempty"`
	Case      string `json:"case,omitempty"`
	Value     any    `json:"value,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// StepResult is what one flow step produced, as seen by the caller.
type StepResult struct {
	Step    int    `json:"step"`
	Call    string `json:"call"`
	OK      bool   `json:"ok"`
	Value   any    `json:"value,omitempty"`
	Error   string `json:"error,omitempty"` // ir error code
	Allowed *bool  `json:"allowed,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Steps holds one entry per flow step, in order.
	Steps []StepResult `json:"steps"`

	// Trace is the request journal after the flow, ordered by seq.
	// Requests refused before execution (binding errors, denials) are not
	// journaled; they show up in Steps only.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddJournalEntry appends a journaled request and, when present, its outcome.
func (r *Result) AddJournalEntry(e store.JournalEntry) {
	req := e.Request
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       req.Seq,
		Type:      "request",
		Kind:      req.Kind,
		Interface: qualified(req.Resource, req.Interface),
		Target:    qualified(req.Resource, req.Target),
		ActorID:   req.ActorID,
		Args:      ir.ToGo(req.Args),
	})
	if e.Outcome == nil {
		return
	}
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       e.Outcome.Seq,
		Type:      "outcome",
		Interface: qualified(req.Resource, req.Interface),
		Case:      e.Outcome.Case,
		Value:     ir.ToGo(e.Outcome.Value),
		ErrorCode: string(e.Outcome.ErrorCode),
	})
}

func qualified(resource, name string) string {
	if name == "" {
		return ""
	}
	return resource + "." + name
}
