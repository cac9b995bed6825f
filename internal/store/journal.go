package store

import "github.com/roach88/resgate/internal/ir"

// JournalRequest is a journaled request.
type JournalRequest struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Resource  string      `json:"resource"`
	Target    string      `json:"target"`
	Interface string      `json:"interface,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Tenant    string      `json:"tenant,omitempty"`
	Args      ir.IRObject `json:"args"`
	Seq       int64       `json:"seq"`
}

// JournalOutcome is the journaled outcome of a request.
type JournalOutcome struct {
	ID           string       `json:"id"`
	RequestID    string       `json:"request_id"`
	Case         string       `json:"case"`
	Value        ir.IRValue   `json:"value"`
	ErrorCode    ir.ErrorCode `json:"error_code,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Seq          int64        `json:"seq"`
}

// JournalEntry pairs a request with its outcome.
// Outcome is nil when the request was journaled but never completed.
type JournalEntry struct {
	Request JournalRequest  `json:"request"`
	Outcome *JournalOutcome `json:"outcome,omitempty"`
}
