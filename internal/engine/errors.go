package engine

import (
	"errors"

	"github.com/roach88/resgate/internal/ir"
)

// OutcomeCase categorizes the result of running a request.
type OutcomeCase string

const (
	CaseSuccess             OutcomeCase = "Success"
	CaseNotFound            OutcomeCase = "NotFound"
	CaseValidationFailure   OutcomeCase = "ValidationFailure"
	CaseAuthorizationDenied OutcomeCase = "AuthorizationDenied"
	CaseRuntimeError        OutcomeCase = "RuntimeError"
)

// Outcome is the result of running one request.
// Value is set for Success; Err is set for every other case.
type Outcome struct {
	Case  OutcomeCase
	Value ir.IRValue
	Err   error

	// RequestID is the id the request was run under; empty when it never
	// reached the backend.
	RequestID string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Case == CaseSuccess
}

// Succeeded builds a success outcome.
func Succeeded(v ir.IRValue) Outcome {
	if v == nil {
		v = ir.IRNull{}
	}
	return Outcome{Case: CaseSuccess, Value: v}
}

// Failed classifies err into an outcome. Errors that are not *ir.Error are
// wrapped as RUNTIME errors so every failed outcome carries a code.
func Failed(err error) Outcome {
	if err == nil {
		return Succeeded(nil)
	}
	var irErr *ir.Error
	if !errors.As(err, &irErr) {
		err = ir.NewRuntimeError(err)
	}
	return Outcome{Case: Classify(err), Err: err}
}

// Classify maps an error to its outcome case.
// Uses errors.As to handle wrapped errors.
func Classify(err error) OutcomeCase {
	if err == nil {
		return CaseSuccess
	}
	switch ir.CodeOf(err) {
	case ir.ErrCodeNotFound:
		return CaseNotFound
	case ir.ErrCodeValidation, ir.ErrCodeMissingArgument, ir.ErrCodeTooManyArguments:
		return CaseValidationFailure
	case ir.ErrCodeForbidden:
		return CaseAuthorizationDenied
	default:
		return CaseRuntimeError
	}
}
