package dispatch

import (
	"github.com/roach88/resgate/internal/engine"
	"github.com/roach88/resgate/internal/ir"
)

// Result is the tagged form of an entry point's outcome.
// Exactly one of Value and Err is meaningful: Err == nil means Ok(Value).
type Result struct {
	Value ir.IRValue
	Err   error
}

// Ok returns a successful result. A nil value becomes null.
func Ok(v ir.IRValue) Result {
	if v == nil {
		v = ir.IRNull{}
	}
	return Result{Value: v}
}

// Errored returns a failed result.
func Errored(err error) Result {
	return Result{Err: err}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Err == nil
}

// Unwrap returns the raising form: the bare value or the error.
func (r Result) Unwrap() (ir.IRValue, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Value, nil
}

// shape converts an engine outcome into a result. A get that matched nothing
// is Ok(null) unless notFoundError is set.
func shape(out engine.Outcome, notFoundError bool) Result {
	switch out.Case {
	case engine.CaseSuccess:
		return Ok(out.Value)
	case engine.CaseNotFound:
		if !notFoundError {
			return Ok(nil)
		}
		return Errored(out.Err)
	default:
		return Errored(out.Err)
	}
}
