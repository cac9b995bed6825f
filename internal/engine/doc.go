// Package engine executes built requests against a backend.
//
// The engine is the last stage of dispatch. It receives a request that has
// already been bound, built and authorized, runs it, and classifies what
// happened into an Outcome:
//
//	Success              the request produced a value
//	NotFound             a get read matched no record
//	ValidationFailure    input did not satisfy the schema
//	AuthorizationDenied  the gate refused the request
//	RuntimeError         anything else (backend, handler, evaluator failures)
//
// Execution is synchronous and request-per-call. Nothing is retried: the
// outcome of a run is final and, when a journal is configured, recorded
// together with the request under logical-clock sequence numbers.
package engine
