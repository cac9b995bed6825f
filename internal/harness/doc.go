// Package harness runs conformance scenarios against resource specs.
//
// A scenario compiles CUE resource specs, seeds records, calls interfaces
// through a real dispatcher backed by an in-memory store, and checks the
// caller-visible results, the request journal and the final state.
//
// # Scenario Format
//
//	name: user_lifecycle
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/user.cue
//	actor: {id: admin, permissions: ["*"]}
//	handlers:
//	  - action: User.greet
//	    value: "hi"
//	setup:
//	  - create: User
//	    attrs: {first_name: ann}
//	flow:
//	  - call: User.get_user
//	    args: [rec-0001]
//	    expect:
//	      value: {first_name: ann}
//	  - call: User.get_user
//	    args: [missing]
//	    expect:
//	      error: NOT_FOUND
//	  - can: User.greet
//	    args: [bob]
//	    opts: {actor: guest}
//	    expect:
//	      allowed: false
//	assertions:
//	  - type: trace_contains
//	    call: User.get_user
//	    args: {id: rec-0001}
//	  - type: final_state
//	    resource: User
//	    where: {id: rec-0001}
//	    expect: {first_name: ann}
//
// Record slots (the subject of an update, a _record argument) accept the
// record's primary key or its attribute object.
//
// # Assertion Types
//
//   - trace_contains: a request for the interface with matching args was journaled
//   - trace_order: requests were journaled in the given order
//   - trace_count: the interface was journaled exactly N times
//   - final_state: one record matches and carries the expected attributes
//
// # Deterministic Testing
//
// Record ids come from testutil.SequenceIDs and seq values from
// testutil.DeterministicClock, so a scenario's snapshot is byte-identical
// across runs and can be compared with a golden file (see RunWithGolden).
package harness
