// Package store provides the SQLite backend for resource records and the
// request journal.
//
// Each registered resource gets one table named after the resource, with one
// column per field:
//
//	string         TEXT
//	int, bool      INTEGER (bool as 0/1)
//	array, object  TEXT holding RFC 8785 canonical JSON
//
// The journal records every executed request and its outcome:
//   - journal_requests: one row per request, keyed by content-addressed id
//   - journal_outcomes: one row per request outcome
//
// # Ordering
//
// Record queries order by primary key with COLLATE BINARY. Journal queries
// order by seq (logical clock), never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Every mutation validates its input against the resource schema before
// writing and runs inside one transaction.
package store
