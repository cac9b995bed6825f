// Package ir provides the shared intermediate representation for resgate.
//
// This package contains the resource schema types (fields, actions,
// calculations, interface definitions), the constrained value model used for
// arguments and records, the error taxonomy shared by every layer, and the
// canonical JSON encoding used for request identity.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Schemas are built once at startup and never mutated afterwards
//   - All JSON tags use snake_case
package ir
