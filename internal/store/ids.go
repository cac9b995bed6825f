package store

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces primary keys for created records.
type IDGenerator interface {
	NewID() (string, error)
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() (string, error)

// NewID implements IDGenerator.
func (f IDFunc) NewID() (string, error) { return f() }

// UUIDv7Generator generates time-ordered UUIDv7 keys, so primary-key order
// roughly follows insertion order.
type UUIDv7Generator struct{}

// NewID implements IDGenerator.
func (UUIDv7Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuidv7: %w", err)
	}
	return id.String(), nil
}
