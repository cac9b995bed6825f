package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs hands out predictable record ids: "<prefix>-0001", "<prefix>-0002", ...
// It satisfies store.IDGenerator, so golden snapshots never contain random keys.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates an id source. An empty prefix defaults to "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// NewID returns the next id.
func (s *SequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n), nil
}

// Reset restarts the sequence.
func (s *SequenceIDs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
