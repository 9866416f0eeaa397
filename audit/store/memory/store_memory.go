package memory

import (
	"context"
	"sync"

	"chronicle/audit"
)

// Store keeps appended records in memory, in append order. Used by tests
// and by callers that fan records out elsewhere.
type Store struct {
	mu      sync.RWMutex
	records []audit.Record
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *Store) Records() []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Record{}, s.records...)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}
