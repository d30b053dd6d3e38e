package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is an in-memory implementation of driven.StateStore.
// It keeps a private copy of the record so callers cannot mutate it.
type StateStore struct {
	mu     sync.RWMutex
	record domain.Record
	saves  int

	saveErr error
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// NewStateStoreWith creates a store already holding rec, which is stored
// as given without validation.
func NewStateStoreWith(rec domain.Record) *StateStore {
	return &StateStore{record: rec.Clone()}
}

// LoadState returns a copy of the stored record.
func (s *StateStore) LoadState(_ context.Context) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Clone(), nil
}

// SaveState replaces the stored record.
func (s *StateStore) SaveState(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.record = record.Clone()
	s.saves++
	return nil
}

// Saves returns how many times the record was saved.
func (s *StateStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SetSaveError makes SaveState fail with err until it is reset with nil.
func (s *StateStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}
