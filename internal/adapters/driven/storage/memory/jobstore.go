package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs []domain.IngestionJob
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{}
}

// RecordJob archives a terminal job.
func (s *JobStore) RecordJob(_ context.Context, job domain.IngestionJob) error {
	if !job.Stage.IsTerminal() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job.Clone())
	return nil
}

// History returns archived jobs, most recently finished first.
func (s *JobStore) History(_ context.Context, fileID string, limit int) ([]domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.IngestionJob
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if fileID != "" && s.jobs[i].FileID != fileID {
			continue
		}
		result = append(result, s.jobs[i].Clone())
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// PruneHistory removes jobs that finished before the cutoff.
func (s *JobStore) PruneHistory(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if j.FinishedAt.Before(before) {
			continue
		}
		kept = append(kept, j)
	}
	removed := len(s.jobs) - len(kept)
	s.jobs = kept
	return removed, nil
}
