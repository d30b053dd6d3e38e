package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

// ArtifactStore is an in-memory implementation of driven.ArtifactStore.
type ArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[string]domain.Artifact
}

// NewArtifactStore creates a new in-memory artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		artifacts: make(map[string]domain.Artifact),
	}
}

// Save creates or replaces an artifact.
func (s *ArtifactStore) Save(_ context.Context, artifact domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifact.ID] = artifact.Clone()
	return nil
}

// Get retrieves an artifact by ID.
func (s *ArtifactStore) Get(_ context.Context, id string) (*domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.artifacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := artifact.Clone()
	return &clone, nil
}

// List returns all artifacts ordered by ID.
func (s *ArtifactStore) List(_ context.Context) ([]domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		result = append(result, a.Clone())
	}
	slices.SortFunc(result, func(a, b domain.Artifact) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Delete removes an artifact.
func (s *ArtifactStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, id)
	return nil
}
