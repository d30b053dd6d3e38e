package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// StateStore persists the canonical record as one unit.
// SaveState replaces the whole record atomically; a failed save leaves
// the previous record in place.
type StateStore interface {
	// LoadState returns the stored record, or an empty record when nothing
	// has been saved yet.
	LoadState(ctx context.Context) (domain.Record, error)

	// SaveState replaces the stored record.
	SaveState(ctx context.Context, record domain.Record) error
}

// ArtifactStore persists editable narrative artifacts.
type ArtifactStore interface {
	// Save creates or replaces an artifact.
	Save(ctx context.Context, artifact domain.Artifact) error

	// Get retrieves an artifact by ID.
	// Returns domain.ErrNotFound if the artifact does not exist.
	Get(ctx context.Context, id string) (*domain.Artifact, error)

	// List returns all artifacts ordered by ID.
	List(ctx context.Context) ([]domain.Artifact, error)

	// Delete removes an artifact.
	Delete(ctx context.Context, id string) error
}

// JobStore archives finished ingestion jobs.
type JobStore interface {
	// RecordJob stores a terminal job. A later attempt for the same file
	// is stored alongside earlier ones.
	RecordJob(ctx context.Context, job domain.IngestionJob) error

	// History returns archived jobs, most recently finished first.
	// A fileID of "" returns jobs for every file. limit <= 0 means no limit.
	History(ctx context.Context, fileID string, limit int) ([]domain.IngestionJob, error)

	// PruneHistory removes jobs that finished before the cutoff and
	// returns how many were removed.
	PruneHistory(ctx context.Context, before time.Time) (int, error)
}
