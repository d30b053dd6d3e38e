package driving

import (
	"context"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// IngestionService runs uploads through fetch, extraction and
// reconciliation.
type IngestionService interface {
	// Submit queues an upload. Returns domain.ErrJobInProgress when the
	// same file is still active and domain.ErrIngestionHalted while the
	// record is corrupt. Resubmitting a finished file retries it.
	Submit(ctx context.Context, upload domain.Upload) (domain.IngestionJob, error)

	// Cancel asks a job to stop at its next stage boundary.
	Cancel(ctx context.Context, fileID string) error

	// Status returns a snapshot of one job.
	Status(ctx context.Context, fileID string) (*domain.IngestionJob, error)

	// List returns snapshots of all tracked jobs in submission order.
	List(ctx context.Context) []domain.IngestionJob

	// Await blocks until the job is terminal or ctx is done.
	Await(ctx context.Context, fileID string) (*domain.IngestionJob, error)

	// Consume archives a terminal job and stops tracking it.
	Consume(ctx context.Context, fileID string) (*domain.IngestionJob, error)

	// History returns archived jobs, most recent first.
	History(ctx context.Context, fileID string, limit int) ([]domain.IngestionJob, error)
}
