package driving

import (
	"context"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// EditorService edits narrative artifacts while tracking who wrote what.
type EditorService interface {
	// Create stores text as a single machine segment.
	Create(ctx context.Context, id, text, author string) (*domain.Artifact, error)

	// Get retrieves an artifact.
	Get(ctx context.Context, id string) (*domain.Artifact, error)

	// List returns every artifact.
	List(ctx context.Context) ([]domain.Artifact, error)

	// ApplyEdit replaces the rune range r with text written by author.
	ApplyEdit(ctx context.Context, id string, r domain.PositionRange, text, author string) (*domain.Artifact, error)

	// Reprocess re-runs cleanup on the whole text, discarding human edits.
	// Requires an explicit confirmation.
	Reprocess(ctx context.Context, id string, confirm domain.Confirmation) (*domain.Artifact, error)

	// Approve marks every segment approved.
	Approve(ctx context.Context, id, author string) (*domain.Artifact, error)
}
