package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// ProgressFunc receives a completion fraction in [0,1].
type ProgressFunc func(fraction float64)

// Fetcher copies an upload into working storage.
type Fetcher interface {
	// Fetch copies the upload and reports progress while copying.
	Fetch(ctx context.Context, upload domain.Upload, progress ProgressFunc) (*domain.WorkingCopy, error)

	// Open reads a working copy back.
	Open(ctx context.Context, wc domain.WorkingCopy) (*domain.RawDocument, error)

	// Remove deletes the working copy of a file.
	Remove(ctx context.Context, fileID string) error

	// Prune deletes working copies last modified before the cutoff and
	// returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
}
