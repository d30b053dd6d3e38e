package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// Ensure ArtifactEditor implements the interface.
var _ driving.EditorService = (*ArtifactEditor)(nil)

// ArtifactEditor edits narrative artifacts and tracks the origin of every
// range of text. Edits to one artifact are serialized; different
// artifacts can be edited at the same time.
type ArtifactEditor struct {
	store     driven.ArtifactStore
	extractor driven.Extractor
	now       func() time.Time
	locks     keyedMutex
}

// NewArtifactEditor creates an editor. The extractor runs the cleanup
// pass of Reprocess and may be nil when reprocessing is not offered.
func NewArtifactEditor(store driven.ArtifactStore, extractor driven.Extractor) *ArtifactEditor {
	return &ArtifactEditor{
		store:     store,
		extractor: extractor,
		now:       time.Now,
	}
}

// Create stores text as a single machine segment.
// Returns domain.ErrAlreadyExists when the ID is taken.
func (e *ArtifactEditor) Create(ctx context.Context, id, text, author string) (*domain.Artifact, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: artifact id required", domain.ErrInvalidInput)
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	_, err := e.store.Get(ctx, id)
	switch {
	case err == nil:
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrAlreadyExists)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("get artifact: %w", err)
	}

	now := e.now()
	a := domain.Artifact{
		ID:        id,
		Segments:  []domain.TextSegment{{Text: text, Origin: domain.OriginMachine, EditedBy: author, EditedAt: now}},
		Audit:     []domain.AuditEntry{{Action: domain.AuditCreated, Author: author, At: now}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	return &a, nil
}

// Get retrieves an artifact.
func (e *ArtifactEditor) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	return e.store.Get(ctx, id)
}

// List returns every artifact ordered by ID.
func (e *ArtifactEditor) List(ctx context.Context) ([]domain.Artifact, error) {
	return e.store.List(ctx)
}

// ApplyEdit replaces the half-open rune range r with text written by
// author. Text outside r keeps its origin; segments cut by the range are
// split. Editing an approved artifact reopens it.
func (e *ArtifactEditor) ApplyEdit(
	ctx context.Context, id string, r domain.PositionRange, text, author string,
) (*domain.Artifact, error) {
	if strings.TrimSpace(author) == "" {
		return nil, fmt.Errorf("%w: author required", domain.ErrInvalidInput)
	}
	return e.mutate(ctx, id, func(a *domain.Artifact, now time.Time) error {
		if r.Start < 0 || r.End < r.Start || r.End > a.Len() {
			return fmt.Errorf("%w: range [%d,%d) outside text of length %d",
				domain.ErrInvalidInput, r.Start, r.End, a.Len())
		}
		edit := domain.TextSegment{Text: text, Origin: domain.OriginHuman, EditedBy: author, EditedAt: now}
		a.Segments = spliceSegments(a.Segments, r, edit)
		if a.Approved {
			a.Approved = false
			a.Audit = append(a.Audit, domain.AuditEntry{Action: domain.AuditReopened, Author: author, At: now})
		}
		a.Audit = append(a.Audit, domain.AuditEntry{Action: domain.AuditEdited, Author: author, At: now})
		return nil
	})
}

// spliceSegments replaces the rune range r with edit. An empty edit
// deletes the range.
func spliceSegments(segments []domain.TextSegment, r domain.PositionRange, edit domain.TextSegment) []domain.TextSegment {
	out := make([]domain.TextSegment, 0, len(segments)+2)
	inserted := false
	insert := func() {
		if !inserted && edit.Text != "" {
			out = append(out, edit)
		}
		inserted = true
	}

	pos := 0
	for _, seg := range segments {
		runes := []rune(seg.Text)
		start, end := pos, pos+len(runes)
		pos = end

		if head := min(max(r.Start-start, 0), len(runes)); head > 0 {
			part := seg
			part.Text = string(runes[:head])
			out = append(out, part)
		}
		if r.Start <= end {
			insert()
		}
		if tail := min(max(r.End-start, 0), len(runes)); tail < len(runes) {
			part := seg
			part.Text = string(runes[tail:])
			out = append(out, part)
		}
	}
	insert()
	return out
}

// Reprocess re-runs the cleanup pass over the whole text. The result
// replaces every segment, human edits included, with one machine segment.
// Without confirmation nothing happens; when cleanup fails the artifact is
// left unchanged.
func (e *ArtifactEditor) Reprocess(ctx context.Context, id string, confirm domain.Confirmation) (*domain.Artifact, error) {
	if !confirm.Confirmed {
		return nil, fmt.Errorf("reprocess %s: %w", id, domain.ErrConfirmationRequired)
	}
	if e.extractor == nil {
		return nil, fmt.Errorf("reprocess %s: %w: no extractor configured", id, domain.ErrExtractionFailed)
	}
	return e.mutate(ctx, id, func(a *domain.Artifact, now time.Time) error {
		cleaned, err := e.extractor.CleanupText(ctx, a.Text())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, e.extractor.Name(), err)
		}
		a.Segments = []domain.TextSegment{{
			Text: cleaned, Origin: domain.OriginMachine, EditedBy: e.extractor.Name(), EditedAt: now,
		}}
		a.Approved = false
		a.Audit = append(a.Audit, domain.AuditEntry{Action: domain.AuditReprocessed, Author: confirm.Author, At: now})
		return nil
	})
}

// Approve marks every segment approved. Approving an approved artifact
// changes nothing.
func (e *ArtifactEditor) Approve(ctx context.Context, id, author string) (*domain.Artifact, error) {
	if strings.TrimSpace(author) == "" {
		return nil, fmt.Errorf("%w: author required", domain.ErrInvalidInput)
	}
	return e.mutate(ctx, id, func(a *domain.Artifact, now time.Time) error {
		if a.Approved {
			return errUnchanged
		}
		for i := range a.Segments {
			a.Segments[i].Origin = domain.OriginApproved
		}
		a.Approved = true
		a.Audit = append(a.Audit, domain.AuditEntry{Action: domain.AuditApproved, Author: author, At: now})
		return nil
	})
}

// errUnchanged lets a mutation skip the save.
var errUnchanged = errors.New("unchanged")

// mutate loads an artifact under its lock, applies fn and saves the
// result. When fn fails the stored artifact is untouched.
func (e *ArtifactEditor) mutate(
	ctx context.Context, id string, fn func(a *domain.Artifact, now time.Time) error,
) (*domain.Artifact, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	stored, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", id, err)
	}
	a := stored.Clone()
	now := e.now()
	if err := fn(&a, now); err != nil {
		if errors.Is(err, errUnchanged) {
			return stored, nil
		}
		return nil, fmt.Errorf("artifact %s: %w", id, err)
	}

	a.Version++
	a.UpdatedAt = now
	if err := e.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	return &a, nil
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
