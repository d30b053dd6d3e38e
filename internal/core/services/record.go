package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// manualSource names the source of facts entered by hand.
const manualSource = "manual"

// Snapshot is one published version of the record. It is never modified
// after publication; the timeline index is built on first use.
type Snapshot struct {
	Version int64
	Record  domain.Record

	once  sync.Once
	index *TimelineIndex
}

// Index returns the timeline index of this snapshot.
func (s *Snapshot) Index() *TimelineIndex {
	s.once.Do(func() {
		s.index = NewTimelineIndex(s.Record)
	})
	return s.index
}

// Ensure RecordKeeper implements the interface.
var _ driving.LedgerService = (*RecordKeeper)(nil)

// RecordKeeper owns the canonical record. All writes, from ingestion and
// from manual edits, pass through one mutex; every successful write is
// saved before the new snapshot is published, so readers never see a
// record the store does not hold.
type RecordKeeper struct {
	reconciler *Reconciler
	store      driven.StateStore

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	seq     atomic.Int64

	haltMu    sync.RWMutex
	haltCause error
}

// NewRecordKeeper creates a keeper holding an empty record. Call Load to
// read the stored record.
func NewRecordKeeper(reconciler *Reconciler, store driven.StateStore) *RecordKeeper {
	k := &RecordKeeper{reconciler: reconciler, store: store}
	k.current.Store(&Snapshot{})
	return k
}

// Load reads the stored record and publishes it. A stored record that
// violates an invariant halts ingestion and is not published.
func (k *RecordKeeper) Load(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.loadLocked(ctx)
}

func (k *RecordKeeper) loadLocked(ctx context.Context) error {
	rec, err := k.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		k.halt(err)
		return fmt.Errorf("load record: %w", err)
	}
	SortRecord(&rec)

	var maxSeq int64
	for _, e := range rec.Events {
		maxSeq = max(maxSeq, e.IngestSeq)
	}
	for _, m := range rec.Medications {
		maxSeq = max(maxSeq, m.IngestSeq)
	}
	if maxSeq > k.seq.Load() {
		k.seq.Store(maxSeq)
	}

	k.publish(rec)
	return nil
}

// Snapshot returns the latest published record. Safe for concurrent use.
func (k *RecordKeeper) Snapshot() *Snapshot {
	return k.current.Load()
}

// NextSeq hands out the next submission sequence number.
func (k *RecordKeeper) NextSeq() int64 {
	return k.seq.Add(1)
}

// Apply reconciles a batch of candidates into the record and returns the
// conflicts found. An empty batch leaves the record untouched.
func (k *RecordKeeper) Apply(ctx context.Context, candidates []domain.Candidate) ([]domain.Conflict, error) {
	if len(candidates) == 0 {
		if err := k.Halted(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return k.update(ctx, func(rec domain.Record) (domain.Record, []domain.Conflict, error) {
		return k.reconciler.Reconcile(rec, candidates)
	})
}

// update runs fn on the current record under the write lock, then saves
// and publishes the result.
func (k *RecordKeeper) update(ctx context.Context, fn func(domain.Record) (domain.Record, []domain.Conflict, error)) ([]domain.Conflict, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.Halted(); err != nil {
		return nil, err
	}

	next, conflicts, err := fn(k.current.Load().Record)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptState) {
			k.halt(err)
		}
		return nil, err
	}
	if err := next.Validate(); err != nil {
		k.halt(err)
		return nil, err
	}

	if err := k.store.SaveState(ctx, next); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	k.publish(next)
	return conflicts, nil
}

func (k *RecordKeeper) publish(rec domain.Record) {
	version := k.current.Load().Version + 1
	k.current.Store(&Snapshot{Version: version, Record: rec})
	logger.Debug("record v%d published: %d events, %d medications",
		version, len(rec.Events), len(rec.Medications))
}

func (k *RecordKeeper) halt(cause error) {
	k.haltMu.Lock()
	defer k.haltMu.Unlock()
	k.haltCause = cause
	logger.Error("ingestion halted: %v", cause)
}

// Halted reports whether writes are blocked by a corrupt record.
func (k *RecordKeeper) Halted() error {
	k.haltMu.RLock()
	defer k.haltMu.RUnlock()
	if k.haltCause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrIngestionHalted, k.haltCause)
}

// Resume reloads the stored record and lifts the halt if it is valid.
func (k *RecordKeeper) Resume(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.loadLocked(ctx); err != nil {
		return err
	}

	k.haltMu.Lock()
	k.haltCause = nil
	k.haltMu.Unlock()
	logger.Info("ingestion resumed")
	return nil
}

// ==================== Ledger ====================

// AddEvent records a manually entered event. A zero confidence is taken
// as certain. The returned event is the active one after reconciliation,
// which is a merged record when the entry matched an existing event.
func (k *RecordKeeper) AddEvent(ctx context.Context, event domain.MedicalEvent) (domain.MedicalEvent, error) {
	c := manualCandidate(domain.FactEvent, event.ID, event.SourceFiles, event.Confidence)
	c.Date = event.Date
	c.Title = event.Title
	c.Description = event.Description
	c.Notes = event.Notes
	c.Keywords = event.Keywords
	c.NoteArtifactID = event.NoteArtifactID
	if conflict, ok := checkCandidate(c); !ok {
		return domain.MedicalEvent{}, fmt.Errorf("add event: %w: %w", domain.ErrInvalidInput, conflict)
	}

	c.Seq = k.NextSeq()
	_, err := k.update(ctx, func(rec domain.Record) (domain.Record, []domain.Conflict, error) {
		if _, exists := rec.Event(c.ID); exists {
			return domain.Record{}, nil, fmt.Errorf("event %s: %w", c.ID, domain.ErrAlreadyExists)
		}
		return k.reconciler.Reconcile(rec, []domain.Candidate{c})
	})
	if err != nil {
		return domain.MedicalEvent{}, fmt.Errorf("add event: %w", err)
	}

	rec := k.Snapshot().Record
	id := c.ID
	for range rec.Events {
		e, ok := rec.Event(id)
		if !ok {
			break
		}
		if e.Active() {
			return e.Clone(), nil
		}
		id = e.SupersededBy
	}
	return domain.MedicalEvent{}, fmt.Errorf("add event %s: %w", c.ID, domain.ErrNotFound)
}

// AddMedication records a manually entered course. Partial overlaps with
// existing courses of the same ingredient are returned as conflicts.
func (k *RecordKeeper) AddMedication(ctx context.Context, med domain.Medication) (domain.Medication, []domain.Conflict, error) {
	c := manualCandidate(domain.FactMedication, med.ID, med.SourceFiles, med.Confidence)
	c.Date = med.Period.Start
	c.EndDate = med.Period.End
	c.Name = med.Name
	c.ActiveIngredient = med.ActiveIngredient
	c.Dosage = med.Dosage
	c.Route = med.Route
	c.Notes = med.Notes
	if conflict, ok := checkCandidate(c); !ok {
		return domain.Medication{}, nil, fmt.Errorf("add medication: %w: %w", domain.ErrInvalidInput, conflict)
	}

	c.Seq = k.NextSeq()
	conflicts, err := k.update(ctx, func(rec domain.Record) (domain.Record, []domain.Conflict, error) {
		if _, exists := rec.Medication(c.ID); exists {
			return domain.Record{}, nil, fmt.Errorf("medication %s: %w", c.ID, domain.ErrAlreadyExists)
		}
		return k.reconciler.Reconcile(rec, []domain.Candidate{c})
	})
	if err != nil {
		return domain.Medication{}, nil, fmt.Errorf("add medication: %w", err)
	}

	rec := k.Snapshot().Record
	id := c.ID
	for range rec.Medications {
		m, ok := rec.Medication(id)
		if !ok {
			break
		}
		if m.Active() {
			return m.Clone(), conflicts, nil
		}
		id = m.SupersededBy
	}
	return domain.Medication{}, conflicts, fmt.Errorf("add medication %s: %w", c.ID, domain.ErrNotFound)
}

func manualCandidate(kind domain.FactKind, id string, sources []string, confidence float64) domain.Candidate {
	if id == "" {
		id = uuid.NewString()
	}
	source := manualSource
	if len(sources) > 0 && strings.TrimSpace(sources[0]) != "" {
		source = sources[0]
	}
	if confidence == 0 {
		confidence = 1
	}
	return domain.Candidate{
		ID:         id,
		Kind:       kind,
		SourceFile: source,
		Confidence: confidence,
		Provenance: domain.ProvenanceHuman,
	}
}

// CloseMedication sets the end date of an ongoing course.
func (k *RecordKeeper) CloseMedication(ctx context.Context, id string, end domain.Date) (domain.Medication, error) {
	if end.IsZero() {
		return domain.Medication{}, fmt.Errorf("close medication %s: %w: end date required", id, domain.ErrInvalidInput)
	}

	var closed domain.Medication
	_, err := k.update(ctx, func(rec domain.Record) (domain.Record, []domain.Conflict, error) {
		next := rec.Clone()
		m, err := activeMedication(next, id)
		if err != nil {
			return domain.Record{}, nil, err
		}
		if !m.Period.IsOpen() {
			return domain.Record{}, nil, fmt.Errorf("%w: course already ended on %s", domain.ErrInvalidInput, m.Period.End)
		}
		if end.Before(m.Period.Start) {
			return domain.Record{}, nil, fmt.Errorf("%w: end %s before start %s", domain.ErrInvalidInput, end, m.Period.Start)
		}
		m.Period.End = end
		m.Provenance = domain.ProvenanceHuman
		if m.Own != nil {
			m.Own.Provenance = domain.ProvenanceHuman
		}
		AssignCycles(next.Medications)
		SortRecord(&next)
		closed, _ = next.Medication(id)
		return next, nil, nil
	})
	if err != nil {
		return domain.Medication{}, fmt.Errorf("close medication %s: %w", id, err)
	}
	return closed.Clone(), nil
}

// ArchiveMedication logically deletes a course. Archiving an archived
// course is a no-op.
func (k *RecordKeeper) ArchiveMedication(ctx context.Context, id string) error {
	if m, ok := k.Snapshot().Record.Medication(id); ok && m.Archived {
		return nil
	}
	_, err := k.update(ctx, func(rec domain.Record) (domain.Record, []domain.Conflict, error) {
		next := rec.Clone()
		m, err := activeMedication(next, id)
		if err != nil {
			return domain.Record{}, nil, err
		}
		m.Archived = true
		AssignCycles(next.Medications)
		SortRecord(&next)
		return next, nil, nil
	})
	if err != nil {
		return fmt.Errorf("archive medication %s: %w", id, err)
	}
	return nil
}

// Conflicts lists the overlapping courses that still need review.
func (k *RecordKeeper) Conflicts() []domain.Conflict {
	return OverlappingCourses(k.Snapshot().Record)
}

// activeMedication returns a pointer into rec for an active course.
func activeMedication(rec domain.Record, id string) (*domain.Medication, error) {
	for i := range rec.Medications {
		m := &rec.Medications[i]
		if m.ID != id {
			continue
		}
		if m.SupersededBy != "" {
			return nil, fmt.Errorf("%w: superseded by %s", domain.ErrInvalidInput, m.SupersededBy)
		}
		if m.Archived {
			return nil, fmt.Errorf("%w: archived", domain.ErrInvalidInput)
		}
		return m, nil
	}
	return nil, domain.ErrNotFound
}
