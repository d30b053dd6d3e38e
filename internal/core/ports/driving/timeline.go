package driving

import (
	"context"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// TimelineService answers navigation and overlap queries over the latest
// published record. Reads never block on reconciliation.
type TimelineService interface {
	// Dates returns the distinct event dates, ascending.
	Dates() []domain.Date

	// Jump returns the nearest date on or after (Forward) or on or before
	// (Backward) the target.
	Jump(target domain.Date, dir domain.Direction) (domain.Date, bool)

	// Cursor positions a cursor at selected. A zero date selects nothing.
	Cursor(selected domain.Date) domain.TimelineCursor

	// Next and Prev move the cursor one date. At the boundary they return
	// the cursor unchanged.
	Next(c domain.TimelineCursor) domain.TimelineCursor
	Prev(c domain.TimelineCursor) domain.TimelineCursor

	// EventsOn returns the active events of one date.
	EventsOn(date domain.Date) []domain.MedicalEvent

	// EventsWithin returns active events no more than days away from date.
	EventsWithin(date domain.Date, days int) []domain.MedicalEvent

	// MedicationsOverlapping returns active courses sharing a day with r.
	MedicationsOverlapping(r domain.DateRange) []domain.Medication

	// Record returns a copy of the latest published record.
	Record() domain.Record

	// Summary describes the whole timeline.
	Summary() domain.TimelineSummary
}

// LedgerService applies manual changes to the record. Every change goes
// through the same serialized reconciliation path as ingestion.
type LedgerService interface {
	// AddEvent records a manually entered event (human provenance).
	AddEvent(ctx context.Context, event domain.MedicalEvent) (domain.MedicalEvent, error)

	// AddMedication records a manually entered course (human provenance).
	// Partial overlaps with existing courses are returned as conflicts.
	AddMedication(ctx context.Context, med domain.Medication) (domain.Medication, []domain.Conflict, error)

	// CloseMedication sets the end date of an ongoing course.
	CloseMedication(ctx context.Context, id string, end domain.Date) (domain.Medication, error)

	// ArchiveMedication logically deletes a course.
	ArchiveMedication(ctx context.Context, id string) error

	// Conflicts lists overlapping courses that still need human review.
	Conflicts() []domain.Conflict

	// Halted reports whether ingestion is blocked by a corrupt record.
	Halted() error

	// Resume reloads the record from storage and lifts the halt when the
	// stored record is valid again.
	Resume(ctx context.Context) error
}
