package services

import (
	"slices"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// TimelineIndex is a read-only projection of a record: the distinct event
// dates in order, events grouped by date and the active courses.
// It holds no medical truth of its own and can be rebuilt from the record
// at any time with the same result.
type TimelineIndex struct {
	dates  []domain.Date
	byDate map[domain.Date][]domain.MedicalEvent
	meds   []domain.Medication
}

// NewTimelineIndex builds the index over the active facts of rec.
func NewTimelineIndex(rec domain.Record) *TimelineIndex {
	ix := &TimelineIndex{byDate: make(map[domain.Date][]domain.MedicalEvent)}
	for _, e := range rec.ActiveEvents() {
		if _, ok := ix.byDate[e.Date]; !ok {
			ix.dates = append(ix.dates, e.Date)
		}
		ix.byDate[e.Date] = append(ix.byDate[e.Date], e.Clone())
	}
	slices.SortFunc(ix.dates, domain.Date.Compare)
	for _, events := range ix.byDate {
		slices.SortFunc(events, compareEvents)
	}

	for _, m := range rec.ActiveMedications() {
		ix.meds = append(ix.meds, m.Clone())
	}
	slices.SortFunc(ix.meds, func(a, b domain.Medication) int {
		if c := a.Period.Start.Compare(b.Period.Start); c != 0 {
			return c
		}
		return compareMedications(a, b)
	})
	return ix
}

// Dates returns the distinct event dates, ascending.
func (ix *TimelineIndex) Dates() []domain.Date {
	return slices.Clone(ix.dates)
}

// Len returns the number of distinct event dates.
func (ix *TimelineIndex) Len() int {
	return len(ix.dates)
}

// First returns the earliest event date.
func (ix *TimelineIndex) First() (domain.Date, bool) {
	if len(ix.dates) == 0 {
		return domain.Date{}, false
	}
	return ix.dates[0], true
}

// Last returns the latest event date.
func (ix *TimelineIndex) Last() (domain.Date, bool) {
	if len(ix.dates) == 0 {
		return domain.Date{}, false
	}
	return ix.dates[len(ix.dates)-1], true
}

// Jump returns the nearest event date on or after target (Forward) or on
// or before it (Backward). False when no date lies in that direction.
func (ix *TimelineIndex) Jump(target domain.Date, dir domain.Direction) (domain.Date, bool) {
	i, found := slices.BinarySearchFunc(ix.dates, target, domain.Date.Compare)
	if found {
		return ix.dates[i], true
	}
	if dir == domain.Backward {
		i--
	}
	if i < 0 || i >= len(ix.dates) {
		return domain.Date{}, false
	}
	return ix.dates[i], true
}

// Cursor positions a cursor at selected. A date without events snaps to
// the nearest following date, or the nearest preceding one at the end.
// A zero date gives a cursor with no selection.
func (ix *TimelineIndex) Cursor(selected domain.Date) domain.TimelineCursor {
	c := domain.TimelineCursor{Dates: ix.Dates()}
	if selected.IsZero() {
		return c
	}
	if d, ok := ix.Jump(selected, domain.Forward); ok {
		c.Selected = d
	} else if d, ok := ix.Jump(selected, domain.Backward); ok {
		c.Selected = d
	}
	return c
}

// Next moves to the following date. Without a selection it selects the
// first date. At the last date the cursor is returned unchanged.
func (ix *TimelineIndex) Next(c domain.TimelineCursor) domain.TimelineCursor {
	var d domain.Date
	var ok bool
	if c.HasSelection() {
		d, ok = ix.Jump(c.Selected.AddDays(1), domain.Forward)
	} else {
		d, ok = ix.First()
	}
	if !ok {
		return c
	}
	return domain.TimelineCursor{Selected: d, Dates: ix.Dates()}
}

// Prev moves to the preceding date. At the first date, or without a
// selection, the cursor is returned unchanged.
func (ix *TimelineIndex) Prev(c domain.TimelineCursor) domain.TimelineCursor {
	if !c.HasSelection() {
		return c
	}
	d, ok := ix.Jump(c.Selected.AddDays(-1), domain.Backward)
	if !ok {
		return c
	}
	return domain.TimelineCursor{Selected: d, Dates: ix.Dates()}
}

// EventsOn returns the events of one date.
func (ix *TimelineIndex) EventsOn(date domain.Date) []domain.MedicalEvent {
	return cloneEvents(ix.byDate[date])
}

// EventsWithin returns events at most days away from date, in order.
func (ix *TimelineIndex) EventsWithin(date domain.Date, days int) []domain.MedicalEvent {
	if days < 0 {
		days = -days
	}
	from, to := date.AddDays(-days), date.AddDays(days)
	start, _ := slices.BinarySearchFunc(ix.dates, from, domain.Date.Compare)
	var out []domain.MedicalEvent
	for _, d := range ix.dates[start:] {
		if d.After(to) {
			break
		}
		out = append(out, cloneEvents(ix.byDate[d])...)
	}
	return out
}

// MedicationsOverlapping returns the courses that share at least one day
// with r. Open courses extend indefinitely.
func (ix *TimelineIndex) MedicationsOverlapping(r domain.DateRange) []domain.Medication {
	var out []domain.Medication
	for _, m := range ix.meds {
		if !r.IsOpen() && m.Period.Start.After(r.End) {
			break
		}
		if m.Period.Overlaps(r) {
			out = append(out, m.Clone())
		}
	}
	return out
}

// MedicationsOn returns the courses running on date.
func (ix *TimelineIndex) MedicationsOn(date domain.Date) []domain.Medication {
	return ix.MedicationsOverlapping(domain.DateRange{Start: date, End: date})
}

// Medications returns every active course ordered by start date.
func (ix *TimelineIndex) Medications() []domain.Medication {
	out := make([]domain.Medication, len(ix.meds))
	for i, m := range ix.meds {
		out[i] = m.Clone()
	}
	return out
}

// Summary describes the indexed timeline. conflicts is the number of
// overlapping courses awaiting review.
func (ix *TimelineIndex) Summary(conflicts int) domain.TimelineSummary {
	s := domain.TimelineSummary{Conflicts: conflicts, Medications: len(ix.meds)}
	for _, d := range ix.dates {
		s.Events = append(s.Events, cloneEvents(ix.byDate[d])...)
	}
	s.First, _ = ix.First()
	s.Last, _ = ix.Last()

	var ingredients []string
	for _, m := range ix.meds {
		if m.Period.IsOpen() {
			s.Ongoing++
		}
		name := m.ActiveIngredient
		if name == "" {
			name = m.Name
		}
		ingredients = append(ingredients, name)
	}
	s.Ingredients = domain.UnionSorted(nil, ingredients)
	return s
}

func cloneEvents(events []domain.MedicalEvent) []domain.MedicalEvent {
	if events == nil {
		return nil
	}
	out := make([]domain.MedicalEvent, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// Ensure TimelineService implements the interface.
var _ driving.TimelineService = (*TimelineService)(nil)

// TimelineService answers queries against the keeper's latest snapshot.
// Each call sees one consistent snapshot; reconciliation running at the
// same time publishes a new one without disturbing readers.
type TimelineService struct {
	keeper *RecordKeeper
}

// NewTimelineService creates a timeline service over keeper.
func NewTimelineService(keeper *RecordKeeper) *TimelineService {
	return &TimelineService{keeper: keeper}
}

func (s *TimelineService) index() *TimelineIndex {
	return s.keeper.Snapshot().Index()
}

// Dates returns the distinct event dates, ascending.
func (s *TimelineService) Dates() []domain.Date {
	return s.index().Dates()
}

// Jump returns the nearest event date in the given direction.
func (s *TimelineService) Jump(target domain.Date, dir domain.Direction) (domain.Date, bool) {
	return s.index().Jump(target, dir)
}

// Cursor positions a cursor at selected.
func (s *TimelineService) Cursor(selected domain.Date) domain.TimelineCursor {
	return s.index().Cursor(selected)
}

// Next moves the cursor forward.
func (s *TimelineService) Next(c domain.TimelineCursor) domain.TimelineCursor {
	return s.index().Next(c)
}

// Prev moves the cursor back.
func (s *TimelineService) Prev(c domain.TimelineCursor) domain.TimelineCursor {
	return s.index().Prev(c)
}

// EventsOn returns the active events of one date.
func (s *TimelineService) EventsOn(date domain.Date) []domain.MedicalEvent {
	return s.index().EventsOn(date)
}

// EventsWithin returns active events near date.
func (s *TimelineService) EventsWithin(date domain.Date, days int) []domain.MedicalEvent {
	return s.index().EventsWithin(date, days)
}

// MedicationsOverlapping returns active courses sharing a day with r.
func (s *TimelineService) MedicationsOverlapping(r domain.DateRange) []domain.Medication {
	return s.index().MedicationsOverlapping(r)
}

// Record returns a copy of the latest published record.
func (s *TimelineService) Record() domain.Record {
	return s.keeper.Snapshot().Record.Clone()
}

// Summary describes the whole timeline.
func (s *TimelineService) Summary() domain.TimelineSummary {
	snap := s.keeper.Snapshot()
	return snap.Index().Summary(len(OverlappingCourses(snap.Record)))
}
