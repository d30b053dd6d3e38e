package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// --- Mock implementations for reconciler testing ---

// reconcileMockMatcher scores 1 for equal texts, 0.9 when one contains the
// other and 0 otherwise.
type reconcileMockMatcher struct{}

func (reconcileMockMatcher) Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	switch {
	case a == b:
		return 1
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 0.9
	default:
		return 0
	}
}

func day(y int, m time.Month, d int) domain.Date {
	return domain.MustDate(y, m, d)
}

func eventCandidate(file string, seq int64, index int, date domain.Date, title string, confidence float64) domain.Candidate {
	return domain.Candidate{
		Kind:        domain.FactEvent,
		SourceFile:  file,
		Seq:         seq,
		Index:       index,
		Date:        date,
		Title:       title,
		Description: "resultado dentro da normalidade",
		Keywords:    []string{file},
		Confidence:  confidence,
	}
}

func medCandidate(file string, seq int64, index int, start, end domain.Date, dosage string) domain.Candidate {
	return domain.Candidate{
		Kind:             domain.FactMedication,
		SourceFile:       file,
		Seq:              seq,
		Index:            index,
		Date:             start,
		EndDate:          end,
		Name:             "Vfend",
		ActiveIngredient: "Voriconazol",
		Dosage:           dosage,
		Route:            "IV",
		Confidence:       0.8,
	}
}

func newTestReconciler() *Reconciler {
	return NewReconciler(reconcileMockMatcher{}, 0)
}

func TestReconcile_EmptyCandidatesIsIdentity(t *testing.T) {
	r := newTestReconciler()
	existing, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{
		eventCandidate("a.pdf", 1, 0, day(2023, time.March, 1), "Hemograma", 0.9),
		medCandidate("a.pdf", 1, 1, day(2024, time.January, 20), day(2024, time.March, 20), "200mg"),
	})
	require.NoError(t, err)

	got, conflicts, err := r.Reconcile(existing, nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, existing, got)
}

func TestReconcile_CorruptStateIsFatal(t *testing.T) {
	r := newTestReconciler()
	corrupt := domain.Record{Events: []domain.MedicalEvent{
		{ID: "e1", Title: "sem data", Confidence: 0.5, Provenance: domain.ProvenanceMachine},
	}}

	got, conflicts, err := r.Reconcile(corrupt, []domain.Candidate{
		eventCandidate("a.pdf", 1, 0, day(2023, time.March, 1), "Hemograma", 0.9),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCorruptState))
	var cse *domain.CorruptStateError
	require.True(t, errors.As(err, &cse))
	assert.Equal(t, "e1", cse.RecordID)
	assert.Empty(t, got.Events)
	assert.Nil(t, conflicts)
}

func TestReconcile_MergesNearDuplicateEvents(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.March, 12)

	got, conflicts, err := r.Reconcile(domain.Record{}, []domain.Candidate{
		eventCandidate("a.pdf", 1, 0, date, "Hemograma completo", 0.7),
		eventCandidate("b.pdf", 2, 0, date, "Hemograma completo", 0.9),
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	active := got.ActiveEvents()
	require.Len(t, active, 1)
	merged := active[0]
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, merged.SourceFiles)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, merged.Keywords)
	assert.Equal(t, domain.ProvenanceMerged, merged.Provenance)
	assert.Equal(t, 0.9, merged.Confidence)
	assert.Equal(t, int64(2), merged.IngestSeq)
	assert.Equal(t, FactID(domain.FactEvent, "b.pdf", 2, 0), merged.ID)

	// The lower-confidence record is kept, superseded.
	require.Len(t, got.Events, 2)
	loser, ok := got.Event(FactID(domain.FactEvent, "a.pdf", 1, 0))
	require.True(t, ok)
	assert.Equal(t, merged.ID, loser.SupersededBy)
}

func TestReconcile_TieBreakPrefersEarliestIngested(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.March, 12)
	first := eventCandidate("a.pdf", 1, 0, date, "Raio X de tórax", 0.8)
	first.Description = "sem alterações"
	second := eventCandidate("b.pdf", 2, 0, date, "Raio X de tórax", 0.8)
	second.Description = "sem alterações agudas"

	for _, order := range [][]domain.Candidate{{first, second}, {second, first}} {
		got, _, err := r.Reconcile(domain.Record{}, order)
		require.NoError(t, err)
		active := got.ActiveEvents()
		require.Len(t, active, 1)
		assert.Equal(t, "sem alterações", active[0].Description)
		assert.Equal(t, int64(1), active[0].IngestSeq)
	}
}

func TestReconcile_IncomingWinnerSupersedesExisting(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.May, 2)

	rec, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{
		eventCandidate("low.pdf", 1, 0, date, "Ultrassom abdominal", 0.5),
	})
	require.NoError(t, err)
	oldID := rec.Events[0].ID

	rec, _, err = r.Reconcile(rec, []domain.Candidate{
		eventCandidate("high.pdf", 2, 0, date, "Ultrassom abdominal", 0.95),
	})
	require.NoError(t, err)

	old, ok := rec.Event(oldID)
	require.True(t, ok)
	assert.NotEmpty(t, old.SupersededBy)

	active := rec.ActiveEvents()
	require.Len(t, active, 1)
	assert.Equal(t, old.SupersededBy, active[0].ID)
	assert.Equal(t, []string{"high.pdf", "low.pdf"}, active[0].SourceFiles)
}

func TestReconcile_SupersessionFollowsNewWinner(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.May, 2)

	rec, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{
		eventCandidate("a.pdf", 1, 0, date, "Ecocardiograma", 0.6),
		eventCandidate("b.pdf", 2, 0, date, "Ecocardiograma", 0.7),
		eventCandidate("c.pdf", 3, 0, date, "Ecocardiograma", 0.8),
	})
	require.NoError(t, err)

	winner := FactID(domain.FactEvent, "c.pdf", 3, 0)
	for _, e := range rec.Events {
		if e.ID != winner {
			assert.Equal(t, winner, e.SupersededBy, "event %s", e.ID)
		}
	}
}

func TestReconcile_DistinctEventsDoNotMerge(t *testing.T) {
	r := newTestReconciler()

	got, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{
		eventCandidate("a.pdf", 1, 0, day(2023, time.March, 12), "Hemograma", 0.9),
		eventCandidate("a.pdf", 1, 1, day(2023, time.March, 13), "Hemograma", 0.9),
		eventCandidate("a.pdf", 1, 2, day(2023, time.March, 12), "Tomografia", 0.9),
	})
	require.NoError(t, err)
	assert.Len(t, got.ActiveEvents(), 3)

	// Canonical order: by date, then ingest order, then ID.
	assert.Equal(t, day(2023, time.March, 12), got.Events[0].Date)
	assert.Equal(t, day(2023, time.March, 13), got.Events[2].Date)
}

func TestReconcile_MalformedCandidatesAreReported(t *testing.T) {
	r := newTestReconciler()
	good := eventCandidate("a.pdf", 1, 0, day(2023, time.March, 12), "Hemograma", 0.9)
	undated := eventCandidate("a.pdf", 1, 1, domain.Date{}, "Consulta", 0.9)
	overconfident := eventCandidate("a.pdf", 1, 2, day(2023, time.March, 12), "Consulta", 1.5)
	backwards := medCandidate("a.pdf", 1, 3, day(2024, time.March, 1), day(2024, time.February, 1), "")
	nameless := medCandidate("a.pdf", 1, 4, day(2024, time.March, 1), domain.Date{}, "")
	nameless.Name, nameless.ActiveIngredient = "", ""

	got, conflicts, err := r.Reconcile(domain.Record{}, []domain.Candidate{good, undated, overconfident, backwards, nameless})
	require.NoError(t, err)
	assert.Len(t, got.Events, 1)
	assert.Empty(t, got.Medications)

	require.Len(t, conflicts, 4)
	assert.Equal(t, domain.ConflictUnanchoredFact, conflicts[0].Kind)
	assert.Equal(t, 1, conflicts[0].Index)
	assert.ErrorIs(t, conflicts[0], domain.ErrUnanchoredFact)
	for _, c := range conflicts[1:] {
		assert.Equal(t, domain.ConflictMalformedFact, c.Kind)
	}
}

func TestReconcile_ContainedCoursesMerge(t *testing.T) {
	r := newTestReconciler()
	outer := medCandidate("a.pdf", 1, 0, day(2024, time.January, 20), day(2024, time.March, 20), "")
	inner := medCandidate("b.pdf", 2, 0, day(2024, time.February, 15), day(2024, time.March, 10), "200mg 12/12h")

	for name, order := range map[string][]domain.Candidate{
		"outer first": {outer, inner},
		"inner first": {inner, outer},
	} {
		t.Run(name, func(t *testing.T) {
			var rec domain.Record
			for _, c := range order {
				var conflicts []domain.Conflict
				var err error
				rec, conflicts, err = r.Reconcile(rec, []domain.Candidate{c})
				require.NoError(t, err)
				assert.Empty(t, conflicts)
			}

			active := rec.ActiveMedications()
			require.Len(t, active, 1)
			m := active[0]
			assert.Equal(t, day(2024, time.January, 20), m.Period.Start)
			assert.Equal(t, day(2024, time.March, 20), m.Period.End)
			assert.Equal(t, "200mg 12/12h", m.Dosage)
			assert.Equal(t, []string{"a.pdf", "b.pdf"}, m.SourceFiles)
			assert.Equal(t, "voriconazol-1", m.CycleID)
			assert.Equal(t, FactID(domain.FactMedication, "a.pdf", 1, 0), m.ID)
		})
	}
}

func TestReconcile_PartialOverlapIsConflict(t *testing.T) {
	r := newTestReconciler()
	first := medCandidate("a.pdf", 1, 0, day(2024, time.January, 20), day(2024, time.March, 20), "200mg")
	second := medCandidate("b.pdf", 2, 0, day(2024, time.February, 15), day(2024, time.April, 1), "300mg")

	rec, conflicts, err := r.Reconcile(domain.Record{}, []domain.Candidate{first, second})
	require.NoError(t, err)

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, domain.ConflictOverlappingCourse, c.Kind)
	assert.ErrorIs(t, c, domain.ErrOverlappingCourse)
	assert.Equal(t, "b.pdf", c.SourceFile)
	assert.Len(t, c.RecordIDs, 2)

	active := rec.ActiveMedications()
	require.Len(t, active, 2)
	assert.Equal(t, active[0].CycleID, active[1].CycleID)

	assert.Len(t, OverlappingCourses(rec), 1)
}

func TestReconcile_OpenCourseContainsLaterCourse(t *testing.T) {
	r := newTestReconciler()
	ongoing := medCandidate("a.pdf", 1, 0, day(2024, time.January, 1), domain.Date{}, "")
	closed := medCandidate("b.pdf", 2, 0, day(2024, time.May, 1), day(2024, time.May, 30), "100mg")

	rec, conflicts, err := r.Reconcile(domain.Record{}, []domain.Candidate{ongoing, closed})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	active := rec.ActiveMedications()
	require.Len(t, active, 1)
	assert.True(t, active[0].Period.IsOpen())
	assert.Equal(t, "100mg", active[0].Dosage)
}

func TestAssignCycles(t *testing.T) {
	med := func(id, ingredient string, start, end domain.Date) domain.Medication {
		return domain.Medication{
			ID: id, ActiveIngredient: ingredient,
			Period:     domain.DateRange{Start: start, End: end},
			Provenance: domain.ProvenanceMachine,
		}
	}
	meds := []domain.Medication{
		med("m1", "Voriconazol", day(2024, time.January, 1), day(2024, time.January, 10)),
		med("m2", "Voriconazol", day(2024, time.January, 11), day(2024, time.January, 20)),
		med("m3", "Voriconazol", day(2024, time.February, 1), day(2024, time.February, 5)),
		med("m4", "Voriconazol", day(2024, time.March, 1), domain.Date{}),
		med("m5", "Voriconazol", day(2025, time.March, 1), day(2025, time.March, 3)),
		med("m6", "Anfotericina B", day(2024, time.January, 1), day(2024, time.January, 3)),
		med("m7", "Voriconazol", day(2023, time.January, 1), day(2023, time.January, 3)),
	}
	meds[6].Archived = true
	meds[6].CycleID = "stale"

	AssignCycles(meds)

	assert.Equal(t, "voriconazol-1", meds[0].CycleID, "first course")
	assert.Equal(t, "voriconazol-1", meds[1].CycleID, "adjacent course joins")
	assert.Equal(t, "voriconazol-2", meds[2].CycleID, "gap starts a new cycle")
	assert.Equal(t, "voriconazol-3", meds[3].CycleID)
	assert.Equal(t, "voriconazol-3", meds[4].CycleID, "open course absorbs later ones")
	assert.Equal(t, "anfotericina-b-1", meds[5].CycleID)
	assert.Empty(t, meds[6].CycleID, "archived courses carry no cycle")
}

func TestReconcile_ArrivalOrderDoesNotChangeActiveRecord(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.June, 1)
	batches := [][]domain.Candidate{
		{
			eventCandidate("a.pdf", 1, 0, date, "Hemograma completo", 0.7),
			medCandidate("a.pdf", 1, 1, day(2024, time.January, 20), day(2024, time.March, 20), ""),
		},
		{
			eventCandidate("b.pdf", 2, 0, date, "Hemograma completo", 0.9),
			eventCandidate("b.pdf", 2, 1, day(2023, time.June, 2), "Consulta", 0.9),
			medCandidate("b.pdf", 2, 1, day(2024, time.February, 15), day(2024, time.March, 10), "200mg"),
		},
		{
			eventCandidate("c.pdf", 3, 0, date, "Hemograma completo", 0.9),
			medCandidate("c.pdf", 3, 1, day(2024, time.April, 1), day(2024, time.April, 5), "100mg"),
		},
	}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var want domain.Record
	for n, order := range orders {
		var rec domain.Record
		for _, i := range order {
			var err error
			rec, _, err = r.Reconcile(rec, batches[i])
			require.NoError(t, err)
		}
		active := domain.Record{Events: rec.ActiveEvents(), Medications: rec.ActiveMedications()}
		if n == 0 {
			want = active
			continue
		}
		assert.Equal(t, want, active, "order %v", order)
	}

	require.Len(t, want.Events, 2)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, want.Events[0].SourceFiles)
	assert.Equal(t, int64(2), want.Events[0].IngestSeq, "equal confidence resolves to earliest ingested")
	require.Len(t, want.Medications, 2)
}

var threeWayOrders = [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

// reconcileInOrder feeds one candidate per batch in the given order.
func reconcileInOrder(t *testing.T, r *Reconciler, candidates []domain.Candidate, order []int) domain.Record {
	t.Helper()
	var rec domain.Record
	for _, i := range order {
		var err error
		rec, _, err = r.Reconcile(rec, []domain.Candidate{candidates[i]})
		require.NoError(t, err)
	}
	return rec
}

func TestReconcile_CourseInsideTwoOverlappingCourses(t *testing.T) {
	r := newTestReconciler()
	candidates := []domain.Candidate{
		medCandidate("a.pdf", 1, 0, day(2024, time.January, 20), day(2024, time.March, 20), ""),
		medCandidate("b.pdf", 2, 0, day(2024, time.February, 15), day(2024, time.April, 1), ""),
		medCandidate("c.pdf", 3, 0, day(2024, time.February, 15), day(2024, time.March, 10), "200mg"),
	}
	idA := FactID(domain.FactMedication, "a.pdf", 1, 0)
	idB := FactID(domain.FactMedication, "b.pdf", 2, 0)
	idC := FactID(domain.FactMedication, "c.pdf", 3, 0)

	want := reconcileInOrder(t, r, candidates, threeWayOrders[0])
	for _, order := range threeWayOrders[1:] {
		assert.Equal(t, want, reconcileInOrder(t, r, candidates, order), "order %v", order)
	}

	active := want.ActiveMedications()
	require.Len(t, active, 2, "partially overlapping parents stay apart")
	a, ok := want.Medication(idA)
	require.True(t, ok)
	assert.True(t, a.Active())
	assert.Equal(t, []string{"a.pdf"}, a.SourceFiles)
	assert.Empty(t, a.Dosage)
	assert.Nil(t, a.Own)

	b, ok := want.Medication(idB)
	require.True(t, ok)
	assert.True(t, b.Active())
	assert.Equal(t, day(2024, time.April, 1), b.Period.End)
	assert.Equal(t, []string{"b.pdf", "c.pdf"}, b.SourceFiles, "tightest container absorbs the inner course")
	assert.Equal(t, "200mg", b.Dosage)

	c, ok := want.Medication(idC)
	require.True(t, ok)
	assert.Equal(t, idB, c.SupersededBy)

	assert.Len(t, OverlappingCourses(want), 1)
}

func TestReconcile_InnerCourseMovesToTighterContainer(t *testing.T) {
	r := newTestReconciler()
	outer := medCandidate("a.pdf", 1, 0, day(2024, time.January, 1), day(2024, time.June, 30), "")
	inner := medCandidate("c.pdf", 3, 0, day(2024, time.March, 1), day(2024, time.March, 10), "200mg")
	inner.Notes = "ajuste renal"
	middle := medCandidate("b.pdf", 2, 0, day(2024, time.February, 15), day(2024, time.April, 1), "")

	rec, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{outer})
	require.NoError(t, err)
	rec, _, err = r.Reconcile(rec, []domain.Candidate{inner})
	require.NoError(t, err)
	root := rec.ActiveMedications()[0]
	require.NotNil(t, root.Own)
	assert.Equal(t, "200mg", root.Dosage)

	rec, _, err = r.Reconcile(rec, []domain.Candidate{middle})
	require.NoError(t, err)

	active := rec.ActiveMedications()
	require.Len(t, active, 1)
	assert.Equal(t, FactID(domain.FactMedication, "a.pdf", 1, 0), active[0].ID)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, active[0].SourceFiles)
	assert.Equal(t, "ajuste renal", active[0].Notes)

	mid, ok := rec.Medication(FactID(domain.FactMedication, "b.pdf", 2, 0))
	require.True(t, ok)
	assert.Equal(t, active[0].ID, mid.SupersededBy)
	assert.Nil(t, mid.Own, "superseded courses hold only their own facts")
	assert.Equal(t, []string{"b.pdf"}, mid.SourceFiles)
	assert.Empty(t, mid.Dosage)
}

func TestReconcile_ArchivedCourseKeepsItsAbsorbedCourses(t *testing.T) {
	r := newTestReconciler()
	outer := medCandidate("a.pdf", 1, 0, day(2024, time.January, 1), day(2024, time.June, 30), "")
	inner := medCandidate("b.pdf", 2, 0, day(2024, time.March, 1), day(2024, time.March, 10), "200mg")
	later := medCandidate("c.pdf", 3, 0, day(2024, time.March, 5), day(2024, time.March, 8), "")

	rec, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{outer, inner})
	require.NoError(t, err)
	for i := range rec.Medications {
		if rec.Medications[i].Active() {
			rec.Medications[i].Archived = true
		}
	}

	rec, _, err = r.Reconcile(rec, []domain.Candidate{later})
	require.NoError(t, err)

	active := rec.ActiveMedications()
	require.Len(t, active, 1)
	assert.Equal(t, FactID(domain.FactMedication, "c.pdf", 3, 0), active[0].ID)
	absorbed, ok := rec.Medication(FactID(domain.FactMedication, "b.pdf", 2, 0))
	require.True(t, ok)
	assert.Equal(t, FactID(domain.FactMedication, "a.pdf", 1, 0), absorbed.SupersededBy)
}

func TestReconcile_ChainedSimilarEventsMergeInAnyOrder(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.June, 1)
	candidates := []domain.Candidate{
		eventCandidate("a.pdf", 1, 0, date, "Hemograma", 0.7),
		eventCandidate("b.pdf", 2, 0, date, "Hemograma completo", 0.8),
		eventCandidate("c.pdf", 3, 0, date, "Completo", 0.9),
	}
	for i := range candidates {
		candidates[i].Description = ""
	}

	want := reconcileInOrder(t, r, candidates, threeWayOrders[0])
	for _, order := range threeWayOrders[1:] {
		assert.Equal(t, want, reconcileInOrder(t, r, candidates, order), "order %v", order)
	}

	active := want.ActiveEvents()
	require.Len(t, active, 1, "similarity chains through the middle event")
	assert.Equal(t, "Completo", active[0].Title)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, active[0].SourceFiles)
	require.NotNil(t, active[0].Own)
	assert.Equal(t, []string{"c.pdf"}, active[0].Own.SourceFiles)

	for _, e := range want.Events {
		if e.ID != active[0].ID {
			assert.Equal(t, active[0].ID, e.SupersededBy)
			assert.Len(t, e.SourceFiles, 1, "event %s keeps only its own source", e.ID)
		}
	}
}

func TestReconcile_FormerWinnerRestoresItsOwnFacts(t *testing.T) {
	r := newTestReconciler()
	date := day(2023, time.June, 1)
	first := eventCandidate("a.pdf", 1, 0, date, "Tomografia", 0.8)
	second := eventCandidate("b.pdf", 2, 0, date, "Tomografia", 0.6)
	third := eventCandidate("c.pdf", 3, 0, date, "Tomografia", 0.95)

	rec, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{first, second})
	require.NoError(t, err)
	rec, _, err = r.Reconcile(rec, []domain.Candidate{third})
	require.NoError(t, err)

	former, ok := rec.Event(FactID(domain.FactEvent, "a.pdf", 1, 0))
	require.True(t, ok)
	assert.Equal(t, FactID(domain.FactEvent, "c.pdf", 3, 0), former.SupersededBy)
	assert.Equal(t, []string{"a.pdf"}, former.SourceFiles)
	assert.Equal(t, []string{"a.pdf"}, former.Keywords)
	assert.Equal(t, domain.ProvenanceMachine, former.Provenance)
	assert.Nil(t, former.Own)
}

func TestReconcile_RedeliveryIsIgnored(t *testing.T) {
	r := newTestReconciler()
	c := eventCandidate("a.pdf", 1, 0, day(2023, time.March, 12), "Hemograma", 0.9)

	once, _, err := r.Reconcile(domain.Record{}, []domain.Candidate{c})
	require.NoError(t, err)
	twice, _, err := r.Reconcile(once, []domain.Candidate{c})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestNewReconciler_Threshold(t *testing.T) {
	assert.Equal(t, DefaultSimilarityThreshold, NewReconciler(reconcileMockMatcher{}, 0).Threshold())
	assert.Equal(t, DefaultSimilarityThreshold, NewReconciler(reconcileMockMatcher{}, 1.5).Threshold())
	assert.Equal(t, 0.95, NewReconciler(reconcileMockMatcher{}, 0.95).Threshold())
}
