package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() Record {
	return Record{
		Events: []MedicalEvent{
			{ID: "e1", Date: MustDate(2023, time.March, 1), Title: "Hemograma", Confidence: 0.9, Provenance: ProvenanceMachine},
			{ID: "e2", Date: MustDate(2023, time.March, 1), Title: "Hemograma", Confidence: 0.7, Provenance: ProvenanceMachine, SupersededBy: "e1"},
		},
		Medications: []Medication{
			{
				ID: "m1", Name: "Vfend", ActiveIngredient: "Voriconazol",
				Period:     DateRange{Start: MustDate(2023, time.March, 1), End: MustDate(2023, time.March, 10)},
				Confidence: 0.8, Provenance: ProvenanceMachine,
			},
		},
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
		reason string
	}{
		{"valid", func(*Record) {}, ""},
		{"zero date", func(r *Record) { r.Events[0].Date = Date{} }, "no date"},
		{"confidence above one", func(r *Record) { r.Events[0].Confidence = 1.2 }, "outside [0,1]"},
		{"duplicate event id", func(r *Record) { r.Events[1].ID = "e1"; r.Events[1].SupersededBy = "" }, "duplicate event id"},
		{"dangling supersession", func(r *Record) { r.Events[1].SupersededBy = "ghost" }, "unknown event"},
		{"medication start after end", func(r *Record) {
			r.Medications[0].Period.End = MustDate(2023, time.February, 1)
		}, "ends before it starts"},
		{"medication without name", func(r *Record) {
			r.Medications[0].Name = ""
			r.Medications[0].ActiveIngredient = " "
		}, "neither name nor ingredient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptState))
			var cse *CorruptStateError
			require.True(t, errors.As(err, &cse))
			assert.Contains(t, cse.Reason, tt.reason)
		})
	}
}

func TestRecord_ActiveAndClone(t *testing.T) {
	r := validRecord()
	r.Events[0].Keywords = []string{"sangue"}

	active := r.ActiveEvents()
	require.Len(t, active, 1)
	assert.Equal(t, "e1", active[0].ID)

	clone := r.Clone()
	clone.Events[0].Keywords[0] = "changed"
	assert.Equal(t, "sangue", r.Events[0].Keywords[0])

	r.Medications[0].Archived = true
	assert.Empty(t, r.ActiveMedications())
}

func TestFoldKey(t *testing.T) {
	assert.Equal(t, "voriconazol", FoldKey("  VORICONAZOL "))
	assert.Equal(t, "anfotericina b", FoldKey("", "Anfotericina  B"))
	assert.Equal(t, "acido folico", FoldKey("Ácido Fólico"))
	assert.Equal(t, "cefalexina monoidratada", FoldKey("Céfalêxina Mônoidratada"))
	assert.Equal(t, "nao", FoldKey("NÃO"))
	assert.Equal(t, "sulfato de neomicina", FoldKey("Sulfato de Neomicina"))
	assert.Equal(t, "ibuprofeno", FoldKey("Ibuprofeno\u0301"), "combining marks are dropped")
	assert.Equal(t, "zolpidem", FoldKey("Žolpidem"), "letters outside Portuguese fold too")
	assert.Equal(t, "", FoldKey("", " "))
}

func TestUnionSorted(t *testing.T) {
	got := UnionSorted([]string{"b", "a", " "}, []string{"c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestConflict_Unwrap(t *testing.T) {
	c := Conflict{Kind: ConflictOverlappingCourse, RecordIDs: []string{"m1", "m2"}, Detail: "partial overlap"}
	assert.ErrorIs(t, c, ErrOverlappingCourse)
	assert.Contains(t, c.Error(), "m1,m2")

	joined := ConflictsError([]Conflict{c, {Kind: ConflictUnanchoredFact, SourceFile: "a.pdf"}})
	assert.ErrorIs(t, joined, ErrUnanchoredFact)
	assert.ErrorIs(t, joined, ErrOverlappingCourse)
	assert.NoError(t, ConflictsError(nil))
}
