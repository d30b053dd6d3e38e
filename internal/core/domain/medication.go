package domain

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Medication is one course of a drug in the administration ledger.
type Medication struct {
	ID string

	// Name is the commercial or prescribed name.
	Name string

	// ActiveIngredient is the generic substance. Courses are grouped by it.
	ActiveIngredient string

	// Period is the administration window. An open end means ongoing.
	Period DateRange

	Dosage string
	Route  string
	Notes  string

	// CycleID groups contiguous or overlapping courses of the same
	// ingredient. Recomputed on every reconciliation.
	CycleID string

	// SourceFiles lists every file that contributed. Sorted set.
	SourceFiles []string

	// Confidence is the extractor's score in [0,1].
	Confidence float64

	Provenance Provenance

	// IngestSeq is the submission order of the contributing source.
	IngestSeq int64

	// Archived marks a logically deleted course. Archived courses are
	// excluded from cycles and overlap queries but kept for audit.
	Archived bool

	// SupersededBy is the ID of the course that absorbed this one.
	SupersededBy string

	// Own keeps what this course's source contributed while the course
	// carries a merged view. Nil for unmerged and superseded courses.
	Own *CourseFacts
}

// CourseFacts are the fields of a course that a merge rewrites.
type CourseFacts struct {
	Name             string
	ActiveIngredient string
	Dosage           string
	Route            string
	Notes            string
	SourceFiles      []string
	Provenance       Provenance
}

// Active reports whether the course is neither superseded nor archived.
func (m Medication) Active() bool {
	return m.SupersededBy == "" && !m.Archived
}

// IngredientKey is the grouping key: the case- and accent-folded
// ingredient, falling back to the name.
func (m Medication) IngredientKey() string {
	return FoldKey(m.ActiveIngredient, m.Name)
}

// DisplayName returns the name, falling back to the ingredient.
func (m Medication) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ActiveIngredient
}

// Validate checks the course's own invariants.
func (m Medication) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: medication without id", ErrInvalidInput)
	}
	if strings.TrimSpace(m.Name) == "" && strings.TrimSpace(m.ActiveIngredient) == "" {
		return fmt.Errorf("%w: medication %s has neither name nor ingredient", ErrInvalidInput, m.ID)
	}
	if err := m.Period.Validate(); err != nil {
		return fmt.Errorf("medication %s: %w", m.ID, err)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: medication %s confidence %.3f outside [0,1]", ErrInvalidInput, m.ID, m.Confidence)
	}
	if !m.Provenance.IsValid() {
		return fmt.Errorf("%w: medication %s provenance %q", ErrInvalidInput, m.ID, m.Provenance)
	}
	return nil
}

// Clone returns a deep copy.
func (m Medication) Clone() Medication {
	m.SourceFiles = slices.Clone(m.SourceFiles)
	if m.Own != nil {
		own := *m.Own
		own.SourceFiles = slices.Clone(own.SourceFiles)
		m.Own = &own
	}
	return m
}

// Original returns the course as its source contributed it, undoing any
// merged view.
func (m Medication) Original() Medication {
	m = m.Clone()
	if m.Own != nil {
		m.Name = m.Own.Name
		m.ActiveIngredient = m.Own.ActiveIngredient
		m.Dosage = m.Own.Dosage
		m.Route = m.Own.Route
		m.Notes = m.Own.Notes
		m.SourceFiles = m.Own.SourceFiles
		m.Provenance = m.Own.Provenance
		m.Own = nil
	}
	return m
}

// Facts snapshots the fields a merge rewrites.
func (m Medication) Facts() *CourseFacts {
	return &CourseFacts{
		Name:             m.Name,
		ActiveIngredient: m.ActiveIngredient,
		Dosage:           m.Dosage,
		Route:            m.Route,
		Notes:            m.Notes,
		SourceFiles:      slices.Clone(m.SourceFiles),
		Provenance:       m.Provenance,
	}
}

// FoldKey lowercases, strips accents and collapses whitespace of the first
// non-blank value.
func FoldKey(values ...string) string {
	for _, v := range values {
		v = strings.Join(strings.Fields(strings.ToLower(v)), " ")
		if v == "" {
			continue
		}
		// A transformer keeps state between calls, so each fold gets its own.
		stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if folded, _, err := transform.String(stripMarks, v); err == nil {
			return folded
		}
		return v
	}
	return ""
}
