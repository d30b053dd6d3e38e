package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FactKind distinguishes timeline events from medication courses.
type FactKind string

// Fact kinds.
const (
	FactEvent      FactKind = "event"
	FactMedication FactKind = "medication"
)

// Field names used in RawCandidate.Fields.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldNotes            = "notes"
	FieldKeywords         = "keywords"
	FieldName             = "name"
	FieldActiveIngredient = "active_ingredient"
	FieldDosage           = "dosage"
	FieldRoute            = "route"
	FieldStartDate        = "start_date"
	FieldEndDate          = "end_date"
)

// RawCandidate is an unnormalized fact as returned by an extractor.
type RawCandidate struct {
	Kind FactKind

	// TextSpan is the source excerpt the fact was read from.
	TextSpan string

	// CandidateDate is the date text as found; for medications it
	// mirrors the start date when the extractor gives one.
	CandidateDate string

	// Fields carries the kind-specific values keyed by the Field* names.
	Fields map[string]string

	// Confidence is the extractor's score in [0,1].
	Confidence float64
}

// Field returns the trimmed value of a field.
func (c RawCandidate) Field(name string) string {
	return strings.TrimSpace(c.Fields[name])
}

// Candidate is a normalized fact ready for reconciliation.
type Candidate struct {
	// ID is optional; when empty it is derived from SourceFile, Seq and Index.
	ID string

	Kind FactKind

	// SourceFile is the file the fact came from.
	SourceFile string

	// Seq is the submission order of SourceFile.
	Seq int64

	// Index is the fact's position in its file's extraction output.
	Index int

	// Date anchors an event or starts a course. Zero when unresolved.
	Date Date

	// EndDate closes a course. Zero when ongoing.
	EndDate Date

	Title       string
	Description string
	Notes       string
	Keywords    []string

	Name             string
	ActiveIngredient string
	Dosage           string
	Route            string

	Confidence float64
	Provenance Provenance

	// NoteArtifactID links an event to the artifact holding its notes.
	NoteArtifactID string
}

// Period returns the course window of a medication candidate.
func (c Candidate) Period() DateRange {
	return DateRange{Start: c.Date, End: c.EndDate}
}

// Ref names the candidate in conflict reports.
func (c Candidate) Ref() string {
	return fmt.Sprintf("%s#%d", c.SourceFile, c.Index)
}

// ConflictKind classifies a non-fatal reconciliation finding.
type ConflictKind string

// Conflict kinds.
const (
	ConflictUnanchoredFact    ConflictKind = "unanchored_fact"
	ConflictOverlappingCourse ConflictKind = "overlapping_course"
	ConflictMalformedFact     ConflictKind = "malformed_fact"
)

// Conflict reports a candidate that could not be cleanly reconciled.
// Conflicts are returned alongside the result and never abort a batch.
type Conflict struct {
	Kind       ConflictKind
	SourceFile string
	Index      int

	// RecordIDs lists the records involved (for overlaps: both courses).
	RecordIDs []string

	Detail string
}

// Error implements the error interface so conflicts can be joined and
// matched with errors.Is.
func (c Conflict) Error() string {
	ref := fmt.Sprintf("%s#%d", c.SourceFile, c.Index)
	if c.SourceFile == "" {
		ref = strings.Join(c.RecordIDs, ",")
	}
	return fmt.Sprintf("%s (%s): %s", c.Kind, ref, c.Detail)
}

// Unwrap returns the sentinel for the conflict kind.
func (c Conflict) Unwrap() error {
	switch c.Kind {
	case ConflictUnanchoredFact:
		return ErrUnanchoredFact
	case ConflictOverlappingCourse:
		return ErrOverlappingCourse
	default:
		return ErrMalformedFact
	}
}

// ConflictsError joins conflicts into one error, or nil when empty.
func ConflictsError(conflicts []Conflict) error {
	errs := make([]error, len(conflicts))
	for i, c := range conflicts {
		errs[i] = c
	}
	return errors.Join(errs...)
}
