package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Provenance records who produced a fact.
type Provenance string

// Provenance values.
const (
	// ProvenanceMachine marks facts produced by extraction.
	ProvenanceMachine Provenance = "machine"

	// ProvenanceHuman marks facts entered or corrected by a person.
	ProvenanceHuman Provenance = "human"

	// ProvenanceMerged marks facts folded from more than one source.
	ProvenanceMerged Provenance = "merged"
)

// IsValid returns true if the provenance is recognised.
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceMachine, ProvenanceHuman, ProvenanceMerged:
		return true
	default:
		return false
	}
}

// MedicalEvent is a dated clinical fact on the timeline
// (an exam, a procedure, a consultation).
type MedicalEvent struct {
	// ID is stable across reconciliations.
	ID string

	// Date anchors the event. Always a valid calendar date.
	Date Date

	// Title is a short label ("Hemograma completo").
	Title string

	// Description summarises the finding.
	Description string

	// Notes holds the longer clinical narrative, if any.
	Notes string

	// Keywords is a sorted set.
	Keywords []string

	// SourceFiles lists every file that contributed. Sorted set.
	SourceFiles []string

	// Confidence is the extractor's score in [0,1]. Never fabricated.
	Confidence float64

	// Provenance records who produced the event.
	Provenance Provenance

	// IngestSeq is the submission order of the source that won the merge.
	// Lower means ingested earlier.
	IngestSeq int64

	// SupersededBy is the ID of the event that replaced this one.
	// Empty while the event is active.
	SupersededBy string

	// NoteArtifactID links to the editable narrative artifact, if any.
	NoteArtifactID string

	// Own keeps what this event's source contributed while the event
	// carries a merged view. Nil for unmerged and superseded events.
	Own *EventFacts
}

// EventFacts are the fields of an event that a merge rewrites.
type EventFacts struct {
	Keywords       []string
	SourceFiles    []string
	Provenance     Provenance
	NoteArtifactID string
}

// Active reports whether the event has not been superseded.
func (e MedicalEvent) Active() bool {
	return e.SupersededBy == ""
}

// SimilarityText is the text compared when deciding duplicates.
func (e MedicalEvent) SimilarityText() string {
	return strings.ToLower(strings.TrimSpace(e.Title + " " + e.Description))
}

// Validate checks the event's own invariants.
func (e MedicalEvent) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: event without id", ErrInvalidInput)
	case e.Date.IsZero():
		return fmt.Errorf("%w: event %s has no date", ErrInvalidInput, e.ID)
	case e.Confidence < 0 || e.Confidence > 1:
		return fmt.Errorf("%w: event %s confidence %.3f outside [0,1]", ErrInvalidInput, e.ID, e.Confidence)
	case !e.Provenance.IsValid():
		return fmt.Errorf("%w: event %s provenance %q", ErrInvalidInput, e.ID, e.Provenance)
	case e.SupersededBy == e.ID:
		return fmt.Errorf("%w: event %s supersedes itself", ErrInvalidInput, e.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (e MedicalEvent) Clone() MedicalEvent {
	e.Keywords = slices.Clone(e.Keywords)
	e.SourceFiles = slices.Clone(e.SourceFiles)
	if e.Own != nil {
		own := *e.Own
		own.Keywords = slices.Clone(own.Keywords)
		own.SourceFiles = slices.Clone(own.SourceFiles)
		e.Own = &own
	}
	return e
}

// Original returns the event as its source contributed it, undoing any
// merged view.
func (e MedicalEvent) Original() MedicalEvent {
	e = e.Clone()
	if e.Own != nil {
		e.Keywords = e.Own.Keywords
		e.SourceFiles = e.Own.SourceFiles
		e.Provenance = e.Own.Provenance
		e.NoteArtifactID = e.Own.NoteArtifactID
		e.Own = nil
	}
	return e
}

// Facts snapshots the fields a merge rewrites.
func (e MedicalEvent) Facts() *EventFacts {
	return &EventFacts{
		Keywords:       slices.Clone(e.Keywords),
		SourceFiles:    slices.Clone(e.SourceFiles),
		Provenance:     e.Provenance,
		NoteArtifactID: e.NoteArtifactID,
	}
}

// UnionSorted merges two string sets, dropping blanks and duplicates.
// The result is sorted.
func UnionSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
