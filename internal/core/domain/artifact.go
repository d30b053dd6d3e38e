package domain

import (
	"strings"
	"time"
)

// Origin records who produced a text segment.
type Origin string

// Segment origins.
const (
	OriginMachine  Origin = "machine"
	OriginHuman    Origin = "human"
	OriginApproved Origin = "approved"
)

// TextSegment is a run of artifact text with a single origin.
type TextSegment struct {
	Text     string
	Origin   Origin
	EditedBy string
	EditedAt time.Time
}

// AuditAction names an entry in an artifact's audit trail.
type AuditAction string

// Audit actions.
const (
	AuditCreated     AuditAction = "created"
	AuditEdited      AuditAction = "edited"
	AuditApproved    AuditAction = "approved"
	AuditReopened    AuditAction = "reopened"
	AuditReprocessed AuditAction = "reprocessed"
)

// AuditEntry records who did what to an artifact and when.
type AuditEntry struct {
	Action AuditAction
	Author string
	At     time.Time
}

// Artifact is an editable narrative text (a clinical note or summary)
// whose every range carries provenance.
type Artifact struct {
	ID string

	// Segments in text order. Adjacent segments with the same origin are
	// kept separate.
	Segments []TextSegment

	Audit []AuditEntry

	// Approved is true between an approval and the next edit.
	Approved bool

	// Version increments on every mutation.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Text returns the concatenated text of all segments.
func (a Artifact) Text() string {
	var b strings.Builder
	for _, s := range a.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Len returns the text length in runes.
func (a Artifact) Len() int {
	n := 0
	for _, s := range a.Segments {
		n += len([]rune(s.Text))
	}
	return n
}

// Clone returns a deep copy.
func (a Artifact) Clone() Artifact {
	a.Segments = append([]TextSegment(nil), a.Segments...)
	a.Audit = append([]AuditEntry(nil), a.Audit...)
	return a
}

// PositionRange is a half-open [Start, End) range of rune offsets.
type PositionRange struct {
	Start int
	End   int
}

// Confirmation gates destructive operations.
type Confirmation struct {
	Confirmed bool
	Author    string
}
