package mcp

import (
	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// EventOutput is the wire form of a medical event.
type EventOutput struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	SourceFiles []string `json:"source_files"`
	Confidence  float64  `json:"confidence"`
	Provenance  string   `json:"provenance"`
	NoteID      string   `json:"note_id,omitempty"`
}

// MedicationOutput is the wire form of a medication course.
type MedicationOutput struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ActiveIngredient string   `json:"active_ingredient,omitempty"`
	Start            string   `json:"start"`
	End              string   `json:"end,omitempty"`
	Ongoing          bool     `json:"ongoing"`
	Dosage           string   `json:"dosage,omitempty"`
	Route            string   `json:"route,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	CycleID          string   `json:"cycle_id"`
	SourceFiles      []string `json:"source_files"`
	Provenance       string   `json:"provenance"`
}

// JobOutput is the wire form of an ingestion job snapshot.
type JobOutput struct {
	FileID          string           `json:"file_id"`
	Name            string           `json:"name"`
	Stage           string           `json:"stage"`
	Attempt         int              `json:"attempt"`
	ProgressFetch   float64          `json:"progress_fetch"`
	ProgressExtract float64          `json:"progress_extract"`
	Candidates      int              `json:"candidates"`
	Error           string           `json:"error,omitempty"`
	FailedStage     string           `json:"failed_stage,omitempty"`
	Conflicts       []ConflictOutput `json:"conflicts,omitempty"`
}

// ConflictOutput is the wire form of a reconciliation conflict.
type ConflictOutput struct {
	Kind       string   `json:"kind"`
	SourceFile string   `json:"source_file,omitempty"`
	RecordIDs  []string `json:"record_ids,omitempty"`
	Detail     string   `json:"detail"`
}

// NoteOutput is the wire form of a narrative artifact.
type NoteOutput struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Version  int64           `json:"version"`
	Approved bool            `json:"approved"`
	Segments []SegmentOutput `json:"segments"`
}

// SegmentOutput is one provenance run of a note.
type SegmentOutput struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Origin   string `json:"origin"`
	EditedBy string `json:"edited_by,omitempty"`
}

func toEventOutputs(events []domain.MedicalEvent) []EventOutput {
	out := make([]EventOutput, len(events))
	for i, e := range events {
		out[i] = EventOutput{
			ID:          e.ID,
			Date:        e.Date.String(),
			Title:       e.Title,
			Description: e.Description,
			Notes:       e.Notes,
			Keywords:    e.Keywords,
			SourceFiles: e.SourceFiles,
			Confidence:  e.Confidence,
			Provenance:  string(e.Provenance),
			NoteID:      e.NoteArtifactID,
		}
	}
	return out
}

func toMedicationOutputs(meds []domain.Medication) []MedicationOutput {
	out := make([]MedicationOutput, len(meds))
	for i, m := range meds {
		out[i] = MedicationOutput{
			ID:               m.ID,
			Name:             m.Name,
			ActiveIngredient: m.ActiveIngredient,
			Start:            m.Period.Start.String(),
			End:              m.Period.End.String(),
			Ongoing:          m.Period.IsOpen(),
			Dosage:           m.Dosage,
			Route:            m.Route,
			Notes:            m.Notes,
			CycleID:          m.CycleID,
			SourceFiles:      m.SourceFiles,
			Provenance:       string(m.Provenance),
		}
	}
	return out
}

func toConflictOutputs(conflicts []domain.Conflict) []ConflictOutput {
	out := make([]ConflictOutput, len(conflicts))
	for i, c := range conflicts {
		out[i] = ConflictOutput{
			Kind:       string(c.Kind),
			SourceFile: c.SourceFile,
			RecordIDs:  c.RecordIDs,
			Detail:     c.Detail,
		}
	}
	return out
}

func toJobOutput(j domain.IngestionJob) JobOutput {
	return JobOutput{
		FileID:          j.FileID,
		Name:            j.Name,
		Stage:           string(j.Stage),
		Attempt:         j.Attempt,
		ProgressFetch:   j.ProgressFetch,
		ProgressExtract: j.ProgressExtract,
		Candidates:      j.Candidates,
		Error:           j.Error,
		FailedStage:     string(j.FailedStage),
		Conflicts:       toConflictOutputs(j.Conflicts),
	}
}

func toNoteOutput(a *domain.Artifact) NoteOutput {
	out := NoteOutput{
		ID:       a.ID,
		Text:     a.Text(),
		Version:  a.Version,
		Approved: a.Approved,
		Segments: make([]SegmentOutput, len(a.Segments)),
	}
	pos := 0
	for i, seg := range a.Segments {
		n := len([]rune(seg.Text))
		out.Segments[i] = SegmentOutput{
			Start:    pos,
			End:      pos + n,
			Origin:   string(seg.Origin),
			EditedBy: seg.EditedBy,
		}
		pos += n
	}
	return out
}
