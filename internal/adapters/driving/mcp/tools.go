package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/normalisers/dates"
)

// ==================== Timeline tools ====================

// EmptyInput is the input schema for tools without arguments.
type EmptyInput struct{}

// DatesOutput is the output schema for the timeline_dates tool.
type DatesOutput struct {
	Dates []string `json:"dates"`
	Count int      `json:"count"`
}

// EventsInput is the input schema for the timeline_events tool.
type EventsInput struct {
	Date       string `json:"date" jsonschema:"the date to inspect (YYYY-MM-DD or DD/MM/YYYY)"`
	WindowDays int    `json:"window_days,omitempty" jsonschema:"also include events up to this many days before and after"`
}

// EventsOutput is the output schema for the timeline_events tool.
type EventsOutput struct {
	Events []EventOutput `json:"events"`
	Count  int           `json:"count"`
}

// JumpInput is the input schema for the timeline_jump tool.
type JumpInput struct {
	Date      string `json:"date" jsonschema:"the target date"`
	Direction string `json:"direction,omitempty" jsonschema:"forward (default) or backward"`
}

// JumpOutput is the output schema for the timeline_jump tool.
type JumpOutput struct {
	Date    string `json:"date,omitempty"`
	Found   bool   `json:"found"`
	HasPrev bool   `json:"has_prev"`
	HasNext bool   `json:"has_next"`
}

// OverlapInput is the input schema for the medications_overlapping tool.
type OverlapInput struct {
	Start string `json:"start" jsonschema:"first day of the window"`
	End   string `json:"end,omitempty" jsonschema:"last day of the window; empty means open ended"`
}

// MedicationsOutput is the output schema for medication tools.
type MedicationsOutput struct {
	Medications []MedicationOutput `json:"medications"`
	Count       int                `json:"count"`
}

// ==================== Ledger tools ====================

// CloseMedicationInput is the input schema for the medication_close tool.
type CloseMedicationInput struct {
	ID  string `json:"id" jsonschema:"the medication course id"`
	End string `json:"end" jsonschema:"the last day of administration"`
}

// ArchiveMedicationInput is the input schema for the medication_archive tool.
type ArchiveMedicationInput struct {
	ID string `json:"id" jsonschema:"the medication course id"`
}

// ArchiveOutput is the output schema for the medication_archive tool.
type ArchiveOutput struct {
	ID       string `json:"id"`
	Archived bool   `json:"archived"`
}

// ==================== Ingestion tools ====================

// IngestInput is the input schema for the ingest_file tool.
type IngestInput struct {
	Path   string `json:"path" jsonschema:"absolute path of the file to ingest"`
	FileID string `json:"file_id,omitempty" jsonschema:"stable id of the upload; derived from the path when empty"`
}

// JobInput is the input schema for the job_status tool.
type JobInput struct {
	FileID string `json:"file_id" jsonschema:"the upload id"`
}

// JobsOutput is the output schema for the job_list tool.
type JobsOutput struct {
	Jobs []JobOutput `json:"jobs"`
}

// ==================== Note tools ====================

// NoteEditInput is the input schema for the note_edit tool.
type NoteEditInput struct {
	ID     string `json:"id" jsonschema:"the note id"`
	Start  int    `json:"start" jsonschema:"first rune offset to replace"`
	End    int    `json:"end" jsonschema:"rune offset after the replaced range"`
	Text   string `json:"text" jsonschema:"replacement text"`
	Author string `json:"author" jsonschema:"who is editing"`
}

// NoteApproveInput is the input schema for the note_approve tool.
type NoteApproveInput struct {
	ID     string `json:"id" jsonschema:"the note id"`
	Author string `json:"author" jsonschema:"who is approving"`
}

// NoteReprocessInput is the input schema for the note_reprocess tool.
type NoteReprocessInput struct {
	ID      string `json:"id" jsonschema:"the note id"`
	Confirm bool   `json:"confirm" jsonschema:"must be true: reprocessing discards human edits"`
	Author  string `json:"author,omitempty" jsonschema:"who asked for the reprocess"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeline_dates",
		Description: "List the distinct dates that have clinical events, oldest first",
	}, s.handleDates)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeline_events",
		Description: "List the clinical events on a date, optionally with a window of days around it",
	}, s.handleEvents)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeline_jump",
		Description: "Find the nearest event date on or after (or before) a date",
	}, s.handleJump)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "medications_overlapping",
		Description: "List the medication courses administered during a date window",
	}, s.handleOverlapping)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "medication_close",
		Description: "Set the end date of an ongoing medication course",
	}, s.handleCloseMedication)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "medication_archive",
		Description: "Archive a medication course so it no longer appears in the ledger",
	}, s.handleArchiveMedication)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_file",
		Description: "Queue a clinical document, image or recording for extraction",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "job_status",
		Description: "Report the stage and progress of an ingestion job",
	}, s.handleJobStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "job_list",
		Description: "List the tracked ingestion jobs in submission order",
	}, s.handleJobList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "note_edit",
		Description: "Replace a range of a narrative note; the new text is attributed to the author",
	}, s.handleNoteEdit)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "note_approve",
		Description: "Approve a narrative note as reviewed",
	}, s.handleNoteApprove)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "note_reprocess",
		Description: "Re-run automatic cleanup on a note, discarding human edits (requires confirm=true)",
	}, s.handleNoteReprocess)
}

func (s *Server) handleDates(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, DatesOutput, error) {
	dates := s.ports.Timeline.Dates()
	out := DatesOutput{Dates: make([]string, len(dates)), Count: len(dates)}
	for i, d := range dates {
		out.Dates[i] = d.String()
	}
	return nil, out, nil
}

func (s *Server) handleEvents(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input EventsInput,
) (*mcp.CallToolResult, EventsOutput, error) {
	date, err := parseDate(input.Date)
	if err != nil {
		return nil, EventsOutput{}, err
	}

	var events []domain.MedicalEvent
	if input.WindowDays > 0 {
		events = s.ports.Timeline.EventsWithin(date, input.WindowDays)
	} else {
		events = s.ports.Timeline.EventsOn(date)
	}
	return nil, EventsOutput{Events: toEventOutputs(events), Count: len(events)}, nil
}

func (s *Server) handleJump(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input JumpInput,
) (*mcp.CallToolResult, JumpOutput, error) {
	target, err := parseDate(input.Date)
	if err != nil {
		return nil, JumpOutput{}, err
	}
	dir, err := parseDirection(input.Direction)
	if err != nil {
		return nil, JumpOutput{}, err
	}

	date, ok := s.ports.Timeline.Jump(target, dir)
	if !ok {
		return nil, JumpOutput{}, nil
	}
	cursor := s.ports.Timeline.Cursor(date)
	return nil, JumpOutput{
		Date:    date.String(),
		Found:   true,
		HasPrev: cursor.HasPrev(),
		HasNext: cursor.HasNext(),
	}, nil
}

func (s *Server) handleOverlapping(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input OverlapInput,
) (*mcp.CallToolResult, MedicationsOutput, error) {
	window, err := parseRange(input.Start, input.End)
	if err != nil {
		return nil, MedicationsOutput{}, err
	}
	meds := s.ports.Timeline.MedicationsOverlapping(window)
	return nil, MedicationsOutput{Medications: toMedicationOutputs(meds), Count: len(meds)}, nil
}

func (s *Server) handleCloseMedication(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CloseMedicationInput,
) (*mcp.CallToolResult, MedicationOutput, error) {
	if s.ports.Ledger == nil {
		return nil, MedicationOutput{}, errNotConfigured
	}
	end, err := parseDate(input.End)
	if err != nil {
		return nil, MedicationOutput{}, err
	}
	med, err := s.ports.Ledger.CloseMedication(ctx, input.ID, end)
	if err != nil {
		return nil, MedicationOutput{}, err
	}
	return nil, toMedicationOutputs([]domain.Medication{med})[0], nil
}

func (s *Server) handleArchiveMedication(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ArchiveMedicationInput,
) (*mcp.CallToolResult, ArchiveOutput, error) {
	if s.ports.Ledger == nil {
		return nil, ArchiveOutput{}, errNotConfigured
	}
	if err := s.ports.Ledger.ArchiveMedication(ctx, input.ID); err != nil {
		return nil, ArchiveOutput{}, err
	}
	return nil, ArchiveOutput{ID: input.ID, Archived: true}, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, JobOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, JobOutput{}, errNotConfigured
	}
	if !filepath.IsAbs(input.Path) {
		return nil, JobOutput{}, fmt.Errorf("%w: path must be absolute", domain.ErrInvalidInput)
	}

	fileID := input.FileID
	if fileID == "" {
		fileID = domain.UploadID(input.Path)
	}
	job, err := s.ports.Ingestion.Submit(ctx, domain.Upload{
		FileID: fileID,
		Name:   filepath.Base(input.Path),
		Path:   input.Path,
	})
	if err != nil {
		return nil, JobOutput{}, err
	}
	return nil, toJobOutput(job), nil
}

func (s *Server) handleJobStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobInput,
) (*mcp.CallToolResult, JobOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, JobOutput{}, errNotConfigured
	}
	job, err := s.ports.Ingestion.Status(ctx, input.FileID)
	if err != nil {
		return nil, JobOutput{}, err
	}
	return nil, toJobOutput(*job), nil
}

func (s *Server) handleJobList(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, JobsOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, JobsOutput{}, errNotConfigured
	}
	jobs := s.ports.Ingestion.List(ctx)
	out := JobsOutput{Jobs: make([]JobOutput, len(jobs))}
	for i, j := range jobs {
		out.Jobs[i] = toJobOutput(j)
	}
	return nil, out, nil
}

func (s *Server) handleNoteEdit(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input NoteEditInput,
) (*mcp.CallToolResult, NoteOutput, error) {
	if s.ports.Editor == nil {
		return nil, NoteOutput{}, errNotConfigured
	}
	a, err := s.ports.Editor.ApplyEdit(ctx, input.ID,
		domain.PositionRange{Start: input.Start, End: input.End}, input.Text, input.Author)
	if err != nil {
		return nil, NoteOutput{}, err
	}
	return nil, toNoteOutput(a), nil
}

func (s *Server) handleNoteApprove(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input NoteApproveInput,
) (*mcp.CallToolResult, NoteOutput, error) {
	if s.ports.Editor == nil {
		return nil, NoteOutput{}, errNotConfigured
	}
	a, err := s.ports.Editor.Approve(ctx, input.ID, input.Author)
	if err != nil {
		return nil, NoteOutput{}, err
	}
	return nil, toNoteOutput(a), nil
}

func (s *Server) handleNoteReprocess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input NoteReprocessInput,
) (*mcp.CallToolResult, NoteOutput, error) {
	if s.ports.Editor == nil {
		return nil, NoteOutput{}, errNotConfigured
	}
	a, err := s.ports.Editor.Reprocess(ctx, input.ID,
		domain.Confirmation{Confirmed: input.Confirm, Author: input.Author})
	if err != nil {
		return nil, NoteOutput{}, err
	}
	return nil, toNoteOutput(a), nil
}

// ==================== Helpers ====================

// dateParser reads dates typed into tool arguments.
var dateParser = dates.New()

func parseDate(s string) (domain.Date, error) {
	return dateParser.Parse(strings.TrimSpace(s))
}

func parseRange(start, end string) (domain.DateRange, error) {
	from, err := parseDate(start)
	if err != nil {
		return domain.DateRange{}, err
	}
	r := domain.DateRange{Start: from}
	if strings.TrimSpace(end) != "" {
		if r.End, err = parseDate(end); err != nil {
			return domain.DateRange{}, err
		}
	}
	if err := r.Validate(); err != nil {
		return domain.DateRange{}, err
	}
	return r, nil
}

func parseDirection(s string) (domain.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward", "next":
		return domain.Forward, nil
	case "backward", "prev", "previous":
		return domain.Backward, nil
	}
	return domain.Forward, fmt.Errorf("%w: direction must be forward or backward", domain.ErrInvalidInput)
}
