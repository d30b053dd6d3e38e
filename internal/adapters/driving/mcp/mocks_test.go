package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

var (
	_ driving.TimelineService  = (*mockTimelineService)(nil)
	_ driving.LedgerService    = (*mockLedgerService)(nil)
	_ driving.IngestionService = (*mockIngestionService)(nil)
	_ driving.EditorService    = (*mockEditorService)(nil)
)

// mockTimelineService serves a fixed record.
type mockTimelineService struct {
	record     domain.Record
	dates      []domain.Date
	summary    domain.TimelineSummary
	lastWindow int
	lastRange  domain.DateRange
}

func (m *mockTimelineService) Dates() []domain.Date { return m.dates }

func (m *mockTimelineService) Jump(target domain.Date, dir domain.Direction) (domain.Date, bool) {
	if dir == domain.Forward {
		for _, d := range m.dates {
			if !d.Before(target) {
				return d, true
			}
		}
		return domain.Date{}, false
	}
	for i := len(m.dates) - 1; i >= 0; i-- {
		if !m.dates[i].After(target) {
			return m.dates[i], true
		}
	}
	return domain.Date{}, false
}

func (m *mockTimelineService) Cursor(selected domain.Date) domain.TimelineCursor {
	return domain.TimelineCursor{Selected: selected, Dates: m.dates}
}

func (m *mockTimelineService) Next(c domain.TimelineCursor) domain.TimelineCursor { return c }
func (m *mockTimelineService) Prev(c domain.TimelineCursor) domain.TimelineCursor { return c }

func (m *mockTimelineService) EventsOn(date domain.Date) []domain.MedicalEvent {
	var out []domain.MedicalEvent
	for _, e := range m.record.Events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockTimelineService) EventsWithin(date domain.Date, days int) []domain.MedicalEvent {
	m.lastWindow = days
	r := domain.DateRange{Start: date.AddDays(-days), End: date.AddDays(days)}
	var out []domain.MedicalEvent
	for _, e := range m.record.Events {
		if r.ContainsDate(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockTimelineService) MedicationsOverlapping(r domain.DateRange) []domain.Medication {
	m.lastRange = r
	var out []domain.Medication
	for _, med := range m.record.Medications {
		if med.Period.Overlaps(r) {
			out = append(out, med)
		}
	}
	return out
}

func (m *mockTimelineService) Record() domain.Record { return m.record }

func (m *mockTimelineService) Summary() domain.TimelineSummary { return m.summary }

// mockLedgerService records manual changes.
type mockLedgerService struct {
	closed    map[string]domain.Date
	archived  []string
	conflicts []domain.Conflict
	err       error
}

func (m *mockLedgerService) AddEvent(_ context.Context, e domain.MedicalEvent) (domain.MedicalEvent, error) {
	return e, m.err
}

func (m *mockLedgerService) AddMedication(
	_ context.Context,
	med domain.Medication,
) (domain.Medication, []domain.Conflict, error) {
	return med, nil, m.err
}

func (m *mockLedgerService) CloseMedication(_ context.Context, id string, end domain.Date) (domain.Medication, error) {
	if m.err != nil {
		return domain.Medication{}, m.err
	}
	if m.closed == nil {
		m.closed = map[string]domain.Date{}
	}
	m.closed[id] = end
	return domain.Medication{
		ID:     id,
		Name:   "Voriconazol",
		Period: domain.DateRange{Start: domain.MustDate(2024, time.January, 20), End: end},
	}, nil
}

func (m *mockLedgerService) ArchiveMedication(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.archived = append(m.archived, id)
	return nil
}

func (m *mockLedgerService) Conflicts() []domain.Conflict { return m.conflicts }

func (m *mockLedgerService) Halted() error { return nil }

func (m *mockLedgerService) Resume(_ context.Context) error { return nil }

// mockIngestionService keeps submitted uploads.
type mockIngestionService struct {
	uploads []domain.Upload
	jobs    map[string]domain.IngestionJob
	err     error
}

func (m *mockIngestionService) Submit(_ context.Context, u domain.Upload) (domain.IngestionJob, error) {
	if m.err != nil {
		return domain.IngestionJob{}, m.err
	}
	m.uploads = append(m.uploads, u)
	job := domain.IngestionJob{FileID: u.FileID, Name: u.Name, Stage: domain.StageQueued, Attempt: 1}
	if m.jobs == nil {
		m.jobs = map[string]domain.IngestionJob{}
	}
	m.jobs[u.FileID] = job
	return job, nil
}

func (m *mockIngestionService) Cancel(_ context.Context, _ string) error { return m.err }

func (m *mockIngestionService) Status(_ context.Context, fileID string) (*domain.IngestionJob, error) {
	job, ok := m.jobs[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (m *mockIngestionService) List(_ context.Context) []domain.IngestionJob {
	var out []domain.IngestionJob
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out
}

func (m *mockIngestionService) Await(ctx context.Context, fileID string) (*domain.IngestionJob, error) {
	return m.Status(ctx, fileID)
}

func (m *mockIngestionService) Consume(ctx context.Context, fileID string) (*domain.IngestionJob, error) {
	return m.Status(ctx, fileID)
}

func (m *mockIngestionService) History(_ context.Context, _ string, _ int) ([]domain.IngestionJob, error) {
	return nil, m.err
}

// mockEditorService returns a canned artifact.
type mockEditorService struct {
	artifact  *domain.Artifact
	confirm   domain.Confirmation
	editRange domain.PositionRange
	err       error
}

func (m *mockEditorService) Create(_ context.Context, _, _, _ string) (*domain.Artifact, error) {
	return m.artifact, m.err
}

func (m *mockEditorService) Get(_ context.Context, _ string) (*domain.Artifact, error) {
	return m.artifact, m.err
}

func (m *mockEditorService) List(_ context.Context) ([]domain.Artifact, error) {
	if m.artifact == nil {
		return nil, m.err
	}
	return []domain.Artifact{*m.artifact}, m.err
}

func (m *mockEditorService) ApplyEdit(
	_ context.Context,
	_ string,
	r domain.PositionRange,
	_, _ string,
) (*domain.Artifact, error) {
	m.editRange = r
	return m.artifact, m.err
}

func (m *mockEditorService) Reprocess(_ context.Context, _ string, c domain.Confirmation) (*domain.Artifact, error) {
	m.confirm = c
	if !c.Confirmed {
		return nil, domain.ErrConfirmationRequired
	}
	return m.artifact, m.err
}

func (m *mockEditorService) Approve(_ context.Context, _, _ string) (*domain.Artifact, error) {
	return m.artifact, m.err
}

// testRecord is a small record used across the tests.
func testRecord() domain.Record {
	return domain.Record{
		Events: []domain.MedicalEvent{
			{ID: "e1", Date: domain.MustDate(2023, time.March, 12), Title: "Hemograma", SourceFiles: []string{"f1"}, Confidence: 0.9, Provenance: domain.ProvenanceMachine},
			{ID: "e2", Date: domain.MustDate(2023, time.March, 14), Title: "Tomografia de tórax", SourceFiles: []string{"f2"}, Confidence: 0.8, Provenance: domain.ProvenanceMachine},
			{ID: "e3", Date: domain.MustDate(2023, time.June, 1), Title: "Consulta", SourceFiles: []string{"f3"}, Confidence: 1, Provenance: domain.ProvenanceHuman},
		},
		Medications: []domain.Medication{
			{ID: "m1", Name: "Vfend", ActiveIngredient: "Voriconazol", Period: domain.DateRange{Start: domain.MustDate(2023, time.January, 20), End: domain.MustDate(2023, time.March, 1)}, CycleID: "voriconazol-1", Confidence: 0.9, Provenance: domain.ProvenanceMachine},
			{ID: "m2", Name: "Prednisona", Period: domain.DateRange{Start: domain.MustDate(2023, time.May, 1)}, CycleID: "prednisona-1", Confidence: 0.8, Provenance: domain.ProvenanceMachine},
		},
	}
}

func newTestTimeline() *mockTimelineService {
	rec := testRecord()
	return &mockTimelineService{
		record: rec,
		dates: []domain.Date{
			domain.MustDate(2023, time.March, 12),
			domain.MustDate(2023, time.March, 14),
			domain.MustDate(2023, time.June, 1),
		},
		summary: domain.TimelineSummary{
			Events:      rec.Events,
			First:       domain.MustDate(2023, time.March, 12),
			Last:        domain.MustDate(2023, time.June, 1),
			Medications: 2,
			Ongoing:     1,
			Ingredients: []string{"prednisona", "voriconazol"},
		},
	}
}

func testArtifact() *domain.Artifact {
	return &domain.Artifact{
		ID: "note-1",
		Segments: []domain.TextSegment{
			{Text: "Paciente estável. ", Origin: domain.OriginMachine},
			{Text: "Sem febre.", Origin: domain.OriginHuman, EditedBy: "dra.ana"},
		},
		Version: 3,
	}
}
