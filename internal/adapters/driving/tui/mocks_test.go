package tui

import (
	"context"
	"sync"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// MockIngestionService returns a mutable job list.
type MockIngestionService struct {
	mu        sync.Mutex
	jobs      []domain.IngestionJob
	cancelled []string
	cancelErr error
}

func (m *MockIngestionService) set(jobs ...domain.IngestionJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = jobs
}

func (m *MockIngestionService) Submit(_ context.Context, u domain.Upload) (domain.IngestionJob, error) {
	return domain.IngestionJob{FileID: u.FileID, Stage: domain.StageQueued}, nil
}

func (m *MockIngestionService) Cancel(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, fileID)
	return m.cancelErr
}

func (m *MockIngestionService) Status(_ context.Context, fileID string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.FileID == fileID {
			return &j, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIngestionService) List(_ context.Context) []domain.IngestionJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.IngestionJob(nil), m.jobs...)
}

func (m *MockIngestionService) Await(ctx context.Context, fileID string) (*domain.IngestionJob, error) {
	return m.Status(ctx, fileID)
}

func (m *MockIngestionService) Consume(ctx context.Context, fileID string) (*domain.IngestionJob, error) {
	return m.Status(ctx, fileID)
}

func (m *MockIngestionService) History(_ context.Context, _ string, _ int) ([]domain.IngestionJob, error) {
	return nil, nil
}

// MockTimelineService walks a fixed list of dates.
type MockTimelineService struct {
	dates  []domain.Date
	events map[domain.Date][]domain.MedicalEvent
}

func (m *MockTimelineService) Dates() []domain.Date { return m.dates }

func (m *MockTimelineService) Jump(target domain.Date, _ domain.Direction) (domain.Date, bool) {
	for _, d := range m.dates {
		if !d.Before(target) {
			return d, true
		}
	}
	return domain.Date{}, false
}

func (m *MockTimelineService) Cursor(selected domain.Date) domain.TimelineCursor {
	c := domain.TimelineCursor{Dates: m.dates}
	if !selected.IsZero() {
		if d, ok := m.Jump(selected, domain.Forward); ok {
			c.Selected = d
		}
	}
	return c
}

func (m *MockTimelineService) Next(c domain.TimelineCursor) domain.TimelineCursor {
	for _, d := range m.dates {
		if c.Selected.IsZero() || d.After(c.Selected) {
			return domain.TimelineCursor{Selected: d, Dates: m.dates}
		}
	}
	return c
}

func (m *MockTimelineService) Prev(c domain.TimelineCursor) domain.TimelineCursor {
	for i := len(m.dates) - 1; i >= 0; i-- {
		if m.dates[i].Before(c.Selected) {
			return domain.TimelineCursor{Selected: m.dates[i], Dates: m.dates}
		}
	}
	return c
}

func (m *MockTimelineService) EventsOn(date domain.Date) []domain.MedicalEvent {
	return m.events[date]
}

func (m *MockTimelineService) EventsWithin(date domain.Date, _ int) []domain.MedicalEvent {
	return m.events[date]
}

func (m *MockTimelineService) MedicationsOverlapping(_ domain.DateRange) []domain.Medication {
	return nil
}

func (m *MockTimelineService) Record() domain.Record { return domain.Record{} }

func (m *MockTimelineService) Summary() domain.TimelineSummary { return domain.TimelineSummary{} }
