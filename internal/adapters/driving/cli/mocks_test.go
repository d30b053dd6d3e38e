package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/similarity/levenshtein"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
	"github.com/custodia-labs/clinitrace/internal/core/services"
)

var _ driving.IngestionService = (*mockIngestionService)(nil)

// mockIngestionService finishes every job immediately.
type mockIngestionService struct {
	mu        sync.Mutex
	jobs      map[string]*domain.IngestionJob
	order     []string
	history   []domain.IngestionJob
	cancelled []string
	fail      map[string]string
	busy      map[string]bool
}

func newMockIngestionService() *mockIngestionService {
	return &mockIngestionService{
		jobs: make(map[string]*domain.IngestionJob),
		fail: make(map[string]string),
		busy: make(map[string]bool),
	}
}

func (m *mockIngestionService) Submit(_ context.Context, u domain.Upload) (domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy[u.Name] {
		return domain.IngestionJob{}, domain.ErrJobInProgress
	}
	job := &domain.IngestionJob{
		FileID:     u.FileID,
		Name:       u.Name,
		Attempt:    1,
		Stage:      domain.StageDone,
		Candidates: 3,
	}
	if msg, ok := m.fail[u.Name]; ok {
		job.Stage = domain.StageFailed
		job.FailedStage = domain.StageExtracting
		job.Error = msg
		job.Candidates = 0
	}
	m.jobs[u.FileID] = job
	m.order = append(m.order, u.FileID)
	return *job, nil
}

func (m *mockIngestionService) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockIngestionService) Status(_ context.Context, id string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	c := j.Clone()
	return &c, nil
}

func (m *mockIngestionService) List(context.Context) []domain.IngestionJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IngestionJob, 0, len(m.order))
	for _, id := range m.order {
		if j, ok := m.jobs[id]; ok {
			out = append(out, j.Clone())
		}
	}
	return out
}

func (m *mockIngestionService) Await(ctx context.Context, id string) (*domain.IngestionJob, error) {
	return m.Status(ctx, id)
}

func (m *mockIngestionService) Consume(_ context.Context, id string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	delete(m.jobs, id)
	j.FinishedAt = time.Date(2024, time.May, 2, 10, 30, 0, 0, time.UTC)
	m.history = append([]domain.IngestionJob{*j}, m.history...)
	return j, nil
}

func (m *mockIngestionService) History(_ context.Context, id string, limit int) ([]domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IngestionJob
	for _, j := range m.history {
		if id != "" && j.FileID != id {
			continue
		}
		out = append(out, j)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ==================== Fixtures ====================

// testRecord has three event dates and two medication courses.
func testRecord() domain.Record {
	return domain.Record{
		Events: []domain.MedicalEvent{
			{
				ID: "ev-hemograma", Date: domain.MustDate(2023, time.March, 12),
				Title: "Hemograma", Description: "Leucócitos 12.000",
				Notes:    strings.Repeat("Paciente estável. ", 20),
				Keywords: []string{"hemograma"}, SourceFiles: []string{"exam-1"},
				Confidence: 0.9, Provenance: domain.ProvenanceMachine, IngestSeq: 1,
			},
			{
				ID: "ev-tc", Date: domain.MustDate(2023, time.March, 14),
				Title: "Tomografia de tórax", SourceFiles: []string{"exam-2"},
				Confidence: 1, Provenance: domain.ProvenanceHuman, IngestSeq: 2,
			},
			{
				ID: "ev-consulta", Date: domain.MustDate(2023, time.June, 1),
				Title: "Consulta infectologia", SourceFiles: []string{"letter-1"},
				Confidence: 0.7, Provenance: domain.ProvenanceMachine, IngestSeq: 3,
			},
		},
		Medications: []domain.Medication{
			{
				ID: "med-vori", Name: "Vfend", ActiveIngredient: "Voriconazol",
				Period:     domain.DateRange{Start: domain.MustDate(2024, time.January, 20)},
				Dosage:     "200mg 12/12h", SourceFiles: []string{"audio-1"},
				Confidence: 0.8, Provenance: domain.ProvenanceMachine, CycleID: "voriconazol-1",
			},
			{
				ID: "med-pred", Name: "Prednisona",
				Period: domain.DateRange{
					Start: domain.MustDate(2023, time.May, 1),
					End:   domain.MustDate(2023, time.May, 20),
				},
				SourceFiles: []string{"letter-1"},
				Confidence:  0.9, Provenance: domain.ProvenanceMachine, CycleID: "prednisona-1",
			},
		},
	}
}

// testEnv holds the services installed for one test.
type testEnv struct {
	keeper    *services.RecordKeeper
	timeline  *services.TimelineService
	editor    *services.ArtifactEditor
	settings  *services.SettingsService
	ingestion *mockIngestionService
}

// setupTestServices installs real services over memory stores seeded with
// testRecord, and restores the previous services when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	keeper := services.NewRecordKeeper(
		services.NewReconciler(levenshtein.New(), 0.8),
		memory.NewStateStoreWith(testRecord()),
	)
	require.NoError(t, keeper.Load(ctx))

	editor := services.NewArtifactEditor(memory.NewArtifactStore(), nil)
	_, err := editor.Create(ctx, "note-1", "Paciente lucido e orientado.", "extractor")
	require.NoError(t, err)

	env := &testEnv{
		keeper:    keeper,
		timeline:  services.NewTimelineService(keeper),
		editor:    editor,
		settings:  services.NewSettingsService(memory.NewConfigStore()),
		ingestion: newMockIngestionService(),
	}

	prev := Services{
		Settings:  settingsService,
		Timeline:  timelineService,
		Ledger:    ledgerService,
		Ingestion: ingestionService,
		Editor:    editorService,
		Scheduler: scheduler,
	}
	SetServices(Services{
		Settings:  env.settings,
		Timeline:  env.timeline,
		Ledger:    env.keeper,
		Ingestion: env.ingestion,
		Editor:    env.editor,
	})
	t.Cleanup(func() { SetServices(prev) })
	return env
}

// emptyTimeline returns a timeline over an empty record.
func emptyTimeline() *services.TimelineService {
	keeper := services.NewRecordKeeper(
		services.NewReconciler(levenshtein.New(), 0.8),
		memory.NewStateStore(),
	)
	return services.NewTimelineService(keeper)
}

// clearServices removes every service for the duration of the test.
func clearServices(t *testing.T) {
	t.Helper()
	prev := Services{
		Settings:  settingsService,
		Timeline:  timelineService,
		Ledger:    ledgerService,
		Ingestion: ingestionService,
		Editor:    editorService,
		Scheduler: scheduler,
	}
	SetServices(Services{})
	t.Cleanup(func() { SetServices(prev) })
}

// execute runs the root command with args and returns everything written
// to stdout and stderr. Flags are restored to their defaults first, since
// cobra keeps flag values between executions.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
