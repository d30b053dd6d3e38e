package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// Ensure IngestionScheduler implements the interface.
var _ driving.IngestionService = (*IngestionScheduler)(nil)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// IngestionConfig tunes the scheduler.
type IngestionConfig struct {
	// Workers is the number of files processed at once.
	Workers int

	// QueueSize bounds the submissions waiting for a worker.
	QueueSize int

	// CreateNotes turns the narrative notes of extracted events into
	// editable artifacts.
	CreateNotes bool
}

// IngestionOption configures optional collaborators of the scheduler.
type IngestionOption func(*ingestionOptions)

type ingestionOptions struct {
	ingredients driven.IngredientResolver
}

// WithIngredientResolver maps extracted medication names to their active
// ingredient before reconciliation.
func WithIngredientResolver(r driven.IngredientResolver) IngestionOption {
	return func(o *ingestionOptions) {
		o.ingredients = r
	}
}

// trackedJob is the scheduler's private state for one submission.
type trackedJob struct {
	job             domain.IngestionJob
	upload          domain.Upload
	cancelRequested bool
	done            chan struct{}
}

// IngestionScheduler runs uploads through fetch, extraction and
// reconciliation on a fixed pool of workers. Fetch and extraction of
// different files run in parallel; reconciliation is serialized by the
// record keeper. A failure affects only its own job.
type IngestionScheduler struct {
	cfg       IngestionConfig
	keeper    *RecordKeeper
	fetcher   driven.Fetcher
	extractor driven.Extractor
	builder   *CandidateBuilder
	registry  driven.NormaliserRegistry
	editor    driving.EditorService
	jobStore  driven.JobStore
	now       func() time.Time

	// Job tracking
	mu      sync.RWMutex
	tracked map[string]*trackedJob
	order   []string
	queue   chan *trackedJob

	// Worker lifecycle
	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewIngestionScheduler creates a scheduler. The registry, editor and
// jobStore are optional: without a registry documents go to the extractor
// as they are, without an editor no note artifacts are created and
// without a jobStore consumed jobs are not archived.
func NewIngestionScheduler(
	cfg IngestionConfig,
	keeper *RecordKeeper,
	fetcher driven.Fetcher,
	extractor driven.Extractor,
	dates driven.DateNormaliser,
	registry driven.NormaliserRegistry,
	editor driving.EditorService,
	jobStore driven.JobStore,
	opts ...IngestionOption,
) *IngestionScheduler {
	var o ingestionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &IngestionScheduler{
		cfg:       cfg,
		keeper:    keeper,
		fetcher:   fetcher,
		extractor: extractor,
		builder:   NewCandidateBuilder(dates, o.ingredients),
		registry:  registry,
		editor:    editor,
		jobStore:  jobStore,
		now:       time.Now,
		tracked:   make(map[string]*trackedJob),
		queue:     make(chan *trackedJob, cfg.QueueSize),
	}
}

// Start launches the worker pool. It returns immediately; workers run
// until Stop is called or ctx is done.
func (s *IngestionScheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, s.stopCh)
	}
	logger.Debug("ingestion: started %d workers", s.cfg.Workers)
}

// Stop signals the workers and waits for the jobs in progress to finish.
// Queued jobs stay queued until the next Start.
func (s *IngestionScheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.runMu.Unlock()

	s.wg.Wait()
}

func (s *IngestionScheduler) worker(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-s.queue:
			s.process(ctx, t)
		}
	}
}

// Submit queues an upload for processing.
func (s *IngestionScheduler) Submit(ctx context.Context, upload domain.Upload) (domain.IngestionJob, error) {
	if upload.FileID == "" {
		return domain.IngestionJob{}, fmt.Errorf("%w: upload without file id", domain.ErrInvalidInput)
	}
	if upload.Name == "" {
		upload.Name = filepath.Base(upload.Path)
	}
	if err := s.keeper.Halted(); err != nil {
		return domain.IngestionJob{}, err
	}

	attempt := s.lastArchivedAttempt(ctx, upload.FileID) + 1

	s.mu.Lock()
	if prev, ok := s.tracked[upload.FileID]; ok {
		if !prev.job.Stage.IsTerminal() {
			s.mu.Unlock()
			return domain.IngestionJob{}, fmt.Errorf("%s: %w", upload.FileID, domain.ErrJobInProgress)
		}
		attempt = max(attempt, prev.job.Attempt+1)
		s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == upload.FileID })
	}
	now := s.now()
	t := &trackedJob{
		upload: upload,
		done:   make(chan struct{}),
		job: domain.IngestionJob{
			FileID:      upload.FileID,
			Name:        upload.Name,
			MIMEType:    upload.MIMEType,
			Seq:         s.keeper.NextSeq(),
			Attempt:     attempt,
			Stage:       domain.StageQueued,
			SubmittedAt: now,
			UpdatedAt:   now,
		},
	}
	s.tracked[upload.FileID] = t
	s.order = append(s.order, upload.FileID)
	job := t.job.Clone()
	s.mu.Unlock()

	select {
	case s.queue <- t:
	case <-ctx.Done():
		s.mu.Lock()
		s.terminate(t, domain.StageCancelled)
		s.mu.Unlock()
		return domain.IngestionJob{}, fmt.Errorf("submit %s: %w", upload.FileID, ctx.Err())
	}

	logger.Info("ingestion: queued %s (attempt %d, seq %d)", upload.FileID, job.Attempt, job.Seq)
	return job, nil
}

func (s *IngestionScheduler) lastArchivedAttempt(ctx context.Context, fileID string) int {
	if s.jobStore == nil {
		return 0
	}
	history, err := s.jobStore.History(ctx, fileID, 1)
	if err != nil || len(history) == 0 {
		return 0
	}
	return history[0].Attempt
}

// Cancel asks a job to stop. A queued job is cancelled at once; a job
// that is fetching or extracting stops at its next stage boundary.
func (s *IngestionScheduler) Cancel(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracked[fileID]
	if !ok {
		return fmt.Errorf("%s: %w", fileID, domain.ErrNotFound)
	}
	if !t.job.Stage.CanTransition(domain.StageCancelled) {
		return fmt.Errorf("%s: cannot cancel while %s: %w", fileID, t.job.Stage, domain.ErrInvalidTransition)
	}
	t.cancelRequested = true
	if t.job.Stage == domain.StageQueued {
		s.terminate(t, domain.StageCancelled)
	}
	return nil
}

// Status returns a snapshot of one job.
func (s *IngestionScheduler) Status(_ context.Context, fileID string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracked[fileID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fileID, domain.ErrNotFound)
	}
	job := t.job.Clone()
	return &job, nil
}

// List returns snapshots of all tracked jobs in submission order.
func (s *IngestionScheduler) List(_ context.Context) []domain.IngestionJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]domain.IngestionJob, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, s.tracked[id].job.Clone())
	}
	return jobs
}

// Await blocks until the job reaches a terminal stage.
func (s *IngestionScheduler) Await(ctx context.Context, fileID string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	t, ok := s.tracked[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", fileID, domain.ErrNotFound)
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	job := t.job.Clone()
	return &job, nil
}

// Consume archives a terminal job and stops tracking it.
func (s *IngestionScheduler) Consume(ctx context.Context, fileID string) (*domain.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracked[fileID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fileID, domain.ErrNotFound)
	}
	if !t.job.Stage.IsTerminal() {
		return nil, fmt.Errorf("%s: %w", fileID, domain.ErrJobInProgress)
	}
	if s.jobStore != nil {
		if err := s.jobStore.RecordJob(ctx, t.job); err != nil {
			return nil, fmt.Errorf("archive job %s: %w", fileID, err)
		}
	}

	delete(s.tracked, fileID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == fileID })
	job := t.job.Clone()
	return &job, nil
}

// History returns archived jobs, most recent first.
func (s *IngestionScheduler) History(ctx context.Context, fileID string, limit int) ([]domain.IngestionJob, error) {
	if s.jobStore == nil {
		return nil, nil
	}
	return s.jobStore.History(ctx, fileID, limit)
}

// ==================== Pipeline ====================

// process runs one job through every stage.
func (s *IngestionScheduler) process(ctx context.Context, t *trackedJob) {
	id := t.upload.FileID
	log := logger.With("file", id)

	if !s.advance(t, domain.StageFetching) {
		return
	}
	wc, err := s.fetcher.Fetch(ctx, t.upload, func(f float64) {
		s.setProgress(t, func(j *domain.IngestionJob) { j.ProgressFetch = clamp01(f) })
	})
	if err != nil {
		s.fail(t, domain.StageFetching, err)
		return
	}
	doc, err := s.fetcher.Open(ctx, *wc)
	if err != nil {
		s.fail(t, domain.StageFetching, err)
		return
	}
	s.setProgress(t, func(j *domain.IngestionJob) {
		j.ProgressFetch = 1
		if j.MIMEType == "" {
			j.MIMEType = wc.MIMEType
		}
	})
	log.Debug("fetched %d bytes (%s)", wc.Size, wc.MIMEType)

	if !s.advance(t, domain.StageExtracting) {
		return
	}
	data, mimeType, err := s.prepare(ctx, doc)
	if err != nil {
		s.fail(t, domain.StageExtracting, err)
		return
	}
	s.setProgress(t, func(j *domain.IngestionJob) { j.ProgressExtract = 0.1 })

	raws, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		s.fail(t, domain.StageExtracting,
			fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, s.extractor.Name(), err))
		return
	}
	s.setProgress(t, func(j *domain.IngestionJob) { j.ProgressExtract = 0.9 })

	seq := s.jobSeq(t)
	candidates := s.builder.Build(id, seq, raws, s.cfg.CreateNotes && s.editor != nil)
	s.builder.ResolveIngredients(ctx, candidates)
	s.setProgress(t, func(j *domain.IngestionJob) {
		j.ProgressExtract = 1
		j.Candidates = len(candidates)
	})
	log.Debug("extracted %d candidates with %s", len(candidates), s.extractor.Name())

	if !s.advance(t, domain.StageReconciling) {
		return
	}
	// Reconciliation is never interrupted once started.
	applyCtx := context.WithoutCancel(ctx)
	conflicts, err := s.keeper.Apply(applyCtx, candidates)
	if err != nil {
		s.fail(t, domain.StageReconciling, err)
		return
	}
	s.createNotes(applyCtx, candidates)

	if err := s.fetcher.Remove(applyCtx, id); err != nil {
		log.Warn("remove working copy: %v", err)
	}

	s.mu.Lock()
	t.job.Conflicts = conflicts
	s.terminate(t, domain.StageDone)
	s.mu.Unlock()
	log.Info("done: %d candidates, %d conflicts", len(candidates), len(conflicts))
}

// prepare turns documents into text when a normaliser handles them.
// Other media go to the extractor untouched.
func (s *IngestionScheduler) prepare(ctx context.Context, doc *domain.RawDocument) ([]byte, string, error) {
	if s.registry == nil {
		return doc.Content, doc.MIMEType, nil
	}
	switch domain.KindOfMIME(doc.MIMEType) {
	case domain.MediaText, domain.MediaDocument:
	default:
		return doc.Content, doc.MIMEType, nil
	}

	n, err := s.registry.Get(doc.MIMEType)
	if errors.Is(err, domain.ErrUnsupportedType) {
		return doc.Content, doc.MIMEType, nil
	}
	if err != nil {
		return nil, "", err
	}
	result, err := n.Normalise(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("normalise %s: %w", doc.MIMEType, err)
	}
	return []byte(result.Text), "text/plain", nil
}

func (s *IngestionScheduler) createNotes(ctx context.Context, candidates []domain.Candidate) {
	if s.editor == nil {
		return
	}
	for _, c := range candidates {
		if c.NoteArtifactID == "" {
			continue
		}
		_, err := s.editor.Create(ctx, c.NoteArtifactID, c.Notes, s.extractor.Name())
		if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			logger.Warn("ingestion: note %s: %v", c.NoteArtifactID, err)
		}
	}
}

func (s *IngestionScheduler) jobSeq(t *trackedJob) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return t.job.Seq
}

// advance moves a job to the next stage. At every boundary a pending
// cancellation is honoured instead; false means the job must stop.
func (s *IngestionScheduler) advance(t *trackedJob, to domain.Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.job.Stage.IsTerminal() {
		return false
	}
	if t.cancelRequested {
		s.terminate(t, domain.StageCancelled)
		logger.Info("ingestion: %s cancelled before %s", t.job.FileID, to)
		return false
	}
	if !t.job.Stage.CanTransition(to) {
		logger.Warn("ingestion: %s: %s -> %s not allowed", t.job.FileID, t.job.Stage, to)
		return false
	}
	t.job.Stage = to
	t.job.UpdatedAt = s.now()
	return true
}

func (s *IngestionScheduler) setProgress(t *trackedJob, update func(*domain.IngestionJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&t.job)
	t.job.UpdatedAt = s.now()
}

func (s *IngestionScheduler) fail(t *trackedJob, stage domain.Stage, err error) {
	stageErr := &domain.StageError{FileID: t.upload.FileID, Stage: stage, Err: err}
	logger.With("file", t.upload.FileID).Error("%v", stageErr)

	s.mu.Lock()
	defer s.mu.Unlock()
	t.job.FailedStage = stage
	t.job.Error = stageErr.Error()
	s.terminate(t, domain.StageFailed)
}

// terminate moves a job to a terminal stage and wakes waiters.
// Callers hold s.mu.
func (s *IngestionScheduler) terminate(t *trackedJob, stage domain.Stage) {
	if t.job.Stage.IsTerminal() {
		return
	}
	now := s.now()
	t.job.Stage = stage
	t.job.UpdatedAt = now
	t.job.FinishedAt = now
	close(t.done)
}

func clamp01(f float64) float64 {
	return min(max(f, 0), 1)
}
