package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// workspaceMaxAge is how long an orphaned working copy survives. Jobs
// remove their own copies; anything older belongs to a crashed run.
const workspaceMaxAge = 24 * time.Hour

// Scheduler runs background maintenance: pruning archived job history
// and removing stale working copies.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	jobs      driven.JobStore
	fetcher   driven.Fetcher
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration. retention is how
// long archived jobs are kept.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	jobs driven.JobStore,
	fetcher driven.Fetcher,
	retention time.Duration,
) *Scheduler {
	return &Scheduler{
		config:    config,
		store:     store,
		jobs:      jobs,
		fetcher:   fetcher,
		retention: retention,
		now:       time.Now,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	tasks := []struct{ id, name string }{
		{domain.TaskIDHistoryPrune, "Job History Prune"},
		{domain.TaskIDWorkspaceCleanup, "Workspace Cleanup"},
	}
	for _, t := range tasks {
		cfg := s.config.GetTaskConfig(t.id)
		if !cfg.Enabled {
			continue
		}
		if err := s.ensureTask(ctx, t.id, t.name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  s.now().Add(cfg.Interval),
		}
	} else {
		// Recalculate next run from now when the interval changed.
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = s.now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask executes a single task in the background.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, task)
	}()
}

// execute runs a task and records its outcome.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	var err error
	switch task.ID {
	case domain.TaskIDHistoryPrune:
		result.ItemsProcessed, err = s.pruneHistory(ctx)
	case domain.TaskIDWorkspaceCleanup:
		result.ItemsProcessed, err = s.cleanWorkspace(ctx)
	default:
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.With("task", task.ID).Warn("scheduler: task failed: %v", err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.With("task", task.ID).Debug("scheduler: processed %d items", result.ItemsProcessed)
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	// Keep the last 100 results per task.
	if pruneErr := s.store.PruneHistory(ctx, 100); pruneErr != nil {
		logger.Warn("scheduler: failed to prune history: %v", pruneErr)
	}
}

// pruneHistory drops archived jobs older than the retention window.
func (s *Scheduler) pruneHistory(ctx context.Context) (int, error) {
	if s.jobs == nil || s.retention <= 0 {
		return 0, nil
	}
	return s.jobs.PruneHistory(ctx, s.now().Add(-s.retention))
}

// cleanWorkspace removes working copies left behind by interrupted jobs.
func (s *Scheduler) cleanWorkspace(ctx context.Context) (int, error) {
	if s.fetcher == nil {
		return 0, nil
	}
	return s.fetcher.Prune(ctx, s.now().Add(-workspaceMaxAge))
}
