package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// ==================== SchedulerStore Tests ====================

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tasks := store.SchedulerStore()

	now := time.Now().UTC()
	task := &domain.ScheduledTask{
		ID:          domain.TaskIDHistoryPrune,
		Name:        "Job History Prune",
		Interval:    6 * time.Hour,
		LastRun:     now.Add(-30 * time.Minute),
		NextRun:     now.Add(15 * time.Minute),
		LastSuccess: now.Add(-30 * time.Minute),
		Enabled:     true,
	}
	require.NoError(t, tasks.SaveTask(ctx, task))

	got, err := tasks.GetTask(ctx, domain.TaskIDHistoryPrune)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, task.Interval, got.Interval)
	assert.True(t, got.Enabled)
	assert.True(t, task.LastRun.Equal(got.LastRun))
	assert.True(t, task.NextRun.Equal(got.NextRun))
	assert.Empty(t, got.LastError)
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	store := setupTestStore(t)

	task, err := store.SchedulerStore().GetTask(context.Background(), "non-existent")

	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_SaveTask_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tasks := store.SchedulerStore()

	task := &domain.ScheduledTask{ID: domain.TaskIDWorkspaceCleanup, Name: "Workspace Cleanup", Interval: time.Hour, Enabled: true}
	require.NoError(t, tasks.SaveTask(ctx, task))

	task.Interval = 2 * time.Hour
	task.LastError = "permission denied"
	task.Enabled = false
	require.NoError(t, tasks.SaveTask(ctx, task))

	got, err := tasks.GetTask(ctx, domain.TaskIDWorkspaceCleanup)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, got.Interval)
	assert.Equal(t, "permission denied", got.LastError)
	assert.False(t, got.Enabled)
	assert.True(t, got.LastRun.IsZero())
}

func TestSchedulerStore_SaveTask_NilTask(t *testing.T) {
	store := setupTestStore(t)

	err := store.SchedulerStore().SaveTask(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_ListAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tasks := store.SchedulerStore()

	for _, id := range []string{"task-b", "task-a", "task-c"} {
		require.NoError(t, tasks.SaveTask(ctx, &domain.ScheduledTask{ID: id, Name: id, Interval: time.Hour}))
	}
	require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{TaskID: "task-b", StartedAt: time.Now(), EndedAt: time.Now()}))

	list, err := tasks.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "task-a", list[0].ID)

	require.NoError(t, tasks.DeleteTask(ctx, "task-b"))
	list, err = tasks.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	history, err := tasks.GetTaskHistory(ctx, "task-b", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSchedulerStore_RecordResultAndHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tasks := store.SchedulerStore()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{
			TaskID:         domain.TaskIDHistoryPrune,
			StartedAt:      started,
			EndedAt:        started.Add(time.Second),
			Success:        i != 2,
			Error:          map[bool]string{true: "", false: "disk full"}[i != 2],
			ItemsProcessed: i,
		}))
	}

	history, err := tasks.GetTaskHistory(ctx, domain.TaskIDHistoryPrune, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, base.Add(4*time.Hour), history[0].StartedAt)
	assert.False(t, history[2].Success)
	assert.Equal(t, "disk full", history[2].Error)

	assert.ErrorIs(t, tasks.RecordResult(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tasks := store.SchedulerStore()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []string{domain.TaskIDHistoryPrune, domain.TaskIDWorkspaceCleanup} {
		for i := 0; i < 4; i++ {
			at := base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{TaskID: id, StartedAt: at, EndedAt: at}))
		}
	}

	require.NoError(t, tasks.PruneHistory(ctx, 2))

	for _, id := range []string{domain.TaskIDHistoryPrune, domain.TaskIDWorkspaceCleanup} {
		history, err := tasks.GetTaskHistory(ctx, id, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, base.Add(3*time.Minute), history[0].StartedAt)
	}
}
