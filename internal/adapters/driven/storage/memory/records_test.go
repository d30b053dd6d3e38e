package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

func TestStateStore_RoundTripIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()

	rec, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, rec.Events)

	rec.Events = append(rec.Events, domain.MedicalEvent{
		ID: "e1", Date: domain.MustDate(2023, time.March, 1), Title: "TC tórax",
		Keywords: []string{"tc"}, Confidence: 0.9, Provenance: domain.ProvenanceMachine,
	})
	require.NoError(t, store.SaveState(ctx, rec))
	rec.Events[0].Keywords[0] = "mutated"

	loaded, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Events, 1)
	assert.Equal(t, []string{"tc"}, loaded.Events[0].Keywords)
	assert.Equal(t, 1, store.Saves())
}

func TestStateStore_SaveError(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()
	boom := errors.New("disk full")
	store.SetSaveError(boom)

	err := store.SaveState(ctx, domain.Record{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Saves())

	store.SetSaveError(nil)
	assert.NoError(t, store.SaveState(ctx, domain.Record{}))
}

func TestArtifactStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewArtifactStore()

	_, err := store.Get(ctx, "note-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, id := range []string{"note-b", "note-a"} {
		require.NoError(t, store.Save(ctx, domain.Artifact{
			ID:       id,
			Segments: []domain.TextSegment{{Text: "texto", Origin: domain.OriginMachine}},
		}))
	}

	got, err := store.Get(ctx, "note-a")
	require.NoError(t, err)
	got.Segments[0].Text = "changed"

	again, err := store.Get(ctx, "note-a")
	require.NoError(t, err)
	assert.Equal(t, "texto", again.Text())

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "note-a", list[0].ID)

	require.NoError(t, store.Delete(ctx, "note-a"))
	_, err = store.Get(ctx, "note-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobStore_HistoryAndPrune(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.ErrorIs(t, store.RecordJob(ctx, domain.IngestionJob{FileID: "a", Stage: domain.StageExtracting}), domain.ErrInvalidInput)

	require.NoError(t, store.RecordJob(ctx, domain.IngestionJob{FileID: "a", Attempt: 1, Stage: domain.StageFailed, FinishedAt: base}))
	require.NoError(t, store.RecordJob(ctx, domain.IngestionJob{FileID: "b", Attempt: 1, Stage: domain.StageDone, FinishedAt: base.Add(time.Hour)}))
	require.NoError(t, store.RecordJob(ctx, domain.IngestionJob{FileID: "a", Attempt: 2, Stage: domain.StageDone, FinishedAt: base.Add(2 * time.Hour)}))

	all, err := store.History(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].Attempt)

	onlyA, err := store.History(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, domain.StageDone, onlyA[0].Stage)

	removed, err := store.PruneHistory(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := store.History(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "a", left[0].FileID)
}
