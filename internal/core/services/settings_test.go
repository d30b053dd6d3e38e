package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("extraction.provider", "gemini")
	_ = store.Set("extraction.api_key", "g-key")
	_ = store.Set("ingest.workers", 8)
	_ = store.Set("ingest.create_notes", false)
	_ = store.Set("ingest.history_retention", "72h")
	_ = store.Set("reconcile.similarity_threshold", 0.65)
	_ = store.Set("dates.pivot", 30)
	_ = store.Set("storage.backend", "postgres")
	_ = store.Set("storage.postgres_url", "postgres://localhost/clinitrace")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderGemini, settings.Extraction.Provider)
	assert.Equal(t, "gemini-1.5-flash", settings.Extraction.Model)
	assert.True(t, settings.Extraction.IsConfigured())
	assert.Equal(t, 8, settings.Ingest.Workers)
	assert.False(t, settings.Ingest.CreateNotes)
	assert.Equal(t, 72*time.Hour, settings.Ingest.HistoryRetention)
	assert.InDelta(t, 0.65, settings.Reconcile.SimilarityThreshold, 1e-9)
	assert.Equal(t, 30, settings.Dates.Pivot)
	assert.Equal(t, domain.StoragePostgres, settings.Storage.Backend)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("extraction.provider", "anthropic")
	_ = store.Set("storage.backend", "mysql")
	_ = store.Set("ingest.history_retention", "soon")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Extraction.Provider, settings.Extraction.Provider)
	assert.Equal(t, defaults.Storage.Backend, settings.Storage.Backend)
	assert.Equal(t, defaults.Ingest.HistoryRetention, settings.Ingest.HistoryRetention)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	want := domain.DefaultAppSettings()
	want.Extraction.APIKey = "sk-test"
	want.Ingest.Workers = 2
	want.Ingest.HistoryRetention = 48 * time.Hour
	want.Dates.Pivot = 50

	require.NoError(t, service.Save(&want))
	got, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	// Saving without a key keeps the stored one.
	want.Extraction.APIKey = ""
	require.NoError(t, service.Save(&want))
	assert.Equal(t, "sk-test", store.GetString("extraction.api_key"))
}

func TestSettingsService_SetExtractionProvider(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	err := service.SetExtractionProvider("anthropic", "", "k")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	err = service.SetExtractionProvider(domain.AIProviderGemini, "", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, service.SetExtractionProvider(domain.AIProviderGemini, "", "g-key"))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", settings.Extraction.Model)
	assert.Equal(t, "g-key", settings.Extraction.APIKey)
	require.NoError(t, service.Validate())
}

func TestSettingsService_SetExtractionProvider_LocalNeedsNoKey(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	require.NoError(t, service.SetExtractionProvider(domain.AIProviderOllama, "", ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Extraction.Provider)
	assert.Equal(t, "llama3.2", settings.Extraction.Model)
	assert.Empty(t, settings.Extraction.APIKey)
	require.NoError(t, service.Validate())
}

func TestSettingsService_Setters(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	assert.ErrorIs(t, service.SetWorkers(0), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetSimilarityThreshold(1.5), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetDatePivot(100), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetStorage("mysql", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetStorage(domain.StoragePostgres, ""), domain.ErrInvalidInput)

	require.NoError(t, service.SetWorkers(3))
	require.NoError(t, service.SetSimilarityThreshold(0.9))
	require.NoError(t, service.SetDatePivot(10))
	require.NoError(t, service.SetStorage(domain.StoragePostgres, "postgres://db/clinic"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, settings.Ingest.Workers)
	assert.InDelta(t, 0.9, settings.Reconcile.SimilarityThreshold, 1e-9)
	assert.Equal(t, 10, settings.Dates.Pivot)
	assert.Equal(t, "postgres://db/clinic", settings.Storage.PostgresURL)

	require.NoError(t, service.SetDatePivot(-5))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, -1, settings.Dates.Pivot)
}

func TestSettingsService_Validate(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	err := service.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")

	_ = store.Set("extraction.api_key", "sk")
	require.NoError(t, service.Validate())

	_ = store.Set("storage.backend", "postgres")
	err = service.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.postgres_url")
}

func TestSettingsService_GetSchedulerConfig(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("scheduler.history_prune.enabled", false)
	_ = store.Set("scheduler.workspace_cleanup.interval", "15m")

	cfg := NewSettingsService(store).GetSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.GetTaskConfig(domain.TaskIDHistoryPrune).Enabled)
	cleanup := cfg.GetTaskConfig(domain.TaskIDWorkspaceCleanup)
	assert.True(t, cleanup.Enabled)
	assert.Equal(t, 15*time.Minute, cleanup.Interval)
}

type stubValidator struct {
	err  error
	seen *domain.ExtractionSettings
}

func (v *stubValidator) ValidateExtraction(config *domain.ExtractionSettings) error {
	v.seen = config
	return v.err
}

func TestSettingsService_ValidateExtractionConfig(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("extraction.api_key", "sk-live")

	assert.NoError(t, NewSettingsService(store).ValidateExtractionConfig())

	v := &stubValidator{err: errors.New("401 unauthorized")}
	err := NewSettingsService(store, WithValidator(v)).ValidateExtractionConfig()

	require.Error(t, err)
	require.NotNil(t, v.seen)
	assert.Equal(t, "sk-live", v.seen.APIKey)
}
