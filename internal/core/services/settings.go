package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyExtractionProvider      = "extraction.provider"
	keyExtractionModel         = "extraction.model"
	keyExtractionTranscription = "extraction.transcription_model"
	keyExtractionBaseURL       = "extraction.base_url"
	keyExtractionAPIKey        = "extraction.api_key"
	keyExtractionRPM           = "extraction.requests_per_minute"
	keyExtractionCache         = "extraction.cache_size"
	keyIngestWorkers           = "ingest.workers"
	keyIngestMaxFileSize       = "ingest.max_file_size"
	keyIngestCreateNotes       = "ingest.create_notes"
	keyIngestRetention         = "ingest.history_retention"
	keySimilarityThreshold     = "reconcile.similarity_threshold"
	keyDatePivot               = "dates.pivot"
	keyStorageBackend          = "storage.backend"
	keyStoragePostgresURL      = "storage.postgres_url"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.ExtractionValidator
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithValidator checks provider credentials in ValidateExtractionConfig.
func WithValidator(v driven.ExtractionValidator) SettingsOption {
	return func(s *SettingsService) {
		s.validator = v
	}
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{configStore: configStore}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	provider := s.getProvider(defaults.Extraction.Provider)

	model := s.configStore.GetString(keyExtractionModel)
	if model == "" {
		model = domain.DefaultExtractionModels()[provider]
	}

	settings := &domain.AppSettings{
		Extraction: domain.ExtractionSettings{
			Provider:           provider,
			Model:              model,
			TranscriptionModel: s.getString(keyExtractionTranscription, defaults.Extraction.TranscriptionModel),
			BaseURL:            s.configStore.GetString(keyExtractionBaseURL),
			APIKey:             s.configStore.GetString(keyExtractionAPIKey),
			RequestsPerMinute:  s.getInt(keyExtractionRPM, defaults.Extraction.RequestsPerMinute),
			CacheSize:          s.getInt(keyExtractionCache, defaults.Extraction.CacheSize),
		},
		Ingest: domain.IngestSettings{
			Workers:          s.getInt(keyIngestWorkers, defaults.Ingest.Workers),
			MaxFileSize:      int64(s.getInt(keyIngestMaxFileSize, int(defaults.Ingest.MaxFileSize))),
			CreateNotes:      s.getBool(keyIngestCreateNotes, defaults.Ingest.CreateNotes),
			HistoryRetention: s.getDuration(keyIngestRetention, defaults.Ingest.HistoryRetention),
		},
		Reconcile: domain.ReconcileSettings{
			SimilarityThreshold: s.getFloat(keySimilarityThreshold, defaults.Reconcile.SimilarityThreshold),
		},
		Dates: domain.DateSettings{
			Pivot: defaults.Dates.Pivot,
		},
		Storage: domain.StorageSettings{
			Backend:     s.getBackend(defaults.Storage.Backend),
			PostgresURL: s.configStore.GetString(keyStoragePostgresURL),
		},
	}
	if _, ok := s.configStore.Get(keyDatePivot); ok {
		settings.Dates.Pivot = s.configStore.GetInt(keyDatePivot)
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyExtractionProvider, settings.Extraction.Provider.String()},
		{keyExtractionModel, settings.Extraction.Model},
		{keyExtractionTranscription, settings.Extraction.TranscriptionModel},
		{keyExtractionBaseURL, settings.Extraction.BaseURL},
		{keyExtractionRPM, settings.Extraction.RequestsPerMinute},
		{keyExtractionCache, settings.Extraction.CacheSize},
		{keyIngestWorkers, settings.Ingest.Workers},
		{keyIngestMaxFileSize, settings.Ingest.MaxFileSize},
		{keyIngestCreateNotes, settings.Ingest.CreateNotes},
		{keyIngestRetention, settings.Ingest.HistoryRetention.String()},
		{keySimilarityThreshold, settings.Reconcile.SimilarityThreshold},
		{keyDatePivot, settings.Dates.Pivot},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStoragePostgresURL, settings.Storage.PostgresURL},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Never overwrite a stored key with an empty one.
	if settings.Extraction.APIKey != "" {
		if err := s.configStore.Set(keyExtractionAPIKey, settings.Extraction.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyExtractionAPIKey, err)
		}
	}

	return nil
}

// SetExtractionProvider configures the extraction provider.
// An empty model selects the provider's default.
func (s *SettingsService) SetExtractionProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: extraction provider %q", domain.ErrInvalidInput, provider)
	}
	if apiKey == "" && provider.RequiresAPIKey() {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Extraction.Provider = provider
	settings.Extraction.Model = model
	if model == "" {
		settings.Extraction.Model = domain.DefaultExtractionModels()[provider]
	}
	settings.Extraction.BaseURL = ""
	settings.Extraction.APIKey = apiKey

	return s.Save(settings)
}

// SetWorkers sets the ingestion worker pool size.
func (s *SettingsService) SetWorkers(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", domain.ErrInvalidInput, n)
	}
	return s.configStore.Set(keyIngestWorkers, n)
}

// SetSimilarityThreshold sets the duplicate detection threshold.
func (s *SettingsService) SetSimilarityThreshold(threshold float64) error {
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in (0,1], got %v", domain.ErrInvalidInput, threshold)
	}
	return s.configStore.Set(keySimilarityThreshold, threshold)
}

// SetDatePivot sets the two-digit-year pivot. Negative restores the default.
func (s *SettingsService) SetDatePivot(pivot int) error {
	if pivot > 99 {
		return fmt.Errorf("%w: pivot must be at most 99, got %d", domain.ErrInvalidInput, pivot)
	}
	if pivot < 0 {
		pivot = domain.DefaultAppSettings().Dates.Pivot
	}
	return s.configStore.Set(keyDatePivot, pivot)
}

// SetStorage selects the storage backend.
func (s *SettingsService) SetStorage(backend domain.StorageBackend, postgresURL string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: storage backend %q", domain.ErrInvalidInput, backend)
	}
	if backend == domain.StoragePostgres && postgresURL == "" {
		return fmt.Errorf("%w: postgres backend needs a connection URL", domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(keyStorageBackend, string(backend)); err != nil {
		return fmt.Errorf("save %s: %w", keyStorageBackend, err)
	}
	return s.configStore.Set(keyStoragePostgresURL, postgresURL)
}

// Validate checks that ingestion can run with the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Extraction.IsConfigured() {
		return fmt.Errorf("extraction provider %q is not configured: set %s or the provider's API key variable",
			settings.Extraction.Provider, keyExtractionAPIKey)
	}
	if settings.Reconcile.SimilarityThreshold <= 0 || settings.Reconcile.SimilarityThreshold > 1 {
		return fmt.Errorf("%s must be in (0,1], got %v", keySimilarityThreshold, settings.Reconcile.SimilarityThreshold)
	}
	if settings.Storage.Backend == domain.StoragePostgres && settings.Storage.PostgresURL == "" {
		return fmt.Errorf("%s is required for the postgres backend", keyStoragePostgresURL)
	}

	return nil
}

// ValidateExtractionConfig pings the configured provider. Without a
// validator it only checks that the settings load.
func (s *SettingsService) ValidateExtractionConfig() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if s.validator == nil {
		return nil
	}
	return s.validator.ValidateExtraction(&settings.Extraction)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig returns the maintenance scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get("scheduler.enabled"); exists {
		defaults.Enabled = s.configStore.GetBool("scheduler.enabled")
	}

	// Map from task ID to config key (underscore version for TOML)
	taskKeys := map[string]string{
		domain.TaskIDHistoryPrune:     "history_prune",
		domain.TaskIDWorkspaceCleanup: "workspace_cleanup",
	}

	for taskID, configKey := range taskKeys {
		prefix := "scheduler." + configKey + "."
		taskCfg := defaults.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}
		taskCfg.Interval = s.getDuration(prefix+"interval", taskCfg.Interval)

		defaults.TaskConfigs[taskID] = taskCfg
	}

	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val := s.configStore.GetFloat(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

// getDuration reads a duration string like "45m" or "720h".
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(keyExtractionProvider))
	if !slices.Contains(domain.AllAIProviders(), provider) {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
