package driving

import "github.com/custodia-labs/clinitrace/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetExtractionProvider configures the extraction provider.
	SetExtractionProvider(provider domain.AIProvider, model, apiKey string) error

	// SetWorkers sets the ingestion worker pool size.
	SetWorkers(n int) error

	// SetSimilarityThreshold sets the duplicate detection threshold.
	SetSimilarityThreshold(threshold float64) error

	// SetDatePivot sets the two-digit-year pivot. Negative restores the default.
	SetDatePivot(pivot int) error

	// SetStorage selects the storage backend.
	SetStorage(backend domain.StorageBackend, postgresURL string) error

	// Validate checks the current settings.
	Validate() error

	// ValidateExtractionConfig checks the provider credentials by pinging it.
	ValidateExtractionConfig() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
