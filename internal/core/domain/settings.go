package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an extraction service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOpenAI is OpenAI chat completions plus Whisper transcription.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google Gemini with native PDF/audio/video input.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOllama is a local Ollama server. Text and images only.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderGemini, AIProviderOllama:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOpenAI:
		return "OpenAI (chat + whisper)"
	case AIProviderGemini:
		return "Google Gemini (multimodal)"
	case AIProviderOllama:
		return "Ollama (local, no API key)"
	default:
		return unknownDescription
	}
}

// RequiresAPIKey returns false for providers that run locally.
func (p AIProvider) RequiresAPIKey() bool {
	return p != AIProviderOllama
}

// StorageBackend selects where the canonical record is persisted.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite keeps everything in a local database file.
	StorageSQLite StorageBackend = "sqlite"

	// StoragePostgres keeps the record in a PostgreSQL database.
	StoragePostgres StorageBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageSQLite || b == StoragePostgres
}

// ExtractionSettings holds extraction provider configuration.
type ExtractionSettings struct {
	// Provider is the extraction service provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// TranscriptionModel is used for audio and video (OpenAI only).
	TranscriptionModel string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// APIKey authenticates against the provider.
	APIKey string

	// RequestsPerMinute throttles calls. Zero disables throttling.
	RequestsPerMinute int

	// CacheSize is the number of extraction results kept in memory.
	// Zero disables caching.
	CacheSize int
}

// IsConfigured returns true if the provider is set up.
func (e ExtractionSettings) IsConfigured() bool {
	return e.Provider.IsValid() && (e.APIKey != "" || !e.Provider.RequiresAPIKey())
}

// IngestSettings holds scheduler configuration.
type IngestSettings struct {
	// Workers is the size of the worker pool.
	Workers int

	// MaxFileSize rejects larger uploads at fetch time. Zero means unlimited.
	MaxFileSize int64

	// CreateNotes turns extracted clinical notes into editable artifacts.
	CreateNotes bool

	// HistoryRetention is how long consumed jobs stay in history.
	HistoryRetention time.Duration
}

// ReconcileSettings holds merge policy.
type ReconcileSettings struct {
	// SimilarityThreshold is the minimum text similarity in [0,1] for two
	// same-day events to be considered duplicates.
	SimilarityThreshold float64
}

// DateSettings holds date parsing policy.
type DateSettings struct {
	// Pivot decides the century of two-digit years: yy <= Pivot is 20yy,
	// otherwise 19yy. Negative means "current year + 1".
	Pivot int
}

// StorageSettings holds persistence configuration.
type StorageSettings struct {
	Backend StorageBackend

	// PostgresURL is the connection string when Backend is postgres.
	PostgresURL string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Extraction ExtractionSettings
	Ingest     IngestSettings
	Reconcile  ReconcileSettings
	Dates      DateSettings
	Storage    StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The extraction provider is left without a key; it must come from the
// config file or the environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Extraction: ExtractionSettings{
			Provider:           AIProviderOpenAI,
			Model:              DefaultExtractionModels()[AIProviderOpenAI],
			TranscriptionModel: "whisper-1",
			RequestsPerMinute:  60,
			CacheSize:          128,
		},
		Ingest: IngestSettings{
			Workers:          4,
			MaxFileSize:      50 << 20,
			CreateNotes:      true,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		Reconcile: ReconcileSettings{
			SimilarityThreshold: 0.8,
		},
		Dates: DateSettings{
			Pivot: -1,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
	}
}

// AllAIProviders returns providers that can extract facts.
func AllAIProviders() []AIProvider {
	return []AIProvider{AIProviderOpenAI, AIProviderGemini, AIProviderOllama}
}

// DefaultExtractionModels returns default models for each provider.
func DefaultExtractionModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderGemini: "gemini-1.5-flash",
		AIProviderOllama: "llama3.2",
	}
}
