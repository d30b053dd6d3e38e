// Command clinitrace builds a clinical timeline from medical documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/ai"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/config/file"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/formulary"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/similarity/levenshtein"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/workspace"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/cli"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/services"
	"github.com/custodia-labs/clinitrace/internal/logger"
	"github.com/custodia-labs/clinitrace/internal/normalisers"
	"github.com/custodia-labs/clinitrace/internal/normalisers/dates"
	"github.com/custodia-labs/clinitrace/internal/normalisers/pdf"
)

// Environment variables read at startup. A .env file in the working
// directory is loaded first.
const (
	envHome        = "CLINITRACE_HOME"
	envOpenAIKey   = "OPENAI_API_KEY"
	envGeminiKey   = "GEMINI_API_KEY"
	envOllamaHost  = "OLLAMA_HOST"
	envPostgresURL = "CLINITRACE_POSTGRES_URL"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ignoring .env: %v", err)
	}

	home, err := homeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	a, err := wire(ctx, home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer a.close()

	return cli.Execute()
}

func homeDir() (string, error) {
	if dir := os.Getenv(envHome); dir != "" {
		return dir, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(userHome, ".clinitrace"), nil
}

// app holds what must be released on exit.
type app struct {
	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire builds every adapter and service and hands them to the CLI.
func wire(ctx context.Context, home string) (*app, error) {
	a := &app{}

	// ==================== Configuration ====================

	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(home, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, services.WithValidator(ai.NewConfigValidator()))
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	applyEnvironment(settings)

	// ==================== Storage ====================

	store, err := sqlite.NewStore(filepath.Join(home, "data"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.onClose(func() { _ = store.Close() })

	stateStore := store.StateStore()
	if settings.Storage.Backend == domain.StoragePostgres {
		pg, closePool, err := postgres.Open(ctx, settings.Storage.PostgresURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.onClose(closePool)
		stateStore = pg
	}

	fetcher, err := workspace.New(filepath.Join(home, "workspace"), settings.Ingest.MaxFileSize)
	if err != nil {
		a.close()
		return nil, err
	}

	// ==================== Extraction ====================

	extraction, err := ai.CreateExtractor(ctx, &settings.Extraction, prompts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.onClose(extraction.Close)
	extractor := extraction.Extractor

	ingredients, err := formulary.Load(filepath.Join(home, "formulary.yaml"), formulary.WithFallback(extraction.Ingredients))
	if err != nil {
		a.close()
		return nil, err
	}

	registry := normalisers.NewRegistry()
	// Gemini reads PDFs natively; the others get the extracted text.
	withPDF := settings.Extraction.Provider != domain.AIProviderGemini && pdf.CheckAvailable() == nil
	normalisers.RegisterDefaults(registry, withPDF)

	// ==================== Services ====================

	dateNormaliser := dates.New(dates.WithPivot(settings.Dates.Pivot))
	reconciler := services.NewReconciler(levenshtein.New(), settings.Reconcile.SimilarityThreshold)

	keeper := services.NewRecordKeeper(reconciler, stateStore)
	if err := keeper.Load(ctx); err != nil {
		// A corrupt record halts ingestion; browsing and 'jobs resume'
		// still work.
		logger.Error("record not loaded: %v", err)
	}

	editor := services.NewArtifactEditor(store.ArtifactStore(), extractor)

	ingestion := services.NewIngestionScheduler(
		services.IngestionConfig{
			Workers:     settings.Ingest.Workers,
			CreateNotes: settings.Ingest.CreateNotes,
		},
		keeper, fetcher, extractor, dateNormaliser, registry, editor, store.JobStore(),
		services.WithIngredientResolver(ingredients),
	)
	ingestion.Start(ctx)
	a.onClose(ingestion.Stop)

	maintenance := services.NewScheduler(
		settingsService.GetSchedulerConfig(),
		store.SchedulerStore(),
		store.JobStore(),
		fetcher,
		settings.Ingest.HistoryRetention,
	)

	cli.SetServices(cli.Services{
		Settings:  settingsService,
		Timeline:  services.NewTimelineService(keeper),
		Ledger:    keeper,
		Ingestion: ingestion,
		Editor:    editor,
		Scheduler: maintenance,
		Dates:     dateNormaliser,
	})

	return a, nil
}

// applyEnvironment fills secrets the config file leaves empty.
func applyEnvironment(s *domain.AppSettings) {
	if s.Extraction.APIKey == "" {
		switch s.Extraction.Provider {
		case domain.AIProviderOpenAI:
			s.Extraction.APIKey = os.Getenv(envOpenAIKey)
		case domain.AIProviderGemini:
			s.Extraction.APIKey = os.Getenv(envGeminiKey)
		}
	}
	if s.Extraction.Provider == domain.AIProviderOllama && s.Extraction.BaseURL == "" {
		s.Extraction.BaseURL = ollamaURL(os.Getenv(envOllamaHost))
	}
	if s.Storage.PostgresURL == "" {
		s.Storage.PostgresURL = os.Getenv(envPostgresURL)
	}
}

// ollamaURL accepts OLLAMA_HOST the way the ollama CLI does: a bare
// host:port means plain HTTP.
func ollamaURL(host string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "http://" + host
}
