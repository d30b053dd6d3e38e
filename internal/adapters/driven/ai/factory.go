// Package ai builds the extraction provider chosen in settings, wrapped in
// the result cache and the rate limiter.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction/cache"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction/gemini"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction/ollama"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction/openai"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction/ratelimit"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// pingTimeout is the maximum time to wait for connectivity validation.
const pingTimeout = 5 * time.Second

// pinger is implemented by providers that can check their credentials
// without running an extraction.
type pinger interface {
	Ping(ctx context.Context) error
}

// InitResult holds the extractor and what must be released with it.
type InitResult struct {
	Extractor driven.Extractor

	// Configured is false when the provider has no credentials and
	// Extractor fails every call.
	Configured bool

	// Ingredients is the provider's ingredient lookup, nil when the
	// provider has none or is not configured.
	Ingredients driven.IngredientResolver

	closers []func() error
}

// Close releases the provider client.
func (r *InitResult) Close() {
	for _, c := range r.closers {
		if err := c(); err != nil {
			logger.Debug("closing extractor: %v", err)
		}
	}
	r.closers = nil
}

// CreateExtractor builds the configured provider and wraps it. When a
// required API key is missing it returns an extractor that fails every
// call, so read-only commands keep working.
func CreateExtractor(ctx context.Context, settings *domain.ExtractionSettings, prompts driven.PromptStore) (*InitResult, error) {
	if settings == nil || !settings.IsConfigured() {
		provider := domain.AIProviderOpenAI
		if settings != nil {
			provider = settings.Provider
		}
		logger.Debug("extraction provider %s has no API key", provider)
		return &InitResult{Extractor: Unconfigured(provider)}, nil
	}

	result := &InitResult{Configured: true}
	inner, err := createProvider(ctx, settings, prompts, result)
	if err != nil {
		return nil, fmt.Errorf("%s extractor: %w. Run 'clinitrace settings wizard' to fix", settings.Provider, err)
	}

	if r, ok := inner.(driven.IngredientResolver); ok {
		result.Ingredients = r
	}

	extractor := inner
	if settings.CacheSize > 0 {
		cached, err := cache.New(extractor, settings.CacheSize)
		if err != nil {
			result.Close()
			return nil, fmt.Errorf("extraction cache: %w", err)
		}
		extractor = cached
	}
	result.Extractor = ratelimit.New(extractor, ratelimit.Config{RequestsPerMinute: settings.RequestsPerMinute})

	logger.Debug("extraction via %s", result.Extractor.Name())
	return result, nil
}

// ValidateExtractionConfig creates the provider and pings it. Providers
// without a ping are accepted once the client is created.
// This is intended for the settings wizard.
func ValidateExtractionConfig(settings *domain.ExtractionSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	result := &InitResult{}
	defer result.Close()

	svc, err := createProvider(ctx, settings, nil, result)
	if err != nil {
		return err
	}
	if p, ok := svc.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// createProvider returns the bare provider client. Clients holding a
// connection register their Close on result.
func createProvider(ctx context.Context, settings *domain.ExtractionSettings, prompts driven.PromptStore, result *InitResult) (driven.Extractor, error) {
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:             settings.APIKey,
			BaseURL:            settings.BaseURL,
			Model:              settings.Model,
			TranscriptionModel: settings.TranscriptionModel,
			Prompts:            prompts,
		})

	case domain.AIProviderGemini:
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:   settings.APIKey,
			Model:    settings.Model,
			Endpoint: settings.BaseURL,
			Prompts:  prompts,
		})
		if err != nil {
			return nil, err
		}
		result.closers = append(result.closers, g.Close)
		return g, nil

	case domain.AIProviderOllama:
		return ollama.New(ollama.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Prompts: prompts,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported extraction provider: %s", settings.Provider)
	}
}
