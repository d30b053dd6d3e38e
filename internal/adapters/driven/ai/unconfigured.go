package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

var _ driven.Extractor = unconfigured{}

// unconfigured stands in for a provider without credentials.
type unconfigured struct {
	provider domain.AIProvider
}

// Unconfigured returns an extractor that rejects every call with a hint
// to configure provider.
func Unconfigured(provider domain.AIProvider) driven.Extractor {
	return unconfigured{provider: provider}
}

func (e unconfigured) err() error {
	return fmt.Errorf("%w: %s has no API key; run 'clinitrace settings wizard' or set the provider's API key variable",
		domain.ErrInvalidInput, e.provider)
}

func (e unconfigured) Extract(context.Context, []byte, string) ([]domain.RawCandidate, error) {
	return nil, e.err()
}

func (e unconfigured) CleanupText(context.Context, string) (string, error) {
	return "", e.err()
}

func (e unconfigured) Name() string {
	return "unconfigured/" + string(e.provider)
}
