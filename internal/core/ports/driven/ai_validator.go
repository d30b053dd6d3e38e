package driven

import "github.com/custodia-labs/clinitrace/internal/core/domain"

// ExtractionValidator checks an extraction provider configuration.
// Implementations verify credentials by contacting the provider.
type ExtractionValidator interface {
	// ValidateExtraction returns nil if the configuration works or is not
	// configured at all.
	ValidateExtraction(config *domain.ExtractionSettings) error
}
