package ai

import (
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.ExtractionValidator = (*ConfigValidator)(nil)

// ConfigValidator validates extraction provider configurations.
type ConfigValidator struct{}

// NewConfigValidator creates a new config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateExtraction validates a configuration by pinging the provider.
func (v *ConfigValidator) ValidateExtraction(config *domain.ExtractionSettings) error {
	return ValidateExtractionConfig(config)
}
