// Package tui provides an interactive terminal user interface for clinitrace.
// It shows ingestion progress and lets the user step through the timeline.
package tui

import (
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ingestion reports job progress.
	Ingestion driving.IngestionService

	// Timeline is optional; without it the timeline view is disabled.
	Timeline driving.TimelineService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	return nil
}
