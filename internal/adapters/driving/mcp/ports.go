package mcp

import (
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Timeline answers navigation and overlap queries.
	Timeline driving.TimelineService

	// Ledger applies manual changes to the record.
	Ledger driving.LedgerService

	// Ingestion queues uploads and reports job progress.
	Ingestion driving.IngestionService

	// Editor manages narrative notes.
	Editor driving.EditorService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Timeline == nil {
		return ErrMissingTimelineService
	}
	// Ledger, Ingestion and Editor are optional; their tools report
	// errNotConfigured.
	return nil
}
