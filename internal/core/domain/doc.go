// Package domain defines the core clinical entities for clinitrace.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Date, DateRange: calendar days and administration windows
//   - MedicalEvent: a dated fact on the timeline
//   - Medication: one course in the administration ledger
//   - Record: the canonical collections for one subject
//   - IngestionJob: a file moving through the pipeline
//   - Artifact: editable narrative text with per-range provenance
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
