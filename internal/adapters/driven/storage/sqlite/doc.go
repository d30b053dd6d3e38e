// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements every persistence port through a single database connection:
//
//   - StateStore: the canonical record (medical events and medications)
//   - ArtifactStore: narrative artifacts with segment provenance
//   - JobStore: archived ingestion jobs
//   - SchedulerStore: maintenance task state and results
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.clinitrace/data/clinitrace.db
//
// # Atomicity
//
// SaveState deletes and re-inserts both collections inside one transaction,
// so a failed save leaves the previous record readable.
package sqlite
