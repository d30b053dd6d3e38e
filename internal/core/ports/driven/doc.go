// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor: Turns file bytes into candidate facts
//   - Fetcher: Copies uploads into working storage
//   - StateStore: Canonical record persistence
//   - ArtifactStore: Narrative artifact persistence
//   - TextMatcher: Similarity scoring for duplicate detection
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - JobStore: Finished jobs are forgotten instead of archived.
//   - SchedulerStore: Maintenance tasks do not run.
//   - NormaliserRegistry: Only text files reach text-only extractors.
//   - PromptStore: Built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
