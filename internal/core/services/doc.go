// Package services holds the clinical core: reconciliation of candidate
// facts into the record, the ingestion scheduler, timeline navigation,
// artifact editing and the maintenance scheduler.
//
// Services depend only on domain types and the driven ports.
package services
