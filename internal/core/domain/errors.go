package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown MIME type or extractor.
	ErrUnsupportedType = errors.New("unsupported type")

	// Reconciliation Errors.

	// ErrUnanchoredFact indicates a candidate fact had no resolvable date.
	ErrUnanchoredFact = errors.New("unanchored fact")

	// ErrOverlappingCourse indicates two courses of the same ingredient
	// partially overlap without one containing the other.
	ErrOverlappingCourse = errors.New("overlapping course")

	// ErrMalformedFact indicates a candidate fact violates a field constraint
	// (confidence out of range, start after end, missing name).
	ErrMalformedFact = errors.New("malformed fact")

	// ErrCorruptState indicates the existing collections violate an invariant.
	// Reconciliation halts and no partial result is published.
	ErrCorruptState = errors.New("corrupt state")

	// Ingestion Errors.

	// ErrExtractionFailed indicates the extraction service failed or timed out.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrJobInProgress indicates a job for the same file is still active.
	ErrJobInProgress = errors.New("ingestion in progress")

	// ErrIngestionHalted indicates new ingestion is blocked after a corrupt
	// state was detected.
	ErrIngestionHalted = errors.New("ingestion halted")

	// ErrInvalidTransition indicates a job stage change that the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// Editing Errors.

	// ErrConfirmationRequired indicates a destructive operation was requested
	// without explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
)

// StageError records the ingestion stage at which a job failed.
type StageError struct {
	FileID string
	Stage  Stage
	Err    error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.FileID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// CorruptStateError describes which invariant the stored collections violate.
type CorruptStateError struct {
	RecordID string
	Reason   string
}

// Error implements the error interface.
func (e *CorruptStateError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("corrupt state: %s", e.Reason)
	}
	return fmt.Sprintf("corrupt state: record %s: %s", e.RecordID, e.Reason)
}

// Unwrap lets errors.Is match ErrCorruptState.
func (e *CorruptStateError) Unwrap() error {
	return ErrCorruptState
}
