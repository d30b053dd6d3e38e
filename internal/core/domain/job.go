package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// uploadNamespace scopes upload IDs derived from file paths.
var uploadNamespace = uuid.MustParse("6f1d3c52-8a0e-4d7b-9c61-2f4e5b7a9d10")

// UploadID derives a stable FileID from a file path, so submitting the
// same file again retries it instead of starting an unrelated job.
func UploadID(path string) string {
	return uuid.NewSHA1(uploadNamespace, []byte(filepath.Clean(path))).String()
}

// Stage is a step of the ingestion state machine.
type Stage string

// Ingestion stages.
const (
	StageQueued      Stage = "queued"
	StageFetching    Stage = "fetching"
	StageExtracting  Stage = "extracting"
	StageReconciling Stage = "reconciling"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
	StageCancelled   Stage = "cancelled"
)

var stageTransitions = map[Stage][]Stage{
	StageQueued:      {StageFetching, StageCancelled},
	StageFetching:    {StageExtracting, StageFailed, StageCancelled},
	StageExtracting:  {StageReconciling, StageFailed, StageCancelled},
	StageReconciling: {StageDone, StageFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed || s == StageCancelled
}

// CanTransition reports whether the state machine allows s -> to.
func (s Stage) CanTransition(to Stage) bool {
	for _, next := range stageTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Upload describes a raw file handed to the scheduler.
type Upload struct {
	// FileID identifies the upload. One active job per FileID.
	FileID string

	// Name is the original file name.
	Name string

	// Path is where the raw bytes can be read from.
	Path string

	// MIMEType is detected from the name when empty.
	MIMEType string
}

// WorkingCopy is a fetched upload in working storage.
type WorkingCopy struct {
	FileID   string
	Path     string
	MIMEType string
	Size     int64
	SHA256   string
}

// IngestionJob tracks one file through the pipeline.
type IngestionJob struct {
	FileID   string
	Name     string
	MIMEType string

	// Seq is the submission order. Used as tie-breaker in merges.
	Seq int64

	// Attempt counts submissions of the same FileID, starting at 1.
	Attempt int

	Stage Stage

	// ProgressFetch and ProgressExtract are in [0,1].
	ProgressFetch   float64
	ProgressExtract float64

	// Candidates counts the facts the extractor returned.
	Candidates int

	// Conflicts lists non-fatal findings from reconciliation.
	Conflicts []Conflict

	// FailedStage is the stage that failed; empty unless Stage is failed.
	FailedStage Stage

	// Error is the failure message; empty unless Stage is failed.
	Error string

	SubmittedAt time.Time
	UpdatedAt   time.Time
	FinishedAt  time.Time
}

// Progress returns an overall completion estimate in [0,1].
func (j IngestionJob) Progress() float64 {
	switch j.Stage {
	case StageDone:
		return 1
	case StageReconciling:
		return 0.95
	default:
		return 0.2*j.ProgressFetch + 0.75*j.ProgressExtract
	}
}

// Clone returns a deep copy.
func (j IngestionJob) Clone() IngestionJob {
	if j.Conflicts != nil {
		j.Conflicts = append([]Conflict(nil), j.Conflicts...)
	}
	return j
}
