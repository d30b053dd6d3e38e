// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewJobs shows ingestion progress.
	ViewJobs ViewType = iota
	// ViewTimeline browses events date by date.
	ViewTimeline
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the view name shown in the header.
func (v ViewType) String() string {
	switch v {
	case ViewJobs:
		return "Ingestion"
	case ViewTimeline:
		return "Timeline"
	case ViewHelp:
		return "Help"
	default:
		return "Unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// Tick triggers the next poll of job progress.
type Tick struct {
	At time.Time
}

// JobsPolled carries a fresh snapshot of the tracked jobs.
type JobsPolled struct {
	Jobs []domain.IngestionJob
}

// JobCancelled reports the outcome of a cancel request.
type JobCancelled struct {
	FileID string
	Err    error
}

// TimelineMoved carries the cursor after a navigation step.
type TimelineMoved struct {
	Cursor domain.TimelineCursor
	Events []domain.MedicalEvent
}

// ErrorOccurred is sent when an error happens in any operation.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
