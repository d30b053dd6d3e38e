// Package jobs renders ingestion progress with one bar per file.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// View lists the tracked jobs.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	ingestion driving.IngestionService
	ctx       context.Context

	// watch limits the view to these FileIDs. Empty shows every job.
	watch map[string]bool

	jobs     []domain.IngestionJob
	selected int
	bar      progress.Model
	width    int
	height   int
}

// NewView creates the jobs view.
func NewView(s *styles.Styles, ingestion driving.IngestionService, watch []string) *View {
	v := &View{
		styles:    s,
		keymap:    keymap.DefaultKeyMap(),
		ingestion: ingestion,
		ctx:       context.Background(),
		bar:       progress.New(progress.WithScaledGradient(string(s.Theme().Primary), string(s.Theme().Success))),
		width:     80,
	}
	if len(watch) > 0 {
		v.watch = make(map[string]bool, len(watch))
		for _, id := range watch {
			v.watch[id] = true
		}
	}
	v.bar.Width = 30
	return v
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) {
	v.ctx = ctx
}

// SetDimensions sets the view size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.bar.Width = max(10, min(40, width/3))
}

// Poll returns a command that fetches a job snapshot.
func (v *View) Poll() tea.Cmd {
	return func() tea.Msg {
		all := v.ingestion.List(v.ctx)
		if v.watch == nil {
			return messages.JobsPolled{Jobs: all}
		}
		jobs := make([]domain.IngestionJob, 0, len(v.watch))
		for _, j := range all {
			if v.watch[j.FileID] {
				jobs = append(jobs, j)
			}
		}
		return messages.JobsPolled{Jobs: jobs}
	}
}

// Jobs returns the last snapshot.
func (v *View) Jobs() []domain.IngestionJob {
	return v.jobs
}

// Selected returns the index of the highlighted job.
func (v *View) Selected() int {
	return v.selected
}

// Settled reports whether every watched job reached a terminal stage.
// Always false when no FileIDs are watched.
func (v *View) Settled() bool {
	if v.watch == nil || len(v.jobs) < len(v.watch) {
		return false
	}
	for _, j := range v.jobs {
		if !j.Stage.IsTerminal() {
			return false
		}
	}
	return true
}

// Update handles messages for the view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.JobsPolled:
		v.jobs = msg.Jobs
		if v.selected >= len(v.jobs) {
			v.selected = max(0, len(v.jobs)-1)
		}
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keymap.Up):
			if v.selected > 0 {
				v.selected--
			}
		case key.Matches(msg, v.keymap.Down):
			if v.selected < len(v.jobs)-1 {
				v.selected++
			}
		case key.Matches(msg, v.keymap.CancelJob):
			return v, v.cancelSelected()
		}
	}
	return v, nil
}

func (v *View) cancelSelected() tea.Cmd {
	if v.selected >= len(v.jobs) {
		return nil
	}
	job := v.jobs[v.selected]
	if job.Stage.IsTerminal() {
		return nil
	}
	return func() tea.Msg {
		return messages.JobCancelled{FileID: job.FileID, Err: v.ingestion.Cancel(v.ctx, job.FileID)}
	}
}

// View renders the job list.
func (v *View) View() string {
	if len(v.jobs) == 0 {
		return v.styles.Muted.Render("Waiting for jobs...")
	}

	var b strings.Builder
	for i, j := range v.jobs {
		name := j.Name
		if name == "" {
			name = j.FileID
		}
		cursor := "  "
		if i == v.selected {
			cursor = v.styles.Selected.Render("▸ ")
		}

		fmt.Fprintf(&b, "%s%s %s\n", cursor, v.styles.Normal.Render(name),
			v.styles.Stage(j.Stage).Render("["+j.Stage.String()+"]"))
		fmt.Fprintf(&b, "  %s", v.bar.ViewAs(j.Progress()))
		if j.Candidates > 0 {
			fmt.Fprintf(&b, "  %s", v.styles.Muted.Render(fmt.Sprintf("%d facts", j.Candidates)))
		}
		b.WriteString("\n")

		switch {
		case j.Stage == domain.StageFailed:
			fmt.Fprintf(&b, "  %s\n", v.styles.Error.Render(fmt.Sprintf("%s: %s", j.FailedStage, j.Error)))
		case len(j.Conflicts) > 0:
			fmt.Fprintf(&b, "  %s\n", v.styles.Warning.Render(fmt.Sprintf("%d conflicts to review", len(j.Conflicts))))
		}
	}
	return b.String()
}
