// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// State represents the current application state for display.
type State string

const (
	StateReady   State = "ready"
	StateWorking State = "working"
	StateError   State = "error"
	StateHelp    State = "help"
)

// Counts summarises job stages for the bar.
type Counts struct {
	Active    int
	Done      int
	Failed    int
	Cancelled int
}

// CountJobs tallies jobs by outcome.
func CountJobs(jobs []domain.IngestionJob) Counts {
	var c Counts
	for _, j := range jobs {
		switch j.Stage {
		case domain.StageDone:
			c.Done++
		case domain.StageFailed:
			c.Failed++
		case domain.StageCancelled:
			c.Cancelled++
		default:
			c.Active++
		}
	}
	return c
}

// Bar displays application status and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	state    State
	message  string
	counts   Counts
	bindings []key.Binding
	width    int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Error.Render("Error")
	case StateHelp:
		return s.styles.Normal.Render("Help")
	case StateWorking, StateReady:
	}

	c := s.counts
	if c.Active+c.Done+c.Failed+c.Cancelled == 0 {
		return s.styles.Muted.Render("No jobs")
	}
	parts := []string{fmt.Sprintf("%d active", c.Active), fmt.Sprintf("%d done", c.Done)}
	if c.Failed > 0 {
		parts = append(parts, s.styles.Error.Render(fmt.Sprintf("%d failed", c.Failed)))
	}
	if c.Cancelled > 0 {
		parts = append(parts, fmt.Sprintf("%d cancelled", c.Cancelled))
	}
	return s.styles.Normal.Render(strings.Join(parts, " · "))
}

func (s *Bar) renderRight() string {
	bindings := s.bindings
	if len(bindings) == 0 {
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetJobs recomputes the counts from a job snapshot.
func (s *Bar) SetJobs(jobs []domain.IngestionJob) {
	s.counts = CountJobs(jobs)
	if s.state != StateError && s.state != StateHelp {
		s.state = StateReady
		if s.counts.Active > 0 {
			s.state = StateWorking
		}
	}
}

// Counts returns the last computed job counts.
func (s *Bar) Counts() Counts {
	return s.counts
}

// SetBindings sets the hints shown on the right.
func (s *Bar) SetBindings(bindings []key.Binding) {
	s.bindings = bindings
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to default state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.counts = Counts{}
}
