// Package timeline renders the events of one date and moves between dates.
package timeline

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/clinitrace/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
)

// View shows the selected date and its events.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	timeline driving.TimelineService

	cursor domain.TimelineCursor
	events []domain.MedicalEvent
	width  int
}

// NewView creates the timeline view.
func NewView(s *styles.Styles, timeline driving.TimelineService) *View {
	return &View{
		styles:   s,
		keymap:   keymap.DefaultKeyMap(),
		timeline: timeline,
		width:    80,
	}
}

// SetDimensions sets the view size.
func (v *View) SetDimensions(width, _ int) {
	v.width = width
}

// Init selects the first date, or refreshes the current one.
func (v *View) Init() tea.Cmd {
	if v.timeline == nil {
		return nil
	}
	selected := v.cursor.Selected
	return v.move(func() domain.TimelineCursor {
		c := v.timeline.Cursor(selected)
		if !c.HasSelection() {
			c = v.timeline.Next(c)
		}
		return c
	})
}

func (v *View) move(step func() domain.TimelineCursor) tea.Cmd {
	return func() tea.Msg {
		c := step()
		var events []domain.MedicalEvent
		if c.HasSelection() {
			events = v.timeline.EventsOn(c.Selected)
		}
		return messages.TimelineMoved{Cursor: c, Events: events}
	}
}

// Cursor returns the current cursor.
func (v *View) Cursor() domain.TimelineCursor {
	return v.cursor
}

// Update handles messages for the view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	if v.timeline == nil {
		return v, nil
	}
	switch msg := msg.(type) {
	case messages.TimelineMoved:
		v.cursor = msg.Cursor
		v.events = msg.Events
		return v, nil

	case tea.KeyMsg:
		cur := v.cursor
		switch {
		case key.Matches(msg, v.keymap.NextDate):
			if cur.HasNext() {
				return v, v.move(func() domain.TimelineCursor { return v.timeline.Next(cur) })
			}
		case key.Matches(msg, v.keymap.PrevDate):
			if cur.HasPrev() {
				return v, v.move(func() domain.TimelineCursor { return v.timeline.Prev(cur) })
			}
		}
	}
	return v, nil
}

// View renders the selected date.
func (v *View) View() string {
	if v.timeline == nil {
		return v.styles.Muted.Render("Timeline not available.")
	}
	if !v.cursor.HasSelection() {
		return v.styles.Muted.Render("No events yet.")
	}

	var b strings.Builder
	prev, next := " ", " "
	if v.cursor.HasPrev() {
		prev = "◂"
	}
	if v.cursor.HasNext() {
		next = "▸"
	}
	fmt.Fprintf(&b, "%s %s %s  %s\n\n", prev, v.styles.DateHeading.Render(v.cursor.Selected.String()), next,
		v.styles.Muted.Render(fmt.Sprintf("%d dates", len(v.cursor.Dates))))

	for _, e := range v.events {
		style := v.styles.Provenance(e.Provenance)
		fmt.Fprintf(&b, "• %s", style.Render(e.Title))
		if e.Provenance == domain.ProvenanceHuman {
			b.WriteString(v.styles.Muted.Render(" (edited)"))
		}
		b.WriteString("\n")
		if e.Description != "" {
			fmt.Fprintf(&b, "  %s\n", v.styles.Normal.Render(e.Description))
		}
		fmt.Fprintf(&b, "  %s\n", v.styles.Muted.Render(
			fmt.Sprintf("confidence %.0f%% · %s", e.Confidence*100, strings.Join(e.SourceFiles, ", "))))
	}
	return b.String()
}
