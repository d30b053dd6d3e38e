package domain

// Direction selects which way a timeline jump searches.
type Direction int

const (
	// Forward finds the nearest date on or after the target.
	Forward Direction = iota

	// Backward finds the nearest date on or before the target.
	Backward
)

// TimelineCursor is a position over the distinct event dates.
// It is derived from an index and never stored.
type TimelineCursor struct {
	// Selected is the current date. Zero when nothing is selected.
	Selected Date

	// Dates are the distinct event dates, ascending.
	Dates []Date
}

// HasSelection reports whether a date is selected.
func (c TimelineCursor) HasSelection() bool {
	return !c.Selected.IsZero()
}

// position returns the index of Selected in Dates, or -1.
func (c TimelineCursor) position() int {
	for i, d := range c.Dates {
		if d == c.Selected {
			return i
		}
	}
	return -1
}

// HasPrev reports whether a previous date exists. False at the first date.
func (c TimelineCursor) HasPrev() bool {
	return c.position() > 0
}

// HasNext reports whether a following date exists. False at the last date.
func (c TimelineCursor) HasNext() bool {
	if !c.HasSelection() {
		return len(c.Dates) > 0
	}
	i := c.position()
	return i >= 0 && i < len(c.Dates)-1
}

// TimelineSummary describes a whole record for reports.
type TimelineSummary struct {
	// Events are the active events, oldest first.
	Events []MedicalEvent

	// First and Last bound the timeline. Zero when there are no events.
	First Date
	Last  Date

	// Medications counts active courses; Ongoing counts those without an end.
	Medications int
	Ongoing     int

	// Ingredients lists distinct active ingredients, sorted.
	Ingredients []string

	// Conflicts counts overlapping courses awaiting review.
	Conflicts int
}
