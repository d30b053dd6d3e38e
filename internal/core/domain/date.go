package domain

import (
	"fmt"
	"time"
)

// dateLayout is the canonical textual form of a Date.
const dateLayout = "2006-01-02"

// Date is a calendar date without time of day or zone.
// The zero value means "no date" and is never a valid fact anchor.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate returns the date for the given components.
// Components that do not name a real calendar day are rejected
// (31/02, 29/02 outside leap years, month 13).
func NewDate(year int, month time.Month, day int) (Date, error) {
	if year < 1 || year > 9999 || month < time.January || month > time.December || day < 1 {
		return Date{}, fmt.Errorf("%w: date %04d-%02d-%02d", ErrInvalidInput, year, int(month), day)
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("%w: date %04d-%02d-%02d", ErrInvalidInput, year, int(month), day)
	}
	return Date{year: year, month: month, day: day}, nil
}

// MustDate is NewDate for literals known to be valid. It panics otherwise.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDate parses the canonical YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// Year returns the year component.
func (d Date) Year() int { return d.year }

// Month returns the month component.
func (d Date) Month() time.Month { return d.month }

// Day returns the day of month.
func (d Date) Day() int { return d.day }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1 as d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// String formats d as YYYY-MM-DD. The zero Date formats as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// An empty input yields the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// DateRange is an inclusive span of days. A zero End means the range is
// still open (ongoing).
type DateRange struct {
	Start Date
	End   Date
}

// IsOpen reports whether the range has no end date.
func (r DateRange) IsOpen() bool {
	return r.End.IsZero()
}

// Validate checks that Start is set and not after End.
func (r DateRange) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("%w: range without start date", ErrInvalidInput)
	}
	if !r.IsOpen() && r.End.Before(r.Start) {
		return fmt.Errorf("%w: range %s ends before it starts", ErrInvalidInput, r)
	}
	return nil
}

// endCompare orders end dates treating open ends as +infinity.
func endCompare(a, b Date) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	default:
		return a.Compare(b)
	}
}

// Equal reports whether both ranges cover the same days.
func (r DateRange) Equal(o DateRange) bool {
	return r.Start == o.Start && r.End == o.End
}

// Contains reports whether o lies entirely inside r.
func (r DateRange) Contains(o DateRange) bool {
	return r.Start.Compare(o.Start) <= 0 && endCompare(r.End, o.End) >= 0
}

// ContainsDate reports whether d falls inside r.
func (r DateRange) ContainsDate(d Date) bool {
	return r.Start.Compare(d) <= 0 && (r.IsOpen() || d.Compare(r.End) <= 0)
}

// Overlaps reports whether r and o share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return (o.IsOpen() || r.Start.Compare(o.End) <= 0) &&
		(r.IsOpen() || o.Start.Compare(r.End) <= 0)
}

// Touches reports whether r and o overlap or are adjacent
// (one ends the day before the other starts).
func (r DateRange) Touches(o DateRange) bool {
	if r.Overlaps(o) {
		return true
	}
	if !r.IsOpen() && r.End.AddDays(1) == o.Start {
		return true
	}
	return !o.IsOpen() && o.End.AddDays(1) == r.Start
}

// Days returns the length of a closed range in days, or -1 when open.
func (r DateRange) Days() int {
	if r.IsOpen() {
		return -1
	}
	return int(r.End.Time().Sub(r.Start.Time()).Hours()/24) + 1
}

// String formats the range as "start..end" (end omitted when open).
func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
