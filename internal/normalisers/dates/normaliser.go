// Package dates turns free-form date text into canonical calendar dates.
//
// It accepts the numeric day-first forms used in Brazilian clinical
// documents (12/03/2023, 12-03-23, 12.03.2023), ISO dates (2023-03-12) and
// written Portuguese dates ("12 de março de 2023", "1º de fev. de 23").
// Anything that looks like a date but names no real calendar day is
// dropped and counted as noise.
package dates

import (
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

var (
	isoPattern     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	numericPattern = regexp.MustCompile(`\b(\d{1,2})([/.\-])(\d{1,2})([/.\-])(\d{4}|\d{2})\b`)
	writtenPattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s*[º°]?\s+de\s+(\p{L}+)\.?\s+(?:de\s+)?(\d{4}|\d{2})\b`)
)

var monthNames = map[string]time.Month{
	"janeiro": time.January, "jan": time.January,
	"fevereiro": time.February, "fev": time.February,
	"marco": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"maio": time.May, "mai": time.May,
	"junho": time.June, "jun": time.June,
	"julho": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"setembro": time.September, "set": time.September,
	"outubro": time.October, "out": time.October,
	"novembro": time.November, "nov": time.November,
	"dezembro": time.December, "dez": time.December,
}

// PivotPolicy decides the century of two-digit years.
// A year yy <= Pivot becomes 20yy; anything above becomes 19yy.
type PivotPolicy struct {
	Pivot int
}

// DefaultPivot returns the policy anchored at the year after now:
// in 2026 the pivot is 27, so "27" is 2027 and "28" is 1928.
func DefaultPivot(now time.Time) PivotPolicy {
	return PivotPolicy{Pivot: now.Year()%100 + 1}
}

// Century expands a two-digit year.
func (p PivotPolicy) Century(yy int) int {
	if yy <= p.Pivot {
		return 2000 + yy
	}
	return 1900 + yy
}

// Result is the outcome of scanning one text.
type Result struct {
	// Dates are distinct and ascending.
	Dates []domain.Date

	// Noise counts date-shaped tokens that were not real calendar dates.
	Noise int
}

// Normaliser extracts dates from text. It holds no mutable state and is
// safe for concurrent use.
type Normaliser struct {
	policy PivotPolicy
}

// Option configures a Normaliser.
type Option func(*normaliserConfig)

type normaliserConfig struct {
	pivot int
	now   func() time.Time
}

// WithPivot fixes the two-digit-year pivot. Negative values keep the
// default.
func WithPivot(pivot int) Option {
	return func(c *normaliserConfig) {
		c.pivot = pivot
	}
}

// WithClock sets the clock used to derive the default pivot.
func WithClock(now func() time.Time) Option {
	return func(c *normaliserConfig) {
		c.now = now
	}
}

// New creates a normaliser.
func New(opts ...Option) *Normaliser {
	cfg := normaliserConfig{pivot: -1, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	policy := DefaultPivot(cfg.now())
	if cfg.pivot >= 0 {
		policy = PivotPolicy{Pivot: cfg.pivot}
	}
	return &Normaliser{policy: policy}
}

// Policy returns the active pivot policy.
func (n *Normaliser) Policy() PivotPolicy {
	return n.policy
}

// Normalise yields every date found in raw, deduplicated and ascending.
// Scanning happens when the sequence is ranged over; ranging again scans
// again.
func (n *Normaliser) Normalise(raw string) iter.Seq[domain.Date] {
	return func(yield func(domain.Date) bool) {
		for _, d := range n.Scan(raw).Dates {
			if !yield(d) {
				return
			}
		}
	}
}

// First returns the earliest date in raw.
func (n *Normaliser) First(raw string) (domain.Date, bool) {
	for d := range n.Normalise(raw) {
		return d, true
	}
	return domain.Date{}, false
}

// Parse reads a date typed by a person. It fails unless raw holds exactly
// one valid date.
func (n *Normaliser) Parse(raw string) (domain.Date, error) {
	res := n.Scan(raw)
	if len(res.Dates) != 1 || res.Noise > 0 {
		return domain.Date{}, fmt.Errorf("%w: unrecognised date %q", domain.ErrInvalidInput, raw)
	}
	return res.Dates[0], nil
}

// Scan extracts dates and counts noise.
func (n *Normaliser) Scan(raw string) Result {
	var res Result
	seen := make(map[domain.Date]struct{})
	add := func(d domain.Date, err error) {
		if err != nil {
			res.Noise++
			return
		}
		if _, dup := seen[d]; dup {
			return
		}
		seen[d] = struct{}{}
		res.Dates = append(res.Dates, d)
	}

	// ISO first, then blank the matches so "2023-03-05" is not re-read
	// as a day-first "23-03-05".
	text := []byte(raw)
	for _, m := range isoPattern.FindAllSubmatchIndex(text, -1) {
		y := atoi(text[m[2]:m[3]])
		mo := atoi(text[m[4]:m[5]])
		d := atoi(text[m[6]:m[7]])
		add(domain.NewDate(y, time.Month(mo), d))
		blank(text, m[0], m[1])
	}

	for _, m := range numericPattern.FindAllSubmatchIndex(text, -1) {
		if text[m[4]] != text[m[8]] {
			continue
		}
		d := atoi(text[m[2]:m[3]])
		mo := atoi(text[m[6]:m[7]])
		y := n.year(text[m[10]:m[11]])
		add(domain.NewDate(y, time.Month(mo), d))
		blank(text, m[0], m[1])
	}

	for _, m := range writtenPattern.FindAllSubmatchIndex(text, -1) {
		month, ok := monthNames[domain.FoldKey(string(text[m[4]:m[5]]))]
		if !ok {
			res.Noise++
			continue
		}
		d := atoi(text[m[2]:m[3]])
		y := n.year(text[m[6]:m[7]])
		add(domain.NewDate(y, month, d))
	}

	slices.SortFunc(res.Dates, func(a, b domain.Date) int { return a.Compare(b) })
	return res
}

func (n *Normaliser) year(b []byte) int {
	y := atoi(b)
	if len(b) == 2 {
		return n.policy.Century(y)
	}
	return y
}

func atoi(b []byte) int {
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return v
}

func blank(b []byte, from, to int) {
	for i := from; i < to; i++ {
		b[i] = ' '
	}
}
