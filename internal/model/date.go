package model

import (
	"strings"
	"time"
)

// DateLayout is the canonical on-disk date format.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component. The zero value is the
// unknown date, which sorts before every known date.
type Date struct {
	t     time.Time // midnight UTC
	known bool
}

// NewDate returns the known date y-m-d.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), known: true}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// UnknownDate returns the sentinel for a date that could not be parsed.
func UnknownDate() Date { return Date{} }

// Layouts accepted from upstream feeds, tried in order. All are year-first;
// day/month-first text is ambiguous and parses as unknown.
var parseLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ParseDate parses upstream date text. Unparsable or blank text yields the
// unknown date.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownDate()
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t)
		}
	}
	return UnknownDate()
}

func (d Date) IsKnown() bool { return d.known }

// Time returns midnight UTC of the date, or the zero time if unknown.
func (d Date) Time() time.Time { return d.t }

// Before orders dates with the unknown date as the minimum.
func (d Date) Before(o Date) bool {
	if !d.known {
		return o.known
	}
	if !o.known {
		return false
	}
	return d.t.Before(o.t)
}

func (d Date) Equal(o Date) bool {
	if d.known != o.known {
		return false
	}
	return !d.known || d.t.Equal(o.t)
}

// Format formats a known date with layout; the unknown date formats as "".
func (d Date) Format(layout string) string {
	if !d.known {
		return ""
	}
	return d.t.Format(layout)
}

func (d Date) String() string { return d.Format(DateLayout) }

// Period is an inclusive reporting window.
type Period struct {
	From Date
	To   Date
}

// Valid reports whether the period is well formed (both ends known, From <= To).
func (p Period) Valid() bool {
	return p.From.IsKnown() && p.To.IsKnown() && !p.To.Before(p.From)
}

func (p Period) String() string {
	return "[" + p.From.String() + ", " + p.To.String() + "]"
}
