package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar date abstraction (day granularity, always UTC midnight)
// =============================================================================

// Date is a calendar date. Every computation in the engine works on Date;
// raw upstream strings are normalized once through ParseDate.
type Date struct {
	Time time.Time
}

// Layouts accepted from upstream records.
const (
	LayoutISO       = "2006-01-02"
	LayoutBrazilian = "02/01/2006"

	// LayoutBrazilianShort takes hand-typed dates without zero padding
	// ("5/3/2024").
	LayoutBrazilianShort = "2/1/2006"
)

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Today is only meant for outer layers (api, cmd). The billing core takes
// its analysis date as a parameter.
func Today() Date { return DateOf(time.Now()) }

// ParseDate normalizes "YYYY-MM-DD" and "DD/MM/YYYY" strings, the latter
// with or without zero padding. A full RFC3339
// timestamp is also accepted and truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, &DateParseError{Input: s}
	}
	for _, layout := range []string{LayoutISO, LayoutBrazilian, LayoutBrazilianShort} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, &DateParseError{Input: s}
}

// ParseDateOr parses s and falls back to def when s is malformed.
// Legacy records carry hand-typed dates, so a bad value must never abort
// the computation.
func ParseDateOr(s string, def Date) Date {
	d, err := ParseDate(s)
	if err != nil {
		return def
	}
	return d
}

// MustParseDate panics on malformed input. Tests and fixtures only.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return DayInMonth(d.Year()+n, d.Month(), d.Day()) }

// AddMonths moves n months keeping the day of month, clamped to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return DayInMonth(first.Year(), first.Month(), d.Day())
}

// Properties
func (d Date) Year() int          { return d.Time.Year() }
func (d Date) Month() time.Month  { return d.Time.Month() }
func (d Date) Day() int           { return d.Time.Day() }
func (d Date) IsZero() bool       { return d.Time.IsZero() }
func (d Date) FirstOfMonth() Date { return NewDate(d.Year(), d.Month(), 1) }
func (d Date) EndOfMonth() Date   { return EndOfMonth(d.Year(), d.Month()) }
func (d Date) CalendarMonth() Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(LayoutISO)
}

// MarshalText renders the ISO form so Date can sit directly in DTOs.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

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

// =============================================================================
// MONTH - Calendar month used by billing cycles
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month { return Month{Year: year, Month: month} }

// MonthsBetween returns how many calendar months separate from and to.
// Negative when to precedes from.
func MonthsBetween(from, to Month) int {
	return (to.Year-from.Year)*12 + int(to.Month) - int(from.Month)
}

func (m Month) First() Date { return NewDate(m.Year, m.Month, 1) }
func (m Month) Last() Date  { return EndOfMonth(m.Year, m.Month) }
func (m Month) Next() Month {
	d := m.First().AddMonths(1)
	return Month{Year: d.Year(), Month: d.Month()}
}
func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

// =============================================================================
// DATE UTILITIES
// =============================================================================

// DaysBetween returns the number of whole days from from to to.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// DayInMonth builds a date for a configured day-of-month, clamped to the
// month's length. Payment day 31 in April lands on April 30; a Feb 29
// renewal anchor lands on Feb 28 in common years.
func DayInMonth(year int, month time.Month, day int) Date {
	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// MaxDate returns the latest of the given dates (zero Date when empty).
func MaxDate(dates ...Date) Date {
	var max Date
	for _, d := range dates {
		if d.After(max) {
			max = d
		}
	}
	return max
}
