package generic

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive range of calendar dates [Start, End].
//
// Examples:
//   - Billing period with payment day 10: May 10 - Jun 9
//   - Reporting year 2025: Jan 1 - Dec 31
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Length returns the number of days in the period, both ends included.
func (p Period) Length() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Validate reports ErrInvalidPeriod when End precedes Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Months returns every calendar month touched by the period, in order.
func (p Period) Months() []Month {
	if p.End.Before(p.Start) {
		return nil
	}
	var months []Month
	last := p.End.CalendarMonth()
	for m := p.Start.CalendarMonth(); MonthsBetween(m, last) >= 0; m = m.Next() {
		months = append(months, m)
	}
	return months
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// YearPeriod returns Jan 1 - Dec 31 of the given year.
func YearPeriod(year int) Period {
	return Period{Start: NewDate(year, 1, 1), End: NewDate(year, 12, 31)}
}

// PaymentPeriod returns the billing period delimited by a fixed payment day
// that contains d. A period runs from one payment date up to the day before
// the next one; payment days past a month's end are clamped.
func PaymentPeriod(paymentDay int, d Date) Period {
	start := DayInMonth(d.Year(), d.Month(), paymentDay)
	if d.Before(start) {
		prev := d.FirstOfMonth().AddMonths(-1)
		start = DayInMonth(prev.Year(), prev.Month(), paymentDay)
	}
	nextMonth := start.FirstOfMonth().AddMonths(1)
	next := DayInMonth(nextMonth.Year(), nextMonth.Month(), paymentDay)
	return Period{Start: start, End: next.AddDays(-1)}
}
