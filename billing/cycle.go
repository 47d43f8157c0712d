/*
cycle.go - Billing cycle evaluation

PURPOSE:
  Decides whether a contract is invoiced in a given calendar month and for
  how much. Two independent operations live here and must not be mixed:

  IsBilledInMonth (actual billing):
    Trial suppression + cadence. Monthly plans bill every month from the
    billing start month; semiannual plans every 6th month; annual plans
    every 12th month. A billed month carries the FULL effective value.

  MonthlyAverageValue (display smoothing):
    Effective value / 12 (annual) or / 6 (semiannual). Says nothing about
    when money is actually collected.

BILLING START:
  billingStart = startDate + trialDays. Nothing is billed before it.

  The anchor month is the first month billed. Without a trial it is the
  month the contract starts (2024-03-10 annual => 2024-03). With a trial it
  is the first month that begins on or after billingStart: a trial ending
  mid-month does not produce a partial invoice, so 30 trial days from
  2024-01-01 (billingStart 2024-01-31) bill first in 2024-02.

  monthsSinceBillingStart = (year - anchorYear)*12 + (month - anchorMonth)
  Negative => not billed.

VALUE IN FORCE:
  A billed month carries the effective value in force on the last day of
  that month, so an adjustment effective any day of the month is already
  reflected in that month's invoice.

SEE ALSO:
  - profit.go: Uses both modes for revenue reports
  - value.go: Effective value resolution
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// BillingMode selects how monthly revenue is presented in reports.
type BillingMode string

const (
	// ModeActual reports revenue in the months invoices are issued.
	ModeActual BillingMode = "actual"
	// ModeAverage spreads each invoice evenly across its cycle.
	ModeAverage BillingMode = "average"
)

func (m BillingMode) Valid() bool { return m == ModeActual || m == ModeAverage }

// MonthCharge is the derived billing outcome of one calendar month.
type MonthCharge struct {
	Month            generic.Month
	Billed           bool
	Value            generic.Money
	MonthsSinceStart int
	InTrial          bool
}

// BillingStart is the first day the contract generates revenue.
func BillingStart(c Contract) generic.Date {
	return c.StartDate.AddDays(c.TrialDays)
}

// BillingAnchorMonth is the first month the contract is invoiced in.
func BillingAnchorMonth(c Contract) generic.Month {
	start := BillingStart(c)
	if c.TrialDays > 0 && start.Day() != 1 {
		return start.CalendarMonth().Next()
	}
	return start.CalendarMonth()
}

// IsBilledInMonth evaluates the actual billing of a contract in a month.
func IsBilledInMonth(c Contract, adjustments []Adjustment, year int, month time.Month) MonthCharge {
	m := generic.NewMonth(year, month)
	since := generic.MonthsBetween(BillingAnchorMonth(c), m)

	charge := MonthCharge{
		Month:            m,
		Value:            c.BaseValue.Zero(),
		MonthsSinceStart: since,
	}
	if since < 0 {
		charge.InTrial = c.TrialDays > 0 && generic.MonthsBetween(c.StartDate.CalendarMonth(), m) >= 0
		return charge
	}
	if since%c.PlanType.CycleMonths() != 0 {
		return charge
	}

	charge.Billed = true
	charge.Value = ResolveEffectiveValue(c, adjustments, m.Last())
	return charge
}

// MonthlyAverageValue smooths an effective value over the plan's cycle.
func MonthlyAverageValue(c Contract, effectiveValue generic.Money) generic.Money {
	months := c.PlanType.CycleMonths()
	if months == 1 {
		return effectiveValue
	}
	return effectiveValue.Div(decimal.NewFromInt(int64(months)))
}

// BillingSchedule lists the actual billing outcome for every month of the
// period, in order.
func BillingSchedule(c Contract, adjustments []Adjustment, p generic.Period) []MonthCharge {
	months := p.Months()
	charges := make([]MonthCharge, 0, len(months))
	for _, m := range months {
		charges = append(charges, IsBilledInMonth(c, adjustments, m.Year, m.Month))
	}
	return charges
}

// NextBillingMonth returns the first billed month at or after from.
func NextBillingMonth(c Contract, from generic.Month) generic.Month {
	start := BillingAnchorMonth(c)
	since := generic.MonthsBetween(start, from)
	if since <= 0 {
		return start
	}
	cycle := c.PlanType.CycleMonths()
	if rem := since % cycle; rem != 0 {
		since += cycle - rem
	}
	d := start.First().AddMonths(since)
	return d.CalendarMonth()
}
