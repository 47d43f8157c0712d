/*
renewal.go - Yearly renewal (reajuste) scheduling

PURPOSE:
  Computes when a contract is next eligible for a value adjustment, how
  urgent the reminder is, and which effective date an adjustment gets when
  it is applied after the renewal date already passed.

NEXT RENEWAL DATE:
  No adjustments:
    anchor = (asOf.year, renewal.month, renewal.day)
    if anchor is more than 30 days behind asOf => anchor + 1 year
  With adjustments:
    no adjustment effective in asOf.year => target year = asOf.year
    otherwise                            => target year = last adjustment year + 1

RENEWAL MARKER:
  The yearly marker is "consumed" once an adjustment is recorded with an
  effective date in the marker's target year. A consumed marker produces no
  reminder; it re-arms the next year.

URGENCY:
  days <= 7 (including overdue) => high
  days <= 15                     => medium
  days <= 30                     => low
  otherwise                      => none

RETROACTIVE APPLICATION:
  Applying after the renewal date must not touch an invoice already charged:
    today <= payment date of the current month => first day of current month
    otherwise                                  => first day of next month

MISSING ANCHOR:
  Contracts without a renewal date are never due. Every function here
  answers "no renewal" instead of failing.

SEE ALSO:
  - adjustment.go: PlanRenewalAdjustment uses AdjustmentEffectiveDate
  - api/scheduler.go: Background reminders built on Renewal()
*/
package billing

import (
	"github.com/samber/lo"
	"github.com/warp/contract-engine/generic"
)

// RenewalGraceDays is how long a passed renewal date stays current before
// the anchor rolls to the next year.
const RenewalGraceDays = 30

// =============================================================================
// URGENCY
// =============================================================================

type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	default:
		return "none"
	}
}

func (u Urgency) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// ParseUrgency is the inverse of String; unknown labels map to UrgencyNone.
func ParseUrgency(s string) Urgency {
	switch s {
	case "low":
		return UrgencyLow
	case "medium":
		return UrgencyMedium
	case "high":
		return UrgencyHigh
	default:
		return UrgencyNone
	}
}

// RenewalUrgency classifies the days left until a renewal date.
func RenewalUrgency(daysUntilRenewal int) Urgency {
	switch {
	case daysUntilRenewal <= 7:
		return UrgencyHigh
	case daysUntilRenewal <= 15:
		return UrgencyMedium
	case daysUntilRenewal <= 30:
		return UrgencyLow
	default:
		return UrgencyNone
	}
}

// =============================================================================
// NEXT RENEWAL DATE
// =============================================================================

// NextRenewalDate returns the next renewal/adjustment-eligible date. The
// second result is false when the contract has no renewal anchor.
func NextRenewalDate(c Contract, adjustments []Adjustment, asOf generic.Date) (generic.Date, bool) {
	if !c.HasRenewalAnchor() {
		return generic.Date{}, false
	}
	if len(adjustments) == 0 {
		return cycleRenewalDate(c, asOf), true
	}

	year := asOf.Year()
	if adjustedInYear(adjustments, year) {
		lastYear := lo.Max(lo.Map(adjustments, func(a Adjustment, _ int) int { return a.EffectiveDate.Year() }))
		year = lastYear + 1
	}
	return renewalInYear(c, year), true
}

// cycleRenewalDate is this year's anchor, rolled forward once it is more
// than RenewalGraceDays in the past.
func cycleRenewalDate(c Contract, asOf generic.Date) generic.Date {
	anchor := renewalInYear(c, asOf.Year())
	if generic.DaysBetween(anchor, asOf) > RenewalGraceDays {
		anchor = renewalInYear(c, asOf.Year()+1)
	}
	return anchor
}

func renewalInYear(c Contract, year int) generic.Date {
	return generic.DayInMonth(year, c.RenewalDate.Month(), c.RenewalDate.Day())
}

func adjustedInYear(adjustments []Adjustment, year int) bool {
	return lo.ContainsBy(adjustments, func(a Adjustment) bool { return a.EffectiveDate.Year() == year })
}

// =============================================================================
// RENEWAL STATUS
// =============================================================================

// RenewalStatus is what a renewal badge or reminder needs.
type RenewalStatus struct {
	ContractID generic.ContractID
	HasAnchor  bool

	// CycleDate is the renewal marker of the current cycle: this year's
	// anchor, rolled to next year after the grace period.
	CycleDate generic.Date

	// NextDate is NextRenewalDate's answer, the date a new adjustment
	// should target.
	NextDate generic.Date

	// DaysUntil counts from asOf to NextDate; negative when overdue.
	DaysUntil int
	Urgency   Urgency

	// Satisfied is true when an adjustment already exists for the cycle's
	// year. The urgency is then forced to UrgencyNone.
	Satisfied bool
}

// Overdue reports a live renewal whose date already passed.
func (s RenewalStatus) Overdue() bool {
	return s.HasAnchor && !s.Satisfied && s.DaysUntil < 0
}

// Renewal computes the renewal status of a contract as of a date.
func Renewal(c Contract, adjustments []Adjustment, asOf generic.Date) RenewalStatus {
	status := RenewalStatus{ContractID: c.ID, Urgency: UrgencyNone}
	next, ok := NextRenewalDate(c, adjustments, asOf)
	if !ok {
		return status
	}
	status.HasAnchor = true
	status.NextDate = next
	status.CycleDate = cycleRenewalDate(c, asOf)
	status.DaysUntil = generic.DaysBetween(asOf, next)

	if adjustedInYear(adjustments, status.CycleDate.Year()) {
		status.Satisfied = true
		return status
	}
	status.Urgency = RenewalUrgency(status.DaysUntil)
	return status
}

// =============================================================================
// RETROACTIVE EFFECTIVE DATE
// =============================================================================

// PaymentDateInMonth returns the invoice due date of the month containing d.
// Without a configured payment day the first of the month is used, so a late
// adjustment always moves to the next month.
func PaymentDateInMonth(c Contract, d generic.Date) generic.Date {
	if c.PaymentDay < 1 {
		return d.FirstOfMonth()
	}
	return generic.DayInMonth(d.Year(), d.Month(), c.PaymentDay)
}

// AdjustmentEffectiveDate returns the effective date for an adjustment
// anchored to renewalDate and applied on today. The second result reports
// whether the retroactive rule moved the date.
func AdjustmentEffectiveDate(c Contract, renewalDate, today generic.Date) (generic.Date, bool) {
	if !today.After(renewalDate) {
		return renewalDate, false
	}
	if today.BeforeOrEqual(PaymentDateInMonth(c, today)) {
		return today.FirstOfMonth(), true
	}
	return today.FirstOfMonth().AddMonths(1), true
}
