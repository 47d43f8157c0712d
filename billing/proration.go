/*
proration.go - Splitting one billing period between an old and a new value

PURPOSE:
  When a contract value changes in the middle of a billing period, the
  period is charged in two segments: old-rate days before the change and
  new-rate days from the change (inclusive) to the period end.

PERIOD:
  Delimited by the fixed payment day: a period runs from one payment date to
  the day before the next one. Payment day 10, change on May 15 => period
  starting May 10.

DAY COUNT:
  DayCountCommercial (default): every period counts 30 days, the convention
  used for monthly service invoices.
      oldValue=100 newValue=150 paymentDay=10 change=2024-05-15
      daysOld = 5, daysNew = 25
      total = 100*5/30 + 150*25/30 = 141.666... (141.67 displayed)
  DayCountActual: the real number of calendar days in the period.

PRECISION:
  All values keep full decimal precision. ProportionalSplit.Display()
  rounds to two places for presentation only.

INVOICE TARGET:
  AppliesToNextInvoice is true when the change falls on or after the
  month's payment day: that invoice is already generated, so the blended
  charge goes to the next one.

SEE ALSO:
  - generic/period.go: PaymentPeriod
  - adjustment.go: PlanManualChange attaches a split to proportional changes
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// DayCount selects how period lengths are measured.
type DayCount string

const (
	DayCountCommercial DayCount = "commercial_30"
	DayCountActual     DayCount = "actual"
)

// CommercialPeriodDays is the fixed period length of DayCountCommercial.
const CommercialPeriodDays = 30

// ProportionalSplit is the derived two-segment charge of one period.
type ProportionalSplit struct {
	Period               generic.Period
	TotalDays            int
	DaysOldPlan          int
	DaysNewPlan          int
	ProportionalOldValue generic.Money
	ProportionalNewValue generic.Money
	TotalValue           generic.Money
	AppliesToNextInvoice bool
	DayCount             DayCount
}

// Display returns a copy with every amount rounded for presentation.
func (s ProportionalSplit) Display() ProportionalSplit {
	out := s
	out.ProportionalOldValue = s.ProportionalOldValue.Rounded()
	out.ProportionalNewValue = s.ProportionalNewValue.Rounded()
	out.TotalValue = s.TotalValue.Rounded()
	return out
}

// ComputeProration splits the period containing changeDate using the
// commercial 30-day convention.
func ComputeProration(oldValue, newValue generic.Money, paymentDay int, changeDate generic.Date) (ProportionalSplit, error) {
	return ComputeProrationWith(oldValue, newValue, paymentDay, changeDate, DayCountCommercial)
}

// ComputeProrationWith splits the period containing changeDate using the
// given day-count convention.
func ComputeProrationWith(oldValue, newValue generic.Money, paymentDay int, changeDate generic.Date, dc DayCount) (ProportionalSplit, error) {
	if paymentDay < 1 || paymentDay > 31 {
		return ProportionalSplit{}, &generic.IncompleteConfigurationError{
			Field:  "payment_day",
			Reason: fmt.Sprintf("must be between 1 and 31, got %d", paymentDay),
		}
	}

	period := generic.PaymentPeriod(paymentDay, changeDate)
	actualDays := period.Length()
	daysOld := generic.DaysBetween(period.Start, changeDate)

	totalDays := actualDays
	if dc != DayCountActual {
		dc = DayCountCommercial
		totalDays = CommercialPeriodDays
		// The change day itself is always billed at the new rate.
		if daysOld > totalDays-1 {
			daysOld = totalDays - 1
		}
	}
	if totalDays <= 0 {
		return ProportionalSplit{}, &generic.IncompleteConfigurationError{
			Field:  "payment_day",
			Reason: "produces an empty billing period",
		}
	}
	daysNew := totalDays - daysOld

	total := decimal.NewFromInt(int64(totalDays))
	oldPart := oldValue.Mul(decimal.NewFromInt(int64(daysOld))).Div(total)
	newPart := newValue.Mul(decimal.NewFromInt(int64(daysNew))).Div(total)

	return ProportionalSplit{
		Period:               period,
		TotalDays:            totalDays,
		DaysOldPlan:          daysOld,
		DaysNewPlan:          daysNew,
		ProportionalOldValue: oldPart,
		ProportionalNewValue: newPart,
		TotalValue:           oldPart.Add(newPart),
		AppliesToNextInvoice: changeDate.AfterOrEqual(generic.DayInMonth(changeDate.Year(), changeDate.Month(), paymentDay)),
		DayCount:             dc,
	}, nil
}
