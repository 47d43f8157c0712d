/*
value.go - Effective contract value at a date

PURPOSE:
  Answers "how much is this contract worth on day X?". The value is a
  right-continuous step function of time: BaseValue until the first
  adjustment takes effect, then each adjustment's NewValue from its
  EffectiveDate (inclusive) until the next one. No interpolation.

ORDERING:
  Adjustments are sorted by EffectiveDate. Two adjustments on the same date
  are resolved deterministically: the later CreatedAt wins, and when that is
  also equal the one appearing later in the supplied slice wins
  ("latest created wins").

PURITY:
  Nothing here mutates the caller's slice. Sorting happens on a copy.

COMPOUNDING:
  New adjustments seed PreviousValue with ValueBefore(target), the value in
  force the day before they take effect, so successive reajustes compound
  instead of restarting from BaseValue.

SEE ALSO:
  - adjustment.go: Builds new adjustments from resolved values
  - cycle.go: Uses the resolved value for monthly charges
*/
package billing

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

var hundred = decimal.NewFromInt(100)

// ResolveEffectiveValue returns the value in force for the contract at the
// given date.
func ResolveEffectiveValue(c Contract, adjustments []Adjustment, at generic.Date) generic.Money {
	applicable := lo.Filter(adjustments, func(a Adjustment, _ int) bool {
		return a.EffectiveDate.BeforeOrEqual(at)
	})
	if len(applicable) == 0 {
		return c.BaseValue
	}
	ordered := sortedAdjustments(applicable)
	return ordered[len(ordered)-1].NewValue
}

// ValueBefore returns the value in force the day before target. This is the
// PreviousValue of an adjustment effective on target.
func ValueBefore(c Contract, adjustments []Adjustment, target generic.Date) generic.Money {
	return ResolveEffectiveValue(c, adjustments, target.AddDays(-1))
}

// LatestAdjustment returns the adjustment that currently closes the history,
// using the same ordering as the resolver.
func LatestAdjustment(adjustments []Adjustment) (Adjustment, bool) {
	if len(adjustments) == 0 {
		return Adjustment{}, false
	}
	ordered := sortedAdjustments(adjustments)
	return ordered[len(ordered)-1], true
}

// sortedAdjustments returns a copy ordered by EffectiveDate, then CreatedAt.
// The stable sort keeps insertion order for full ties.
func sortedAdjustments(adjustments []Adjustment) []Adjustment {
	ordered := make([]Adjustment, len(adjustments))
	copy(ordered, adjustments)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ordered
}

// =============================================================================
// VALUE HISTORY - The step function as explicit segments
// =============================================================================

// ValueStep is one constant segment of the value step function, in force
// from From (inclusive) until the next step's From.
type ValueStep struct {
	From         generic.Date
	Value        generic.Money
	AdjustmentID generic.AdjustmentID // empty for the base value
}

// ValueHistory returns the contract's value timeline. Same-day adjustments
// collapse into a single step holding the tie-break winner.
func ValueHistory(c Contract, adjustments []Adjustment) []ValueStep {
	steps := []ValueStep{{From: c.StartDate, Value: c.BaseValue}}
	for _, a := range sortedAdjustments(adjustments) {
		last := &steps[len(steps)-1]
		// Adjustments on or before the start date replace the opening step.
		if a.EffectiveDate.BeforeOrEqual(c.StartDate) || a.EffectiveDate.Equal(last.From) {
			last.Value = a.NewValue
			last.AdjustmentID = a.ID
			continue
		}
		steps = append(steps, ValueStep{From: a.EffectiveDate, Value: a.NewValue, AdjustmentID: a.ID})
	}
	return steps
}

// =============================================================================
// ADJUSTMENT ARITHMETIC
// =============================================================================

// ApplyAdjustment computes the new value produced by an adjustment over the
// previous value. Percentages are expressed in points (10 = +10%).
func ApplyAdjustment(t AdjustmentType, value decimal.Decimal, previous generic.Money) (generic.Money, error) {
	switch t {
	case AdjustPercentage:
		if value.LessThanOrEqual(hundred.Neg()) {
			return generic.Money{}, invalidAdjustment("percentage must be greater than -100")
		}
		factor := decimal.NewFromInt(1).Add(value.Div(hundred))
		return previous.Mul(factor), nil
	case AdjustFixedValue:
		if !value.IsPositive() {
			return generic.Money{}, invalidAdjustment("fixed value must be positive")
		}
		return generic.NewMoneyFromDecimal(value, previous.Currency), nil
	default:
		return generic.Money{}, invalidAdjustment("unknown adjustment type")
	}
}

// PercentageChange reports the relative change between two values in
// percent points. Zero when previous is zero.
func PercentageChange(previous, next generic.Money) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return next.Value.Sub(previous.Value).Div(previous.Value).Mul(hundred)
}
