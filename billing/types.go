// Package billing implements contract valuation and billing-cycle rules.
// It uses the generic primitives for dates and money and never touches
// storage, the clock, or the network: every function takes the analysis date
// and a materialized snapshot of the contract and its adjustments.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// PLAN TYPE - Billing cadence
// =============================================================================

type PlanType int

const (
	PlanMonthly PlanType = iota + 1
	PlanSemiannual
	PlanAnnual
)

// CycleMonths is the number of months between two invoices.
func (p PlanType) CycleMonths() int {
	switch p {
	case PlanSemiannual:
		return 6
	case PlanAnnual:
		return 12
	default:
		return 1
	}
}

func (p PlanType) Valid() bool { return p >= PlanMonthly && p <= PlanAnnual }

func (p PlanType) String() string {
	switch p {
	case PlanMonthly:
		return "monthly"
	case PlanSemiannual:
		return "semiannual"
	case PlanAnnual:
		return "annual"
	default:
		return "unknown"
	}
}

func (p PlanType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PlanType) UnmarshalText(b []byte) error {
	parsed, err := ParsePlanType(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePlanType accepts the canonical names only. Legacy labels are mapped
// by the factory before they reach the core.
func ParsePlanType(s string) (PlanType, error) {
	switch s {
	case "monthly":
		return PlanMonthly, nil
	case "semiannual":
		return PlanSemiannual, nil
	case "annual":
		return PlanAnnual, nil
	}
	return 0, fmt.Errorf("%w: unknown plan type %q", generic.ErrInvalidContract, s)
}

// =============================================================================
// ADJUSTMENT TYPE - Percentage delta or fixed new value
// =============================================================================

type AdjustmentType int

const (
	AdjustPercentage AdjustmentType = iota + 1
	AdjustFixedValue
)

func (a AdjustmentType) Valid() bool { return a == AdjustPercentage || a == AdjustFixedValue }

func (a AdjustmentType) String() string {
	switch a {
	case AdjustPercentage:
		return "percentage"
	case AdjustFixedValue:
		return "fixed_value"
	default:
		return "unknown"
	}
}

func (a AdjustmentType) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AdjustmentType) UnmarshalText(b []byte) error {
	parsed, err := ParseAdjustmentType(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func ParseAdjustmentType(s string) (AdjustmentType, error) {
	switch s {
	case "percentage":
		return AdjustPercentage, nil
	case "fixed_value":
		return AdjustFixedValue, nil
	}
	return 0, fmt.Errorf("%w: unknown adjustment type %q", generic.ErrInvalidAdjustment, s)
}

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is a service contract as the billing core sees it.
// Price changes never rewrite BaseValue; they are recorded as Adjustments.
type Contract struct {
	ID        generic.ContractID
	Name      string
	Client    string
	BaseValue generic.Money
	PlanType  PlanType
	StartDate generic.Date
	TrialDays int

	// RenewalDate is the original yearly anchor. Only month and day matter;
	// the year is re-derived on every query. Zero means no anchor.
	RenewalDate generic.Date

	// PaymentDay is the day of month invoices are due (1-31). Zero means
	// not configured.
	PaymentDay int

	// Monthly costs attributed to the contract for profit analysis.
	OperationalCost generic.Money
	OverheadCost    generic.Money

	CreatedAt time.Time
}

// HasRenewalAnchor reports whether renewal-dependent rules can run.
func (c Contract) HasRenewalAnchor() bool { return !c.RenewalDate.IsZero() }

// Currency returns the contract currency, defaulting when unset.
func (c Contract) Currency() generic.Currency {
	if c.BaseValue.Currency == "" {
		return generic.DefaultCurrency
	}
	return c.BaseValue.Currency
}

// MonthlyCost is the recurring cost charged against the contract each month.
func (c Contract) MonthlyCost() generic.Money {
	cost := generic.NewMoneyFromDecimal(c.OperationalCost.Value, c.Currency())
	return cost.Add(c.OverheadCost)
}

// Validate checks the fields every core function depends on.
func (c Contract) Validate() error {
	var problems []string
	if c.ID == "" {
		problems = append(problems, "id is required")
	}
	if !c.BaseValue.IsPositive() {
		problems = append(problems, "base value must be positive")
	}
	if !c.PlanType.Valid() {
		problems = append(problems, "plan type is required")
	}
	if c.StartDate.IsZero() {
		problems = append(problems, "start date is required")
	}
	if c.TrialDays < 0 {
		problems = append(problems, "trial days cannot be negative")
	}
	if c.PaymentDay < 0 || c.PaymentDay > 31 {
		problems = append(problems, "payment day must be between 1 and 31")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", generic.ErrInvalidContract, strings.Join(problems, "; "))
	}
	return nil
}

// =============================================================================
// ADJUSTMENT (reajuste)
// =============================================================================

// Adjustment is an immutable change of contract value. PreviousValue and
// NewValue are captured at creation and never recomputed.
type Adjustment struct {
	ID              generic.AdjustmentID
	ContractID      generic.ContractID
	Type            AdjustmentType
	Value           decimal.Decimal // percent points for AdjustPercentage, new amount for AdjustFixedValue
	PreviousValue   generic.Money
	NewValue        generic.Money
	EffectiveDate   generic.Date
	RenewalDateUsed generic.Date
	Notes           string
	IdempotencyKey  string
	CreatedAt       time.Time
}
