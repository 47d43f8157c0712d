package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// ADJUSTMENT PLANNING - Values and dates for a new adjustment
// =============================================================================

// RenewalAdjustmentInput describes a yearly reajuste the user wants to apply.
type RenewalAdjustmentInput struct {
	Type  AdjustmentType
	Value decimal.Decimal

	// Today is the day the user applies the adjustment.
	Today generic.Date

	// RenewalDate overrides the computed cycle renewal date when set.
	RenewalDate generic.Date

	Notes          string
	IdempotencyKey string
}

// ManualChangeInput describes a direct value edit.
type ManualChangeInput struct {
	NewValue   generic.Money
	ChangeDate generic.Date

	// Proportional asks for the period of the change to be prorated.
	Proportional bool
	DayCount     DayCount

	Notes          string
	IdempotencyKey string
}

// AdjustmentPlan is a fully-resolved adjustment awaiting confirmation.
type AdjustmentPlan struct {
	Adjustment  Adjustment
	Retroactive bool
	Split       *ProportionalSplit
}

// PlanRenewalAdjustment resolves the renewal date, applies the retroactive
// rule, and computes PreviousValue/NewValue for a reajuste. The contract's
// history is only read.
func PlanRenewalAdjustment(c Contract, history []Adjustment, in RenewalAdjustmentInput) (AdjustmentPlan, error) {
	renewalDate := in.RenewalDate
	if renewalDate.IsZero() {
		status := Renewal(c, history, in.Today)
		if !status.HasAnchor {
			// Without an anchor the adjustment simply starts today.
			renewalDate = in.Today
		} else {
			renewalDate = status.NextDate
		}
	}

	effective, retroactive := AdjustmentEffectiveDate(c, renewalDate, in.Today)
	previous := ValueBefore(c, history, effective)
	next, err := ApplyAdjustment(in.Type, in.Value, previous)
	if err != nil {
		return AdjustmentPlan{}, err
	}

	notes := in.Notes
	if retroactive {
		notes = appendNote(notes, fmt.Sprintf("retroactive application: renewal date %s passed, effective from %s",
			renewalDate, effective))
	}

	return AdjustmentPlan{
		Adjustment: Adjustment{
			ContractID:      c.ID,
			Type:            in.Type,
			Value:           in.Value,
			PreviousValue:   previous,
			NewValue:        next,
			EffectiveDate:   effective,
			RenewalDateUsed: renewalDate,
			Notes:           notes,
			IdempotencyKey:  in.IdempotencyKey,
		},
		Retroactive: retroactive,
	}, nil
}

// PlanManualChange builds a fixed-value adjustment effective on the change
// date. Proportional changes carry the prorated split of that period; a
// contract without payment day yields an IncompleteConfigurationError.
func PlanManualChange(c Contract, history []Adjustment, in ManualChangeInput) (AdjustmentPlan, error) {
	previous := ValueBefore(c, history, in.ChangeDate)
	next, err := ApplyAdjustment(AdjustFixedValue, in.NewValue.Value, previous)
	if err != nil {
		return AdjustmentPlan{}, err
	}

	plan := AdjustmentPlan{
		Adjustment: Adjustment{
			ContractID:     c.ID,
			Type:           AdjustFixedValue,
			Value:          in.NewValue.Value,
			PreviousValue:  previous,
			NewValue:       next,
			EffectiveDate:  in.ChangeDate,
			Notes:          in.Notes,
			IdempotencyKey: in.IdempotencyKey,
		},
	}

	if in.Proportional {
		split, err := ComputeProrationWith(previous, next, c.PaymentDay, in.ChangeDate, in.DayCount)
		if err != nil {
			return AdjustmentPlan{}, err
		}
		plan.Split = &split
		invoice := "current invoice"
		if split.AppliesToNextInvoice {
			invoice = "next invoice"
		}
		plan.Adjustment.Notes = appendNote(plan.Adjustment.Notes, fmt.Sprintf(
			"proportional change: %d days at %s + %d days at %s = %s on %s",
			split.DaysOldPlan, previous.Display(), split.DaysNewPlan, next.Display(),
			split.TotalValue.Display(), invoice))
	}
	return plan, nil
}

// Stamp assigns identity and creation time to a planned adjustment.
func (p AdjustmentPlan) Stamp(id generic.AdjustmentID, createdAt time.Time) Adjustment {
	a := p.Adjustment
	a.ID = id
	a.CreatedAt = createdAt
	return a
}

func appendNote(notes, line string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func invalidAdjustment(reason string) error {
	return fmt.Errorf("%w: %s", generic.ErrInvalidAdjustment, reason)
}
