package billing_test

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func brl(v float64) generic.Money { return generic.NewMoney(v, generic.CurrencyBRL) }

func date(s string) generic.Date { return generic.MustParseDate(s) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func monthlyContract(id string, value float64, start string) billing.Contract {
	return billing.Contract{
		ID:        generic.ContractID(id),
		Name:      "Monthly " + id,
		BaseValue: brl(value),
		PlanType:  billing.PlanMonthly,
		StartDate: date(start),
		CreatedAt: date(start).Time,
	}
}

// annualLicense is billed every March from 2024 with a March 10 anchor.
func annualLicense() billing.Contract {
	return billing.Contract{
		ID:              "ctr-license",
		Name:            "ERP License",
		Client:          "Metalurgica Sul",
		BaseValue:       brl(12000),
		PlanType:        billing.PlanAnnual,
		StartDate:       date("2024-03-10"),
		RenewalDate:     date("2024-03-10"),
		PaymentDay:      10,
		OperationalCost: brl(400),
		OverheadCost:    brl(100),
		CreatedAt:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func fixedAdjustment(id string, contract generic.ContractID, effective string, previous, next float64) billing.Adjustment {
	return billing.Adjustment{
		ID:            generic.AdjustmentID(id),
		ContractID:    contract,
		Type:          billing.AdjustFixedValue,
		Value:         decimal.NewFromFloat(next),
		PreviousValue: brl(previous),
		NewValue:      brl(next),
		EffectiveDate: date(effective),
		CreatedAt:     date(effective).Time.Add(-48 * time.Hour),
	}
}
