package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// BILLING START AND TRIAL
// =============================================================================

func TestIsBilledInMonth_TrialEndingMidMonth_FirstInvoiceNextMonth(t *testing.T) {
	// GIVEN: Monthly contract starting 2024-01-01 with 30 trial days
	c := monthlyContract("trial", 500, "2024-01-01")
	c.TrialDays = 30

	// THEN: Billing starts 2024-01-31 and the first invoice is February
	assert.Equal(t, "2024-01-31", billing.BillingStart(c).String())
	assert.Equal(t, "2024-02", billing.BillingAnchorMonth(c).String())

	jan := billing.IsBilledInMonth(c, nil, 2024, time.January)
	assert.False(t, jan.Billed)
	assert.True(t, jan.InTrial)
	assert.True(t, jan.Value.IsZero())

	feb := billing.IsBilledInMonth(c, nil, 2024, time.February)
	assert.True(t, feb.Billed)
	assert.Equal(t, 0, feb.MonthsSinceStart)
	assert.Equal(t, "500.00", feb.Value.Display())
}

func TestIsBilledInMonth_TrialEndingOnFirstOfMonth(t *testing.T) {
	c := monthlyContract("trial", 500, "2024-01-01")
	c.TrialDays = 31

	assert.Equal(t, "2024-02-01", billing.BillingStart(c).String())
	assert.Equal(t, "2024-02", billing.BillingAnchorMonth(c).String())
}

func TestIsBilledInMonth_BeforeStart_NotBilledNotTrial(t *testing.T) {
	c := monthlyContract("late", 500, "2024-06-15")

	charge := billing.IsBilledInMonth(c, nil, 2024, time.May)
	assert.False(t, charge.Billed)
	assert.False(t, charge.InTrial)
	assert.Equal(t, -1, charge.MonthsSinceStart)
}

// =============================================================================
// CADENCE
// =============================================================================

func TestIsBilledInMonth_Annual_BilledEveryTwelveMonths(t *testing.T) {
	// GIVEN: Annual plan starting 2024-03-10
	c := annualLicense()

	// THEN: Only March is billed, with the full value
	mar := billing.IsBilledInMonth(c, nil, 2024, time.March)
	assert.True(t, mar.Billed)
	assert.Equal(t, "12000.00", mar.Value.Display())

	assert.False(t, billing.IsBilledInMonth(c, nil, 2024, time.April).Billed)
	assert.False(t, billing.IsBilledInMonth(c, nil, 2025, time.February).Billed)

	next := billing.IsBilledInMonth(c, nil, 2025, time.March)
	assert.True(t, next.Billed)
	assert.Equal(t, 12, next.MonthsSinceStart)
}

func TestIsBilledInMonth_Semiannual(t *testing.T) {
	c := monthlyContract("semi", 6000, "2024-01-01")
	c.PlanType = billing.PlanSemiannual

	billed := []string{}
	for _, charge := range billing.BillingSchedule(c, nil, generic.YearPeriod(2024)) {
		if charge.Billed {
			billed = append(billed, charge.Month.String())
		}
	}
	assert.Equal(t, []string{"2024-01", "2024-07"}, billed)
}

func TestIsBilledInMonth_UsesValueInForceAtMonthEnd(t *testing.T) {
	// GIVEN: An adjustment effective late in the billed month
	c := annualLicense()
	history := []billing.Adjustment{fixedAdjustment("a1", c.ID, "2025-03-20", 12000, 13200)}

	// THEN: That month's invoice already carries the new value
	charge := billing.IsBilledInMonth(c, history, 2025, time.March)
	require.True(t, charge.Billed)
	assert.Equal(t, "13200.00", charge.Value.Display())
}

func TestBillingSchedule_Monthly(t *testing.T) {
	c := monthlyContract("m", 100, "2024-03-15")
	p := generic.Period{Start: date("2024-01-01"), End: date("2024-06-30")}

	charges := billing.BillingSchedule(c, nil, p)
	require.Len(t, charges, 6)
	assert.False(t, charges[0].Billed)
	assert.False(t, charges[1].Billed)
	for _, ch := range charges[2:] {
		assert.True(t, ch.Billed, ch.Month.String())
	}
}

// =============================================================================
// AVERAGE VALUE AND NEXT INVOICE
// =============================================================================

func TestMonthlyAverageValue(t *testing.T) {
	annual := annualLicense()
	assert.Equal(t, "1000.00", billing.MonthlyAverageValue(annual, brl(12000)).Display())

	semi := annualLicense()
	semi.PlanType = billing.PlanSemiannual
	assert.Equal(t, "1000.00", billing.MonthlyAverageValue(semi, brl(6000)).Display())

	monthly := monthlyContract("m", 700, "2024-01-01")
	assert.Equal(t, "700.00", billing.MonthlyAverageValue(monthly, brl(700)).Display())
}

func TestNextBillingMonth(t *testing.T) {
	c := annualLicense()

	assert.Equal(t, "2024-03", billing.NextBillingMonth(c, generic.NewMonth(2023, time.December)).String())
	assert.Equal(t, "2024-03", billing.NextBillingMonth(c, generic.NewMonth(2024, time.March)).String())
	assert.Equal(t, "2025-03", billing.NextBillingMonth(c, generic.NewMonth(2024, time.April)).String())
}
