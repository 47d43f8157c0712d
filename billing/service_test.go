package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/billing/store"
	"github.com/warp/contract-engine/generic"
)

var serviceNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, contracts ...billing.Contract) (*billing.AdjustmentService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	for _, c := range contracts {
		require.NoError(t, mem.SaveContract(context.Background(), c))
	}
	svc := billing.NewAdjustmentService(mem)
	svc.Now = func() time.Time { return serviceNow }
	return svc, mem
}

func TestService_ApplyRenewalAdjustment_RecordsAndSchedulesReminder(t *testing.T) {
	// GIVEN: Annual license renewing 2025-03-10
	svc, mem := newTestService(t, annualLicense())
	ctx := context.Background()

	// WHEN: A 10% reajuste is applied a week early
	a, plan, err := svc.ApplyRenewalAdjustment(ctx, "ctr-license", billing.RenewalAdjustmentInput{
		Type:           billing.AdjustPercentage,
		Value:          dec("10"),
		Today:          date("2025-03-03"),
		IdempotencyKey: "license-2025",
	})
	require.NoError(t, err)

	// THEN: The adjustment is stamped and stored
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, serviceNow, a.CreatedAt)
	assert.Equal(t, "13200.00", a.NewValue.Display())
	assert.False(t, plan.Retroactive)

	history, err := mem.ListAdjustments(ctx, "ctr-license")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].ID)

	// AND: The next renewal is scheduled, quiet until it comes due
	reminders, err := mem.ListReminders(ctx, "ctr-license")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, 2026, reminders[0].TargetYear)
	assert.Equal(t, "2026-03-10", reminders[0].RenewalDate.String())
	assert.Equal(t, billing.UrgencyNone, reminders[0].Urgency)
}

func TestService_ApplyRenewalAdjustment_RetriedKey_NoDuplicate(t *testing.T) {
	svc, mem := newTestService(t, annualLicense())
	ctx := context.Background()
	in := billing.RenewalAdjustmentInput{
		Type:           billing.AdjustPercentage,
		Value:          dec("10"),
		Today:          date("2025-03-03"),
		IdempotencyKey: "license-2025",
	}

	_, _, err := svc.ApplyRenewalAdjustment(ctx, "ctr-license", in)
	require.NoError(t, err)

	_, _, err = svc.ApplyRenewalAdjustment(ctx, "ctr-license", in)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	history, _ := mem.ListAdjustments(ctx, "ctr-license")
	assert.Len(t, history, 1)
}

func TestService_FailedPlan_LeavesNoTrace(t *testing.T) {
	svc, mem := newTestService(t, annualLicense())
	ctx := context.Background()

	_, _, err := svc.ApplyRenewalAdjustment(ctx, "ctr-license", billing.RenewalAdjustmentInput{
		Type:  billing.AdjustPercentage,
		Value: dec("-100"),
		Today: date("2025-03-03"),
	})
	assert.ErrorIs(t, err, generic.ErrInvalidAdjustment)

	history, _ := mem.ListAdjustments(ctx, "ctr-license")
	reminders, _ := mem.ListReminders(ctx, "ctr-license")
	assert.Empty(t, history)
	assert.Empty(t, reminders)
}

func TestService_UnknownContract(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PreviewRenewalAdjustment(context.Background(), "ghost", billing.RenewalAdjustmentInput{
		Type:  billing.AdjustPercentage,
		Value: dec("10"),
		Today: date("2025-03-03"),
	})
	assert.ErrorIs(t, err, generic.ErrContractNotFound)
	assert.True(t, generic.IsNotFound(err))
}

func TestService_PreviewDoesNotPersist(t *testing.T) {
	svc, mem := newTestService(t, annualLicense())
	ctx := context.Background()

	plan, err := svc.PreviewRenewalAdjustment(ctx, "ctr-license", billing.RenewalAdjustmentInput{
		Type:  billing.AdjustFixedValue,
		Value: dec("12500"),
		Today: date("2025-03-03"),
	})
	require.NoError(t, err)
	assert.Equal(t, "12500.00", plan.Adjustment.NewValue.Display())

	history, _ := mem.ListAdjustments(ctx, "ctr-license")
	assert.Empty(t, history)
}

func TestService_ApplyManualChange_Proportional(t *testing.T) {
	c := monthlyContract("m", 100, "2024-01-10")
	c.PaymentDay = 10
	svc, mem := newTestService(t, c)
	ctx := context.Background()

	a, plan, err := svc.ApplyManualChange(ctx, c.ID, billing.ManualChangeInput{
		NewValue:     brl(150),
		ChangeDate:   date("2024-05-15"),
		Proportional: true,
		DayCount:     billing.DayCountActual,
	})
	require.NoError(t, err)

	require.NotNil(t, plan.Split)
	assert.Equal(t, "141.94", plan.Split.TotalValue.Display())
	assert.Equal(t, "2024-05-15", a.EffectiveDate.String())

	snap, err := svc.Load(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Adjustments, 1)
	assert.Equal(t, "150.00", billing.ResolveEffectiveValue(snap.Contract, snap.Adjustments, date("2024-06-01")).Display())

	// Contracts without a renewal anchor get no reminder
	reminders, _ := mem.ListReminders(ctx, c.ID)
	assert.Empty(t, reminders)
}

func TestService_ApplyManualChange_OutOfOrder(t *testing.T) {
	c := monthlyContract("m", 100, "2024-01-10")
	svc, _ := newTestService(t, c)
	ctx := context.Background()

	_, _, err := svc.ApplyManualChange(ctx, c.ID, billing.ManualChangeInput{NewValue: brl(150), ChangeDate: date("2024-05-15")})
	require.NoError(t, err)

	_, _, err = svc.ApplyManualChange(ctx, c.ID, billing.ManualChangeInput{NewValue: brl(120), ChangeDate: date("2024-04-01")})
	assert.ErrorIs(t, err, generic.ErrAdjustmentOutOfOrder)
}
