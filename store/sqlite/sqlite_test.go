package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func license() billing.Contract {
	return billing.Contract{
		ID:              "ctr-license",
		Name:            "ERP License",
		Client:          "Metalurgica Sul",
		BaseValue:       generic.NewMoneyFromDecimal(generic.MustParseDecimal("12000.125"), generic.CurrencyUSD),
		PlanType:        billing.PlanAnnual,
		StartDate:       generic.NewDate(2024, time.March, 10),
		TrialDays:       5,
		RenewalDate:     generic.NewDate(2024, time.March, 10),
		PaymentDay:      10,
		OperationalCost: generic.NewMoney(400, generic.CurrencyUSD),
		OverheadCost:    generic.NewMoney(100, generic.CurrencyUSD),
		CreatedAt:       time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC),
	}
}

func adjustment(id string, effective generic.Date, key string) billing.Adjustment {
	return billing.Adjustment{
		ID:              generic.AdjustmentID(id),
		ContractID:      "ctr-license",
		Type:            billing.AdjustPercentage,
		Value:           generic.MustParseDecimal("4.5"),
		PreviousValue:   generic.NewMoney(12000, generic.CurrencyUSD),
		NewValue:        generic.NewMoney(12540, generic.CurrencyUSD),
		EffectiveDate:   effective,
		RenewalDateUsed: effective,
		Notes:           "IPCA",
		IdempotencyKey:  key,
		CreatedAt:       time.Date(2025, 3, 2, 11, 0, 0, 42, time.UTC),
	}
}

// =============================================================================
// CONTRACTS
// =============================================================================

func TestStore_ContractRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	want := license()

	require.NoError(t, store.SaveContract(ctx, want))
	got, err := store.GetContract(ctx, want.ID)
	require.NoError(t, err)

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Client, got.Client)
	assert.True(t, want.BaseValue.Equal(got.BaseValue), "full precision is kept: %s", got.BaseValue.Value)
	assert.Equal(t, generic.CurrencyUSD, got.Currency())
	assert.Equal(t, billing.PlanAnnual, got.PlanType)
	assert.True(t, want.StartDate.Equal(got.StartDate))
	assert.True(t, want.RenewalDate.Equal(got.RenewalDate))
	assert.Equal(t, 5, got.TrialDays)
	assert.Equal(t, 10, got.PaymentDay)
	assert.Equal(t, "500.00", got.MonthlyCost().Display())
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_SaveContract_InsertOnly(t *testing.T) {
	// GIVEN: A stored contract
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))

	// WHEN: The same ID is saved again with another base value
	c := license()
	c.BaseValue = generic.NewMoney(99999, generic.CurrencyUSD)
	err := store.SaveContract(ctx, c)

	// THEN: It is rejected and the original record is untouched
	assert.ErrorIs(t, err, generic.ErrContractExists)
	assert.True(t, generic.IsConflict(err))
	got, err := store.GetContract(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, license().BaseValue.Equal(got.BaseValue))

	// AND: Inside a transaction the rule is the same
	err = store.WithTx(ctx, func(tx billing.Store) error { return tx.SaveContract(ctx, c) })
	assert.ErrorIs(t, err, generic.ErrContractExists)
}

func TestStore_GetContract_NotFound(t *testing.T) {
	_, err := newTestStore(t).GetContract(context.Background(), "missing")
	assert.ErrorIs(t, err, generic.ErrContractNotFound)
}

func TestStore_SaveContract_RejectsInvalid(t *testing.T) {
	c := license()
	c.PlanType = 0
	assert.ErrorIs(t, newTestStore(t).SaveContract(context.Background(), c), generic.ErrInvalidContract)
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func TestStore_AdjustmentRoundTrip_InsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))

	later := adjustment("adj-b", generic.NewDate(2026, 3, 10), "")
	earlier := adjustment("adj-a", generic.NewDate(2025, 3, 10), "k-2025")
	require.NoError(t, store.AppendAdjustment(ctx, later))
	require.NoError(t, store.AppendAdjustment(ctx, earlier))

	list, err := store.ListAdjustments(ctx, "ctr-license")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, generic.AdjustmentID("adj-b"), list[0].ID, "insertion order, not effective date")

	got := list[1]
	assert.Equal(t, billing.AdjustPercentage, got.Type)
	assert.Equal(t, "4.5", got.Value.String())
	assert.Equal(t, "12540.00", got.NewValue.Display())
	assert.Equal(t, generic.CurrencyUSD, got.NewValue.Currency)
	assert.Equal(t, "2025-03-10", got.EffectiveDate.String())
	assert.Equal(t, "2025-03-10", got.RenewalDateUsed.String())
	assert.Equal(t, "IPCA", got.Notes)
	assert.Equal(t, "k-2025", got.IdempotencyKey)
	assert.True(t, earlier.CreatedAt.Equal(got.CreatedAt), "nanoseconds survive for the tie-break")
	assert.Empty(t, list[0].IdempotencyKey)
}

func TestStore_AppendAdjustment_DuplicateKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))
	require.NoError(t, store.AppendAdjustment(ctx, adjustment("a1", generic.NewDate(2025, 3, 10), "k")))

	exists, err := store.AdjustmentKeyExists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.AppendAdjustment(ctx, adjustment("a2", generic.NewDate(2025, 3, 10), "k"))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	// Empty keys are stored as NULL and never collide
	require.NoError(t, store.AppendAdjustment(ctx, adjustment("a3", generic.NewDate(2025, 3, 10), "")))
	require.NoError(t, store.AppendAdjustment(ctx, adjustment("a4", generic.NewDate(2025, 3, 10), "")))
}

func TestStore_AppendAdjustment_UnknownContract(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendAdjustment(context.Background(), adjustment("a1", generic.NewDate(2025, 3, 10), ""))
	assert.ErrorIs(t, err, generic.ErrContractNotFound)
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestStore_SaveReminder_UpsertAndEscalate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))

	r := billing.Reminder{
		ID:          "rem-1",
		ContractID:  "ctr-license",
		TargetYear:  2025,
		RenewalDate: generic.NewDate(2025, 3, 10),
		Urgency:     billing.UrgencyLow,
		CreatedAt:   time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
	}
	created, err := store.SaveReminder(ctx, r)
	require.NoError(t, err)
	assert.True(t, created)

	r.ID = "rem-2"
	changed, err := store.SaveReminder(ctx, r)
	require.NoError(t, err)
	assert.False(t, changed)

	r.Urgency = billing.UrgencyHigh
	changed, err = store.SaveReminder(ctx, r)
	require.NoError(t, err)
	assert.True(t, changed)

	list, err := store.ListReminders(ctx, "ctr-license")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, generic.ReminderID("rem-1"), list[0].ID)
	assert.Equal(t, billing.UrgencyHigh, list[0].Urgency)
	assert.Equal(t, "2025-03-10", list[0].RenewalDate.String())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_ReadsOwnWritesAndRollsBack(t *testing.T) {
	// GIVEN: A stored contract
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))

	// WHEN: A transaction appends, reads it back, then fails
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx billing.Store) error {
		require.NoError(t, tx.AppendAdjustment(ctx, adjustment("a1", generic.NewDate(2025, 3, 10), "k")))

		list, err := tx.ListAdjustments(ctx, "ctr-license")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		exists, err := tx.AdjustmentKeyExists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, exists)
		return boom
	})

	// THEN: The error surfaces and nothing was committed
	assert.ErrorIs(t, err, boom)
	list, err := store.ListAdjustments(ctx, "ctr-license")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_WithTx_ServiceFlow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))

	svc := billing.NewAdjustmentService(store)
	svc.Now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }

	a, _, err := svc.ApplyRenewalAdjustment(ctx, "ctr-license", billing.RenewalAdjustmentInput{
		Type:           billing.AdjustPercentage,
		Value:          generic.MustParseDecimal("10"),
		Today:          generic.NewDate(2025, 3, 3),
		IdempotencyKey: "license-2025",
	})
	require.NoError(t, err)
	assert.Equal(t, "13200.14", a.NewValue.Display())

	_, _, err = svc.ApplyRenewalAdjustment(ctx, "ctr-license", billing.RenewalAdjustmentInput{
		Type:           billing.AdjustPercentage,
		Value:          generic.MustParseDecimal("10"),
		Today:          generic.NewDate(2025, 3, 3),
		IdempotencyKey: "license-2025",
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	reminders, err := store.ListReminders(ctx, "ctr-license")
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, 2026, reminders[0].TargetYear)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveContract(ctx, license()))
	require.NoError(t, store.AppendAdjustment(ctx, adjustment("a1", generic.NewDate(2025, 3, 10), "k")))

	require.NoError(t, store.Reset(ctx))

	list, err := store.ListContracts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	exists, _ := store.AdjustmentKeyExists(ctx, "k")
	assert.False(t, exists)
}
