/*
service.go - Adjustment creation boundary

PURPOSE:
  Orchestrates the side-effecting part of an adjustment: load a consistent
  snapshot, plan with the pure core, append to the ledger, and schedule the
  reminder of the next renewal. Everything runs inside one store
  transaction so a failed reminder write does not leave a half-applied
  adjustment behind.

FLOW:
  1. Load contract + adjustment history (snapshot)
  2. Plan (PlanRenewalAdjustment / PlanManualChange)
  3. Stamp ID (uuid) and CreatedAt
  4. AdjustmentLedger.Append (idempotency + ordering)
  5. Schedule reminder for the renewal after this one

SEE ALSO:
  - adjustment.go: Pure planning
  - ledger.go: Write-side rules
  - api/handlers.go: HTTP entry points
*/
package billing

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/warp/contract-engine/generic"
)

// Snapshot is a contract with its full adjustment history.
type Snapshot struct {
	Contract    Contract
	Adjustments []Adjustment
}

// AdjustmentService applies adjustments against a Store.
type AdjustmentService struct {
	Store Store

	// Now is the wall clock; replaced in tests.
	Now func() time.Time
}

func NewAdjustmentService(store Store) *AdjustmentService {
	return &AdjustmentService{Store: store, Now: time.Now}
}

// Load returns the snapshot of one contract.
func (s *AdjustmentService) Load(ctx context.Context, id generic.ContractID) (Snapshot, error) {
	return loadSnapshot(ctx, s.Store, id)
}

func loadSnapshot(ctx context.Context, store Store, id generic.ContractID) (Snapshot, error) {
	c, err := store.GetContract(ctx, id)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "load contract %s", id)
	}
	history, err := store.ListAdjustments(ctx, id)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "load adjustments of %s", id)
	}
	return Snapshot{Contract: c, Adjustments: history}, nil
}

// PreviewRenewalAdjustment plans a reajuste without persisting it.
func (s *AdjustmentService) PreviewRenewalAdjustment(ctx context.Context, id generic.ContractID, in RenewalAdjustmentInput) (AdjustmentPlan, error) {
	snap, err := s.Load(ctx, id)
	if err != nil {
		return AdjustmentPlan{}, err
	}
	return PlanRenewalAdjustment(snap.Contract, snap.Adjustments, in)
}

// ApplyRenewalAdjustment plans and records a reajuste.
func (s *AdjustmentService) ApplyRenewalAdjustment(ctx context.Context, id generic.ContractID, in RenewalAdjustmentInput) (Adjustment, AdjustmentPlan, error) {
	var plan AdjustmentPlan
	a, err := s.apply(ctx, id, in.Today, func(snap Snapshot) (AdjustmentPlan, error) {
		p, err := PlanRenewalAdjustment(snap.Contract, snap.Adjustments, in)
		plan = p
		return p, err
	})
	return a, plan, err
}

// PreviewManualChange plans a manual value change without persisting it.
func (s *AdjustmentService) PreviewManualChange(ctx context.Context, id generic.ContractID, in ManualChangeInput) (AdjustmentPlan, error) {
	snap, err := s.Load(ctx, id)
	if err != nil {
		return AdjustmentPlan{}, err
	}
	return PlanManualChange(snap.Contract, snap.Adjustments, in)
}

// ApplyManualChange plans and records a manual value change.
func (s *AdjustmentService) ApplyManualChange(ctx context.Context, id generic.ContractID, in ManualChangeInput) (Adjustment, AdjustmentPlan, error) {
	var plan AdjustmentPlan
	a, err := s.apply(ctx, id, in.ChangeDate, func(snap Snapshot) (AdjustmentPlan, error) {
		p, err := PlanManualChange(snap.Contract, snap.Adjustments, in)
		plan = p
		return p, err
	})
	return a, plan, err
}

func (s *AdjustmentService) apply(ctx context.Context, id generic.ContractID, asOf generic.Date, planFn func(Snapshot) (AdjustmentPlan, error)) (Adjustment, error) {
	var created Adjustment
	err := s.Store.WithTx(ctx, func(tx Store) error {
		snap, err := loadSnapshot(ctx, tx, id)
		if err != nil {
			return err
		}
		plan, err := planFn(snap)
		if err != nil {
			return err
		}

		created = plan.Stamp(generic.AdjustmentID(uuid.NewString()), s.Now().UTC())
		if err := NewAdjustmentLedger(tx).Append(ctx, created); err != nil {
			return errors.Wrap(err, "append adjustment")
		}

		history := append(snap.Adjustments, created)
		return scheduleNextReminder(ctx, tx, snap.Contract, history, laterDate(asOf, created.EffectiveDate), s.Now().UTC())
	})
	if err != nil {
		return Adjustment{}, err
	}
	return created, nil
}

// scheduleNextReminder records the renewal that follows the adjustment so
// the reminder job can escalate it later.
func scheduleNextReminder(ctx context.Context, store ReminderStore, c Contract, history []Adjustment, asOf generic.Date, now time.Time) error {
	status := Renewal(c, history, asOf)
	if !status.HasAnchor {
		return nil
	}
	_, err := store.SaveReminder(ctx, Reminder{
		ID:          generic.ReminderID(uuid.NewString()),
		ContractID:  c.ID,
		TargetYear:  status.NextDate.Year(),
		RenewalDate: status.NextDate,
		Urgency:     status.Urgency,
		CreatedAt:   now,
	})
	return errors.Wrap(err, "schedule renewal reminder")
}

func laterDate(a, b generic.Date) generic.Date {
	if a.After(b) {
		return a
	}
	return b
}
