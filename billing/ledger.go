package billing

import (
	"context"

	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// ADJUSTMENT LEDGER - Append-only history with ordering checks
// =============================================================================

// AdjustmentLedger wraps an AdjustmentStore with the write-side rules:
//   - Append-only: no update, no delete
//   - Idempotent: same key, same adjustment, no duplicate
//   - Ordered: a new adjustment may share the latest effective date (the
//     resolver's tie-break applies) but may not precede it
type AdjustmentLedger struct {
	Store AdjustmentStore
}

func NewAdjustmentLedger(store AdjustmentStore) *AdjustmentLedger {
	return &AdjustmentLedger{Store: store}
}

// Append validates and persists one adjustment.
func (l *AdjustmentLedger) Append(ctx context.Context, a Adjustment) error {
	if a.IdempotencyKey != "" {
		exists, err := l.Store.AdjustmentKeyExists(ctx, a.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return generic.ErrDuplicateIdempotencyKey
		}
	}

	history, err := l.Store.ListAdjustments(ctx, a.ContractID)
	if err != nil {
		return err
	}
	if err := CheckOrder(a, history); err != nil {
		return err
	}
	return l.Store.AppendAdjustment(ctx, a)
}

// History returns the contract's adjustments in insertion order.
func (l *AdjustmentLedger) History(ctx context.Context, contractID generic.ContractID) ([]Adjustment, error) {
	return l.Store.ListAdjustments(ctx, contractID)
}

// CheckOrder rejects an adjustment effective before the latest one.
func CheckOrder(a Adjustment, history []Adjustment) error {
	latest, ok := LatestAdjustment(history)
	if !ok || !a.EffectiveDate.Before(latest.EffectiveDate) {
		return nil
	}
	return &generic.OutOfOrderError{
		ContractID: a.ContractID,
		Effective:  a.EffectiveDate,
		Latest:     latest.EffectiveDate,
	}
}
