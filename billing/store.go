/*
store.go - Persistence interfaces for contracts, adjustments and reminders

PURPOSE:
  Defines the boundary between the billing core and the database. The core
  only reads snapshots; writes go through AdjustmentLedger and
  AdjustmentService.

KEY INTERFACES:
  ContractStore:   Contract records
  AdjustmentStore: Append-only adjustment history
  ReminderStore:   Renewal reminder records (one per contract and year)
  Store:           All of the above plus WithTx

APPEND-ONLY CONTRACT:
  Adjustments are immutable. AdjustmentStore has no Update or Delete.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - billing/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - ledger.go: Idempotency and ordering checks on top of AdjustmentStore
  - service.go: Creation flow
*/
package billing

import (
	"context"
	"time"

	"github.com/warp/contract-engine/generic"
)

type ContractStore interface {
	// SaveContract is insert-only and returns generic.ErrContractExists
	// for a known ID. Contracts change value only through adjustments.
	SaveContract(ctx context.Context, c Contract) error

	// GetContract returns generic.ErrContractNotFound for unknown IDs.
	GetContract(ctx context.Context, id generic.ContractID) (Contract, error)

	ListContracts(ctx context.Context) ([]Contract, error)
}

// AdjustmentStore is append-only. ListAdjustments returns the history in
// insertion order.
type AdjustmentStore interface {
	AppendAdjustment(ctx context.Context, a Adjustment) error
	ListAdjustments(ctx context.Context, contractID generic.ContractID) ([]Adjustment, error)
	AdjustmentKeyExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// RENEWAL REMINDERS
// =============================================================================

// Reminder records that a renewal was surfaced for a contract and year.
type Reminder struct {
	ID          generic.ReminderID
	ContractID  generic.ContractID
	TargetYear  int
	RenewalDate generic.Date
	Urgency     Urgency
	CreatedAt   time.Time
}

type ReminderStore interface {
	// SaveReminder upserts per (ContractID, TargetYear): a second save for
	// the same year only updates RenewalDate and Urgency. It reports whether
	// a record was created or its urgency changed.
	SaveReminder(ctx context.Context, r Reminder) (bool, error)
	ListReminders(ctx context.Context, contractID generic.ContractID) ([]Reminder, error)
}

// Store bundles every persistence concern the service needs.
type Store interface {
	ContractStore
	AdjustmentStore
	ReminderStore

	// WithTx executes fn atomically. If fn returns an error nothing is kept.
	WithTx(ctx context.Context, fn func(Store) error) error
}
