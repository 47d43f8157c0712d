// Package store provides in-memory billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	contracts   map[generic.ContractID]billing.Contract
	adjustments map[generic.ContractID][]billing.Adjustment
	idempotency map[string]bool
	reminders   map[reminderKey]billing.Reminder
}

type reminderKey struct {
	ContractID generic.ContractID
	Year       int
}

func NewMemory() *Memory {
	return &Memory{state: newMemoryState()}
}

func newMemoryState() memoryState {
	return memoryState{
		contracts:   make(map[generic.ContractID]billing.Contract),
		adjustments: make(map[generic.ContractID][]billing.Adjustment),
		idempotency: make(map[string]bool),
		reminders:   make(map[reminderKey]billing.Reminder),
	}
}

func (m *Memory) SaveContract(_ context.Context, c billing.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveContract(c)
}

func (m *Memory) GetContract(_ context.Context, id generic.ContractID) (billing.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getContract(id)
}

func (m *Memory) ListContracts(_ context.Context) ([]billing.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listContracts(), nil
}

// AppendAdjustment adds a single adjustment. Append-only.
func (m *Memory) AppendAdjustment(_ context.Context, a billing.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendAdjustment(a)
}

func (m *Memory) ListAdjustments(_ context.Context, id generic.ContractID) ([]billing.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listAdjustments(id), nil
}

func (m *Memory) AdjustmentKeyExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.idempotency[idempotencyKey], nil
}

func (m *Memory) SaveReminder(_ context.Context, r billing.Reminder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveReminder(r), nil
}

func (m *Memory) ListReminders(_ context.Context, id generic.ContractID) ([]billing.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listReminders(id), nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txView{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newMemoryState()
	return nil
}

// =============================================================================
// STATE - Unlocked operations shared by Memory and txView
// =============================================================================

func (s *memoryState) saveContract(c billing.Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, ok := s.contracts[c.ID]; ok {
		return generic.ErrContractExists
	}
	s.contracts[c.ID] = c
	return nil
}

func (s *memoryState) getContract(id generic.ContractID) (billing.Contract, error) {
	c, ok := s.contracts[id]
	if !ok {
		return billing.Contract{}, generic.ErrContractNotFound
	}
	return c, nil
}

func (s *memoryState) listContracts() []billing.Contract {
	out := make([]billing.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryState) appendAdjustment(a billing.Adjustment) error {
	if _, ok := s.contracts[a.ContractID]; !ok {
		return generic.ErrContractNotFound
	}
	if a.IdempotencyKey != "" && s.idempotency[a.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	s.adjustments[a.ContractID] = append(s.adjustments[a.ContractID], a)
	if a.IdempotencyKey != "" {
		s.idempotency[a.IdempotencyKey] = true
	}
	return nil
}

func (s *memoryState) listAdjustments(id generic.ContractID) []billing.Adjustment {
	return append([]billing.Adjustment(nil), s.adjustments[id]...)
}

func (s *memoryState) saveReminder(r billing.Reminder) bool {
	k := reminderKey{ContractID: r.ContractID, Year: r.TargetYear}
	existing, ok := s.reminders[k]
	if !ok {
		s.reminders[k] = r
		return true
	}
	changed := existing.Urgency != r.Urgency
	existing.RenewalDate = r.RenewalDate
	existing.Urgency = r.Urgency
	s.reminders[k] = existing
	return changed
}

func (s *memoryState) listReminders(id generic.ContractID) []billing.Reminder {
	var out []billing.Reminder
	for k, r := range s.reminders {
		if k.ContractID == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetYear < out[j].TargetYear })
	return out
}

func (s *memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.adjustments {
		c.adjustments[k] = append([]billing.Adjustment(nil), v...)
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	return c
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// txView operates on the parent's state while WithTx holds the lock.
type txView struct {
	state *memoryState
}

func (tv *txView) SaveContract(_ context.Context, c billing.Contract) error {
	return tv.state.saveContract(c)
}

func (tv *txView) GetContract(_ context.Context, id generic.ContractID) (billing.Contract, error) {
	return tv.state.getContract(id)
}

func (tv *txView) ListContracts(_ context.Context) ([]billing.Contract, error) {
	return tv.state.listContracts(), nil
}

func (tv *txView) AppendAdjustment(_ context.Context, a billing.Adjustment) error {
	return tv.state.appendAdjustment(a)
}

func (tv *txView) ListAdjustments(_ context.Context, id generic.ContractID) ([]billing.Adjustment, error) {
	return tv.state.listAdjustments(id), nil
}

func (tv *txView) AdjustmentKeyExists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.state.idempotency[idempotencyKey], nil
}

func (tv *txView) SaveReminder(_ context.Context, r billing.Reminder) (bool, error) {
	return tv.state.saveReminder(r), nil
}

func (tv *txView) ListReminders(_ context.Context, id generic.ContractID) ([]billing.Reminder, error) {
	return tv.state.listReminders(id), nil
}

// Nested transactions join the outer one.
func (tv *txView) WithTx(_ context.Context, fn func(billing.Store) error) error {
	return fn(tv)
}

var (
	_ billing.Store = (*Memory)(nil)
	_ billing.Store = (*txView)(nil)
)
