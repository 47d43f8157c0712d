/*
Package sqlite provides a SQLite-backed implementation of billing.Store.

PURPOSE:
  Persists contracts, their adjustment history and renewal reminders. The
  billing core never sees SQL; it receives materialized snapshots.

INTERFACES IMPLEMENTED:
  billing.ContractStore:   Contract records (insert-only)
  billing.AdjustmentStore: Append-only adjustment history
  billing.ReminderStore:   One reminder per contract and target year
  billing.Store:           All of the above plus WithTx

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on adjustments table
  - No DELETE statements on adjustments table (except Reset for demos)
  - Corrections are new adjustments

KEY TABLES:
  contracts:         Contract records, money stored as decimal strings
  adjustments:       Immutable value changes, ordered by insertion (seq)
  renewal_reminders: Reminder per (contract_id, target_year)

DATES AND MONEY:
  Calendar dates are stored as "YYYY-MM-DD" TEXT, timestamps as RFC3339
  with nanoseconds (created_at drives the same-day tie-break), money as the
  decimal string so no precision is lost.

CONCURRENCY:
  Uses sync.RWMutex plus a single connection. Every statement issued inside
  WithTx goes through the *sql.Tx so reads see uncommitted writes.

USAGE:
  store, err := sqlite.New("./data/contracts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := billing.NewAdjustmentService(store)

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/ledger.go: Ordering and idempotency on top of AdjustmentStore
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
)

const timestampLayout = time.RFC3339Nano

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Contracts
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		client TEXT,
		base_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		trial_days INTEGER NOT NULL DEFAULT 0,
		renewal_date TEXT,
		payment_day INTEGER NOT NULL DEFAULT 0,
		operational_cost TEXT NOT NULL DEFAULT '0',
		overhead_cost TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Adjustments (append-only)
	CREATE TABLE IF NOT EXISTS adjustments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		adjustment_type TEXT NOT NULL,
		value TEXT NOT NULL,
		previous_value TEXT NOT NULL,
		new_value TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		renewal_date_used TEXT,
		notes TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_contract
		ON adjustments(contract_id, seq);
	CREATE INDEX IF NOT EXISTS idx_adjustments_contract_effective
		ON adjustments(contract_id, effective_date);

	-- Renewal reminders (one per contract and year)
	CREATE TABLE IF NOT EXISTS renewal_reminders (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		target_year INTEGER NOT NULL,
		renewal_date TEXT NOT NULL,
		urgency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(contract_id, target_year)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTRACT STORE
// =============================================================================

// SaveContract inserts a new contract record. Existing IDs are rejected with
// generic.ErrContractExists.
func (s *Store) SaveContract(ctx context.Context, c billing.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveContract(ctx, s.db, c)
}

func (s *Store) GetContract(ctx context.Context, id generic.ContractID) (billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getContract(ctx, s.db, id)
}

func (s *Store) ListContracts(ctx context.Context) ([]billing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listContracts(ctx, s.db)
}

func saveContract(ctx context.Context, db querier, c billing.Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO contracts
		(id, name, client, base_value, currency, plan_type, start_date, trial_days,
		 renewal_date, payment_day, operational_cost, overhead_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Client,
		c.BaseValue.Value.String(),
		string(c.Currency()),
		c.PlanType.String(),
		c.StartDate.String(),
		c.TrialDays,
		nullString(c.RenewalDate.String()),
		c.PaymentDay,
		c.OperationalCost.Value.String(),
		c.OverheadCost.Value.String(),
		createdAt.UTC().Format(timestampLayout),
	)
	if isUniqueConstraintError(err) {
		return errors.Wrapf(generic.ErrContractExists, "contract %s", c.ID)
	}
	return errors.Wrapf(err, "failed to save contract %s", c.ID)
}

const contractColumns = `id, name, client, base_value, currency, plan_type, start_date, trial_days,
	renewal_date, payment_day, operational_cost, overhead_cost, created_at`

func getContract(ctx context.Context, db querier, id generic.ContractID) (billing.Contract, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	if err != nil {
		return billing.Contract{}, errors.Wrap(err, "failed to query contract")
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return billing.Contract{}, err
		}
		return billing.Contract{}, generic.ErrContractNotFound
	}
	return scanContract(rows)
}

func listContracts(ctx context.Context, db querier) ([]billing.Contract, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+contractColumns+` FROM contracts ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query contracts")
	}
	defer rows.Close()

	var contracts []billing.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func scanContract(rows *sql.Rows) (billing.Contract, error) {
	var (
		c               billing.Contract
		client          sql.NullString
		baseValue       string
		currency        string
		planType        string
		startDate       string
		renewalDate     sql.NullString
		operationalCost string
		overheadCost    string
		createdAt       string
	)
	err := rows.Scan(
		&c.ID, &c.Name, &client, &baseValue, &currency, &planType, &startDate, &c.TrialDays,
		&renewalDate, &c.PaymentDay, &operationalCost, &overheadCost, &createdAt,
	)
	if err != nil {
		return c, errors.Wrap(err, "failed to scan contract")
	}

	cur := generic.Currency(currency)
	c.Client = client.String
	c.BaseValue = money(baseValue, cur)
	c.PlanType, err = billing.ParsePlanType(planType)
	if err != nil {
		return c, err
	}
	c.StartDate = generic.ParseDateOr(startDate, generic.Date{})
	if renewalDate.Valid {
		c.RenewalDate = generic.ParseDateOr(renewalDate.String, generic.Date{})
	}
	c.OperationalCost = money(operationalCost, cur)
	c.OverheadCost = money(overheadCost, cur)
	c.CreatedAt = parseTimestamp(createdAt)
	return c, nil
}

// =============================================================================
// ADJUSTMENT STORE (append-only)
// =============================================================================

// AppendAdjustment adds an adjustment to the history.
func (s *Store) AppendAdjustment(ctx context.Context, a billing.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAdjustment(ctx, s.db, a)
}

func (s *Store) ListAdjustments(ctx context.Context, id generic.ContractID) ([]billing.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAdjustments(ctx, s.db, id)
}

func (s *Store) AdjustmentKeyExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return adjustmentKeyExists(ctx, s.db, idempotencyKey)
}

func appendAdjustment(ctx context.Context, db querier, a billing.Adjustment) error {
	query := `
		INSERT INTO adjustments
		(id, contract_id, adjustment_type, value, previous_value, new_value,
		 effective_date, renewal_date_used, notes, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID,
		a.ContractID,
		a.Type.String(),
		a.Value.String(),
		a.PreviousValue.Value.String(),
		a.NewValue.Value.String(),
		a.EffectiveDate.String(),
		nullString(a.RenewalDateUsed.String()),
		a.Notes,
		nullString(a.IdempotencyKey),
		a.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return generic.ErrDuplicateIdempotencyKey
		case isForeignKeyError(err):
			return generic.ErrContractNotFound
		}
		return errors.Wrap(err, "failed to append adjustment")
	}
	return nil
}

func listAdjustments(ctx context.Context, db querier, id generic.ContractID) ([]billing.Adjustment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.id, a.contract_id, a.adjustment_type, a.value, a.previous_value, a.new_value,
		       a.effective_date, a.renewal_date_used, a.notes, a.idempotency_key, a.created_at,
		       c.currency
		FROM adjustments a JOIN contracts c ON c.id = a.contract_id
		WHERE a.contract_id = ?
		ORDER BY a.seq
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query adjustments")
	}
	defer rows.Close()

	var adjustments []billing.Adjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

func scanAdjustment(rows *sql.Rows) (billing.Adjustment, error) {
	var (
		a               billing.Adjustment
		adjType         string
		value           string
		previousValue   string
		newValue        string
		effectiveDate   string
		renewalDateUsed sql.NullString
		notes           sql.NullString
		idempotencyKey  sql.NullString
		createdAt       string
		currency        string
	)
	err := rows.Scan(
		&a.ID, &a.ContractID, &adjType, &value, &previousValue, &newValue,
		&effectiveDate, &renewalDateUsed, &notes, &idempotencyKey, &createdAt,
		&currency,
	)
	if err != nil {
		return a, errors.Wrap(err, "failed to scan adjustment")
	}

	cur := generic.Currency(currency)
	a.Type, err = billing.ParseAdjustmentType(adjType)
	if err != nil {
		return a, err
	}
	a.Value = generic.MustParseDecimal(value)
	a.PreviousValue = money(previousValue, cur)
	a.NewValue = money(newValue, cur)
	a.EffectiveDate = generic.ParseDateOr(effectiveDate, generic.Date{})
	if renewalDateUsed.Valid {
		a.RenewalDateUsed = generic.ParseDateOr(renewalDateUsed.String, generic.Date{})
	}
	a.Notes = notes.String
	a.IdempotencyKey = idempotencyKey.String
	a.CreatedAt = parseTimestamp(createdAt)
	return a, nil
}

func adjustmentKeyExists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	if idempotencyKey == "" {
		return false, nil
	}
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM adjustments WHERE idempotency_key = ?`, idempotencyKey,
	).Scan(&count)
	return count > 0, errors.Wrap(err, "failed to check idempotency key")
}

// =============================================================================
// REMINDER STORE
// =============================================================================

func (s *Store) SaveReminder(ctx context.Context, r billing.Reminder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveReminder(ctx, s.db, r)
}

func (s *Store) ListReminders(ctx context.Context, id generic.ContractID) ([]billing.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listReminders(ctx, s.db, id)
}

func saveReminder(ctx context.Context, db querier, r billing.Reminder) (bool, error) {
	now := time.Now().UTC().Format(timestampLayout)

	var existing string
	err := db.QueryRowContext(ctx,
		`SELECT urgency FROM renewal_reminders WHERE contract_id = ? AND target_year = ?`,
		r.ContractID, r.TargetYear,
	).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO renewal_reminders
			(id, contract_id, target_year, renewal_date, urgency, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.ContractID, r.TargetYear, r.RenewalDate.String(), r.Urgency.String(),
			createdAt.UTC().Format(timestampLayout), now)
		if err != nil {
			if isForeignKeyError(err) {
				return false, generic.ErrContractNotFound
			}
			return false, errors.Wrap(err, "failed to insert reminder")
		}
		return true, nil
	case err != nil:
		return false, errors.Wrap(err, "failed to query reminder")
	}

	_, err = db.ExecContext(ctx, `
		UPDATE renewal_reminders SET renewal_date = ?, urgency = ?, updated_at = ?
		WHERE contract_id = ? AND target_year = ?
	`, r.RenewalDate.String(), r.Urgency.String(), now, r.ContractID, r.TargetYear)
	if err != nil {
		return false, errors.Wrap(err, "failed to update reminder")
	}
	return existing != r.Urgency.String(), nil
}

func listReminders(ctx context.Context, db querier, id generic.ContractID) ([]billing.Reminder, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, contract_id, target_year, renewal_date, urgency, created_at
		FROM renewal_reminders WHERE contract_id = ? ORDER BY target_year
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query reminders")
	}
	defer rows.Close()

	var reminders []billing.Reminder
	for rows.Next() {
		var (
			r           billing.Reminder
			renewalDate string
			urgency     string
			createdAt   string
		)
		if err := rows.Scan(&r.ID, &r.ContractID, &r.TargetYear, &renewalDate, &urgency, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan reminder")
		}
		r.RenewalDate = generic.ParseDateOr(renewalDate, generic.Date{})
		r.Urgency = billing.ParseUrgency(urgency)
		r.CreatedAt = parseTimestamp(createdAt)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveContract(ctx context.Context, c billing.Contract) error {
	return saveContract(ctx, ts.tx, c)
}

func (ts *txStore) GetContract(ctx context.Context, id generic.ContractID) (billing.Contract, error) {
	return getContract(ctx, ts.tx, id)
}

func (ts *txStore) ListContracts(ctx context.Context) ([]billing.Contract, error) {
	return listContracts(ctx, ts.tx)
}

func (ts *txStore) AppendAdjustment(ctx context.Context, a billing.Adjustment) error {
	return appendAdjustment(ctx, ts.tx, a)
}

func (ts *txStore) ListAdjustments(ctx context.Context, id generic.ContractID) ([]billing.Adjustment, error) {
	return listAdjustments(ctx, ts.tx, id)
}

func (ts *txStore) AdjustmentKeyExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return adjustmentKeyExists(ctx, ts.tx, idempotencyKey)
}

func (ts *txStore) SaveReminder(ctx context.Context, r billing.Reminder) (bool, error) {
	return saveReminder(ctx, ts.tx, r)
}

func (ts *txStore) ListReminders(ctx context.Context, id generic.ContractID) ([]billing.Reminder, error) {
	return listReminders(ctx, ts.tx, id)
}

// Nested calls join the open transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(store billing.Store) error) error {
	return fn(ts)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"renewal_reminders", "adjustments", "contracts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "failed to clear %s", table)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func money(value string, currency generic.Currency) generic.Money {
	d, err := decimal.NewFromString(value)
	if err != nil {
		d = decimal.Zero
	}
	return generic.NewMoneyFromDecimal(d, currency)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var (
	_ billing.Store = (*Store)(nil)
	_ billing.Store = (*txStore)(nil)
)
