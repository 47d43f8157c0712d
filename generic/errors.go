/*
errors.go - Centralized error types for the contract engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers wrap these with context (cockroachdb/errors) and map them
  to HTTP statuses through the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Input errors - Malformed dates, invalid adjustment values
  2. Configuration errors - Payment day or renewal anchor missing/invalid
  3. Ledger errors - Idempotency and ordering violations
  4. Store errors - Missing records

RECOVERY:
  The billing core never treats these as fatal. Malformed dates fall back
  to a caller default (ParseDateOr), a missing renewal anchor means "no
  renewal due", and proration reports IncompleteConfigurationError instead
  of producing a zero charge.

SEE ALSO:
  - billing/proration.go: IncompleteConfigurationError producer
  - billing/ledger.go: Ordering and idempotency checks
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedDate is returned when a date string matches neither
	// YYYY-MM-DD nor DD/MM/YYYY.
	ErrMalformedDate = errors.New("malformed date")

	// ErrIncompleteConfiguration is returned when a computation cannot run
	// because contract configuration is missing (e.g. payment day).
	ErrIncompleteConfiguration = errors.New("cannot compute: configuration incomplete")

	// ErrInvalidAdjustment is returned for adjustment values that cannot
	// produce a positive contract value.
	ErrInvalidAdjustment = errors.New("invalid adjustment")

	// ErrDuplicateIdempotencyKey is returned when an adjustment with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrAdjustmentOutOfOrder is returned when a new adjustment would take
	// effect before the latest recorded one.
	ErrAdjustmentOutOfOrder = errors.New("adjustment effective date precedes latest adjustment")

	// ErrContractExists is returned when a contract ID is created twice.
	// Price changes go through adjustments, never through a new record.
	ErrContractExists = errors.New("contract already exists")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidContract is returned when a contract record fails validation.
	ErrInvalidContract = errors.New("invalid contract")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateParseError keeps the offending input.
type DateParseError struct {
	Input string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("malformed date %q (expected YYYY-MM-DD or DD/MM/YYYY)", e.Input)
}

func (e *DateParseError) Unwrap() error { return ErrMalformedDate }

// IncompleteConfigurationError names the missing or invalid setting.
type IncompleteConfigurationError struct {
	Field  string
	Reason string
}

func (e *IncompleteConfigurationError) Error() string {
	return fmt.Sprintf("cannot compute, configuration incomplete: %s %s", e.Field, e.Reason)
}

func (e *IncompleteConfigurationError) Unwrap() error { return ErrIncompleteConfiguration }

// OutOfOrderError describes an adjustment that would rewrite history.
type OutOfOrderError struct {
	ContractID ContractID
	Effective  Date
	Latest     Date
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("adjustment for %s effective %s precedes latest adjustment %s",
		e.ContractID, e.Effective, e.Latest)
}

func (e *OutOfOrderError) Unwrap() error { return ErrAdjustmentOutOfOrder }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedDate) ||
		errors.Is(err, ErrInvalidAdjustment) ||
		errors.Is(err, ErrAdjustmentOutOfOrder) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidContract)
}

// IsConflict returns true for retried or duplicated writes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrContractExists)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound)
}
