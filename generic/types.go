/*
Package generic provides the calendar and money primitives of the contract engine.

PURPOSE:
  This package contains domain-agnostic types shared by the billing core,
  the factory, the stores and the HTTP layer. It has no knowledge of
  contracts or adjustments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount with a currency code
  - Identifiers: Type-safe IDs for contracts and adjustments

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal; rounding happens only in Display()
  2. Type Safety: Strong typing for IDs prevents mixing contract/adjustment IDs
  3. Purity: Nothing here reads the clock except Today(), used by outer layers

USAGE:
  price := generic.NewMoney(1500, generic.CurrencyBRL)
  half := price.Div(decimal.NewFromInt(2))
  fmt.Println(half.Display()) // 750.00

SEE ALSO:
  - time.go: Date, Month and date utilities
  - period.go: Period and payment-day periods
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with currency
// =============================================================================

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// DefaultCurrency is used when a record does not carry one.
const DefaultCurrency = CurrencyBRL

// DisplayPlaces is the number of decimal places shown to users.
const DisplayPlaces = 2

func NewMoney(value float64, currency Currency) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewMoneyFromDecimal(value decimal.Decimal, currency Currency) Money {
	return Money{Value: value, Currency: currency}
}

// ParseMoney parses a decimal string such as "1500.75".
func ParseMoney(s string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d, Currency: currency}, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Zero() Money                  { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(o Money) Money            { return Money{Value: m.Value.Add(o.Value), Currency: m.Currency} }
func (m Money) Sub(o Money) Money            { return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s), Currency: m.Currency} }
func (m Money) Div(s decimal.Decimal) Money  { return Money{Value: m.Value.Div(s), Currency: m.Currency} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) GreaterThan(o Money) bool     { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool        { return m.Value.LessThan(o.Value) }
func (m Money) Equal(o Money) bool           { return m.Value.Equal(o.Value) }

// Rounded returns the amount rounded half-up to DisplayPlaces. Use it only
// when presenting or exporting; keep full precision for further math.
func (m Money) Rounded() Money {
	return Money{Value: m.Value.Round(DisplayPlaces), Currency: m.Currency}
}

// Display renders the amount with exactly two decimals.
func (m Money) Display() string { return m.Value.StringFixed(DisplayPlaces) }

// Float64 is for JSON DTOs and metrics only.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// Sum adds amounts, keeping the currency of the first one.
func Sum(amounts ...Money) Money {
	if len(amounts) == 0 {
		return Money{Value: decimal.Zero, Currency: DefaultCurrency}
	}
	total := amounts[0]
	for _, a := range amounts[1:] {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContractID string
type AdjustmentID string
type ReminderID string
