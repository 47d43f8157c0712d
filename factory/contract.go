/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts upstream contract and adjustment records into billing.Contract
  and billing.Adjustment values. Upstream data is hand-typed: dates come in
  "DD/MM/YYYY" or "YYYY-MM-DD", plan labels may be the legacy Portuguese
  ones. Everything is normalized here so the billing core only ever sees
  closed enums and generic.Date.

JSON SCHEMA:
  {
    "id": "ctr-001",
    "name": "Support retainer",
    "client": "ACME",
    "base_value": "1500.00",
    "currency": "BRL",
    "plan_type": "mensal",
    "start_date": "10/03/2024",
    "trial_days": 0,
    "renewal_date": "2024-03-10",
    "payment_day": 10,
    "operational_cost": "300",
    "overhead_cost": "100",
    "created_at": "2024-03-01T12:00:00Z"
  }

MALFORMED DATES:
  start_date      => created_at, then the factory reference date
  renewal_date    => start_date (contract anniversary); empty means no anchor
  effective_date  => created_at, then the factory reference date
  Every fallback is reported in the returned warnings.

SEE ALSO:
  - billing/types.go: Contract and Adjustment
  - api/handlers.go: POST /api/contracts
  - api/scenarios.go: Demo contracts built from JSON
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ContractJSON is the JSON representation of a contract.
type ContractJSON struct {
	ID              string          `json:"id" validate:"required"`
	Name            string          `json:"name" validate:"required"`
	Client          string          `json:"client,omitempty"`
	BaseValue       decimal.Decimal `json:"base_value"`
	Currency        string          `json:"currency,omitempty" validate:"omitempty,oneof=BRL USD EUR"`
	PlanType        string          `json:"plan_type" validate:"required"`
	StartDate       string          `json:"start_date"`
	TrialDays       int             `json:"trial_days,omitempty" validate:"gte=0"`
	RenewalDate     string          `json:"renewal_date,omitempty"`
	PaymentDay      int             `json:"payment_day,omitempty" validate:"gte=0,lte=31"`
	OperationalCost decimal.Decimal `json:"operational_cost"`
	OverheadCost    decimal.Decimal `json:"overhead_cost"`
	CreatedAt       string          `json:"created_at,omitempty"`
}

// AdjustmentJSON is the JSON representation of a recorded adjustment.
type AdjustmentJSON struct {
	ID              string          `json:"id" validate:"required"`
	ContractID      string          `json:"contract_id" validate:"required"`
	Type            string          `json:"type" validate:"required"`
	Value           decimal.Decimal `json:"value"`
	PreviousValue   decimal.Decimal `json:"previous_value"`
	NewValue        decimal.Decimal `json:"new_value"`
	EffectiveDate   string          `json:"effective_date"`
	RenewalDateUsed string          `json:"renewal_date_used,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
}

// =============================================================================
// CONTRACT FACTORY
// =============================================================================

// ContractFactory converts JSON records to billing structs.
type ContractFactory struct {
	// Currency is used when a record carries none.
	Currency generic.Currency

	// Now supplies the last-resort fallback date.
	Now func() time.Time
}

func NewContractFactory() *ContractFactory {
	return &ContractFactory{Currency: generic.DefaultCurrency, Now: time.Now}
}

// ParseContract parses a JSON string into a Contract.
func (f *ContractFactory) ParseContract(jsonStr string) (billing.Contract, []string, error) {
	var cj ContractJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return billing.Contract{}, nil, fmt.Errorf("%w: failed to parse contract JSON: %v", generic.ErrInvalidContract, err)
	}
	return f.ContractFromJSON(cj)
}

// ContractFromJSON converts ContractJSON to billing.Contract. The second
// result lists the date fallbacks that were applied.
func (f *ContractFactory) ContractFromJSON(cj ContractJSON) (billing.Contract, []string, error) {
	if err := ValidateRequest(cj); err != nil {
		return billing.Contract{}, nil, fmt.Errorf("%w: %v", generic.ErrInvalidContract, err)
	}

	plan, err := ParsePlanLabel(cj.PlanType)
	if err != nil {
		return billing.Contract{}, nil, err
	}

	var warnings []string
	createdAt, createdDate := f.parseCreatedAt(cj.CreatedAt, &warnings)
	currency := f.currency(cj.Currency)

	start := parseDateWithFallback("start_date", cj.StartDate, createdDate, &warnings)

	var renewal generic.Date
	if strings.TrimSpace(cj.RenewalDate) != "" {
		renewal = parseDateWithFallback("renewal_date", cj.RenewalDate, start, &warnings)
	}

	c := billing.Contract{
		ID:              generic.ContractID(cj.ID),
		Name:            cj.Name,
		Client:          cj.Client,
		BaseValue:       generic.NewMoneyFromDecimal(cj.BaseValue, currency),
		PlanType:        plan,
		StartDate:       start,
		TrialDays:       cj.TrialDays,
		RenewalDate:     renewal,
		PaymentDay:      cj.PaymentDay,
		OperationalCost: generic.NewMoneyFromDecimal(cj.OperationalCost, currency),
		OverheadCost:    generic.NewMoneyFromDecimal(cj.OverheadCost, currency),
		CreatedAt:       createdAt,
	}
	if err := c.Validate(); err != nil {
		return billing.Contract{}, warnings, err
	}
	return c, warnings, nil
}

// ParseAdjustment parses a JSON string into an Adjustment.
func (f *ContractFactory) ParseAdjustment(jsonStr string) (billing.Adjustment, []string, error) {
	var aj AdjustmentJSON
	if err := json.Unmarshal([]byte(jsonStr), &aj); err != nil {
		return billing.Adjustment{}, nil, fmt.Errorf("%w: failed to parse adjustment JSON: %v", generic.ErrInvalidAdjustment, err)
	}
	return f.AdjustmentFromJSON(aj, "")
}

// AdjustmentFromJSON converts AdjustmentJSON to billing.Adjustment. Stored
// PreviousValue/NewValue are taken as recorded, never recomputed.
func (f *ContractFactory) AdjustmentFromJSON(aj AdjustmentJSON, currency generic.Currency) (billing.Adjustment, []string, error) {
	if err := ValidateRequest(aj); err != nil {
		return billing.Adjustment{}, nil, fmt.Errorf("%w: %v", generic.ErrInvalidAdjustment, err)
	}
	kind, err := ParseAdjustmentLabel(aj.Type)
	if err != nil {
		return billing.Adjustment{}, nil, err
	}

	var warnings []string
	createdAt, createdDate := f.parseCreatedAt(aj.CreatedAt, &warnings)
	cur := f.currency(string(currency))

	a := billing.Adjustment{
		ID:             generic.AdjustmentID(aj.ID),
		ContractID:     generic.ContractID(aj.ContractID),
		Type:           kind,
		Value:          aj.Value,
		PreviousValue:  generic.NewMoneyFromDecimal(aj.PreviousValue, cur),
		NewValue:       generic.NewMoneyFromDecimal(aj.NewValue, cur),
		EffectiveDate:  parseDateWithFallback("effective_date", aj.EffectiveDate, createdDate, &warnings),
		Notes:          aj.Notes,
		IdempotencyKey: aj.IdempotencyKey,
		CreatedAt:      createdAt,
	}
	if strings.TrimSpace(aj.RenewalDateUsed) != "" {
		a.RenewalDateUsed = generic.ParseDateOr(aj.RenewalDateUsed, a.EffectiveDate)
	}
	return a, warnings, nil
}

// ContractToJSON converts a Contract to ContractJSON using canonical labels
// and ISO dates.
func (f *ContractFactory) ContractToJSON(c billing.Contract) ContractJSON {
	cj := ContractJSON{
		ID:              string(c.ID),
		Name:            c.Name,
		Client:          c.Client,
		BaseValue:       c.BaseValue.Value,
		Currency:        string(c.Currency()),
		PlanType:        c.PlanType.String(),
		StartDate:       c.StartDate.String(),
		TrialDays:       c.TrialDays,
		RenewalDate:     c.RenewalDate.String(),
		PaymentDay:      c.PaymentDay,
		OperationalCost: c.OperationalCost.Value,
		OverheadCost:    c.OverheadCost.Value,
	}
	if !c.CreatedAt.IsZero() {
		cj.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339)
	}
	return cj
}

// AdjustmentToJSON converts an Adjustment to AdjustmentJSON.
func (f *ContractFactory) AdjustmentToJSON(a billing.Adjustment) AdjustmentJSON {
	aj := AdjustmentJSON{
		ID:              string(a.ID),
		ContractID:      string(a.ContractID),
		Type:            a.Type.String(),
		Value:           a.Value,
		PreviousValue:   a.PreviousValue.Value,
		NewValue:        a.NewValue.Value,
		EffectiveDate:   a.EffectiveDate.String(),
		RenewalDateUsed: a.RenewalDateUsed.String(),
		Notes:           a.Notes,
		IdempotencyKey:  a.IdempotencyKey,
	}
	if !a.CreatedAt.IsZero() {
		aj.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return aj
}

// =============================================================================
// LABELS
// =============================================================================

// ParsePlanLabel maps canonical and legacy plan labels to billing.PlanType.
func ParsePlanLabel(s string) (billing.PlanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "mensal":
		return billing.PlanMonthly, nil
	case "semiannual", "semestral":
		return billing.PlanSemiannual, nil
	case "annual", "anual":
		return billing.PlanAnnual, nil
	}
	return 0, fmt.Errorf("%w: unknown plan type %q", generic.ErrInvalidContract, s)
}

// ParseAdjustmentLabel maps canonical and legacy adjustment labels.
func ParseAdjustmentLabel(s string) (billing.AdjustmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percentual":
		return billing.AdjustPercentage, nil
	case "fixed_value", "valor_fixo":
		return billing.AdjustFixedValue, nil
	}
	return 0, fmt.Errorf("%w: unknown adjustment type %q", generic.ErrInvalidAdjustment, s)
}

// =============================================================================
// HELPERS
// =============================================================================

func (f *ContractFactory) currency(s string) generic.Currency {
	if s != "" {
		return generic.Currency(s)
	}
	if f.Currency != "" {
		return f.Currency
	}
	return generic.DefaultCurrency
}

func (f *ContractFactory) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// parseCreatedAt returns the creation timestamp and its calendar date.
// A missing or malformed value falls back to the factory clock.
func (f *ContractFactory) parseCreatedAt(s string, warnings *[]string) (time.Time, generic.Date) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), generic.DateOf(t)
	}
	if d, err := generic.ParseDate(s); err == nil {
		return d.Time, d
	}
	now := f.now().UTC()
	if s != "" {
		*warnings = append(*warnings, fmt.Sprintf("created_at %q is malformed, using %s", s, now.Format(time.RFC3339)))
	}
	return now, generic.DateOf(now)
}

func parseDateWithFallback(field, s string, fallback generic.Date, warnings *[]string) generic.Date {
	d, err := generic.ParseDate(s)
	if err == nil {
		return d
	}
	*warnings = append(*warnings, fmt.Sprintf("%s %q is malformed, using %s", field, s, fallback))
	return fallback
}
