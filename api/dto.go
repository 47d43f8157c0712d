/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money leaves the API as
  decimal strings rounded to 2 places; the core keeps full precision and
  rounding happens only here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Contracts:   ContractDTO (wraps factory.ContractJSON)
  Valuation:   ValueDTO, ValueStepDTO, BillingDTO
  Profit:      ProfitReportDTO, ProfitMonthDTO (also the CSV row), PortfolioDTO
  Renewal:     RenewalDTO
  Adjustments: AdjustmentDTO, AdjustmentPlanDTO, CreateAdjustmentRequest,
               ValueChangeRequest
  Proration:   ProrationRequest, ProrationDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags, checked with
  factory.ValidateRequest before any parsing.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/contract.go: ContractJSON / AdjustmentJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/factory"
	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// CONTRACTS
// =============================================================================

// ContractDTO represents a contract with its derived state.
type ContractDTO struct {
	factory.ContractJSON
	CurrentValue string   `json:"current_value"`
	BillingStart string   `json:"billing_start"`
	Warnings     []string `json:"warnings,omitempty"`
}

// =============================================================================
// VALUATION
// =============================================================================

type ValueStepDTO struct {
	From         string `json:"from"`
	Value        string `json:"value"`
	AdjustmentID string `json:"adjustment_id,omitempty"`
}

type ValueDTO struct {
	ContractID string         `json:"contract_id"`
	Date       string         `json:"date"`
	Value      string         `json:"value"`
	Currency   string         `json:"currency"`
	History    []ValueStepDTO `json:"history"`
}

type BillingDTO struct {
	ContractID       string `json:"contract_id"`
	Month            string `json:"month"`
	Billed           bool   `json:"billed"`
	Value            string `json:"value"`
	MonthsSinceStart int    `json:"months_since_billing_start"`
	InTrial          bool   `json:"in_trial"`
	MonthlyAverage   string `json:"monthly_average"`
	PlanType         string `json:"plan_type"`
}

// =============================================================================
// PROFIT
// =============================================================================

// ProfitMonthDTO is both the JSON row and the CSV row of a profit report.
type ProfitMonthDTO struct {
	ContractID string `json:"-" csv:"contract_id"`
	Month      string `json:"month" csv:"month"`
	Billed     bool   `json:"billed" csv:"billed"`
	Revenue    string `json:"revenue" csv:"revenue"`
	Cost       string `json:"cost" csv:"cost"`
	Profit     string `json:"profit" csv:"profit"`
	Deficit    bool   `json:"deficit" csv:"deficit"`
}

type ProfitReportDTO struct {
	ContractID    string           `json:"contract_id"`
	Year          int              `json:"year"`
	Mode          string           `json:"mode"`
	Months        []ProfitMonthDTO `json:"months"`
	TotalRevenue  string           `json:"total_revenue"`
	TotalCost     string           `json:"total_cost"`
	TotalProfit   string           `json:"total_profit"`
	MarginPercent string           `json:"margin_percent"`
	DeficitMonths int              `json:"deficit_months"`
}

type PortfolioDTO struct {
	Year         int               `json:"year"`
	Mode         string            `json:"mode"`
	Contracts    []ProfitReportDTO `json:"contracts"`
	TotalRevenue string            `json:"total_revenue"`
	TotalCost    string            `json:"total_cost"`
	TotalProfit  string            `json:"total_profit"`
}

// =============================================================================
// RENEWAL
// =============================================================================

type RenewalDTO struct {
	ContractID   string `json:"contract_id"`
	ContractName string `json:"contract_name,omitempty"`
	HasAnchor    bool   `json:"has_anchor"`
	CycleDate    string `json:"cycle_date,omitempty"`
	NextDate     string `json:"next_date,omitempty"`
	DaysUntil    int    `json:"days_until"`
	Urgency      string `json:"urgency"`
	Satisfied    bool   `json:"satisfied"`
	Overdue      bool   `json:"overdue"`
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

type AdjustmentDTO struct {
	ID              string `json:"id,omitempty"`
	ContractID      string `json:"contract_id"`
	Type            string `json:"type"`
	Value           string `json:"value"`
	PreviousValue   string `json:"previous_value"`
	NewValue        string `json:"new_value"`
	ChangePercent   string `json:"change_percent"`
	EffectiveDate   string `json:"effective_date"`
	RenewalDateUsed string `json:"renewal_date_used,omitempty"`
	Notes           string `json:"notes,omitempty"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

type AdjustmentPlanDTO struct {
	Adjustment  AdjustmentDTO `json:"adjustment"`
	Retroactive bool          `json:"retroactive"`
	Proration   *ProrationDTO `json:"proration,omitempty"`
}

// CreateAdjustmentRequest asks for a yearly reajuste. Type accepts the
// legacy labels too ("percentual", "valor_fixo").
type CreateAdjustmentRequest struct {
	Type           string          `json:"type" validate:"required"`
	Value          decimal.Decimal `json:"value"`
	Today          string          `json:"today,omitempty"`
	RenewalDate    string          `json:"renewal_date,omitempty"`
	Notes          string          `json:"notes,omitempty" validate:"max=2000"`
	IdempotencyKey string          `json:"idempotency_key,omitempty" validate:"max=128"`
}

// ValueChangeRequest asks for a manual value change.
type ValueChangeRequest struct {
	NewValue       decimal.Decimal `json:"new_value"`
	ChangeDate     string          `json:"change_date" validate:"required"`
	Proportional   bool            `json:"proportional"`
	Notes          string          `json:"notes,omitempty" validate:"max=2000"`
	IdempotencyKey string          `json:"idempotency_key,omitempty" validate:"max=128"`
}

// =============================================================================
// PRORATION
// =============================================================================

type ProrationRequest struct {
	OldValue   decimal.Decimal `json:"old_value"`
	NewValue   decimal.Decimal `json:"new_value"`
	PaymentDay int             `json:"payment_day"`
	ChangeDate string          `json:"change_date" validate:"required"`
	DayCount   string          `json:"day_count,omitempty" validate:"omitempty,oneof=commercial_30 actual"`
	Currency   string          `json:"currency,omitempty" validate:"omitempty,oneof=BRL USD EUR"`
}

type ProrationDTO struct {
	PeriodStart          string `json:"period_start"`
	PeriodEnd            string `json:"period_end"`
	TotalDays            int    `json:"total_days"`
	DaysOldPlan          int    `json:"days_old_plan"`
	DaysNewPlan          int    `json:"days_new_plan"`
	ProportionalOldValue string `json:"proportional_old_value"`
	ProportionalNewValue string `json:"proportional_new_value"`
	TotalValue           string `json:"total_value"`
	AppliesToNextInvoice bool   `json:"applies_to_next_invoice"`
	DayCount             string `json:"day_count"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toValueSteps(steps []billing.ValueStep) []ValueStepDTO {
	out := make([]ValueStepDTO, len(steps))
	for i, s := range steps {
		out[i] = ValueStepDTO{From: s.From.String(), Value: s.Value.Display(), AdjustmentID: string(s.AdjustmentID)}
	}
	return out
}

func toBillingDTO(c billing.Contract, ch billing.MonthCharge, effective generic.Money) BillingDTO {
	return BillingDTO{
		ContractID:       string(c.ID),
		Month:            ch.Month.String(),
		Billed:           ch.Billed,
		Value:            ch.Value.Display(),
		MonthsSinceStart: ch.MonthsSinceStart,
		InTrial:          ch.InTrial,
		MonthlyAverage:   billing.MonthlyAverageValue(c, effective).Display(),
		PlanType:         c.PlanType.String(),
	}
}

func toProfitReportDTO(r billing.ProfitReport) ProfitReportDTO {
	months := make([]ProfitMonthDTO, len(r.Months))
	for i, m := range r.Months {
		months[i] = ProfitMonthDTO{
			ContractID: string(r.ContractID),
			Month:      m.Month.String(),
			Billed:     m.Billed,
			Revenue:    m.Revenue.Display(),
			Cost:       m.Cost.Display(),
			Profit:     m.Profit.Display(),
			Deficit:    m.Deficit,
		}
	}
	return ProfitReportDTO{
		ContractID:    string(r.ContractID),
		Year:          r.Year,
		Mode:          string(r.Mode),
		Months:        months,
		TotalRevenue:  r.TotalRevenue.Display(),
		TotalCost:     r.TotalCost.Display(),
		TotalProfit:   r.TotalProfit.Display(),
		MarginPercent: r.Margin().StringFixed(generic.DisplayPlaces),
		DeficitMonths: r.DeficitCount,
	}
}

func toRenewalDTO(c billing.Contract, s billing.RenewalStatus) RenewalDTO {
	return RenewalDTO{
		ContractID:   string(s.ContractID),
		ContractName: c.Name,
		HasAnchor:    s.HasAnchor,
		CycleDate:    s.CycleDate.String(),
		NextDate:     s.NextDate.String(),
		DaysUntil:    s.DaysUntil,
		Urgency:      s.Urgency.String(),
		Satisfied:    s.Satisfied,
		Overdue:      s.Overdue(),
	}
}

func toAdjustmentDTO(a billing.Adjustment) AdjustmentDTO {
	dto := AdjustmentDTO{
		ID:              string(a.ID),
		ContractID:      string(a.ContractID),
		Type:            a.Type.String(),
		Value:           a.Value.String(),
		PreviousValue:   a.PreviousValue.Display(),
		NewValue:        a.NewValue.Display(),
		ChangePercent:   billing.PercentageChange(a.PreviousValue, a.NewValue).StringFixed(generic.DisplayPlaces),
		EffectiveDate:   a.EffectiveDate.String(),
		RenewalDateUsed: a.RenewalDateUsed.String(),
		Notes:           a.Notes,
		IdempotencyKey:  a.IdempotencyKey,
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toProrationDTO(s billing.ProportionalSplit) *ProrationDTO {
	return &ProrationDTO{
		PeriodStart:          s.Period.Start.String(),
		PeriodEnd:            s.Period.End.String(),
		TotalDays:            s.TotalDays,
		DaysOldPlan:          s.DaysOldPlan,
		DaysNewPlan:          s.DaysNewPlan,
		ProportionalOldValue: s.ProportionalOldValue.Display(),
		ProportionalNewValue: s.ProportionalNewValue.Display(),
		TotalValue:           s.TotalValue.Display(),
		AppliesToNextInvoice: s.AppliesToNextInvoice,
		DayCount:             string(s.DayCount),
	}
}

func toAdjustmentPlanDTO(p billing.AdjustmentPlan) AdjustmentPlanDTO {
	dto := AdjustmentPlanDTO{Adjustment: toAdjustmentDTO(p.Adjustment), Retroactive: p.Retroactive}
	if p.Split != nil {
		dto.Proration = toProrationDTO(*p.Split)
	}
	return dto
}
