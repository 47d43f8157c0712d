/*
handlers.go - HTTP API handlers for the contract engine

PURPOSE:
  Exposes contract valuation, billing and renewal rules via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  billing core. The analysis date of every read endpoint defaults to today
  but can be pinned with a query parameter, so every answer is reproducible.

ENDPOINTS:
  Contracts:
    GET    /api/contracts                          List contracts
    POST   /api/contracts                          Create a contract (409 if the ID exists)
    GET    /api/contracts/{id}                     Contract details

  Valuation:
    GET    /api/contracts/{id}/value?date=         Effective value + history
    GET    /api/contracts/{id}/billing?year=&month= Billing of one month
    GET    /api/contracts/{id}/profit?year=&mode=&format=csv

  Renewal:
    GET    /api/contracts/{id}/renewal?as_of=      Renewal status
    GET    /api/contracts/{id}/reminders           Recorded reminders
    GET    /api/renewals?as_of=&urgency=           Dashboard, most urgent first

  Adjustments:
    GET    /api/contracts/{id}/adjustments         History (insertion order)
    POST   /api/contracts/{id}/adjustments         Apply a reajuste
    POST   /api/contracts/{id}/adjustments/preview Plan without recording
    POST   /api/contracts/{id}/value-changes       Manual value change
    POST   /api/contracts/{id}/value-changes/preview

  Other:
    POST   /api/proration                          Proration preview
    GET    /api/reports/profit?year=&mode=&format=csv

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the error chain:
  - 400: Validation errors, malformed dates, invalid adjustments, out-of-order
  - 404: Contract not found
  - 409: Duplicate idempotency key
  - 422: Incomplete configuration (payment day missing)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/warp/contract-engine/billing"
	"github.com/warp/contract-engine/factory"
	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/logging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   billing.Store
	Service *billing.AdjustmentService
	Factory *factory.ContractFactory
	Log     *zap.SugaredLogger
	Metrics *Metrics

	// DayCount is the proration convention for value changes.
	DayCount billing.DayCount

	// Today supplies the default analysis date.
	Today func() generic.Date

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store billing.Store, log *zap.SugaredLogger, metrics *Metrics) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		Store:    store,
		Service:  billing.NewAdjustmentService(store),
		Factory:  factory.NewContractFactory(),
		Log:      log,
		Metrics:  metrics,
		DayCount: billing.DayCountCommercial,
		Today:    generic.Today,
	}
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns all contracts with their current value.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contracts, err := h.Store.ListContracts(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to list contracts", err)
		return
	}

	today := h.Today()
	dtos := make([]ContractDTO, 0, len(contracts))
	for _, c := range contracts {
		history, err := h.Store.ListAdjustments(ctx, c.ID)
		if err != nil {
			h.writeDomainError(w, "Failed to load adjustments", err)
			return
		}
		dtos = append(dtos, h.toContractDTO(c, history, today, nil))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContract returns one contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Load(r.Context(), contractID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toContractDTO(snap.Contract, snap.Adjustments, h.Today(), nil))
}

// CreateContract creates a contract from its JSON record. An existing ID is
// a 409: value changes go through adjustments and value changes.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req factory.ContractJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, warnings, err := h.Factory.ContractFromJSON(req)
	if err != nil {
		h.writeDomainError(w, "Invalid contract", err)
		return
	}
	if len(warnings) > 0 {
		h.Log.Warnw("contract normalized with fallbacks", "contract_id", c.ID, "warnings", warnings)
	}

	if err := h.Store.SaveContract(r.Context(), c); err != nil {
		h.writeDomainError(w, "Failed to save contract", err)
		return
	}
	history, err := h.Store.ListAdjustments(r.Context(), c.ID)
	if err != nil {
		h.writeDomainError(w, "Failed to load adjustments", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toContractDTO(c, history, h.Today(), warnings))
}

// =============================================================================
// VALUATION HANDLERS
// =============================================================================

// GetValue returns the effective value on a date plus the full step history.
func (h *Handler) GetValue(w http.ResponseWriter, r *http.Request) {
	at, err := h.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	snap, err := h.Service.Load(r.Context(), contractID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}

	value := billing.ResolveEffectiveValue(snap.Contract, snap.Adjustments, at)
	h.Metrics.ValueResolutions.Inc()

	writeJSON(w, http.StatusOK, ValueDTO{
		ContractID: string(snap.Contract.ID),
		Date:       at.String(),
		Value:      value.Display(),
		Currency:   string(snap.Contract.Currency()),
		History:    toValueSteps(billing.ValueHistory(snap.Contract, snap.Adjustments)),
	})
}

// GetBilling answers whether the contract is invoiced in a month.
func (h *Handler) GetBilling(w http.ResponseWriter, r *http.Request) {
	today := h.Today()
	year, err := intParam(r, "year", today.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := intParam(r, "month", int(today.Month()))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month (use 1-12)", err)
		return
	}

	snap, err := h.Service.Load(r.Context(), contractID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}

	m := generic.NewMonth(year, time.Month(month))
	charge := billing.IsBilledInMonth(snap.Contract, snap.Adjustments, year, time.Month(month))
	effective := billing.ResolveEffectiveValue(snap.Contract, snap.Adjustments, m.Last())
	writeJSON(w, http.StatusOK, toBillingDTO(snap.Contract, charge, effective))
}

// GetProfit returns the yearly profit analysis of a contract.
func (h *Handler) GetProfit(w http.ResponseWriter, r *http.Request) {
	year, mode, err := h.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report parameters", err)
		return
	}
	snap, err := h.Service.Load(r.Context(), contractID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}

	report := toProfitReportDTO(billing.AnalyzeYear(snap.Contract, snap.Adjustments, year, mode))
	if wantsCSV(r) {
		h.writeCSV(w, fmt.Sprintf("profit-%s-%d.csv", snap.Contract.ID, year), report.Months)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetPortfolioProfit analyzes every contract for a year.
func (h *Handler) GetPortfolioProfit(w http.ResponseWriter, r *http.Request) {
	year, mode, err := h.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report parameters", err)
		return
	}

	portfolio, err := billing.AnalyzePortfolio(r.Context(), h.Store, year, mode)
	if err != nil {
		h.writeDomainError(w, "Failed to analyze portfolio", err)
		return
	}

	reports := lo.Map(portfolio.Contracts, func(p billing.ProfitReport, _ int) ProfitReportDTO {
		return toProfitReportDTO(p)
	})
	if wantsCSV(r) {
		rows := lo.FlatMap(reports, func(p ProfitReportDTO, _ int) []ProfitMonthDTO { return p.Months })
		h.writeCSV(w, fmt.Sprintf("portfolio-profit-%d.csv", year), rows)
		return
	}
	writeJSON(w, http.StatusOK, PortfolioDTO{
		Year:         portfolio.Year,
		Mode:         string(portfolio.Mode),
		Contracts:    reports,
		TotalRevenue: portfolio.TotalRevenue.Display(),
		TotalCost:    portfolio.TotalCost.Display(),
		TotalProfit:  portfolio.TotalProfit.Display(),
	})
}

// =============================================================================
// RENEWAL HANDLERS
// =============================================================================

// GetRenewal returns the renewal status of a contract.
func (h *Handler) GetRenewal(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}
	snap, err := h.Service.Load(r.Context(), contractID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}
	status := billing.Renewal(snap.Contract, snap.Adjustments, asOf)
	writeJSON(w, http.StatusOK, toRenewalDTO(snap.Contract, status))
}

// ListRenewals returns every anchored, unsatisfied renewal, most urgent
// first. ?urgency=low|medium|high filters by minimum urgency.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}
	minUrgency := billing.ParseUrgency(r.URL.Query().Get("urgency"))

	ctx := r.Context()
	contracts, err := h.Store.ListContracts(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to list contracts", err)
		return
	}

	type entry struct {
		contract billing.Contract
		status   billing.RenewalStatus
	}
	var entries []entry
	for _, c := range contracts {
		history, err := h.Store.ListAdjustments(ctx, c.ID)
		if err != nil {
			h.writeDomainError(w, "Failed to load adjustments", err)
			return
		}
		entries = append(entries, entry{contract: c, status: billing.Renewal(c, history, asOf)})
	}

	entries = lo.Filter(entries, func(e entry, _ int) bool {
		return e.status.HasAnchor && !e.status.Satisfied && e.status.Urgency >= minUrgency
	})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].status.Urgency != entries[j].status.Urgency {
			return entries[i].status.Urgency > entries[j].status.Urgency
		}
		return entries[i].status.DaysUntil < entries[j].status.DaysUntil
	})

	dtos := lo.Map(entries, func(e entry, _ int) RenewalDTO { return toRenewalDTO(e.contract, e.status) })
	writeJSON(w, http.StatusOK, dtos)
}

// ListReminders returns the reminders recorded for a contract.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	id := contractID(r)
	if _, err := h.Store.GetContract(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}
	reminders, err := h.Store.ListReminders(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list reminders", err)
		return
	}
	out := make([]map[string]any, 0, len(reminders))
	for _, rm := range reminders {
		out = append(out, map[string]any{
			"id":           rm.ID,
			"contract_id":  rm.ContractID,
			"target_year":  rm.TargetYear,
			"renewal_date": rm.RenewalDate.String(),
			"urgency":      rm.Urgency.String(),
			"created_at":   rm.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// ListAdjustments returns the adjustment history in insertion order.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Load(r.Context(), contractID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(snap.Adjustments, func(a billing.Adjustment, _ int) AdjustmentDTO {
		return toAdjustmentDTO(a)
	}))
}

// PreviewAdjustment plans a reajuste and returns it without recording it.
func (h *Handler) PreviewAdjustment(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeRenewalAdjustment(w, r)
	if !ok {
		return
	}
	plan, err := h.Service.PreviewRenewalAdjustment(r.Context(), contractID(r), in)
	if err != nil {
		h.writeDomainError(w, "Failed to plan adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentPlanDTO(plan))
}

// CreateAdjustment records a reajuste.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeRenewalAdjustment(w, r)
	if !ok {
		return
	}
	created, plan, err := h.Service.ApplyRenewalAdjustment(r.Context(), contractID(r), in)
	if err != nil {
		h.writeDomainError(w, "Failed to create adjustment", err)
		return
	}
	h.Metrics.AdjustmentsCreated.WithLabelValues(created.Type.String(), strconv.FormatBool(plan.Retroactive)).Inc()
	h.Log.Infow("adjustment recorded",
		"contract_id", created.ContractID,
		"adjustment_id", created.ID,
		"effective_date", created.EffectiveDate.String(),
		"retroactive", plan.Retroactive,
	)

	plan.Adjustment = created
	writeJSON(w, http.StatusCreated, toAdjustmentPlanDTO(plan))
}

// PreviewValueChange plans a manual value change.
func (h *Handler) PreviewValueChange(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeValueChange(w, r)
	if !ok {
		return
	}
	plan, err := h.Service.PreviewManualChange(r.Context(), contractID(r), in)
	h.countProration(in, err)
	if err != nil {
		h.writeDomainError(w, "Failed to plan value change", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentPlanDTO(plan))
}

// CreateValueChange records a manual value change, prorated on request.
func (h *Handler) CreateValueChange(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeValueChange(w, r)
	if !ok {
		return
	}
	created, plan, err := h.Service.ApplyManualChange(r.Context(), contractID(r), in)
	h.countProration(in, err)
	if err != nil {
		h.writeDomainError(w, "Failed to create value change", err)
		return
	}
	h.Metrics.AdjustmentsCreated.WithLabelValues("manual", "false").Inc()

	plan.Adjustment = created
	writeJSON(w, http.StatusCreated, toAdjustmentPlanDTO(plan))
}

func (h *Handler) decodeRenewalAdjustment(w http.ResponseWriter, r *http.Request) (billing.RenewalAdjustmentInput, bool) {
	var req CreateAdjustmentRequest
	if !decodeRequest(w, r, &req) {
		return billing.RenewalAdjustmentInput{}, false
	}

	kind, err := factory.ParseAdjustmentLabel(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid adjustment type", err)
		return billing.RenewalAdjustmentInput{}, false
	}
	today := h.Today()
	if req.Today != "" {
		if today, err = generic.ParseDate(req.Today); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid today date", err)
			return billing.RenewalAdjustmentInput{}, false
		}
	}
	var renewal generic.Date
	if req.RenewalDate != "" {
		if renewal, err = generic.ParseDate(req.RenewalDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid renewal_date", err)
			return billing.RenewalAdjustmentInput{}, false
		}
	}

	return billing.RenewalAdjustmentInput{
		Type:           kind,
		Value:          req.Value,
		Today:          today,
		RenewalDate:    renewal,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
	}, true
}

func (h *Handler) decodeValueChange(w http.ResponseWriter, r *http.Request) (billing.ManualChangeInput, bool) {
	var req ValueChangeRequest
	if !decodeRequest(w, r, &req) {
		return billing.ManualChangeInput{}, false
	}
	changeDate, err := generic.ParseDate(req.ChangeDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid change_date", err)
		return billing.ManualChangeInput{}, false
	}
	return billing.ManualChangeInput{
		NewValue:       generic.NewMoneyFromDecimal(req.NewValue, h.Factory.Currency),
		ChangeDate:     changeDate,
		Proportional:   req.Proportional,
		DayCount:       h.DayCount,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
	}, true
}

// =============================================================================
// PRORATION
// =============================================================================

// ComputeProration previews the split of a billing period around a change.
func (h *Handler) ComputeProration(w http.ResponseWriter, r *http.Request) {
	var req ProrationRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	changeDate, err := generic.ParseDate(req.ChangeDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid change_date", err)
		return
	}

	currency := generic.Currency(req.Currency)
	if currency == "" {
		currency = h.Factory.Currency
	}
	dc := billing.DayCount(req.DayCount)
	if dc == "" {
		dc = h.DayCount
	}

	split, err := billing.ComputeProrationWith(
		generic.NewMoneyFromDecimal(req.OldValue, currency),
		generic.NewMoneyFromDecimal(req.NewValue, currency),
		req.PaymentDay, changeDate, dc,
	)
	if err != nil {
		h.Metrics.Prorations.WithLabelValues("incomplete_configuration").Inc()
		h.writeDomainError(w, "Cannot compute proration", err)
		return
	}
	h.Metrics.Prorations.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, toProrationDTO(split))
}

func (h *Handler) countProration(in billing.ManualChangeInput, err error) {
	if !in.Proportional {
		return
	}
	if errors.Is(err, generic.ErrIncompleteConfiguration) {
		h.Metrics.Prorations.WithLabelValues("incomplete_configuration").Inc()
		return
	}
	if err == nil {
		h.Metrics.Prorations.WithLabelValues("ok").Inc()
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error chain to a status and logs server faults.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Errorw(message, "error", err)
	}
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) (int, string) {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrContractExists):
		return http.StatusConflict, "contract_exists"
	case generic.IsConflict(err):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, generic.ErrIncompleteConfiguration):
		return http.StatusUnprocessableEntity, "incomplete_configuration"
	case errors.Is(err, generic.ErrAdjustmentOutOfOrder):
		return http.StatusBadRequest, "out_of_order"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "invalid"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := factory.ValidateRequest(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func (h *Handler) writeCSV(w http.ResponseWriter, filename string, rows []ProfitMonthDTO) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := gocsv.Marshal(rows, w); err != nil {
		h.Log.Errorw("failed to write CSV", "error", err)
	}
}

func wantsCSV(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "csv")
}

func contractID(r *http.Request) generic.ContractID {
	return generic.ContractID(chi.URLParam(r, "id"))
}

func idempotencyKey(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("Idempotency-Key")
}

// dateParam parses a query date, defaulting to today when absent.
func (h *Handler) dateParam(r *http.Request, name string) (generic.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.Today(), nil
	}
	return generic.ParseDate(raw)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) reportParams(r *http.Request) (int, billing.BillingMode, error) {
	year, err := intParam(r, "year", h.Today().Year())
	if err != nil {
		return 0, "", err
	}
	mode := billing.BillingMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = billing.ModeActual
	}
	if !mode.Valid() {
		return 0, "", errors.Newf("mode %q must be actual or average", mode)
	}
	return year, mode, nil
}

func (h *Handler) toContractDTO(c billing.Contract, history []billing.Adjustment, today generic.Date, warnings []string) ContractDTO {
	return ContractDTO{
		ContractJSON: h.Factory.ContractToJSON(c),
		CurrentValue: billing.ResolveEffectiveValue(c, history, today).Display(),
		BillingStart: billing.BillingStart(c).String(),
		Warnings:     warnings,
	}
}
