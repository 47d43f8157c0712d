/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	contracts and adjustment histories. Each scenario is written as the JSON
	records an upstream system would send, so loading one also exercises the
	factory's legacy label and date normalization.

AVAILABLE SCENARIOS:

	monthly-retainer: Monthly plan with one yearly reajuste
	semiannual-trial: Semiannual plan with a 30-day trial
	annual-license:   Annual plan with a renewal anchor and value history
	legacy-records:   Hand-typed records with malformed dates

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create contracts via factory
 3. Append recorded adjustments through the ledger

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "annual-license"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Endpoints the loaded data can be explored with
  - factory/contract.go: JSON record definitions
*/
package api

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/warp/contract-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	Contracts   []string
	Adjustments []string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "monthly-retainer",
			Name:        "Monthly Retainer",
			Description: "Monthly support contract adjusted by 5% at its first renewal",
			Category:    "monthly",
		},
		Contracts: []string{`{
			"id": "ctr-retainer", "name": "Support Retainer", "client": "Padaria Central",
			"base_value": "1500.00", "currency": "BRL", "plan_type": "mensal",
			"start_date": "10/01/2024", "renewal_date": "10/01/2024", "payment_day": 10,
			"operational_cost": "600", "overhead_cost": "150",
			"created_at": "2024-01-05T12:00:00Z"
		}`},
		Adjustments: []string{`{
			"id": "adj-retainer-2025", "contract_id": "ctr-retainer", "type": "percentual",
			"value": "5", "previous_value": "1500.00", "new_value": "1575.00",
			"effective_date": "2025-01-10", "renewal_date_used": "2025-01-10",
			"notes": "reajuste anual", "created_at": "2025-01-08T09:30:00Z"
		}`},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "semiannual-trial",
			Name:        "Semiannual With Trial",
			Description: "Semiannual plan with 30 trial days: first invoice in February",
			Category:    "semiannual",
		},
		Contracts: []string{`{
			"id": "ctr-hosting", "name": "Managed Hosting", "client": "Loja Azul",
			"base_value": "6000.00", "plan_type": "semestral",
			"start_date": "2024-01-01", "trial_days": 30, "renewal_date": "2024-01-01",
			"payment_day": 5, "operational_cost": "450", "overhead_cost": "50",
			"created_at": "2023-12-20T15:00:00Z"
		}`},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "annual-license",
			Name:        "Annual License",
			Description: "Annual plan billed each March with two recorded reajustes",
			Category:    "annual",
		},
		Contracts: []string{`{
			"id": "ctr-license", "name": "ERP License", "client": "Metalurgica Sul",
			"base_value": "12000.00", "plan_type": "anual",
			"start_date": "2024-03-10", "renewal_date": "2024-03-10", "payment_day": 10,
			"operational_cost": "400", "overhead_cost": "100",
			"created_at": "2024-03-01T10:00:00Z"
		}`},
		Adjustments: []string{
			`{
				"id": "adj-license-2025", "contract_id": "ctr-license", "type": "percentual",
				"value": "4.5", "previous_value": "12000.00", "new_value": "12540.00",
				"effective_date": "10/03/2025", "renewal_date_used": "10/03/2025",
				"created_at": "2025-03-02T11:00:00Z"
			}`,
			`{
				"id": "adj-license-2026", "contract_id": "ctr-license", "type": "valor_fixo",
				"value": "13200", "previous_value": "12540.00", "new_value": "13200.00",
				"effective_date": "2026-03-10", "renewal_date_used": "2026-03-10",
				"created_at": "2026-03-01T11:00:00Z"
			}`,
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "legacy-records",
			Name:        "Legacy Records",
			Description: "Hand-typed dates: malformed start date falls back to creation date",
			Category:    "data-quality",
		},
		Contracts: []string{
			`{
				"id": "ctr-legacy-a", "name": "Legacy Consulting", "client": "Cliente Antigo",
				"base_value": "900", "plan_type": "mensal",
				"start_date": "31/31/2023", "renewal_date": "2023-05-02",
				"operational_cost": "200", "created_at": "2023-05-02T08:00:00Z"
			}`,
			`{
				"id": "ctr-legacy-b", "name": "Legacy Maintenance", "client": "Cliente Antigo",
				"base_value": "2400", "plan_type": "semestral",
				"start_date": "2023-07-01", "payment_day": 31,
				"operational_cost": "300", "created_at": "2023-06-28T08:00:00Z"
			}`,
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	var selected *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			selected = &scenarios[i]
		}
	}
	if selected == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), *selected); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = selected.ID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": selected.ID})
}

// resetter is implemented by stores that can be cleared for demos.
type resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	rs, ok := h.Store.(resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return errors.Wrap(err, "reset store")
	}

	return h.Store.WithTx(ctx, func(tx billing.Store) error {
		for _, raw := range s.Contracts {
			c, warnings, err := h.Factory.ParseContract(raw)
			if err != nil {
				return errors.Wrapf(err, "scenario %s", s.ID)
			}
			if len(warnings) > 0 {
				h.Log.Warnw("scenario contract normalized with fallbacks", "contract_id", c.ID, "warnings", warnings)
			}
			if err := tx.SaveContract(ctx, c); err != nil {
				return err
			}
		}

		ledger := billing.NewAdjustmentLedger(tx)
		for _, raw := range s.Adjustments {
			a, _, err := h.Factory.ParseAdjustment(raw)
			if err != nil {
				return errors.Wrapf(err, "scenario %s", s.ID)
			}
			if err := ledger.Append(ctx, a); err != nil {
				return errors.Wrapf(err, "append %s", a.ID)
			}
		}
		return nil
	})
}
