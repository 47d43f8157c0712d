/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Loads every scenario through the HTTP API and checks the state it leaves:
	- Contracts are normalized from their upstream records
	- Recorded adjustments pass the ledger checks
	- Loading a scenario replaces the previous one
*/
package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contract-engine/billing/store"
	"github.com/warp/contract-engine/generic"
)

func loadScenarioOK(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, decode[map[string]string](t, rec)["scenario"])
}

func TestListScenarios(t *testing.T) {
	_, router := newTestAPI(t)

	list := decode[[]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", nil))

	require.Len(t, list, 4)
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
		assert.NotEmpty(t, s.Name)
	}
	assert.ElementsMatch(t, []string{"monthly-retainer", "semiannual-trial", "annual-license", "legacy-records"}, ids)
}

func TestLoadScenario_AllScenariosLoad(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			_, router := newTestAPI(t)
			loadScenarioOK(t, router, s.ID)

			list := decode[[]ContractDTO](t, do(t, router, http.MethodGet, "/api/contracts", nil))
			assert.Len(t, list, len(s.Contracts))
		})
	}
}

func TestLoadScenario_AnnualLicense(t *testing.T) {
	// GIVEN: The annual license scenario
	_, router := newTestAPI(t)
	loadScenarioOK(t, router, "annual-license")

	// THEN: Both reajustes are recorded and the value follows them
	adjustments := decode[[]AdjustmentDTO](t, do(t, router, http.MethodGet, "/api/contracts/ctr-license/adjustments", nil))
	require.Len(t, adjustments, 2)
	assert.Equal(t, "2025-03-10", adjustments[0].EffectiveDate)
	assert.Equal(t, "4.50", adjustments[0].ChangePercent)

	value := decode[ValueDTO](t, do(t, router, http.MethodGet, "/api/contracts/ctr-license/value?date=2026-04-01", nil))
	assert.Equal(t, "13200.00", value.Value)

	// AND: The 2026 renewal is already satisfied
	status := decode[RenewalDTO](t, do(t, router, http.MethodGet, "/api/contracts/ctr-license/renewal?as_of=2026-03-01", nil))
	assert.True(t, status.Satisfied)
	assert.Equal(t, "none", status.Urgency)

	// AND: It is reported as the current scenario
	current := decode[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "annual-license", current.ID)
}

func TestLoadScenario_LegacyRecordsFallBack(t *testing.T) {
	_, router := newTestAPI(t)
	loadScenarioOK(t, router, "legacy-records")

	legacy := decode[ContractDTO](t, do(t, router, http.MethodGet, "/api/contracts/ctr-legacy-a", nil))
	assert.Equal(t, "2023-05-02", legacy.StartDate)

	// Payment day 31 is clamped in short months
	split := decode[ProrationDTO](t, do(t, router, http.MethodPost, "/api/proration", map[string]any{
		"old_value": "400", "new_value": "500", "payment_day": 31, "change_date": "2024-02-15",
	}))
	assert.Equal(t, "2024-01-31", split.PeriodStart)
	assert.Equal(t, "2024-02-28", split.PeriodEnd)
}

func TestLoadScenario_ReplacesPreviousState(t *testing.T) {
	_, router := newTestAPI(t)
	loadScenarioOK(t, router, "annual-license")
	loadScenarioOK(t, router, "semiannual-trial")

	rec := do(t, router, http.MethodGet, "/api/contracts/ctr-license", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	charge := decode[BillingDTO](t, do(t, router, http.MethodGet, "/api/contracts/ctr-hosting/billing?year=2024&month=1", nil))
	assert.False(t, charge.Billed)
	assert.True(t, charge.InTrial)
}

func TestLoadScenario_WorksOnMemoryStore(t *testing.T) {
	h := NewHandler(store.NewMemory(), nil, nil)
	h.Today = func() generic.Date { return testToday }
	router := NewRouter(h, RouterOptions{})

	loadScenarioOK(t, router, "monthly-retainer")

	value := decode[ValueDTO](t, do(t, router, http.MethodGet, "/api/contracts/ctr-retainer/value", nil))
	assert.Equal(t, "1575.00", value.Value)
}

func TestLoadScenario_Unknown(t *testing.T) {
	_, router := newTestAPI(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}
