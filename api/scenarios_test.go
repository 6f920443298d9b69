/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Members are created
	- Ledgers are generated relative to the program anchor
	- Tier resolution and availability match what the scenario describes

These tests double as integration tests for the resolver over SQLite.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/rewards"
)

func loadTestScenario(t *testing.T, h *Handler, id string) {
	t.Helper()
	s, ok := findScenario(id)
	require.True(t, ok, "scenario %s", id)
	require.NoError(t, h.loadScenario(context.Background(), s))
}

func resolveNow(t *testing.T, h *Handler, member generic.MemberID) generic.TierStatus {
	t.Helper()
	status, err := h.Resolver.ResolveActiveTier(context.Background(), member, h.Clock.Now())
	require.NoError(t, err)
	return status
}

func TestScenario_Carryover(t *testing.T) {
	// GIVEN: Avery earned 1200 last cycle and 150 this cycle
	// WHEN: Resolving at the scenario's simulated date
	// THEN: Silver is carried over until the current cycle ends

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "carryover")

	a := h.Program.Anchor
	assert.Equal(t, a.CycleStart(demoCycle).AddDate(0, 1, 14), h.Clock.Now())

	status := resolveNow(t, h, "avery")
	assert.Equal(t, generic.Points(1200), status.PreviousCycleEarnedPoints)
	// 100 welcome social + floor(45.50 * 1.1) purchase
	assert.Equal(t, generic.Points(150), status.CurrentCycleEarnedPoints)
	assert.Equal(t, rewards.TierSilver, status.ActiveTier)
	assert.Equal(t, generic.TierSourcePrevious, status.TierSource)
	assert.Equal(t, a.CycleEnd(demoCycle), status.ExpiryDate)
}

func TestScenario_BaseTier(t *testing.T) {
	// GIVEN: Blake stayed below silver in both cycles
	// WHEN: Resolving
	// THEN: Bronze from the current cycle, expiring a cycle later

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "base-tier")

	status := resolveNow(t, h, "blake")
	assert.Equal(t, generic.Points(333), status.PreviousCycleEarnedPoints)
	assert.Equal(t, rewards.TierBronze, status.ActiveTier)
	assert.Equal(t, generic.TierSourceCurrent, status.TierSource)
	assert.Equal(t, h.Program.Anchor.CycleEnd(demoCycle+1), status.ExpiryDate)
}

func TestScenario_Promotion(t *testing.T) {
	// GIVEN: Casey was gold last cycle and is platinum already this cycle
	// WHEN: Resolving
	// THEN: Platinum from the current cycle wins

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "promotion")

	status := resolveNow(t, h, "casey")
	assert.Equal(t, rewards.TierGold, status.PreviousTier)
	assert.Equal(t, generic.Points(11000), status.CurrentCycleEarnedPoints)
	assert.Equal(t, rewards.TierPlatinum, status.ActiveTier)
	assert.Equal(t, generic.TierSourceCurrent, status.TierSource)
	assert.Equal(t, h.Program.Anchor.CycleEnd(demoCycle+1), status.ExpiryDate)
}

func TestScenario_FutureDatedCreditIgnored(t *testing.T) {
	// GIVEN: Dana has 900 points now and a gala credit dated next month
	// WHEN: Resolving now and after the gala
	// THEN: Bronze now, silver once the gala date has passed

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "future-dated")

	status := resolveNow(t, h, "dana")
	assert.Equal(t, generic.Points(900), status.CurrentCycleEarnedPoints)
	assert.Equal(t, rewards.TierBronze, status.ActiveTier)

	later, err := h.Resolver.ResolveActiveTier(context.Background(), "dana", h.Clock.Now().AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, generic.Points(1900), later.CurrentCycleEarnedPoints)
	assert.Equal(t, rewards.TierSilver, later.ActiveTier)
}

func TestScenario_TransferHeavy(t *testing.T) {
	// GIVEN: Emery received 9000 by transfer, redeemed 1500, has 4500 pending
	// WHEN: Checking tier and availability
	// THEN: No earned points, 3000 available

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "transfer-heavy")

	status := resolveNow(t, h, "emery")
	assert.Equal(t, generic.Points(0), status.CurrentCycleEarnedPoints)
	assert.Equal(t, rewards.TierBronze, status.ActiveTier)

	avail, err := h.Availability.Availability(context.Background(), "emery")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(7500), avail.TotalPoints)
	assert.Equal(t, generic.Points(4500), avail.PendingRedemptionsTotal)
	assert.Equal(t, generic.Points(3000), avail.Available())
}

func TestScenario_ExpiringSoon(t *testing.T) {
	// GIVEN: Finley carried gold into the current cycle, two weeks before it ends
	// WHEN: Resolving
	// THEN: Gold from the previous cycle, expiring in under the sweep window

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "expiring-soon")

	status := resolveNow(t, h, "finley")
	assert.Equal(t, rewards.TierGold, status.ActiveTier)
	assert.Equal(t, generic.TierSourcePrevious, status.TierSource)
	assert.Equal(t, generic.Points(500), status.CurrentCycleEarnedPoints)
	assert.LessOrEqual(t, status.ExpiryDate.Sub(h.Clock.Now()), h.Sweeper.ExpiryWindow)
}

func TestScenario_FullClub(t *testing.T) {
	// GIVEN: Every scenario member loaded early in the cycle
	// WHEN: Sweeping
	// THEN: All six members resolve and no carried tier is close to expiry

	h, _ := setupTestHandler(t)
	loadTestScenario(t, h, "full-club")

	members, err := h.Store.ListMembers(context.Background())
	require.NoError(t, err)
	assert.Len(t, members, 6)

	report, err := h.Sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Members)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Degraded)
	assert.Empty(t, report.Expiring)
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: All available scenarios
	// WHEN: Loading each through the API
	// THEN: None should error and each becomes the current scenario

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			_, router := setupTestHandler(t)

			rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, s.ID, decode[ScenarioDTO](t, rec).ID)
		})
	}

	_, router := setupTestHandler(t)
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))
}
