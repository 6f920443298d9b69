/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	ledgers and pin the simulated clock, so each carryover rule can be seen
	through the tier endpoint without waiting a year.

AVAILABLE SCENARIOS:

	carryover:       Qualified last cycle, quiet this cycle -> previous tier kept
	base-tier:       Small earner both cycles -> base tier, never carried
	promotion:       Earned more this cycle -> current tier wins, later expiry
	future-dated:    Credit dated after "now" is ignored until it happens
	transfer-heavy:  Large transfers and pending redemptions, no earned points
	expiring-soon:   Carried tier two weeks before cycle end (tier sweep)
	full-club:       All of the above members at once

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Set the simulated clock to the scenario's "now"
 3. Create members
 4. Append ledger entries (events, purchases, transfers, redemptions)
 5. Optionally record pending redemption requests

	Dates are placed relative to the configured program anchor and amounts
	relative to its tier thresholds, so scenarios stay meaningful for custom
	programs.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "carryover"}

NOTE:

	Scenarios reset the database and set the simulated clock. Only use in
	development/demo environments. DELETE /api/admin/clock restores real time.

SEE ALSO:
  - handlers.go: Tier and availability handlers
  - rewards/earning.go: Transaction builders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/rewards"
	"github.com/warp/club-loyalty/store/sqlite"
)

// demoCycle is the cycle every scenario's "now" falls in.
const demoCycle = 2026

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO

	// now returns the simulated instant relative to the program anchor.
	now  func(a generic.CycleAnchor) time.Time
	load func(ctx context.Context, d *demoBuilder) error
}

func earlyInCycle(a generic.CycleAnchor) time.Time {
	return a.CycleStart(demoCycle).AddDate(0, 1, 14)
}

func nearCycleEnd(a generic.CycleAnchor) time.Time {
	return a.CycleStart(demoCycle + 1).AddDate(0, 0, -14)
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "carryover",
			Name:        "Carryover",
			Description: "Qualified for the second tier last cycle, barely active this cycle: the previous tier stays active until this cycle ends",
		},
		now:  earlyInCycle,
		load: loadCarryover,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "base-tier",
			Name:        "Base Tier",
			Description: "Below every threshold in both cycles: the base tier is never carried over",
		},
		now:  earlyInCycle,
		load: loadBaseTier,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "promotion",
			Name:        "Promotion",
			Description: "Out-earned last cycle's tier already: the current-cycle tier wins and expires a cycle later",
		},
		now:  earlyInCycle,
		load: loadPromotion,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "future-dated",
			Name:        "Future-Dated Credit",
			Description: "A credit posted for a future event does not count until its date passes",
		},
		now:  earlyInCycle,
		load: loadFutureDated,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "transfer-heavy",
			Name:        "Transfer Heavy",
			Description: "Large balance from transfers with pending redemptions: spendable points, but no tier progress",
		},
		now:  earlyInCycle,
		load: loadTransferHeavy,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "expiring-soon",
			Name:        "Expiring Soon",
			Description: "Carried-over tier two weeks before the cycle ends; run the tier sweep to see it",
		},
		now:  nearCycleEnd,
		load: loadExpiringSoon,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "full-club",
			Name:        "Full Club",
			Description: "Every scenario member at once, early in the cycle",
		},
		now:  earlyInCycle,
		load: func(ctx context.Context, d *demoBuilder) error {
			for _, load := range []func(context.Context, *demoBuilder) error{
				loadCarryover, loadBaseTier, loadPromotion, loadFutureDated, loadTransferHeavy, loadExpiringSoon,
			} {
				if err := load(ctx, d); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
		dtos[i].SimulatedAt = formatInstant(s.now(h.Program.Anchor))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	dto := s.ScenarioDTO
	dto.SimulatedAt = formatInstant(s.now(h.Program.Anchor))
	writeJSON(w, http.StatusOK, dto)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "loaded",
		"scenario":     s.ID,
		"simulated_at": formatInstant(h.Clock.Now()),
	})
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	now := s.now(h.Program.Anchor)
	h.Clock.Set(now)

	d := &demoBuilder{store: h.Store, program: h.Program, now: now}
	if err := s.load(ctx, d); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Time("simulated_at", now))
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// demoBuilder places entries relative to the program's anchor and thresholds.
type demoBuilder struct {
	store   *sqlite.Store
	program *generic.Program
	now     time.Time
}

func (d *demoBuilder) current(months, days int) time.Time {
	return d.program.Anchor.CycleStart(demoCycle).AddDate(0, months, days).Add(18 * time.Hour)
}

func (d *demoBuilder) previous(months, days int) time.Time {
	return d.program.Anchor.CycleStart(demoCycle-1).AddDate(0, months, days).Add(18 * time.Hour)
}

// threshold returns the minimum of tier i, clamped to the top tier.
func (d *demoBuilder) threshold(i int) generic.Points {
	ths := d.program.Table.Thresholds()
	if i >= len(ths) {
		i = len(ths) - 1
	}
	return ths[i].MinimumPoints
}

func (d *demoBuilder) member(ctx context.Context, id, name string, joined time.Time, txs ...generic.Transaction) error {
	err := d.store.SaveMember(ctx, sqlite.Member{
		ID:       id,
		Name:     name,
		Email:    id + "@club.example.edu",
		JoinedAt: joined,
	})
	if err != nil {
		return fmt.Errorf("member %s: %w", id, err)
	}
	if len(txs) == 0 {
		return nil
	}
	if err := d.store.AppendBatch(ctx, txs); err != nil {
		return fmt.Errorf("ledger %s: %w", id, err)
	}
	return nil
}

// credit splits points into event credits so ledgers span several entries.
func (d *demoBuilder) credit(memberID generic.MemberID, points generic.Points, first time.Time, label string) []generic.Transaction {
	const chunks = 4
	var out []generic.Transaction
	remaining := points
	for i := 0; i < chunks && remaining > 0; i++ {
		amt := points / chunks
		if i == chunks-1 || amt == 0 {
			amt = remaining
		}
		remaining -= amt
		at := first.AddDate(0, 0, 7*i)
		out = append(out, generic.Transaction{
			ID:          generic.TransactionID(fmt.Sprintf("tx-%s-%s-%d", memberID, label, i)),
			MemberID:    memberID,
			Type:        generic.TxEvent,
			Amount:      amt,
			OccurredAt:  at,
			Reason:      fmt.Sprintf("Club event (%s)", label),
			ReferenceID: label,
		})
	}
	return out
}

func loadCarryover(ctx context.Context, d *demoBuilder) error {
	id := generic.MemberID("avery")
	txs := d.credit(id, d.threshold(1)+200, d.previous(1, 0), "prev")
	txs = append(txs,
		rewards.AttendanceTransaction(id, rewards.EventWelcomeSocial, d.current(0, 3)),
		rewards.PurchaseTransaction(id, "avery-hoodie", decimal.RequireFromString("45.50"), rewards.TierSilver, d.current(0, 10)),
	)
	return d.member(ctx, string(id), "Avery Park", d.previous(0, 0), txs...)
}

func loadBaseTier(ctx context.Context, d *demoBuilder) error {
	id := generic.MemberID("blake")
	txs := d.credit(id, d.threshold(1)/3, d.previous(2, 0), "prev")
	txs = append(txs, rewards.AttendanceTransaction(id, rewards.EventWelcomeSocial, d.current(0, 3)))
	return d.member(ctx, string(id), "Blake Osei", d.previous(1, 0), txs...)
}

func loadPromotion(ctx context.Context, d *demoBuilder) error {
	id := generic.MemberID("casey")
	txs := d.credit(id, d.threshold(2)+500, d.previous(1, 0), "prev")
	txs = append(txs, d.credit(id, d.threshold(3)+1000, d.current(0, 2), "cur")...)
	return d.member(ctx, string(id), "Casey Lindqvist", d.previous(0, 0), txs...)
}

func loadFutureDated(ctx context.Context, d *demoBuilder) error {
	id := generic.MemberID("dana")
	txs := d.credit(id, d.threshold(1)-100, d.current(0, 1), "cur")
	// Posted early for next month's gala; it qualifies Dana only once it happens.
	txs = append(txs, rewards.AttendanceTransaction(id, rewards.EventGala, d.now.AddDate(0, 1, 0)))
	return d.member(ctx, string(id), "Dana Reyes", d.current(0, 0), txs...)
}

func loadTransferHeavy(ctx context.Context, d *demoBuilder) error {
	id := generic.MemberID("emery")
	big := d.threshold(2) + 1000
	_, in1 := rewards.TransferTransactions("emery-gift-1", "club-treasury", id, big, d.current(0, 5))
	_, in2 := rewards.TransferTransactions("emery-gift-2", "club-treasury", id, big/2, d.current(0, 12))
	redeemed := generic.Transaction{
		ID:         "tx-emery-redeem-1",
		MemberID:   id,
		Type:       generic.TxRedemption,
		Amount:     -big / 4,
		OccurredAt: d.current(0, 20),
		Reason:     "Conference ticket",
	}
	if err := d.member(ctx, string(id), "Emery Kowalski", d.previous(6, 0), in1, in2, redeemed); err != nil {
		return err
	}
	for i, amt := range []generic.Points{big / 2, big / 4} {
		err := d.store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{
			ID:          fmt.Sprintf("red-emery-%d", i+1),
			MemberID:    id,
			Amount:      amt,
			Status:      generic.RedemptionPending,
			Description: "Merch order",
			CreatedAt:   d.current(0, 25+i),
		})
		if err != nil {
			return fmt.Errorf("redemption for %s: %w", id, err)
		}
	}
	return nil
}

func loadExpiringSoon(ctx context.Context, d *demoBuilder) error {
	id := generic.MemberID("finley")
	txs := d.credit(id, d.threshold(2)+250, d.previous(2, 0), "prev")
	txs = append(txs, d.credit(id, d.threshold(1)/2, d.current(3, 0), "cur")...)
	return d.member(ctx, string(id), "Finley Adeyemi", d.previous(0, 0), txs...)
}
