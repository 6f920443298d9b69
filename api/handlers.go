/*
handlers.go - HTTP API handlers for the club loyalty engine

PURPOSE:
  Exposes tier resolution and points availability via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the generic
  engine. Nothing here computes tiers or balances itself.

ENDPOINTS:
  Program:
    GET    /api/program                               Anchor, tiers, perks

  Members:
    GET    /api/members                               List members
    POST   /api/members                               Create member
    GET    /api/members/{id}                          Member details
    GET    /api/members/{id}/tier?as_of=              Active tier status
    GET    /api/members/{id}/availability             Spendable points

  Amount checks (200 with a typed result, even for rejections):
    POST   /api/members/{id}/redemptions/validate
    POST   /api/members/{id}/transfers/validate

  Ledger:
    GET    /api/members/{id}/transactions?page=&page_size=
    POST   /api/members/{id}/transactions             Append entry (operator)

  Redemptions:
    GET    /api/members/{id}/redemptions
    POST   /api/members/{id}/redemptions              Record pending request
    POST   /api/redemptions/{id}/status               processed|rejected|cancelled

  Admin:
    GET|PUT|DELETE /api/admin/clock                   Simulated date
    GET|POST       /api/admin/tier-sweep              Expiring-tier report

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Member or redemption not found
  - 409: Duplicate transaction ID
  - 422: Redemption rejected by the availability gate
  - 503: Computation abandoned (client went away / timeout)
  - 500: Internal errors

  Provider failures never surface as errors: the engine degrades to 0 and
  the DTO carries a degraded flag.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/store/sqlite"
)

// maxPageSize caps page_size on ledger listings.
const maxPageSize = 500

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Program      *generic.Program
	Clock        *generic.OverrideClock
	Logger       *zap.Logger
	Resolver     *generic.TierResolver
	Availability *generic.AvailabilityCalculator
	Sweeper      *TierSweepScheduler

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the engine over store for program. The clock is shared
// with the resolver so admin overrides apply to every resolution.
func NewHandler(store *sqlite.Store, program *generic.Program, clock *generic.OverrideClock, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = generic.NewOverrideClock(nil)
	}
	resolver := program.NewResolver(store, clock, logger)
	return &Handler{
		Store:        store,
		Program:      program,
		Clock:        clock,
		Logger:       logger,
		Resolver:     resolver,
		Availability: generic.NewAvailabilityCalculator(store, store, logger),
		Sweeper:      NewTierSweepScheduler(store, resolver, clock, logger),
	}
}

// =============================================================================
// PROGRAM
// =============================================================================

// GetProgram returns the program configuration with tier perks.
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toProgramDTO(h.Program, h.Clock.Now()))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookupMember(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// CreateMember creates a new member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	joinedAt := h.Clock.Now()
	if req.JoinedAt != "" {
		var err error
		joinedAt, err = generic.ParseDate(req.JoinedAt, h.Program.Anchor.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid joined_at format (use YYYY-MM-DD)", err)
			return
		}
	}

	m := sqlite.Member{
		ID:       req.ID,
		Name:     req.Name,
		Email:    req.Email,
		JoinedAt: joinedAt,
	}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create member", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// lookupMember loads the {id} member, writing 404/500 itself on failure.
func (h *Handler) lookupMember(w http.ResponseWriter, r *http.Request) (*sqlite.Member, bool) {
	m, err := h.Store.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if generic.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Member not found", nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		}
		return nil, false
	}
	return m, true
}

// =============================================================================
// TIER HANDLERS
// =============================================================================

// GetTierStatus resolves the member's active tier. as_of accepts RFC3339 or
// YYYY-MM-DD (end of that day); default is the server clock.
func (h *Handler) GetTierStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookupMember(w, r)
	if !ok {
		return
	}

	asOf := h.Clock.Now()
	if s := r.URL.Query().Get("as_of"); s != "" {
		t, dateOnly, err := parseInstant(s, h.Program.Anchor.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of (use RFC3339 or YYYY-MM-DD)", err)
			return
		}
		if dateOnly {
			t = generic.EndOfDay(t)
		}
		asOf = t
	}

	status, err := h.Resolver.ResolveActiveTier(r.Context(), generic.MemberID(m.ID), asOf)
	if err != nil {
		h.writeEngineError(w, "Failed to resolve tier", err)
		return
	}

	writeJSON(w, http.StatusOK, toTierStatusDTO(h.Program, status))
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

// GetAvailability returns total, pending and available points.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookupMember(w, r)
	if !ok {
		return
	}

	avail, err := h.Availability.Availability(r.Context(), generic.MemberID(m.ID))
	if err != nil {
		h.writeEngineError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityDTO(avail))
}

// ValidateRedemption checks a proposed redemption amount.
func (h *Handler) ValidateRedemption(w http.ResponseWriter, r *http.Request) {
	h.validateAmount(w, r, "redemption")
}

// ValidateTransfer checks a proposed transfer amount. Recipient checks
// belong to the transfer flow, not here.
func (h *Handler) ValidateTransfer(w http.ResponseWriter, r *http.Request) {
	h.validateAmount(w, r, "transfer")
}

func (h *Handler) validateAmount(w http.ResponseWriter, r *http.Request, kind string) {
	m, ok := h.lookupMember(w, r)
	if !ok {
		return
	}

	var req ValidateAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, avail, err := h.Availability.CheckAmount(r.Context(), generic.MemberID(m.ID), generic.Points(req.Amount))
	if err != nil {
		h.writeEngineError(w, "Failed to validate "+kind, err)
		return
	}

	h.Logger.Debug("amount validated",
		zap.String("kind", kind),
		zap.String("member_id", m.ID),
		zap.Int64("amount", req.Amount),
		zap.Stringer("result", result),
	)
	writeJSON(w, http.StatusOK, ValidationResponse{
		Result:       result.String(),
		OK:           result.OK(),
		Message:      result.Message(),
		Availability: toAvailabilityDTO(avail),
	})
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetTransactions returns one page of the member's ledger.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	memberID := generic.MemberID(chi.URLParam(r, "id"))

	page, err := intParam(r, "page", 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer", err)
		return
	}
	pageSize, err := intParam(r, "page_size", generic.DefaultPageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("page_size must be between 1 and %d", maxPageSize), err)
		return
	}

	res, err := h.Store.FetchTransactions(r.Context(), memberID, page, pageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, TransactionPageDTO{
		Results:    toTransactionDTOs(res.Results),
		TotalCount: res.TotalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// CreateTransaction appends a ledger entry for the member.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookupMember(w, r)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	txType, known := generic.ParseTransactionType(req.Type)
	if !known {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown transaction type %q", req.Type), nil)
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be non-zero", nil)
		return
	}

	occurredAt := h.Clock.Now()
	if req.OccurredAt != "" {
		t, _, err := parseInstant(req.OccurredAt, h.Program.Anchor.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid occurred_at (use RFC3339 or YYYY-MM-DD)", err)
			return
		}
		occurredAt = t
	}

	tx := generic.Transaction{
		ID:          generic.TransactionID(req.ID),
		MemberID:    generic.MemberID(m.ID),
		Type:        txType,
		Amount:      generic.Points(req.Amount),
		OccurredAt:  occurredAt,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
	}
	if tx.ID == "" {
		tx.ID = generic.TransactionID(fmt.Sprintf("tx-%s-%d", txType, time.Now().UnixNano()))
	}

	if err := h.Store.Append(r.Context(), tx); err != nil {
		if errors.Is(err, generic.ErrDuplicateTransaction) {
			writeError(w, http.StatusConflict, "Transaction ID already exists", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to append transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// ListRedemptions returns the member's redemption requests.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.RedemptionRequests(r.Context(), generic.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list redemptions", err)
		return
	}
	dtos := make([]RedemptionDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRedemptionDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRedemption records a pending redemption after the availability gate.
// The gate and the insert commit together, so concurrent requests cannot all
// spend the same points.
func (h *Handler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	m, ok := h.lookupMember(w, r)
	if !ok {
		return
	}

	var req CreateRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	redemption := generic.RedemptionRequest{
		MemberID:    generic.MemberID(m.ID),
		Amount:      generic.Points(req.Amount),
		Description: req.Description,
		CreatedAt:   h.Clock.Now(),
	}
	avail, result, err := h.Store.CreateRedemptionIfAvailable(r.Context(), &redemption)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = &generic.AbandonedError{Op: "create redemption", Cause: err}
		}
		h.writeEngineError(w, "Failed to record redemption", err)
		return
	}
	if !result.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   result.Message(),
			Code:    result.String(),
			Details: toAvailabilityDTO(avail),
		})
		return
	}

	writeJSON(w, http.StatusCreated, toRedemptionDTO(redemption))
}

// UpdateRedemptionStatus moves a request to processed, rejected or cancelled.
func (h *Handler) UpdateRedemptionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRedemptionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := generic.RedemptionStatus(strings.ToLower(req.Status))
	switch status {
	case generic.RedemptionProcessed, generic.RedemptionRejected, generic.RedemptionCancelled:
	default:
		writeError(w, http.StatusBadRequest, "status must be processed, rejected or cancelled", nil)
		return
	}

	if err := h.Store.SetRedemptionStatus(r.Context(), id, status); err != nil {
		if generic.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Redemption not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update redemption", err)
		return
	}

	updated, err := h.Store.GetRedemptionRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(*updated))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetClock reports the server clock and whether it is simulated.
func (h *Handler) GetClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.clockDTO())
}

// SetClock installs a simulated date. A date-only value means midnight of
// that day in the program's timezone.
func (h *Handler) SetClock(w http.ResponseWriter, r *http.Request) {
	var req SetClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	t, _, err := parseInstant(req.Date, h.Program.Anchor.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use RFC3339 or YYYY-MM-DD)", err)
		return
	}

	h.Clock.Set(t)
	h.Logger.Info("simulated clock set", zap.Time("now", t))
	writeJSON(w, http.StatusOK, h.clockDTO())
}

// ClearClock restores the real clock.
func (h *Handler) ClearClock(w http.ResponseWriter, r *http.Request) {
	h.Clock.Clear()
	h.Logger.Info("simulated clock cleared")
	writeJSON(w, http.StatusOK, h.clockDTO())
}

func (h *Handler) clockDTO() ClockDTO {
	_, simulated := h.Clock.Override()
	return ClockDTO{Now: formatInstant(h.Clock.Now()), Simulated: simulated}
}

// GetTierSweep returns the last sweep report.
func (h *Handler) GetTierSweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSweepReportDTO(h.Sweeper.LastReport()))
}

// RunTierSweep runs a sweep now.
func (h *Handler) RunTierSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		h.writeEngineError(w, "Tier sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepReportDTO(report))
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
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

// writeEngineError maps an engine error to a status. Only abandonment and
// infrastructure failures reach here; provider hiccups are degraded results.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsAbandoned(err):
		writeError(w, http.StatusServiceUnavailable, "Computation abandoned", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// parseInstant accepts RFC3339 or YYYY-MM-DD (midnight in loc). dateOnly
// reports which form matched.
func parseInstant(s string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err = time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	t, err = generic.ParseDate(s, loc)
	return t, true, err
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
