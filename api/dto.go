/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's Go types from the wire contract (tier keys and points stay
  plain strings and integers, decimals are rendered as strings).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Program:      ProgramDTO, TierDTO, BenefitDTO
  Member:       MemberDTO, CreateMemberRequest
  Tier:         TierStatusDTO, CycleEarningsDTO, ProgressDTO
  Availability: AvailabilityDTO, ValidateAmountRequest, ValidationResponse
  Ledger:       TransactionDTO, TransactionPageDTO, CreateTransactionRequest
  Redemptions:  RedemptionDTO, CreateRedemptionRequest, UpdateRedemptionStatusRequest
  Admin:        ClockDTO, SetClockRequest, SweepReportDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/program.go: Program file format
*/
package api

import (
	"time"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/rewards"
	"github.com/warp/club-loyalty/store/sqlite"
)

// =============================================================================
// PROGRAM
// =============================================================================

// ProgramDTO describes the configured program.
type ProgramDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AnchorMonth  int       `json:"anchor_month"`
	AnchorDay    int       `json:"anchor_day"`
	Timezone     string    `json:"timezone"`
	CurrentCycle CycleDTO  `json:"current_cycle"`
	Tiers        []TierDTO `json:"tiers"`
}

// CycleDTO is one cycle window.
type CycleDTO struct {
	CycleYear int    `json:"cycle_year"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// TierDTO is one tier with its perks.
type TierDTO struct {
	Key              string       `json:"key"`
	Name             string       `json:"name"`
	MinimumPoints    int64        `json:"minimum_points"`
	DiscountPercent  string       `json:"discount_percent"`
	PointsMultiplier string       `json:"points_multiplier"`
	Benefits         []BenefitDTO `json:"benefits"`
}

// BenefitDTO is one tier benefit.
type BenefitDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	JoinedAt  string `json:"joined_at"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateMemberRequest is the request body for creating a member.
type CreateMemberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JoinedAt string `json:"joined_at"` // YYYY-MM-DD
}

// =============================================================================
// TIER STATUS
// =============================================================================

// TierStatusDTO is a freshly resolved tier status.
type TierStatusDTO struct {
	MemberID       string           `json:"member_id"`
	AsOf           string           `json:"as_of"`
	ActiveTier     string           `json:"active_tier"`
	ActiveTierName string           `json:"active_tier_name"`
	TierSource     string           `json:"tier_source"`
	ExpiryDate     string           `json:"expiry_date"`
	CurrentCycle   CycleEarningsDTO `json:"current_cycle"`
	PreviousCycle  CycleEarningsDTO `json:"previous_cycle"`
	Progress       ProgressDTO      `json:"progress"`
	Benefits       []BenefitDTO     `json:"benefits"`
	Degraded       bool             `json:"degraded"`
}

// CycleEarningsDTO is one cycle's earned points and the tier they qualify for.
type CycleEarningsDTO struct {
	CycleYear    int    `json:"cycle_year"`
	EarnedPoints int64  `json:"earned_points"`
	Tier         string `json:"tier"`
	Degraded     bool   `json:"degraded"`
}

// ProgressDTO is progress toward the next tier.
type ProgressDTO struct {
	Tier       string `json:"tier"`
	NextTier   string `json:"next_tier,omitempty"`
	Points     int64  `json:"points"`
	Remaining  int64  `json:"remaining"`
	Percentage string `json:"percentage"`
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// AvailabilityDTO is a member's spendable points.
type AvailabilityDTO struct {
	MemberID                string `json:"member_id"`
	TotalPoints             int64  `json:"total_points"`
	PendingRedemptionsTotal int64  `json:"pending_redemptions_total"`
	Available               int64  `json:"available"`
	Spendable               int64  `json:"spendable"`
	BalanceDegraded         bool   `json:"balance_degraded"`
	PendingDegraded         bool   `json:"pending_degraded"`
}

// ValidateAmountRequest carries a proposed redemption or transfer amount.
type ValidateAmountRequest struct {
	Amount int64 `json:"amount"`
}

// ValidationResponse is the typed outcome of an amount check.
type ValidationResponse struct {
	Result       string          `json:"result"`
	OK           bool            `json:"ok"`
	Message      string          `json:"message"`
	Availability AvailabilityDTO `json:"availability"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID          string `json:"id"`
	MemberID    string `json:"member_id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	OccurredAt  string `json:"occurred_at"`
	Reason      string `json:"reason,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
	Earned      bool   `json:"earned"`
}

// TransactionPageDTO is one page of a member's ledger.
type TransactionPageDTO struct {
	Results    []TransactionDTO `json:"results"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// CreateTransactionRequest appends a ledger entry.
type CreateTransactionRequest struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	OccurredAt  string `json:"occurred_at"` // RFC3339 or YYYY-MM-DD
	Reason      string `json:"reason,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

// RedemptionDTO represents a redemption request.
type RedemptionDTO struct {
	ID          string `json:"id"`
	MemberID    string `json:"member_id"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CreateRedemptionRequest is the body for recording a redemption request.
type CreateRedemptionRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// UpdateRedemptionStatusRequest moves a request out of pending.
type UpdateRedemptionStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// ADMIN
// =============================================================================

// ClockDTO reports the server clock.
type ClockDTO struct {
	Now       string `json:"now"`
	Simulated bool   `json:"simulated"`
}

// SetClockRequest installs a simulated date or instant.
type SetClockRequest struct {
	Date string `json:"date"` // RFC3339 or YYYY-MM-DD
}

// SweepReportDTO is the last tier sweep.
type SweepReportDTO struct {
	RanAt    string        `json:"ran_at"`
	Members  int           `json:"members"`
	Degraded int           `json:"degraded"`
	Failed   int           `json:"failed"`
	Expiring []ExpiringDTO `json:"expiring"`
}

// ExpiringDTO is a carried-over tier about to lapse.
type ExpiringDTO struct {
	MemberID     string `json:"member_id"`
	Tier         string `json:"tier"`
	ExpiryDate   string `json:"expiry_date"`
	FallbackTo   string `json:"fallback_to"`
	PointsToKeep int64  `json:"points_to_keep"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SimulatedAt string `json:"simulated_at,omitempty"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatInstant(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func toMemberDTO(m sqlite.Member) MemberDTO {
	dto := MemberDTO{
		ID:       m.ID,
		Name:     m.Name,
		Email:    m.Email,
		JoinedAt: m.JoinedAt.Format(generic.DateLayout),
	}
	if !m.CreatedAt.IsZero() {
		dto.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toBenefitDTOs(bs []rewards.Benefit) []BenefitDTO {
	dtos := make([]BenefitDTO, len(bs))
	for i, b := range bs {
		dtos[i] = BenefitDTO{Name: b.Name, Description: b.Description}
	}
	return dtos
}

func toProgramDTO(p *generic.Program, now time.Time) ProgramDTO {
	w := p.Anchor.WindowFor(now)
	dto := ProgramDTO{
		ID:          p.ID,
		Name:        p.Name,
		AnchorMonth: int(p.Anchor.Month),
		AnchorDay:   p.Anchor.Day,
		Timezone:    "UTC",
		CurrentCycle: CycleDTO{
			CycleYear: w.CycleYear,
			Start:     formatInstant(w.Start),
			End:       formatInstant(w.End),
		},
	}
	if p.Anchor.Location != nil {
		dto.Timezone = p.Anchor.Location.String()
	}
	for _, th := range p.Table.Thresholds() {
		perks := rewards.PerksFor(th.Key)
		dto.Tiers = append(dto.Tiers, TierDTO{
			Key:              string(th.Key),
			Name:             th.Name,
			MinimumPoints:    int64(th.MinimumPoints),
			DiscountPercent:  perks.DiscountPercent.String(),
			PointsMultiplier: perks.PointsMultiplier.String(),
			Benefits:         toBenefitDTOs(perks.Benefits),
		})
	}
	return dto
}

func toTierStatusDTO(p *generic.Program, s generic.TierStatus) TierStatusDTO {
	name := string(s.ActiveTier)
	if th, ok := p.Table.Lookup(s.ActiveTier); ok {
		name = th.Name
	}
	return TierStatusDTO{
		MemberID:       string(s.MemberID),
		AsOf:           formatInstant(s.AsOf),
		ActiveTier:     string(s.ActiveTier),
		ActiveTierName: name,
		TierSource:     string(s.TierSource),
		ExpiryDate:     formatInstant(s.ExpiryDate),
		CurrentCycle: CycleEarningsDTO{
			CycleYear:    s.CurrentCycleYear,
			EarnedPoints: int64(s.CurrentCycleEarnedPoints),
			Tier:         string(s.CurrentTier),
			Degraded:     s.CurrentCycleDegraded,
		},
		PreviousCycle: CycleEarningsDTO{
			CycleYear:    s.PreviousCycleYear,
			EarnedPoints: int64(s.PreviousCycleEarnedPoints),
			Tier:         string(s.PreviousTier),
			Degraded:     s.PreviousCycleDegraded,
		},
		Progress: ProgressDTO{
			Tier:       string(s.Progress.Tier),
			NextTier:   string(s.Progress.NextTier),
			Points:     int64(s.Progress.Points),
			Remaining:  int64(s.Progress.Remaining),
			Percentage: s.Progress.Percentage.StringFixed(2),
		},
		Benefits: toBenefitDTOs(rewards.BenefitsFor(s.ActiveTier)),
		Degraded: s.Degraded(),
	}
}

func toAvailabilityDTO(a generic.PointsAvailability) AvailabilityDTO {
	return AvailabilityDTO{
		MemberID:                string(a.MemberID),
		TotalPoints:             int64(a.TotalPoints),
		PendingRedemptionsTotal: int64(a.PendingRedemptionsTotal),
		Available:               int64(a.Available()),
		Spendable:               int64(a.Spendable()),
		BalanceDegraded:         a.BalanceDegraded,
		PendingDegraded:         a.PendingDegraded,
	}
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		MemberID:    string(tx.MemberID),
		Type:        tx.Type.String(),
		Amount:      int64(tx.Amount),
		OccurredAt:  formatInstant(tx.OccurredAt),
		Reason:      tx.Reason,
		ReferenceID: tx.ReferenceID,
		Earned:      generic.IsEarnedTransaction(tx),
	}
}

func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toRedemptionDTO(r generic.RedemptionRequest) RedemptionDTO {
	return RedemptionDTO{
		ID:          r.ID,
		MemberID:    string(r.MemberID),
		Amount:      int64(r.Amount),
		Status:      string(r.Status),
		Description: r.Description,
		CreatedAt:   formatInstant(r.CreatedAt),
	}
}

func toSweepReportDTO(r SweepReport) SweepReportDTO {
	dto := SweepReportDTO{
		Members:  r.Members,
		Degraded: r.Degraded,
		Failed:   r.Failed,
		Expiring: make([]ExpiringDTO, 0, len(r.Expiring)),
	}
	if !r.RanAt.IsZero() {
		dto.RanAt = formatInstant(r.RanAt)
	}
	for _, e := range r.Expiring {
		dto.Expiring = append(dto.Expiring, ExpiringDTO{
			MemberID:     string(e.MemberID),
			Tier:         string(e.Tier),
			ExpiryDate:   formatInstant(e.ExpiryDate),
			FallbackTo:   string(e.FallbackTo),
			PointsToKeep: int64(e.PointsToKeep),
		})
	}
	return dto
}
