/*
balance.go - Points availability and amount validation

PURPOSE:
  Answers "how many points can this member spend right now?" and gates
  proposed redemption/transfer amounts against that figure.

AVAILABILITY CALCULATION:
  Available = TotalPoints - PendingRedemptionsTotal

  Available may be zero or negative (pending requests can exceed a balance
  that later dropped). Validation uses the raw value; displays use
  Spendable() = max(0, Available).

VALIDATION:
  ValidateAmount(proposed, available):
    proposed <= 0         -> RejectedNonPositive
    proposed > available  -> RejectedExceedsAvailable
    otherwise             -> ValidationOK

  Recipient checks, self-transfers and the like belong to the submission
  flow, not here.

RACE WINDOW:
  This is an optimistic, client-side gate. CheckAmount re-fetches balance
  and pending total immediately before validating to keep the window small;
  the authoritative check happens server-side at commit time
  (sqlite.Store.CreateRedemptionIfAvailable).

SEE ALSO:
  - store.go: BalanceProvider, PendingRedemptionProvider
  - store/sqlite/sqlite.go: Commit-time gate for redemption requests
  - errors.go: InsufficientPointsError
*/
package generic

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// POINTS AVAILABILITY
// =============================================================================

// PointsAvailability is a computed view of a member's spendable points.
type PointsAvailability struct {
	MemberID                MemberID
	TotalPoints             Points
	PendingRedemptionsTotal Points

	BalanceDegraded bool // balance fetch failed, TotalPoints treated as 0
	PendingDegraded bool // pending fetch failed, PendingRedemptionsTotal treated as 0
}

// Available returns TotalPoints - PendingRedemptionsTotal, unclamped.
func (a PointsAvailability) Available() Points {
	return Available(a.TotalPoints, a.PendingRedemptionsTotal)
}

// Spendable is Available clamped at zero, for display.
func (a PointsAvailability) Spendable() Points {
	return a.Available().Max(0)
}

// Degraded reports whether either input is a fail-soft default.
func (a PointsAvailability) Degraded() bool {
	return a.BalanceDegraded || a.PendingDegraded
}

// Validate checks proposed against this availability.
func (a PointsAvailability) Validate(proposed Points) ValidationResult {
	return ValidateAmount(proposed, a.Available())
}

// Available is total minus pending. It may be negative.
func Available(totalPoints, pendingTotal Points) Points {
	return totalPoints - pendingTotal
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult is the typed outcome of ValidateAmount. Rejections are
// expected outcomes, not errors.
type ValidationResult int

const (
	ValidationOK ValidationResult = iota
	RejectedNonPositive
	RejectedExceedsAvailable
)

func (v ValidationResult) String() string {
	switch v {
	case ValidationOK:
		return "ok"
	case RejectedNonPositive:
		return "rejected_non_positive"
	case RejectedExceedsAvailable:
		return "rejected_exceeds_available"
	default:
		return "unknown"
	}
}

// OK reports whether the amount may be submitted.
func (v ValidationResult) OK() bool { return v == ValidationOK }

// Message is the user-facing text for the outcome.
func (v ValidationResult) Message() string {
	switch v {
	case ValidationOK:
		return "amount is available"
	case RejectedNonPositive:
		return "amount must be greater than zero"
	case RejectedExceedsAvailable:
		return "amount exceeds available points"
	default:
		return "unknown validation result"
	}
}

// Err converts a rejection into an error for callers that want one.
// ValidationOK returns nil.
func (v ValidationResult) Err(proposed, available Points) error {
	switch v {
	case RejectedNonPositive:
		return ErrNonPositiveAmount
	case RejectedExceedsAvailable:
		return &InsufficientPointsError{Available: available, Requested: proposed}
	default:
		return nil
	}
}

// ValidateAmount gates a proposed redemption or transfer amount.
func ValidateAmount(proposed, available Points) ValidationResult {
	if proposed <= 0 {
		return RejectedNonPositive
	}
	if proposed > available {
		return RejectedExceedsAvailable
	}
	return ValidationOK
}

// =============================================================================
// AVAILABILITY CALCULATOR - Fetches inputs, never fails on provider errors
// =============================================================================

// AvailabilityCalculator combines a balance provider and a pending-redemption
// provider.
type AvailabilityCalculator struct {
	Balances BalanceProvider
	Pending  PendingRedemptionProvider
	Logger   *zap.Logger
}

// NewAvailabilityCalculator creates a calculator. A nil logger discards output.
func NewAvailabilityCalculator(balances BalanceProvider, pending PendingRedemptionProvider, logger *zap.Logger) *AvailabilityCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityCalculator{Balances: balances, Pending: pending, Logger: logger}
}

// Availability fetches the balance and pending total concurrently.
// Provider failures degrade to 0; only cancellation returns an error.
func (c *AvailabilityCalculator) Availability(ctx context.Context, memberID MemberID) (PointsAvailability, error) {
	out := PointsAvailability{MemberID: memberID}
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := c.Balances.FetchBalance(gctx, memberID)
		if err != nil {
			if ab := abandoned("fetch balance", err); ab != nil {
				return ab
			}
			log.Warn("balance fetch failed, treating balance as 0",
				zap.String("member_id", string(memberID)), zap.Error(err))
			out.BalanceDegraded = true
			return nil
		}
		out.TotalPoints = total
		return nil
	})
	g.Go(func() error {
		pending, err := c.Pending.FetchPendingRedemptionsTotal(gctx, memberID)
		if err != nil {
			if ab := abandoned("fetch pending redemptions", err); ab != nil {
				return ab
			}
			log.Warn("pending redemptions fetch failed, treating pending total as 0",
				zap.String("member_id", string(memberID)), zap.Error(err))
			out.PendingDegraded = true
			return nil
		}
		out.PendingRedemptionsTotal = pending
		return nil
	})
	if err := g.Wait(); err != nil {
		return PointsAvailability{}, err
	}
	if err := ctx.Err(); err != nil {
		return PointsAvailability{}, abandoned("availability", err)
	}
	return out, nil
}

// CheckAmount re-fetches availability and validates proposed against it.
func (c *AvailabilityCalculator) CheckAmount(ctx context.Context, memberID MemberID, proposed Points) (ValidationResult, PointsAvailability, error) {
	avail, err := c.Availability(ctx, memberID)
	if err != nil {
		return ValidationOK, PointsAvailability{}, err
	}
	return avail.Validate(proposed), avail, nil
}
