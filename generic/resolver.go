/*
resolver.go - Active tier resolution with two-cycle carryover

PURPOSE:
  Works out which tier a member holds right now. Nothing is stored: every
  call re-derives the status from the ledger snapshot and asOf.

CARRYOVER RULE:
  A tier earned in cycle X stays active through the end of cycle X+1, unless
  it is the base tier. So for asOf in cycle C:

    previousExpiry = CycleEnd(C)

    | asOf <= previousExpiry | previousTier != base | prev >= current | winner   | expiry            |
    |------------------------|----------------------|-----------------|----------|-------------------|
    | yes                    | yes                  | yes             | previous | CycleEnd(C)       |
    | any other combination                                           | current  | CycleEnd(C+1)     |

  The base tier never carries over, so a member who only reached base last
  cycle is always judged on this cycle.

  asOf <= previousExpiry always holds when asOf is inside cycle C; the check
  stays in the table so the rule reads the same as the policy text.

PROGRESS:
  Progress toward the next tier is always computed from current-cycle points,
  never from the carried-over total.

FAILURE SEMANTICS:
  A degraded cycle counts as 0 points and the status is still returned, with
  the Degraded flags set. Only cancellation returns an error.

SEE ALSO:
  - aggregate.go: Cycle earnings
  - tier.go: Threshold table
  - period.go: Cycle calendar
*/
package generic

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TierSource says which cycle's earnings decided the active tier.
type TierSource string

const (
	TierSourceCurrent  TierSource = "current"
	TierSourcePrevious TierSource = "previous"
)

// TierStatus is a freshly computed tier status. It is never persisted and
// does not invalidate itself: re-resolve after ExpiryDate or when new
// transactions post.
type TierStatus struct {
	MemberID   MemberID
	AsOf       time.Time
	ActiveTier TierKey
	TierSource TierSource
	ExpiryDate time.Time

	CurrentCycleYear          int
	PreviousCycleYear         int
	CurrentCycleEarnedPoints  Points
	PreviousCycleEarnedPoints Points
	CurrentTier               TierKey
	PreviousTier              TierKey

	// Progress toward the next tier, from current-cycle points.
	Progress TierProgress

	CurrentCycleDegraded  bool
	PreviousCycleDegraded bool
}

// Degraded reports whether either cycle total is a fail-soft zero.
func (s TierStatus) Degraded() bool {
	return s.CurrentCycleDegraded || s.PreviousCycleDegraded
}

// =============================================================================
// TIER RESOLVER
// =============================================================================

// TierResolver resolves active tiers. Safe for concurrent use: it holds only
// immutable configuration.
type TierResolver struct {
	Aggregator *CycleAggregator
	Table      *TierTable
	Anchor     CycleAnchor
	Clock      Clock
	Logger     *zap.Logger
}

// NewTierResolver wires a resolver over a ledger provider.
func NewTierResolver(ledger LedgerProvider, anchor CycleAnchor, table *TierTable, clock Clock, logger *zap.Logger) *TierResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TierResolver{
		Aggregator: NewCycleAggregator(ledger, anchor, logger),
		Table:      table,
		Anchor:     anchor,
		Clock:      clock,
		Logger:     logger,
	}
}

// Resolve resolves the member's tier at the clock's current instant.
func (r *TierResolver) Resolve(ctx context.Context, memberID MemberID) (TierStatus, error) {
	return r.ResolveActiveTier(ctx, memberID, r.Clock.Now())
}

// ResolveActiveTier resolves the member's tier as of asOf.
func (r *TierResolver) ResolveActiveTier(ctx context.Context, memberID MemberID, asOf time.Time) (TierStatus, error) {
	currentYear := r.Anchor.CycleYearFor(asOf)
	previousYear := currentYear - 1

	var current, previous CycleEarnings
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = r.Aggregator.EarnedPointsInCycle(gctx, memberID, currentYear, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = r.Aggregator.EarnedPointsInCycle(gctx, memberID, previousYear, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		return TierStatus{}, err
	}

	currentTier := r.Table.TierForPoints(current.Points)
	previousTier := r.Table.TierForPoints(previous.Points)

	d := r.decide(carryoverInput{
		asOf:           asOf,
		previousExpiry: r.Anchor.CycleEnd(currentYear),
		currentTier:    currentTier,
		previousTier:   previousTier,
	})

	status := TierStatus{
		MemberID:                  memberID,
		AsOf:                      asOf,
		TierSource:                d.source,
		CurrentCycleYear:          currentYear,
		PreviousCycleYear:         previousYear,
		CurrentCycleEarnedPoints:  current.Points,
		PreviousCycleEarnedPoints: previous.Points,
		CurrentTier:               currentTier,
		PreviousTier:              previousTier,
		Progress:                  r.Table.Progress(current.Points),
		CurrentCycleDegraded:      current.Degraded,
		PreviousCycleDegraded:     previous.Degraded,
	}
	if d.source == TierSourcePrevious {
		status.ActiveTier = previousTier
		status.ExpiryDate = r.Anchor.CycleEnd(currentYear)
	} else {
		status.ActiveTier = currentTier
		status.ExpiryDate = r.Anchor.CycleEnd(currentYear + 1)
	}

	if status.Degraded() {
		r.Logger.Warn("tier status resolved from degraded cycle totals",
			zap.String("member_id", string(memberID)),
			zap.Bool("current_degraded", current.Degraded),
			zap.Bool("previous_degraded", previous.Degraded),
		)
	}
	r.Logger.Debug("tier resolved",
		zap.String("member_id", string(memberID)),
		zap.Time("as_of", asOf),
		zap.String("active_tier", string(status.ActiveTier)),
		zap.String("source", string(status.TierSource)),
		zap.String("rule", d.reason),
	)
	return status, nil
}

// =============================================================================
// CARRYOVER DECISION TABLE
// =============================================================================

type carryoverInput struct {
	asOf           time.Time
	previousExpiry time.Time
	currentTier    TierKey
	previousTier   TierKey
}

type carryoverDecision struct {
	source TierSource
	reason string
}

// carryoverRule is one row of the decision table. All conditions must hold
// for the row to apply; rows are tried in order.
type carryoverRule struct {
	name       string
	conditions []func(r *TierResolver, in carryoverInput) bool
	source     TierSource
}

var carryoverRules = []carryoverRule{
	{
		name: "previous cycle tier carried over",
		conditions: []func(r *TierResolver, in carryoverInput) bool{
			withinCarryoverWindow,
			previousAboveBase,
			previousAtLeastCurrent,
		},
		source: TierSourcePrevious,
	},
	{
		name:   "current cycle tier",
		source: TierSourceCurrent,
	},
}

func withinCarryoverWindow(_ *TierResolver, in carryoverInput) bool {
	return !in.asOf.After(in.previousExpiry)
}

func previousAboveBase(r *TierResolver, in carryoverInput) bool {
	return in.previousTier != r.Table.Base().Key
}

func previousAtLeastCurrent(r *TierResolver, in carryoverInput) bool {
	return r.Table.Order(in.previousTier) >= r.Table.Order(in.currentTier)
}

func (r *TierResolver) decide(in carryoverInput) carryoverDecision {
	for _, rule := range carryoverRules {
		matched := true
		for _, cond := range rule.conditions {
			if !cond(r, in) {
				matched = false
				break
			}
		}
		if matched {
			return carryoverDecision{source: rule.source, reason: rule.name}
		}
	}
	return carryoverDecision{source: TierSourceCurrent, reason: "fallback"}
}
