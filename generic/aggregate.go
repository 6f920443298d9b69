/*
aggregate.go - Earned points per earning cycle

PURPOSE:
  Answers "how many points did this member earn in cycle Y, as of instant T?"
  by walking the whole ledger, keeping only earning movements that fall
  inside the cycle window and not after asOf, and summing them.

FILTER:
  count tx iff
    IsWithinCycle(tx.OccurredAt, Y)    - inside the cycle window
    AND tx.OccurredAt <= asOf          - not in the future of the effective clock
    AND IsEarnedTransaction(tx)        - see classify.go

  The asOf guard matters when the clock is simulated: future-dated ledger
  entries must not leak into "already earned" totals.

FAILURE MODES:
  Provider failure:  Points = 0, Degraded = true, Err = cause, logged at Warn.
                     The returned error is nil; tier computation proceeds.
  Cancellation:      Returned error is an *AbandonedError. Callers must not
                     render it as "0 points earned".

SEE ALSO:
  - ledger.go: TransactionIterator
  - resolver.go: Calls this for the current and previous cycle
*/
package generic

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CycleEarnings is the outcome of one cycle aggregation.
type CycleEarnings struct {
	Window  CycleWindow
	Points  Points
	Counted int // transactions that contributed

	// Degraded is set when the ledger could not be read completely. Points is
	// then 0 and Err holds the cause.
	Degraded bool
	Err      error
}

// CycleAggregator sums earned points per cycle from a LedgerProvider.
type CycleAggregator struct {
	Ledger   LedgerProvider
	Anchor   CycleAnchor
	PageSize int
	Logger   *zap.Logger
}

// NewCycleAggregator creates an aggregator. A nil logger discards output.
func NewCycleAggregator(ledger LedgerProvider, anchor CycleAnchor, logger *zap.Logger) *CycleAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleAggregator{
		Ledger:   ledger,
		Anchor:   anchor,
		PageSize: DefaultPageSize,
		Logger:   logger,
	}
}

// EarnedPointsInCycle sums the member's earned points in cycleYear up to asOf.
func (a *CycleAggregator) EarnedPointsInCycle(ctx context.Context, memberID MemberID, cycleYear int, asOf time.Time) (CycleEarnings, error) {
	result := CycleEarnings{Window: a.Anchor.Window(cycleYear)}

	it := NewTransactionIterator(a.Ledger, memberID, a.PageSize)
	var (
		sum     Points
		counted int
	)
	for it.Next(ctx) {
		tx := it.Transaction()
		if !result.Window.Contains(tx.OccurredAt) || tx.OccurredAt.After(asOf) {
			continue
		}
		if !IsEarnedTransaction(tx) {
			continue
		}
		sum += tx.Amount
		counted++
	}

	if err := it.Err(); err != nil {
		if ab := abandoned("earned points in cycle", err); ab != nil {
			return CycleEarnings{}, ab
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CycleEarnings{}, abandoned("earned points in cycle", ctxErr)
		}
		a.logger().Warn("ledger fetch failed, treating cycle earnings as 0",
			zap.String("member_id", string(memberID)),
			zap.Int("cycle_year", cycleYear),
			zap.Int("pages_read", it.Pages()),
			zap.Error(err),
		)
		result.Degraded = true
		result.Err = err
		return result, nil
	}

	result.Points = sum
	result.Counted = counted
	return result, nil
}

func (a *CycleAggregator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
