/*
store.go - Provider and persistence interfaces

PURPOSE:
  Defines the boundary between the engine and whatever holds member data.
  The engine only needs three read paths (ledger pages, balance, pending
  redemption total); the write paths exist so demo tooling and tests can
  populate a store.

KEY INTERFACES:
  LedgerProvider:            Paged transactions (see ledger.go)
  BalanceProvider:           Current total balance
  PendingRedemptionProvider: Sum of not-yet-processed redemption requests
  Store:                     All three plus append-only writes

APPEND-ONLY CONTRACT:
  Transactions are never updated or deleted. Redemption requests change
  status (pending -> processed/rejected/cancelled) but are never removed.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - ledger.go: LedgerProvider and iterator
  - balance.go: AvailabilityCalculator
*/
package generic

import (
	"context"
	"time"
)

// BalanceProvider supplies a member's current total point balance.
type BalanceProvider interface {
	FetchBalance(ctx context.Context, memberID MemberID) (Points, error)
}

// PendingRedemptionProvider supplies the sum of a member's outstanding
// redemption requests.
type PendingRedemptionProvider interface {
	FetchPendingRedemptionsTotal(ctx context.Context, memberID MemberID) (Points, error)
}

// =============================================================================
// REDEMPTION REQUESTS
// =============================================================================

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionProcessed RedemptionStatus = "processed"
	RedemptionRejected  RedemptionStatus = "rejected"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// IsOutstanding reports whether the request still reserves points.
func (s RedemptionStatus) IsOutstanding() bool { return s == RedemptionPending }

// RedemptionRequest is a member's request to spend points, not yet turned
// into a ledger debit.
type RedemptionRequest struct {
	ID          string
	MemberID    MemberID
	Amount      Points
	Status      RedemptionStatus
	Description string
	CreatedAt   time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store is the full persistence surface used by tooling and tests.
type Store interface {
	LedgerProvider
	BalanceProvider
	PendingRedemptionProvider

	// Append persists a transaction. Fails with ErrDuplicateTransaction if
	// the ID exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists several transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// CreateRedemptionRequest records a request.
	CreateRedemptionRequest(ctx context.Context, req RedemptionRequest) error

	// SetRedemptionStatus moves a request out of (or back into) pending.
	SetRedemptionStatus(ctx context.Context, id string, status RedemptionStatus) error
}
