/*
Package generic provides the core loyalty tier engine.

PURPOSE:
  This package contains the program-agnostic types and algorithms behind the
  club loyalty platform: classifying ledger movements, summing earned points
  per annual earning cycle, resolving the member's active tier under the
  carryover rule, and deciding how many points are available to spend.

KEY CONCEPTS IN THIS FILE (types.go):
  - Points: Signed whole-point quantity (credit > 0, debit < 0)
  - Transaction: A read-only ledger record supplied by the ledger provider
  - TransactionType: Closed set of movement kinds
  - Member/Transaction IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Read-only: The engine never mutates a transaction
  2. Closed enumeration: Unknown movement kinds collapse to TxUnknown
  3. Injected time: Nothing in this package reads the wall clock except SystemClock
  4. Degrade, don't fail: Provider failures produce flagged zero values

USAGE:
  tx := generic.Transaction{
      ID:         "tx-1",
      MemberID:   "m-42",
      Type:       generic.TxPurchase,
      Amount:     120,
      OccurredAt: time.Date(2026, time.October, 3, 12, 0, 0, 0, time.UTC),
  }
  earned := generic.IsEarnedTransaction(tx) // true

SEE ALSO:
  - period.go: Cycle calendar
  - aggregate.go: Earned points per cycle
  - resolver.go: Active tier resolution
  - balance.go: Points availability
*/
package generic

import (
	"strings"
	"time"
)

// =============================================================================
// POINTS
// =============================================================================

// Points is a signed quantity of loyalty points.
type Points int64

// Max returns the larger of p and o.
func (p Points) Max(o Points) Points {
	if p > o {
		return p
	}
	return o
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type TransactionID string

// =============================================================================
// TRANSACTION TYPE - Closed enumeration
// =============================================================================

// TransactionType identifies the kind of ledger movement.
type TransactionType uint8

const (
	TxUnknown    TransactionType = iota // Anything the provider could not map
	TxPurchase                          // Points credited for a purchase
	TxEvent                             // Points credited for attending a club event
	TxAdjustment                        // Manual correction, either sign
	TxTransfer                          // Redistribution between members, either sign
	TxRedemption                        // Points spent on a reward
)

var transactionTypeNames = map[TransactionType]string{
	TxUnknown:    "unknown",
	TxPurchase:   "purchase",
	TxEvent:      "event",
	TxAdjustment: "adjustment",
	TxTransfer:   "transfer",
	TxRedemption: "redemption",
}

// TransactionTypes lists every known type, in declaration order.
func TransactionTypes() []TransactionType {
	return []TransactionType{TxPurchase, TxEvent, TxAdjustment, TxTransfer, TxRedemption}
}

func (t TransactionType) String() string {
	if name, ok := transactionTypeNames[t]; ok {
		return name
	}
	return transactionTypeNames[TxUnknown]
}

// ParseTransactionType maps a stored or wire name to a TransactionType.
// Unrecognized names map to TxUnknown with ok == false.
func ParseTransactionType(s string) (TransactionType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range transactionTypeNames {
		if t != TxUnknown && name == s {
			return t, true
		}
	}
	return TxUnknown, false
}

// MarshalText implements encoding.TextMarshaler.
func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode to
// TxUnknown rather than failing, matching how the classifier treats them.
func (t *TransactionType) UnmarshalText(b []byte) error {
	*t, _ = ParseTransactionType(string(b))
	return nil
}

// =============================================================================
// TRANSACTION - Read-only ledger record
// =============================================================================

// Transaction is one ledger movement as supplied by the ledger provider.
// OccurredAt is the time of the economic event, not when it was recorded.
type Transaction struct {
	ID          TransactionID
	MemberID    MemberID
	Type        TransactionType
	Amount      Points
	OccurredAt  time.Time
	Reason      string
	ReferenceID string
}
