/*
errors.go - Centralized error types for the loyalty engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers wrap these with context and test them with errors.Is/As.

ERROR CATEGORIES:
  1. Configuration errors - Malformed anchor or tier table (fatal at startup)
  2. Provider errors - Ledger/balance/pending fetch problems (degraded, logged)
  3. Abandonment - Caller cancelled an in-flight computation
  4. Validation errors - Rejected redemption/transfer amounts
  5. Store errors - Persistence-level failures

NOTE:
  Provider errors never escape the resolver or the availability calculator;
  they are recorded on the degraded result. Only abandonment is returned.

SEE ALSO:
  - aggregate.go: Produces degraded results and abandonment errors
  - balance.go: ValidationResult.Err maps rejections to these errors
  - store/sqlite/sqlite.go: Store errors
*/
package generic

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAnchor is returned when a cycle anchor month/day is malformed.
	ErrInvalidAnchor = errors.New("invalid cycle anchor")

	// ErrInvalidTierTable is returned when a tier table is empty, does not
	// start at zero, is not strictly increasing, or repeats a key.
	ErrInvalidTierTable = errors.New("invalid tier table")

	// ErrLedgerTruncated is returned when the ledger provider returns an empty
	// page before the advertised total count was reached.
	ErrLedgerTruncated = errors.New("ledger ended before total count was reached")

	// ErrComputationAbandoned is returned when the caller cancels a
	// computation. It is never reported as a zero result.
	ErrComputationAbandoned = errors.New("computation abandoned")

	// ErrNonPositiveAmount is returned when a proposed amount is <= 0.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrInsufficientPoints is returned when a proposed amount exceeds availability.
	ErrInsufficientPoints = errors.New("amount exceeds available points")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrRedemptionNotFound is returned when a redemption request doesn't exist.
	ErrRedemptionNotFound = errors.New("redemption request not found")

	// ErrDuplicateTransaction is returned when a transaction ID already exists.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrDuplicateRedemption is returned when a redemption request ID already exists.
	ErrDuplicateRedemption = errors.New("duplicate redemption request id")

	// ErrInvalidInput is returned when imported ledger data is malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError provides details about a points shortage.
type InsufficientPointsError struct {
	Available Points
	Requested Points
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("amount exceeds available points: available %d, requested %d, shortfall %d",
		e.Available, e.Requested, e.Requested-e.Available)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// AbandonedError records which step was cancelled.
type AbandonedError struct {
	Op    string
	Cause error
}

func (e *AbandonedError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrComputationAbandoned, e.Cause)
}

// Is lets errors.Is match both ErrComputationAbandoned and the context error.
func (e *AbandonedError) Is(target error) bool {
	return target == ErrComputationAbandoned
}

func (e *AbandonedError) Unwrap() error {
	return e.Cause
}

// abandoned wraps err when it came from context cancellation, else returns nil.
func abandoned(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AbandonedError{Op: op, Cause: err}
	}
	return nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsAbandoned returns true if the computation was cancelled by the caller.
func IsAbandoned(err error) bool {
	return errors.Is(err, ErrComputationAbandoned)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrDuplicateRedemption) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrRedemptionNotFound)
}

// IsConfigError returns true if the error came from construction-time validation.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidAnchor) ||
		errors.Is(err, ErrInvalidTierTable)
}
