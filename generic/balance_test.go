package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/club-loyalty/generic"
)

type stubBalances struct {
	total generic.Points
	err   error
}

func (s stubBalances) FetchBalance(context.Context, generic.MemberID) (generic.Points, error) {
	return s.total, s.err
}

type stubPending struct {
	total generic.Points
	err   error
}

func (s stubPending) FetchPendingRedemptionsTotal(context.Context, generic.MemberID) (generic.Points, error) {
	return s.total, s.err
}

func TestValidateAmount(t *testing.T) {
	// GIVEN: available = 1000 - 300
	// WHEN: Validating amounts around it
	// THEN: Exactly available is OK, one more is rejected, zero and below are non-positive

	available := generic.Available(1000, 300)
	require.Equal(t, generic.Points(700), available)

	cases := []struct {
		proposed generic.Points
		want     generic.ValidationResult
	}{
		{700, generic.ValidationOK},
		{1, generic.ValidationOK},
		{701, generic.RejectedExceedsAvailable},
		{0, generic.RejectedNonPositive},
		{-10, generic.RejectedNonPositive},
	}
	for _, c := range cases {
		got := generic.ValidateAmount(c.proposed, available)
		assert.Equal(t, c.want, got, "proposed %d", c.proposed)
		assert.Equal(t, c.want == generic.ValidationOK, got.OK())
	}
}

func TestValidationResult_Err(t *testing.T) {
	// GIVEN: Each validation result
	// WHEN: Converting to an error
	// THEN: OK is nil; rejections map to their sentinels

	assert.NoError(t, generic.ValidationOK.Err(10, 100))
	assert.ErrorIs(t, generic.RejectedNonPositive.Err(0, 100), generic.ErrNonPositiveAmount)

	err := generic.RejectedExceedsAvailable.Err(150, 100)
	assert.ErrorIs(t, err, generic.ErrInsufficientPoints)
	assert.True(t, generic.IsClientError(err))

	var insufficient *generic.InsufficientPointsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, generic.Points(100), insufficient.Available)
	assert.Contains(t, err.Error(), "shortfall 50")
}

func TestPointsAvailability_NegativeAvailable(t *testing.T) {
	// GIVEN: Pending redemptions larger than the balance
	// WHEN: Reading availability
	// THEN: Available goes negative, Spendable clamps at 0, every amount is rejected

	a := generic.PointsAvailability{TotalPoints: 200, PendingRedemptionsTotal: 500}
	assert.Equal(t, generic.Points(-300), a.Available())
	assert.Equal(t, generic.Points(0), a.Spendable())
	assert.Equal(t, generic.RejectedExceedsAvailable, a.Validate(1))
}

func TestAvailabilityCalculator(t *testing.T) {
	// GIVEN: Balance 1000 and pending 300
	// WHEN: Computing availability and checking 800
	// THEN: 700 available, 800 rejected

	calc := generic.NewAvailabilityCalculator(stubBalances{total: 1000}, stubPending{total: 300}, nil)

	avail, err := calc.Availability(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, member, avail.MemberID)
	assert.Equal(t, generic.Points(700), avail.Available())
	assert.False(t, avail.Degraded())

	result, avail, err := calc.CheckAmount(context.Background(), member, 800)
	require.NoError(t, err)
	assert.Equal(t, generic.RejectedExceedsAvailable, result)
	assert.Equal(t, generic.Points(700), avail.Available())
}

func TestAvailabilityCalculator_Degraded(t *testing.T) {
	// GIVEN: A failing balance provider, then a failing pending provider
	// WHEN: Computing availability
	// THEN: The failed input is 0 and flagged, with no error

	boom := errors.New("provider down")

	calc := generic.NewAvailabilityCalculator(stubBalances{err: boom}, stubPending{total: 300}, nil)
	avail, err := calc.Availability(context.Background(), member)
	require.NoError(t, err)
	assert.True(t, avail.BalanceDegraded)
	assert.False(t, avail.PendingDegraded)
	assert.Equal(t, generic.Points(-300), avail.Available())

	calc = generic.NewAvailabilityCalculator(stubBalances{total: 1000}, stubPending{err: boom}, nil)
	avail, err = calc.Availability(context.Background(), member)
	require.NoError(t, err)
	assert.True(t, avail.PendingDegraded)
	assert.Equal(t, generic.Points(1000), avail.Available())
}

func TestAvailabilityCalculator_Cancelled(t *testing.T) {
	// GIVEN: A cancelled context
	// WHEN: Computing availability
	// THEN: Abandoned, not degraded

	calc := generic.NewAvailabilityCalculator(stubBalances{total: 1000}, stubPending{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := calc.Availability(ctx, member)
	assert.True(t, generic.IsAbandoned(err))
}

func TestAvailabilityCalculator_MemoryStore(t *testing.T) {
	// GIVEN: A ledger of credits, a redemption, and pending/processed requests
	// WHEN: Computing availability from the memory store
	// THEN: Only pending requests reduce availability

	mem := ledgerOf(t,
		tx("e", generic.TxEvent, 1000, at(2026, time.September, 5)),
		tx("t", generic.TxTransfer, 500, at(2026, time.September, 6)),
		tx("r", generic.TxRedemption, -200, at(2026, time.September, 7)),
	)
	ctx := context.Background()
	require.NoError(t, mem.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r1", MemberID: member, Amount: 300}))
	require.NoError(t, mem.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r2", MemberID: member, Amount: 100}))
	require.NoError(t, mem.SetRedemptionStatus(ctx, "r2", generic.RedemptionProcessed))

	calc := generic.NewAvailabilityCalculator(mem, mem, nil)
	avail, err := calc.Availability(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, generic.Points(1300), avail.TotalPoints)
	assert.Equal(t, generic.Points(300), avail.PendingRedemptionsTotal)
	assert.Equal(t, generic.Points(1000), avail.Available())
}
