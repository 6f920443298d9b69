package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/club-loyalty/generic"
)

func memTx(id string, member generic.MemberID, amount generic.Points, day int) generic.Transaction {
	return generic.Transaction{
		ID:         generic.TransactionID(id),
		MemberID:   member,
		Type:       generic.TxEvent,
		Amount:     amount,
		OccurredAt: time.Date(2026, time.September, day, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory_PagesInOccurredOrder(t *testing.T) {
	// GIVEN: Transactions appended out of date order
	// WHEN: Fetching pages of 2
	// THEN: Pages follow (OccurredAt, ID) order and report the total

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Append(ctx, memTx("c", "avery", 10, 9)))
	require.NoError(t, m.Append(ctx, memTx("a", "avery", 10, 3)))
	require.NoError(t, m.Append(ctx, memTx("b2", "avery", 10, 5)))
	require.NoError(t, m.Append(ctx, memTx("b1", "avery", 10, 5)))
	require.NoError(t, m.Append(ctx, memTx("x", "blake", 10, 1)))

	p1, err := m.FetchTransactions(ctx, "avery", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, p1.TotalCount)
	require.Len(t, p1.Results, 2)
	assert.Equal(t, generic.TransactionID("a"), p1.Results[0].ID)
	assert.Equal(t, generic.TransactionID("b1"), p1.Results[1].ID)

	p2, err := m.FetchTransactions(ctx, "avery", 2, 2)
	require.NoError(t, err)
	require.Len(t, p2.Results, 2)
	assert.Equal(t, generic.TransactionID("b2"), p2.Results[0].ID)
	assert.Equal(t, generic.TransactionID("c"), p2.Results[1].ID)

	p3, err := m.FetchTransactions(ctx, "avery", 3, 2)
	require.NoError(t, err)
	assert.Empty(t, p3.Results)
	assert.Equal(t, 4, p3.TotalCount)
}

func TestMemory_DuplicatesAndBatches(t *testing.T) {
	// GIVEN: An existing transaction
	// WHEN: Appending it again, or a batch that contains it
	// THEN: ErrDuplicateTransaction and the batch is not applied

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Append(ctx, memTx("a", "avery", 10, 3)))

	assert.ErrorIs(t, m.Append(ctx, memTx("a", "avery", 99, 4)), generic.ErrDuplicateTransaction)

	err := m.AppendBatch(ctx, []generic.Transaction{memTx("b", "avery", 20, 4), memTx("a", "avery", 30, 5)})
	assert.ErrorIs(t, err, generic.ErrDuplicateTransaction)

	total, err := m.FetchBalance(ctx, "avery")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(10), total)
}

func TestMemory_FillsMissingIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.AppendBatch(ctx, []generic.Transaction{memTx("", "avery", 10, 3), memTx("", "avery", 10, 4)}))

	page, err := m.FetchTransactions(ctx, "avery", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.NotEmpty(t, page.Results[0].ID)
	assert.NotEqual(t, page.Results[0].ID, page.Results[1].ID)
}

func TestMemory_Redemptions(t *testing.T) {
	// GIVEN: Two pending requests for one member and one for another
	// WHEN: Processing one and summing
	// THEN: Only the member's remaining pending request counts

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r1", MemberID: "avery", Amount: 300}))
	require.NoError(t, m.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r2", MemberID: "avery", Amount: 200}))
	require.NoError(t, m.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r3", MemberID: "blake", Amount: 900}))

	require.NoError(t, m.SetRedemptionStatus(ctx, "r1", generic.RedemptionProcessed))
	assert.ErrorIs(t, m.SetRedemptionStatus(ctx, "nope", generic.RedemptionCancelled), generic.ErrRedemptionNotFound)

	pending, err := m.FetchPendingRedemptionsTotal(ctx, "avery")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(200), pending)

	reqs, err := m.RedemptionRequests(ctx, "avery")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "r1", reqs[0].ID)
	assert.Equal(t, generic.RedemptionProcessed, reqs[0].Status)
	assert.Equal(t, generic.RedemptionPending, reqs[1].Status, "status defaults to pending")
}

func TestMemory_AppendBatchLeavesCallerSliceAlone(t *testing.T) {
	// GIVEN: A batch with an empty ID and a duplicate of a stored ID
	// WHEN: Appending it
	// THEN: The batch is refused and the caller's entries keep their IDs

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Append(ctx, memTx("a", "avery", 10, 3)))

	batch := []generic.Transaction{memTx("", "avery", 20, 4), memTx("a", "avery", 30, 5)}
	assert.ErrorIs(t, m.AppendBatch(ctx, batch), generic.ErrDuplicateTransaction)
	assert.Empty(t, batch[0].ID)

	ok := []generic.Transaction{memTx("", "avery", 20, 4)}
	require.NoError(t, m.AppendBatch(ctx, ok))
	assert.Empty(t, ok[0].ID)
}

func TestMemory_RedemptionDefaultsAndDuplicates(t *testing.T) {
	// GIVEN: A request with no ID, status or creation time
	// WHEN: Recording it and then reusing its ID
	// THEN: Defaults are filled and the reuse is refused without touching the original

	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateRedemptionRequest(ctx, generic.RedemptionRequest{MemberID: "avery", Amount: 300}))

	reqs, err := m.RedemptionRequests(ctx, "avery")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	first := reqs[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, generic.RedemptionPending, first.Status)
	assert.False(t, first.CreatedAt.IsZero())

	err = m.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: first.ID, MemberID: "avery", Amount: 5})
	assert.ErrorIs(t, err, generic.ErrDuplicateRedemption)

	pending, err := m.FetchPendingRedemptionsTotal(ctx, "avery")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(300), pending)
}
