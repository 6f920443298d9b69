package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/rewards"
	"github.com/warp/club-loyalty/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func tx(id string, member generic.MemberID, typ generic.TransactionType, amount generic.Points, at time.Time) generic.Transaction {
	return generic.Transaction{
		ID:         generic.TransactionID(id),
		MemberID:   member,
		Type:       typ,
		Amount:     amount,
		OccurredAt: at,
	}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

func TestFetchTransactions_PagesInChronologicalOrder(t *testing.T) {
	// GIVEN: 5 transactions appended out of order
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.AppendBatch(ctx, []generic.Transaction{
		tx("c", "m1", generic.TxPurchase, 30, day(2026, 3, 1)),
		tx("a", "m1", generic.TxPurchase, 10, day(2026, 1, 1)),
		tx("e", "m1", generic.TxEvent, 50, day(2026, 5, 1)),
		tx("b", "m1", generic.TxAdjustment, 20, day(2026, 2, 1)),
		tx("d", "m1", generic.TxTransfer, -40, day(2026, 4, 1)),
		tx("x", "m2", generic.TxPurchase, 999, day(2026, 1, 1)),
	}))

	// WHEN: Reading pages of 2
	p1, err := store.FetchTransactions(ctx, "m1", 1, 2)
	require.NoError(t, err)
	p3, err := store.FetchTransactions(ctx, "m1", 3, 2)
	require.NoError(t, err)
	p4, err := store.FetchTransactions(ctx, "m1", 4, 2)
	require.NoError(t, err)

	// THEN: Pages follow occurred_at order and report the member's total
	assert.Equal(t, 5, p1.TotalCount)
	require.Len(t, p1.Results, 2)
	assert.Equal(t, generic.TransactionID("a"), p1.Results[0].ID)
	assert.Equal(t, generic.TransactionID("b"), p1.Results[1].ID)
	require.Len(t, p3.Results, 1)
	assert.Equal(t, generic.TransactionID("e"), p3.Results[0].ID)
	assert.Empty(t, p4.Results)
	assert.Equal(t, 5, p4.TotalCount)
}

func TestTransactionRoundTrip_PreservesFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	at := time.Date(2026, 9, 1, 0, 0, 0, 123456789, time.UTC)
	in := generic.Transaction{
		ID:          "tx-1",
		MemberID:    "m1",
		Type:        generic.TxRedemption,
		Amount:      -250,
		OccurredAt:  at,
		Reason:      "Hoodie",
		ReferenceID: "order-9",
	}
	require.NoError(t, store.Append(ctx, in))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.Type, got.Type)
	assert.Equal(t, in.Amount, got.Amount)
	assert.True(t, at.Equal(got.OccurredAt), "nanoseconds survive storage")
	assert.Equal(t, "Hoodie", got.Reason)
	assert.Equal(t, "order-9", got.ReferenceID)
}

func TestAppend_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, tx("dup", "m1", generic.TxPurchase, 10, day(2026, 1, 1))))
	err := store.Append(ctx, tx("dup", "m1", generic.TxPurchase, 10, day(2026, 1, 1)))

	assert.ErrorIs(t, err, generic.ErrDuplicateTransaction)
}

func TestAppendBatch_IsAtomic(t *testing.T) {
	// GIVEN: A batch whose last element collides with an existing ID
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Append(ctx, tx("taken", "m1", generic.TxPurchase, 10, day(2026, 1, 1))))

	err := store.AppendBatch(ctx, []generic.Transaction{
		tx("new-1", "m1", generic.TxPurchase, 100, day(2026, 1, 2)),
		tx("taken", "m1", generic.TxPurchase, 100, day(2026, 1, 3)),
	})

	// THEN: Nothing from the batch is visible
	assert.ErrorIs(t, err, generic.ErrDuplicateTransaction)
	balance, err := store.FetchBalance(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(10), balance)
}

func TestAppend_FillsMissingID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, tx("", "m1", generic.TxEvent, 100, day(2026, 1, 1))))
	require.NoError(t, store.Append(ctx, tx("", "m1", generic.TxEvent, 100, day(2026, 1, 1))))

	page, err := store.FetchTransactions(ctx, "m1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.NotEmpty(t, page.Results[0].ID)
	assert.NotEqual(t, page.Results[0].ID, page.Results[1].ID)
}

func TestFetchBalance_SumsAllTypes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.AppendBatch(ctx, []generic.Transaction{
		tx("1", "m1", generic.TxPurchase, 100, day(2026, 1, 1)),
		tx("2", "m1", generic.TxTransfer, 300, day(2026, 1, 2)),
		tx("3", "m1", generic.TxRedemption, -150, day(2026, 1, 3)),
	}))

	balance, err := store.FetchBalance(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(250), balance)

	empty, err := store.FetchBalance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(0), empty)
}

func TestRedemptionRequests_PendingTotal(t *testing.T) {
	// GIVEN: Two pending and one processed request
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r1", MemberID: "m1", Amount: 200}))
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r2", MemberID: "m1", Amount: 300}))
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r3", MemberID: "m1", Amount: 1000, Status: generic.RedemptionProcessed}))

	pending, err := store.FetchPendingRedemptionsTotal(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(500), pending)

	// WHEN: One pending request is cancelled
	require.NoError(t, store.SetRedemptionStatus(ctx, "r1", generic.RedemptionCancelled))

	// THEN: It no longer reserves points
	pending, err = store.FetchPendingRedemptionsTotal(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(300), pending)

	req, err := store.GetRedemptionRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, generic.RedemptionCancelled, req.Status)

	reqs, err := store.RedemptionRequests(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, reqs, 3)
}

func TestSetRedemptionStatus_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.SetRedemptionStatus(context.Background(), "missing", generic.RedemptionProcessed)
	assert.ErrorIs(t, err, generic.ErrRedemptionNotFound)
}

func TestMembers_SaveGetList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveMember(ctx, sqlite.Member{ID: "m2", Name: "Zoe", JoinedAt: day(2025, 9, 1)}))
	require.NoError(t, store.SaveMember(ctx, sqlite.Member{ID: "m1", Name: "Avery", Email: "avery@example.com", JoinedAt: day(2024, 9, 1)}))

	m, err := store.GetMember(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Avery", m.Name)
	assert.Equal(t, "avery@example.com", m.Email)
	assert.True(t, day(2024, 9, 1).Equal(m.JoinedAt))

	_, err = store.GetMember(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrMemberNotFound)

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Avery", members[0].Name)
}

func TestReset_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveMember(ctx, sqlite.Member{ID: "m1", Name: "Avery", JoinedAt: day(2024, 9, 1)}))
	require.NoError(t, store.Append(ctx, tx("1", "m1", generic.TxPurchase, 100, day(2026, 1, 1))))
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{MemberID: "m1", Amount: 50}))

	require.NoError(t, store.Reset(ctx))

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)
	balance, err := store.FetchBalance(ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, balance)
	pending, err := store.FetchPendingRedemptionsTotal(ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, pending)
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestResolver_WalksMultiplePagesFromSQLite(t *testing.T) {
	// GIVEN: 250 event credits of 10 points in cycle 2025 (3 pages at 100)
	ctx := context.Background()
	store := newTestStore(t)
	var txs []generic.Transaction
	for i := 0; i < 250; i++ {
		txs = append(txs, tx(fmt.Sprintf("ev-%03d", i), "m1", generic.TxEvent, 10, day(2025, 10, 1).Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, store.AppendBatch(ctx, txs))

	// WHEN: Resolving in cycle 2026
	p := rewards.ReferenceProgram()
	resolver := p.NewResolver(store, generic.FixedClock{At: day(2026, 10, 1)}, zap.NewNop())
	status, err := resolver.Resolve(ctx, "m1")
	require.NoError(t, err)

	// THEN: All 2,500 points counted; silver carried from the previous cycle
	assert.Equal(t, generic.Points(2500), status.PreviousCycleEarnedPoints)
	assert.Equal(t, rewards.TierSilver, status.ActiveTier)
	assert.Equal(t, generic.TierSourcePrevious, status.TierSource)
	assert.False(t, status.Degraded())
}

func TestAvailability_FromSQLite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Append(ctx, tx("1", "m1", generic.TxPurchase, 1000, day(2026, 1, 1))))
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{MemberID: "m1", Amount: 300}))

	calc := generic.NewAvailabilityCalculator(store, store, zap.NewNop())
	result, avail, err := calc.CheckAmount(ctx, "m1", 800)
	require.NoError(t, err)

	assert.Equal(t, generic.Points(700), avail.Available())
	assert.Equal(t, generic.RejectedExceedsAvailable, result)
}

func TestCreateRedemptionRequest_DuplicateIDKeepsOriginal(t *testing.T) {
	// GIVEN: A pending request r1 for 200
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r1", MemberID: "m1", Amount: 200}))

	// WHEN: Another request reuses the ID
	err := store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r1", MemberID: "m1", Amount: 5, Status: generic.RedemptionProcessed})

	// THEN: It is refused and r1 is unchanged
	assert.ErrorIs(t, err, generic.ErrDuplicateRedemption)
	assert.True(t, generic.IsClientError(err))

	req, err := store.GetRedemptionRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(200), req.Amount)
	assert.Equal(t, generic.RedemptionPending, req.Status)
}

func TestCreateRedemptionIfAvailable(t *testing.T) {
	// GIVEN: A balance of 1000 with 300 already pending
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Append(ctx, tx("e", "m1", generic.TxEvent, 1000, day(2026, 9, 5))))
	require.NoError(t, store.CreateRedemptionRequest(ctx, generic.RedemptionRequest{ID: "r0", MemberID: "m1", Amount: 300}))

	// WHEN: Asking for more than the 700 available
	over := generic.RedemptionRequest{MemberID: "m1", Amount: 701}
	avail, result, err := store.CreateRedemptionIfAvailable(ctx, &over)

	// THEN: Rejected with the figures used, and nothing written
	require.NoError(t, err)
	assert.Equal(t, generic.RejectedExceedsAvailable, result)
	assert.Equal(t, generic.Points(700), avail.Available())
	assert.Empty(t, over.ID)

	zero := generic.RedemptionRequest{MemberID: "m1", Amount: 0}
	_, result, err = store.CreateRedemptionIfAvailable(ctx, &zero)
	require.NoError(t, err)
	assert.Equal(t, generic.RejectedNonPositive, result)

	// WHEN: Asking for exactly what is available
	exact := generic.RedemptionRequest{MemberID: "m1", Amount: 700, Status: generic.RedemptionProcessed}
	_, result, err = store.CreateRedemptionIfAvailable(ctx, &exact)

	// THEN: Recorded as pending with an assigned ID, leaving 0 available
	require.NoError(t, err)
	assert.Equal(t, generic.ValidationOK, result)
	assert.NotEmpty(t, exact.ID)
	assert.Equal(t, generic.RedemptionPending, exact.Status)
	assert.False(t, exact.CreatedAt.IsZero())

	pending, err := store.FetchPendingRedemptionsTotal(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, generic.Points(1000), pending)

	again := generic.RedemptionRequest{MemberID: "m1", Amount: 1}
	_, result, err = store.CreateRedemptionIfAvailable(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, generic.RejectedExceedsAvailable, result)
}
