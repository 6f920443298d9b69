// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/club-loyalty/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[generic.MemberID][]generic.Transaction
	ids          map[generic.TransactionID]bool
	redemptions  map[string]*generic.RedemptionRequest
	order        []string // redemption IDs in creation order
}

var _ generic.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[generic.MemberID][]generic.Transaction),
		ids:          make(map[generic.TransactionID]bool),
		redemptions:  make(map[string]*generic.RedemptionRequest),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == "" {
		tx.ID = generic.TransactionID(uuid.NewString())
	}
	if m.ids[tx.ID] {
		return generic.ErrDuplicateTransaction
	}
	m.appendLocked(tx)
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all IDs first (atomic check). The caller's slice is left as is.
	batch := make([]generic.Transaction, len(txs))
	copy(batch, txs)
	seen := make(map[generic.TransactionID]bool, len(batch))
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = generic.TransactionID(uuid.NewString())
		}
		if m.ids[batch[i].ID] || seen[batch[i].ID] {
			return generic.ErrDuplicateTransaction
		}
		seen[batch[i].ID] = true
	}

	for _, tx := range batch {
		m.appendLocked(tx)
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	txs := m.transactions[tx.MemberID]

	// Keep (OccurredAt, ID) order so pages are stable.
	i := sort.Search(len(txs), func(i int) bool {
		if txs[i].OccurredAt.Equal(tx.OccurredAt) {
			return txs[i].ID > tx.ID
		}
		return txs[i].OccurredAt.After(tx.OccurredAt)
	})

	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.MemberID] = txs
	m.ids[tx.ID] = true
}

// FetchTransactions returns one 1-based page of the member's ledger.
func (m *Memory) FetchTransactions(_ context.Context, memberID generic.MemberID, page, pageSize int) (generic.TransactionPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.transactions[memberID]
	out := generic.TransactionPage{TotalCount: len(all)}
	if page < 1 || pageSize < 1 {
		return out, nil
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return out, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	out.Results = make([]generic.Transaction, end-start)
	copy(out.Results, all[start:end])
	return out, nil
}

// FetchBalance sums every ledger amount for the member.
func (m *Memory) FetchBalance(_ context.Context, memberID generic.MemberID) (generic.Points, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total generic.Points
	for _, tx := range m.transactions[memberID] {
		total += tx.Amount
	}
	return total, nil
}

// FetchPendingRedemptionsTotal sums the member's pending requests.
func (m *Memory) FetchPendingRedemptionsTotal(_ context.Context, memberID generic.MemberID) (generic.Points, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total generic.Points
	for _, r := range m.redemptions {
		if r.MemberID == memberID && r.Status.IsOutstanding() {
			total += r.Amount
		}
	}
	return total, nil
}

// =============================================================================
// REDEMPTION REQUESTS
// =============================================================================

// CreateRedemptionRequest records a request. Empty ID, status and CreatedAt
// default to a new UUID, pending and now. An existing ID is
// ErrDuplicateRedemption.
func (m *Memory) CreateRedemptionRequest(_ context.Context, req generic.RedemptionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if _, exists := m.redemptions[req.ID]; exists {
		return generic.ErrDuplicateRedemption
	}
	if req.Status == "" {
		req.Status = generic.RedemptionPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	m.order = append(m.order, req.ID)
	m.redemptions[req.ID] = &req
	return nil
}

func (m *Memory) SetRedemptionStatus(_ context.Context, id string, status generic.RedemptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.redemptions[id]
	if !ok {
		return generic.ErrRedemptionNotFound
	}
	r.Status = status
	return nil
}

// RedemptionRequests returns the member's requests in creation order.
func (m *Memory) RedemptionRequests(_ context.Context, memberID generic.MemberID) ([]generic.RedemptionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.RedemptionRequest
	for _, id := range m.order {
		if r := m.redemptions[id]; r.MemberID == memberID {
			out = append(out, *r)
		}
	}
	return out, nil
}
