/*
ledger.go - Read-only view of a member's transaction ledger

PURPOSE:
  The ledger itself belongs to an external system; the engine only reads a
  finite snapshot of it, page by page. This file defines that provider
  contract and a lazy iterator that hides the paging so aggregation logic
  only ever sees a stream of transactions.

PAGING CONTRACT:
  FetchTransactions(member, page, pageSize) -> {Results, TotalCount}
  - Pages are 1-based.
  - The walk continues until page*pageSize >= TotalCount.
  - A single page is never assumed to be the whole ledger.
  - An empty page before TotalCount is reached ends the walk with
    ErrLedgerTruncated (the snapshot shrank or the provider is broken).

ITERATION:
  it := generic.NewTransactionIterator(provider, memberID, 100)
  for it.Next(ctx) {
      tx := it.Transaction()
      ...
  }
  if err := it.Err(); err != nil { ... }

  Each iterator is one walk. Build a new one to restart from page 1.

SEE ALSO:
  - aggregate.go: Consumes the iterator
  - store/memory.go, store/sqlite/sqlite.go: Provider implementations
*/
package generic

import "context"

// DefaultPageSize is used when a caller does not pick one.
const DefaultPageSize = 100

// =============================================================================
// LEDGER PROVIDER
// =============================================================================

// TransactionPage is one page of a member's ledger.
type TransactionPage struct {
	Results    []Transaction
	TotalCount int
}

// LedgerProvider supplies a member's transactions in pages. Read-only.
type LedgerProvider interface {
	FetchTransactions(ctx context.Context, memberID MemberID, page, pageSize int) (TransactionPage, error)
}

// LedgerProviderFunc adapts a function to LedgerProvider.
type LedgerProviderFunc func(ctx context.Context, memberID MemberID, page, pageSize int) (TransactionPage, error)

func (f LedgerProviderFunc) FetchTransactions(ctx context.Context, memberID MemberID, page, pageSize int) (TransactionPage, error) {
	return f(ctx, memberID, page, pageSize)
}

// =============================================================================
// TRANSACTION ITERATOR - Lazy walk over all pages
// =============================================================================

// TransactionIterator walks every page of a member's ledger lazily.
type TransactionIterator struct {
	provider LedgerProvider
	memberID MemberID
	pageSize int

	page    int // last page fetched
	total   int
	buf     []Transaction
	pos     int
	current Transaction
	done    bool
	err     error
}

// NewTransactionIterator starts a fresh walk. pageSize <= 0 means DefaultPageSize.
func NewTransactionIterator(provider LedgerProvider, memberID MemberID, pageSize int) *TransactionIterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &TransactionIterator{provider: provider, memberID: memberID, pageSize: pageSize}
}

// Next advances to the next transaction, fetching the next page when the
// current one is exhausted. It returns false at the end or on error.
func (it *TransactionIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	for it.pos >= len(it.buf) {
		if it.page > 0 && it.page*it.pageSize >= it.total {
			it.done = true
			return false
		}
		if err := ctx.Err(); err != nil {
			return it.fail(err)
		}
		page, err := it.provider.FetchTransactions(ctx, it.memberID, it.page+1, it.pageSize)
		if err != nil {
			return it.fail(err)
		}
		it.page++
		it.total = page.TotalCount
		if len(page.Results) == 0 && it.page*it.pageSize < it.total {
			return it.fail(ErrLedgerTruncated)
		}
		it.buf = page.Results
		it.pos = 0
	}
	it.current = it.buf[it.pos]
	it.pos++
	return true
}

func (it *TransactionIterator) fail(err error) bool {
	it.err = err
	it.done = true
	return false
}

// Transaction returns the transaction Next advanced to.
func (it *TransactionIterator) Transaction() Transaction { return it.current }

// Err returns the error that ended the walk, if any.
func (it *TransactionIterator) Err() error { return it.err }

// Pages returns how many pages have been fetched so far.
func (it *TransactionIterator) Pages() int { return it.page }

// CollectTransactions drains a full walk into a slice.
func CollectTransactions(ctx context.Context, provider LedgerProvider, memberID MemberID, pageSize int) ([]Transaction, error) {
	it := NewTransactionIterator(provider, memberID, pageSize)
	var txs []Transaction
	for it.Next(ctx) {
		txs = append(txs, it.Transaction())
	}
	return txs, it.Err()
}
