/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store (ledger pages, balances, pending redemptions)
  plus the member and redemption records the API needs. In production the
  ledger lives behind the points service; this store backs the local
  server, the CLI and integration tests with the same page contract.

INTERFACES IMPLEMENTED:
  generic.LedgerProvider:            1-based ledger pages with total count
  generic.BalanceProvider:           SUM of all ledger amounts
  generic.PendingRedemptionProvider: SUM of pending redemption requests
  generic.Store:                     Append / AppendBatch / redemptions

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table (except Reset)
  - Corrections via adjustment transactions only

KEY TABLES:
  members:             Member records
  transactions:        Immutable ledger of all point movements
  redemption_requests: Requests that reserve points until processed

TIME STORAGE:
  Timestamps are stored as fixed-width UTC strings (nanosecond precision)
  so that lexical order in SQL equals chronological order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  resolver := program.NewResolver(store, clock, logger)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/ledger.go: Page walking
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/club-loyalty/generic"
)

// timeLayout is fixed-width so string comparison orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		joined_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		occurred_at TEXT NOT NULL,
		reason TEXT,
		reference_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Page walk and balance (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_member_occurred
		ON transactions(member_id, occurred_at, id);

	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Redemption requests
	CREATE TABLE IF NOT EXISTS redemption_requests (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		description TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_member_status
		ON redemption_requests(member_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the ledger. An empty ID is filled with a
// new UUID.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) appendTx(ctx context.Context, db execer, tx generic.Transaction) error {
	if tx.ID == "" {
		tx.ID = generic.TransactionID(uuid.NewString())
	}

	query := `
		INSERT INTO transactions
		(id, member_id, tx_type, amount, occurred_at, reason, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		string(tx.ID),
		string(tx.MemberID),
		tx.Type.String(),
		int64(tx.Amount),
		formatTime(tx.OccurredAt),
		nullString(tx.Reason),
		nullString(tx.ReferenceID),
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// FetchTransactions returns one 1-based page of the member's ledger in
// (occurred_at, id) order. TotalCount is reported even for pages past the end.
func (s *Store) FetchTransactions(ctx context.Context, memberID generic.MemberID, page, pageSize int) (generic.TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out generic.TransactionPage
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE member_id = ?",
		string(memberID),
	).Scan(&out.TotalCount)
	if err != nil {
		return out, fmt.Errorf("failed to count transactions: %w", err)
	}
	if page < 1 || pageSize < 1 {
		return out, nil
	}

	query := `
		SELECT id, member_id, tx_type, amount, occurred_at, reason, reference_id
		FROM transactions
		WHERE member_id = ?
		ORDER BY occurred_at ASC, id ASC
		LIMIT ? OFFSET ?
	`
	out.Results, err = s.queryTransactions(ctx, query, string(memberID), pageSize, (page-1)*pageSize)
	return out, err
}

// FetchBalance sums every ledger amount for the member.
func (s *Store) FetchBalance(ctx context.Context, memberID generic.MemberID) (generic.Points, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sumBalance(ctx, s.db, memberID)
}

// GetTransaction returns a specific transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id generic.TransactionID) (*generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, member_id, tx_type, amount, occurred_at, reason, reference_id
		FROM transactions
		WHERE id = ?
	`

	txs, err := s.queryTransactions(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx          generic.Transaction
		id          string
		memberID    string
		txType      string
		amount      int64
		occurredAt  string
		reason      sql.NullString
		referenceID sql.NullString
	)

	err := rows.Scan(&id, &memberID, &txType, &amount, &occurredAt, &reason, &referenceID)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = generic.TransactionID(id)
	tx.MemberID = generic.MemberID(memberID)
	// Unrecognized stored types read back as TxUnknown and are never earned.
	tx.Type, _ = generic.ParseTransactionType(txType)
	tx.Amount = generic.Points(amount)
	tx.OccurredAt, err = parseTime(occurredAt)
	if err != nil {
		return tx, fmt.Errorf("failed to parse occurred_at of %s: %w", id, err)
	}
	tx.Reason = reason.String
	tx.ReferenceID = referenceID.String

	return tx, nil
}

// =============================================================================
// REDEMPTION REQUESTS
// =============================================================================

// CreateRedemptionRequest records a request. Empty ID and status default to
// a new UUID and pending. An existing ID is ErrDuplicateRedemption.
func (s *Store) CreateRedemptionRequest(ctx context.Context, req generic.RedemptionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertRedemption(ctx, s.db, withRedemptionDefaults(req))
}

// CreateRedemptionIfAvailable records req as a pending request only when its
// amount passes the availability gate. Balance, pending total and the insert
// share one database transaction under the write lock, so concurrent
// requests for a member each see the rows committed before them.
//
// A rejected amount is not an error: the result says why and nothing is
// written. On success req carries the assigned ID and timestamps.
func (s *Store) CreateRedemptionIfAvailable(ctx context.Context, req *generic.RedemptionRequest) (generic.PointsAvailability, generic.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	avail := generic.PointsAvailability{MemberID: req.MemberID}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return avail, generic.ValidationOK, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if avail.TotalPoints, err = sumBalance(ctx, sqlTx, req.MemberID); err != nil {
		return avail, generic.ValidationOK, err
	}
	if avail.PendingRedemptionsTotal, err = sumPending(ctx, sqlTx, req.MemberID); err != nil {
		return avail, generic.ValidationOK, err
	}

	result := avail.Validate(req.Amount)
	if !result.OK() {
		return avail, result, nil
	}

	req.Status = generic.RedemptionPending
	*req = withRedemptionDefaults(*req)
	if err := insertRedemption(ctx, sqlTx, *req); err != nil {
		return avail, result, err
	}
	if err := sqlTx.Commit(); err != nil {
		return avail, result, fmt.Errorf("failed to commit redemption: %w", err)
	}
	return avail, result, nil
}

func withRedemptionDefaults(req generic.RedemptionRequest) generic.RedemptionRequest {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = generic.RedemptionPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	return req
}

func insertRedemption(ctx context.Context, db execer, req generic.RedemptionRequest) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO redemption_requests (id, member_id, amount, status, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID, string(req.MemberID), int64(req.Amount), string(req.Status),
		nullString(req.Description), formatTime(req.CreatedAt), formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateRedemption
		}
		return fmt.Errorf("failed to save redemption request: %w", err)
	}
	return nil
}

// SetRedemptionStatus moves a request to status.
func (s *Store) SetRedemptionStatus(ctx context.Context, id string, status generic.RedemptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE redemption_requests SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update redemption status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrRedemptionNotFound
	}
	return nil
}

// FetchPendingRedemptionsTotal sums the member's pending requests.
func (s *Store) FetchPendingRedemptionsTotal(ctx context.Context, memberID generic.MemberID) (generic.Points, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sumPending(ctx, s.db, memberID)
}

// execer and querier are satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sumBalance(ctx context.Context, q querier, memberID generic.MemberID) (generic.Points, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE member_id = ?",
		string(memberID),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum balance: %w", err)
	}
	return generic.Points(total), nil
}

func sumPending(ctx context.Context, q querier, memberID generic.MemberID) (generic.Points, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM redemption_requests WHERE member_id = ? AND status = ?",
		string(memberID), string(generic.RedemptionPending),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum pending redemptions: %w", err)
	}
	return generic.Points(total), nil
}

// GetRedemptionRequest retrieves a request by ID.
func (s *Store) GetRedemptionRequest(ctx context.Context, id string) (*generic.RedemptionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryRedemptions(ctx, `
		SELECT id, member_id, amount, status, description, created_at
		FROM redemption_requests WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, generic.ErrRedemptionNotFound
	}
	return &reqs[0], nil
}

// RedemptionRequests returns the member's requests, oldest first.
func (s *Store) RedemptionRequests(ctx context.Context, memberID generic.MemberID) ([]generic.RedemptionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRedemptions(ctx, `
		SELECT id, member_id, amount, status, description, created_at
		FROM redemption_requests WHERE member_id = ?
		ORDER BY created_at ASC, id ASC
	`, string(memberID))
}

func (s *Store) queryRedemptions(ctx context.Context, query string, args ...any) ([]generic.RedemptionRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemption requests: %w", err)
	}
	defer rows.Close()

	var out []generic.RedemptionRequest
	for rows.Next() {
		var (
			r                    generic.RedemptionRequest
			id, memberID, status string
			amount               int64
			description          sql.NullString
			createdAt            string
		)
		if err := rows.Scan(&id, &memberID, &amount, &status, &description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption request: %w", err)
		}
		r.ID = id
		r.MemberID = generic.MemberID(memberID)
		r.Amount = generic.Points(amount)
		r.Status = generic.RedemptionStatus(status)
		r.Description = description.String
		r.CreatedAt, _ = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// MEMBER STORE
// =============================================================================

// Member represents a club member record.
type Member struct {
	ID        string
	Name      string
	Email     string
	JoinedAt  time.Time
	CreatedAt time.Time
}

// SaveMember saves a member.
func (s *Store) SaveMember(ctx context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, name, email, joined_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			joined_at = excluded.joined_at
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Email,
		formatTime(m.JoinedAt),
		formatTime(time.Now()),
	)
	return err
}

// GetMember retrieves a member by ID. Missing members yield
// generic.ErrMemberNotFound.
func (s *Store) GetMember(ctx context.Context, id string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Member
	var email sql.NullString
	var joinedAt, createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, joined_at, created_at FROM members WHERE id = ?",
		id,
	).Scan(&m.ID, &m.Name, &email, &joinedAt, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Email = email.String
	m.JoinedAt, _ = parseTime(joinedAt)
	m.CreatedAt, _ = parseTime(createdAt)
	return &m, nil
}

// ListMembers returns all members.
func (s *Store) ListMembers(ctx context.Context) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, joined_at, created_at FROM members ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var email sql.NullString
		var joinedAt, createdAt string
		if err := rows.Scan(&m.ID, &m.Name, &email, &joinedAt, &createdAt); err != nil {
			return nil, err
		}
		m.Email = email.String
		m.JoinedAt, _ = parseTime(joinedAt)
		m.CreatedAt, _ = parseTime(createdAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "redemption_requests", "members"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
