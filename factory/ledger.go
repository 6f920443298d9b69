/*
ledger.go - Ledger snapshot files

PURPOSE:
  Decodes an exported member ledger (transactions plus open redemption
  requests) so operators can resolve tiers offline against an in-memory
  store, without a database.

JSON SCHEMA:
  {
    "transactions": [
      {"id": "tx-1", "member_id": "avery", "type": "event",
       "amount": 1200, "occurred_at": "2026-01-10"}
    ],
    "redemptions": [
      {"id": "red-1", "member_id": "avery", "amount": 300,
       "status": "pending", "created_at": "2026-09-20T10:00:00Z"}
    ]
  }

  occurred_at / created_at accept RFC3339 or YYYY-MM-DD (midnight in the
  program's timezone). Unknown transaction types are rejected.

SEE ALSO:
  - generic/store/memory.go: In-memory store the file loads into
  - cmd/server/main.go: --ledger flag
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/generic/store"
)

// LedgerJSON is the file representation of a ledger snapshot.
type LedgerJSON struct {
	Transactions []TransactionJSON `json:"transactions" yaml:"transactions"`
	Redemptions  []RedemptionJSON  `json:"redemptions,omitempty" yaml:"redemptions,omitempty"`
}

// TransactionJSON is one ledger entry.
type TransactionJSON struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	MemberID    string `json:"member_id" yaml:"member_id"`
	Type        string `json:"type" yaml:"type"`
	Amount      int64  `json:"amount" yaml:"amount"`
	OccurredAt  string `json:"occurred_at" yaml:"occurred_at"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	ReferenceID string `json:"reference_id,omitempty" yaml:"reference_id,omitempty"`
}

// RedemptionJSON is one redemption request.
type RedemptionJSON struct {
	ID          string `json:"id" yaml:"id"`
	MemberID    string `json:"member_id" yaml:"member_id"`
	Amount      int64  `json:"amount" yaml:"amount"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ParseLedger parses a JSON ledger snapshot.
func ParseLedger(jsonStr string) (LedgerJSON, error) {
	var lj LedgerJSON
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&lj); err != nil {
		return LedgerJSON{}, fmt.Errorf("failed to parse ledger JSON: %w", err)
	}
	return lj, nil
}

// ParseLedgerYAML parses a YAML ledger snapshot.
func ParseLedgerYAML(yamlStr string) (LedgerJSON, error) {
	var lj LedgerJSON
	dec := yaml.NewDecoder(strings.NewReader(yamlStr))
	dec.KnownFields(true)
	if err := dec.Decode(&lj); err != nil {
		return LedgerJSON{}, fmt.Errorf("failed to parse ledger YAML: %w", err)
	}
	return lj, nil
}

// LoadLedgerFile reads a snapshot from disk into a fresh in-memory store.
func LoadLedgerFile(ctx context.Context, path string, loc *time.Location) (*store.Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	var lj LedgerJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		lj, err = ParseLedger(string(b))
	case ".yaml", ".yml":
		lj, err = ParseLedgerYAML(string(b))
	default:
		return nil, fmt.Errorf("unsupported ledger file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	mem := store.NewMemory()
	if err := lj.Load(ctx, mem, loc); err != nil {
		return nil, err
	}
	return mem, nil
}

// Load appends the snapshot to s. Transactions go in one batch, so a bad
// entry leaves s untouched.
func (lj LedgerJSON) Load(ctx context.Context, s generic.Store, loc *time.Location) error {
	txs := make([]generic.Transaction, 0, len(lj.Transactions))
	for i, tj := range lj.Transactions {
		tx, err := tj.toTransaction(loc)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	if len(txs) > 0 {
		if err := s.AppendBatch(ctx, txs); err != nil {
			return err
		}
	}

	for i, rj := range lj.Redemptions {
		req, err := rj.toRedemption(loc)
		if err != nil {
			return fmt.Errorf("redemption %d: %w", i, err)
		}
		if err := s.CreateRedemptionRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (tj TransactionJSON) toTransaction(loc *time.Location) (generic.Transaction, error) {
	if strings.TrimSpace(tj.MemberID) == "" {
		return generic.Transaction{}, fmt.Errorf("%w: member_id is required", generic.ErrInvalidInput)
	}
	txType, ok := generic.ParseTransactionType(tj.Type)
	if !ok {
		return generic.Transaction{}, fmt.Errorf("%w: unknown transaction type %q", generic.ErrInvalidInput, tj.Type)
	}
	at, err := parseFileTime(tj.OccurredAt, loc)
	if err != nil {
		return generic.Transaction{}, fmt.Errorf("%w: occurred_at: %v", generic.ErrInvalidInput, err)
	}
	return generic.Transaction{
		ID:          generic.TransactionID(tj.ID),
		MemberID:    generic.MemberID(tj.MemberID),
		Type:        txType,
		Amount:      generic.Points(tj.Amount),
		OccurredAt:  at,
		Reason:      tj.Reason,
		ReferenceID: tj.ReferenceID,
	}, nil
}

func (rj RedemptionJSON) toRedemption(loc *time.Location) (generic.RedemptionRequest, error) {
	if rj.ID == "" || rj.MemberID == "" {
		return generic.RedemptionRequest{}, fmt.Errorf("%w: id and member_id are required", generic.ErrInvalidInput)
	}
	req := generic.RedemptionRequest{
		ID:          rj.ID,
		MemberID:    generic.MemberID(rj.MemberID),
		Amount:      generic.Points(rj.Amount),
		Status:      generic.RedemptionStatus(strings.ToLower(rj.Status)),
		Description: rj.Description,
	}
	if req.Status == "" {
		req.Status = generic.RedemptionPending
	}
	if rj.CreatedAt != "" {
		at, err := parseFileTime(rj.CreatedAt, loc)
		if err != nil {
			return generic.RedemptionRequest{}, fmt.Errorf("%w: created_at: %v", generic.ErrInvalidInput, err)
		}
		req.CreatedAt = at
	}
	return req, nil
}

func parseFileTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return generic.ParseDate(s, loc)
}
