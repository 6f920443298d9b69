package generic

import (
	"fmt"

	"go.uber.org/zap"
)

// Program is one loyalty program's construction-time configuration: where
// cycles start and which tiers exist. It does not change at runtime.
type Program struct {
	ID     string
	Name   string
	Anchor CycleAnchor
	Table  *TierTable
}

// NewProgram validates the anchor and tier table. Configuration errors are
// programmer errors; callers should fail fast on them.
func NewProgram(id, name string, anchor CycleAnchor, tiers []TierThreshold) (*Program, error) {
	if err := anchor.Validate(); err != nil {
		return nil, fmt.Errorf("program %q: %w", id, err)
	}
	table, err := NewTierTable(tiers)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", id, err)
	}
	return &Program{ID: id, Name: name, Anchor: anchor, Table: table}, nil
}

// NewResolver builds a TierResolver for this program.
func (p *Program) NewResolver(ledger LedgerProvider, clock Clock, logger *zap.Logger) *TierResolver {
	return NewTierResolver(ledger, p.Anchor, p.Table, clock, logger)
}

// NewAggregator builds a CycleAggregator for this program.
func (p *Program) NewAggregator(ledger LedgerProvider, logger *zap.Logger) *CycleAggregator {
	return NewCycleAggregator(ledger, p.Anchor, logger)
}
