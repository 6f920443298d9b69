package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER THRESHOLDS
// =============================================================================

// TierKey identifies a tier. Order comes from the table, not the key.
type TierKey string

// TierThreshold is the minimum cycle-earned points needed for a tier.
type TierThreshold struct {
	Key           TierKey
	Name          string
	MinimumPoints Points
}

// TierTable is an ordered, validated list of tiers, lowest first.
// Immutable after construction.
type TierTable struct {
	tiers []TierThreshold
	index map[TierKey]int
}

// NewTierTable validates thresholds and builds a table. The first tier must
// start at 0 and minimums must strictly increase.
func NewTierTable(thresholds []TierThreshold) (*TierTable, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierTable)
	}
	if thresholds[0].MinimumPoints != 0 {
		return nil, fmt.Errorf("%w: lowest tier %q must start at 0, got %d",
			ErrInvalidTierTable, thresholds[0].Key, thresholds[0].MinimumPoints)
	}

	t := &TierTable{
		tiers: make([]TierThreshold, len(thresholds)),
		index: make(map[TierKey]int, len(thresholds)),
	}
	copy(t.tiers, thresholds)

	for i, th := range t.tiers {
		if th.Key == "" {
			return nil, fmt.Errorf("%w: tier %d has empty key", ErrInvalidTierTable, i)
		}
		if _, dup := t.index[th.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidTierTable, th.Key)
		}
		if i > 0 && th.MinimumPoints <= t.tiers[i-1].MinimumPoints {
			return nil, fmt.Errorf("%w: %q (%d) must be above %q (%d)", ErrInvalidTierTable,
				th.Key, th.MinimumPoints, t.tiers[i-1].Key, t.tiers[i-1].MinimumPoints)
		}
		if th.Name == "" {
			t.tiers[i].Name = string(th.Key)
		}
		t.index[th.Key] = i
	}
	return t, nil
}

// MustTierTable is NewTierTable that panics. Use for static configuration.
func MustTierTable(thresholds []TierThreshold) *TierTable {
	t, err := NewTierTable(thresholds)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of tiers.
func (t *TierTable) Len() int { return len(t.tiers) }

// Thresholds returns a copy of the tiers, lowest first.
func (t *TierTable) Thresholds() []TierThreshold {
	out := make([]TierThreshold, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Base is the lowest tier; every member qualifies for it.
func (t *TierTable) Base() TierThreshold { return t.tiers[0] }

// Top is the highest tier.
func (t *TierTable) Top() TierThreshold { return t.tiers[len(t.tiers)-1] }

// Lookup returns the threshold for key.
func (t *TierTable) Lookup(key TierKey) (TierThreshold, bool) {
	i, ok := t.index[key]
	if !ok {
		return TierThreshold{}, false
	}
	return t.tiers[i], true
}

// Order returns the position of key (0 = base), or -1 if unknown.
func (t *TierTable) Order(key TierKey) int {
	i, ok := t.index[key]
	if !ok {
		return -1
	}
	return i
}

// TierForPoints returns the highest tier whose minimum is <= points.
// Negative totals fall to the base tier.
func (t *TierTable) TierForPoints(points Points) TierKey {
	key := t.tiers[0].Key
	for _, th := range t.tiers[1:] {
		if th.MinimumPoints > points {
			break
		}
		key = th.Key
	}
	return key
}

// NextTier returns the tier immediately above key, or false at the top or
// for an unknown key.
func (t *TierTable) NextTier(key TierKey) (TierThreshold, bool) {
	i, ok := t.index[key]
	if !ok || i+1 >= len(t.tiers) {
		return TierThreshold{}, false
	}
	return t.tiers[i+1], true
}

// PointsToNextTier returns max(0, next.MinimumPoints - points), or 0 when key
// is the top tier.
func (t *TierTable) PointsToNextTier(points Points, key TierKey) Points {
	next, ok := t.NextTier(key)
	if !ok {
		return 0
	}
	return (next.MinimumPoints - points).Max(0)
}

// =============================================================================
// PROGRESS - For progress-bar displays
// =============================================================================

// TierProgress describes how far points are between their tier and the next.
type TierProgress struct {
	Tier       TierKey
	NextTier   TierKey // empty at the top tier
	Points     Points
	Remaining  Points
	Percentage decimal.Decimal // 0..100, 2dp; 100 at the top tier
}

// Progress computes progress from points toward the next tier.
func (t *TierTable) Progress(points Points) TierProgress {
	key := t.TierForPoints(points)
	p := TierProgress{
		Tier:       key,
		Points:     points,
		Remaining:  t.PointsToNextTier(points, key),
		Percentage: decimal.NewFromInt(100),
	}
	next, ok := t.NextTier(key)
	if !ok {
		return p
	}
	p.NextTier = next.Key

	cur, _ := t.Lookup(key)
	span := decimal.NewFromInt(int64(next.MinimumPoints - cur.MinimumPoints))
	into := decimal.NewFromInt(int64((points - cur.MinimumPoints).Max(0)))
	p.Percentage = into.Div(span).Mul(decimal.NewFromInt(100)).Round(2)
	return p
}
