/*
Package rewards provides the club-specific layer on top of the generic
tier engine.

PURPOSE:
  The generic package knows nothing about Bronze or Gold; it only sees an
  ordered table of thresholds. This package supplies the reference club
  program (five tiers on an academic-year cycle), the benefits each tier
  unlocks, and the purchase/event earning conversions used by the demo
  scenarios.

TIERS (reference configuration):
  bronze:    0 points      (everyone)
  silver:    1,000 points
  gold:      5,000 points
  platinum:  10,000 points
  diamond:   20,000 points

CYCLE:
  Earning cycles start on September 1, the start of the academic year.
  Cycle 2026 runs 2026-09-01 .. 2027-08-31.

EXAMPLE FLOW:
  1. Member buys club merch for $45.50 -> 45 points (purchase)
  2. Member attends the welcome social -> 100 points (event)
  3. Member reaches 1,000 points in cycle 2026 -> Silver
  4. Silver stays active through the end of cycle 2027

SEE ALSO:
  - program.go: Reference program construction
  - factory.go: Reference program JSON
  - earning.go: Purchase/event point conversion
  - generic/resolver.go: Carryover rule
*/
package rewards

import (
	"github.com/shopspring/decimal"
	"github.com/warp/club-loyalty/generic"
)

// =============================================================================
// TIER KEYS
// =============================================================================

const (
	TierBronze   generic.TierKey = "bronze"
	TierSilver   generic.TierKey = "silver"
	TierGold     generic.TierKey = "gold"
	TierPlatinum generic.TierKey = "platinum"
	TierDiamond  generic.TierKey = "diamond"
)

// =============================================================================
// BENEFITS
// =============================================================================

// Benefit is something a tier unlocks.
type Benefit struct {
	Name        string
	Description string
}

// TierPerks is the full set of perks attached to a tier.
type TierPerks struct {
	Tier generic.TierKey

	// DiscountPercent applies to club merch and event tickets.
	DiscountPercent decimal.Decimal

	// PointsMultiplier scales purchase points.
	PointsMultiplier decimal.Decimal

	Benefits []Benefit
}

var (
	benefitNewsletter = Benefit{Name: "Newsletter", Description: "Monthly club newsletter and event calendar"}
	benefitEarlyRSVP  = Benefit{Name: "Early RSVP", Description: "RSVP to capped events 48 hours early"}
	benefitGuestPass  = Benefit{Name: "Guest Pass", Description: "Bring one non-member guest per semester"}
	benefitLounge     = Benefit{Name: "Lounge Access", Description: "Access to the members' study lounge"}
	benefitGala       = Benefit{Name: "Gala Invite", Description: "Complimentary ticket to the end-of-year gala"}
)

var perksByTier = map[generic.TierKey]TierPerks{
	TierBronze: {
		Tier:             TierBronze,
		DiscountPercent:  decimal.Zero,
		PointsMultiplier: decimal.NewFromInt(1),
		Benefits:         []Benefit{benefitNewsletter},
	},
	TierSilver: {
		Tier:             TierSilver,
		DiscountPercent:  decimal.NewFromInt(5),
		PointsMultiplier: decimal.RequireFromString("1.1"),
		Benefits:         []Benefit{benefitNewsletter, benefitEarlyRSVP},
	},
	TierGold: {
		Tier:             TierGold,
		DiscountPercent:  decimal.NewFromInt(10),
		PointsMultiplier: decimal.RequireFromString("1.25"),
		Benefits:         []Benefit{benefitNewsletter, benefitEarlyRSVP, benefitGuestPass},
	},
	TierPlatinum: {
		Tier:             TierPlatinum,
		DiscountPercent:  decimal.NewFromInt(15),
		PointsMultiplier: decimal.RequireFromString("1.5"),
		Benefits:         []Benefit{benefitNewsletter, benefitEarlyRSVP, benefitGuestPass, benefitLounge},
	},
	TierDiamond: {
		Tier:             TierDiamond,
		DiscountPercent:  decimal.NewFromInt(20),
		PointsMultiplier: decimal.NewFromInt(2),
		Benefits:         []Benefit{benefitNewsletter, benefitEarlyRSVP, benefitGuestPass, benefitLounge, benefitGala},
	},
}

// PerksFor returns the perks of tier. Unknown tiers (custom programs) get the
// bronze perks.
func PerksFor(tier generic.TierKey) TierPerks {
	if p, ok := perksByTier[tier]; ok {
		return p
	}
	p := perksByTier[TierBronze]
	p.Tier = tier
	return p
}

// BenefitsFor returns the benefits unlocked by tier.
func BenefitsFor(tier generic.TierKey) []Benefit {
	return PerksFor(tier).Benefits
}
