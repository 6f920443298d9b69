package rewards

import (
	"time"

	"github.com/warp/club-loyalty/generic"
)

// =============================================================================
// REFERENCE PROGRAM
// =============================================================================

const (
	ReferenceProgramID   = "club-rewards"
	ReferenceProgramName = "Club Rewards"
)

// AcademicYearAnchor starts every cycle on September 1 (UTC).
var AcademicYearAnchor = generic.CycleAnchor{Month: time.September, Day: 1}

// ReferenceTiers is the five-tier reference table, lowest first.
func ReferenceTiers() []generic.TierThreshold {
	return []generic.TierThreshold{
		{Key: TierBronze, Name: "Bronze", MinimumPoints: 0},
		{Key: TierSilver, Name: "Silver", MinimumPoints: 1000},
		{Key: TierGold, Name: "Gold", MinimumPoints: 5000},
		{Key: TierPlatinum, Name: "Platinum", MinimumPoints: 10000},
		{Key: TierDiamond, Name: "Diamond", MinimumPoints: 20000},
	}
}

// ReferenceProgram builds the reference program. The static configuration
// is known-good, so a failure here is a bug.
func ReferenceProgram() *generic.Program {
	p, err := generic.NewProgram(ReferenceProgramID, ReferenceProgramName, AcademicYearAnchor, ReferenceTiers())
	if err != nil {
		panic(err)
	}
	return p
}
