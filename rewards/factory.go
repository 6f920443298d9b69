/*
Package rewards provides the reference program as a JSON definition.

These helpers construct JSON strings directly so the factory package can
parse them without an import cycle.

USAGE:
  import "github.com/warp/club-loyalty/rewards"

  jsonStr := rewards.ReferenceProgramJSON()
  program, err := factory.ParseProgram(jsonStr)
*/
package rewards

import (
	"encoding/json"
)

// ReferenceProgramJSON returns the reference program definition.
func ReferenceProgramJSON() string {
	return ProgramJSON(ReferenceProgramID, ReferenceProgramName, int(AcademicYearAnchor.Month), AcademicYearAnchor.Day, nil)
}

// ProgramJSON returns a program definition with the reference tier names
// and the given anchor. thresholds overrides the reference minimums when
// non-nil and must have one entry per reference tier.
func ProgramJSON(id, name string, anchorMonth, anchorDay int, thresholds []int64) string {
	var tiers []map[string]interface{}
	for i, th := range ReferenceTiers() {
		min := int64(th.MinimumPoints)
		if thresholds != nil && i < len(thresholds) {
			min = thresholds[i]
		}
		tiers = append(tiers, map[string]interface{}{
			"key":            string(th.Key),
			"name":           th.Name,
			"minimum_points": min,
		})
	}
	pj := map[string]interface{}{
		"id":   id,
		"name": name,
		"cycle_anchor": map[string]interface{}{
			"month": anchorMonth,
			"day":   anchorDay,
		},
		"tiers": tiers,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
