/*
Package factory provides JSON/YAML to Go program conversion.

PURPOSE:
  Converts loyalty program definitions into a validated generic.Program.
  Club officers edit the anchor and tier table as a file; the factory turns
  it into the structs the engine runs on, and refuses anything malformed
  before the server starts.

JSON SCHEMA:
  {
    "id": "club-rewards",
    "name": "Club Rewards",
    "cycle_anchor": {"month": 9, "day": 1, "timezone": "UTC"},
    "tiers": [
      {"key": "bronze",   "name": "Bronze",   "minimum_points": 0},
      {"key": "silver",   "name": "Silver",   "minimum_points": 1000},
      {"key": "gold",     "name": "Gold",     "minimum_points": 5000}
    ]
  }

  The YAML form uses the same keys.

VALIDATION (fail fast):
  - anchor month 1..12, day valid in a non-leap year (no Feb 29)
  - timezone must load (empty = UTC)
  - tiers non-empty, first at 0, strictly increasing, unique keys

USAGE:
  program, err := factory.ParseProgram(jsonString)
  program, err := factory.ParseProgramYAML(yamlString)
  program, err := factory.LoadProgramFile("program.yaml")

SEE ALSO:
  - generic/program.go: Program type
  - rewards/factory.go: Reference program JSON
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warp/club-loyalty/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// ProgramJSON is the file representation of a program.
type ProgramJSON struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	CycleAnchor AnchorJSON `json:"cycle_anchor" yaml:"cycle_anchor"`
	Tiers       []TierJSON `json:"tiers" yaml:"tiers"`
}

// AnchorJSON is the month/day every cycle starts on.
type AnchorJSON struct {
	Month    int    `json:"month" yaml:"month"`
	Day      int    `json:"day" yaml:"day"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// TierJSON is one tier threshold.
type TierJSON struct {
	Key           string `json:"key" yaml:"key"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	MinimumPoints int64  `json:"minimum_points" yaml:"minimum_points"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseProgram parses a JSON program definition.
func ParseProgram(jsonStr string) (*generic.Program, error) {
	var pj ProgramJSON
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pj); err != nil {
		return nil, fmt.Errorf("failed to parse program JSON: %w", err)
	}
	return FromJSON(pj)
}

// ParseProgramYAML parses a YAML program definition.
func ParseProgramYAML(yamlStr string) (*generic.Program, error) {
	var pj ProgramJSON
	dec := yaml.NewDecoder(strings.NewReader(yamlStr))
	dec.KnownFields(true)
	if err := dec.Decode(&pj); err != nil {
		return nil, fmt.Errorf("failed to parse program YAML: %w", err)
	}
	return FromJSON(pj)
}

// LoadProgramFile reads a program from disk, picking the decoder from the
// file extension (.json, .yaml, .yml).
func LoadProgramFile(path string) (*generic.Program, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseProgram(string(b))
	case ".yaml", ".yml":
		return ParseProgramYAML(string(b))
	default:
		return nil, fmt.Errorf("unsupported program file extension %q", filepath.Ext(path))
	}
}

// FromJSON converts ProgramJSON into a validated generic.Program.
func FromJSON(pj ProgramJSON) (*generic.Program, error) {
	anchor, err := parseAnchor(pj.CycleAnchor)
	if err != nil {
		return nil, err
	}

	tiers := make([]generic.TierThreshold, 0, len(pj.Tiers))
	for _, tj := range pj.Tiers {
		tiers = append(tiers, generic.TierThreshold{
			Key:           generic.TierKey(strings.TrimSpace(tj.Key)),
			Name:          tj.Name,
			MinimumPoints: generic.Points(tj.MinimumPoints),
		})
	}

	return generic.NewProgram(pj.ID, pj.Name, anchor, tiers)
}

// ToJSON converts a program back to its file representation.
func ToJSON(p *generic.Program) ProgramJSON {
	pj := ProgramJSON{
		ID:   p.ID,
		Name: p.Name,
		CycleAnchor: AnchorJSON{
			Month: int(p.Anchor.Month),
			Day:   p.Anchor.Day,
		},
	}
	if p.Anchor.Location != nil {
		pj.CycleAnchor.Timezone = p.Anchor.Location.String()
	}
	for _, th := range p.Table.Thresholds() {
		pj.Tiers = append(pj.Tiers, TierJSON{
			Key:           string(th.Key),
			Name:          th.Name,
			MinimumPoints: int64(th.MinimumPoints),
		})
	}
	return pj
}

func parseAnchor(aj AnchorJSON) (generic.CycleAnchor, error) {
	anchor := generic.CycleAnchor{Month: time.Month(aj.Month), Day: aj.Day}
	if aj.Timezone != "" {
		loc, err := time.LoadLocation(aj.Timezone)
		if err != nil {
			return generic.CycleAnchor{}, fmt.Errorf("%w: timezone %q: %v", generic.ErrInvalidAnchor, aj.Timezone, err)
		}
		anchor.Location = loc
	}
	return anchor, nil
}
