// Package model contains domain models passed between layers.
package model

import (
	"math"
	"slices"
)

// Basic statistic keys.
const (
	PointsPerGame   = "points_per_game"
	ReboundsPerGame = "rebounds_per_game"
	AssistsPerGame  = "assists_per_game"
	FieldGoalPct    = "field_goal_percentage"
	ThreePointPct   = "three_point_percentage"
)

// Advanced metric keys.
const (
	PlayerEfficiency = "player_efficiency_rating"
	TrueShootingPct  = "true_shooting_percentage"
)

// UnknownTeam is used when the provider does not report a team.
const UnknownTeam = "Unknown"

var (
	// StatKeys lists the basic statistics carried by every record, in display order.
	StatKeys = []string{PointsPerGame, ReboundsPerGame, AssistsPerGame, FieldGoalPct, ThreePointPct}
	// AdvancedKeys lists the advanced metrics carried by every record.
	AdvancedKeys = []string{PlayerEfficiency, TrueShootingPct}
	// CoreKeys are the per-game counting stats used for per-player analysis.
	CoreKeys = []string{PointsPerGame, ReboundsPerGame, AssistsPerGame}
)

// Record is the canonical per-player statistics record used by every stage.
//
// Every key in StatKeys and AdvancedKeys is present with a finite value;
// missing data is 0. Defaulted names the keys that were absent from the
// provider payload so a legitimate zero can be told apart from a missing one.
// Available is false only for the sentinel returned when a fetch fails.
type Record struct {
	Name            string             `json:"name"`
	Team            string             `json:"team"`
	Stats           map[string]float64 `json:"stats"`
	AdvancedMetrics map[string]float64 `json:"advanced_metrics"`
	Available       bool               `json:"available"`
	Defaulted       []string           `json:"defaulted,omitempty"`
}

// NewRecord builds an available record, filling every known key and
// replacing non-finite values with 0. Unknown keys are dropped.
func NewRecord(name, team string, stats, advanced map[string]float64, defaulted []string) Record {
	if team == "" {
		team = UnknownTeam
	}
	r := Record{
		Name:            name,
		Team:            team,
		Stats:           fill(StatKeys, stats),
		AdvancedMetrics: fill(AdvancedKeys, advanced),
		Available:       true,
	}
	if len(defaulted) > 0 {
		r.Defaulted = slices.Clone(defaulted)
		slices.Sort(r.Defaulted)
	}
	return r
}

// Empty returns the sentinel record for a player whose fetch failed.
func Empty(name string) Record {
	r := NewRecord(name, UnknownTeam, nil, nil, nil)
	r.Available = false
	return r
}

// Value returns the named statistic or advanced metric, 0 when unknown.
func (r Record) Value(key string) float64 {
	if v, ok := r.Stats[key]; ok {
		return v
	}
	return r.AdvancedMetrics[key]
}

// Core returns the values of CoreKeys in order.
func (r Record) Core() []float64 {
	out := make([]float64, len(CoreKeys))
	for i, k := range CoreKeys {
		out[i] = r.Stats[k]
	}
	return out
}

// Clone returns a deep copy so stages never share maps.
func (r Record) Clone() Record {
	c := r
	c.Stats = fill(StatKeys, r.Stats)
	c.AdvancedMetrics = fill(AdvancedKeys, r.AdvancedMetrics)
	c.Defaulted = slices.Clone(r.Defaulted)
	return c
}

func fill(keys []string, src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		v := src[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[k] = v
	}
	return out
}
