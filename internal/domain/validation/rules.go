package validation

import (
	"maps"
	"slices"

	"github.com/okian/hoopstat/internal/domain/model"
)

// Range is an inclusive [Min, Max] constraint on a numeric column.
type Range struct {
	Min float64
	Max float64
}

// Rules declares the checks applied to one table.
type Rules struct {
	Table    string
	Required []string
	Numeric  []string
	Ranges   map[string]Range
}

// DefaultRules returns the player_stats rule set.
func DefaultRules() Rules {
	return Rules{
		Table:    "player_stats",
		Required: []string{model.PointsPerGame, model.ReboundsPerGame, model.AssistsPerGame},
		Numeric:  slices.Clone(model.StatKeys),
		Ranges: map[string]Range{
			model.PointsPerGame:   {Min: 0, Max: 50},
			model.ReboundsPerGame: {Min: 0, Max: 20},
			model.AssistsPerGame:  {Min: 0, Max: 15},
			model.FieldGoalPct:    {Min: 0, Max: 1},
			model.ThreePointPct:   {Min: 0, Max: 1},
		},
	}
}

// rangeColumns returns the constrained columns in a stable order.
func (r Rules) rangeColumns() []string {
	return slices.Sorted(maps.Keys(r.Ranges))
}

func (r Rules) constraints() map[string][2]float64 {
	out := make(map[string][2]float64, len(r.Ranges))
	for col, rg := range r.Ranges {
		out[col] = [2]float64{rg.Min, rg.Max}
	}
	return out
}
