package provider

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/okian/hoopstat/internal/domain/model"
)

// statFields maps provider payload fields to canonical stat keys.
var statFields = map[string]string{
	"ppg":       model.PointsPerGame,
	"rpg":       model.ReboundsPerGame,
	"apg":       model.AssistsPerGame,
	"fg_pct":    model.FieldGoalPct,
	"three_pct": model.ThreePointPct,
}

// advancedFields maps provider payload fields to canonical advanced metric keys.
var advancedFields = map[string]string{
	"per":    model.PlayerEfficiency,
	"ts_pct": model.TrueShootingPct,
}

// Normalize converts a raw provider payload into a canonical record. Absent,
// non-numeric or non-finite fields become 0 and are listed in Defaulted.
// Numeric strings are accepted. Unknown fields are dropped. The provider's
// name wins over the requested one when present.
func Normalize(name string, raw map[string]any) model.Record {
	if s, ok := raw["name"].(string); ok && strings.TrimSpace(s) != "" {
		name = s
	}
	team, _ := raw["team"].(string)

	var defaulted []string
	extract := func(fields map[string]string) map[string]float64 {
		out := make(map[string]float64, len(fields))
		for src, key := range fields {
			v, ok := number(raw[src])
			if !ok {
				defaulted = append(defaulted, key)
				continue
			}
			out[key] = v
		}
		return out
	}
	stats := extract(statFields)
	advanced := extract(advancedFields)

	return model.NewRecord(name, team, stats, advanced, defaulted)
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
