package service

import (
	"maps"
	"slices"
	"time"

	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/internal/domain/stats"
)

// Analysis is the per-player statistical enrichment computed over the core
// per-game stats (points, rebounds, assists).
type Analysis struct {
	ZScores     map[string]float64 `json:"z_scores"`
	Percentiles stats.Percentiles  `json:"percentiles"`
	Consistency stats.Consistency  `json:"consistency"`
	Outliers    []float64          `json:"outliers"`
}

// Enriched is a canonical record plus its analysis. Analysis is nil for
// sentinel records and for records rejected by the validation gate.
type Enriched struct {
	model.Record
	Analysis *Analysis `json:"analysis,omitempty"`
}

func (e Enriched) clone() Enriched {
	c := Enriched{Record: e.Record.Clone()}
	if e.Analysis != nil {
		a := *e.Analysis
		a.ZScores = maps.Clone(e.Analysis.ZScores)
		a.Outliers = slices.Clone(e.Analysis.Outliers)
		c.Analysis = &a
	}
	return c
}

// Comparison lays out several players side by side. Every metric slice is
// aligned with Players. Players whose fetch failed are listed in Unavailable
// and left out of the views.
type Comparison struct {
	Players         []string             `json:"players"`
	BasicStats      map[string][]float64 `json:"basic_stats"`
	AdvancedMetrics map[string][]float64 `json:"advanced_metrics"`
	Analysis        map[string]*Analysis `json:"performance_analysis"`
	Unavailable     []string             `json:"unavailable,omitempty"`
}

// Report is a persisted comparison.
type Report struct {
	ID         string     `json:"report_id"`
	Players    []string   `json:"players"`
	Comparison Comparison `json:"comparison"`
	Timestamp  time.Time  `json:"report_timestamp"`
	Path       string     `json:"path,omitempty"`
}

// FeatureRequest selects the feature analysis to run. Zero values pick the
// defaults: points per game as target, the configured component count, IQR
// outliers.
type FeatureRequest struct {
	Target        string `json:"target"`
	Components    int    `json:"components"`
	OutlierMethod string `json:"outlier_method"`
}

// FeatureReport is the outcome of AnalyzeFeatures.
type FeatureReport struct {
	Features   features.Table       `json:"features"`
	Scaled     features.Table       `json:"scaled_features"`
	Scaling    features.Scaling     `json:"scaling"`
	Importance []features.Score     `json:"feature_importance"`
	Projection *features.Projection `json:"pca,omitempty"`
	Outliers   map[string][]string  `json:"outliers"`
}
