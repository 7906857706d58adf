// Package features turns canonical player records into a numeric feature
// table and derives scaled, ranked and reduced views of it.
package features

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/internal/domain/stats"
)

// Derived feature columns.
const (
	ScoringEfficiency = "scoring_efficiency"
	PlaymakingScore   = "playmaking_score"
	VersatilityIndex  = "versatility_index"
)

// Epsilon keeps scoring efficiency finite for players without attempts.
const Epsilon = 1e-5

// Scaling selects how Scale normalizes columns.
type Scaling string

const (
	// Standard centres on the mean and divides by the population std.
	Standard Scaling = "standard"
	// MinMax maps each column onto [0, 1].
	MinMax Scaling = "minmax"
)

// ParseScaling converts a configured name into a Scaling.
func ParseScaling(name string) (Scaling, error) {
	switch s := Scaling(name); s {
	case Standard, MinMax:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScaling, name)
	}
}

// Option configures an Engineer.
type Option func(*Engineer)

// WithScaling sets the scaling method.
func WithScaling(s Scaling) Option {
	return func(e *Engineer) { e.scaling = s }
}

// WithNeighbors sets k for the mutual information estimator.
func WithNeighbors(k int) Option {
	return func(e *Engineer) {
		if k > 0 {
			e.neighbors = k
		}
	}
}

// Engineer builds and transforms feature tables. It holds configuration
// only and is safe for concurrent use.
type Engineer struct {
	scaling   Scaling
	neighbors int
}

// New creates an Engineer using standard scaling and k=3 neighbours.
func New(opts ...Option) *Engineer {
	e := &Engineer{scaling: Standard, neighbors: 3}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scaling returns the configured scaling method.
func (e *Engineer) Scaling() Scaling { return e.scaling }

// Extract builds a table with one row per record (sorted by name) holding
// the basic stats, the advanced metrics and the derived features.
func (e *Engineer) Extract(records map[string]model.Record) Table {
	columns := slices.Concat(model.StatKeys, model.AdvancedKeys,
		[]string{ScoringEfficiency, PlaymakingScore, VersatilityIndex})
	t := Table{IDs: slices.Sorted(maps.Keys(records)), Columns: columns}
	t.Values = make([][]float64, len(t.IDs))
	for i, id := range t.IDs {
		r := records[id]
		row := make([]float64, 0, len(columns))
		for _, k := range model.StatKeys {
			row = append(row, r.Stats[k])
		}
		for _, k := range model.AdvancedKeys {
			row = append(row, r.AdvancedMetrics[k])
		}
		ppg, rpg, apg := r.Stats[model.PointsPerGame], r.Stats[model.ReboundsPerGame], r.Stats[model.AssistsPerGame]
		row = append(row,
			ppg/(r.Stats[model.FieldGoalPct]+r.Stats[model.ThreePointPct]+Epsilon),
			apg*(1+ppg/20),
			ppg+rpg+apg,
		)
		t.Values[i] = row
	}
	return t
}

// Scale returns a copy of t with the given columns (all when none are
// named) normalized by the configured method.
func (e *Engineer) Scale(t Table, columns ...string) (Table, error) {
	idx, err := t.resolve(columns)
	if err != nil {
		return Table{}, err
	}
	out := t.Clone()
	if out.Rows() == 0 {
		return out, nil
	}
	for _, j := range idx {
		col := columnAt(out, j)
		switch e.scaling {
		case Standard:
			mean, std := stat.PopMeanStdDev(col, nil)
			if std == 0 {
				std = 1
			}
			for i := range out.Values {
				out.Values[i][j] = (col[i] - mean) / std
			}
		case MinMax:
			lo, hi := slices.Min(col), slices.Max(col)
			for i := range out.Values {
				if hi == lo {
					out.Values[i][j] = 0
					continue
				}
				out.Values[i][j] = (col[i] - lo) / (hi - lo)
			}
		default:
			return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedScaling, e.scaling)
		}
	}
	return out, nil
}

// Score is the dependency of one feature on the target.
type Score struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// Importance ranks every column other than target by its estimated mutual
// information with target, highest first. Ties are ordered by name.
func (e *Engineer) Importance(t Table, target string) ([]Score, error) {
	y, err := t.Column(target)
	if err != nil {
		return nil, err
	}
	ys := unitScale(y)
	scores := make([]Score, 0, len(t.Columns)-1)
	for j, col := range t.Columns {
		if col == target {
			continue
		}
		mi := mutualInformation(unitScale(columnAt(t, j)), ys, e.neighbors)
		scores = append(scores, Score{Feature: col, Score: mi})
	}
	slices.SortFunc(scores, func(a, b Score) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Feature, b.Feature)
	})
	return scores, nil
}

// Projection is a table reduced to its leading principal components.
type Projection struct {
	Table
	ExplainedVariance []float64 `json:"explained_variance_ratio"`
}

// Reduce projects the centred table onto its first k principal components.
// Columns are named PC1..PCk and rows keep their identities.
func (e *Engineer) Reduce(t Table, k int) (Projection, error) {
	n, d := t.Rows(), len(t.Columns)
	if n < 2 {
		return Projection{}, fmt.Errorf("%w: need at least 2 rows, have %d", ErrInsufficientRows, n)
	}
	if k < 1 || k > min(n, d) {
		return Projection{}, fmt.Errorf("%w: k=%d must be in [1, %d]", ErrInvalidComponents, k, min(n, d))
	}

	x := mat.NewDense(n, d, nil)
	for i, row := range t.Values {
		x.SetRow(i, row)
	}
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, x)
		mean := stat.Mean(col, nil)
		for i := range col {
			x.Set(i, j, col[i]-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return Projection{}, ErrDecomposition
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	var proj mat.Dense
	proj.Mul(x, vecs.Slice(0, d, 0, k))

	out := Projection{Table: Table{IDs: slices.Clone(t.IDs), Columns: make([]string, k), Values: make([][]float64, n)}}
	for c := 0; c < k; c++ {
		out.Columns[c] = fmt.Sprintf("PC%d", c+1)
	}
	for i := 0; i < n; i++ {
		out.Values[i] = mat.Row(nil, i, &proj)
	}

	total := floats.Sum(vars)
	out.ExplainedVariance = make([]float64, k)
	for c := 0; c < k; c++ {
		if total > 0 {
			out.ExplainedVariance[c] = vars[c] / total
		}
	}
	return out, nil
}

// DetectOutliers returns, for every column, the IDs of rows flagged by the
// named method ("iqr" or "zscore"). Column z-scores use the sample standard
// deviation.
func (e *Engineer) DetectOutliers(t Table, method string) (map[string][]string, error) {
	m, err := stats.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(t.Columns))
	for j, col := range t.Columns {
		mask, err := stats.OutlierMask(columnAt(t, j), m, stats.Sample)
		if err != nil {
			return nil, err
		}
		ids := []string{}
		for i, flagged := range mask {
			if flagged {
				ids = append(ids, t.IDs[i])
			}
		}
		out[col] = ids
	}
	return out, nil
}

func columnAt(t Table, j int) []float64 {
	out := make([]float64, len(t.Values))
	for i, row := range t.Values {
		out[i] = row[j]
	}
	return out
}

// unitScale divides by the population std without centring.
func unitScale(v []float64) []float64 {
	out := slices.Clone(v)
	if len(v) == 0 {
		return out
	}
	std := math.Sqrt(stat.PopVariance(v, nil))
	if std == 0 {
		return out
	}
	for i := range out {
		out[i] /= std
	}
	return out
}
