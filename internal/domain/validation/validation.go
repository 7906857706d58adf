// Package validation checks tabular player statistics against declarative
// rules and reports every violation instead of failing on the first.
package validation

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/pkg/logger"
)

// Row is one record in tabular form: column name to value.
type Row map[string]any

// identityColumns name the row, first match wins.
var identityColumns = []string{"player", "name"}

// Option configures a Validator.
type Option func(*Validator)

// WithRules replaces the default rule set.
func WithRules(r Rules) Option {
	return func(v *Validator) { v.rules = r }
}

// WithLogger sets the sink for validation outcomes.
func WithLogger(l logger.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// Validator applies Rules to records. It is safe for concurrent use.
type Validator struct {
	rules Rules
	log   logger.Logger
}

// New creates a Validator with DefaultRules.
func New(opts ...Option) *Validator {
	v := &Validator{rules: DefaultRules(), log: logger.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Rules returns the active rule set.
func (v *Validator) Rules() Rules { return v.rules }

// Validate flattens records into rows (one per player, sorted by name) and
// validates them.
func (v *Validator) Validate(ctx context.Context, records map[string]model.Record) model.ValidationReport {
	names := slices.Sorted(maps.Keys(records))
	rows := make([]Row, 0, len(names))
	for _, name := range names {
		rows = append(rows, RecordRow(name, records[name]))
	}
	return v.ValidateRows(ctx, rows)
}

// RecordRow converts a record to a row keyed by stat and metric names.
func RecordRow(name string, r model.Record) Row {
	row := Row{"player": name, "team": r.Team}
	for k, val := range r.Stats {
		row[k] = val
	}
	for k, val := range r.AdvancedMetrics {
		row[k] = val
	}
	return row
}

// ValidateJSON decodes raw into rows and validates them. Two shapes are
// accepted: an array of flat row objects, or an object keyed by player whose
// values are either flat rows or {"stats": {...}, "advanced_metrics": {...}}.
// Input that cannot be turned into a table yields a single violation.
func (v *Validator) ValidateJSON(ctx context.Context, raw []byte) model.ValidationReport {
	rows, err := decodeRows(raw)
	if err != nil {
		report := v.newReport(0)
		report.Violations = append(report.Violations, fmt.Sprintf("invalid input: %v", err))
		return v.finish(ctx, report)
	}
	return v.ValidateRows(ctx, rows)
}

// ValidateRows applies every rule and collects all violations in order:
// required columns, then numeric columns, then range constraints.
func (v *Validator) ValidateRows(ctx context.Context, rows []Row) model.ValidationReport {
	report := v.newReport(len(rows))

	present := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			present[col] = true
		}
	}

	var missing []string
	for _, col := range v.rules.Required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		report.Violations = append(report.Violations,
			fmt.Sprintf("missing required columns: [%s]", strings.Join(missing, " ")))
	}

	for _, col := range v.rules.Numeric {
		if !present[col] {
			continue
		}
		ok := true
		for _, row := range rows {
			if _, isNum := toFloat(row[col]); !isNum {
				ok = false
				break
			}
		}
		if !ok {
			report.Violations = append(report.Violations, fmt.Sprintf("non-numeric values in column %s", col))
		}
	}

	// Numeric values are range checked even when other cells in the column
	// are not numeric.
	for _, col := range v.rules.rangeColumns() {
		if !present[col] {
			continue
		}
		rg := v.rules.Ranges[col]
		for i, row := range rows {
			val, ok := toFloat(row[col])
			if !ok || math.IsNaN(val) {
				continue
			}
			if val < rg.Min || val > rg.Max {
				report.Violations = append(report.Violations, fmt.Sprintf("%s=%s out of range [%s, %s] for %s",
					col, fmtNum(val), fmtNum(rg.Min), fmtNum(rg.Max), identity(row, i)))
			}
		}
	}

	return v.finish(ctx, report)
}

func (v *Validator) newReport(n int) model.ValidationReport {
	return model.ValidationReport{
		Violations: []string{},
		Summary: model.ValidationSummary{
			Table:            v.rules.Table,
			RecordCount:      n,
			CheckedColumns:   slices.Clone(v.rules.Numeric),
			RangeConstraints: v.rules.constraints(),
		},
	}
}

func (v *Validator) finish(ctx context.Context, report model.ValidationReport) model.ValidationReport {
	report.Valid = len(report.Violations) == 0
	if report.Valid {
		v.log.Info(ctx, "validation passed",
			logger.String("table", report.Summary.Table),
			logger.Int("records", report.Summary.RecordCount))
	} else {
		v.log.Error(ctx, "validation failed",
			logger.String("table", report.Summary.Table),
			logger.Int("records", report.Summary.RecordCount),
			logger.Strings("violations", report.Violations))
	}
	return report
}

func identity(row Row, i int) string {
	for _, col := range identityColumns {
		if s, ok := row[col].(string); ok && s != "" {
			return fmt.Sprintf("player %q", s)
		}
	}
	return fmt.Sprintf("row %d", i)
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toFloat reports whether v is numeric. A missing value (nil) counts as
// numeric and converts to NaN, matching an empty cell in a numeric column.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func decodeRows(raw []byte) ([]Row, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	switch d := doc.(type) {
	case []any:
		rows := make([]Row, 0, len(d))
		for i, item := range d {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("row %d is not an object", i)
			}
			rows = append(rows, Row(obj))
		}
		return rows, nil
	case map[string]any:
		names := slices.Sorted(maps.Keys(d))
		rows := make([]Row, 0, len(names))
		for _, name := range names {
			obj, ok := d[name].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %q is not an object", name)
			}
			rows = append(rows, flatten(name, obj))
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("expected an object or array, got %T", doc)
	}
}

// flatten lifts nested stats and advanced_metrics objects into one row.
func flatten(name string, obj map[string]any) Row {
	row := Row{"player": name}
	for k, val := range obj {
		nested, ok := val.(map[string]any)
		if ok && (k == "stats" || k == "advanced_metrics") {
			for nk, nv := range nested {
				row[nk] = nv
			}
			continue
		}
		row[k] = val
	}
	return row
}
