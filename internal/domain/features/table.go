package features

import (
	"fmt"
	"slices"
)

// Table is a row-major numeric feature table. IDs are unique and every row
// has one value per column.
type Table struct {
	IDs     []string    `json:"ids"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Rows returns the number of rows.
func (t Table) Rows() int { return len(t.IDs) }

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int { return slices.Index(t.Columns, name) }

// Column returns a copy of the named column.
func (t Table) Column(name string) ([]float64, error) {
	j := t.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]float64, len(t.Values))
	for i, row := range t.Values {
		out[i] = row[j]
	}
	return out, nil
}

// Clone returns a deep copy.
func (t Table) Clone() Table {
	c := Table{IDs: slices.Clone(t.IDs), Columns: slices.Clone(t.Columns), Values: make([][]float64, len(t.Values))}
	for i, row := range t.Values {
		c.Values[i] = slices.Clone(row)
	}
	return c
}

// Records renders the table as one map per row with the identity under "player".
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.IDs))
	for i, id := range t.IDs {
		rec := make(map[string]any, len(t.Columns)+1)
		rec["player"] = id
		for j, col := range t.Columns {
			rec[col] = t.Values[i][j]
		}
		out[i] = rec
	}
	return out
}

func (t Table) resolve(columns []string) ([]int, error) {
	if len(columns) == 0 {
		idx := make([]int, len(t.Columns))
		for j := range idx {
			idx[j] = j
		}
		return idx, nil
	}
	idx := make([]int, 0, len(columns))
	for _, c := range columns {
		j := t.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		idx = append(idx, j)
	}
	return idx, nil
}
