package model

// ValidationSummary describes what a validation run checked.
type ValidationSummary struct {
	Table            string                `json:"table"`
	RecordCount      int                   `json:"total_records"`
	CheckedColumns   []string              `json:"numeric_columns"`
	RangeConstraints map[string][2]float64 `json:"range_constraints"`
}

// ValidationReport is the outcome of one validation call. Violations keep the
// order in which they were found.
type ValidationReport struct {
	Valid      bool              `json:"is_valid"`
	Violations []string          `json:"errors"`
	Summary    ValidationSummary `json:"summary"`
}
