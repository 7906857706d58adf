package features

import (
	"errors"

	"github.com/okian/hoopstat/internal/domain/stats"
)

var (
	// ErrUnknownColumn is returned when a named column is not in the table.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrInvalidComponents is returned for a projection size outside [1, min(rows, cols)].
	ErrInvalidComponents = errors.New("invalid number of components")
	// ErrUnsupportedScaling is returned for a scaling method other than standard or minmax.
	ErrUnsupportedScaling = errors.New("unsupported scaling method")
	// ErrInsufficientRows is returned when a table has too few rows for the operation.
	ErrInsufficientRows = errors.New("insufficient rows")
	// ErrDecomposition is returned when the principal component decomposition fails.
	ErrDecomposition = errors.New("principal component decomposition failed")

	// ErrUnsupportedMethod is shared with stats so callers can match either.
	ErrUnsupportedMethod = stats.ErrUnsupportedMethod
)
