package stats

import "errors"

var (
	// ErrInsufficientData is returned when a sequence is too short for the statistic.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrUnsupportedMethod is returned for an unknown outlier detection method.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrZeroVariance is returned when a statistic is undefined for constant input.
	ErrZeroVariance = errors.New("zero variance")
	// ErrInvalidLevel is returned for a confidence level outside (0, 1).
	ErrInvalidLevel = errors.New("confidence level must be in (0, 1)")
	// ErrLengthMismatch is returned when paired sequences differ in length.
	ErrLengthMismatch = errors.New("sequences differ in length")
)
