package export

import "errors"

var (
	// ErrUnsupportedFormat is returned for an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrNotTabular is returned when data does not encode to a JSON object.
	ErrNotTabular = errors.New("export data must encode to an object")
)
