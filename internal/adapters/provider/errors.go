package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is returned when a response body is not a JSON object.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrCircuitOpen is returned when the breaker rejects a request.
	ErrCircuitOpen = errors.New("provider circuit open")

	// errOutage marks failures where no response was received at all.
	errOutage = errors.New("provider unreachable")
)

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Transient reports whether the status is worth retrying (429 and 5xx).
func (e *StatusError) Transient() bool {
	return e.Code == 429 || e.Code >= 500
}
