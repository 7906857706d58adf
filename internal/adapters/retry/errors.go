package retry

import "errors"

var (
	// ErrInvalidPolicy is returned before any attempt when the policy is malformed.
	ErrInvalidPolicy = errors.New("invalid retry policy")
	// ErrPermanent marks an error that must not be retried.
	ErrPermanent = errors.New("permanent failure")
)

type permanentError struct{ err error }

func (p *permanentError) Error() string   { return p.err.Error() }
func (p *permanentError) Unwrap() []error { return []error{p.err, ErrPermanent} }

// Permanent marks err as non-retryable under the default predicate. The
// original error stays reachable through errors.Is and errors.As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
