// Package retry runs fallible operations under a bounded exponential backoff
// policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/hoopstat/pkg/logger"
)

// Policy bounds one guarded call.
type Policy struct {
	// MaxAttempts is the total number of tries, at least 1.
	MaxAttempts int
	// InitialDelay is the wait before the second try, greater than 0.
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after each retry, at least 1.
	BackoffFactor float64
	// Retryable decides whether a failure may be retried. Nil means
	// DefaultRetryable.
	Retryable func(error) bool
	// Logger receives one warning per retry. Nil discards.
	Logger logger.Logger
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns 3 attempts starting at 1s and doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2}
}

// DefaultRetryable retries everything except permanent errors and
// cancellation. Deadline errors stay retryable because per-request client
// timeouts report themselves as context.DeadlineExceeded; Do stops on its own
// once the caller's context is done.
func DefaultRetryable(err error) bool {
	return !errors.Is(err, ErrPermanent) && !errors.Is(err, context.Canceled)
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts %d < 1", ErrInvalidPolicy, p.MaxAttempts)
	case p.InitialDelay <= 0:
		return fmt.Errorf("%w: initial delay %s <= 0", ErrInvalidPolicy, p.InitialDelay)
	case p.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor %g < 1", ErrInvalidPolicy, p.BackoffFactor)
	}
	return nil
}

// Do calls op until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned unchanged. A
// context cancelled during a wait returns the context error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}
	log := p.Logger
	if log == nil {
		log = logger.Nop()
	}

	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.MaxAttempts || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}

		log.Warn(ctx, "retrying after failure",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", p.MaxAttempts),
			logger.String("error_type", fmt.Sprintf("%T", err)),
			logger.Error(err),
			logger.Duration("delay", delay))
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		if serr := sleep(ctx, delay); serr != nil {
			return zero, serr
		}
		delay = time.Duration(float64(delay) * p.BackoffFactor)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
