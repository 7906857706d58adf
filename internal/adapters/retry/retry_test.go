package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/hoopstat/internal/adapters/retry"
	. "github.com/smartystreets/goconvey/convey"
)

var errTransient = errors.New("connection reset")

// recorder collects requested waits instead of sleeping.
type recorder struct{ waits []time.Duration }

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func (r *recorder) total() time.Duration {
	var sum time.Duration
	for _, d := range r.waits {
		sum += d
	}
	return sum
}

func policy(r *recorder, attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:   attempts,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2,
		Sleep:         r.sleep,
	}
}

// failing returns an op that fails k times and then succeeds.
func failing(k int, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= k {
			return "", errTransient
		}
		return "ok", nil
	}
}

func TestDo(t *testing.T) {
	Convey("Given a policy of 4 attempts, 100ms, x2", t, func() {
		ctx := context.Background()
		r := &recorder{}

		Convey("When the op fails twice then succeeds", func() {
			calls := 0
			v, err := retry.Do(ctx, policy(r, 4), failing(2, &calls))

			Convey("Then the success value is returned after the backoff sum", func() {
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "ok")
				So(calls, ShouldEqual, 3)
				So(r.waits, ShouldResemble, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond})
				So(r.total(), ShouldEqual, 300*time.Millisecond)
			})
		})

		Convey("When the op always fails", func() {
			calls := 0
			_, err := retry.Do(ctx, policy(r, 4), failing(100, &calls))

			Convey("Then it gives up after exactly max attempts with the last error", func() {
				So(err, ShouldEqual, errTransient)
				So(calls, ShouldEqual, 4)
				So(r.waits, ShouldHaveLength, 3)
			})
		})

		Convey("When the op fails permanently", func() {
			calls := 0
			perm := retry.Permanent(errors.New("bad request"))
			_, err := retry.Do(ctx, policy(r, 4), func(context.Context) (int, error) {
				calls++
				return 0, perm
			})

			Convey("Then it propagates immediately without sleeping", func() {
				So(err, ShouldEqual, perm)
				So(errors.Is(err, retry.ErrPermanent), ShouldBeTrue)
				So(calls, ShouldEqual, 1)
				So(r.waits, ShouldBeEmpty)
			})
		})

		Convey("When a custom predicate rejects the error", func() {
			p := policy(r, 4)
			p.Retryable = func(err error) bool { return !errors.Is(err, errTransient) }
			calls := 0
			_, err := retry.Do(ctx, p, failing(1, &calls))

			So(err, ShouldEqual, errTransient)
			So(calls, ShouldEqual, 1)
		})

		Convey("When OnRetry is set", func() {
			p := policy(r, 3)
			var seen []int
			p.OnRetry = func(attempt int, _ error, _ time.Duration) { seen = append(seen, attempt) }
			calls := 0
			_, _ = retry.Do(ctx, p, failing(5, &calls))

			So(seen, ShouldResemble, []int{1, 2})
		})
	})

	Convey("Given max attempts of one", t, func() {
		r := &recorder{}
		calls := 0
		_, err := retry.Do(context.Background(), policy(r, 1), failing(1, &calls))

		Convey("Then exactly one try is made and no sleep taken", func() {
			So(err, ShouldEqual, errTransient)
			So(calls, ShouldEqual, 1)
			So(r.waits, ShouldBeEmpty)
		})
	})

	Convey("Given an invalid policy", t, func() {
		calls := 0
		for _, p := range []retry.Policy{
			{MaxAttempts: 0, InitialDelay: time.Second, BackoffFactor: 2},
			{MaxAttempts: 3, InitialDelay: 0, BackoffFactor: 2},
			{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 0.5},
		} {
			_, err := retry.Do(context.Background(), p, failing(0, &calls))
			So(errors.Is(err, retry.ErrInvalidPolicy), ShouldBeTrue)
		}
		So(calls, ShouldEqual, 0)
	})

	Convey("Given a context cancelled during the wait", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		p := retry.Policy{MaxAttempts: 3, InitialDelay: time.Hour, BackoffFactor: 2}
		calls := 0
		op := func(context.Context) (string, error) {
			calls++
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			return "", errTransient
		}

		_, err := retry.Do(ctx, p, op)

		Convey("Then the wait is abandoned with the context error", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(calls, ShouldEqual, 1)
		})
	})

	Convey("Given a context that is already done when the op fails", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		r := &recorder{}
		calls := 0
		op := func(context.Context) (string, error) {
			calls++
			cancel()
			return "", errTransient
		}

		_, err := retry.Do(ctx, policy(r, 3), op)

		Convey("Then the op error is returned without sleeping", func() {
			So(err, ShouldEqual, errTransient)
			So(calls, ShouldEqual, 1)
			So(r.waits, ShouldBeEmpty)
		})
	})

	Convey("Given the default policy", t, func() {
		p := retry.DefaultPolicy()
		So(p.MaxAttempts, ShouldEqual, 3)
		So(p.InitialDelay, ShouldEqual, time.Second)
		So(p.BackoffFactor, ShouldEqual, 2.0)
		So(p.Validate(), ShouldBeNil)
	})
}
