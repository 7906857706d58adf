// Package provider fetches player and team statistics from the remote
// basketball statistics API. Every request is rate limited, runs through a
// circuit breaker and is retried with backoff; failures surface as sentinel
// records, never as errors.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/hoopstat/internal/adapters/retry"
	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

const (
	searchPath    = "/players/searchv2"
	teamStatsPath = "/teams/stats"

	breakerName     = "stats-provider"
	breakerInterval = time.Minute
	maxBodyBytes    = 4 << 20
)

// Fetcher is the narrow interface the pipeline depends on.
type Fetcher interface {
	FetchOne(ctx context.Context, name string) model.Record
	FetchMany(ctx context.Context, names []string) map[string]model.Record
	FetchTeam(ctx context.Context, team string) map[string]any
}

// Client talks to the statistics provider.
type Client struct {
	http            *http.Client
	baseURL         string
	host            string
	apiKey          string
	timeout         time.Duration
	rps             float64
	burst           int
	policy          retry.Policy
	breakerSettings BreakerSettings

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     logger.Logger
	metrics *metrics.Manager
}

var _ Fetcher = (*Client)(nil)

// New creates a Client. Defaults: 10s timeout, 5 req/s with burst 5, retry
// 3 attempts from 1s doubling, breaker opening at 60% failures over at least
// 5 requests for 30s.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: "https://basketball-head.p.rapidapi.com",
		host:    "basketball-head.p.rapidapi.com",
		timeout: 10 * time.Second,
		rps:     5,
		burst:   5,
		policy:  retry.DefaultPolicy(),
		breakerSettings: BreakerSettings{
			MinRequests:  5,
			FailureRatio: 0.6,
			OpenTimeout:  30 * time.Second,
		},
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.limiter = rate.NewLimiter(rate.Limit(c.rps), c.burst)
	c.breaker = c.newBreaker()

	c.policy.Logger = c.log
	onRetry := c.policy.OnRetry
	c.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.metrics.RecordRetry()
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	return c
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	s := c.breakerSettings
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		// Only connection level outages count against the breaker. A status
		// code answers for one player, not for the provider.
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, errOutage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			if err := c.metrics.SetBreakerState(name, from.String(), to.String()); err != nil {
				c.log.Error(context.Background(), "record breaker state", logger.Error(err))
			}
		},
	})
}

// FetchOne looks up one player. On exhausted retries or a malformed response
// it logs the failure and returns model.Empty(name).
func (c *Client) FetchOne(ctx context.Context, name string) model.Record {
	start := time.Now()
	defer func() { c.metrics.ObserveFetchDuration(time.Since(start).Seconds()) }()

	body, err := c.request(ctx, http.MethodPost, searchPath, nil, map[string]any{"query": name})
	if err == nil {
		var raw map[string]any
		if derr := json.Unmarshal(body, &raw); derr != nil || raw == nil {
			err = fmt.Errorf("%w: %v", ErrMalformedResponse, derr)
		} else {
			return Normalize(name, raw)
		}
	}

	c.log.Error(ctx, "player fetch failed",
		logger.String("player", name),
		logger.String("reason", reason(err)),
		logger.Error(err))
	c.metrics.RecordFetchFailure(reason(err))
	return model.Empty(name)
}

// FetchMany fetches every distinct name concurrently and waits for all of
// them. A failing name maps to its sentinel record.
func (c *Client) FetchMany(ctx context.Context, names []string) map[string]model.Record {
	out := make(map[string]model.Record, len(names))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		g.Go(func() error {
			rec := c.FetchOne(ctx, name)
			mu.Lock()
			out[name] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// FetchTeam returns the provider's team statistics document, or an empty map
// after logging when the request fails.
func (c *Client) FetchTeam(ctx context.Context, team string) map[string]any {
	body, err := c.request(ctx, http.MethodGet, teamStatsPath, url.Values{"team": {team}}, nil)
	if err == nil {
		var raw map[string]any
		if derr := json.Unmarshal(body, &raw); derr == nil && raw != nil {
			return raw
		}
		err = ErrMalformedResponse
	}
	c.log.Error(ctx, "team fetch failed",
		logger.String("team", team),
		logger.String("reason", reason(err)),
		logger.Error(err))
	c.metrics.RecordFetchFailure(reason(err))
	return map[string]any{}
}

// request performs one guarded call: each attempt waits on the limiter and
// runs inside the breaker.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := strings.TrimPrefix(path, "/")
	return retry.Do(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.exchange(ctx, method, path, query, payload)
		})
		switch {
		case err == nil:
			c.metrics.RecordProviderRequest(endpoint, "success")
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			// Retryable: the backoff may outlast the open state.
			c.metrics.RecordProviderRequest(endpoint, "rejected")
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		case errors.Is(err, retry.ErrPermanent):
			c.metrics.RecordProviderRequest(endpoint, "permanent")
		default:
			c.metrics.RecordProviderRequest(endpoint, "transient")
		}
		return body, err
	})
}

func (c *Client) exchange(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		return nil, fmt.Errorf("request failed: %w: %w", errOutage, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{Code: resp.StatusCode}
		if serr.Transient() {
			return nil, serr
		}
		return nil, retry.Permanent(serr)
	}
	return body, nil
}

// isTimeout reports a per-request timeout. A slow answer for one player is
// not treated as an outage.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// reason buckets a failure for logs and metrics.
func reason(err error) string {
	var serr *StatusError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case isTimeout(err):
		return "timeout"
	case errors.As(err, &serr):
		return "status"
	default:
		return "transport"
	}
}
