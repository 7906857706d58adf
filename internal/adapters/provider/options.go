package provider

import (
	"net/http"
	"time"

	"github.com/okian/hoopstat/internal/adapters/retry"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

// Option configures a Client.
type Option func(*Client)

// BreakerSettings controls when the circuit opens and how long it stays open.
// Only requests that got no response at all count as failures.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

// WithBaseURL sets the provider root, e.g. https://basketball-head.p.rapidapi.com.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHost sets the x-rapidapi-host header value.
func WithHost(h string) Option {
	return func(c *Client) { c.host = h }
}

// WithAPIKey sets the x-rapidapi-key header value.
func WithAPIKey(k string) Option {
	return func(c *Client) { c.apiKey = k }
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds a single HTTP round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryPolicy sets the policy guarding every request.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRateLimit caps outbound requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rps = rps
		}
		if burst > 0 {
			c.burst = burst
		}
	}
}

// WithBreaker sets the circuit breaker thresholds.
func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) { c.breakerSettings = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Client) { c.metrics = m }
}
