package cache

import "github.com/okian/hoopstat/pkg/metrics"

// Option applies a configuration option to the LRU.
type Option func(*LRU)

// WithCapacity sets the maximum number of entries. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(c *LRU) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithMetrics reports hits, misses, evictions and size to m.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *LRU) { c.metrics = m }
}
