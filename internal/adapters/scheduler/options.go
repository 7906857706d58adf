package scheduler

import (
	"time"

	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithRunTimeout bounds a single refresh run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Scheduler) { s.metrics = m }
}
