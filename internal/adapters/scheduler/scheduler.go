// Package scheduler keeps the pipeline cache warm by refreshing a watchlist
// of players on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	service "github.com/okian/hoopstat/internal/app"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

const defaultRunTimeout = 2 * time.Minute

// Run outcomes, also used as the refresh_runs_total status label.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusPanic   = "panic"
)

// Refresher refetches players bypassing the cache read.
type Refresher interface {
	Refresh(ctx context.Context, players []string) map[string]service.Enriched
}

// Stats describes the scheduler activity since Start.
type Stats struct {
	Schedule      string        `json:"schedule"`
	Watchlist     []string      `json:"watchlist"`
	Runs          uint64        `json:"runs"`
	Failures      uint64        `json:"failures"`
	LastStatus    string        `json:"last_status,omitempty"`
	LastRun       time.Time     `json:"last_run,omitempty"`
	LastDuration  time.Duration `json:"last_duration"`
	LastRefreshed int           `json:"last_refreshed"`
	LastFailed    int           `json:"last_failed"`
	Next          time.Time     `json:"next_run,omitempty"`
}

// Scheduler runs watchlist refreshes. Overlapping runs are skipped.
type Scheduler struct {
	mu sync.Mutex

	cron      *cron.Cron
	entry     cron.EntryID
	schedule  cron.Schedule
	spec      string
	watchlist []string
	refresher Refresher
	timeout   time.Duration
	started   bool
	stats     Stats

	logger  logger.Logger
	metrics *metrics.Manager
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 10m") and builds a stopped scheduler.
func New(refresher Refresher, spec string, watchlist []string, opts ...Option) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}
	if len(watchlist) == 0 {
		return nil, ErrEmptyWatchlist
	}

	s := &Scheduler{
		spec:      spec,
		schedule:  sched,
		watchlist: slices.Clone(watchlist),
		refresher: refresher,
		timeout:   defaultRunTimeout,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = Stats{Schedule: spec, Watchlist: slices.Clone(watchlist)}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	return s, nil
}

// Start registers the refresh job and starts the cron loop. Runs use ctx as
// their parent context.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.entry = s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))
	s.cron.Start()
	s.started = true

	s.logger.Info(ctx, "refresh scheduler started",
		logger.String("schedule", s.spec),
		logger.Int("players", len(s.watchlist)),
	)
	return nil
}

// Stop halts the cron loop and waits for a running refresh to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info(ctx, "refresh scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce refreshes the watchlist immediately and returns the updated stats.
// A panicking refresher is recovered and counted as a failed run.
func (s *Scheduler) RunOnce(parent context.Context) Stats {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	refreshed, failed, status := s.run(ctx)
	elapsed := time.Since(start)

	s.metrics.RecordRefreshRun(status)

	s.mu.Lock()
	s.stats.Runs++
	if status != StatusSuccess {
		s.stats.Failures++
	}
	s.stats.LastStatus = status
	s.stats.LastRun = start
	s.stats.LastDuration = elapsed
	s.stats.LastRefreshed = refreshed
	s.stats.LastFailed = failed
	out := s.snapshot()
	s.mu.Unlock()

	s.logger.Info(ctx, "watchlist refreshed",
		logger.String("status", status),
		logger.Int("refreshed", refreshed),
		logger.Int("failed", failed),
		logger.Duration("duration", elapsed),
	)
	return out
}

func (s *Scheduler) run(ctx context.Context) (refreshed, failed int, status string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "refresh run panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			refreshed, failed, status = 0, len(s.watchlist), StatusPanic
		}
	}()

	out := s.refresher.Refresh(ctx, s.watchlist)
	for _, name := range s.watchlist {
		if e, ok := out[name]; ok && e.Available && e.Analysis != nil {
			refreshed++
			continue
		}
		failed++
	}
	switch {
	case failed == 0:
		status = StatusSuccess
	case refreshed == 0:
		status = StatusFailed
	default:
		status = StatusPartial
	}
	return refreshed, failed, status
}

// Stats returns a snapshot of the run counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Must be called with s.mu held.
func (s *Scheduler) snapshot() Stats {
	out := s.stats
	out.Watchlist = slices.Clone(s.stats.Watchlist)
	if s.started {
		out.Next = s.cron.Entry(s.entry).Next
	}
	return out
}

// cronLogger routes cron's internal messages to the structured logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
