package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/hoopstat/internal/adapters/cache"
	"github.com/okian/hoopstat/internal/adapters/export"
	"github.com/okian/hoopstat/internal/adapters/http/api"
	"github.com/okian/hoopstat/internal/adapters/narrative"
	"github.com/okian/hoopstat/internal/adapters/provider"
	"github.com/okian/hoopstat/internal/adapters/retry"
	"github.com/okian/hoopstat/internal/adapters/scheduler"
	service "github.com/okian/hoopstat/internal/app"
	"github.com/okian/hoopstat/internal/config"
	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/validation"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 90 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Use stderr since the logger may not be available yet
		os.Stderr.WriteString("hoopstat: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat))
	if err != nil {
		return err
	}
	m := metrics.NewManager()

	a, err := newApplication(cfg, log, m)
	if err != nil {
		return err
	}

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx, m)

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.scheduler.Stop(stopCtx); err != nil {
				log.Warn(stopCtx, "refresh scheduler did not stop in time", logger.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.server,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// application holds the wired components of the process.
type application struct {
	pipeline  *service.Pipeline
	scheduler *scheduler.Scheduler
	server    *api.Server
	backend   narrative.Backend
	started   time.Time
}

func newApplication(cfg *config.Config, log logger.Logger, m *metrics.Manager) (*application, error) {
	scaling, err := features.ParseScaling(cfg.ScalingMethod)
	if err != nil {
		return nil, err
	}

	client := provider.New(
		provider.WithBaseURL(cfg.ProviderBaseURL),
		provider.WithHost(cfg.ProviderHost),
		provider.WithAPIKey(cfg.APIKey),
		provider.WithTimeout(cfg.RequestTimeout()),
		provider.WithRetryPolicy(retry.Policy{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay(),
			BackoffFactor: cfg.RetryBackoffFactor,
		}),
		provider.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		provider.WithBreaker(provider.BreakerSettings{
			MinRequests:  cfg.BreakerMinRequests,
			FailureRatio: cfg.BreakerFailureRatio,
			OpenTimeout:  cfg.BreakerOpenTimeout(),
		}),
		provider.WithLogger(log.Named("provider")),
		provider.WithMetrics(m),
	)

	summarizer := narrative.New(narrative.Config{
		GroqAPIKey:   cfg.GroqAPIKey,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		GroqModel:    cfg.GroqModel,
		OpenAIModel:  cfg.OpenAIModel,
		MaxTokens:    cfg.LLMMaxTokens,
		Temperature:  cfg.LLMTemperature,
	}, narrative.WithLogger(log.Named("narrative")))

	a := &application{backend: summarizer.Backend(), started: time.Now()}
	a.pipeline = service.New(client,
		service.WithCache(cache.New(cache.WithCapacity(cfg.CacheSize), cache.WithMetrics(m))),
		service.WithValidator(validation.New(validation.WithLogger(log.Named("validation")))),
		service.WithEngineer(features.New(features.WithScaling(scaling))),
		service.WithSummarizer(summarizer),
		service.WithArtifactWriter(export.New(cfg.CacheDir, export.WithLogger(log))),
		service.WithReportWriter(export.New(cfg.ProcessedDir, export.WithLogger(log))),
		service.WithExportWriter(export.New(cfg.ExportDir, export.WithLogger(log))),
		service.WithValidationGate(cfg.ValidationGate),
		service.WithPCAComponents(cfg.PCAComponents),
		service.WithLogger(log.Named("pipeline")),
		service.WithMetrics(m),
	)

	if cfg.RefreshSchedule != "" && len(cfg.Watchlist) > 0 {
		a.scheduler, err = scheduler.New(a.pipeline, cfg.RefreshSchedule, cfg.Watchlist,
			scheduler.WithLogger(log.Named("scheduler")),
			scheduler.WithMetrics(m),
		)
		if err != nil {
			return nil, err
		}
	}

	a.server = api.NewServer(a.pipeline,
		api.WithStatsProvider(a),
		api.WithLogger(log.Named("api")),
		api.WithMetrics(m),
	)

	log.Info(context.Background(), "pipeline configured",
		logger.String("provider", cfg.ProviderBaseURL),
		logger.Int("cache_size", cfg.CacheSize),
		logger.String("scaling", string(scaling)),
		logger.Bool("validation_gate", cfg.ValidationGate),
		logger.String("narrative_backend", a.backend.String()),
		logger.Bool("refresh_enabled", a.scheduler != nil),
	)
	return a, nil
}

// GetStats reports cache, scheduler and process statistics.
func (a *application) GetStats() map[string]any {
	stats := map[string]any{
		"cache":             a.pipeline.CacheStats(),
		"narrative_backend": a.backend.String(),
		"uptime_seconds":    time.Since(a.started).Seconds(),
		"goroutines":        runtime.NumGoroutine(),
	}
	if a.scheduler != nil {
		stats["refresh"] = a.scheduler.Stats()
	}
	return stats
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, m *metrics.Manager) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics(m)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics(m *metrics.Manager) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.UpdateSystemMemoryUsage(ms.Alloc)

	m.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Average GC pause since start
	if ms.NumGC > 0 {
		avgPauseMs := float64(ms.PauseTotalNs) / float64(ms.NumGC) / nanosecondsPerMillisecond
		m.RecordSystemGCPauseTime(avgPauseMs)
	}
}
