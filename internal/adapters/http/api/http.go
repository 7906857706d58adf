// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/hoopstat/internal/adapters/cache"
	"github.com/okian/hoopstat/internal/adapters/http/swagger"
	service "github.com/okian/hoopstat/internal/app"
	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

const requestTimeout = 60 * time.Second

// Pipeline is the part of the ingestion pipeline served over HTTP.
type Pipeline interface {
	FetchPlayerData(ctx context.Context, players []string) map[string]service.Enriched
	ComparePlayers(ctx context.Context, players []string) service.Comparison
	GenerateReport(ctx context.Context, players []string) service.Report
	AnalyzeFeatures(ctx context.Context, players []string, req service.FeatureRequest) (service.FeatureReport, error)
	ValidatePlayers(ctx context.Context, players []string) model.ValidationReport
	ExportPlayer(ctx context.Context, name, format string) (string, error)
	Summarize(ctx context.Context, players []string) (string, error)
	TeamStats(ctx context.Context, team string) map[string]any
	CacheStats() cache.Stats
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithStatsProvider sets the source of GET /api/v1/stats. Defaults to the
// pipeline cache counters.
func WithStatsProvider(p StatsProvider) Option {
	return func(s *Server) {
		if p != nil {
			s.stats = p
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager recorded by the middleware and
// served on /metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) { s.metrics = m }
}

// Server wires HTTP routes for the pipeline API.
type Server struct {
	pipeline Pipeline
	stats    StatsProvider
	logger   logger.Logger
	metrics  *metrics.Manager
	router   chi.Router
}

// NewServer creates a new API server with all routes registered.
func NewServer(p Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats == nil {
		s.stats = cacheStats{p}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)

	r.Get("/healthz", s.instrument("healthz", handleHealth))
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	swagger.Register(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/players", s.instrument("players", s.handlePlayers))
		r.Get("/compare", s.instrument("compare", s.handleCompare))
		r.Post("/reports", s.instrument("reports", s.handleReport))
		r.Get("/features", s.instrument("features", s.handleFeatures))
		r.Get("/validate", s.instrument("validate", s.handleValidate))
		r.Get("/export", s.instrument("export", s.handleExport))
		r.Get("/summary", s.instrument("summary", s.handleSummary))
		r.Get("/teams/{team}", s.instrument("teams", s.handleTeam))
		r.Get("/stats", s.instrument("stats", s.handleStats))
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// playersParam collects player names from repeated or comma separated
// "name" query parameters.
func playersParam(r *http.Request) ([]string, error) {
	var out []string
	for _, v := range r.URL.Query()["name"] {
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: missing name parameter", ErrBadRequest)
	}
	return out, nil
}
