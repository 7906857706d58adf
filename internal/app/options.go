package service

import (
	"time"

	"github.com/okian/hoopstat/internal/adapters/cache"
	"github.com/okian/hoopstat/internal/adapters/export"
	"github.com/okian/hoopstat/internal/adapters/narrative"
	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/validation"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithCache replaces the default in-memory LRU.
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.cache = c
		}
	}
}

// WithValidator sets the validator used by the gate and ValidatePlayers.
func WithValidator(v *validation.Validator) Option {
	return func(p *Pipeline) {
		if v != nil {
			p.validator = v
		}
	}
}

// WithEngineer sets the feature engineer.
func WithEngineer(e *features.Engineer) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.engineer = e
		}
	}
}

// WithSummarizer sets the narrative backend used by Summarize.
func WithSummarizer(s narrative.Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// WithArtifactWriter enables per-player JSON artifacts.
func WithArtifactWriter(w *export.Writer) Option {
	return func(p *Pipeline) { p.artifacts = w }
}

// WithReportWriter enables report persistence.
func WithReportWriter(w *export.Writer) Option {
	return func(p *Pipeline) { p.reports = w }
}

// WithExportWriter enables ExportPlayer.
func WithExportWriter(w *export.Writer) Option {
	return func(p *Pipeline) { p.exports = w }
}

// WithValidationGate drops records that fail validation before enrichment.
func WithValidationGate(enabled bool) Option {
	return func(p *Pipeline) { p.gate = enabled }
}

// WithPCAComponents sets the default number of principal components.
func WithPCAComponents(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.components = k
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}
