// Package service orchestrates the ingestion pipeline: provider fetch,
// optional validation gate, statistical enrichment, caching and the derived
// comparison, report, feature and export views.
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/okian/hoopstat/internal/adapters/cache"
	"github.com/okian/hoopstat/internal/adapters/export"
	"github.com/okian/hoopstat/internal/adapters/narrative"
	"github.com/okian/hoopstat/internal/adapters/provider"
	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/internal/domain/stats"
	"github.com/okian/hoopstat/internal/domain/validation"
	"github.com/okian/hoopstat/pkg/logger"
	"github.com/okian/hoopstat/pkg/metrics"
)

const (
	defaultComponents = 3
	reportStem        = "performance_report"
	artifactSuffix    = "_stats.json"
	summaryPrompt     = "Compare the following basketball players using only the statistics provided. " +
		"Highlight strengths, weaknesses and consistency.\n\n%s"
)

// Operation names used for logging and metrics.
const (
	opFetch     = "fetch_player_data"
	opRefresh   = "refresh"
	opCompare   = "compare_players"
	opReport    = "generate_report"
	opFeatures  = "analyze_features"
	opValidate  = "validate_players"
	opExport    = "export_player"
	opSummarize = "summarize"
	opTeam      = "team_stats"
)

// Pipeline owns a cache and a fetcher for its lifetime and produces enriched,
// comparison and report outputs from them.
//
// Every entry point recovers failures at its own boundary: it logs them and
// returns an empty result. Only caller contract violations (unknown method,
// invalid component count, unknown column, unsupported format) are returned
// as errors.
type Pipeline struct {
	fetcher    provider.Fetcher
	cache      cache.Cache
	validator  *validation.Validator
	engineer   *features.Engineer
	summarizer narrative.Summarizer

	artifacts *export.Writer
	reports   *export.Writer
	exports   *export.Writer

	gate       bool
	components int
	now        func() time.Time

	logger  logger.Logger
	metrics *metrics.Manager
}

// New constructs a Pipeline over fetcher.
func New(fetcher provider.Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    fetcher,
		cache:      cache.New(),
		validator:  validation.New(),
		engineer:   features.New(),
		components: defaultComponents,
		now:        time.Now,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CacheStats returns the counters of the underlying cache.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// FetchPlayerData returns the enriched record of every requested player,
// keyed by the requested name. Cached players are served without a network
// call. Players whose fetch failed map to a sentinel record without analysis
// and are never cached.
func (p *Pipeline) FetchPlayerData(ctx context.Context, players []string) (out map[string]Enriched) {
	defer p.boundary(ctx, opFetch, func() { out = map[string]Enriched{} })()
	return p.fetch(ctx, names(players), true)
}

// Refresh refetches players unconditionally and rewrites their cache entries.
func (p *Pipeline) Refresh(ctx context.Context, players []string) (out map[string]Enriched) {
	defer p.boundary(ctx, opRefresh, func() { out = map[string]Enriched{} })()
	return p.fetch(ctx, names(players), false)
}

func (p *Pipeline) fetch(ctx context.Context, players []string, readCache bool) map[string]Enriched {
	out := make(map[string]Enriched, len(players))
	if len(players) == 0 {
		return out
	}

	keys := make(map[string]string, len(players))
	misses := make([]string, 0, len(players))
	for _, name := range players {
		key, err := cache.KeyFor(map[string]any{"player": name})
		if err != nil {
			p.logger.Warn(ctx, "cache key derivation failed", logger.String("player", name), logger.Error(err))
			misses = append(misses, name)
			continue
		}
		keys[name] = key
		if readCache {
			if v, ok := p.cache.Get(key); ok {
				if e, ok := v.(Enriched); ok {
					out[name] = e.clone()
					continue
				}
			}
		}
		misses = append(misses, name)
	}

	if len(misses) == 0 {
		p.logger.Debug(ctx, "served players from cache", logger.Int("players", len(players)))
		return out
	}

	fetched := p.fetcher.FetchMany(ctx, misses)
	enriched := 0
	for _, name := range misses {
		rec, ok := fetched[name]
		if !ok {
			rec = model.Empty(name)
		}
		e := Enriched{Record: rec}
		if !rec.Available || (p.gate && !p.admit(ctx, name, rec)) {
			out[name] = e
			continue
		}

		a, err := analyze(rec)
		if err != nil {
			p.logger.Error(ctx, "player analysis failed", logger.String("player", name), logger.Error(err))
			p.metrics.RecordOperationError(opFetch)
			out[name] = e
			continue
		}
		e.Analysis = a

		if key, ok := keys[name]; ok {
			p.cache.Put(key, e.clone())
		}
		p.writeArtifact(ctx, name, e)
		out[name] = e
		enriched++
	}

	p.metrics.RecordPlayersEnriched(enriched)
	p.logger.Info(ctx, "processed player data",
		logger.Int("players", len(players)),
		logger.Int("fetched", len(misses)),
		logger.Int("enriched", enriched),
	)
	return out
}

// admit runs the validation gate on a single record.
func (p *Pipeline) admit(ctx context.Context, name string, rec model.Record) bool {
	report := p.validator.Validate(ctx, map[string]model.Record{name: rec})
	if report.Valid {
		return true
	}
	p.metrics.RecordValidationFailure()
	p.logger.Warn(ctx, "record rejected by validation gate",
		logger.String("player", name),
		logger.Strings("violations", report.Violations),
	)
	return false
}

func (p *Pipeline) writeArtifact(ctx context.Context, name string, e Enriched) {
	if p.artifacts == nil {
		return
	}
	path, err := p.artifacts.WriteJSON(export.SafeName(name)+artifactSuffix, e)
	if err != nil {
		p.logger.Warn(ctx, "failed to write player artifact", logger.String("player", name), logger.Error(err))
		return
	}
	p.logger.Debug(ctx, "cached player artifact", logger.String("player", name), logger.String("path", path))
}

// analyze computes the per-player statistics over points, rebounds and
// assists per game.
func analyze(rec model.Record) (*Analysis, error) {
	core := rec.Core()
	a := &Analysis{ZScores: make(map[string]float64, len(core))}
	for i, key := range model.CoreKeys {
		z, err := stats.ZScoreOf(core[i], core)
		if err != nil {
			return nil, fmt.Errorf("z-score %s: %w", key, err)
		}
		a.ZScores[key] = z
	}
	var err error
	if a.Percentiles, err = stats.PercentilesOf(core); err != nil {
		return nil, fmt.Errorf("percentiles: %w", err)
	}
	if a.Consistency, err = stats.ConsistencyOf(core); err != nil {
		return nil, fmt.Errorf("consistency: %w", err)
	}
	if a.Outliers, err = stats.Outliers(core, stats.IQR); err != nil {
		return nil, fmt.Errorf("outliers: %w", err)
	}
	return a, nil
}

// ComparePlayers reshapes the enriched players into per-metric views aligned
// with the sorted list of available players.
func (p *Pipeline) ComparePlayers(ctx context.Context, players []string) (out Comparison) {
	defer p.boundary(ctx, opCompare, func() { out = Comparison{} })()
	data := p.FetchPlayerData(ctx, players)
	if len(data) == 0 {
		return Comparison{}
	}
	return compare(data)
}

func compare(data map[string]Enriched) Comparison {
	c := Comparison{
		Players:         []string{},
		BasicStats:      make(map[string][]float64, len(model.StatKeys)),
		AdvancedMetrics: make(map[string][]float64, len(model.AdvancedKeys)),
		Analysis:        make(map[string]*Analysis, len(data)),
	}
	for _, name := range slices.Sorted(maps.Keys(data)) {
		if usable(data[name]) {
			c.Players = append(c.Players, name)
		} else {
			c.Unavailable = append(c.Unavailable, name)
		}
	}
	view := func(dst map[string][]float64, keys []string, src func(Enriched) map[string]float64) {
		for _, key := range keys {
			col := make([]float64, len(c.Players))
			for i, name := range c.Players {
				col[i] = src(data[name])[key]
			}
			dst[key] = col
		}
	}
	view(c.BasicStats, model.StatKeys, func(e Enriched) map[string]float64 { return e.Stats })
	view(c.AdvancedMetrics, model.AdvancedKeys, func(e Enriched) map[string]float64 { return e.AdvancedMetrics })
	for _, name := range c.Players {
		c.Analysis[name] = data[name].Analysis
	}
	return c
}

// GenerateReport wraps ComparePlayers with an identifier and timestamp and
// persists it when a report writer is configured. Players records the
// requested names; the comparison holds the usable ones and lists the rest
// as unavailable.
func (p *Pipeline) GenerateReport(ctx context.Context, players []string) (out Report) {
	defer p.boundary(ctx, opReport, func() { out = Report{} })()

	c := p.ComparePlayers(ctx, players)
	if len(c.Players) == 0 {
		return Report{}
	}
	r := Report{
		ID:         uuid.NewString(),
		Players:    names(players),
		Comparison: c,
		Timestamp:  p.now().UTC(),
	}
	if p.reports == nil {
		return r
	}
	path, err := p.reports.WriteJSON(p.reports.Stamped(reportStem, export.JSON), r)
	if err != nil {
		p.logger.Error(ctx, "failed to persist report", logger.String("report_id", r.ID), logger.Error(err))
		p.metrics.RecordOperationError(opReport)
		return Report{}
	}
	r.Path = path
	p.logger.Info(ctx, "performance report generated",
		logger.String("report_id", r.ID),
		logger.String("path", path),
		logger.Strings("players", r.Players),
	)
	return r
}

// AnalyzeFeatures extracts the feature table of the available players and
// runs scaling, importance scoring, dimensionality reduction and outlier
// detection on it. Contract violations in req are returned as errors.
func (p *Pipeline) AnalyzeFeatures(ctx context.Context, players []string, req FeatureRequest) (out FeatureReport, err error) {
	defer p.boundary(ctx, opFeatures, func() { out, err = FeatureReport{}, nil })()

	if req.Target == "" {
		req.Target = model.PointsPerGame
	}
	if req.OutlierMethod == "" {
		req.OutlierMethod = string(stats.IQR)
	}
	if _, err := stats.ParseMethod(req.OutlierMethod); err != nil {
		return FeatureReport{}, err
	}
	if req.Components < 0 {
		return FeatureReport{}, fmt.Errorf("%w: k=%d", features.ErrInvalidComponents, req.Components)
	}

	records := make(map[string]model.Record)
	for name, e := range p.FetchPlayerData(ctx, players) {
		if usable(e) {
			records[name] = e.Record
		}
	}
	table := p.engineer.Extract(records)
	if table.Index(req.Target) < 0 {
		return FeatureReport{}, fmt.Errorf("%w: %q", features.ErrUnknownColumn, req.Target)
	}
	if table.Rows() == 0 {
		return FeatureReport{}, nil
	}
	report := FeatureReport{Features: table, Scaling: p.engineer.Scaling()}

	if report.Scaled, err = p.engineer.Scale(table); err != nil {
		return FeatureReport{}, err
	}
	if report.Importance, err = p.engineer.Importance(table, req.Target); err != nil {
		return FeatureReport{}, err
	}

	if n, d := table.Rows(), len(table.Columns); n >= 2 {
		k := req.Components
		if k == 0 {
			k = min(p.components, n, d)
		}
		proj, err := p.engineer.Reduce(report.Scaled, k)
		if err != nil {
			return FeatureReport{}, err
		}
		report.Projection = &proj
	}

	if report.Outliers, err = p.engineer.DetectOutliers(table, req.OutlierMethod); err != nil {
		return FeatureReport{}, err
	}
	return report, nil
}

// ValidatePlayers checks the available players against the validator rules.
func (p *Pipeline) ValidatePlayers(ctx context.Context, players []string) (out model.ValidationReport) {
	defer p.boundary(ctx, opValidate, func() {
		out = model.ValidationReport{Violations: []string{"validation aborted: internal error"}}
	})()

	records := make(map[string]model.Record)
	for name, e := range p.FetchPlayerData(ctx, players) {
		if e.Available {
			records[name] = e.Record
		}
	}
	return p.validator.Validate(ctx, records)
}

// ExportPlayer writes one player's enriched record in the named format and
// returns the written path.
func (p *Pipeline) ExportPlayer(ctx context.Context, name, format string) (path string, err error) {
	defer p.boundary(ctx, opExport, func() { path, err = "", fmt.Errorf("%s: internal error", opExport) })()

	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNoPlayers
	}
	if p.exports == nil {
		return "", ErrExportDisabled
	}

	e, ok := p.FetchPlayerData(ctx, []string{name})[name]
	if !ok || !usable(e) {
		return "", fmt.Errorf("%w: %q", ErrPlayerUnavailable, name)
	}
	path, err = p.exports.WriteTable(p.exports.Stamped(export.SafeName(name), f), f, e)
	if err != nil {
		p.logger.Error(ctx, "player export failed", logger.String("player", name), logger.Error(err))
		p.metrics.RecordOperationError(opExport)
		return "", err
	}
	p.logger.Info(ctx, "player exported", logger.String("player", name), logger.String("path", path))
	return path, nil
}

// Summarize asks the narrative backend for a comparison of players built
// only from records that pass validation.
func (p *Pipeline) Summarize(ctx context.Context, players []string) (summary string, err error) {
	defer p.boundary(ctx, opSummarize, func() { summary, err = "", fmt.Errorf("%s: internal error", opSummarize) })()

	if p.summarizer == nil {
		return "", narrative.ErrNoBackend
	}
	requested := names(players)
	if len(requested) == 0 {
		return "", ErrNoPlayers
	}

	valid := make(map[string]Enriched)
	for name, e := range p.FetchPlayerData(ctx, requested) {
		if !usable(e) {
			continue
		}
		if report := p.validator.Validate(ctx, map[string]model.Record{name: e.Record}); report.Valid {
			valid[name] = e
		}
	}
	if len(valid) == 0 {
		return "", ErrPlayerUnavailable
	}

	body, err := json.MarshalIndent(compare(valid), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode comparison: %w", err)
	}
	summary, err = p.summarizer.Summarize(ctx, fmt.Sprintf(summaryPrompt, body))
	if err != nil && !errors.Is(err, narrative.ErrNoBackend) {
		p.logger.Warn(ctx, "narrative summary failed", logger.Error(err))
	}
	return summary, err
}

// TeamStats returns the provider's raw team statistics, or an empty map when
// the fetch failed.
func (p *Pipeline) TeamStats(ctx context.Context, team string) (out map[string]any) {
	defer p.boundary(ctx, opTeam, func() { out = map[string]any{} })()

	team = strings.TrimSpace(team)
	if team == "" {
		return map[string]any{}
	}
	out = p.fetcher.FetchTeam(ctx, team)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// boundary is deferred by every entry point. It records the duration of op
// and turns a panic into a logged failure, letting reset install the empty
// result.
func (p *Pipeline) boundary(ctx context.Context, op string, reset func()) func() {
	start := time.Now()
	return func() {
		if r := recover(); r != nil {
			p.logger.Error(ctx, "pipeline stage failed",
				logger.String("operation", op),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			p.metrics.RecordOperationError(op)
			reset()
		}
		p.metrics.ObserveOperation(op, time.Since(start).Seconds())
	}
}

// usable reports whether e was fetched and enriched.
func usable(e Enriched) bool {
	return e.Available && e.Analysis != nil
}

// names trims, drops empties and deduplicates, keeping first occurrence order.
func names(players []string) []string {
	seen := make(map[string]struct{}, len(players))
	out := make([]string, 0, len(players))
	for _, p := range players {
		n := strings.TrimSpace(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
