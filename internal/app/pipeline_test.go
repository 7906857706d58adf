package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hoopstat/internal/adapters/export"
	"github.com/okian/hoopstat/internal/adapters/narrative"
	service "github.com/okian/hoopstat/internal/app"
	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/internal/domain/stats"
	"github.com/okian/hoopstat/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]model.Record
	calls   [][]string
	panics  bool
}

func (f *fakeFetcher) FetchOne(ctx context.Context, name string) model.Record {
	return f.FetchMany(ctx, []string{name})[name]
}

func (f *fakeFetcher) FetchMany(_ context.Context, names []string) map[string]model.Record {
	if f.panics {
		panic("provider exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), names...))
	out := make(map[string]model.Record, len(names))
	for _, n := range names {
		if r, ok := f.records[n]; ok {
			out[n] = r.Clone()
			continue
		}
		out[n] = model.Empty(n)
	}
	return out
}

func (f *fakeFetcher) FetchTeam(_ context.Context, team string) map[string]any {
	if f.panics {
		panic("provider exploded")
	}
	if team != "DEN" {
		return nil
	}
	return map[string]any{"team": team, "wins": 57.0}
}

func (f *fakeFetcher) requested() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSummarizer struct {
	prompt string
}

func (s *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return "a fine comparison", nil
}

func player(name, team string, ppg, rpg, apg, fg, three, per float64) model.Record {
	return model.NewRecord(name, team, map[string]float64{
		model.PointsPerGame:   ppg,
		model.ReboundsPerGame: rpg,
		model.AssistsPerGame:  apg,
		model.FieldGoalPct:    fg,
		model.ThreePointPct:   three,
	}, map[string]float64{model.PlayerEfficiency: per, model.TrueShootingPct: fg + 0.05}, nil)
}

func roster() *fakeFetcher {
	return &fakeFetcher{records: map[string]model.Record{
		"LeBron James":  player("LeBron James", "LAL", 30, 6, 6, 0.54, 0.41, 25),
		"Stephen Curry": player("Stephen Curry", "GSW", 26, 5, 6, 0.47, 0.42, 24),
		"Nikola Jokic":  player("Nikola Jokic", "DEN", 25, 12, 9, 0.58, 0.36, 31),
		"Jalen Brunson": player("Jalen Brunson", "NYK", 28, 4, 7, 0.48, 0.40, 22),
		"Rookie":        player("Rookie", "SAS", 70, 10, 4, 0.50, 0.30, 18),
	}}
}

func fixedClock() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

func TestFetchPlayerData(t *testing.T) {
	Convey("Given a pipeline over a roster", t, func() {
		ctx := context.Background()
		f := roster()
		dir := t.TempDir()
		p := service.New(f,
			service.WithArtifactWriter(export.New(dir)),
			service.WithMetrics(metrics.NewManager()))

		Convey("When fetching one known and one unknown player", func() {
			out := p.FetchPlayerData(ctx, []string{"LeBron James", "Ghost", " LeBron James "})

			Convey("Then both should be keyed by requested name", func() {
				So(out, ShouldHaveLength, 2)
				So(f.requested(), ShouldResemble, [][]string{{"LeBron James", "Ghost"}})
			})

			Convey("Then the known player should be analysed over the core stats", func() {
				a := out["LeBron James"].Analysis
				So(a, ShouldNotBeNil)
				So(a.ZScores[model.PointsPerGame], ShouldAlmostEqual, 1.4142, 1e-4)
				So(a.ZScores[model.ReboundsPerGame], ShouldAlmostEqual, -0.7071, 1e-4)
				So(a.Percentiles.P50, ShouldEqual, 6.0)
				So(a.Percentiles.P75, ShouldEqual, 18.0)
				So(a.Consistency.Mean, ShouldEqual, 14.0)
				So(a.Outliers, ShouldBeEmpty)
			})

			Convey("Then the unknown player should be a sentinel without analysis", func() {
				ghost := out["Ghost"]
				So(ghost.Available, ShouldBeFalse)
				So(ghost.Team, ShouldEqual, model.UnknownTeam)
				So(ghost.Analysis, ShouldBeNil)
			})

			Convey("Then a JSON artifact should be written for the known player only", func() {
				_, err := os.Stat(filepath.Join(dir, "LeBron_James_stats.json"))
				So(err, ShouldBeNil)
				_, err = os.Stat(filepath.Join(dir, "Ghost_stats.json"))
				So(os.IsNotExist(err), ShouldBeTrue)
			})

			Convey("And fetching again", func() {
				again := p.FetchPlayerData(ctx, []string{"LeBron James", "Ghost"})

				Convey("Then only the failed player should be refetched", func() {
					So(f.requested(), ShouldHaveLength, 2)
					So(f.requested()[1], ShouldResemble, []string{"Ghost"})
					So(again["LeBron James"].Analysis, ShouldNotBeNil)
					So(p.CacheStats().Hits, ShouldEqual, uint64(1))
					So(p.CacheStats().Entries, ShouldEqual, 1)
				})
			})

			Convey("And mutating the returned record", func() {
				out["LeBron James"].Stats[model.PointsPerGame] = 99

				Convey("Then the cached copy should be unaffected", func() {
					again := p.FetchPlayerData(ctx, []string{"LeBron James"})
					So(again["LeBron James"].Stats[model.PointsPerGame], ShouldEqual, 30.0)
				})
			})
		})

		Convey("When refreshing a cached player", func() {
			p.FetchPlayerData(ctx, []string{"Nikola Jokic"})
			p.Refresh(ctx, []string{"Nikola Jokic"})

			Convey("Then the provider should be called again", func() {
				So(f.requested(), ShouldHaveLength, 2)
			})
		})

		Convey("When no names are given", func() {
			out := p.FetchPlayerData(ctx, []string{"", "  "})

			Convey("Then the result should be empty and the provider untouched", func() {
				So(out, ShouldBeEmpty)
				So(f.requested(), ShouldBeEmpty)
			})
		})
	})

	Convey("Given a pipeline with the validation gate enabled", t, func() {
		ctx := context.Background()
		f := roster()
		p := service.New(f, service.WithValidationGate(true))

		out := p.FetchPlayerData(ctx, []string{"Rookie", "Nikola Jokic"})

		Convey("Then out-of-range records should be neither enriched nor cached", func() {
			So(out["Rookie"].Available, ShouldBeTrue)
			So(out["Rookie"].Analysis, ShouldBeNil)
			So(out["Nikola Jokic"].Analysis, ShouldNotBeNil)
			So(p.CacheStats().Entries, ShouldEqual, 1)
		})
	})

	Convey("Given a fetcher that panics", t, func() {
		p := service.New(&fakeFetcher{panics: true})

		Convey("Then every entry point should degrade to an empty result", func() {
			out := p.FetchPlayerData(context.Background(), []string{"A"})
			So(out, ShouldNotBeNil)
			So(out, ShouldBeEmpty)
			So(p.ComparePlayers(context.Background(), []string{"A"}).Players, ShouldBeEmpty)
			So(p.GenerateReport(context.Background(), []string{"A"}).ID, ShouldBeEmpty)
		})
	})
}

func TestComparePlayers(t *testing.T) {
	Convey("Given a pipeline over a roster", t, func() {
		p := service.New(roster())

		c := p.ComparePlayers(context.Background(), []string{"Stephen Curry", "Ghost", "LeBron James"})

		Convey("Then players should be sorted with aligned metric views", func() {
			So(c.Players, ShouldResemble, []string{"LeBron James", "Stephen Curry"})
			So(c.BasicStats[model.PointsPerGame], ShouldResemble, []float64{30, 26})
			So(c.BasicStats[model.AssistsPerGame], ShouldResemble, []float64{6, 6})
			So(c.AdvancedMetrics[model.PlayerEfficiency], ShouldResemble, []float64{25, 24})
			So(c.BasicStats, ShouldHaveLength, len(model.StatKeys))
		})

		Convey("Then failed players should be listed separately", func() {
			So(c.Unavailable, ShouldResemble, []string{"Ghost"})
			So(c.Analysis, ShouldContainKey, "LeBron James")
			So(c.Analysis, ShouldNotContainKey, "Ghost")
		})
	})
}

func TestGenerateReport(t *testing.T) {
	Convey("Given a pipeline with a report writer", t, func() {
		dir := t.TempDir()
		p := service.New(roster(),
			service.WithClock(fixedClock),
			service.WithReportWriter(export.New(dir, export.WithClock(fixedClock))))

		Convey("When generating a report", func() {
			r := p.GenerateReport(context.Background(), []string{"Nikola Jokic", "Ghost", "LeBron James"})

			Convey("Then it should be identified, stamped and persisted", func() {
				_, err := uuid.Parse(r.ID)
				So(err, ShouldBeNil)
				So(r.Timestamp.Equal(fixedClock()), ShouldBeTrue)
				So(r.Players, ShouldResemble, []string{"Nikola Jokic", "Ghost", "LeBron James"})
				So(r.Comparison.Players, ShouldResemble, []string{"LeBron James", "Nikola Jokic"})
				So(r.Comparison.Unavailable, ShouldResemble, []string{"Ghost"})
				So(r.Path, ShouldEqual, filepath.Join(dir, "performance_report_20240309_140507.json"))
				b, err := os.ReadFile(r.Path)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, r.ID)
			})
		})

		Convey("When no player could be fetched", func() {
			r := p.GenerateReport(context.Background(), []string{"Ghost"})

			Convey("Then the report should be empty", func() {
				So(r.ID, ShouldBeEmpty)
				So(r.Path, ShouldBeEmpty)
			})
		})
	})
}

func TestAnalyzeFeatures(t *testing.T) {
	Convey("Given a pipeline over a roster", t, func() {
		ctx := context.Background()
		p := service.New(roster(), service.WithPCAComponents(2))
		all := []string{"LeBron James", "Stephen Curry", "Nikola Jokic", "Jalen Brunson", "Rookie"}

		Convey("When analysing with defaults", func() {
			r, err := p.AnalyzeFeatures(ctx, all, service.FeatureRequest{})

			Convey("Then every stage should produce output", func() {
				So(err, ShouldBeNil)
				So(r.Features.IDs, ShouldHaveLength, 5)
				So(r.Scaled.Columns, ShouldResemble, r.Features.Columns)
				So(r.Scaling, ShouldEqual, features.Standard)
				So(r.Importance, ShouldHaveLength, len(r.Features.Columns)-1)
				So(r.Projection, ShouldNotBeNil)
				So(r.Projection.Columns, ShouldResemble, []string{"PC1", "PC2"})
				So(r.Outliers[model.PointsPerGame], ShouldResemble, []string{"Rookie"})
			})
		})

		Convey("When a single player is analysed", func() {
			r, err := p.AnalyzeFeatures(ctx, []string{"Nikola Jokic"}, service.FeatureRequest{})

			Convey("Then the projection should be skipped", func() {
				So(err, ShouldBeNil)
				So(r.Projection, ShouldBeNil)
				So(r.Features.IDs, ShouldResemble, []string{"Nikola Jokic"})
			})
		})

		Convey("When the request violates the contract", func() {
			_, errMethod := p.AnalyzeFeatures(ctx, all, service.FeatureRequest{OutlierMethod: "mad"})
			_, errTarget := p.AnalyzeFeatures(ctx, all, service.FeatureRequest{Target: "blocks"})
			_, errK := p.AnalyzeFeatures(ctx, all, service.FeatureRequest{Components: 20})

			Convey("Then the errors should be returned to the caller", func() {
				So(errors.Is(errMethod, stats.ErrUnsupportedMethod), ShouldBeTrue)
				So(errors.Is(errTarget, features.ErrUnknownColumn), ShouldBeTrue)
				So(errors.Is(errK, features.ErrInvalidComponents), ShouldBeTrue)
			})
		})
	})
}

func TestValidatePlayers(t *testing.T) {
	Convey("Given a roster with one impossible scorer", t, func() {
		p := service.New(roster())

		r := p.ValidatePlayers(context.Background(), []string{"Rookie", "Stephen Curry", "Ghost"})

		Convey("Then the report should flag only that player", func() {
			So(r.Valid, ShouldBeFalse)
			So(r.Summary.RecordCount, ShouldEqual, 2)
			So(r.Violations, ShouldHaveLength, 1)
			So(r.Violations[0], ShouldContainSubstring, "points_per_game=70")
		})
	})
}

func TestExportPlayer(t *testing.T) {
	Convey("Given a pipeline with an export writer", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		p := service.New(roster(), service.WithExportWriter(export.New(dir, export.WithClock(fixedClock))))

		Convey("When exporting as CSV", func() {
			path, err := p.ExportPlayer(ctx, "Stephen Curry", "csv")

			Convey("Then a metric table should be written", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, filepath.Join(dir, "Stephen_Curry_20240309_140507.csv"))
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.HasPrefix(string(b), "Metric,Value"), ShouldBeTrue)
				So(string(b), ShouldContainSubstring, "stats_points_per_game,26")
			})
		})

		Convey("When the request cannot be served", func() {
			_, errFormat := p.ExportPlayer(ctx, "Stephen Curry", "pdf")
			_, errGhost := p.ExportPlayer(ctx, "Ghost", "json")
			_, errEmpty := p.ExportPlayer(ctx, " ", "json")
			_, errDisabled := service.New(roster()).ExportPlayer(ctx, "Stephen Curry", "json")

			Convey("Then each failure should be reported", func() {
				So(errors.Is(errFormat, export.ErrUnsupportedFormat), ShouldBeTrue)
				So(errors.Is(errGhost, service.ErrPlayerUnavailable), ShouldBeTrue)
				So(errors.Is(errEmpty, service.ErrNoPlayers), ShouldBeTrue)
				So(errors.Is(errDisabled, service.ErrExportDisabled), ShouldBeTrue)
			})
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given a pipeline with a summarizer", t, func() {
		s := &fakeSummarizer{}
		p := service.New(roster(), service.WithSummarizer(s))

		out, err := p.Summarize(context.Background(), []string{"Nikola Jokic", "Rookie"})

		Convey("Then only validated players should reach the prompt", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "a fine comparison")
			So(s.prompt, ShouldContainSubstring, "Nikola Jokic")
			So(s.prompt, ShouldNotContainSubstring, "Rookie")
		})
	})

	Convey("Given a pipeline without a summarizer", t, func() {
		_, err := service.New(roster()).Summarize(context.Background(), []string{"Nikola Jokic"})

		Convey("Then it should report the missing backend", func() {
			So(errors.Is(err, narrative.ErrNoBackend), ShouldBeTrue)
		})
	})

	Convey("Given only invalid players", t, func() {
		_, err := service.New(roster(), service.WithSummarizer(&fakeSummarizer{})).
			Summarize(context.Background(), []string{"Rookie"})

		Convey("Then there should be nothing to summarize", func() {
			So(errors.Is(err, service.ErrPlayerUnavailable), ShouldBeTrue)
		})
	})
}

func TestTeamStats(t *testing.T) {
	Convey("Given a pipeline over a roster", t, func() {
		p := service.New(roster())

		Convey("Then team documents should be passed through", func() {
			So(p.TeamStats(context.Background(), " DEN ")["wins"], ShouldEqual, 57.0)
			So(p.TeamStats(context.Background(), "XYZ"), ShouldBeEmpty)
			So(p.TeamStats(context.Background(), ""), ShouldBeEmpty)
		})
	})

	Convey("Given a fetcher that panics", t, func() {
		out := service.New(&fakeFetcher{panics: true}).TeamStats(context.Background(), "DEN")

		Convey("Then an empty document should be returned", func() {
			So(out, ShouldNotBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}
