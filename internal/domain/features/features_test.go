package features_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/okian/hoopstat/internal/domain/features"
	"github.com/okian/hoopstat/internal/domain/model"
	"github.com/okian/hoopstat/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/stat"
)

func player(name string, ppg, rpg, apg, fg, three float64) model.Record {
	return model.NewRecord(name, "LAL", map[string]float64{
		model.PointsPerGame:   ppg,
		model.ReboundsPerGame: rpg,
		model.AssistsPerGame:  apg,
		model.FieldGoalPct:    fg,
		model.ThreePointPct:   three,
	}, map[string]float64{model.PlayerEfficiency: ppg}, nil)
}

func roster() map[string]model.Record {
	return map[string]model.Record{
		"A": player("A", 25, 7, 8, 0.5, 0.35),
		"B": player("B", 30, 5, 6, 0.48, 0.40),
		"C": player("C", 12, 11, 2, 0.55, 0.10),
		"D": player("D", 18, 4, 10, 0.45, 0.38),
		"E": player("E", 8, 9, 1, 0.60, 0.0),
	}
}

func TestExtract(t *testing.T) {
	Convey("Given a single record", t, func() {
		e := features.New()
		table := e.Extract(map[string]model.Record{"A": player("A", 25, 7, 8, 0.5, 0.35)})

		Convey("Then derived features should follow their formulas", func() {
			se, err := table.Column(features.ScoringEfficiency)
			So(err, ShouldBeNil)
			So(se[0], ShouldAlmostEqual, 25/(0.85+1e-5), 1e-9)
			So(se[0], ShouldAlmostEqual, 29.41, 0.01)

			pm, _ := table.Column(features.PlaymakingScore)
			So(pm[0], ShouldAlmostEqual, 8*(1+25.0/20), 1e-9)

			vi, _ := table.Column(features.VersatilityIndex)
			So(vi[0], ShouldEqual, 40.0)
		})

		Convey("Then the column set should be raw plus derived", func() {
			So(table.Columns, ShouldHaveLength, len(model.StatKeys)+len(model.AdvancedKeys)+3)
			So(table.IDs, ShouldResemble, []string{"A"})
		})
	})

	Convey("Given a player without shooting attempts", t, func() {
		table := features.New().Extract(map[string]model.Record{"Z": model.Empty("Z")})

		Convey("Then scoring efficiency should stay finite", func() {
			se, _ := table.Column(features.ScoringEfficiency)
			So(math.IsInf(se[0], 0) || math.IsNaN(se[0]), ShouldBeFalse)
		})
	})

	Convey("Given several records", t, func() {
		table := features.New().Extract(roster())

		Convey("Then rows should be sorted by identity", func() {
			So(table.IDs, ShouldResemble, []string{"A", "B", "C", "D", "E"})
			So(table.Records()[2]["player"], ShouldEqual, "C")
		})
	})
}

func TestScale(t *testing.T) {
	Convey("Given an extracted table", t, func() {
		table := features.New().Extract(roster())

		Convey("When standard scaling a column", func() {
			scaled, err := features.New().Scale(table, model.PointsPerGame)
			So(err, ShouldBeNil)

			col, _ := scaled.Column(model.PointsPerGame)
			mean, std := stat.PopMeanStdDev(col, nil)

			Convey("Then it should have zero mean and unit variance", func() {
				So(mean, ShouldAlmostEqual, 0, 1e-9)
				So(std, ShouldAlmostEqual, 1, 1e-9)
			})

			Convey("Then other columns and the input should be untouched", func() {
				orig, _ := table.Column(model.ReboundsPerGame)
				same, _ := scaled.Column(model.ReboundsPerGame)
				So(same, ShouldResemble, orig)

				raw, _ := table.Column(model.PointsPerGame)
				So(raw[0], ShouldEqual, 25.0)
			})
		})

		Convey("When min-max scaling everything", func() {
			scaled, err := features.New(features.WithScaling(features.MinMax)).Scale(table)
			So(err, ShouldBeNil)

			Convey("Then every value should lie in [0, 1]", func() {
				for _, row := range scaled.Values {
					for _, v := range row {
						So(v, ShouldBeBetweenOrEqual, 0.0, 1.0)
					}
				}
			})
		})

		Convey("When naming an unknown column", func() {
			_, err := features.New().Scale(table, "minutes")
			So(errors.Is(err, features.ErrUnknownColumn), ShouldBeTrue)
		})
	})

	Convey("Given an unknown scaling name", t, func() {
		_, err := features.ParseScaling("robust")
		So(errors.Is(err, features.ErrUnsupportedScaling), ShouldBeTrue)
	})
}

func TestImportance(t *testing.T) {
	Convey("Given a target that depends on one feature only", t, func() {
		table := features.Table{Columns: []string{"signal", "noise", "target"}}
		for i := 0; i < 40; i++ {
			x := float64(i)
			table.IDs = append(table.IDs, fmt.Sprintf("p%02d", i))
			table.Values = append(table.Values, []float64{x, float64((i * 37) % 17), 3 * x})
		}

		scores, err := features.New().Importance(table, "target")

		Convey("Then the dependent feature should rank first", func() {
			So(err, ShouldBeNil)
			So(scores, ShouldHaveLength, 2)
			So(scores[0].Feature, ShouldEqual, "signal")
			So(scores[0].Score, ShouldBeGreaterThan, scores[1].Score)
			So(scores[1].Score, ShouldBeGreaterThanOrEqualTo, 0.0)
		})
	})

	Convey("Given an unknown target", t, func() {
		_, err := features.New().Importance(features.Table{}, "target")
		So(errors.Is(err, features.ErrUnknownColumn), ShouldBeTrue)
	})

	Convey("Given a single row", t, func() {
		table := features.New().Extract(map[string]model.Record{"A": player("A", 25, 7, 8, 0.5, 0.35)})
		scores, err := features.New().Importance(table, model.PointsPerGame)

		So(err, ShouldBeNil)
		for _, s := range scores {
			So(s.Score, ShouldEqual, 0.0)
		}
	})
}

func TestReduce(t *testing.T) {
	Convey("Given an extracted table of five players", t, func() {
		e := features.New()
		table := e.Extract(roster())

		Convey("When reducing to two components", func() {
			proj, err := e.Reduce(table, 2)

			Convey("Then the projection should be rows x k with identities kept", func() {
				So(err, ShouldBeNil)
				So(proj.Columns, ShouldResemble, []string{"PC1", "PC2"})
				So(proj.IDs, ShouldResemble, table.IDs)
				So(proj.Values, ShouldHaveLength, 5)
				So(proj.Values[0], ShouldHaveLength, 2)
			})

			Convey("Then explained variance should be ordered and bounded", func() {
				So(proj.ExplainedVariance[0], ShouldBeGreaterThanOrEqualTo, proj.ExplainedVariance[1])
				So(proj.ExplainedVariance[0]+proj.ExplainedVariance[1], ShouldBeLessThanOrEqualTo, 1.0+1e-9)
			})

			Convey("Then projected columns should be centred", func() {
				pc1, _ := proj.Column("PC1")
				So(stat.Mean(pc1, nil), ShouldAlmostEqual, 0, 1e-9)
			})
		})

		Convey("When asking for more components than rows", func() {
			_, err := e.Reduce(table, 6)
			So(errors.Is(err, features.ErrInvalidComponents), ShouldBeTrue)
		})

		Convey("When asking for zero components", func() {
			_, err := e.Reduce(table, 0)
			So(errors.Is(err, features.ErrInvalidComponents), ShouldBeTrue)
		})
	})
}

func TestDetectOutliers(t *testing.T) {
	Convey("Given a roster with one extreme scorer", t, func() {
		records := roster()
		records["F"] = player("F", 5, 6, 3, 0.5, 0.3)
		records["X"] = player("X", 90, 6, 3, 0.5, 0.3)
		e := features.New()
		table := e.Extract(records)

		Convey("When using the IQR rule", func() {
			out, err := e.DetectOutliers(table, "iqr")

			Convey("Then every column should be reported", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, len(table.Columns))
				So(out[model.PointsPerGame], ShouldResemble, []string{"X"})
			})
		})

		Convey("When using an unknown method", func() {
			_, err := e.DetectOutliers(table, "isolation_forest")

			Convey("Then it should fail loudly", func() {
				So(errors.Is(err, features.ErrUnsupportedMethod), ShouldBeTrue)
				So(errors.Is(err, stats.ErrUnsupportedMethod), ShouldBeTrue)
			})
		})
	})

	Convey("Given a column with a value near the z-score boundary", t, func() {
		column := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 10}
		table := features.Table{Columns: []string{model.PointsPerGame}}
		for i, v := range column {
			table.IDs = append(table.IDs, fmt.Sprintf("P%02d", i))
			table.Values = append(table.Values, []float64{v})
		}

		Convey("Then the sample deviation should keep it below the threshold", func() {
			out, err := features.New().DetectOutliers(table, "zscore")
			So(err, ShouldBeNil)
			So(out[model.PointsPerGame], ShouldBeEmpty)
		})
	})
}
