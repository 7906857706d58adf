package export_test

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"

	"github.com/okian/hoopstat/internal/adapters/export"
	. "github.com/smartystreets/goconvey/convey"
)

type sample struct {
	Name  string             `json:"name"`
	Stats map[string]float64 `json:"stats"`
	Valid bool               `json:"valid"`
}

func fixed() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

func TestFlatten(t *testing.T) {
	Convey("Given nested data", t, func() {
		rows, err := export.Flatten(sample{
			Name:  "LeBron James",
			Stats: map[string]float64{"points_per_game": 25.7, "assists_per_game": 8},
			Valid: true,
		})

		Convey("Then nested keys should be joined and sorted", func() {
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []export.Row{
				{Metric: "name", Value: "LeBron James"},
				{Metric: "stats_assists_per_game", Value: "8"},
				{Metric: "stats_points_per_game", Value: "25.7"},
				{Metric: "valid", Value: "true"},
			})
		})
	})

	Convey("Given data that is not an object", t, func() {
		_, err := export.Flatten([]int{1, 2})
		So(errors.Is(err, export.ErrNotTabular), ShouldBeTrue)
	})
}

func TestWriter(t *testing.T) {
	Convey("Given a writer on a fresh directory", t, func() {
		dir := filepath.Join(t.TempDir(), "exports")
		w := export.New(dir, export.WithClock(fixed))
		data := sample{Name: "A", Stats: map[string]float64{"points_per_game": 20}}

		Convey("When writing JSON", func() {
			path, err := w.WriteJSON("a.json", data)
			So(err, ShouldBeNil)

			Convey("Then the document should round trip", func() {
				b, _ := os.ReadFile(path)
				var got sample
				So(json.Unmarshal(b, &got), ShouldBeNil)
				So(got.Stats["points_per_game"], ShouldEqual, 20.0)
			})
		})

		Convey("When writing CSV", func() {
			path, err := w.WriteTable(w.Stamped(export.SafeName("Player A"), export.CSV), export.CSV, data)
			So(err, ShouldBeNil)

			Convey("Then it should be a Metric,Value table with a stamped name", func() {
				So(filepath.Base(path), ShouldEqual, "Player_A_20240309_140507.csv")
				f, _ := os.Open(path)
				defer f.Close()
				records, err := csv.NewReader(f).ReadAll()
				So(err, ShouldBeNil)
				So(records[0], ShouldResemble, []string{"Metric", "Value"})
				So(records, ShouldContain, []string{"stats_points_per_game", "20"})
			})
		})

		Convey("When writing XLSX", func() {
			path, err := w.WriteTable("a.xlsx", export.XLSX, data)
			So(err, ShouldBeNil)

			Convey("Then the workbook should hold the metrics sheet", func() {
				f, err := excelize.OpenFile(path)
				So(err, ShouldBeNil)
				defer f.Close()
				rows, err := f.GetRows("Metrics")
				So(err, ShouldBeNil)
				So(rows[0], ShouldResemble, []string{"Metric", "Value"})
				So(rows, ShouldHaveLength, 4)
			})
		})

		Convey("When using an unknown format", func() {
			_, err := export.ParseFormat("parquet")
			So(errors.Is(err, export.ErrUnsupportedFormat), ShouldBeTrue)

			f, err := export.ParseFormat(" CSV ")
			So(err, ShouldBeNil)
			So(f, ShouldEqual, export.CSV)
		})
	})
}
