package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/internal/report"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBlueprints(t *testing.T) {
	Convey("Given a blueprint menu", t, func() {
		var buf bytes.Buffer
		report.Blueprints(&buf, []datarobot.Blueprint{
			{ID: "bp-0", ModelType: "eXtreme Gradient Boosted Trees Classifier", Processes: []string{"One-Hot Encoding", "Missing Values Imputed"}},
			{ID: "bp-1", ModelType: "Regularized Logistic Regression (L2)"},
		})
		out := buf.String()

		Convey("Each blueprint is listed with its index", func() {
			So(out, ShouldContainSubstring, "MODEL TYPE")
			So(out, ShouldContainSubstring, "eXtreme Gradient Boosted Trees Classifier")
			So(out, ShouldContainSubstring, "One-Hot Encoding, Missing Values Imputed")
			So(out, ShouldContainSubstring, "| 1 ")
			So(strings.Count(out, "bp-"), ShouldEqual, 2)
		})
	})
}

func TestTuningParameters(t *testing.T) {
	Convey("Given tuning parameters of mixed types", t, func() {
		var buf bytes.Buffer
		report.TuningParameters(&buf, []datarobot.TuningParameter{
			{
				TaskName: "eXtreme Gradient Boosted Trees", ParameterName: "learning_rate", ParameterID: "p1",
				DefaultValue: 0.05, CurrentValue: 0.1,
				Constraints: map[string]any{"float": map[string]any{"min": 0.0, "max": 1.0}},
			},
			{
				TaskName: "Missing Values Imputed", ParameterName: "strategy", ParameterID: "p2",
				DefaultValue: "median", CurrentValue: nil,
				Constraints: map[string]any{"select": []any{"mean", "median"}, "ascii": map[string]any{}},
			},
		})
		out := buf.String()

		Convey("Values and constraint kinds are rendered", func() {
			So(out, ShouldContainSubstring, "learning_rate")
			So(out, ShouldContainSubstring, "0.05")
			So(out, ShouldContainSubstring, "0.1")
			So(out, ShouldContainSubstring, "median")
			So(out, ShouldContainSubstring, "ascii, select")
			So(out, ShouldContainSubstring, " - ")
		})
	})
}

func TestMultiseriesProperties(t *testing.T) {
	Convey("Given multiseries properties", t, func() {
		var buf bytes.Buffer

		Convey("Eligible properties show the time step", func() {
			report.MultiseriesProperties(&buf, "Date", []string{"Store"},
				&datarobot.MultiseriesProperties{TimeSeriesEligible: true, TimeUnit: "DAY", TimeStep: 1})
			So(buf.String(), ShouldContainSubstring, "DAY")
			So(buf.String(), ShouldContainSubstring, "true")
			So(buf.String(), ShouldContainSubstring, "Store")
		})

		Convey("Ineligible properties leave the step blank", func() {
			report.MultiseriesProperties(&buf, "Date", []string{"Region"},
				&datarobot.MultiseriesProperties{})
			So(buf.String(), ShouldContainSubstring, "false")
		})
	})
}

func TestPartitioning(t *testing.T) {
	Convey("Given a generated partitioning", t, func() {
		start, end := -90, 0
		var buf bytes.Buffer
		report.Partitioning(&buf, &datarobot.DatetimePartitioning{
			FeatureDerivationWindowStart: &start,
			FeatureDerivationWindowEnd:   &end,
			Backtests: []datarobot.Backtest{
				{Index: 0, ValidationStartDate: "2014-04-01", ValidationEndDate: "2014-04-29", ValidationDuration: "P0Y0M28D"},
				{Index: 1, ValidationStartDate: "2014-03-01", ValidationEndDate: "2014-03-29", ValidationDuration: "P0Y0M28D"},
			},
			HoldoutStartDate: "2014-05-01",
			HoldoutEndDate:   "2014-05-29",
		})
		out := buf.String()

		Convey("Windows and backtests are listed", func() {
			So(out, ShouldContainSubstring, "Feature derivation window: [-90, 0]")
			So(out, ShouldContainSubstring, "Forecast window: [-, -]")
			So(out, ShouldContainSubstring, "2014-03-29")
			So(out, ShouldContainSubstring, "holdout")
		})
	})
}

func TestSummary(t *testing.T) {
	Convey("Summary renders key value rows", t, func() {
		var buf bytes.Buffer
		report.Summary(&buf, "classifier", []report.Field{
			{Key: "Project 1", Value: "p-1"},
			{Key: "Frozen job", Value: "job-9"},
		})
		So(buf.String(), ShouldContainSubstring, "CLASSIFIER")
		So(buf.String(), ShouldContainSubstring, "Frozen job")
		So(buf.String(), ShouldContainSubstring, "job-9")
	})
}
