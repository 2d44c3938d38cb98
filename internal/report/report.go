// Package report renders platform objects as console tables.
package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/okian/drtune/internal/datarobot"
)

// Field is one row of a summary table.
type Field struct {
	Key   string
	Value string
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// Blueprints writes the blueprint menu with the index used to pick one.
func Blueprints(w io.Writer, bps []datarobot.Blueprint) {
	t := newTable(w, "#", "ID", "Model Type", "Processes")
	for i, bp := range bps {
		t.Append([]string{strconv.Itoa(i), bp.ID, bp.ModelType, strings.Join(bp.Processes, ", ")})
	}
	t.Render()
}

// TuningParameters writes a model's tuning parameters.
func TuningParameters(w io.Writer, params []datarobot.TuningParameter) {
	t := newTable(w, "Task", "Parameter", "ID", "Default", "Current", "Constraints")
	for _, p := range params {
		t.Append([]string{
			p.TaskName,
			p.ParameterName,
			p.ParameterID,
			value(p.DefaultValue),
			value(p.CurrentValue),
			constraints(p.Constraints),
		})
	}
	t.Render()
}

// MultiseriesProperties writes the detected series properties of a datetime feature.
func MultiseriesProperties(w io.Writer, feature string, idColumns []string, props *datarobot.MultiseriesProperties) {
	t := newTable(w, "Feature", "Series ID", "Eligible", "Time Unit", "Time Step")
	step := ""
	if props.TimeSeriesEligible {
		step = strconv.Itoa(props.TimeStep)
	}
	t.Append([]string{
		feature,
		strings.Join(idColumns, ", "),
		strconv.FormatBool(props.TimeSeriesEligible),
		props.TimeUnit,
		step,
	})
	t.Render()
}

// Partitioning writes the feature derivation and forecast windows followed by
// one row per backtest.
func Partitioning(w io.Writer, part *datarobot.DatetimePartitioning) {
	_, _ = fmt.Fprintf(w, "Feature derivation window: [%s, %s]  Forecast window: [%s, %s]\n",
		intPtr(part.FeatureDerivationWindowStart), intPtr(part.FeatureDerivationWindowEnd),
		intPtr(part.ForecastWindowStart), intPtr(part.ForecastWindowEnd))

	t := newTable(w, "Backtest", "Training Start", "Training End", "Validation Start", "Validation End", "Validation Duration")
	for _, b := range part.Backtests {
		t.Append([]string{
			strconv.Itoa(b.Index),
			b.PrimaryTrainingStartDate,
			b.PrimaryTrainingEndDate,
			b.ValidationStartDate,
			b.ValidationEndDate,
			b.ValidationDuration,
		})
	}
	if part.HoldoutStartDate != "" || part.HoldoutEndDate != "" {
		t.Append([]string{"holdout", "", "", part.HoldoutStartDate, part.HoldoutEndDate, part.HoldoutDuration})
	}
	t.Render()
}

// Summary writes key/value rows under a title.
func Summary(w io.Writer, title string, fields []Field) {
	t := newTable(w, title, "")
	for _, f := range fields {
		t.Append([]string{f.Key, f.Value})
	}
	t.Render()
}

func value(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func intPtr(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

// constraints lists the constraint kinds a parameter accepts, e.g. "float, select".
func constraints(c map[string]any) string {
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return strings.Join(kinds, ", ")
}
