package workflow

import (
	"strconv"
	"time"

	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/internal/report"
)

// Result records what a run created. Fields are filled as steps complete, so
// a failed run still reports how far it got.
type Result struct {
	Workflow string
	RunID    string

	Blueprint         datarobot.Blueprint
	Project1          *datarobot.Project
	Model1            *datarobot.Model
	Project2          *datarobot.Project
	Model2            *datarobot.Model
	TunedModel        *datarobot.Model
	ParametersApplied int
	FrozenJobID       string
	// FrozenModel is set only when the run waited for the frozen model.
	FrozenModel *datarobot.Model

	Duration time.Duration
}

// Fields lists the result for the summary table.
func (r *Result) Fields() []report.Field {
	fields := []report.Field{
		{Key: "Run", Value: r.RunID},
		{Key: "Blueprint", Value: r.Blueprint.ID + " " + r.Blueprint.String()},
	}
	if r.Project1 != nil {
		fields = append(fields, report.Field{Key: "Project 1", Value: r.Project1.ID + " " + r.Project1.ProjectName})
	}
	if r.Model1 != nil {
		fields = append(fields, report.Field{Key: "Model 1", Value: r.Model1.ID})
	}
	if r.Project2 != nil {
		fields = append(fields, report.Field{Key: "Project 2", Value: r.Project2.ID + " " + r.Project2.ProjectName})
	}
	if r.Model2 != nil {
		fields = append(fields, report.Field{Key: "Model 2", Value: r.Model2.ID})
	}
	if r.TunedModel != nil {
		fields = append(fields, report.Field{Key: "Tuned model", Value: r.TunedModel.ID})
	}
	fields = append(fields,
		report.Field{Key: "Parameters applied", Value: strconv.Itoa(r.ParametersApplied)},
		report.Field{Key: "Frozen job", Value: r.FrozenJobID},
	)
	if r.FrozenModel != nil {
		fields = append(fields, report.Field{Key: "Frozen model", Value: r.FrozenModel.ID})
	}
	return fields
}
