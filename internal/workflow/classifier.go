package workflow

import (
	"context"

	"github.com/okian/drtune/internal/config"
)

// Workflow names.
const (
	Classifier = "classifier"
	TimeSeries = "timeseries"
)

// RunClassifier retrains a tabular classifier: the tuning of a model built in
// one project is carried to the same blueprint in a fresh project, which is
// then frozen at the configured sample size.
func (r *Runner) RunClassifier(ctx context.Context, cfg config.Classifier) (*Result, error) {
	return r.run(ctx, pipeline{
		name:     Classifier,
		settings: cfg.Workflow,
		train:    r.api.Train,
		freeze: func(ctx context.Context, projectID, modelID string) (string, error) {
			return r.api.RequestFrozenModel(ctx, projectID, modelID, cfg.FrozenSamplePct)
		},
	})
}
