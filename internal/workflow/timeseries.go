package workflow

import (
	"context"
	"slices"

	"github.com/okian/drtune/internal/config"
	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/internal/report"
	"github.com/okian/drtune/pkg/logger"
)

// RunTimeSeries retrains a multiseries time series model. Before each target
// selection the datetime column's series properties are confirmed and the
// partitioning is generated and printed for inspection.
func (r *Runner) RunTimeSeries(ctx context.Context, cfg config.TimeSeries) (*Result, error) {
	return r.run(ctx, pipeline{
		name:     TimeSeries,
		settings: cfg.Workflow,
		partitioning: func(ctx context.Context, log logger.Logger, projectID string) (*datarobot.DatetimePartitioningSpec, error) {
			return r.prepareTimeSeries(ctx, log, projectID, cfg)
		},
		train:  r.api.TrainDatetime,
		freeze: r.api.RequestFrozenDatetimeModel,
	})
}

// PartitioningSpec builds the datetime partitioning for the settings.
func PartitioningSpec(cfg config.TimeSeries) datarobot.DatetimePartitioningSpec {
	fdwStart, fdwEnd := cfg.FeatureDerivationWindowStart, cfg.FeatureDerivationWindowEnd
	fwStart, fwEnd := cfg.ForecastWindowStart, cfg.ForecastWindowEnd
	spec := datarobot.DatetimePartitioningSpec{
		DatetimePartitionColumn:      cfg.DatetimeColumn,
		AutopilotDataSelectionMethod: cfg.AutopilotDataSelectionMethod,
		UseTimeSeries:                true,
		FeatureDerivationWindowStart: &fdwStart,
		FeatureDerivationWindowEnd:   &fdwEnd,
		ForecastWindowStart:          &fwStart,
		ForecastWindowEnd:            &fwEnd,
		MultiseriesIDColumns:         slices.Clone(cfg.MultiseriesIDColumns),
	}
	if cfg.NumberOfBacktests > 0 {
		n := cfg.NumberOfBacktests
		spec.NumberOfBacktests = &n
	}
	return spec
}

func (r *Runner) prepareTimeSeries(ctx context.Context, log logger.Logger, projectID string, cfg config.TimeSeries) (*datarobot.DatetimePartitioningSpec, error) {
	feature, err := r.api.GetFeature(ctx, projectID, cfg.DatetimeColumn)
	if err != nil {
		return nil, err
	}
	props, err := r.api.GetMultiseriesProperties(ctx, projectID, feature.Name, cfg.MultiseriesIDColumns, r.waits.Target)
	if err != nil {
		return nil, err
	}
	report.MultiseriesProperties(r.out, feature.Name, cfg.MultiseriesIDColumns, props)
	if !props.TimeSeriesEligible {
		if cfg.MultiseriesPropertiesRequired {
			return nil, ErrNotEligible
		}
		log.Warn(ctx, "datetime column is not eligible for the series columns",
			logger.String("project_id", projectID),
			logger.String("feature", feature.Name),
			logger.Any("series_columns", cfg.MultiseriesIDColumns))
	} else {
		log.Info(ctx, "multiseries properties confirmed",
			logger.String("feature", feature.Name),
			logger.String("time_unit", props.TimeUnit),
			logger.Int("time_step", props.TimeStep))
	}

	spec := PartitioningSpec(cfg)
	part, err := r.api.GenerateDatetimePartitioning(ctx, projectID, spec)
	if err != nil {
		return nil, err
	}
	report.Partitioning(r.out, part)
	log.Info(ctx, "datetime partitioning generated",
		logger.String("project_id", projectID),
		logger.Int("backtests", len(part.Backtests)))
	return &spec, nil
}
