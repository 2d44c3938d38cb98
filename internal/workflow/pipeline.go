package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/drtune/internal/config"
	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/internal/report"
	"github.com/okian/drtune/pkg/logger"
	"github.com/okian/drtune/pkg/metrics"
)

// pipeline is the shape both workflows share. The hooks carry what differs.
type pipeline struct {
	name     string
	settings config.Workflow

	// partitioning, when set, is called before each target selection and
	// returns the datetime partitioning to set the target with.
	partitioning func(ctx context.Context, log logger.Logger, projectID string) (*datarobot.DatetimePartitioningSpec, error)
	train        func(ctx context.Context, projectID, blueprintID string) (string, error)
	freeze       func(ctx context.Context, projectID, modelID string) (string, error)
}

// project is one pass of create, set target, train.
type project struct {
	project *datarobot.Project
	model   *datarobot.Model
}

func (r *Runner) run(ctx context.Context, p pipeline) (res *Result, err error) {
	log := r.logger.With(logger.String("workflow", p.name))
	res = &Result{Workflow: p.name, RunID: r.runID}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		metrics.SetRunResult(p.name, err == nil)
	}()

	if err := checkSource(p.settings.Source); err != nil {
		return res, err
	}
	selector, err := selectorFor(p.settings.MatchBy)
	if err != nil {
		return res, err
	}

	first, bp, err := r.firstProject(ctx, log, p)
	res.Blueprint = bp
	res.Project1, res.Model1 = first.project, first.model
	if err != nil {
		return res, err
	}

	var params []datarobot.TuningParameter
	err = r.step(ctx, log, p.name, "get_tuning_parameters", func(ctx context.Context) error {
		tp, err := r.api.GetAdvancedTuningParameters(ctx, first.project.ID, first.model.ID)
		if err != nil {
			return err
		}
		params = tp.Parameters
		log.Info(ctx, "tuning parameters retrieved",
			logger.String("model_id", first.model.ID),
			logger.Int("count", len(params)))
		report.TuningParameters(r.out, params)
		return nil
	})
	if err != nil {
		return res, err
	}

	second, err := r.newProject(ctx, log, p, 2)
	res.Project2 = second.project
	if err != nil {
		return res, err
	}
	if second.model, err = r.trainModel(ctx, log, p, 2, second.project.ID, bp.ID); err != nil {
		return res, err
	}
	res.Model2 = second.model

	err = r.step(ctx, log, p.name, "advanced_tuning", func(ctx context.Context) error {
		tuned, applied, err := r.tune(ctx, log, p, second.model, params, selector)
		res.ParametersApplied = applied
		res.TunedModel = tuned
		return err
	})
	if err != nil {
		return res, err
	}

	err = r.step(ctx, log, p.name, "unlock_holdout", func(ctx context.Context) error {
		return r.api.UnlockHoldout(ctx, second.project.ID)
	})
	if err != nil {
		return res, err
	}

	err = r.step(ctx, log, p.name, "request_frozen_model", func(ctx context.Context) error {
		jobID, err := p.freeze(ctx, second.project.ID, res.TunedModel.ID)
		if err != nil {
			return err
		}
		metrics.RecordFrozenRequest()
		res.FrozenJobID = jobID
		log.Info(ctx, "frozen model requested",
			logger.String("project_id", second.project.ID),
			logger.String("model_id", res.TunedModel.ID),
			logger.String("job_id", jobID))
		if r.waits.Frozen <= 0 {
			return nil
		}
		frozen, err := r.api.WaitForModel(ctx, second.project.ID, jobID, r.waits.Frozen)
		if err != nil {
			return err
		}
		metrics.RecordModelTrained(metrics.ModelFrozen)
		res.FrozenModel = frozen
		return nil
	})
	if err != nil {
		return res, err
	}

	report.Summary(r.out, p.name, res.Fields())
	log.Info(ctx, "all done", logger.Duration("duration", time.Since(start)))
	return res, nil
}

// firstProject creates project 1, picks the blueprint and trains it.
func (r *Runner) firstProject(ctx context.Context, log logger.Logger, p pipeline) (project, datarobot.Blueprint, error) {
	var bp datarobot.Blueprint
	first, err := r.newProject(ctx, log, p, 1)
	if err != nil {
		return first, bp, err
	}

	err = r.step(ctx, log, p.name, "select_blueprint", func(ctx context.Context) error {
		bps, err := r.api.ListBlueprints(ctx, first.project.ID)
		if err != nil {
			return err
		}
		report.Blueprints(r.out, bps)
		bp, err = pickBlueprint(bps, p.settings.BlueprintIndex)
		if err != nil {
			return err
		}
		log.Info(ctx, "blueprint selected",
			logger.Int("index", p.settings.BlueprintIndex),
			logger.String("blueprint_id", bp.ID),
			logger.String("model_type", bp.ModelType))
		return nil
	})
	if err != nil {
		return first, bp, err
	}

	first.model, err = r.trainModel(ctx, log, p, 1, first.project.ID, bp.ID)
	return first, bp, err
}

// newProject uploads the dataset as project n and sets its target.
func (r *Runner) newProject(ctx context.Context, log logger.Logger, p pipeline, n int) (project, error) {
	var out project
	name := r.projectName(p.settings.ProjectPrefix, n)

	err := r.step(ctx, log, p.name, fmt.Sprintf("create_project_%d", n), func(ctx context.Context) error {
		log.Info(ctx, "uploading dataset", logger.String("source", p.settings.Source), logger.String("project_name", name))
		proj, err := r.api.CreateProject(ctx, p.settings.Source, name, r.waits.Project)
		if err != nil {
			return err
		}
		metrics.RecordProjectCreated()
		out.project = proj
		log.Info(ctx, "project created", logger.String("project_id", proj.ID), logger.String("project_name", proj.ProjectName))
		return nil
	})
	if err != nil {
		return out, err
	}

	var spec *datarobot.DatetimePartitioningSpec
	if p.partitioning != nil {
		err = r.step(ctx, log, p.name, fmt.Sprintf("partitioning_%d", n), func(ctx context.Context) error {
			s, err := p.partitioning(ctx, log, out.project.ID)
			spec = s
			return err
		})
		if err != nil {
			return out, err
		}
	}

	err = r.step(ctx, log, p.name, fmt.Sprintf("set_target_%d", n), func(ctx context.Context) error {
		log.Info(ctx, "setting target in manual mode",
			logger.String("project_id", out.project.ID),
			logger.String("target", p.settings.Target))
		proj, err := r.api.SetTarget(ctx, out.project.ID, datarobot.TargetOptions{
			Target:       p.settings.Target,
			Mode:         datarobot.AutopilotManual,
			WorkerCount:  p.settings.WorkerCount,
			Partitioning: spec,
		}, r.waits.Target)
		if err != nil {
			return err
		}
		out.project = proj
		return nil
	})
	return out, err
}

// trainModel trains a blueprint and waits for the model the job produced.
func (r *Runner) trainModel(ctx context.Context, log logger.Logger, p pipeline, n int, projectID, blueprintID string) (*datarobot.Model, error) {
	var model *datarobot.Model
	err := r.step(ctx, log, p.name, fmt.Sprintf("train_model_%d", n), func(ctx context.Context) error {
		jobID, err := p.train(ctx, projectID, blueprintID)
		if err != nil {
			return err
		}
		log.Info(ctx, "training model",
			logger.String("project_id", projectID),
			logger.String("blueprint_id", blueprintID),
			logger.String("job_id", jobID))
		model, err = r.api.WaitForModel(ctx, projectID, jobID, r.waits.Model)
		if err != nil {
			return err
		}
		metrics.RecordModelTrained(metrics.ModelBase)
		log.Info(ctx, "model trained", logger.String("model_id", model.ID), logger.String("model", model.String()))
		return nil
	})
	return model, err
}

// tune sets every carried parameter on model, runs the session and waits for
// the tuned model.
func (r *Runner) tune(ctx context.Context, log logger.Logger, p pipeline, model *datarobot.Model,
	params []datarobot.TuningParameter, selector func(datarobot.TuningParameter) datarobot.ParameterSelector,
) (*datarobot.Model, int, error) {
	session, err := r.api.StartAdvancedTuningSession(ctx, model)
	if err != nil {
		return nil, 0, err
	}
	if p.settings.TuningDescription != "" {
		session.SetDescription(p.settings.TuningDescription)
	}

	for _, tp := range params {
		if tp.CurrentValue == nil {
			log.Debug(ctx, "skipping parameter without a value",
				logger.String("task", tp.TaskName),
				logger.String("parameter", tp.ParameterName))
			continue
		}
		if err := session.SetParameter(selector(tp), tp.CurrentValue); err != nil {
			return nil, session.Len(), err
		}
	}
	applied := session.Len()
	metrics.RecordTuningParameters(applied)

	jobID, err := session.Run(ctx)
	if err != nil {
		return nil, applied, err
	}
	log.Info(ctx, "advanced tuning started",
		logger.String("model_id", model.ID),
		logger.Int("parameters", applied),
		logger.String("job_id", jobID))

	tuned, err := r.api.WaitForModel(ctx, model.ProjectID, jobID, r.waits.Tuning)
	if err != nil {
		return nil, applied, err
	}
	metrics.RecordModelTrained(metrics.ModelTuned)
	log.Info(ctx, "advanced tuning complete", logger.String("model_id", tuned.ID))
	return tuned, applied, nil
}

func pickBlueprint(bps []datarobot.Blueprint, index int) (datarobot.Blueprint, error) {
	if len(bps) == 0 {
		return datarobot.Blueprint{}, ErrNoBlueprints
	}
	if index < 0 || index >= len(bps) {
		return datarobot.Blueprint{}, fmt.Errorf("%w: %d of %d", ErrBlueprintIndex, index, len(bps))
	}
	return bps[index], nil
}

// selectorFor returns how a parameter of the first model is found on the
// second: by task and parameter name, or by task and parameter id.
func selectorFor(matchBy string) (func(datarobot.TuningParameter) datarobot.ParameterSelector, error) {
	switch matchBy {
	case "name", "":
		return func(tp datarobot.TuningParameter) datarobot.ParameterSelector {
			return datarobot.ParameterSelector{TaskName: tp.TaskName, ParameterName: tp.ParameterName}
		}, nil
	case "id":
		return func(tp datarobot.TuningParameter) datarobot.ParameterSelector {
			return datarobot.ParameterSelector{TaskName: tp.TaskName, ParameterID: tp.ParameterID}
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMatchMode, matchBy)
	}
}

// checkSource fails early when a local dataset does not exist.
func checkSource(source string) error {
	if datarobot.IsURLSource(source) {
		return nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%w: %w", datarobot.ErrInvalidSource, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", datarobot.ErrInvalidSource, source)
	}
	return nil
}
