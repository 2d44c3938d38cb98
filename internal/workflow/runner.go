// Package workflow drives the retrain-and-tune workflows against the platform:
// build a model in one project, carry its tuning into a model of the same
// blueprint in a second project, then request a frozen model from the result.
package workflow

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/pkg/logger"
	"github.com/okian/drtune/pkg/metrics"
)

// API is the part of the platform client the workflows use.
type API interface {
	CreateProject(ctx context.Context, source, name string, maxWait time.Duration) (*datarobot.Project, error)
	SetTarget(ctx context.Context, projectID string, opts datarobot.TargetOptions, maxWait time.Duration) (*datarobot.Project, error)
	ListBlueprints(ctx context.Context, projectID string) ([]datarobot.Blueprint, error)
	Train(ctx context.Context, projectID, blueprintID string) (string, error)
	TrainDatetime(ctx context.Context, projectID, blueprintID string) (string, error)
	WaitForModel(ctx context.Context, projectID, jobID string, maxWait time.Duration) (*datarobot.Model, error)
	GetAdvancedTuningParameters(ctx context.Context, projectID, modelID string) (*datarobot.TuningParameters, error)
	StartAdvancedTuningSession(ctx context.Context, model *datarobot.Model) (*datarobot.TuningSession, error)
	UnlockHoldout(ctx context.Context, projectID string) error
	RequestFrozenModel(ctx context.Context, projectID, modelID string, samplePct float64) (string, error)
	RequestFrozenDatetimeModel(ctx context.Context, projectID, modelID string) (string, error)
	GetFeature(ctx context.Context, projectID, name string) (*datarobot.Feature, error)
	GetMultiseriesProperties(ctx context.Context, projectID, featureName string, idColumns []string, maxWait time.Duration) (*datarobot.MultiseriesProperties, error)
	GenerateDatetimePartitioning(ctx context.Context, projectID string, spec datarobot.DatetimePartitioningSpec) (*datarobot.DatetimePartitioning, error)
}

// Waits bounds each remote operation.
type Waits struct {
	Project time.Duration
	Target  time.Duration
	Model   time.Duration
	Tuning  time.Duration
	// Frozen of zero submits the frozen model request without waiting.
	Frozen time.Duration
}

// DefaultWaits returns an hour for uploads and target selection and twenty
// minutes for model jobs.
func DefaultWaits() Waits {
	return Waits{
		Project: time.Hour,
		Target:  time.Hour,
		Model:   20 * time.Minute,
		Tuning:  20 * time.Minute,
	}
}

// Runner executes workflows one step at a time.
type Runner struct {
	api    API
	logger logger.Logger
	out    io.Writer
	now    func() time.Time
	waits  Waits
	runID  string
}

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOutput sets where tables are written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithClock sets the time source used for project names.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithWaits replaces the maximum waits. Zero fields keep their defaults,
// except Frozen.
func WithWaits(w Waits) Option {
	return func(r *Runner) {
		if w.Project > 0 {
			r.waits.Project = w.Project
		}
		if w.Target > 0 {
			r.waits.Target = w.Target
		}
		if w.Model > 0 {
			r.waits.Model = w.Model
		}
		if w.Tuning > 0 {
			r.waits.Tuning = w.Tuning
		}
		r.waits.Frozen = w.Frozen
	}
}

// WithRunID sets the id attached to every log entry of the run.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// New constructs a Runner.
func New(api API, opts ...Option) *Runner {
	r := &Runner{
		api:    api,
		logger: logger.Nop(),
		out:    io.Discard,
		now:    time.Now,
		waits:  DefaultWaits(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.String("run_id", r.runID))
	return r
}

// RunID returns the id of the run.
func (r *Runner) RunID() string {
	return r.runID
}

// step runs fn as a named, logged and timed workflow step.
func (r *Runner) step(ctx context.Context, log logger.Logger, workflow, name string, fn func(context.Context) error) error {
	start := time.Now()
	log.Info(ctx, "step started", logger.String("step", name))

	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.RecordStep(workflow, name, elapsed.Seconds(), err != nil)
	if err != nil {
		log.Error(ctx, "step failed",
			logger.String("step", name),
			logger.Duration("duration", elapsed),
			logger.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info(ctx, "step completed", logger.String("step", name), logger.Duration("duration", elapsed))
	return nil
}

// projectName formats <prefix>_PROJECT_<n>_<YYYY-MM-DDTHH:MM>.
func (r *Runner) projectName(prefix string, n int) string {
	return fmt.Sprintf("%s_PROJECT_%d_%s", prefix, n, r.now().Format("2006-01-02T15:04"))
}
