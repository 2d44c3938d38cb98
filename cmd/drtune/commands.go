package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/drtune/internal/config"
	"github.com/okian/drtune/internal/datarobot"
	"github.com/okian/drtune/internal/workflow"
	"github.com/okian/drtune/pkg/logger"
	"github.com/okian/drtune/pkg/metrics"
)

const (
	pushTimeout = 10 * time.Second
	userAgent   = "drtune/1.0"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
	logFile    string
}

// workflowFlags override the workflow section of the configuration.
type workflowFlags struct {
	source         string
	target         string
	projectPrefix  string
	blueprintIndex int
	matchBy        string
	frozenWait     time.Duration
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:   "drtune",
		Short: "Carry a model's advanced tuning into a fresh project and freeze it",
		Long: `drtune runs one of two workflows against the DataRobot API:

  classifier  tabular dataset, frozen model at a fixed sample size
  timeseries  multiseries dataset with datetime partitioning

Each workflow uploads the dataset twice. The first project trains a model from
the selected blueprint; its advanced tuning parameters are then applied to the
same blueprint in the second project, whose holdout is unlocked before a frozen
model is requested.

Credentials come from DRTUNE_API_TOKEN or DATAROBOT_API_TOKEN (a .env file is
read when present).`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rf.configFile, "config", "", "YAML configuration file (overrides "+config.EnvConfigFile+")")
	pf.StringVar(&rf.envFile, "env-file", "", "dotenv file to load before reading the environment")
	pf.StringVar(&rf.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&rf.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&rf.logFile, "log-file", "", "also append log entries to this file")

	root.AddCommand(
		newWorkflowCmd(rf, workflow.Classifier, "Retrain a tabular classifier"),
		newWorkflowCmd(rf, workflow.TimeSeries, "Retrain a multiseries time series model"),
	)
	return root
}

func newWorkflowCmd(rf *rootFlags, name, short string) *cobra.Command {
	wf := &workflowFlags{}
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, rf, wf, name)
		},
	}
	f := cmd.Flags()
	f.StringVar(&wf.source, "source", "", "dataset: local CSV/XLSX path or http(s) URL")
	f.StringVar(&wf.target, "target", "", "target column")
	f.StringVar(&wf.projectPrefix, "project-prefix", "", "project name prefix")
	f.IntVar(&wf.blueprintIndex, "blueprint-index", 0, "blueprint to train, by position in the first project's menu")
	f.StringVar(&wf.matchBy, "match-by", "", "carry tuning parameters by parameter name or id")
	f.DurationVar(&wf.frozenWait, "frozen-wait", 0, "wait this long for the frozen model (0 submits without waiting)")
	return cmd
}

// apply overlays the flags the user set onto the workflow section.
func (wf *workflowFlags) apply(cmd *cobra.Command, w *config.Workflow) {
	f := cmd.Flags()
	if f.Changed("source") {
		w.Source = wf.source
	}
	if f.Changed("target") {
		w.Target = wf.target
	}
	if f.Changed("project-prefix") {
		w.ProjectPrefix = wf.projectPrefix
	}
	if f.Changed("blueprint-index") {
		w.BlueprintIndex = wf.blueprintIndex
	}
	if f.Changed("match-by") {
		w.MatchBy = wf.matchBy
	}
}

func loadConfig(ctx context.Context, cmd *cobra.Command, rf *rootFlags, wf *workflowFlags, name string) (*config.Config, error) {
	cfg, err := config.Load(ctx, config.WithFile(rf.configFile), config.WithEnvFile(rf.envFile))
	if err != nil {
		return nil, err
	}
	if rf.logLevel != "" {
		cfg.LogLevel = rf.logLevel
	}
	if rf.logFormat != "" {
		cfg.LogFormat = rf.logFormat
	}
	if rf.logFile != "" {
		cfg.LogFile = rf.logFile
	}
	if cmd.Flags().Changed("frozen-wait") {
		cfg.FrozenWait = wf.frozenWait
	}
	wf.apply(cmd, &cfg.Classifier.Workflow)
	wf.apply(cmd, &cfg.TimeSeries.Workflow)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	switch name {
	case workflow.Classifier:
		err = cfg.Classifier.Validate()
	case workflow.TimeSeries:
		err = cfg.TimeSeries.Validate()
	default:
		err = fmt.Errorf("unknown workflow %q", name)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, rf *rootFlags, wf *workflowFlags, name string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, cmd, rf, wf, name)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithFormat(cfg.LogFormat),
		logger.WithLogFile(cfg.LogFile),
	); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("drtune")

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	runner, err := newRunner(cmd, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to create client", logger.Error(err))
		return err
	}
	log.Info(ctx, "run started",
		logger.String("workflow", name),
		logger.String("run_id", runner.RunID()),
		logger.String("endpoint", cfg.Endpoint))

	defer func() {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if perr := metrics.Push(pushCtx, cfg.MetricsPushURL, cfg.MetricsJob); perr != nil {
			log.Warn(ctx, "metrics push failed", logger.Error(perr))
		}
	}()

	var res *workflow.Result
	if name == workflow.TimeSeries {
		res, err = runner.RunTimeSeries(ctx, cfg.TimeSeries)
	} else {
		res, err = runner.RunClassifier(ctx, cfg.Classifier)
	}
	if err != nil {
		log.Error(ctx, "run failed",
			logger.String("workflow", name),
			logger.Duration("duration", res.Duration),
			logger.Error(err))
		return err
	}
	log.Info(ctx, "run finished", logger.String("workflow", name), logger.Duration("duration", res.Duration))
	return nil
}

func newRunner(cmd *cobra.Command, cfg *config.Config, log logger.Logger) (*workflow.Runner, error) {
	runID := uuid.NewString()
	client, err := datarobot.NewClient(cfg.Endpoint, cfg.APIToken,
		datarobot.WithTimeout(cfg.RequestTimeout),
		datarobot.WithPollInterval(cfg.PollInterval, cfg.PollMaxInterval),
		datarobot.WithUserAgent(userAgent),
		datarobot.WithRequestID(runID),
		datarobot.WithLogger(log.Named("datarobot")),
	)
	if err != nil {
		return nil, err
	}
	return workflow.New(client,
		workflow.WithLogger(log.Named("workflow")),
		workflow.WithOutput(cmd.OutOrStdout()),
		workflow.WithRunID(runID),
		workflow.WithWaits(workflow.Waits{
			Project: cfg.ProjectWait,
			Target:  cfg.TargetWait,
			Model:   cfg.ModelWait,
			Tuning:  cfg.TuningWait,
			Frozen:  cfg.FrozenWait,
		}),
	), nil
}
