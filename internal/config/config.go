// Package config defines drtune configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig; loading failures wrap ErrLoadConfig.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `koanf:"log_file"`

	// Endpoint is the platform API root, e.g. https://app.datarobot.com/api/v2.
	Endpoint string `koanf:"endpoint"`

	// APIToken authenticates every request.
	APIToken string `koanf:"api_token"`

	// RequestTimeout bounds a single HTTP round trip (uploads included).
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// PollInterval and PollMaxInterval bound the backoff between status polls.
	PollInterval    time.Duration `koanf:"poll_interval"`
	PollMaxInterval time.Duration `koanf:"poll_max_interval"`

	// Maximum waits per remote operation.
	ProjectWait time.Duration `koanf:"project_wait"`
	TargetWait  time.Duration `koanf:"target_wait"`
	ModelWait   time.Duration `koanf:"model_wait"`
	TuningWait  time.Duration `koanf:"tuning_wait"`
	// FrozenWait of zero submits the frozen model request without waiting for it.
	FrozenWait time.Duration `koanf:"frozen_wait"`

	// MetricsPushURL points at a Prometheus Pushgateway; empty disables pushing.
	MetricsPushURL string `koanf:"metrics_push_url"`
	MetricsJob     string `koanf:"metrics_job"`

	Classifier Classifier `koanf:"classifier"`
	TimeSeries TimeSeries `koanf:"timeseries"`
}

// Workflow holds the settings shared by both workflows.
type Workflow struct {
	// Source is a local CSV/XLSX path or an http(s) URL.
	Source string `koanf:"source"`

	// ProjectPrefix names projects as <prefix>_PROJECT_<n>_<timestamp>.
	ProjectPrefix string `koanf:"project_prefix"`

	// Target is the column to predict.
	Target string `koanf:"target"`

	// WorkerCount of -1 requests the maximum available workers.
	WorkerCount int `koanf:"worker_count"`

	// BlueprintIndex picks a blueprint from the first project's menu.
	BlueprintIndex int `koanf:"blueprint_index"`

	// MatchBy selects how tuning parameters are carried to the second
	// project's model: "name" (task + parameter name) or "id".
	MatchBy string `koanf:"match_by"`

	// TuningDescription is attached to the advanced tuning run.
	TuningDescription string `koanf:"tuning_description"`
}

// Classifier configures the tabular workflow.
type Classifier struct {
	Workflow `koanf:",squash"`

	// FrozenSamplePct is the sample size of the frozen model.
	FrozenSamplePct float64 `koanf:"frozen_sample_pct"`
}

// TimeSeries configures the multiseries workflow.
type TimeSeries struct {
	Workflow `koanf:",squash"`

	DatetimeColumn               string   `koanf:"datetime_column"`
	MultiseriesIDColumns         []string `koanf:"multiseries_id_columns"`
	AutopilotDataSelectionMethod string   `koanf:"autopilot_data_selection_method"`
	FeatureDerivationWindowStart int      `koanf:"feature_derivation_window_start"`
	FeatureDerivationWindowEnd   int      `koanf:"feature_derivation_window_end"`
	ForecastWindowStart          int      `koanf:"forecast_window_start"`
	ForecastWindowEnd            int      `koanf:"forecast_window_end"`
	NumberOfBacktests            int      `koanf:"number_of_backtests"`
	// MultiseriesPropertiesRequired fails the run when the datetime column
	// is not eligible for the series columns instead of only warning.
	MultiseriesPropertiesRequired bool `koanf:"multiseries_properties_required"`
}

// New creates a Config with defaults: an hour for uploads and target
// selection, twenty minutes for model jobs.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Endpoint:        "https://app.datarobot.com/api/v2",
		RequestTimeout:  10 * time.Minute,
		PollInterval:    time.Second,
		PollMaxInterval: 30 * time.Second,
		ProjectWait:     time.Hour,
		TargetWait:      time.Hour,
		ModelWait:       20 * time.Minute,
		TuningWait:      20 * time.Minute,
		MetricsJob:      "drtune",
		Classifier: Classifier{
			Workflow: Workflow{
				Source:        "10K_Lending_Club_Loans.csv",
				ProjectPrefix: "LendingClub",
				Target:        "is_bad",
				WorkerCount:   -1,
				MatchBy:       "id",
			},
			FrozenSamplePct: 100,
		},
		TimeSeries: TimeSeries{
			Workflow: Workflow{
				Source:         "DR_Demo_Sales_Multiseries_training.xlsx",
				ProjectPrefix:  "DR_Demo_Retail_Multiseries",
				Target:         "Sales",
				WorkerCount:    -1,
				BlueprintIndex: 4,
				MatchBy:        "name",
			},
			DatetimeColumn:               "Date",
			MultiseriesIDColumns:         []string{"Store"},
			AutopilotDataSelectionMethod: "duration",
			FeatureDerivationWindowStart: -90,
			FeatureDerivationWindowEnd:   0,
			ForecastWindowStart:          1,
			ForecastWindowEnd:            28,
		},
	}
}
