package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Recognized values.
var (
	matchModes         = []string{"name", "id"}
	dataSelectionModes = []string{"duration", "rowCount", "selectedDateRange"}
	logFormats         = []string{"text", "json"}
)

const maxFrozenSamplePct = 100.0

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return invalid("endpoint must not be empty")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("endpoint must be an absolute URL: %q", c.Endpoint)
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		return invalid("log_format must be one of %v", logFormats)
	}
	if c.RequestTimeout < 0 {
		return invalid("request_timeout must not be negative")
	}
	if c.PollInterval <= 0 || c.PollMaxInterval < c.PollInterval {
		return invalid("poll_interval must be positive and not exceed poll_max_interval")
	}
	waits := []struct {
		name string
		d    time.Duration
	}{
		{"project_wait", c.ProjectWait},
		{"target_wait", c.TargetWait},
		{"model_wait", c.ModelWait},
		{"tuning_wait", c.TuningWait},
	}
	for _, w := range waits {
		if w.d <= 0 {
			return invalid("%s must be positive", w.name)
		}
	}
	if c.FrozenWait < 0 {
		return invalid("frozen_wait must not be negative")
	}
	return nil
}

// ValidateCredentials checks that requests can be authenticated.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.APIToken) == "" {
		return invalid("api_token must be set (DRTUNE_API_TOKEN or %s)", EnvPlatformToken)
	}
	return nil
}

// Validate checks the workflow settings.
func (w *Workflow) Validate() error {
	if w.Source == "" {
		return invalid("source must not be empty")
	}
	if w.Target == "" {
		return invalid("target must not be empty")
	}
	if w.ProjectPrefix == "" {
		return invalid("project_prefix must not be empty")
	}
	if w.WorkerCount == 0 || w.WorkerCount < -1 {
		return invalid("worker_count must be -1 or positive")
	}
	if w.BlueprintIndex < 0 {
		return invalid("blueprint_index must not be negative")
	}
	if !slices.Contains(matchModes, w.MatchBy) {
		return invalid("match_by must be one of %v", matchModes)
	}
	return nil
}

// Validate checks the classifier workflow settings.
func (c *Classifier) Validate() error {
	if err := c.Workflow.Validate(); err != nil {
		return err
	}
	if c.FrozenSamplePct <= 0 || c.FrozenSamplePct > maxFrozenSamplePct {
		return invalid("frozen_sample_pct must be in (0, 100]")
	}
	return nil
}

// Validate checks the time series workflow settings.
func (t *TimeSeries) Validate() error {
	if err := t.Workflow.Validate(); err != nil {
		return err
	}
	if t.DatetimeColumn == "" {
		return invalid("datetime_column must not be empty")
	}
	if len(t.MultiseriesIDColumns) == 0 {
		return invalid("multiseries_id_columns must not be empty")
	}
	if !slices.Contains(dataSelectionModes, t.AutopilotDataSelectionMethod) {
		return invalid("autopilot_data_selection_method must be one of %v", dataSelectionModes)
	}
	if t.FeatureDerivationWindowStart > t.FeatureDerivationWindowEnd {
		return invalid("feature derivation window start %d is after end %d",
			t.FeatureDerivationWindowStart, t.FeatureDerivationWindowEnd)
	}
	if t.FeatureDerivationWindowEnd > 0 {
		return invalid("feature_derivation_window_end must not be positive")
	}
	if t.ForecastWindowStart > t.ForecastWindowEnd {
		return invalid("forecast window start %d is after end %d",
			t.ForecastWindowStart, t.ForecastWindowEnd)
	}
	if t.ForecastWindowStart < 0 {
		return invalid("forecast_window_start must not be negative")
	}
	if t.NumberOfBacktests < 0 {
		return invalid("number_of_backtests must not be negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
