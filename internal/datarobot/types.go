package datarobot

import (
	"fmt"
	"strings"
)

// AutopilotMode values accepted when setting a target.
const (
	AutopilotManual = "manual"
	AutopilotQuick  = "quick"
	AutopilotAuto   = "auto"
)

// MaxWorkers asks the platform for every worker available to the project.
const MaxWorkers = -1

// Project is a modeling project.
type Project struct {
	ID              string `json:"id"`
	ProjectName     string `json:"projectName"`
	FileName        string `json:"fileName,omitempty"`
	Stage           string `json:"stage,omitempty"`
	Target          string `json:"target,omitempty"`
	TargetType      string `json:"targetType,omitempty"`
	Metric          string `json:"metric,omitempty"`
	Created         string `json:"created,omitempty"`
	HoldoutUnlocked bool   `json:"holdoutUnlocked"`
	UseTimeSeries   bool   `json:"useTimeSeries,omitempty"`
}

// Blueprint is a modeling pipeline template offered for a project.
type Blueprint struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"projectId"`
	ModelType         string   `json:"modelType"`
	Processes         []string `json:"processes"`
	BlueprintCategory string   `json:"blueprintCategory,omitempty"`
}

func (b Blueprint) String() string {
	return fmt.Sprintf("Blueprint(%s)", b.ModelType)
}

// Model is a trained model.
type Model struct {
	ID               string         `json:"id"`
	ProjectID        string         `json:"projectId"`
	BlueprintID      string         `json:"blueprintId"`
	ModelType        string         `json:"modelType"`
	ModelCategory    string         `json:"modelCategory,omitempty"`
	FeaturelistID    string         `json:"featurelistId,omitempty"`
	SamplePct        *float64       `json:"samplePct,omitempty"`
	TrainingRowCount *int           `json:"trainingRowCount,omitempty"`
	TrainingDuration string         `json:"trainingDuration,omitempty"`
	IsFrozen         bool           `json:"isFrozen"`
	ParentModelID    string         `json:"parentModelId,omitempty"`
	Processes        []string       `json:"processes,omitempty"`
	Metrics          map[string]any `json:"metrics,omitempty"`
}

func (m Model) String() string {
	return fmt.Sprintf("Model(%q)", m.ModelType)
}

// Model job statuses.
const (
	JobQueue      = "queue"
	JobInProgress = "inprogress"
	JobError      = "error"
	JobAborted    = "ABORTED"
	JobCompleted  = "COMPLETED"
)

// ModelJob tracks a queued training, tuning or freezing request.
type ModelJob struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"projectId"`
	ModelID       string   `json:"modelId,omitempty"`
	BlueprintID   string   `json:"blueprintId,omitempty"`
	ModelType     string   `json:"modelType,omitempty"`
	ModelCategory string   `json:"modelCategory,omitempty"`
	Status        string   `json:"status"`
	SamplePct     *float64 `json:"samplePct,omitempty"`
	IsBlocked     bool     `json:"isBlocked"`
	Processes     []string `json:"processes,omitempty"`
}

// Failed reports whether the job ended in error or was aborted.
func (j ModelJob) Failed() bool {
	s := strings.ToLower(j.Status)
	return s == JobError || s == strings.ToLower(JobAborted)
}

// TuningParameter is one tunable hyperparameter of a model's tasks.
type TuningParameter struct {
	ParameterName string         `json:"parameterName"`
	ParameterID   string         `json:"parameterId"`
	TaskName      string         `json:"taskName"`
	DefaultValue  any            `json:"defaultValue"`
	CurrentValue  any            `json:"currentValue"`
	Constraints   map[string]any `json:"constraints,omitempty"`
	VertexID      string         `json:"vertexId,omitempty"`
}

// TuningParameters is the advanced tuning view of a model.
type TuningParameters struct {
	TuningDescription *string           `json:"tuningDescription"`
	Parameters        []TuningParameter `json:"tuningParameters"`
}

// Feature describes one column of a project dataset.
type Feature struct {
	ID                          int     `json:"id"`
	Name                        string  `json:"name"`
	FeatureType                 string  `json:"featureType"`
	DateFormat                  string  `json:"dateFormat,omitempty"`
	Importance                  float64 `json:"importance,omitempty"`
	LowInformation              bool    `json:"lowInformation"`
	UniqueCount                 int     `json:"uniqueCount,omitempty"`
	NaCount                     int     `json:"naCount,omitempty"`
	TimeSeriesEligible          bool    `json:"timeSeriesEligible"`
	TimeSeriesEligibilityReason string  `json:"timeSeriesEligibilityReason,omitempty"`
	TimeStep                    *int    `json:"timeStep,omitempty"`
	TimeUnit                    string  `json:"timeUnit,omitempty"`
}

// MultiseriesProperties reports whether a datetime feature is a valid
// partition column when series are identified by the given columns.
type MultiseriesProperties struct {
	TimeSeriesEligible bool   `json:"timeSeriesEligible"`
	TimeUnit           string `json:"timeUnit,omitempty"`
	TimeStep           int    `json:"timeStep,omitempty"`
}

// DatetimePartitioningSpec configures date-based partitioning. Nil fields are
// left to the platform's defaults.
type DatetimePartitioningSpec struct {
	DatetimePartitionColumn      string   `json:"datetimePartitionColumn"`
	AutopilotDataSelectionMethod string   `json:"autopilotDataSelectionMethod,omitempty"`
	ValidationDuration           string   `json:"validationDuration,omitempty"`
	HoldoutStartDate             string   `json:"holdoutStartDate,omitempty"`
	HoldoutDuration              string   `json:"holdoutDuration,omitempty"`
	DisableHoldout               bool     `json:"disableHoldout,omitempty"`
	GapDuration                  string   `json:"gapDuration,omitempty"`
	NumberOfBacktests            *int     `json:"numberOfBacktests,omitempty"`
	UseTimeSeries                bool     `json:"useTimeSeries"`
	DefaultToKnownInAdvance      bool     `json:"defaultToKnownInAdvance,omitempty"`
	FeatureDerivationWindowStart *int     `json:"featureDerivationWindowStart,omitempty"`
	FeatureDerivationWindowEnd   *int     `json:"featureDerivationWindowEnd,omitempty"`
	ForecastWindowStart          *int     `json:"forecastWindowStart,omitempty"`
	ForecastWindowEnd            *int     `json:"forecastWindowEnd,omitempty"`
	MultiseriesIDColumns         []string `json:"multiseriesIdColumns,omitempty"`
}

// Backtest is one backtest fold of a datetime partitioning.
type Backtest struct {
	Index                      int    `json:"index"`
	AvailableTrainingStartDate string `json:"availableTrainingStartDate"`
	AvailableTrainingDuration  string `json:"availableTrainingDuration"`
	AvailableTrainingEndDate   string `json:"availableTrainingEndDate"`
	PrimaryTrainingStartDate   string `json:"primaryTrainingStartDate"`
	PrimaryTrainingDuration    string `json:"primaryTrainingDuration"`
	PrimaryTrainingEndDate     string `json:"primaryTrainingEndDate"`
	GapStartDate               string `json:"gapStartDate"`
	GapDuration                string `json:"gapDuration"`
	GapEndDate                 string `json:"gapEndDate"`
	ValidationStartDate        string `json:"validationStartDate"`
	ValidationDuration         string `json:"validationDuration"`
	ValidationEndDate          string `json:"validationEndDate"`
	TotalRowCount              int    `json:"totalRowCount,omitempty"`
}

// DatetimePartitioning is the full partitioning the platform derives from a spec.
type DatetimePartitioning struct {
	ProjectID                    string     `json:"projectId"`
	DatetimePartitionColumn      string     `json:"datetimePartitionColumn"`
	DateFormat                   string     `json:"dateFormat"`
	AutopilotDataSelectionMethod string     `json:"autopilotDataSelectionMethod"`
	ValidationDuration           string     `json:"validationDuration"`
	AvailableTrainingStartDate   string     `json:"availableTrainingStartDate"`
	AvailableTrainingDuration    string     `json:"availableTrainingDuration"`
	AvailableTrainingEndDate     string     `json:"availableTrainingEndDate"`
	PrimaryTrainingStartDate     string     `json:"primaryTrainingStartDate"`
	PrimaryTrainingDuration      string     `json:"primaryTrainingDuration"`
	PrimaryTrainingEndDate       string     `json:"primaryTrainingEndDate"`
	GapStartDate                 string     `json:"gapStartDate"`
	GapDuration                  string     `json:"gapDuration"`
	GapEndDate                   string     `json:"gapEndDate"`
	HoldoutStartDate             string     `json:"holdoutStartDate"`
	HoldoutDuration              string     `json:"holdoutDuration"`
	HoldoutEndDate               string     `json:"holdoutEndDate"`
	DisableHoldout               bool       `json:"disableHoldout"`
	NumberOfBacktests            int        `json:"numberOfBacktests"`
	Backtests                    []Backtest `json:"backtests"`
	TotalRowCount                int        `json:"totalRowCount"`
	UseTimeSeries                bool       `json:"useTimeSeries"`
	FeatureDerivationWindowStart *int       `json:"featureDerivationWindowStart"`
	FeatureDerivationWindowEnd   *int       `json:"featureDerivationWindowEnd"`
	ForecastWindowStart          *int       `json:"forecastWindowStart"`
	ForecastWindowEnd            *int       `json:"forecastWindowEnd"`
	MultiseriesIDColumns         []string   `json:"multiseriesIdColumns"`
}

// TargetOptions configures target selection (the "aim" step).
type TargetOptions struct {
	Target      string
	Mode        string
	WorkerCount int
	Metric      string
	// Partitioning switches the project to datetime partitioning.
	Partitioning *DatetimePartitioningSpec
}
