package datarobot

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// GetFeature fetches one dataset feature of a project.
func (c *Client) GetFeature(ctx context.Context, projectID, name string) (*Feature, error) {
	feature := &Feature{}
	if err := c.get(ctx, fmt.Sprintf("projects/%s/features/%s/", projectID, escape(name)), feature); err != nil {
		return nil, fmt.Errorf("get feature %q: %w", name, err)
	}
	return feature, nil
}

type detectedSeries struct {
	MultiseriesIDColumns []string `json:"multiseriesIdColumns"`
	TimeUnit             string   `json:"timeUnit"`
	TimeStep             int      `json:"timeStep"`
}

type multiseriesResponse struct {
	DatetimePartitionColumn string           `json:"datetimePartitionColumn"`
	Detected                []detectedSeries `json:"detectedMultiseriesIdColumns"`
}

func (r multiseriesResponse) find(idColumns []string) (detectedSeries, bool) {
	for _, d := range r.Detected {
		if slices.Equal(d.MultiseriesIDColumns, idColumns) {
			return d, true
		}
	}
	return detectedSeries{}, false
}

// GetMultiseriesProperties reports whether the datetime feature can partition
// the project when series are identified by idColumns, with the detected
// time step and unit. Detection is requested, and waited for up to maxWait,
// when those columns have not been analyzed yet.
func (c *Client) GetMultiseriesProperties(ctx context.Context, projectID, featureName string, idColumns []string, maxWait time.Duration) (*MultiseriesProperties, error) {
	ref := fmt.Sprintf("projects/%s/features/%s/multiseriesProperties/", projectID, escape(featureName))

	var resp multiseriesResponse
	if err := c.get(ctx, ref, &resp); err != nil {
		return nil, fmt.Errorf("get multiseries properties: %w", err)
	}

	found, ok := resp.find(idColumns)
	if !ok {
		loc, err := c.postForLocation(ctx, http.MethodPost, fmt.Sprintf("projects/%s/multiseriesProperties/", projectID), map[string]any{
			"datetimePartitionColumn": featureName,
			"multiseriesIdColumns":    idColumns,
		})
		if err != nil {
			return nil, fmt.Errorf("request multiseries detection: %w", err)
		}
		if _, err := c.WaitForAsync(ctx, loc, maxWait); err != nil {
			return nil, fmt.Errorf("multiseries detection: %w", err)
		}
		resp = multiseriesResponse{}
		if err := c.get(ctx, ref, &resp); err != nil {
			return nil, fmt.Errorf("get multiseries properties: %w", err)
		}
		found, ok = resp.find(idColumns)
	}

	if !ok {
		return &MultiseriesProperties{TimeSeriesEligible: false}, nil
	}
	return &MultiseriesProperties{
		TimeSeriesEligible: true,
		TimeUnit:           found.TimeUnit,
		TimeStep:           found.TimeStep,
	}, nil
}

// GenerateDatetimePartitioning previews the full partitioning (backtests,
// holdout, windows) the platform would derive from spec.
func (c *Client) GenerateDatetimePartitioning(ctx context.Context, projectID string, spec DatetimePartitioningSpec) (*DatetimePartitioning, error) {
	part := &DatetimePartitioning{}
	_, err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("projects/%s/datetimePartitioning/", projectID), spec, part)
	if err != nil {
		return nil, fmt.Errorf("generate datetime partitioning: %w", err)
	}
	return part, nil
}
