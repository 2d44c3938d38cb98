package datarobot

import (
	"context"
	"fmt"
	"net/http"
)

// ListBlueprints returns the blueprints that can be trained in a project.
func (c *Client) ListBlueprints(ctx context.Context, projectID string) ([]Blueprint, error) {
	var blueprints []Blueprint
	if err := c.get(ctx, fmt.Sprintf("projects/%s/blueprints/", projectID), &blueprints); err != nil {
		return nil, fmt.Errorf("list blueprints: %w", err)
	}
	return blueprints, nil
}

// Train queues a model from a blueprint and returns the model job id.
func (c *Client) Train(ctx context.Context, projectID, blueprintID string) (string, error) {
	return c.submitJob(ctx, fmt.Sprintf("projects/%s/models/", projectID),
		map[string]any{"blueprintId": blueprintID})
}

// TrainDatetime queues a model from a blueprint in a datetime partitioned
// project and returns the model job id.
func (c *Client) TrainDatetime(ctx context.Context, projectID, blueprintID string) (string, error) {
	return c.submitJob(ctx, fmt.Sprintf("projects/%s/datetimeModels/", projectID),
		map[string]any{"blueprintId": blueprintID})
}

// RequestFrozenModel retrains a model with its tuning frozen at samplePct
// percent of the data and returns the model job id.
func (c *Client) RequestFrozenModel(ctx context.Context, projectID, modelID string, samplePct float64) (string, error) {
	return c.submitJob(ctx, fmt.Sprintf("projects/%s/frozenModels/", projectID),
		map[string]any{"modelId": modelID, "samplePct": samplePct})
}

// RequestFrozenDatetimeModel retrains a datetime model with its tuning frozen
// on the platform's default training range and returns the model job id.
func (c *Client) RequestFrozenDatetimeModel(ctx context.Context, projectID, modelID string) (string, error) {
	return c.submitJob(ctx, fmt.Sprintf("projects/%s/frozenDatetimeModels/", projectID),
		map[string]any{"modelId": modelID})
}

// submitJob posts a job-creating request and extracts the job id from the
// Location header.
func (c *Client) submitJob(ctx context.Context, ref string, payload any) (string, error) {
	loc, err := c.postForLocation(ctx, http.MethodPost, ref, payload)
	if err != nil {
		return "", err
	}
	return idFromLocation(loc)
}

// ListModels returns the models of a project, most recent leaderboard order.
func (c *Client) ListModels(ctx context.Context, projectID string) ([]Model, error) {
	var models []Model
	if err := c.get(ctx, fmt.Sprintf("projects/%s/models/", projectID), &models); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// GetModel fetches one model.
func (c *Client) GetModel(ctx context.Context, projectID, modelID string) (*Model, error) {
	model := &Model{}
	if err := c.get(ctx, fmt.Sprintf("projects/%s/models/%s/", projectID, modelID), model); err != nil {
		return nil, err
	}
	return model, nil
}
