package datarobot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/drtune/pkg/logger"
	"github.com/okian/drtune/pkg/metrics"
)

// Wait kinds used in logs and metrics.
const (
	waitStatus   = "status"
	waitModelJob = "model_job"
)

// errPending marks a poll whose remote work is still running.
var errPending = errors.New("still pending")

// asyncStatus is the body of a status endpoint that has not redirected yet.
type asyncStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Created string `json:"created"`
	Code    int    `json:"code"`
}

// poll calls op until it succeeds, fails permanently, ctx ends, or maxWait
// elapses. Delays grow exponentially between the client's poll bounds.
func (c *Client) poll(ctx context.Context, kind, target string, maxWait time.Duration, op func() (string, error)) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = c.pollMaxInterval

	start := time.Now()
	polls := 0
	res, err := backoff.Retry(ctx, func() (string, error) {
		polls++
		metrics.RecordAsyncPoll(kind)
		return op()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(maxWait),
		backoff.WithNotify(func(_ error, next time.Duration) {
			c.logger.Debug(ctx, "waiting for remote work",
				logger.String("kind", kind),
				logger.String("location", target),
				logger.Int("polls", polls),
				logger.Duration("next", next))
		}),
	)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordAsyncWait(kind, "resolved", elapsed.Seconds())
		return res, nil
	case errors.Is(err, errPending):
		metrics.RecordAsyncWait(kind, "timeout", elapsed.Seconds())
		return "", fmt.Errorf("%w: %s after %s (%d polls)", ErrAsyncTimeout, target, maxWait, polls)
	case ctx.Err() != nil:
		metrics.RecordAsyncWait(kind, "canceled", elapsed.Seconds())
		return "", err
	default:
		metrics.RecordAsyncWait(kind, "failed", elapsed.Seconds())
		return "", err
	}
}

// WaitForAsync polls a status location returned by an accepted request until
// the platform reports the work done, and returns the location of the
// resulting resource. A 303 answer carries the resource location; a
// COMPLETED status resolves in place. ERROR or ABORTED statuses fail with
// ErrAsyncFailed.
func (c *Client) WaitForAsync(ctx context.Context, loc string, maxWait time.Duration) (string, error) {
	return c.poll(ctx, waitStatus, loc, maxWait, func() (string, error) {
		req, err := c.newRequest(ctx, http.MethodGet, loc, nil, "")
		if err != nil {
			return "", backoff.Permanent(err)
		}
		resp, err := c.send(req)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusSeeOther {
			next, err := location(resp)
			if err != nil {
				return "", backoff.Permanent(err)
			}
			return next, nil
		}

		var st asyncStatus
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return "", backoff.Permanent(fmt.Errorf("decode status %s: %w", loc, err))
		}
		status := strings.ToLower(st.Status)
		switch {
		case strings.HasPrefix(status, "error"), strings.HasPrefix(status, "abort"):
			return "", backoff.Permanent(fmt.Errorf("%w: %s: %s", ErrAsyncFailed, st.Status, st.Message))
		case status == "completed":
			return loc, nil
		default:
			return "", errPending
		}
	})
}

// GetModelJob fetches a model job. Once the job has produced its model the
// platform redirects to it; job is then nil and modelLocation is set.
func (c *Client) GetModelJob(ctx context.Context, projectID, jobID string) (job *ModelJob, modelLocation string, err error) {
	ref := fmt.Sprintf("projects/%s/modelJobs/%s/", projectID, jobID)
	req, err := c.newRequest(ctx, http.MethodGet, ref, nil, "")
	if err != nil {
		return nil, "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusSeeOther {
		loc, err := location(resp)
		return nil, loc, err
	}
	job = &ModelJob{}
	if err := json.NewDecoder(resp.Body).Decode(job); err != nil {
		return nil, "", fmt.Errorf("decode model job %s: %w", jobID, err)
	}
	return job, "", nil
}

// WaitForModel waits for a model job and returns the model it produced.
func (c *Client) WaitForModel(ctx context.Context, projectID, jobID string, maxWait time.Duration) (*Model, error) {
	target := fmt.Sprintf("projects/%s/modelJobs/%s/", projectID, jobID)
	loc, err := c.poll(ctx, waitModelJob, target, maxWait, func() (string, error) {
		job, loc, err := c.GetModelJob(ctx, projectID, jobID)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		if job == nil {
			return loc, nil
		}
		switch {
		case job.Failed():
			return "", backoff.Permanent(fmt.Errorf("%w: job %s in project %s: %s",
				ErrModelJobFailed, jobID, projectID, job.Status))
		case strings.EqualFold(job.Status, JobCompleted) && job.ModelID != "":
			return fmt.Sprintf("projects/%s/models/%s/", projectID, job.ModelID), nil
		default:
			return "", errPending
		}
	})
	if err != nil {
		return nil, err
	}

	model := &Model{}
	if err := c.get(ctx, loc, model); err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	return model, nil
}
