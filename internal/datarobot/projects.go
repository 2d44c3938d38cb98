package datarobot

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/drtune/pkg/logger"
)

// IsURLSource reports whether source names a remote dataset rather than a local file.
func IsURLSource(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// CreateProject uploads a dataset (local CSV/XLSX path or http(s) URL) as a
// new project, waits up to maxWait for the upload to be processed, and
// returns the project.
func (c *Client) CreateProject(ctx context.Context, source, name string, maxWait time.Duration) (*Project, error) {
	var (
		loc string
		err error
	)
	if IsURLSource(source) {
		loc, err = c.postForLocation(ctx, http.MethodPost, "projects/", map[string]string{
			"projectName": name,
			"url":         source,
		})
	} else {
		loc, err = c.uploadFile(ctx, source, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}

	c.logger.Debug(ctx, "project upload accepted", logger.String("project_name", name), logger.String("status", loc))
	resolved, err := c.WaitForAsync(ctx, loc, maxWait)
	if err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}

	if resolved == loc {
		return nil, fmt.Errorf("create project %q: %w: status %s completed without a project", name, ErrMissingLocation, loc)
	}

	project := &Project{}
	if err := c.get(ctx, resolved, project); err != nil {
		return nil, fmt.Errorf("get created project: %w", err)
	}
	if project.ID == "" {
		return nil, fmt.Errorf("create project %q: %w: %s returned no project id", name, ErrAsyncFailed, resolved)
	}
	return project, nil
}

// uploadFile streams a local file as multipart form data.
func (c *Client) uploadFile(ctx context.Context, source, name string) (string, error) {
	f, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidSource, source)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer func() { _ = f.Close() }()
		err := writeUpload(mw, f, filepath.Base(source), name)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "projects/", pr, mw.FormDataContentType())
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", err
	}
	resp, err := c.send(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	return location(resp)
}

func writeUpload(mw *multipart.Writer, r io.Reader, fileName, projectName string) error {
	if err := mw.WriteField("projectName", projectName); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	project := &Project{}
	if err := c.get(ctx, fmt.Sprintf("projects/%s/", projectID), project); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns every project visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "projects/", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// aimRequest is the payload of the target selection call.
type aimRequest struct {
	Target      string `json:"target"`
	Mode        string `json:"mode"`
	WorkerCount int    `json:"workerCount,omitempty"`
	Metric      string `json:"metric,omitempty"`
	CVMethod    string `json:"cvMethod,omitempty"`
	*DatetimePartitioningSpec
}

// SetTarget selects the prediction target and autopilot mode, optionally with
// datetime partitioning, and waits up to maxWait for the platform to finish
// analyzing the data.
func (c *Client) SetTarget(ctx context.Context, projectID string, opts TargetOptions, maxWait time.Duration) (*Project, error) {
	mode := opts.Mode
	if mode == "" {
		mode = AutopilotManual
	}
	payload := aimRequest{
		Target:                   opts.Target,
		Mode:                     mode,
		WorkerCount:              opts.WorkerCount,
		Metric:                   opts.Metric,
		DatetimePartitioningSpec: opts.Partitioning,
	}
	if opts.Partitioning != nil {
		payload.CVMethod = "datetime"
	}

	loc, err := c.postForLocation(ctx, http.MethodPatch, fmt.Sprintf("projects/%s/aim/", projectID), payload)
	if err != nil {
		return nil, fmt.Errorf("set target %q: %w", opts.Target, err)
	}
	if _, err := c.WaitForAsync(ctx, loc, maxWait); err != nil {
		return nil, fmt.Errorf("set target %q: %w", opts.Target, err)
	}
	return c.GetProject(ctx, projectID)
}

// UnlockHoldout makes the holdout partition available for scoring.
func (c *Client) UnlockHoldout(ctx context.Context, projectID string) error {
	_, err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("projects/%s/", projectID),
		map[string]bool{"holdoutUnlocked": true}, nil)
	if err != nil {
		return fmt.Errorf("unlock holdout: %w", err)
	}
	return nil
}
