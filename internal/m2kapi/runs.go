package m2kapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"m2kqa/internal/qa"
)

// Output states reported by the backend.
const (
	OutputTransforming = "transforming"
	OutputDone         = "done"
	OutputError        = "error"
)

// Project is the subset of a Move2Kube project the client uses.
type Project struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Status      map[string]bool          `json:"status,omitempty"`
	Outputs     map[string]ProjectOutput `json:"outputs,omitempty"`
}

// ProjectOutput is one transformation run of a project.
type ProjectOutput struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}

type startResponse struct {
	ID string `json:"id"`
}

// StartTransformation starts a transformation run. plan, when not empty, is
// sent as the run's plan and must be valid YAML.
func (c *Client) StartTransformation(ctx context.Context, workspace, project string, plan []byte) (qa.RunID, error) {
	endpoint, err := c.endpoint("workspaces", workspace, "projects", project, "outputs")
	if err != nil {
		return qa.RunID{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return qa.RunID{}, err
	}
	if len(plan) > 0 {
		var doc yaml.Node
		if err := yaml.Unmarshal(plan, &doc); err != nil {
			return qa.RunID{}, fmt.Errorf("plan is not valid YAML: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(plan))
		req.ContentLength = int64(len(plan))
		req.Header.Set("Content-Type", "application/x-yaml")
	}
	var body startResponse
	if _, err := c.doJSON(req, &body, http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return qa.RunID{}, fmt.Errorf("start transformation: %w", err)
	}
	if body.ID == "" {
		return qa.RunID{}, fmt.Errorf("start transformation: backend returned no output id")
	}
	run := qa.RunID{WorkspaceID: workspace, ProjectID: project, OutputID: body.ID}
	log.Printf("[m2kapi] started transformation %s", run)
	return run, nil
}

// GetProject returns a project with its outputs.
func (c *Client) GetProject(ctx context.Context, workspace, project string) (*Project, error) {
	endpoint, err := c.endpoint("workspaces", workspace, "projects", project)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var p Project
	if _, err := c.doJSON(req, &p, http.StatusOK); err != nil {
		return nil, err
	}
	return &p, nil
}

// WaitOutput polls the project every interval until the run's output is done.
// It fails when the output reports an error or ctx ends.
func (c *Client) WaitOutput(ctx context.Context, run qa.RunID, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p, err := c.GetProject(ctx, run.WorkspaceID, run.ProjectID)
		if err != nil {
			return err
		}
		out, ok := p.Outputs[run.OutputID]
		switch {
		case !ok:
			return fmt.Errorf("output %s not found in project %s", run.OutputID, run.ProjectID)
		case out.Status == OutputDone:
			return nil
		case out.Status == OutputError:
			return fmt.Errorf("transformation %s failed on the server", run)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadOutput streams the run's output archive into w and returns the
// number of bytes written.
func (c *Client) DownloadOutput(ctx context.Context, run qa.RunID, w io.Writer) (int64, error) {
	endpoint, err := c.endpoint(runPath(run)...)
	if err != nil {
		return 0, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/zip, application/octet-stream")
	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return 0, fmt.Errorf("download output: %w", err)
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download output: %w", err)
	}
	return n, nil
}
