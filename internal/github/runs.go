package github

import (
	"context"
	"fmt"
	"time"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

// Status is the lifecycle state of a workflow run.
type Status string

// Run lifecycle states. Completed is terminal.
const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is the outcome of a completed run. Empty means null.
type Conclusion string

// Run outcomes.
const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
)

// Run is one execution of the signing workflow as last reported by GitHub.
// Conclusion is non-empty iff Status is completed.
type Run struct {
	ID         int64
	Status     Status
	Conclusion Conclusion
	CreatedAt  time.Time
}

// Completed reports whether the run reached its terminal state.
func (r Run) Completed() bool {
	return r.Status == StatusCompleted
}

// Succeeded reports whether the run completed successfully.
func (r Run) Succeeded() bool {
	return r.Completed() && r.Conclusion == ConclusionSuccess
}

// Artifact is an output attached to a run.
type Artifact struct {
	ID      int64
	Name    string
	Expired bool
}

// GetRun fetches the current state of a run. It is never cached.
func (c *Client) GetRun(ctx context.Context, runID int64) (Run, error) {
	var w wireRun
	if err := c.getJSON(ctx, c.repoURL("/actions/runs/%d", runID), signerrors.ErrRunNotFound, &w); err != nil {
		return Run{}, fmt.Errorf("get run %d: %w", runID, err)
	}
	run, err := w.run()
	if err != nil {
		return Run{}, fmt.Errorf("get run %d: %w", runID, err)
	}
	return run, nil
}

// ArtifactLocator returns the download locator of the run's signed artifact,
// or "" when the run has none (not ready yet, or never produced).
// A matching artifact that GitHub already marked expired is ErrArtifactExpired.
func (c *Client) ArtifactLocator(ctx context.Context, runID int64) (string, error) {
	var w wireArtifactList
	if err := c.getJSON(ctx, c.repoURL("/actions/runs/%d/artifacts", runID), signerrors.ErrRunNotFound, &w); err != nil {
		return "", fmt.Errorf("list artifacts of run %d: %w", runID, err)
	}
	artifacts, err := w.artifacts()
	if err != nil {
		return "", fmt.Errorf("list artifacts of run %d: %w", runID, err)
	}
	for _, a := range artifacts {
		if a.Name != c.cfg.ArtifactName {
			continue
		}
		if a.Expired {
			return "", fmt.Errorf("run %d: %w", runID, signerrors.ErrArtifactExpired)
		}
		return c.repoURL("/actions/artifacts/%d/zip", a.ID), nil
	}
	return "", nil
}

// listRuns returns the most recent dispatched runs of the signing workflow, newest first.
func (c *Client) listRuns(ctx context.Context, perPage int) ([]Run, error) {
	url := c.repoURL("/actions/workflows/%s/runs?event=workflow_dispatch&per_page=%d", c.cfg.Workflow, perPage)
	var w wireRunList
	if err := c.getJSON(ctx, url, nil, &w); err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	return w.runs()
}
