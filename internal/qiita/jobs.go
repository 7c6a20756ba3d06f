package qiita

import (
	"context"
	"fmt"
)

// artifactPayload is the server representation of an artifact.
type artifactPayload struct {
	Files       ArtifactFiles `json:"files"`
	HTMLSummary string        `json:"html_summary"`
	PrepID      int           `json:"prep_information"`
}

// GetJobInfo fetches the command, parameters and status of a job.
func (c *Client) GetJobInfo(ctx context.Context, jobID string) (*JobInfo, error) {
	var info JobInfo
	endpoint := fmt.Sprintf("/qiita_db/jobs/%s", jobID)
	if err := c.Get(ctx, endpoint, &info); err != nil {
		return nil, err
	}
	info.ID = jobID
	return &info, nil
}

// UpdateJobStep posts a human-readable step description for a running
// job. Qiita surfaces the text verbatim in its job monitoring UI.
func (c *Client) UpdateJobStep(ctx context.Context, jobID, step string) error {
	endpoint := fmt.Sprintf("/qiita_db/jobs/%s/step/", jobID)
	return c.Post(ctx, endpoint, map[string]string{"step": step}, nil)
}

// CompleteJob reports the final outcome of a job, registering any output
// artifacts. A failed job may still register the artifacts it produced.
func (c *Client) CompleteJob(ctx context.Context, jobID string, success bool, artifacts []ArtifactInfo, errMsg string) error {
	endpoint := fmt.Sprintf("/qiita_db/jobs/%s/complete/", jobID)
	payload := map[string]any{
		"success":   success,
		"error":     errMsg,
		"artifacts": artifacts,
	}
	return c.Post(ctx, endpoint, payload, nil)
}

// ArtifactFiles fetches the per-type file listing of an artifact. This
// is the earlier accessor shape; newer commands use
// ArtifactAndPreparationFiles.
func (c *Client) ArtifactFiles(ctx context.Context, artifactID string) (ArtifactFiles, error) {
	payload, err := c.artifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return payload.Files, nil
}

// ArtifactAndPreparationFiles fetches an artifact's per-type file
// listing together with a reference to its preparation information file.
func (c *Client) ArtifactAndPreparationFiles(ctx context.Context, artifactID string) (ArtifactFiles, *PrepInfo, error) {
	payload, err := c.artifact(ctx, artifactID)
	if err != nil {
		return nil, nil, err
	}

	var prep PrepInfo
	endpoint := fmt.Sprintf("/qiita_db/prep_template/%d/", payload.PrepID)
	if err := c.Get(ctx, endpoint, &prep); err != nil {
		return nil, nil, err
	}
	prep.ID = payload.PrepID
	return payload.Files, &prep, nil
}

// ArtifactHTMLSummary returns the filesystem path of an artifact's
// pre-computed HTML summary, or "" when the artifact has none.
func (c *Client) ArtifactHTMLSummary(ctx context.Context, artifactID string) (string, error) {
	payload, err := c.artifact(ctx, artifactID)
	if err != nil {
		return "", err
	}
	return payload.HTMLSummary, nil
}

func (c *Client) artifact(ctx context.Context, artifactID string) (*artifactPayload, error) {
	var payload artifactPayload
	endpoint := fmt.Sprintf("/qiita_db/artifacts/%s/", artifactID)
	if err := c.Get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
