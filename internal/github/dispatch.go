package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

// Claimer hands a discovered run to at most one caller.
type Claimer interface {
	Claim(ctx context.Context, runID int64) (bool, error)
}

// Dispatch triggers the signing workflow with the given inputs. secrets lists
// input values that must be scrubbed from any error detail.
func (c *Client) Dispatch(ctx context.Context, inputs map[string]string, secrets ...string) error {
	body, err := json.Marshal(map[string]any{
		"ref":    c.cfg.Ref,
		"inputs": inputs,
	})
	if err != nil {
		return fmt.Errorf("encode dispatch: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost,
		c.repoURL("/actions/workflows/%s/dispatches", c.cfg.Workflow), bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: dispatch: %w", signerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return signerrors.NewDispatchError(resp.StatusCode, readErrorBody(resp.Body), secrets...)
	}
	return nil
}

// Discover picks the newest run of the workflow created within window of now
// that claimer accepts. It returns ErrDiscoveryMiss when none qualifies.
//
// Matching by time window is a heuristic: a concurrent dispatch in the same
// window could match too. The claim ledger keeps two callers from receiving
// the same run, which is the strongest correlation GitHub's dispatch API allows.
func (c *Client) Discover(ctx context.Context, window time.Duration, perPage int, claimer Claimer) (int64, error) {
	runs, err := c.listRuns(ctx, perPage)
	if err != nil {
		return 0, err
	}
	now := c.now()
	for _, r := range runs {
		if now.Sub(r.CreatedAt) >= window {
			continue
		}
		ok, err := claimer.Claim(ctx, r.ID)
		if err != nil {
			return 0, fmt.Errorf("claim run %d: %w", r.ID, err)
		}
		if ok {
			c.log.Debug().Int64("run_id", r.ID).Msg("github: run discovered")
			return r.ID, nil
		}
	}
	return 0, signerrors.ErrDiscoveryMiss
}
