// Package github talks to the GitHub Actions REST API: it dispatches the
// signing workflow, discovers the resulting run, reads run state and fetches
// the signed artifact. Credentials only ever travel in request bodies to
// GitHub; they never reach an error or a log line.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Testers-Community/android-aab-signer/internal/config"
	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

const apiVersion = "2022-11-28"

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 64 * 1024

// Client is a GitHub Actions client bound to one automation repository.
type Client struct {
	cfg  config.GitHubConfig
	http *http.Client
	log  zerolog.Logger
	now  func() time.Time

	maxArtifact int64
}

// New creates a Client. Missing settings are reported per call as a
// configuration error so the server can still start and answer 500s.
func New(cfg config.GitHubConfig, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient, log: logger, now: time.Now, maxArtifact: maxArtifactSize}
}

func (c *Client) repoURL(format string, args ...any) string {
	return fmt.Sprintf("%s/repos/%s/%s", c.cfg.APIBase, c.cfg.Owner, c.cfg.Repo) + fmt.Sprintf(format, args...)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// getJSON performs a GET and decodes a 2xx body into dst. 404 maps to notFound.
func (c *Client) getJSON(ctx context.Context, url string, notFound error, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", signerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return notFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: GET returned %d", signerrors.ErrUpstream, resp.StatusCode)
	}
	return decode(resp.Body, dst)
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(b)
}
