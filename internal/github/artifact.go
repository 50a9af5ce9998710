package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

// maxArtifactSize caps how much of a download is buffered. Larger archives
// are rejected rather than truncated.
const maxArtifactSize = 512 * 1024 * 1024

// zipMagic is the archive signature every artifact download starts with.
var zipMagic = [2]byte{0x50, 0x4B}

// Download fetches the artifact behind locator and checks it is a real
// archive. GitHub sometimes answers an expired artifact with a 200 and an
// HTML page, so a transport success alone is not trusted: the status, the
// content type and the leading signature bytes must all agree.
func (c *Client) Download(ctx context.Context, locator string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %w", signerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("download returned %d: %w", resp.StatusCode, signerrors.ErrArtifactExpired)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: download returned %d", signerrors.ErrUpstream, resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "text/plain") {
		return nil, fmt.Errorf("download returned %s body: %w", ct, signerrors.ErrArtifactExpired)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxArtifact+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact: %w", signerrors.ErrUpstream, err)
	}
	if int64(len(data)) > c.maxArtifact {
		return nil, fmt.Errorf("%w: artifact exceeds %d bytes", signerrors.ErrUnexpectedResponse, c.maxArtifact)
	}
	if len(data) < 4 || data[0] != zipMagic[0] || data[1] != zipMagic[1] {
		return nil, fmt.Errorf("download is not an archive: %w", signerrors.ErrArtifactExpired)
	}
	return data, nil
}
