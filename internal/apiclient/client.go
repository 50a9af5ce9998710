// Package apiclient is the HTTP client for the signer API. It implements
// every port session.Orchestrator needs.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/session"
)

// maxPartAttempts bounds how often one part is sent before the upload fails.
const maxPartAttempts = 3

// Client talks to one signer deployment.
type Client struct {
	base       string
	http       *http.Client
	retryDelay time.Duration
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient, retryDelay: 500 * time.Millisecond}
}

var _ session.Backend = (*Client)(nil)

type wireEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Expired *bool  `json:"expired"`
}

type wireTicket struct {
	Token    string `json:"token"`
	Pathname string `json:"pathname"`
	PartSize int64  `json:"partSize"`
}

type wireUploadID struct {
	UploadID string `json:"uploadId"`
}

type wirePart struct {
	Number int    `json:"partNumber"`
	ETag   string `json:"etag"`
}

type wireStaged struct {
	URL string `json:"url"`
}

type wireSign struct {
	AABURL           string `json:"aabUrl"`
	KeystoreURL      string `json:"keystoreUrl"`
	AABFileName      string `json:"aabFileName,omitempty"`
	KeystoreFileName string `json:"keystoreFileName,omitempty"`
	KeystorePassword string `json:"keystorePassword"`
	KeyAlias         string `json:"keyAlias"`
	KeyPassword      string `json:"keyPassword"`
}

type wireRunID struct {
	RunID *int64 `json:"runId"`
}

type wireStatus struct {
	Status      string  `json:"status"`
	Conclusion  *string `json:"conclusion"`
	ArtifactURL string  `json:"artifactUrl"`
	Error       string  `json:"error"`
}

// Upload asks for an upload ticket, then sends the file in one request or,
// when it is larger than the ticket part size, as separately retried parts.
func (c *Client) Upload(ctx context.Context, pathname string, f session.File) (string, error) {
	var ticket wireTicket
	if err := c.doJSON(ctx, http.MethodPost, "/api/blob-upload", "",
		map[string]any{"pathname": pathname, "size": f.Size}, &ticket, inputErrors); err != nil {
		return "", fmt.Errorf("authorize upload: %w", err)
	}
	if ticket.PartSize > 0 && f.Size > ticket.PartSize {
		return c.uploadParts(ctx, ticket, f.Body)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/blob-upload", ticket.Token, f.Body)
	if err != nil {
		return "", err
	}
	req.ContentLength = f.Size
	req.Header.Set("Content-Type", "application/octet-stream")

	var staged wireStaged
	if err := c.do(req, &staged, uploadErrors); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return staged.URL, nil
}

// uploadParts runs one multipart upload and aborts it if any step fails.
func (c *Client) uploadParts(ctx context.Context, ticket wireTicket, body io.Reader) (string, error) {
	var begun wireUploadID
	if err := c.doJSON(ctx, http.MethodPost, "/api/blob-upload/parts", ticket.Token, nil, &begun, uploadErrors); err != nil {
		return "", fmt.Errorf("begin upload: %w", err)
	}
	partsPath := "/api/blob-upload/parts/" + url.PathEscape(begun.UploadID)

	staged, err := c.sendParts(ctx, ticket, partsPath, body)
	if err != nil {
		// Best effort: the bucket lifecycle rule collects what this misses.
		_ = c.doJSON(context.WithoutCancel(ctx), http.MethodDelete, partsPath, ticket.Token, nil, nil, uploadErrors)
		return "", err
	}
	return staged, nil
}

// sendParts reads body one part at a time. Each part is buffered so a failed
// send is retried without rereading the file.
func (c *Client) sendParts(ctx context.Context, ticket wireTicket, partsPath string, body io.Reader) (string, error) {
	buf := make([]byte, ticket.PartSize)
	var parts []wirePart
	for number := 1; ; number++ {
		n, err := io.ReadFull(body, buf)
		if n > 0 {
			part, perr := c.sendPart(ctx, ticket.Token, fmt.Sprintf("%s/%d", partsPath, number), buf[:n])
			if perr != nil {
				return "", fmt.Errorf("upload part %d: %w", number, perr)
			}
			parts = append(parts, part)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
	}

	var staged wireStaged
	if err := c.doJSON(ctx, http.MethodPost, partsPath+"/complete", ticket.Token,
		map[string]any{"parts": parts}, &staged, uploadErrors); err != nil {
		return "", fmt.Errorf("complete upload: %w", err)
	}
	return staged.URL, nil
}

// sendPart PUTs one part, retrying transport failures and 5xx answers.
func (c *Client) sendPart(ctx context.Context, token, path string, chunk []byte) (wirePart, error) {
	var lastErr error
	for attempt := 1; attempt <= maxPartAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.retryDelay*time.Duration(attempt-1)); err != nil {
				return wirePart{}, err
			}
		}
		req, err := c.newRequest(ctx, http.MethodPut, path, token, bytes.NewReader(chunk))
		if err != nil {
			return wirePart{}, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		var part wirePart
		err = c.do(req, &part, uploadErrors)
		if err == nil {
			return part, nil
		}
		if !errors.Is(err, signerrors.ErrUpstream) || ctx.Err() != nil {
			return wirePart{}, err
		}
		lastErr = err
	}
	return wirePart{}, lastErr
}

// Sign triggers the signing workflow.
func (c *Client) Sign(ctx context.Context, in session.SignInput) (int64, bool, error) {
	var out wireRunID
	err := c.doJSON(ctx, http.MethodPost, "/api/sign", "", wireSign{
		AABURL:           in.AABURL,
		KeystoreURL:      in.KeystoreURL,
		AABFileName:      in.AABFileName,
		KeystoreFileName: in.KeystoreFileName,
		KeystorePassword: in.KeystorePassword,
		KeyAlias:         in.KeyAlias,
		KeyPassword:      in.KeyPassword,
	}, &out, inputErrors)
	if err != nil {
		return 0, false, err
	}
	if out.RunID == nil {
		return 0, false, nil
	}
	return *out.RunID, true, nil
}

// LocateRun asks the server to repeat run discovery.
func (c *Client) LocateRun(ctx context.Context) (int64, bool, error) {
	var out wireRunID
	if err := c.doJSON(ctx, http.MethodGet, "/api/runs/recent", "", nil, &out, runErrors); err != nil {
		return 0, false, err
	}
	if out.RunID == nil {
		return 0, false, nil
	}
	return *out.RunID, true, nil
}

// Status reads the state of a run.
func (c *Client) Status(ctx context.Context, runID int64) (session.RunStatus, error) {
	var out wireStatus
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/status/%d", runID), "", nil, &out, runErrors); err != nil {
		return session.RunStatus{}, err
	}
	st := session.RunStatus{Status: out.Status, ArtifactURL: out.ArtifactURL, Error: out.Error}
	if out.Conclusion != nil {
		st.Conclusion = *out.Conclusion
	}
	return st, nil
}

// Cleanup deletes staged objects.
func (c *Client) Cleanup(ctx context.Context, urls []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/cleanup", "", map[string]any{"urls": urls}, nil, inputErrors)
}

// Download streams the archive behind the same-origin artifact path into w.
func (c *Client) Download(ctx context.Context, artifactPath string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, artifactPath, "", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: download: %w", signerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp, downloadErrors)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read download: %w", signerrors.ErrUpstream, err)
	}
	return n, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, dst any, kinds errorKinds) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, token, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, dst, kinds)
}

func (c *Client) do(req *http.Request, dst any, kinds errorKinds) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", signerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, kinds)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", signerrors.ErrUnexpectedResponse, err)
	}
	return nil
}

// errorKinds maps the refusals one endpoint can answer with.
type errorKinds struct {
	badRequest func(reason string) error
	notFound   error
}

var (
	// Sign, cleanup and upload routes answer 400 for user input.
	inputErrors  = errorKinds{badRequest: rejectedInput, notFound: signerrors.ErrRunNotFound}
	uploadErrors = errorKinds{badRequest: rejectedInput, notFound: errUploadGone}
	// Run routes only answer 400 for a malformed run id, which is a client bug.
	runErrors      = errorKinds{badRequest: rejectedCall, notFound: signerrors.ErrRunNotFound}
	downloadErrors = errorKinds{badRequest: refusedDownload, notFound: signerrors.ErrArtifactNotFound}
)

var errUploadGone = fmt.Errorf("%w: multipart upload not found", signerrors.ErrUnexpectedResponse)

func rejectedInput(reason string) error {
	return signerrors.NewValidationError("request", reason)
}

func rejectedCall(reason string) error {
	return fmt.Errorf("%w: server rejected request: %s", signerrors.ErrUnexpectedResponse, reason)
}

func refusedDownload(reason string) error {
	if reason == signerrors.ReasonRunPending {
		return fmt.Errorf("%s: %w", reason, signerrors.ErrRunNotReady)
	}
	return fmt.Errorf("%s: %w", reason, signerrors.ErrRunFailed)
}

// decodeError turns a non-2xx envelope into the matching sentinel.
func decodeError(resp *http.Response, kinds errorKinds) error {
	var env wireEnvelope
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&env)

	switch {
	case resp.StatusCode == http.StatusBadRequest && env.Error != "":
		return kinds.badRequest(env.Error)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return signerrors.NewValidationError("file", "File exceeds the authorized size")
	case resp.StatusCode == http.StatusGone || (env.Expired != nil && *env.Expired):
		return fmt.Errorf("server returned %d: %w", resp.StatusCode, signerrors.ErrArtifactExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("server returned %d: %w", resp.StatusCode, kinds.notFound)
	case resp.StatusCode == http.StatusBadGateway:
		return fmt.Errorf("server returned %d: %w", resp.StatusCode, signerrors.ErrDispatch)
	case env.Error == signerrors.MsgConfiguration:
		return fmt.Errorf("server returned %d: %w", resp.StatusCode, signerrors.ErrConfiguration)
	default:
		return fmt.Errorf("%w: server returned %d", signerrors.ErrUpstream, resp.StatusCode)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
