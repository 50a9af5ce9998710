package github

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

func TestDownload(t *testing.T) {
	zip := "PK\x03\x04signed-bundle"
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantErr     error
	}{
		{name: "valid archive", status: 200, contentType: "application/zip", body: zip},
		{name: "gone", status: 410, contentType: "application/json", body: `{}`, wantErr: signerrors.ErrArtifactExpired},
		{name: "not found", status: 404, contentType: "application/json", body: `{}`, wantErr: signerrors.ErrArtifactExpired},
		{name: "html error page with 200", status: 200, contentType: "text/html; charset=utf-8", body: "<html>expired</html>", wantErr: signerrors.ErrArtifactExpired},
		{name: "plain text with 200", status: 200, contentType: "text/plain", body: "expired", wantErr: signerrors.ErrArtifactExpired},
		{name: "wrong magic", status: 200, contentType: "application/zip", body: "GZ\x03\x04nope", wantErr: signerrors.ErrArtifactExpired},
		{name: "too short", status: 200, contentType: "application/zip", body: "PK", wantErr: signerrors.ErrArtifactExpired},
		{name: "server error", status: 500, contentType: "application/json", body: `{}`, wantErr: signerrors.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer ghp_testtoken", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			data, err := c.Download(context.Background(), c.cfg.APIBase+"/repos/acme/signer/actions/artifacts/11/zip")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, data)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []byte(zip), data)
			assert.Equal(t, byte(0x50), data[0])
			assert.Equal(t, byte(0x4B), data[1])
		})
	}
}

func TestDownload_FollowsRedirect(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blob/signed.zip" {
			w.Header().Set("Content-Type", "application/zip")
			_, _ = io.WriteString(w, "PK\x03\x04data")
			return
		}
		http.Redirect(w, r, "/blob/signed.zip", http.StatusFound)
	}))

	data, err := c.Download(context.Background(), c.cfg.APIBase+"/repos/acme/signer/actions/artifacts/11/zip")
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04data", string(data))
}

func TestDownload_RejectsOversizedArchive(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK\x03\x04-0123456789")
	}))
	c.maxArtifact = 8

	data, err := c.Download(context.Background(), c.cfg.APIBase+"/repos/acme/signer/actions/artifacts/11/zip")
	require.ErrorIs(t, err, signerrors.ErrUnexpectedResponse)
	assert.Nil(t, data)

	c.maxArtifact = int64(len("PK\x03\x04-0123456789"))
	data, err = c.Download(context.Background(), c.cfg.APIBase+"/repos/acme/signer/actions/artifacts/11/zip")
	require.NoError(t, err)
	assert.Len(t, data, int(c.maxArtifact))
}
