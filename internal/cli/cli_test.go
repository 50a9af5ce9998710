package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

var signed = []byte("PK\x03\x04signed-bundle")

// fakeAPI answers the signer API for one run that finishes on the second poll.
type fakeAPI struct {
	mu         sync.Mutex
	conclusion string
	polls      int
	cleaned    []string
	signBody   map[string]string
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/blob-upload", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Pathname string `json:"pathname"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"token":"tkt","pathname":%q}`, body.Pathname)
	})
	mux.HandleFunc("PUT /api/blob-upload", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"success":true,"url":"https://blob.test/signing/obj-%d"}`, r.ContentLength)
	})
	mux.HandleFunc("POST /api/sign", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.signBody = body
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"message":"Signing started","runId":88}`)
	})
	mux.HandleFunc("GET /api/status/88", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		n := f.polls
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case n < 2:
			fmt.Fprint(w, `{"success":true,"status":"in_progress","conclusion":null}`)
		case f.conclusion == "success":
			fmt.Fprint(w, `{"success":true,"status":"completed","conclusion":"success","artifactUrl":"/api/download/88"}`)
		default:
			fmt.Fprintf(w, `{"success":true,"status":"completed","conclusion":%q,"error":%q}`, f.conclusion, signerrors.MsgRunFailed)
		}
	})
	mux.HandleFunc("GET /api/download/88", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(signed)
	})
	mux.HandleFunc("POST /api/cleanup", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URLs []string `json:"urls"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.cleaned = append(f.cleaned, body.URLs...)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeInputs(t *testing.T) (dir, aab, keystore string) {
	t.Helper()
	dir = t.TempDir()
	aab = filepath.Join(dir, "app-release.aab")
	keystore = filepath.Join(dir, "release.jks")
	require.NoError(t, os.WriteFile(aab, []byte("PK\x03\x04unsigned"), 0o600))
	require.NoError(t, os.WriteFile(keystore, []byte("keystore"), 0o600))
	return dir, aab, keystore
}

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

var passwords = map[string]string{
	EnvKeystorePassword: "storepass",
	EnvKeyPassword:      "keypass",
}

func execute(t *testing.T, getenv func(string) string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{getenv: getenv}
	cmd := newRootCmd(a, BuildInfo{})
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSign_Success(t *testing.T) {
	api := &fakeAPI{conclusion: "success"}
	srv := api.server(t)
	dir, aab, ks := writeInputs(t)
	outPath := filepath.Join(dir, "signed.zip")

	out, err := execute(t, env(passwords),
		"sign", "--server", srv.URL, "--aab", aab, "--keystore", ks, "--alias", "upload",
		"--out", outPath, "--poll-interval", "5ms")
	require.NoError(t, err)

	assert.Contains(t, out, "Uploading files...")
	assert.Contains(t, out, "Signing...")
	assert.Contains(t, out, "Signed bundle saved to "+outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, signed, data)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "storepass", api.signBody["keystorePassword"])
	assert.Equal(t, "app-release.aab", api.signBody["aabFileName"])
	assert.Len(t, api.cleaned, 2)
	assert.NotContains(t, out, "storepass")
}

func TestSign_RunFailed(t *testing.T) {
	api := &fakeAPI{conclusion: "failure"}
	srv := api.server(t)
	_, aab, ks := writeInputs(t)

	out, err := execute(t, env(passwords),
		"sign", "--server", srv.URL, "--aab", aab, "--keystore", ks, "--alias", "upload", "--poll-interval", "5ms")
	require.ErrorIs(t, err, ErrSigningFailed)
	assert.Equal(t, ExitError, ExitCode(err))
	assert.Contains(t, out, signerrors.MsgRunFailed)
	assert.Contains(t, out, signerrors.ContactHint)
}

func TestSign_MissingPassword(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	_, aab, ks := writeInputs(t)

	_, err := execute(t, env(map[string]string{EnvKeyPassword: "keypass"}),
		"sign", "--server", srv.URL, "--aab", aab, "--keystore", ks, "--alias", "upload")
	require.ErrorIs(t, err, signerrors.ErrValidation)
	assert.Equal(t, ExitInvalidInput, ExitCode(err))
	assert.Equal(t, "Keystore password is required", err.Error())
}

func TestValidate(t *testing.T) {
	dir, aab, ks := writeInputs(t)

	out, err := execute(t, env(passwords), "validate", "--aab", aab, "--keystore", ks, "--alias", "upload")
	require.NoError(t, err)
	assert.Contains(t, out, "Inputs look good.")

	apk := filepath.Join(dir, "app.apk")
	require.NoError(t, os.WriteFile(apk, []byte("x"), 0o600))
	out, err = execute(t, env(passwords), "validate", "--aab", apk, "--keystore", ks, "--alias", "upload")
	require.ErrorIs(t, err, signerrors.ErrValidation)
	assert.Contains(t, out, "Invalid file type")

	_, err = execute(t, env(passwords), "validate", "--aab", aab, "--keystore", ks, "--alias", "bad alias")
	assert.ErrorIs(t, err, signerrors.ErrValidation)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev (commit: none, built: unknown)", formatVersion(BuildInfo{}))
	assert.Equal(t, "1.2.0 (commit: abc, built: 2026-10-14)", formatVersion(BuildInfo{Version: "1.2.0", Commit: "abc", Date: "2026-10-14"}))
}
