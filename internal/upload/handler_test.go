package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Testers-Community/android-aab-signer/internal/middleware"
	"github.com/Testers-Community/android-aab-signer/internal/storage"
	"github.com/Testers-Community/android-aab-signer/internal/storage/storagetest"
)

const secret = "upload-secret"

func newRouter(t *testing.T, maxBytes int64) (http.Handler, *storagetest.Memory) {
	t.Helper()
	store := storagetest.NewMemory()
	svc := NewService(store, secret, time.Minute, maxBytes, 4, zerolog.Nop())
	h := NewHandler(svc, time.Minute)

	r := chi.NewRouter()
	r.Post("/api/blob-upload", h.Authorize)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUploadTicket(secret))
		r.Put("/api/blob-upload", h.Stage)
		r.Post("/api/blob-upload/parts", h.BeginParts)
		r.Put("/api/blob-upload/parts/{uploadId}/{partNumber}", h.StagePart)
		r.Post("/api/blob-upload/parts/{uploadId}/complete", h.CompleteParts)
		r.Delete("/api/blob-upload/parts/{uploadId}", h.AbortParts)
	})
	return r, store
}

func authorize(t *testing.T, r http.Handler, pathname string, size int64) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"pathname": pathname, "size": size})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/blob-upload", bytes.NewReader(body)))
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestAuthorizeAndStage(t *testing.T) {
	r, store := newRouter(t, 1024)

	rec, out := authorize(t, r, "sign-1760443200000-abc123/app.aab", 4)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.EqualValues(t, 1024, out["maximumSizeInBytes"])
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPut, "/api/blob-upload", strings.NewReader("PK\x03\x04"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var staged stageData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &staged))
	assert.Equal(t, storagetest.Base+"/sign-1760443200000-abc123/app.aab", staged.URL)

	data, contentType, ok := store.Object("sign-1760443200000-abc123/app.aab")
	require.True(t, ok)
	assert.Equal(t, "PK\x03\x04", string(data))
	assert.Equal(t, "application/octet-stream", contentType)
}

func TestAuthorize_Rejects(t *testing.T) {
	r, _ := newRouter(t, 1024)

	tests := []struct {
		name     string
		pathname string
		size     int64
		want     string
	}{
		{"bad extension", "sign-1-abc/app.apk", 10, "Invalid file type"},
		{"no prefix", "app.aab", 10, "Invalid upload path"},
		{"too large", "sign-1-abc/app.aab", 1025, "File too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := authorize(t, r, tt.pathname, tt.size)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, out["error"], tt.want)
		})
	}
}

func TestStage_Limits(t *testing.T) {
	r, store := newRouter(t, 8)
	_, out := authorize(t, r, "sign-1-abc/k.jks", 0)
	token := out["token"].(string)

	req := httptest.NewRequest(http.MethodPut, "/api/blob-upload", strings.NewReader("0123456789"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/blob-upload", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusLengthRequired, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/blob-upload", strings.NewReader("ks"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, store.Keys())
}

func TestStage_KeystoreContentType(t *testing.T) {
	r, store := newRouter(t, 64)
	_, out := authorize(t, r, "sign-1-abc/release.p12", 2)

	req := httptest.NewRequest(http.MethodPut, "/api/blob-upload", strings.NewReader("ks"))
	req.Header.Set("Authorization", "Bearer "+out["token"].(string))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	_, contentType, ok := store.Object("sign-1-abc/release.p12")
	require.True(t, ok)
	assert.Equal(t, "application/x-pkcs12", contentType)
}

func TestStage_SlowBodyOutlastsServerTimeouts(t *testing.T) {
	r, store := newRouter(t, 64)
	_, out := authorize(t, r, "sign-1-abc/slow.aab", 6)

	srv := httptest.NewUnstartedServer(middleware.Logger(zerolog.Nop())(r))
	srv.Config.ReadTimeout = 200 * time.Millisecond
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	pr, pw := io.Pipe()
	go func() {
		for _, chunk := range []string{"PK", "\x03\x04", "ok"} {
			_, _ = pw.Write([]byte(chunk))
			time.Sleep(300 * time.Millisecond)
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/blob-upload", pr)
	require.NoError(t, err)
	req.ContentLength = 6
	req.Header.Set("Authorization", "Bearer "+out["token"].(string))

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	data, _, ok := store.Object("sign-1-abc/slow.aab")
	require.True(t, ok)
	assert.Equal(t, "PK\x03\x04ok", string(data))
}

func ticketed(t *testing.T, r http.Handler, token, method, path string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestParts_UploadInChunks(t *testing.T) {
	r, store := newRouter(t, 64)
	_, out := authorize(t, r, "sign-1-abc/app.aab", 10)
	assert.EqualValues(t, 4, out["partSize"])
	token := out["token"].(string)

	rec, begin := ticketed(t, r, token, http.MethodPost, "/api/blob-upload/parts", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := begin["uploadId"].(string)
	require.NotEmpty(t, id)

	var parts []map[string]any
	for i, chunk := range []string{"PK\x03\x04", "sign", "ed"} {
		rec, part := ticketed(t, r, token, http.MethodPut, fmt.Sprintf("/api/blob-upload/parts/%s/%d", id, i+1), strings.NewReader(chunk))
		require.Equal(t, http.StatusOK, rec.Code, chunk)
		assert.EqualValues(t, i+1, part["partNumber"])
		parts = append(parts, map[string]any{"partNumber": part["partNumber"], "etag": part["etag"]})
	}
	// a resent part replaces the first attempt
	rec, _ = ticketed(t, r, token, http.MethodPut, "/api/blob-upload/parts/"+id+"/3", strings.NewReader("ED"))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(map[string]any{"parts": parts})
	rec, done := ticketed(t, r, token, http.MethodPost, "/api/blob-upload/parts/"+id+"/complete", bytes.NewReader(body))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, storagetest.Base+"/sign-1-abc/app.aab", done["url"])

	data, contentType, ok := store.Object("sign-1-abc/app.aab")
	require.True(t, ok)
	assert.Equal(t, "PK\x03\x04signED", string(data))
	assert.Equal(t, "application/octet-stream", contentType)
}

func TestParts_Limits(t *testing.T) {
	r, store := newRouter(t, 6)
	_, out := authorize(t, r, "sign-1-abc/app.aab", 6)
	token := out["token"].(string)
	_, begin := ticketed(t, r, token, http.MethodPost, "/api/blob-upload/parts", nil)
	id := begin["uploadId"].(string)

	rec, _ := ticketed(t, r, token, http.MethodPut, "/api/blob-upload/parts/"+id+"/1", strings.NewReader("12345"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, "part above the part size")

	rec, _ = ticketed(t, r, token, http.MethodPut, "/api/blob-upload/parts/"+id+"/0", strings.NewReader("1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ticketed(t, r, token, http.MethodPut, "/api/blob-upload/parts/unknown/1", strings.NewReader("1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var parts []storage.Part
	for i, chunk := range []string{"PK\x03\x04", "1234"} {
		rec, part := ticketed(t, r, token, http.MethodPut, fmt.Sprintf("/api/blob-upload/parts/%s/%d", id, i+1), strings.NewReader(chunk))
		require.Equal(t, http.StatusOK, rec.Code)
		parts = append(parts, storage.Part{Number: i + 1, ETag: part["etag"].(string)})
	}
	body, _ := json.Marshal(map[string]any{"parts": parts})
	rec, _ = ticketed(t, r, token, http.MethodPost, "/api/blob-upload/parts/"+id+"/complete", bytes.NewReader(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, "assembled file above the ticket limit")
	assert.Empty(t, store.Keys())

	body, _ = json.Marshal(map[string]any{"parts": []storage.Part{{Number: 1, ETag: "a"}, {Number: 1, ETag: "a"}}})
	rec, _ = ticketed(t, r, token, http.MethodPost, "/api/blob-upload/parts/"+id+"/complete", bytes.NewReader(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParts_Abort(t *testing.T) {
	r, store := newRouter(t, 64)
	_, out := authorize(t, r, "sign-1-abc/release.jks", 0)
	token := out["token"].(string)
	_, begin := ticketed(t, r, token, http.MethodPost, "/api/blob-upload/parts", nil)
	id := begin["uploadId"].(string)
	rec, _ := ticketed(t, r, token, http.MethodPut, "/api/blob-upload/parts/"+id+"/1", strings.NewReader("ks"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, store.PendingUploads())

	rec, _ = ticketed(t, r, token, http.MethodDelete, "/api/blob-upload/parts/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.PendingUploads())
	assert.Empty(t, store.Keys())

	rec, _ = ticketed(t, r, "", http.MethodPost, "/api/blob-upload/parts", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
