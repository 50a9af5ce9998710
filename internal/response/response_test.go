package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "Invalid run ID")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"Invalid run ID"}`, rec.Body.String())
}

func TestDownload_ExpiredFlag(t *testing.T) {
	rec := httptest.NewRecorder()
	Download(rec, http.StatusGone, "gone", true)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, true, body["expired"])

	rec = httptest.NewRecorder()
	Download(rec, http.StatusInternalServerError, "boom", false)
	assert.JSONEq(t, `{"success":false,"error":"boom","expired":false}`, rec.Body.String())
}
