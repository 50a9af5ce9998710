package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signTicket(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "sign-1-abc/app.aab",
		"max": float64(1024),
		"aud": TicketAudience,
		"exp": time.Now().Add(time.Minute).Unix(),
	}
}

func TestRequireUploadTicket(t *testing.T) {
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	wrongAud := validClaims()
	wrongAud["aud"] = "something-else"
	noPath := validClaims()
	delete(noPath, "sub")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + signTicket(t, testSecret, validClaims()), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signTicket(t, "other", validClaims()), http.StatusUnauthorized},
		{"expired", "Bearer " + signTicket(t, testSecret, expired), http.StatusUnauthorized},
		{"wrong audience", "Bearer " + signTicket(t, testSecret, wrongAud), http.StatusUnauthorized},
		{"no pathname", "Bearer " + signTicket(t, testSecret, noPath), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotMax int64
			h := RequireUploadTicket(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath, _ = r.Context().Value(UploadPathKey).(string)
				gotMax, _ = r.Context().Value(UploadMaxBytesKey).(int64)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPut, "/api/blob-upload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "sign-1-abc/app.aab", gotPath)
				assert.Equal(t, int64(1024), gotMax)
			}
		})
	}
}
