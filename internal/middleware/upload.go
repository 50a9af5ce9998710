package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Testers-Community/android-aab-signer/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UploadPathKey is the context key for the object key an upload ticket grants.
const UploadPathKey contextKey = "uploadPath"

// UploadMaxBytesKey is the context key for the byte limit an upload ticket grants.
const UploadMaxBytesKey contextKey = "uploadMaxBytes"

// TicketAudience is the audience claim carried by upload tickets.
const TicketAudience = "blob-upload"

// RequireUploadTicket returns middleware that validates a Bearer upload
// ticket and injects the granted pathname and size limit into the request context.
func RequireUploadTicket(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "upload ticket required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithAudience(TicketAudience), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				response.Unauthorized(w, "invalid or expired upload ticket")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w, "invalid upload ticket claims")
				return
			}

			pathname, _ := claims["sub"].(string)
			maxBytes, _ := claims["max"].(float64)
			if pathname == "" || maxBytes <= 0 {
				response.Unauthorized(w, "invalid upload ticket claims")
				return
			}

			ctx := context.WithValue(r.Context(), UploadPathKey, pathname)
			ctx = context.WithValue(ctx, UploadMaxBytesKey, int64(maxBytes))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
