// Package server assembles the HTTP router of the signer API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appMiddleware "github.com/Testers-Community/android-aab-signer/internal/middleware"
	"github.com/Testers-Community/android-aab-signer/internal/signing"
	"github.com/Testers-Community/android-aab-signer/internal/upload"
)

// Deps are the handlers and settings the router mounts.
type Deps struct {
	Logger       zerolog.Logger
	Upload       *upload.Handler
	Signing      *signing.Handler
	UploadSecret string
}

// NewRouter builds the full route table.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(d.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Post("/blob-upload", d.Upload.Authorize)
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireUploadTicket(d.UploadSecret))
			r.Put("/blob-upload", d.Upload.Stage)
			r.Post("/blob-upload/parts", d.Upload.BeginParts)
			r.Put("/blob-upload/parts/{uploadId}/{partNumber}", d.Upload.StagePart)
			r.Post("/blob-upload/parts/{uploadId}/complete", d.Upload.CompleteParts)
			r.Delete("/blob-upload/parts/{uploadId}", d.Upload.AbortParts)
		})

		r.Post("/sign", d.Signing.Sign)
		r.Get("/runs/recent", d.Signing.Locate)
		r.Get("/status/{runId}", d.Signing.Status)
		r.Get("/download/{runId}", d.Signing.Download)
		r.Post("/cleanup", d.Signing.Cleanup)
	})
	return r
}
