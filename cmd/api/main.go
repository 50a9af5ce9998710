//	@title			Android AAB Signer API
//	@version		1.0
//	@description	Stages an unsigned .aab and keystore, signs them through a GitHub Actions workflow and proxies the signed bundle.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	UploadTicket
//	@in							header
//	@name						Authorization
//	@description				Upload ticket from POST /blob-upload. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Testers-Community/android-aab-signer/internal/config"
	"github.com/Testers-Community/android-aab-signer/internal/db"
	"github.com/Testers-Community/android-aab-signer/internal/github"
	"github.com/Testers-Community/android-aab-signer/internal/logging"
	"github.com/Testers-Community/android-aab-signer/internal/runclaim"
	"github.com/Testers-Community/android-aab-signer/internal/server"
	"github.com/Testers-Community/android-aab-signer/internal/signing"
	"github.com/Testers-Community/android-aab-signer/internal/storage"
	"github.com/Testers-Community/android-aab-signer/internal/upload"

	_ "github.com/Testers-Community/android-aab-signer/docs/swagger"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.IsProduction())

	if cfg.IsProduction() && cfg.UsesDefaultSecret() {
		logger.Warn().Msg("UPLOAD_TOKEN_SECRET is the development default; set a real secret")
	}
	if err := cfg.GitHub.Validate(); err != nil {
		// Still start: signing endpoints answer 500 until configured.
		logger.Error().Err(err).Msg("github integration not configured")
	}

	ctx := context.Background()

	claims, closeClaims := openLedger(ctx, cfg, logger)
	defer closeClaims()

	store, err := storage.NewMinioStorage(ctx, storage.Options{
		Endpoint:   cfg.StorageEndpoint,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		PublicBase: cfg.StoragePublicBase,
		UseSSL:     cfg.StorageUseSSL,
		PartSize:   cfg.StoragePartSize,
		TTLDays:    cfg.StorageTTLDays,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage init failed")
	}

	// Wire dependencies: client → service → handler
	wf := github.New(cfg.GitHub, nil, logger)
	signSvc := signing.NewService(wf, store, claims, cfg.Signing, logger)
	uploadSvc := upload.NewService(store, cfg.UploadTokenSecret, cfg.UploadTokenTTL, cfg.MaxUploadBytes, int64(cfg.StoragePartSize), logger)

	router := server.NewRouter(server.Deps{
		Logger:       logger,
		Upload:       upload.NewHandler(uploadSvc, cfg.UploadTimeout),
		Signing:      signing.NewHandler(signSvc),
		UploadSecret: cfg.UploadTokenSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads extend both deadlines to UPLOAD_TIMEOUT per request.
		ReadTimeout:  time.Minute,
		WriteTimeout: cfg.Signing.DownloadTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		logger.Info().Msgf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return
	}

	logger.Info().Msg("server stopped")
}

// openLedger uses Postgres when DATABASE_URL is set so claims survive
// restarts and are shared by replicas; otherwise claims stay in memory.
func openLedger(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (runclaim.Ledger, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set, run claims kept in memory")
		return runclaim.NewMemory(runclaim.DefaultRetention), func() {}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		pool.Close()
		logger.Fatal().Err(err).Msg("database migration failed")
	}
	return runclaim.NewRepository(pool), pool.Close
}
