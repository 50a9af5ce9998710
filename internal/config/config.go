// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// DatabaseURL enables the Postgres run-claim ledger. Empty keeps claims in memory.
	DatabaseURL string

	UploadTokenSecret string
	UploadTokenTTL    time.Duration
	MaxUploadBytes    int64
	// UploadTimeout bounds one staged upload, body read and response write.
	UploadTimeout time.Duration

	GitHub  GitHubConfig
	Signing SigningConfig

	// Object storage (S3-compatible: MinIO locally, any S3 provider in production)
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageUseSSL     bool
	StoragePublicBase string // publicly fetchable base URL, e.g. "http://localhost:9000/signing"
	StoragePartSize   uint64
	StorageTTLDays    int
}

// GitHubConfig locates the automation repository that runs the signing workflow.
type GitHubConfig struct {
	Token        string
	Owner        string
	Repo         string
	Workflow     string
	Ref          string
	APIBase      string
	ArtifactName string
}

// SigningConfig tunes dispatch, run discovery and the download proxy.
type SigningConfig struct {
	SettleDelay     time.Duration
	DiscoveryWindow time.Duration
	DiscoveryPage   int
	DownloadTimeout time.Duration
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		UploadTokenSecret: getEnv("UPLOAD_TOKEN_SECRET", "change_me_in_production"),
		UploadTokenTTL:    getDuration("UPLOAD_TOKEN_TTL", 15*time.Minute),
		MaxUploadBytes:    getInt64("MAX_UPLOAD_BYTES", 150*1024*1024),
		UploadTimeout:     getDuration("UPLOAD_TIMEOUT", 15*time.Minute),

		GitHub: GitHubConfig{
			Token:        os.Getenv("GITHUB_TOKEN"),
			Owner:        os.Getenv("GITHUB_OWNER"),
			Repo:         os.Getenv("GITHUB_REPO"),
			Workflow:     getEnv("GITHUB_WORKFLOW", "sign.yml"),
			Ref:          getEnv("GITHUB_REF", "main"),
			APIBase:      strings.TrimRight(getEnv("GITHUB_API_BASE", "https://api.github.com"), "/"),
			ArtifactName: getEnv("SIGNED_ARTIFACT_NAME", "signed-aab"),
		},
		Signing: SigningConfig{
			SettleDelay:     getDuration("DISPATCH_SETTLE_DELAY", 2*time.Second),
			DiscoveryWindow: getDuration("DISCOVERY_WINDOW", 60*time.Second),
			DiscoveryPage:   int(getInt64("DISCOVERY_PAGE_SIZE", 5)),
			DownloadTimeout: getDuration("DOWNLOAD_TIMEOUT", 60*time.Second),
		},

		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:  getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey:  getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "signing"),
		StorageUseSSL:     getEnv("STORAGE_USE_SSL", "false") == "true",
		StoragePublicBase: getEnv("STORAGE_PUBLIC_BASE", "http://localhost:9000/signing"),
		StoragePartSize:   uint64(getInt64("STORAGE_PART_SIZE", 16*1024*1024)),
		StorageTTLDays:    int(getInt64("STORAGE_OBJECT_TTL_DAYS", 1)),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesDefaultSecret reports whether the upload ticket key was left at its default.
func (c *Config) UsesDefaultSecret() bool {
	return c.UploadTokenSecret == "change_me_in_production"
}

// Validate reports a configuration error naming every missing GitHub setting.
// Values are never included in the error.
func (g GitHubConfig) Validate() error {
	var missing []string
	if g.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if g.Owner == "" {
		missing = append(missing, "GITHUB_OWNER")
	}
	if g.Repo == "" {
		missing = append(missing, "GITHUB_REPO")
	}
	if len(missing) > 0 {
		return signerrors.Missing(missing...)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid duration for %s, using %s", key, fallback)
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		log.Printf("config: invalid integer for %s, using %d", key, fallback)
		return fallback
	}
	return n
}
