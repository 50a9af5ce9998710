// Package upload implements the upload intake: it authorizes a staged upload
// by issuing a short-lived signed ticket, then streams the ticketed body into
// object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
	"github.com/Testers-Community/android-aab-signer/internal/middleware"
	"github.com/Testers-Community/android-aab-signer/internal/storage"
	"github.com/Testers-Community/android-aab-signer/internal/validation"
)

// MaxParts is the most parts one multipart upload may have.
const MaxParts = 10000

// ErrTooLarge is returned when an upload exceeds its ticket's size limit.
var ErrTooLarge = errors.New("upload exceeds the authorized size")

// Ticket grants one upload of at most MaxBytes under Pathname. Files larger
// than PartSize should go up as parts of at most PartSize bytes each.
type Ticket struct {
	Token     string    `json:"token"`
	Pathname  string    `json:"pathname"`
	MaxBytes  int64     `json:"maximumSizeInBytes"`
	PartSize  int64     `json:"partSize"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service issues upload tickets and stages uploads.
type Service struct {
	store    storage.Stager
	secret   []byte
	ttl      time.Duration
	maxBytes int64
	partSize int64
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a new upload Service.
func NewService(store storage.Stager, secret string, ttl time.Duration, maxBytes, partSize int64, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		secret:   []byte(secret),
		ttl:      ttl,
		maxBytes: maxBytes,
		partSize: partSize,
		log:      logger,
		now:      time.Now,
	}
}

// Authorize checks the path hint and declared size, then issues a ticket.
// size may be zero when the client does not know it yet; the ticket limit
// still applies at upload time.
func (s *Service) Authorize(pathname string, size int64) (*Ticket, error) {
	if err := validation.UploadPathname(pathname); err != nil {
		return nil, err
	}
	if size < 0 || size > s.maxBytes {
		return nil, signerrors.NewValidationError("size",
			fmt.Sprintf("File too large. Maximum size: %d MB", s.maxBytes/(1024*1024)))
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub": pathname,
		"max": s.maxBytes,
		"aud": middleware.TicketAudience,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign upload ticket: %w", err)
	}
	return &Ticket{Token: token, Pathname: pathname, MaxBytes: s.maxBytes, PartSize: s.partSize, ExpiresAt: expiresAt}, nil
}

// Stage streams body into storage under pathname and returns the public URL.
func (s *Service) Stage(ctx context.Context, pathname string, body io.Reader, size int64) (string, error) {
	url, err := s.store.Store(ctx, pathname, body, size, validation.ContentType(pathname))
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	s.log.Info().Str("object", storage.LogLabel(pathname)).Int64("size", size).Msg("upload: staged")
	return url, nil
}

// BeginParts opens a multipart upload under pathname.
func (s *Service) BeginParts(ctx context.Context, pathname string) (string, error) {
	id, err := s.store.BeginUpload(ctx, pathname, validation.ContentType(pathname))
	if err != nil {
		return "", fmt.Errorf("begin multipart upload: %w", err)
	}
	return id, nil
}

// StagePart stores one part of an open upload. Parts are numbered from 1 and
// hold at most the ticket part size.
func (s *Service) StagePart(ctx context.Context, pathname, uploadID string, number int, body io.Reader, size int64) (storage.Part, error) {
	if number < 1 || number > MaxParts {
		return storage.Part{}, signerrors.NewValidationError("partNumber", "Invalid part number")
	}
	if size > s.partSize {
		return storage.Part{}, ErrTooLarge
	}
	part, err := s.store.UploadPart(ctx, pathname, uploadID, number, body, size)
	if err != nil {
		return storage.Part{}, fmt.Errorf("stage part: %w", err)
	}
	return part, nil
}

// CompleteParts assembles the uploaded parts. An assembled object larger
// than maxBytes is removed again and reported as ErrTooLarge.
func (s *Service) CompleteParts(ctx context.Context, pathname, uploadID string, parts []storage.Part, maxBytes int64) (string, error) {
	if len(parts) == 0 || len(parts) > MaxParts {
		return "", signerrors.NewValidationError("parts", "Invalid part list")
	}
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		if p.Number < 1 || p.Number > MaxParts || p.ETag == "" || seen[p.Number] {
			return "", signerrors.NewValidationError("parts", "Invalid part list")
		}
		seen[p.Number] = true
	}

	url, size, err := s.store.CompleteUpload(ctx, pathname, uploadID, parts)
	if err != nil {
		return "", fmt.Errorf("complete multipart upload: %w", err)
	}
	if size > maxBytes {
		if err := s.store.Delete(ctx, []string{url}); err != nil {
			s.log.Warn().Err(err).Str("object", storage.LogLabel(pathname)).Msg("upload: oversized object not removed")
		}
		return "", ErrTooLarge
	}
	s.log.Info().Str("object", storage.LogLabel(pathname)).Int("parts", len(parts)).Int64("size", size).Msg("upload: staged")
	return url, nil
}

// AbortParts discards an unfinished multipart upload.
func (s *Service) AbortParts(ctx context.Context, pathname, uploadID string) error {
	if err := s.store.AbortUpload(ctx, pathname, uploadID); err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}
