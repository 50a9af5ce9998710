package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// stagedPrefix is the key prefix of every staged signing input.
const stagedPrefix = "sign-"

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	core       minio.Core
	bucket     string
	publicBase string
	partSize   uint64
	log        zerolog.Logger
}

// Options configures NewMinioStorage.
type Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string
	UseSSL     bool
	// PartSize is the multipart chunk size for large uploads.
	PartSize uint64
	// TTLDays expires stray staged objects; zero disables the lifecycle rule.
	TTLDays int
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a
// public-read policy scoped to staged keys and an expiry rule, and returns a
// ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, opts Options, logger zerolog.Logger) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
		logger.Info().Str("bucket", opts.Bucket).Msg("storage: created bucket")
	}

	if err := client.SetBucketPolicy(ctx, opts.Bucket, publicReadPolicy(opts.Bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	if opts.TTLDays > 0 {
		if err := client.SetBucketLifecycle(ctx, opts.Bucket, expiryRules(opts.TTLDays)); err != nil {
			return nil, fmt.Errorf("set bucket lifecycle: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		core:       minio.Core{Client: client},
		bucket:     opts.Bucket,
		publicBase: strings.TrimRight(opts.PublicBase, "/"),
		partSize:   opts.PartSize,
		log:        logger,
	}, nil
}

// Store streams reader to MinIO under key and returns its public URL. Objects
// larger than the part size go up as a multipart upload, one chunk at a time.
// size must be the exact byte count, or -1 when unknown.
func (s *MinioStorage) Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", LogLabel(key), err)
	}
	s.log.Debug().Str("object", LogLabel(key)).Int64("size", size).Msg("storage: object staged")
	return s.PublicURL(key), nil
}

// Delete removes every object behind urls. Already-deleted objects are
// skipped; the remaining failures are joined.
func (s *MinioStorage) Delete(ctx context.Context, urls []string) error {
	var errs []error
	for _, u := range urls {
		key, err := KeyFromURL(s.publicBase, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		err = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			errs = append(errs, fmt.Errorf("remove object %s: %w", LogLabel(key), err))
		}
	}
	return errors.Join(errs...)
}

// BeginUpload opens a multipart upload for key.
func (s *MinioStorage) BeginUpload(ctx context.Context, key, contentType string) (string, error) {
	id, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("begin upload %s: %w", LogLabel(key), err)
	}
	return id, nil
}

// UploadPart stores part number of an open upload.
func (s *MinioStorage) UploadPart(ctx context.Context, key, uploadID string, number int, reader io.Reader, size int64) (Part, error) {
	p, err := s.core.PutObjectPart(ctx, s.bucket, key, uploadID, number, reader, size, minio.PutObjectPartOptions{})
	if err != nil {
		if isUnknownUpload(err) {
			return Part{}, ErrUnknownUpload
		}
		return Part{}, fmt.Errorf("upload part %d of %s: %w", number, LogLabel(key), err)
	}
	return Part{Number: p.PartNumber, ETag: p.ETag}, nil
}

// CompleteUpload assembles parts in number order and reports the final size.
func (s *MinioStorage) CompleteUpload(ctx context.Context, key, uploadID string, parts []Part) (string, int64, error) {
	complete := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: p.Number, ETag: p.ETag})
	}
	slices.SortFunc(complete, func(a, b minio.CompletePart) int { return a.PartNumber - b.PartNumber })

	if _, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, complete, minio.PutObjectOptions{}); err != nil {
		if isUnknownUpload(err) {
			return "", 0, ErrUnknownUpload
		}
		return "", 0, fmt.Errorf("complete upload %s: %w", LogLabel(key), err)
	}
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return "", 0, fmt.Errorf("stat object %s: %w", LogLabel(key), err)
	}
	s.log.Debug().Str("object", LogLabel(key)).Int("parts", len(parts)).Int64("size", info.Size).Msg("storage: multipart upload completed")
	return s.PublicURL(key), info.Size, nil
}

// AbortUpload discards an open upload and its parts.
func (s *MinioStorage) AbortUpload(ctx context.Context, key, uploadID string) error {
	err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID)
	if err != nil && !isUnknownUpload(err) {
		return fmt.Errorf("abort upload %s: %w", LogLabel(key), err)
	}
	return nil
}

func isUnknownUpload(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchUpload"
}

// Owns reports whether url was issued by this storage.
func (s *MinioStorage) Owns(url string) bool {
	_, err := KeyFromURL(s.publicBase, url)
	return err == nil
}

// PublicURL returns the publicly fetchable URL for the given key.
func (s *MinioStorage) PublicURL(key string) string {
	return ObjectURL(s.publicBase, key)
}

// publicReadPolicy allows anonymous GET on staged keys only. The unguessable
// key is the access control; listing stays private.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, stagedPrefix),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

// expiryRules expires staged objects that cleanup missed.
func expiryRules(days int) *lifecycle.Configuration {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:         "expire-staged-signing-inputs",
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: stagedPrefix},
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
		},
	}
	return cfg
}

var _ Stager = (*MinioStorage)(nil)
