// Package storage stages signing inputs in temporary object storage.
// The MinIO implementation works with any S3-compatible provider (MinIO, AWS S3, R2).
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

// ErrForeignURL is returned when a URL was not issued by this storage.
var ErrForeignURL = errors.New("url not issued by this storage")

// Storage is the gateway used to stage and remove signing inputs.
type Storage interface {
	// Store streams data under key and returns its publicly fetchable URL.
	Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// Delete removes the objects behind urls. Missing objects are not an error.
	Delete(ctx context.Context, urls []string) error
	// Owns reports whether url points into this storage.
	Owns(url string) bool
}

// Part is one uploaded chunk of a multipart upload.
type Part struct {
	Number int    `json:"partNumber"`
	ETag   string `json:"etag"`
}

// Multipart stages an object as separately uploaded parts, so a client can
// retry one failed chunk instead of resending the whole file.
type Multipart interface {
	// BeginUpload opens a multipart upload for key and returns its id.
	BeginUpload(ctx context.Context, key, contentType string) (string, error)
	// UploadPart stores one part. Re-uploading a number replaces that part.
	UploadPart(ctx context.Context, key, uploadID string, number int, reader io.Reader, size int64) (Part, error)
	// CompleteUpload assembles parts into the object and returns its public
	// URL and total size.
	CompleteUpload(ctx context.Context, key, uploadID string, parts []Part) (string, int64, error)
	// AbortUpload discards an unfinished upload. Unknown ids are not an error.
	AbortUpload(ctx context.Context, key, uploadID string) error
}

// Stager is a Storage that also accepts multipart uploads.
type Stager interface {
	Storage
	Multipart
}

// ErrUnknownUpload is returned for an upload id this storage did not open
// for the given key.
var ErrUnknownUpload = errors.New("unknown multipart upload")

// ObjectURL returns the public URL of key under base. Each path segment is
// escaped so characters such as '#', '?' and spaces survive the round trip
// through KeyFromURL.
func ObjectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

// KeyFromURL maps a public URL back to its object key under base.
func KeyFromURL(base, rawURL string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", ErrForeignURL
	}
	escaped := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexAny(escaped, "?#"); i >= 0 {
		escaped = escaped[:i]
	}
	key, err := url.PathUnescape(escaped)
	if err != nil {
		return "", ErrForeignURL
	}
	if key == "" || strings.Contains(key, "..") {
		return "", ErrForeignURL
	}
	return key, nil
}

// LogLabel returns the timestamp part of a staged key ("sign-<ts>"). The
// random token and file name stay out of logs since they are the only
// access control on public objects.
func LogLabel(key string) string {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) < 2 {
		return "object"
	}
	return parts[0] + "-" + strings.SplitN(parts[1], "/", 2)[0]
}
