// Package errors defines the error taxonomy of the signer and the
// plain-language messages shown to users for each kind.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every failure in the service wraps exactly one of these.
var (
	// ErrValidation indicates malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration indicates the deployment is missing required settings.
	ErrConfiguration = errors.New("service misconfigured")
	// ErrDispatch indicates the CI platform rejected the workflow dispatch.
	ErrDispatch = errors.New("workflow dispatch rejected")
	// ErrDiscoveryMiss indicates no run was found inside the discovery window.
	ErrDiscoveryMiss = errors.New("workflow run not found in discovery window")
	// ErrArtifactExpired indicates the signed artifact is gone or unreadable.
	ErrArtifactExpired = errors.New("artifact expired")
	// ErrArtifactNotFound indicates a successful run produced no signed artifact.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrRunFailed indicates the remote job concluded unsuccessfully.
	ErrRunFailed = errors.New("signing run failed")
	// ErrRunCancelled indicates the remote job was cancelled.
	ErrRunCancelled = errors.New("signing run cancelled")
	// ErrRunNotReady indicates the run has not completed yet.
	ErrRunNotReady = errors.New("signing run not completed")
	// ErrRunNotFound indicates the CI platform does not know the run id.
	ErrRunNotFound = errors.New("signing run not found")
	// ErrUnexpectedResponse indicates an upstream response did not match its schema.
	ErrUnexpectedResponse = errors.New("unexpected upstream response")
	// ErrUpstream indicates a transport or status failure talking to an upstream.
	ErrUpstream = errors.New("upstream request failed")
	// ErrBusy indicates a signing attempt is already in progress.
	ErrBusy = errors.New("signing attempt already in progress")
)

// ValidationError carries the single human-readable reason an input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DispatchError is returned when the dispatch endpoint answers with a non-2xx status.
// Body is diagnostic detail for server logs and has credential values scrubbed.
type DispatchError struct {
	StatusCode int
	Body       string
}

// NewDispatchError builds a DispatchError, removing every secret from body.
func NewDispatchError(status int, body string, secrets ...string) *DispatchError {
	return &DispatchError{StatusCode: status, Body: Scrub(body, secrets...)}
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrDispatch.
func (e *DispatchError) Unwrap() error {
	return ErrDispatch
}

// Scrub replaces every non-empty secret occurring in s with a redaction marker.
func Scrub(s string, secrets ...string) string {
	for _, secret := range secrets {
		if strings.TrimSpace(secret) == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	return s
}

// Missing builds a ConfigurationError listing the names of absent settings.
func Missing(names ...string) error {
	return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(names, ", "))
}
