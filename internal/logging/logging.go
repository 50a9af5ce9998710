// Package logging builds the service logger and keeps secrets out of log output.
package logging

import (
	"io"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// RedactedValue is the replacement string for sensitive data.
const RedactedValue = "[REDACTED]"

// sensitivePatterns match credential-looking substrings in free-form text.
var sensitivePatterns = []*regexp.Regexp{
	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_, github_pat_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(keystore_password|key_password|password|passwd|secret)"?\s*[:=]\s*"?[^\s",}]+`),
	// presigned or ticket query strings
	regexp.MustCompile(`(?i)(X-Amz-Signature|X-Amz-Credential|token)=[^&\s"]+`),
}

func init() {
	// Upstream error text can echo request bodies or headers; every Err(err)
	// field goes through Redact.
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return Redact(err.Error())
	}
}

// New creates the service logger. Production emits JSON; development a console writer.
func New(level string, production bool) zerolog.Logger {
	var w io.Writer = os.Stdout
	if !production {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(level, w)
}

// NewWithWriter creates a logger writing to w at the parsed level (info on parse failure).
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).Hook(SensitiveDataHook{}).With().Timestamp().Logger()
}

// SensitiveDataHook flags events whose message looks like it carries a secret.
// zerolog cannot rewrite a message from a hook. Error fields are already
// redacted by ErrorMarshalFunc; this hook marks messages that slipped through.
type SensitiveDataHook struct{}

// Run implements zerolog.Hook.
func (SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any sensitive pattern.
func ContainsSensitiveData(s string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Redact replaces sensitive substrings of s with RedactedValue.
func Redact(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllString(s, RedactedValue)
	}
	return s
}
