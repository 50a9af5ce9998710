// Package validation checks signing inputs before any network call is made.
// Messages never echo password values.
package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

// File size limits.
const (
	MaxAABSize      = 100 * 1024 * 1024
	MaxKeystoreSize = 10 * 1024 * 1024
)

// Accepted file extensions.
var (
	AABExtensions      = []string{".aab"}
	KeystoreExtensions = []string{".jks", ".keystore", ".p12", ".pfx"}
)

// UploadPrefix starts every staged object key.
const UploadPrefix = "sign-"

var (
	aliasPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	pathnamePattern = regexp.MustCompile(`^sign-[0-9]+-[A-Za-z0-9-]+/[^/\\]+$`)
)

// Params are the credential fields that accompany a keystore.
type Params struct {
	KeystorePassword string
	KeyAlias         string
	KeyPassword      string
}

// AABFile validates an app bundle by declared name and size.
func AABFile(name string, size int64) error {
	return file("aab", "AAB file", name, size, AABExtensions, MaxAABSize)
}

// KeystoreFile validates a keystore by declared name and size.
func KeystoreFile(name string, size int64) error {
	return file("keystore", "Keystore file", name, size, KeystoreExtensions, MaxKeystoreSize)
}

func file(field, label, name string, size int64, exts []string, max int64) error {
	if name == "" {
		return signerrors.NewValidationError(field, label+" is required")
	}
	if !hasExtension(name, exts) {
		return signerrors.NewValidationError(field,
			fmt.Sprintf("Invalid file type. Expected: %s", strings.Join(exts, ", ")))
	}
	if size > max {
		return signerrors.NewValidationError(field,
			fmt.Sprintf("File too large. Maximum size: %d MB", max/(1024*1024)))
	}
	if size <= 0 {
		return signerrors.NewValidationError(field, "File is empty")
	}
	return nil
}

// KeyAlias validates the key alias.
func KeyAlias(alias string) error {
	if strings.TrimSpace(alias) == "" {
		return signerrors.NewValidationError("keyAlias", "Key alias is required")
	}
	if !aliasPattern.MatchString(alias) {
		return signerrors.NewValidationError("keyAlias",
			"Key alias can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

// KeystorePassword validates presence of the keystore password.
func KeystorePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return signerrors.NewValidationError("keystorePassword", "Keystore password is required")
	}
	return nil
}

// KeyPassword validates presence of the key password.
func KeyPassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return signerrors.NewValidationError("keyPassword", "Key password is required")
	}
	return nil
}

// SigningParams checks alias, keystore password, then key password and
// returns the first failure.
func SigningParams(p Params) error {
	if err := KeyAlias(p.KeyAlias); err != nil {
		return err
	}
	if err := KeystorePassword(p.KeystorePassword); err != nil {
		return err
	}
	return KeyPassword(p.KeyPassword)
}

// UploadPathname validates an upload path hint at authorization time.
// It must live under a per-request "sign-<ts>-<token>/" prefix and carry an
// allow-listed extension.
func UploadPathname(pathname string) error {
	if !pathnamePattern.MatchString(pathname) {
		return signerrors.NewValidationError("pathname", "Invalid upload path")
	}
	all := append(append([]string{}, AABExtensions...), KeystoreExtensions...)
	if !hasExtension(pathname, all) {
		return signerrors.NewValidationError("pathname", "Invalid file type")
	}
	return nil
}

// ContentType returns the MIME type used when staging a file.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jks", ".keystore":
		return "application/x-java-keystore"
	case ".p12", ".pfx":
		return "application/x-pkcs12"
	default:
		return "application/octet-stream"
	}
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
