package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signerrors "github.com/Testers-Community/android-aab-signer/internal/errors"
)

func TestAABFile(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		size     int64
		wantErr  string
		wantPass bool
	}{
		{name: "valid", file: "app-release.aab", size: 5 << 20, wantPass: true},
		{name: "upper case extension", file: "APP.AAB", size: 1, wantPass: true},
		{name: "exact limit", file: "app.aab", size: MaxAABSize, wantPass: true},
		{name: "one over limit", file: "app.aab", size: MaxAABSize + 1, wantErr: "File too large. Maximum size: 100 MB"},
		{name: "empty", file: "app.aab", size: 0, wantErr: "File is empty"},
		{name: "apk", file: "app.apk", size: 10, wantErr: "Invalid file type. Expected: .aab"},
		{name: "missing", file: "", size: 10, wantErr: "AAB file is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AABFile(tt.file, tt.size)
			if tt.wantPass {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, signerrors.ErrValidation)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestKeystoreFile(t *testing.T) {
	for _, name := range []string{"release.jks", "release.keystore", "cert.P12", "cert.pfx"} {
		assert.NoError(t, KeystoreFile(name, 2<<20), name)
	}

	assert.NoError(t, KeystoreFile("k.jks", MaxKeystoreSize))

	err := KeystoreFile("k.jks", MaxKeystoreSize+1)
	require.Error(t, err)
	assert.Equal(t, "File too large. Maximum size: 10 MB", err.Error())

	err = KeystoreFile("k.pem", 10)
	require.Error(t, err)
	assert.Equal(t, "Invalid file type. Expected: .jks, .keystore, .p12, .pfx", err.Error())
}

func TestSigningParams_Order(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{"all empty reports alias", Params{}, "Key alias is required"},
		{"whitespace alias", Params{KeyAlias: "   ", KeystorePassword: "a", KeyPassword: "b"}, "Key alias is required"},
		{"bad alias chars", Params{KeyAlias: "my key", KeystorePassword: "a", KeyPassword: "b"}, "Key alias can only contain letters, numbers, underscores, and hyphens"},
		{"keystore password before key password", Params{KeyAlias: "release-key", KeystorePassword: " ", KeyPassword: ""}, "Keystore password is required"},
		{"key password", Params{KeyAlias: "release-key", KeystorePassword: "secret", KeyPassword: "\t"}, "Key password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SigningParams(tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}

	assert.NoError(t, SigningParams(Params{KeyAlias: "release_key-1", KeystorePassword: "p@ss w0rd", KeyPassword: "x"}))
}

func TestSigningParams_NeverEchoesPasswords(t *testing.T) {
	err := SigningParams(Params{KeyAlias: "release", KeystorePassword: "hunter2", KeyPassword: " "})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestUploadPathname(t *testing.T) {
	assert.NoError(t, UploadPathname("sign-1700000000000-3f2a9c1e/app.aab"))
	assert.NoError(t, UploadPathname("sign-1700000000000-3f2a9c1e/release.JKS"))

	for _, bad := range []string{
		"app.aab",
		"sign-1700000000000-3f2a9c1e/app.apk",
		"other-1-2/app.aab",
		"sign-1-x/../../etc/app.aab",
		"sign-1-x/",
	} {
		assert.ErrorIs(t, UploadPathname(bad), signerrors.ErrValidation, bad)
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", ContentType("app.aab"))
	assert.Equal(t, "application/x-java-keystore", ContentType("k.JKS"))
	assert.Equal(t, "application/x-java-keystore", ContentType("k.keystore"))
	assert.Equal(t, "application/x-pkcs12", ContentType("k.p12"))
	assert.Equal(t, "application/x-pkcs12", ContentType("k.pfx"))
	assert.Equal(t, "application/octet-stream", ContentType("unknown"))
}
