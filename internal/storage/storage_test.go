package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromURL(t *testing.T) {
	base := "http://localhost:9000/signing/"

	key, err := KeyFromURL(base, "http://localhost:9000/signing/sign-1-abc/app.aab")
	require.NoError(t, err)
	assert.Equal(t, "sign-1-abc/app.aab", key)

	key, err = KeyFromURL(base, "http://localhost:9000/signing/sign-1-abc/app.aab?x=1")
	require.NoError(t, err)
	assert.Equal(t, "sign-1-abc/app.aab", key)

	for _, bad := range []string{
		"https://evil.example/signing/sign-1-abc/app.aab",
		"http://localhost:9000/signing/",
		"http://localhost:9000/signing/../other/app.aab",
		"http://localhost:9000/signingX/app.aab",
	} {
		_, err := KeyFromURL(base, bad)
		assert.ErrorIs(t, err, ErrForeignURL, bad)
	}
}

func TestObjectURL_RoundTrip(t *testing.T) {
	base := "https://cdn.example.com/signing"
	tests := []struct {
		key  string
		want string
	}{
		{"sign-1-abc/app.aab", base + "/sign-1-abc/app.aab"},
		{"sign-1-abc/app#2.aab", base + "/sign-1-abc/app%232.aab"},
		{"sign-1-abc/my app?.aab", base + "/sign-1-abc/my%20app%3F.aab"},
		{"sign-1-abc/приложение.aab", ""},
		{"sign-1-abc/100%.jks", base + "/sign-1-abc/100%25.jks"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			u := ObjectURL(base, tt.key)
			if tt.want != "" {
				assert.Equal(t, tt.want, u)
			}
			assert.NotContains(t, u, " ")

			key, err := KeyFromURL(base, u)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestKeyFromURL_RejectsEscapedTraversal(t *testing.T) {
	_, err := KeyFromURL("https://cdn.example.com/signing", "https://cdn.example.com/signing/%2E%2E/other/app.aab")
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestLogLabel(t *testing.T) {
	assert.Equal(t, "sign-1700000000000", LogLabel("sign-1700000000000-3f2a9c1e/app.aab"))
	assert.Equal(t, "object", LogLabel("plain"))
}

func TestMinioStorage_URLs(t *testing.T) {
	s := &MinioStorage{bucket: "signing", publicBase: "https://cdn.example.com/signing"}

	url := s.PublicURL("sign-1-abc/app.aab")
	assert.Equal(t, "https://cdn.example.com/signing/sign-1-abc/app.aab", url)
	assert.True(t, s.Owns(url))
	assert.False(t, s.Owns("https://cdn.example.com/other/sign-1-abc/app.aab"))
}

func TestPublicReadPolicy_ScopedToStagedKeys(t *testing.T) {
	var policy struct {
		Statement []struct {
			Action   string
			Resource string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("signing")), &policy))
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "s3:GetObject", policy.Statement[0].Action)
	assert.Equal(t, "arn:aws:s3:::signing/sign-*", policy.Statement[0].Resource)
}

func TestExpiryRules(t *testing.T) {
	cfg := expiryRules(2)

	require.Len(t, cfg.Rules, 1)
	rule := cfg.Rules[0]
	assert.Equal(t, "Enabled", rule.Status)
	assert.Equal(t, "sign-", rule.RuleFilter.Prefix)
	assert.EqualValues(t, 2, rule.Expiration.Days)
}
