package storagetest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Testers-Community/android-aab-signer/internal/storage"
)

func TestMemory_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	aab, err := m.Store(ctx, "sign-1-a/app.aab", strings.NewReader("PK.."), 4, "application/octet-stream")
	require.NoError(t, err)
	ks, err := m.Store(ctx, "sign-1-a/k.jks", strings.NewReader("ks"), 2, "application/x-java-keystore")
	require.NoError(t, err)
	require.Len(t, m.Keys(), 2)

	urls := []string{aab, ks}
	require.NoError(t, m.Delete(ctx, urls))
	assert.Empty(t, m.Keys())

	require.NoError(t, m.Delete(ctx, urls))
	assert.Empty(t, m.Keys())
	assert.Equal(t, 2, m.DeleteCalls())
}

func TestMemory_StoreSizeMismatch(t *testing.T) {
	m := NewMemory()

	_, err := m.Store(context.Background(), "sign-1-a/app.aab", strings.NewReader("abc"), 10, "")
	require.Error(t, err)
	assert.Empty(t, m.Keys())
}

func TestMemory_DeleteSpecialCharacterNames(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var urls []string
	for _, key := range []string{"sign-1-a/app#2.aab", "sign-1-a/my key?.jks"} {
		u, err := m.Store(ctx, key, strings.NewReader("PK.."), 4, "")
		require.NoError(t, err)
		assert.True(t, m.Owns(u))
		urls = append(urls, u)
	}

	require.NoError(t, m.Delete(ctx, urls))
	assert.Empty(t, m.Keys())
}

func TestMemory_MultipartUpload(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.BeginUpload(ctx, "sign-1-a/app.aab", "application/octet-stream")
	require.NoError(t, err)
	p2, err := m.UploadPart(ctx, "sign-1-a/app.aab", id, 2, strings.NewReader("cd"), 2)
	require.NoError(t, err)
	p1, err := m.UploadPart(ctx, "sign-1-a/app.aab", id, 1, strings.NewReader("ab"), 2)
	require.NoError(t, err)

	_, err = m.UploadPart(ctx, "sign-1-a/other.aab", id, 3, strings.NewReader("x"), 1)
	require.ErrorIs(t, err, storage.ErrUnknownUpload)

	url, size, err := m.CompleteUpload(ctx, "sign-1-a/app.aab", id, []storage.Part{p2, p1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
	assert.Equal(t, Base+"/sign-1-a/app.aab", url)
	data, _, ok := m.Object("sign-1-a/app.aab")
	require.True(t, ok)
	assert.Equal(t, "abcd", string(data))
	assert.Zero(t, m.PendingUploads())
}
