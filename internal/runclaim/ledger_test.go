package runclaim

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	ok, err := m.Claim(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Claim(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ConcurrentClaims(t *testing.T) {
	m := NewMemory(time.Minute)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Claim(context.Background(), 7); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	ok, _ := m.Claim(ctx, 1)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = m.Claim(ctx, 1)
	assert.True(t, ok, "expired claims are forgotten")
}

func TestMemory_Complete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	require.NoError(t, m.Complete(ctx, 9, "success"))
	_, ok := m.claims[9]
	assert.False(t, ok, "unclaimed runs are ignored")

	_, _ = m.Claim(ctx, 9)
	require.NoError(t, m.Complete(ctx, 9, "failure"))
	assert.Equal(t, "failure", m.claims[9].conclusion)
}
