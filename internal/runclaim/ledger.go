// Package runclaim records which workflow runs have been handed to a signing
// request, so run discovery never gives the same run to two requests.
package runclaim

import (
	"context"
	"sync"
	"time"
)

// Ledger hands out runs at most once and records how they finished.
type Ledger interface {
	// Claim atomically marks runID as taken. It reports false if it already was.
	Claim(ctx context.Context, runID int64) (bool, error)
	// Complete records the terminal conclusion of a claimed run.
	Complete(ctx context.Context, runID int64, conclusion string) error
}

// DefaultRetention is how long the in-memory ledger remembers a claim.
// It only needs to outlive the discovery window.
const DefaultRetention = 30 * time.Minute

type memoryClaim struct {
	claimedAt  time.Time
	conclusion string
}

// Memory is a process-local Ledger for single-instance deployments.
type Memory struct {
	mu        sync.Mutex
	claims    map[int64]memoryClaim
	retention time.Duration
	now       func() time.Time
}

// NewMemory creates a Memory ledger that forgets claims after retention.
func NewMemory(retention time.Duration) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{claims: map[int64]memoryClaim{}, retention: retention, now: time.Now}
}

// Claim implements Ledger.
func (m *Memory) Claim(_ context.Context, runID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, c := range m.claims {
		if now.Sub(c.claimedAt) > m.retention {
			delete(m.claims, id)
		}
	}
	if _, taken := m.claims[runID]; taken {
		return false, nil
	}
	m.claims[runID] = memoryClaim{claimedAt: now}
	return true, nil
}

// Complete implements Ledger. Unknown runs are ignored.
func (m *Memory) Complete(_ context.Context, runID int64, conclusion string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[runID]; ok {
		c.conclusion = conclusion
		m.claims[runID] = c
	}
	return nil
}
