package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultClaimTTL = 2 * time.Minute
const defaultClaimMaxEntries = 8192

// MemoryClaimLedger holds short-lived claims on transaction ids. A claim
// lapses after its ttl even if it is never released.
type MemoryClaimLedger struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	maxEntries int
	entries    map[string]time.Time
	Now        func() time.Time
}

func NewMemoryClaimLedger(defaultTTL time.Duration) *MemoryClaimLedger {
	return NewMemoryClaimLedgerWithLimits(defaultTTL, defaultClaimMaxEntries)
}

func NewMemoryClaimLedgerWithLimits(defaultTTL time.Duration, maxEntries int) *MemoryClaimLedger {
	if defaultTTL <= 0 {
		defaultTTL = defaultClaimTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultClaimMaxEntries
	}
	return &MemoryClaimLedger{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		entries:    map[string]time.Time{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Claim reports whether key was free and is now held by the caller.
func (l *MemoryClaimLedger) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("core: claim ledger is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("core: claim key is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneExpiredLocked(now)
	if expiresAt, ok := l.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.enforceCapacityLocked(1)
	l.entries[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryClaimLedger) Release(_ context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("core: claim ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, strings.TrimSpace(key))
	return nil
}

func (l *MemoryClaimLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryClaimLedger) pruneExpiredLocked(now time.Time) {
	for key, expiresAt := range l.entries {
		if !now.Before(expiresAt) {
			delete(l.entries, key)
		}
	}
}

// enforceCapacityLocked drops the claims closest to expiry until incoming
// claims fit.
func (l *MemoryClaimLedger) enforceCapacityLocked(incoming int) {
	target := l.maxEntries - incoming
	if target < 0 {
		target = 0
	}
	for len(l.entries) > target {
		var oldestKey string
		var oldestExpiry time.Time
		for key, expiry := range l.entries {
			if oldestKey == "" || expiry.Before(oldestExpiry) {
				oldestKey = key
				oldestExpiry = expiry
			}
		}
		delete(l.entries, oldestKey)
	}
}

var _ TransactionClaims = (*MemoryClaimLedger)(nil)
