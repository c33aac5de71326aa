package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryLedger is the process-local TransactionLedger. Entries are lost on
// restart; use the sql store when pending payments must survive one.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]LedgerEntry
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: map[string]LedgerEntry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLedger) Get(_ context.Context, transactionID string) (LedgerEntry, error) {
	if l == nil {
		return LedgerEntry{}, ErrLedgerEntryNotFound
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[strings.TrimSpace(transactionID)]
	if !ok {
		return LedgerEntry{}, ErrLedgerEntryNotFound
	}
	return cloneLedgerEntry(entry), nil
}

// Record upserts entry by transaction id. CreatedAt of an existing entry is
// preserved.
func (l *MemoryLedger) Record(_ context.Context, entry LedgerEntry) (LedgerEntry, error) {
	if l == nil {
		return LedgerEntry{}, NewBadInputError("ledger is not configured")
	}
	entry.TransactionID = strings.TrimSpace(entry.TransactionID)
	if entry.TransactionID == "" {
		return LedgerEntry{}, NewValidationError("transaction_id", "transaction id is required")
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[entry.TransactionID]; ok {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	}
	if entry.ID == "" {
		entry.ID = entry.TransactionID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	stored := cloneLedgerEntry(entry)
	l.entries[entry.TransactionID] = stored
	return cloneLedgerEntry(stored), nil
}

// ListByState returns entries in state, oldest first.
func (l *MemoryLedger) ListByState(_ context.Context, state OperationState, limit int) ([]LedgerEntry, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.RLock()
	entries := make([]LedgerEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		if entry.State == state {
			entries = append(entries, cloneLedgerEntry(entry))
		}
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].TransactionID < entries[j].TransactionID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func cloneLedgerEntry(entry LedgerEntry) LedgerEntry {
	cloned := entry
	cloned.Bills = append([]Bill(nil), entry.Bills...)
	return cloned
}

var (
	_ TransactionLedger = (*MemoryLedger)(nil)
	_ LedgerLister      = (*MemoryLedger)(nil)
)
