package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-billgate/core"
)

// LedgerStore persists transactions that left the gateway without a final
// answer, and their later resolution.
type LedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*pendingTransactionRecord]
	now  func() time.Time
}

func NewLedgerStore(db *bun.DB) (*LedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*pendingTransactionRecord](db, pendingTransactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid ledger repository wiring: %w", err)
		}
	}
	return &LedgerStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *LedgerStore) Get(ctx context.Context, transactionID string) (core.LedgerEntry, error) {
	record, err := s.find(ctx, transactionID)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	if record == nil {
		return core.LedgerEntry{}, core.ErrLedgerEntryNotFound
	}
	return record.toDomain(), nil
}

func (s *LedgerStore) Record(ctx context.Context, entry core.LedgerEntry) (core.LedgerEntry, error) {
	entry.TransactionID = strings.TrimSpace(entry.TransactionID)
	if entry.TransactionID == "" {
		return core.LedgerEntry{}, fmt.Errorf("sqlstore: transaction id is required")
	}
	existing, err := s.find(ctx, entry.TransactionID)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	now := s.now().UTC()

	if existing == nil {
		record := &pendingTransactionRecord{ID: uuid.NewString(), CreatedAt: now}
		record.apply(entry, now)
		created, createErr := s.repo.Create(ctx, record)
		if createErr != nil {
			return core.LedgerEntry{}, createErr
		}
		return created.toDomain(), nil
	}

	existing.apply(entry, now)
	updated, err := s.repo.Update(ctx, existing, repository.UpdateByID(existing.ID))
	if err != nil {
		return core.LedgerEntry{}, err
	}
	return updated.toDomain(), nil
}

// ListByState returns entries in state, oldest first.
func (s *LedgerStore) ListByState(ctx context.Context, state core.OperationState, limit int) ([]core.LedgerEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("state", "=", string(state)),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	entries := make([]core.LedgerEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}

func (s *LedgerStore) find(ctx context.Context, transactionID string) (*pendingTransactionRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("transaction_id", "=", strings.TrimSpace(transactionID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}
