package query

import (
	"context"

	"github.com/goliatone/go-billgate/core"
)

type TokenReader interface {
	GetToken(ctx context.Context, req core.TokenRequest) (core.Token, error)
}

// BillReader covers processor reads that move no money.
type BillReader interface {
	Inquiry(ctx context.Context, req core.SimpleInquiryRequest) (core.InquiryResult, error)
	Balance(ctx context.Context, req core.BalanceRequest) (core.BalanceResult, error)
}

type LedgerReader interface {
	PendingTransactions(ctx context.Context, limit int) ([]core.LedgerEntry, error)
	LedgerEntry(ctx context.Context, transactionID string) (core.LedgerEntry, error)
}

type TokenQuery struct {
	reader TokenReader
}

func NewTokenQuery(reader TokenReader) *TokenQuery {
	return &TokenQuery{reader: reader}
}

func (q *TokenQuery) Query(ctx context.Context, msg TokenMessage) (core.Token, error) {
	if q == nil || q.reader == nil {
		return core.Token{}, queryDependencyError("query: token reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Token{}, err
	}
	return q.reader.GetToken(ctx, msg.Request)
}

// InquiryQuery returns the classified result even when the processor
// rejected the inquiry; the error carries the rejection.
type InquiryQuery struct {
	reader BillReader
}

func NewInquiryQuery(reader BillReader) *InquiryQuery {
	return &InquiryQuery{reader: reader}
}

func (q *InquiryQuery) Query(ctx context.Context, msg InquiryMessage) (core.InquiryResult, error) {
	if q == nil || q.reader == nil {
		return core.InquiryResult{}, queryDependencyError("query: inquiry reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.InquiryResult{}, err
	}
	return q.reader.Inquiry(ctx, msg.Request)
}

type BalanceQuery struct {
	reader BillReader
}

func NewBalanceQuery(reader BillReader) *BalanceQuery {
	return &BalanceQuery{reader: reader}
}

func (q *BalanceQuery) Query(ctx context.Context, msg BalanceMessage) (core.BalanceResult, error) {
	if q == nil || q.reader == nil {
		return core.BalanceResult{}, queryDependencyError("query: balance reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.BalanceResult{}, err
	}
	return q.reader.Balance(ctx, msg.Request)
}

type PendingTransactionsQuery struct {
	reader LedgerReader
}

func NewPendingTransactionsQuery(reader LedgerReader) *PendingTransactionsQuery {
	return &PendingTransactionsQuery{reader: reader}
}

func (q *PendingTransactionsQuery) Query(
	ctx context.Context,
	msg PendingTransactionsMessage,
) ([]core.LedgerEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: ledger reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.PendingTransactions(ctx, msg.Limit)
}

type LedgerEntryQuery struct {
	reader LedgerReader
}

func NewLedgerEntryQuery(reader LedgerReader) *LedgerEntryQuery {
	return &LedgerEntryQuery{reader: reader}
}

func (q *LedgerEntryQuery) Query(ctx context.Context, msg LedgerEntryMessage) (core.LedgerEntry, error) {
	if q == nil || q.reader == nil {
		return core.LedgerEntry{}, queryDependencyError("query: ledger reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	return q.reader.LedgerEntry(ctx, msg.TransactionID)
}
