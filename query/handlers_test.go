package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-billgate/core"
)

func TestTokenQuery_QueryDelegates(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	reader := stubGatewayReader{
		tokenFn: func(_ context.Context, req core.TokenRequest) (core.Token, error) {
			if req.DurationMinutes != 30 || req.MCC != "6012" {
				t.Fatalf("unexpected token request: %#v", req)
			}
			return core.Token{AccessToken: "tok-1", IssuedAt: issued, ExpiresAt: issued.Add(30 * time.Minute)}, nil
		},
	}

	token, err := NewTokenQuery(reader).Query(context.Background(), TokenMessage{
		Request: core.TokenRequest{DurationMinutes: 30, MCC: "6012"},
	})
	if err != nil {
		t.Fatalf("query token: %v", err)
	}
	if token.AccessToken != "tok-1" {
		t.Fatalf("expected tok-1, got %q", token.AccessToken)
	}
}

func TestTokenQuery_RejectsDurationOutOfRange(t *testing.T) {
	reader := stubGatewayReader{
		tokenFn: func(context.Context, core.TokenRequest) (core.Token, error) {
			t.Fatalf("reader must not be called")
			return core.Token{}, nil
		},
	}
	for _, duration := range []int{-1, 1441} {
		_, err := NewTokenQuery(reader).Query(context.Background(), TokenMessage{
			Request: core.TokenRequest{DurationMinutes: duration},
		})
		assertValidationError(t, err)
	}
}

func TestInquiryQuery_ReturnsResultWithRejection(t *testing.T) {
	rejection := core.NewProcessorError("inquiry", "0014", "Nomor pelanggan tidak ditemukan", "")
	reader := stubGatewayReader{
		inquiryFn: func(_ context.Context, req core.SimpleInquiryRequest) (core.InquiryResult, error) {
			return core.InquiryResult{
				CustomerNumber: req.CustomerNumber,
				Outcome:        core.TransactionOutcome{StatusCode: "0014", State: core.StateFailed},
			}, rejection
		},
	}

	result, err := NewInquiryQuery(reader).Query(context.Background(), InquiryMessage{
		Request: core.SimpleInquiryRequest{ProductCode: "1001", CustomerNumber: "512345678901"},
	})
	if !core.IsProcessorError(err) {
		t.Fatalf("expected processor error, got %v", err)
	}
	if result.Outcome.StatusCode != "0014" || result.CustomerNumber != "512345678901" {
		t.Fatalf("expected classified result alongside the error, got %#v", result)
	}
}

func TestBalanceQuery_QueryDelegates(t *testing.T) {
	reader := stubGatewayReader{
		balanceFn: func(_ context.Context, req core.BalanceRequest) (core.BalanceResult, error) {
			if req.ProductCode != "1001" {
				t.Fatalf("unexpected product code %q", req.ProductCode)
			}
			return core.BalanceResult{Balance: 1500000}, nil
		},
	}
	result, err := NewBalanceQuery(reader).Query(context.Background(), BalanceMessage{
		Request: core.BalanceRequest{ProductCode: "1001"},
	})
	if err != nil {
		t.Fatalf("query balance: %v", err)
	}
	if result.Balance != 1500000 {
		t.Fatalf("expected balance 1500000, got %d", result.Balance)
	}

	_, err = NewBalanceQuery(reader).Query(context.Background(), BalanceMessage{})
	assertValidationError(t, err)
}

func TestLedgerQueries_Delegate(t *testing.T) {
	reader := stubGatewayReader{
		pendingFn: func(_ context.Context, limit int) ([]core.LedgerEntry, error) {
			if limit != 25 {
				t.Fatalf("expected limit 25, got %d", limit)
			}
			return []core.LedgerEntry{{TransactionID: "tx-1", State: core.StatePendingConfirmation}}, nil
		},
		ledgerFn: func(_ context.Context, transactionID string) (core.LedgerEntry, error) {
			if transactionID == "tx-missing" {
				return core.LedgerEntry{}, core.ErrLedgerEntryNotFound
			}
			return core.LedgerEntry{TransactionID: transactionID, State: core.StateConfirmed}, nil
		},
	}

	pending, err := NewPendingTransactionsQuery(reader).Query(context.Background(), PendingTransactionsMessage{Limit: 25})
	if err != nil {
		t.Fatalf("query pending: %v", err)
	}
	if len(pending) != 1 || pending[0].TransactionID != "tx-1" {
		t.Fatalf("unexpected pending entries: %#v", pending)
	}

	entry, err := NewLedgerEntryQuery(reader).Query(context.Background(), LedgerEntryMessage{TransactionID: "tx-2"})
	if err != nil {
		t.Fatalf("query ledger entry: %v", err)
	}
	if entry.State != core.StateConfirmed {
		t.Fatalf("expected confirmed entry, got %#v", entry)
	}
	if _, err := NewLedgerEntryQuery(reader).Query(context.Background(), LedgerEntryMessage{TransactionID: "tx-missing"}); !errors.Is(err, core.ErrLedgerEntryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = NewPendingTransactionsQuery(reader).Query(context.Background(), PendingTransactionsMessage{Limit: -1})
	assertValidationError(t, err)
}

func TestQueries_NilReaderReturnsRichError(t *testing.T) {
	var qry *InquiryQuery
	_, err := qry.Query(context.Background(), InquiryMessage{})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if _, err := NewLedgerEntryQuery(nil).Query(context.Background(), LedgerEntryMessage{TransactionID: "tx-1"}); err == nil {
		t.Fatalf("expected dependency error for nil ledger reader")
	}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T (%v)", err, err)
	}
	if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.GatewayErrorBadInput {
		t.Fatalf("expected validation/%s, got %q/%q", core.GatewayErrorBadInput, rich.Category, rich.TextCode)
	}
}

type stubGatewayReader struct {
	tokenFn   func(context.Context, core.TokenRequest) (core.Token, error)
	inquiryFn func(context.Context, core.SimpleInquiryRequest) (core.InquiryResult, error)
	balanceFn func(context.Context, core.BalanceRequest) (core.BalanceResult, error)
	pendingFn func(context.Context, int) ([]core.LedgerEntry, error)
	ledgerFn  func(context.Context, string) (core.LedgerEntry, error)
}

func (s stubGatewayReader) GetToken(ctx context.Context, req core.TokenRequest) (core.Token, error) {
	if s.tokenFn == nil {
		return core.Token{}, fmt.Errorf("token not configured")
	}
	return s.tokenFn(ctx, req)
}

func (s stubGatewayReader) Inquiry(ctx context.Context, req core.SimpleInquiryRequest) (core.InquiryResult, error) {
	if s.inquiryFn == nil {
		return core.InquiryResult{}, fmt.Errorf("inquiry not configured")
	}
	return s.inquiryFn(ctx, req)
}

func (s stubGatewayReader) Balance(ctx context.Context, req core.BalanceRequest) (core.BalanceResult, error) {
	if s.balanceFn == nil {
		return core.BalanceResult{}, fmt.Errorf("balance not configured")
	}
	return s.balanceFn(ctx, req)
}

func (s stubGatewayReader) PendingTransactions(ctx context.Context, limit int) ([]core.LedgerEntry, error) {
	if s.pendingFn == nil {
		return nil, fmt.Errorf("pending not configured")
	}
	return s.pendingFn(ctx, limit)
}

func (s stubGatewayReader) LedgerEntry(ctx context.Context, transactionID string) (core.LedgerEntry, error) {
	if s.ledgerFn == nil {
		return core.LedgerEntry{}, fmt.Errorf("ledger not configured")
	}
	return s.ledgerFn(ctx, transactionID)
}

var (
	_ TokenReader  = stubGatewayReader{}
	_ BillReader   = stubGatewayReader{}
	_ LedgerReader = stubGatewayReader{}
)
