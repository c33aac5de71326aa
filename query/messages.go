package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-billgate/core"
)

const (
	TypeToken               = "billgate.query.token"
	TypeInquiry             = "billgate.query.inquiry"
	TypeBalance             = "billgate.query.balance"
	TypePendingTransactions = "billgate.query.pending.list"
	TypeLedgerEntry         = "billgate.query.ledger.get"
)

type TokenMessage struct {
	Request core.TokenRequest
}

func (TokenMessage) Type() string { return TypeToken }

func (m TokenMessage) Validate() error {
	duration := m.Request.DurationMinutes
	if duration != 0 && (duration < core.MinTokenDurationMinutes || duration > core.MaxTokenDurationMinutes) {
		return queryValidationError("duration", fmt.Sprintf(
			"duration must be within %d..%d minutes",
			core.MinTokenDurationMinutes,
			core.MaxTokenDurationMinutes,
		))
	}
	return nil
}

type InquiryMessage struct {
	Request core.SimpleInquiryRequest
}

func (InquiryMessage) Type() string { return TypeInquiry }

func (m InquiryMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProductCode) == "" {
		return queryValidationError("product_code", "product code is required")
	}
	if strings.TrimSpace(m.Request.CustomerNumber) == "" {
		return queryValidationError("customer_number", "customer number is required")
	}
	return nil
}

type BalanceMessage struct {
	Request core.BalanceRequest
}

func (BalanceMessage) Type() string { return TypeBalance }

func (m BalanceMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProductCode) == "" {
		return queryValidationError("product_code", "product code is required")
	}
	return nil
}

type PendingTransactionsMessage struct {
	Limit int
}

func (PendingTransactionsMessage) Type() string { return TypePendingTransactions }

func (m PendingTransactionsMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type LedgerEntryMessage struct {
	TransactionID string
}

func (LedgerEntryMessage) Type() string { return TypeLedgerEntry }

func (m LedgerEntryMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return queryValidationError("transaction_id", "transaction id is required")
	}
	return nil
}
