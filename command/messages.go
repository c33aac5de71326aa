package command

import (
	"strings"

	"github.com/goliatone/go-billgate/core"
)

const (
	TypePayment     = "billgate.command.payment"
	TypeAdvice      = "billgate.command.advice"
	TypeReversal    = "billgate.command.reversal"
	TypeCheckStatus = "billgate.command.status.check"
)

type PaymentMessage struct {
	Request core.SimplePaymentRequest
}

func (PaymentMessage) Type() string { return TypePayment }

func (m PaymentMessage) Validate() error {
	if strings.TrimSpace(m.Request.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	if strings.TrimSpace(m.Request.ProductCode) == "" {
		return commandValidationError("product_code", "product code is required")
	}
	if strings.TrimSpace(m.Request.CustomerNumber) == "" {
		return commandValidationError("customer_number", "customer number is required")
	}
	if len(m.Request.Bills) == 0 {
		return commandValidationError("bills", "at least one bill is required")
	}
	return nil
}

type AdviceMessage struct {
	Request core.SimpleAdviceRequest
}

func (AdviceMessage) Type() string { return TypeAdvice }

func (m AdviceMessage) Validate() error {
	if strings.TrimSpace(m.Request.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

type ReversalMessage struct {
	TransactionID string
}

func (ReversalMessage) Type() string { return TypeReversal }

func (m ReversalMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

// CheckStatusMessage asks the processor for a transaction state. A definite
// answer resolves the matching ledger entry, so it is a command.
type CheckStatusMessage struct {
	TransactionID string
}

func (CheckStatusMessage) Type() string { return TypeCheckStatus }

func (m CheckStatusMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}
