package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-billgate/core"
	"github.com/goliatone/go-billgate/status"
)

// currentTokenSlot is the only row of gateway_tokens.
const currentTokenSlot = "current"

type tokenRecord struct {
	bun.BaseModel `bun:"table:gateway_tokens,alias:gt"`

	ID              string    `bun:"id,pk"`
	AccessToken     string    `bun:"access_token,notnull"`
	TokenType       string    `bun:"token_type,notnull"`
	IssuedAt        time.Time `bun:"issued_at,notnull"`
	ExpiresAt       time.Time `bun:"expires_at,notnull"`
	ExpiresIn       int64     `bun:"expires_in,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	MCC             string    `bun:"mcc,notnull"`
	Scope           string    `bun:"scope,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newTokenRecord(token core.Token, now time.Time) *tokenRecord {
	return &tokenRecord{
		ID:              currentTokenSlot,
		AccessToken:     token.AccessToken,
		TokenType:       token.TokenType,
		IssuedAt:        token.IssuedAt.UTC(),
		ExpiresAt:       token.ExpiresAt.UTC(),
		ExpiresIn:       token.ExpiresIn,
		DurationMinutes: token.DurationMinutes,
		MCC:             token.MCC,
		Scope:           token.Scope,
		UpdatedAt:       now.UTC(),
	}
}

func (r *tokenRecord) toDomain() core.Token {
	if r == nil {
		return core.Token{}
	}
	return core.Token{
		AccessToken:     r.AccessToken,
		TokenType:       r.TokenType,
		IssuedAt:        r.IssuedAt.UTC(),
		ExpiresAt:       r.ExpiresAt.UTC(),
		ExpiresIn:       r.ExpiresIn,
		DurationMinutes: r.DurationMinutes,
		MCC:             r.MCC,
		Scope:           r.Scope,
	}
}

type pendingTransactionRecord struct {
	bun.BaseModel `bun:"table:gateway_pending_transactions,alias:gpt"`

	ID             string      `bun:"id,pk"`
	TransactionID  string      `bun:"transaction_id,notnull"`
	SessionID      string      `bun:"session_id,notnull"`
	ProductCode    string      `bun:"product_code,notnull"`
	CustomerNumber string      `bun:"customer_number,notnull"`
	MCC            string      `bun:"mcc,notnull"`
	Bills          []core.Bill `bun:"bills,type:jsonb,notnull"`
	AdminTotal     int64       `bun:"admin_total,notnull"`
	TotalAmount    int64       `bun:"total_amount,notnull"`
	State          string      `bun:"state,notnull"`
	StatusCode     string      `bun:"status_code,notnull"`
	ReceiptRef     string      `bun:"receipt_ref,notnull"`
	Message        string      `bun:"message,notnull"`
	ResolvedBy     string      `bun:"resolved_by,notnull"`
	CreatedAt      time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *pendingTransactionRecord) apply(entry core.LedgerEntry, now time.Time) {
	r.TransactionID = entry.TransactionID
	r.SessionID = entry.SessionID
	r.ProductCode = entry.ProductCode
	r.CustomerNumber = entry.CustomerNumber
	r.MCC = entry.MCC
	r.Bills = append([]core.Bill{}, entry.Bills...)
	r.AdminTotal = entry.AdminTotal
	r.TotalAmount = entry.TotalAmount
	r.State = string(entry.State)
	r.StatusCode = entry.StatusCode
	r.ReceiptRef = entry.ReceiptRef
	r.Message = entry.Message
	r.ResolvedBy = string(entry.ResolvedBy)
	r.UpdatedAt = now.UTC()
}

func (r *pendingTransactionRecord) toDomain() core.LedgerEntry {
	if r == nil {
		return core.LedgerEntry{}
	}
	return core.LedgerEntry{
		ID:             r.ID,
		TransactionID:  r.TransactionID,
		SessionID:      r.SessionID,
		ProductCode:    r.ProductCode,
		CustomerNumber: r.CustomerNumber,
		MCC:            r.MCC,
		Bills:          append([]core.Bill{}, r.Bills...),
		AdminTotal:     r.AdminTotal,
		TotalAmount:    r.TotalAmount,
		State:          core.OperationState(r.State),
		StatusCode:     r.StatusCode,
		ReceiptRef:     r.ReceiptRef,
		Message:        r.Message,
		ResolvedBy:     status.Operation(r.ResolvedBy),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}
