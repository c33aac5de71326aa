package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-billgate/status"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// TokenRequest names the parameters a token is issued under. Zero values
// resolve to the configured defaults.
type TokenRequest struct {
	DurationMinutes int
	MCC             string
}

type Token struct {
	AccessToken     string    `json:"access_token"`
	TokenType       string    `json:"token_type"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	ExpiresIn       int64     `json:"expires_in"`
	DurationMinutes int       `json:"duration_minutes"`
	MCC             string    `json:"mcc,omitempty"`
	Scope           string    `json:"scope,omitempty"`
}

// ValidAt reports whether the token can still be used at now when it must
// outlive now by at least buffer.
func (t Token) ValidAt(now time.Time, buffer time.Duration) bool {
	if strings.TrimSpace(t.AccessToken) == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(buffer).Before(t.ExpiresAt)
}

// Matches reports whether the token was issued under req. req must already
// be resolved against defaults.
func (t Token) Matches(req TokenRequest) bool {
	return t.DurationMinutes == req.DurationMinutes &&
		strings.TrimSpace(t.MCC) == strings.TrimSpace(req.MCC)
}

// Authorization renders the Authorization header value for the token.
func (t Token) Authorization() string {
	tokenType := strings.TrimSpace(t.TokenType)
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + strings.TrimSpace(t.AccessToken)
}

type TokenProvider interface {
	GetToken(ctx context.Context, req TokenRequest) (Token, error)
	Invalidate(ctx context.Context, accessToken string) error
}

// TokenStore is the durable single-slot home of the current token.
type TokenStore interface {
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, token Token) error
	Clear(ctx context.Context) error
}

// SignedPayload is the canonical body of one outbound call together with the
// timestamp and signature computed over it.
type SignedPayload struct {
	Body      []byte
	Timestamp string
	Signature string
}

type TransactionSigner interface {
	SignTransaction(accessToken string, payload any) (SignedPayload, error)
}

type OperationState string

const (
	StateCreated             OperationState = "Created"
	StateInquired            OperationState = "Inquired"
	StatePaid                OperationState = "Paid"
	StatePendingConfirmation OperationState = "PendingConfirmation"
	StateConfirmed           OperationState = "Confirmed"
	StateReversed            OperationState = "Reversed"
	StateFailed              OperationState = "Failed"
)

// TransactionOutcome is the classified verdict of one processor round trip.
type TransactionOutcome struct {
	Operation        status.Operation `json:"operation"`
	StatusCode       string           `json:"status_code,omitempty"`
	Severity         status.Severity  `json:"severity"`
	State            OperationState   `json:"state"`
	FundsHeld        bool             `json:"funds_held"`
	UseAdvice        bool             `json:"use_advice"`
	Action           status.Action    `json:"action"`
	ActionDetail     string           `json:"action_detail,omitempty"`
	Message          string           `json:"message"`
	ProcessorMessage string           `json:"processor_message,omitempty"`
	Retryable        bool             `json:"retryable"`
	Ambiguous        bool             `json:"ambiguous"`
}

type Bill struct {
	Period int   `json:"period"`
	Amount int64 `json:"amount"`
}

func TotalOf(bills []Bill) int64 {
	var total int64
	for _, bill := range bills {
		total += bill.Amount
	}
	return total
}

type SimpleInquiryRequest struct {
	ProductCode    string `json:"product_code"`
	CustomerNumber string `json:"customer_number"`
	MCC            string `json:"mcc,omitempty"`
}

type InquiryResult struct {
	Outcome        TransactionOutcome `json:"outcome"`
	ClientID       string             `json:"client_id,omitempty"`
	SessionID      string             `json:"session_id,omitempty"`
	ProductCode    string             `json:"product_code,omitempty"`
	ProductName    string             `json:"product_name,omitempty"`
	CustomerNumber string             `json:"customer_number,omitempty"`
	Bills          []Bill             `json:"bills,omitempty"`
	TotalAmount    int64              `json:"total_amount"`
}

type SimplePaymentRequest struct {
	TransactionID  string `json:"transaction_id,omitempty"`
	SessionID      string `json:"session_id"`
	ProductCode    string `json:"product_code"`
	CustomerNumber string `json:"customer_number"`
	Bills          []Bill `json:"bills"`
	AdminTotal     int64  `json:"admin_total"`
	MCC            string `json:"mcc,omitempty"`
}

type PaymentResult struct {
	Outcome       TransactionOutcome `json:"outcome"`
	TransactionID string             `json:"transaction_id"`
	SessionID     string             `json:"session_id"`
	ReceiptRef    string             `json:"receipt_ref,omitempty"`
	ProductName   string             `json:"product_name,omitempty"`
	Replayed      bool               `json:"replayed"`
}

// SimpleAdviceRequest confirms a prior payment. Fields left empty are filled
// from the ledger entry of TransactionID when one exists.
type SimpleAdviceRequest struct {
	TransactionID  string `json:"transaction_id"`
	SessionID      string `json:"session_id,omitempty"`
	ProductCode    string `json:"product_code,omitempty"`
	CustomerNumber string `json:"customer_number,omitempty"`
	Bills          []Bill `json:"bills,omitempty"`
	AdminTotal     int64  `json:"admin_total,omitempty"`
	MCC            string `json:"mcc,omitempty"`
}

type AdviceResult struct {
	Outcome       TransactionOutcome `json:"outcome"`
	TransactionID string             `json:"transaction_id"`
	ReceiptRef    string             `json:"receipt_ref,omitempty"`
	ProductName   string             `json:"product_name,omitempty"`
	Replayed      bool               `json:"replayed"`
}

type ReversalResult struct {
	Outcome       TransactionOutcome `json:"outcome"`
	TransactionID string             `json:"transaction_id"`
}

type StatusResult struct {
	Outcome       TransactionOutcome `json:"outcome"`
	TransactionID string             `json:"transaction_id"`
	LedgerState   OperationState     `json:"ledger_state,omitempty"`
	ReceiptRef    string             `json:"receipt_ref,omitempty"`
}

type BalanceRequest struct {
	ProductCode string `json:"product_code"`
}

type BalanceResult struct {
	Outcome  TransactionOutcome `json:"outcome"`
	ClientID string             `json:"client_id,omitempty"`
	Balance  int64              `json:"balance"`
}

// LedgerEntry records a payment the gateway sent, from its first reply until
// advice or a status check settles it.
type LedgerEntry struct {
	ID             string         `json:"id"`
	TransactionID  string         `json:"transaction_id"`
	SessionID      string         `json:"session_id,omitempty"`
	ProductCode    string         `json:"product_code,omitempty"`
	CustomerNumber string         `json:"customer_number,omitempty"`
	MCC            string         `json:"mcc,omitempty"`
	Bills          []Bill         `json:"bills,omitempty"`
	AdminTotal     int64          `json:"admin_total"`
	TotalAmount    int64          `json:"total_amount"`
	State          OperationState `json:"state"`
	StatusCode     string         `json:"status_code,omitempty"`
	ReceiptRef     string         `json:"receipt_ref,omitempty"`
	Message        string         `json:"message,omitempty"`
	// ResolvedBy names the operation whose reply last set State.
	ResolvedBy status.Operation `json:"resolved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionLedger interface {
	Get(ctx context.Context, transactionID string) (LedgerEntry, error)
	Record(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
}

// TransactionClaims reserves a transaction id while one payment for it is
// being sent.
type TransactionClaims interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LedgerLister is implemented by ledgers that can enumerate entries by state.
type LedgerLister interface {
	ListByState(ctx context.Context, state OperationState, limit int) ([]LedgerEntry, error)
}

// SessionBinding ties an inquiry session to the bill it was issued for.
type SessionBinding struct {
	SessionID      string
	ProductCode    string
	CustomerNumber string
	TotalAmount    int64
	CreatedAt      time.Time
}

type SessionRegistry interface {
	Remember(ctx context.Context, binding SessionBinding) error
	Lookup(ctx context.Context, sessionID string) (SessionBinding, error)
}
