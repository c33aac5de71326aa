package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-billgate/command"
	"github.com/goliatone/go-billgate/core"
	"github.com/goliatone/go-billgate/query"
)

const maxRequestBodyBytes = 64 << 10

// Gateway is everything the HTTP surface calls. *core.Gateway satisfies it.
type Gateway interface {
	command.TransactionService
	query.TokenReader
	query.BillReader
	query.LedgerReader
}

// API exposes the gateway over HTTP with the {code, message, data, timestamp}
// envelope.
type API struct {
	serviceName string
	allowlist   *Allowlist
	logger      core.Logger
	now         func() time.Time

	payment     *command.PaymentCommand
	advice      *command.AdviceCommand
	reversal    *command.ReversalCommand
	checkStatus *command.CheckStatusCommand

	token   *query.TokenQuery
	inquiry *query.InquiryQuery
	balance *query.BalanceQuery
	pending *query.PendingTransactionsQuery
	ledger  *query.LedgerEntryQuery
}

type Option func(*API)

func WithLogger(logger core.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAllowedIPs restricts /api routes to the given client addresses. An
// empty list allows every caller.
func WithAllowedIPs(ips []string) Option {
	return func(a *API) {
		a.allowlist = NewAllowlist(ips)
	}
}

func WithServiceName(name string) Option {
	return func(a *API) {
		if name = strings.TrimSpace(name); name != "" {
			a.serviceName = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAPI(gateway Gateway, opts ...Option) *API {
	api := &API{
		serviceName: "billgate",
		allowlist:   NewAllowlist(nil),
		now:         time.Now,

		payment:     command.NewPaymentCommand(gateway),
		advice:      command.NewAdviceCommand(gateway),
		reversal:    command.NewReversalCommand(gateway),
		checkStatus: command.NewCheckStatusCommand(gateway),

		token:   query.NewTokenQuery(gateway),
		inquiry: query.NewInquiryQuery(gateway),
		balance: query.NewBalanceQuery(gateway),
		pending: query.NewPendingTransactionsQuery(gateway),
		ledger:  query.NewLedgerEntryQuery(gateway),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	api.logger = glog.Ensure(api.logger)
	return api
}

// Routes builds the router. /health stays outside the allowlist so probes
// keep working.
func (a *API) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(a.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/health", a.health)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeEnvelope(w, http.StatusNotFound, Envelope{Code: CodeNotFound, Message: "Not Found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.writeEnvelope(w, http.StatusMethodNotAllowed, Envelope{Code: CodeBadRequest, Message: "Method Not Allowed"})
	})
	a.AppendRoutes(router)
	return router
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(a.allowlistMiddleware)
		r.Get("/token", a.getToken)
		r.Post("/inquiry", a.postInquiry)
		r.Post("/payment", a.postPayment)
		r.Post("/advice", a.postAdvice)
		r.Post("/reversal", a.postReversal)
		r.Get("/status/{transactionID}", a.getStatus)
		r.Get("/balance", a.getBalance)
		r.Get("/pending", a.getPending)
		r.Get("/ledger/{transactionID}", a.getLedgerEntry)
	})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeSuccess(w, http.StatusOK, "Service is healthy", map[string]any{
		"service": a.serviceName,
		"status":  "up",
	})
}

func (a *API) getToken(w http.ResponseWriter, r *http.Request) {
	req := core.TokenRequest{MCC: strings.TrimSpace(r.URL.Query().Get("mcc"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("duration")); raw != "" {
		duration, err := strconv.Atoi(raw)
		if err != nil {
			a.writeFailure(w, r, core.NewValidationError("duration", "duration must be a whole number of minutes"), nil)
			return
		}
		req.DurationMinutes = duration
	}
	token, err := a.token.Query(r.Context(), query.TokenMessage{Request: req})
	if err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	a.writeSuccess(w, http.StatusOK, "Token retrieved successfully", token)
}

func (a *API) postInquiry(w http.ResponseWriter, r *http.Request) {
	var req core.SimpleInquiryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	result, err := a.inquiry.Query(r.Context(), query.InquiryMessage{Request: req})
	a.writeOutcome(w, r, result.Outcome, result, err)
}

func (a *API) postPayment(w http.ResponseWriter, r *http.Request) {
	var req core.SimplePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	result, err := execute[core.PaymentResult](r.Context(), a.payment, command.PaymentMessage{Request: req})
	a.writeOutcome(w, r, result.Outcome, result, err)
}

func (a *API) postAdvice(w http.ResponseWriter, r *http.Request) {
	var req core.SimpleAdviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	result, err := execute[core.AdviceResult](r.Context(), a.advice, command.AdviceMessage{Request: req})
	a.writeOutcome(w, r, result.Outcome, result, err)
}

func (a *API) postReversal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	result, err := execute[core.ReversalResult](r.Context(), a.reversal, command.ReversalMessage{TransactionID: req.TransactionID})
	a.writeOutcome(w, r, result.Outcome, result, err)
}

func (a *API) getStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	result, err := execute[core.StatusResult](r.Context(), a.checkStatus, command.CheckStatusMessage{TransactionID: transactionID})
	a.writeOutcome(w, r, result.Outcome, result, err)
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
	req := core.BalanceRequest{ProductCode: strings.TrimSpace(r.URL.Query().Get("product_code"))}
	result, err := a.balance.Query(r.Context(), query.BalanceMessage{Request: req})
	a.writeOutcome(w, r, result.Outcome, result, err)
}

func (a *API) getPending(w http.ResponseWriter, r *http.Request) {
	msg := query.PendingTransactionsMessage{}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			a.writeFailure(w, r, core.NewValidationError("limit", "limit must be a whole number"), nil)
			return
		}
		msg.Limit = limit
	}
	entries, err := a.pending.Query(r.Context(), msg)
	if err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	a.writeSuccess(w, http.StatusOK, "Pending transactions", entries)
}

func (a *API) getLedgerEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := a.ledger.Query(r.Context(), query.LedgerEntryMessage{TransactionID: chi.URLParam(r, "transactionID")})
	if err != nil {
		a.writeFailure(w, r, err, nil)
		return
	}
	a.writeSuccess(w, http.StatusOK, "Ledger entry", entry)
}

// writeOutcome renders an operation result. A payment awaiting confirmation
// is accepted, not successful, and says so through 202.
func (a *API) writeOutcome(w http.ResponseWriter, r *http.Request, outcome core.TransactionOutcome, data any, err error) {
	if err != nil {
		if outcome.State == "" {
			data = nil
		}
		a.writeFailure(w, r, err, data)
		return
	}
	status := http.StatusOK
	if outcome.State == core.StatePendingConfirmation {
		status = http.StatusAccepted
	}
	a.writeSuccess(w, status, outcome.Message, data)
}

func execute[R any, M interface{ Type() string }](ctx context.Context, cmd gocmd.Commander[M], msg M) (R, error) {
	collector := gocmd.NewResult[R]()
	err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg)
	result, _ := collector.Load()
	return result, err
}
