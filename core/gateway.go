package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-billgate/status"
)

const (
	headerAuthorization = "Authorization"
	headerTimestamp     = "X-Timestamp"
	headerSignature     = "X-Signature"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	mimeJSON            = "application/json"

	reversalTimestampLayout = "2006-01-02T15:04:05.000Z"

	maxPendingPage = 100

	minClaimTTL = 30 * time.Second
)

// Gateway sequences processor operations and turns each response into a
// classified outcome. It owns no token state; tokens come from the
// configured TokenProvider.
type Gateway struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	tokens          TokenProvider
	signer          TransactionSigner
	transport       TransportAdapter
	ledger          TransactionLedger
	claims          TransactionClaims
	sessions        SessionRegistry
	table           *status.Table
	now             func() time.Time
	newID           func() string
}

func NewGateway(cfg Config, opts ...Option) (*Gateway, error) {
	builder := defaultGatewayBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("billgate", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("billgate"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.table == nil {
		builder.table = status.Default()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	if builder.newID == nil {
		builder.newID = uuid.NewString
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if err := finalConfig.ValidateProcessor(); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	switch {
	case builder.tokens == nil:
		return nil, fmt.Errorf("core: token provider is required")
	case builder.signer == nil:
		return nil, fmt.Errorf("core: transaction signer is required")
	case builder.transport == nil:
		return nil, fmt.Errorf("core: transport adapter is required")
	}
	if builder.ledger == nil {
		builder.ledger = NewMemoryLedger()
	}
	if builder.claims == nil {
		builder.claims = NewMemoryClaimLedger(claimTTL(finalConfig))
	}
	if builder.sessions == nil {
		cacheService, err := NewSessionCacheService(finalConfig.Session.TTL())
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
		registry, err := NewCachedSessionRegistry(cacheService)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
		builder.sessions = registry
	}

	return &Gateway{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		tokens:          builder.tokens,
		signer:          builder.signer,
		transport:       builder.transport,
		ledger:          builder.ledger,
		claims:          builder.claims,
		sessions:        builder.sessions,
		table:           builder.table,
		now:             builder.now,
		newID:           builder.newID,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (g *Gateway) Config() Config {
	if g == nil {
		return Config{}
	}
	return g.config
}

func (g *Gateway) StatusTable() *status.Table {
	if g == nil {
		return status.Default()
	}
	return g.table
}

// MapError renders err through the configured error mapper.
func (g *Gateway) MapError(err error) error {
	if g == nil {
		return err
	}
	return mapBuildError(g.errorMapper, err)
}

func (g *Gateway) GetToken(ctx context.Context, req TokenRequest) (token Token, err error) {
	startedAt := time.Now()
	fields := map[string]any{"duration": req.DurationMinutes, "mcc": strings.TrimSpace(req.MCC)}
	defer func() {
		g.observeOperation(ctx, startedAt, "token", nil, err, fields)
	}()
	if g == nil || g.tokens == nil {
		return Token{}, fmt.Errorf("core: token provider is not configured")
	}
	return g.tokens.GetToken(ctx, req)
}

func (g *Gateway) Inquiry(ctx context.Context, req SimpleInquiryRequest) (result InquiryResult, err error) {
	const op = status.OperationInquiry
	startedAt := time.Now()
	req.ProductCode = strings.TrimSpace(req.ProductCode)
	req.CustomerNumber = strings.TrimSpace(req.CustomerNumber)
	fields := map[string]any{"product_code": req.ProductCode, "customer_number": req.CustomerNumber}
	defer func() {
		g.observeOperation(ctx, startedAt, string(op), &result.Outcome, err, fields)
	}()

	mcc, err := g.validateInquiry(req)
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	fields["mcc"] = mcc

	reply, err := g.exchange(ctx, exchangeCall{
		op:     op,
		method: http.MethodPost,
		url:    g.config.Processor.Endpoint(g.config.Processor.InquiryPath),
		payload: processorRequest{
			Action:         actionInquiry,
			ClientID:       g.config.Processor.ClientID,
			MCC:            mcc,
			KodeProduk:     req.ProductCode,
			NomorPelanggan: req.CustomerNumber,
			Versi:          g.config.Processor.Version,
		},
		token: TokenRequest{MCC: mcc},
	})
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}

	result.Outcome, err = g.interpret(ctx, op, reply)
	result.ClientID = ReadString(reply.fields, clientIDKeys...)
	result.SessionID = ReadString(reply.fields, sessionKeys...)
	result.ProductCode = firstNonEmpty(ReadString(reply.fields, productCodeKeys...), req.ProductCode)
	result.ProductName = ReadString(reply.fields, productNameKeys...)
	result.CustomerNumber = firstNonEmpty(ReadString(reply.fields, customerNumberKeys...), req.CustomerNumber)
	result.Bills = readBills(reply.fields)
	if total, ok := ReadInt(reply.fields, totalKeys...); ok {
		result.TotalAmount = total
	} else {
		result.TotalAmount = TotalOf(result.Bills)
	}

	if result.Outcome.State == StateInquired && result.SessionID != "" && g.sessions != nil {
		binding := SessionBinding{
			SessionID:      result.SessionID,
			ProductCode:    result.ProductCode,
			CustomerNumber: result.CustomerNumber,
			TotalAmount:    result.TotalAmount,
			CreatedAt:      g.now(),
		}
		if rememberErr := g.sessions.Remember(ctx, binding); rememberErr != nil {
			g.logWarn(ctx, "session binding not stored", map[string]any{
				"session_id": result.SessionID,
				"error":      rememberErr.Error(),
			})
		}
	}
	return result, err
}

func (g *Gateway) Payment(ctx context.Context, req SimplePaymentRequest) (result PaymentResult, err error) {
	const op = status.OperationPayment
	startedAt := time.Now()
	req = normalizePaymentRequest(req)
	if req.TransactionID == "" && g != nil && g.newID != nil {
		req.TransactionID = g.newID()
	}
	result.TransactionID = req.TransactionID
	result.SessionID = req.SessionID
	fields := map[string]any{
		"transaction_id":  req.TransactionID,
		"product_code":    req.ProductCode,
		"customer_number": req.CustomerNumber,
	}
	defer func() {
		g.observeOperation(ctx, startedAt, string(op), &result.Outcome, err, fields)
	}()

	mcc, err := g.validatePayment(ctx, req)
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	fields["mcc"] = mcc

	release, err := g.claimTransaction(ctx, req.TransactionID)
	if err != nil {
		if IsInFlight(err) {
			result.Outcome = g.pendingOutcome(op, "", "Payment is already being sent")
		} else {
			result.Outcome = g.failureOutcome(op, err)
		}
		return result, err
	}
	defer release()

	entry, found, err := g.lookupLedger(ctx, req.TransactionID)
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	if found {
		switch {
		case entry.State == StateConfirmed, entry.State == StatePaid:
			result.Outcome = g.replayOutcome(op, entry, StatePaid)
			result.ReceiptRef = entry.ReceiptRef
			result.Replayed = true
			return result, nil
		case entry.State == StatePendingConfirmation:
			err = NewInFlightError(req.TransactionID)
			result.Outcome = g.pendingOutcome(op, entry.StatusCode, "Payment is awaiting confirmation, use advice to resolve it")
			return result, err
		case entry.State == StateFailed && entry.ResolvedBy == status.OperationStatus:
			// only an advice verdict settles a payment for resending
			err = NewInFlightError(req.TransactionID)
			result.Outcome = g.pendingOutcome(op, entry.StatusCode, "Payment was reported failed by a status check, confirm it with advice before resending")
			return result, err
		}
	}

	admin := req.AdminTotal
	callCtx := context.WithoutCancel(ctx)
	reply, err := g.exchange(callCtx, exchangeCall{
		op:     op,
		method: http.MethodPost,
		url:    g.config.Processor.Endpoint(g.config.Processor.PaymentPath),
		payload: processorRequest{
			Action:         actionPayment,
			ClientID:       g.config.Processor.ClientID,
			MCC:            mcc,
			KodeProduk:     req.ProductCode,
			SessionID:      req.SessionID,
			NomorPelanggan: req.CustomerNumber,
			Tagihan:        toProcessorBills(req.Bills),
			TotalAdmin:     &admin,
			Versi:          g.config.Processor.Version,
		},
		token: TokenRequest{MCC: mcc},
	})
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
	} else {
		result.Outcome, err = g.interpret(callCtx, op, reply)
		result.ProductName = ReadString(reply.fields, productNameKeys...)
		if result.Outcome.State == StatePaid {
			result.ReceiptRef = ReadString(reply.fields, sessionKeys...)
		}
	}

	if state := result.Outcome.State; state == StatePendingConfirmation || state == StatePaid {
		g.recordLedger(callCtx, LedgerEntry{
			TransactionID:  req.TransactionID,
			SessionID:      req.SessionID,
			ProductCode:    req.ProductCode,
			CustomerNumber: req.CustomerNumber,
			MCC:            mcc,
			Bills:          req.Bills,
			AdminTotal:     req.AdminTotal,
			TotalAmount:    TotalOf(req.Bills) + req.AdminTotal,
			State:          state,
			StatusCode:     result.Outcome.StatusCode,
			ReceiptRef:     result.ReceiptRef,
			Message:        result.Outcome.Message,
			ResolvedBy:     op,
		})
	}
	return result, err
}

// claimTransaction holds transactionID until the returned func runs. A
// payment already holding it is reported as in flight.
func (g *Gateway) claimTransaction(ctx context.Context, transactionID string) (func(), error) {
	if g == nil || g.claims == nil {
		return func() {}, nil
	}
	claimed, err := g.claims.Claim(ctx, transactionID, claimTTL(g.config))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, NewInFlightError(transactionID)
	}
	return func() {
		if releaseErr := g.claims.Release(context.WithoutCancel(ctx), transactionID); releaseErr != nil {
			g.logWarn(ctx, "transaction claim not released", map[string]any{
				"transaction_id": transactionID,
				"error":          releaseErr.Error(),
			})
		}
	}, nil
}

// claimTTL outlasts one send including its auth retry.
func claimTTL(cfg Config) time.Duration {
	ttl := 2*cfg.Processor.Timeout() + 10*time.Second
	if ttl < minClaimTTL {
		ttl = minClaimTTL
	}
	return ttl
}

// Advice confirms a payment. A transaction already confirmed is answered
// from the ledger without calling the processor.
func (g *Gateway) Advice(ctx context.Context, req SimpleAdviceRequest) (result AdviceResult, err error) {
	const op = status.OperationAdvice
	startedAt := time.Now()
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	result.TransactionID = req.TransactionID
	fields := map[string]any{"transaction_id": req.TransactionID}
	defer func() {
		g.observeOperation(ctx, startedAt, string(op), &result.Outcome, err, fields)
	}()

	if req.TransactionID == "" {
		err = NewValidationError("transaction_id", "transaction id is required")
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	entry, found, err := g.lookupLedger(ctx, req.TransactionID)
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	if found && entry.State == StateConfirmed {
		result.Outcome = g.replayOutcome(op, entry, StateConfirmed)
		result.ReceiptRef = entry.ReceiptRef
		result.Replayed = true
		return result, nil
	}
	if found {
		req = mergeAdviceRequest(req, entry)
	}
	fields["product_code"] = req.ProductCode
	fields["customer_number"] = req.CustomerNumber

	mcc, err := g.validateAdvice(req)
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	fields["mcc"] = mcc

	admin := req.AdminTotal
	callCtx := context.WithoutCancel(ctx)
	reply, err := g.exchange(callCtx, exchangeCall{
		op:     op,
		method: http.MethodPost,
		url:    g.config.Processor.Endpoint(g.config.Processor.AdvicePath),
		payload: processorRequest{
			Action:         actionAdvice,
			ClientID:       g.config.Processor.ClientID,
			MCC:            mcc,
			KodeProduk:     req.ProductCode,
			SessionID:      req.SessionID,
			NomorPelanggan: req.CustomerNumber,
			Tagihan:        toProcessorBills(req.Bills),
			TotalAdmin:     &admin,
			Versi:          g.config.Processor.Version,
		},
		token: TokenRequest{MCC: mcc},
	})
	sent := err == nil || IsNetworkError(err)
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
	} else {
		result.Outcome, err = g.interpret(callCtx, op, reply)
		result.ProductName = ReadString(reply.fields, productNameKeys...)
		if result.Outcome.State == StateConfirmed {
			result.ReceiptRef = ReadString(reply.fields, sessionKeys...)
		}
	}

	if sent && (found || result.Outcome.State == StateConfirmed || result.Outcome.State == StatePendingConfirmation) {
		if !found {
			entry = LedgerEntry{
				TransactionID:  req.TransactionID,
				SessionID:      req.SessionID,
				ProductCode:    req.ProductCode,
				CustomerNumber: req.CustomerNumber,
				MCC:            mcc,
				Bills:          req.Bills,
				AdminTotal:     req.AdminTotal,
				TotalAmount:    TotalOf(req.Bills) + req.AdminTotal,
			}
		}
		entry.State = result.Outcome.State
		entry.StatusCode = result.Outcome.StatusCode
		entry.Message = result.Outcome.Message
		entry.ResolvedBy = op
		if result.ReceiptRef != "" {
			entry.ReceiptRef = result.ReceiptRef
		}
		g.recordLedger(callCtx, entry)
	}
	return result, err
}

func (g *Gateway) Reversal(ctx context.Context, transactionID string) (result ReversalResult, err error) {
	const op = status.OperationReversal
	startedAt := time.Now()
	transactionID = strings.TrimSpace(transactionID)
	result.TransactionID = transactionID
	fields := map[string]any{"transaction_id": transactionID}
	defer func() {
		g.observeOperation(ctx, startedAt, string(op), &result.Outcome, err, fields)
	}()

	if transactionID == "" {
		err = NewValidationError("transaction_id", "transaction id is required")
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}

	callCtx := context.WithoutCancel(ctx)
	reply, err := g.exchange(callCtx, exchangeCall{
		op:     op,
		method: http.MethodPost,
		url:    g.config.Processor.Endpoint(g.config.Processor.ReversalPath),
		payload: reversalRequest{
			OriginalTransactionID: transactionID,
			Timestamp:             g.now().UTC().Format(reversalTimestampLayout),
			Channel:               g.config.Processor.Channel,
		},
	})
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	result.Outcome, err = g.interpret(callCtx, op, reply)

	if result.Outcome.State == StateReversed {
		if entry, found, lookupErr := g.lookupLedger(callCtx, transactionID); lookupErr == nil && found {
			entry.State = StateReversed
			entry.StatusCode = result.Outcome.StatusCode
			entry.Message = result.Outcome.Message
			entry.ResolvedBy = op
			g.recordLedger(callCtx, entry)
		}
	}
	return result, err
}

// CheckStatus asks the processor for the state of a transaction. A pending
// ledger entry is resolved only by a code that is final for a payment
// awaiting confirmation, the same verdict advice would give.
func (g *Gateway) CheckStatus(ctx context.Context, transactionID string) (result StatusResult, err error) {
	const op = status.OperationStatus
	startedAt := time.Now()
	transactionID = strings.TrimSpace(transactionID)
	result.TransactionID = transactionID
	fields := map[string]any{"transaction_id": transactionID}
	defer func() {
		g.observeOperation(ctx, startedAt, string(op), &result.Outcome, err, fields)
	}()

	if transactionID == "" {
		err = NewValidationError("transaction_id", "transaction id is required")
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}

	reply, err := g.exchange(ctx, exchangeCall{
		op:     op,
		method: http.MethodGet,
		url:    g.config.Processor.Endpoint(g.config.Processor.StatusPath) + "/" + url.PathEscape(transactionID),
	})
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	result.Outcome, err = g.interpret(ctx, op, reply)
	result.ReceiptRef = ReadString(reply.fields, sessionKeys...)

	entry, found, lookupErr := g.lookupLedger(ctx, transactionID)
	if lookupErr != nil || !found {
		return result, err
	}
	if entry.State == StatePendingConfirmation {
		switch g.table.Classify(result.Outcome.StatusCode, status.OperationAdvice) {
		case status.SeveritySuccess:
			entry.State = StateConfirmed
			if result.ReceiptRef != "" {
				entry.ReceiptRef = result.ReceiptRef
			}
		case status.SeverityFailed:
			entry.State = StateFailed
		}
		if entry.State != StatePendingConfirmation {
			entry.StatusCode = result.Outcome.StatusCode
			entry.Message = result.Outcome.Message
			entry.ResolvedBy = op
			g.recordLedger(ctx, entry)
		}
	}
	result.LedgerState = entry.State
	if result.ReceiptRef == "" {
		result.ReceiptRef = entry.ReceiptRef
	}
	return result, err
}

func (g *Gateway) Balance(ctx context.Context, req BalanceRequest) (result BalanceResult, err error) {
	const op = status.OperationBalance
	startedAt := time.Now()
	req.ProductCode = strings.TrimSpace(req.ProductCode)
	fields := map[string]any{"product_code": req.ProductCode}
	defer func() {
		g.observeOperation(ctx, startedAt, string(op), &result.Outcome, err, fields)
	}()

	if req.ProductCode == "" {
		err = NewValidationError("product_code", "product code is required")
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}

	reply, err := g.exchange(ctx, exchangeCall{
		op:     op,
		method: http.MethodPost,
		url:    g.config.Processor.Endpoint(g.config.Processor.InquiryPath),
		payload: processorRequest{
			Action:     actionBalance,
			ClientID:   g.config.Processor.ClientID,
			KodeProduk: req.ProductCode,
		},
	})
	if err != nil {
		result.Outcome = g.failureOutcome(op, err)
		return result, err
	}
	result.Outcome, err = g.interpret(ctx, op, reply)
	result.ClientID = ReadString(reply.fields, clientIDKeys...)
	result.Balance, _ = ReadInt(reply.fields, balanceKeys...)
	return result, err
}

// PendingTransactions lists ledger entries still awaiting confirmation,
// oldest first. It never calls the processor.
func (g *Gateway) PendingTransactions(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if g == nil || g.ledger == nil {
		return nil, fmt.Errorf("core: ledger is not configured")
	}
	lister, ok := g.ledger.(LedgerLister)
	if !ok {
		return nil, NewBadInputError("configured ledger cannot list entries")
	}
	if limit <= 0 || limit > maxPendingPage {
		limit = maxPendingPage
	}
	return lister.ListByState(ctx, StatePendingConfirmation, limit)
}

// LedgerEntry returns the locally recorded entry for transactionID.
func (g *Gateway) LedgerEntry(ctx context.Context, transactionID string) (LedgerEntry, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return LedgerEntry{}, NewValidationError("transaction_id", "transaction id is required")
	}
	if g == nil || g.ledger == nil {
		return LedgerEntry{}, fmt.Errorf("core: ledger is not configured")
	}
	return g.ledger.Get(ctx, transactionID)
}

type exchangeCall struct {
	op      status.Operation
	method  string
	url     string
	payload any
	token   TokenRequest
}

// exchange performs one signed processor round trip. A 401 invalidates the
// token and the call is replayed once with a fresh one; a second 401 is
// returned as an auth error. Errors raised after the request left are
// network errors, everything before is not.
func (g *Gateway) exchange(ctx context.Context, call exchangeCall) (processorReply, error) {
	if g == nil || g.tokens == nil || g.signer == nil || g.transport == nil {
		return processorReply{}, fmt.Errorf("core: gateway is not configured")
	}
	for attempt := 1; ; attempt++ {
		token, err := g.tokens.GetToken(ctx, call.token)
		if err != nil {
			return processorReply{}, err
		}
		signed, err := g.signer.SignTransaction(token.AccessToken, call.payload)
		if err != nil {
			if !IsSignatureError(err) {
				err = NewSignatureError(err, "sign transaction")
			}
			return processorReply{}, err
		}

		headers := map[string]string{
			headerAuthorization: token.Authorization(),
			headerTimestamp:     signed.Timestamp,
			headerSignature:     signed.Signature,
			headerAccept:        mimeJSON,
		}
		var body []byte
		if call.payload != nil {
			headers[headerContentType] = mimeJSON
			body = signed.Body
		}
		resp, err := g.transport.Do(ctx, TransportRequest{
			Method:   call.method,
			URL:      call.url,
			Headers:  headers,
			Body:     body,
			Timeout:  g.config.Processor.Timeout(),
			Metadata: map[string]any{"operation": string(call.op), "attempt": attempt},
		})
		if err != nil {
			if errors.Is(err, ErrRequestNotSent) {
				return processorReply{}, err
			}
			return processorReply{}, NewNetworkError(err, call.op, map[string]any{"attempt": attempt})
		}

		reply := decodeReply(resp)
		if resp.StatusCode == http.StatusUnauthorized {
			authErr := NewAuthError(reply.code, reply.message, resp.StatusCode)
			if attempt > 1 {
				return reply, authErr
			}
			g.logWarn(ctx, "processor rejected token, refreshing", map[string]any{
				"operation":   string(call.op),
				"status_code": reply.code,
			})
			if invalidateErr := g.tokens.Invalidate(ctx, token.AccessToken); invalidateErr != nil {
				return reply, invalidateErr
			}
			continue
		}
		if reply.code != "" {
			return reply, nil
		}
		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return reply, NewNetworkError(nil, call.op, map[string]any{"http_status": resp.StatusCode})
		case resp.StatusCode == http.StatusForbidden:
			return reply, NewForbiddenError(reply.message, resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			message := firstNonEmpty(reply.message, fmt.Sprintf("processor rejected the request with HTTP %d", resp.StatusCode))
			return reply, NewProcessorError(call.op, "", message, status.ActionNone)
		}
		return reply, nil
	}
}

// interpret classifies a processor reply for op. The returned error is set
// whenever the outcome is not a success.
func (g *Gateway) interpret(ctx context.Context, op status.Operation, reply processorReply) (TransactionOutcome, error) {
	code := reply.code
	severity := g.table.Classify(code, op)
	outcome := TransactionOutcome{
		Operation:        op,
		StatusCode:       code,
		Severity:         severity,
		Action:           g.table.RecommendedAction(code),
		ProcessorMessage: reply.message,
		Message:          g.table.UserMessage(code),
	}
	if entry, ok := g.table.Lookup(code); ok {
		outcome.ActionDetail = entry.ActionDetail
	}
	if severity == status.SeverityUnmapped {
		g.logWarn(ctx, "processor status code not in status table", map[string]any{
			"operation":   string(op),
			"status_code": code,
			"http_status": reply.httpStatus,
		})
		if code == "" {
			outcome.Message = "Processor response carried no status code"
		}
	}

	if !movesMoney(op) {
		switch {
		case severity == status.SeveritySuccess:
			outcome.State = successState(op)
			return outcome, nil
		case op == status.OperationStatus && severity == status.SeverityPending:
			outcome.State = StatePendingConfirmation
			outcome.FundsHeld = true
			outcome.UseAdvice = true
			outcome.Action = status.ActionUseAdvice
			return outcome, nil
		case severity == status.SeverityUnmapped:
			outcome.State = StateFailed
			outcome.Retryable = true
			return outcome, NewUnmappedStatusError(op, code)
		default:
			outcome.State = StateFailed
			outcome.Retryable = true
			return outcome, NewProcessorError(op, code, outcome.Message, outcome.Action)
		}
	}

	outcome.FundsHeld = g.table.ShouldHoldFunds(code)
	outcome.UseAdvice = g.table.ShouldUseAdvice(code)
	switch {
	case severity == status.SeveritySuccess:
		outcome.State = successState(op)
		outcome.FundsHeld = false
		outcome.UseAdvice = false
		return outcome, nil
	case severity == status.SeverityUnmapped:
		markPending(&outcome)
		return outcome, NewUnmappedStatusError(op, code)
	case severity == status.SeverityPending, op == status.OperationPayment && g.table.IsAmbiguous(code):
		markPending(&outcome)
		return outcome, nil
	case op == status.OperationAdvice && severity == status.SeverityInvalid:
		markPending(&outcome)
		return outcome, NewProcessorError(op, code, outcome.Message, outcome.Action)
	default:
		outcome.State = StateFailed
		outcome.Retryable = !outcome.FundsHeld
		return outcome, NewProcessorError(op, code, outcome.Message, outcome.Action)
	}
}

// failureOutcome describes an operation that produced no classifiable reply.
// A lost response on a money-moving operation or a status check reads like a
// pending reply, never failed.
func (g *Gateway) failureOutcome(op status.Operation, err error) TransactionOutcome {
	outcome := TransactionOutcome{
		Operation: op,
		Severity:  status.SeverityFailed,
		State:     StateFailed,
		Action:    status.ActionNone,
		Message:   errorMessage(err),
		Retryable: true,
	}
	switch {
	case IsNetworkError(err):
		outcome.Ambiguous = true
		if movesMoney(op) || op == status.OperationStatus {
			outcome.Severity = status.SeverityPending
			markPending(&outcome)
			outcome.Message = "No response from processor, use advice or a status check to confirm"
		}
	case isBadInput(err):
		outcome.Severity = status.SeverityInvalid
	case IsSignatureError(err):
		outcome.Retryable = false
	}
	return outcome
}

func (g *Gateway) pendingOutcome(op status.Operation, code string, message string) TransactionOutcome {
	outcome := TransactionOutcome{
		Operation:  op,
		StatusCode: code,
		Severity:   status.SeverityPending,
		Message:    message,
	}
	markPending(&outcome)
	return outcome
}

func (g *Gateway) replayOutcome(op status.Operation, entry LedgerEntry, state OperationState) TransactionOutcome {
	code := firstNonEmpty(entry.StatusCode, "0000")
	return TransactionOutcome{
		Operation:  op,
		StatusCode: code,
		Severity:   status.SeveritySuccess,
		State:      state,
		Action:     status.ActionNone,
		Message:    g.table.UserMessage(code),
	}
}

func markPending(outcome *TransactionOutcome) {
	outcome.State = StatePendingConfirmation
	outcome.FundsHeld = true
	outcome.UseAdvice = true
	outcome.Retryable = false
	if outcome.Action == "" || outcome.Action == status.ActionNone {
		outcome.Action = status.ActionUseAdvice
	}
}

func movesMoney(op status.Operation) bool {
	switch op {
	case status.OperationPayment, status.OperationAdvice, status.OperationReversal:
		return true
	default:
		return false
	}
}

func successState(op status.Operation) OperationState {
	switch op {
	case status.OperationInquiry:
		return StateInquired
	case status.OperationPayment:
		return StatePaid
	case status.OperationReversal:
		return StateReversed
	default:
		return StateConfirmed
	}
}

func (g *Gateway) lookupLedger(ctx context.Context, transactionID string) (LedgerEntry, bool, error) {
	if g == nil || g.ledger == nil || strings.TrimSpace(transactionID) == "" {
		return LedgerEntry{}, false, nil
	}
	entry, err := g.ledger.Get(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrLedgerEntryNotFound) {
			return LedgerEntry{}, false, nil
		}
		return LedgerEntry{}, false, err
	}
	return entry, true, nil
}

func (g *Gateway) recordLedger(ctx context.Context, entry LedgerEntry) {
	if g == nil || g.ledger == nil {
		return
	}
	if _, err := g.ledger.Record(ctx, entry); err != nil {
		g.logError(ctx, "ledger entry not recorded", map[string]any{
			"transaction_id": entry.TransactionID,
			"state":          string(entry.State),
			"error":          err.Error(),
		})
	}
}

func (g *Gateway) resolveMCC(mcc string) (string, error) {
	mcc = strings.TrimSpace(mcc)
	if mcc == "" {
		mcc = strings.TrimSpace(g.config.Processor.MCC)
	}
	if mcc != "" && !isDigits(mcc, 4) {
		return "", NewValidationError("mcc", "mcc must be 4 digits")
	}
	return mcc, nil
}

func (g *Gateway) validateInquiry(req SimpleInquiryRequest) (string, error) {
	if req.ProductCode == "" {
		return "", NewValidationError("product_code", "product code is required")
	}
	if req.CustomerNumber == "" {
		return "", NewValidationError("customer_number", "customer number is required")
	}
	return g.resolveMCC(req.MCC)
}

func (g *Gateway) validatePayment(ctx context.Context, req SimplePaymentRequest) (string, error) {
	if req.SessionID == "" {
		return "", NewValidationError("session_id", "session id is required, start with an inquiry")
	}
	if req.ProductCode == "" {
		return "", NewValidationError("product_code", "product code is required")
	}
	if req.CustomerNumber == "" {
		return "", NewValidationError("customer_number", "customer number is required")
	}
	if err := validateBills(req.Bills, req.AdminTotal); err != nil {
		return "", err
	}
	if g.sessions != nil {
		binding, err := g.sessions.Lookup(ctx, req.SessionID)
		switch {
		case err == nil:
			if binding.ProductCode != req.ProductCode || binding.CustomerNumber != req.CustomerNumber {
				return "", NewValidationError("session_id", "session was issued for a different product or customer")
			}
		case errors.Is(err, ErrSessionNotFound):
		default:
			g.logWarn(ctx, "session lookup failed", map[string]any{"session_id": req.SessionID, "error": err.Error()})
		}
	}
	return g.resolveMCC(req.MCC)
}

func (g *Gateway) validateAdvice(req SimpleAdviceRequest) (string, error) {
	if req.SessionID == "" {
		return "", NewValidationError("session_id", "session id is required")
	}
	if req.ProductCode == "" {
		return "", NewValidationError("product_code", "product code is required")
	}
	if req.CustomerNumber == "" {
		return "", NewValidationError("customer_number", "customer number is required")
	}
	if err := validateBills(req.Bills, req.AdminTotal); err != nil {
		return "", err
	}
	return g.resolveMCC(req.MCC)
}

func validateBills(bills []Bill, admin int64) error {
	if len(bills) == 0 {
		return NewValidationError("bills", "at least one bill is required")
	}
	for _, bill := range bills {
		if bill.Period <= 0 {
			return NewValidationError("bills", "bill period must be positive")
		}
		if bill.Amount < 0 {
			return NewValidationError("bills", "bill amount must not be negative")
		}
	}
	if admin < 0 {
		return NewValidationError("admin_total", "admin total must not be negative")
	}
	return nil
}

func normalizePaymentRequest(req SimplePaymentRequest) SimplePaymentRequest {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.ProductCode = strings.TrimSpace(req.ProductCode)
	req.CustomerNumber = strings.TrimSpace(req.CustomerNumber)
	req.MCC = strings.TrimSpace(req.MCC)
	req.Bills = append([]Bill(nil), req.Bills...)
	return req
}

func mergeAdviceRequest(req SimpleAdviceRequest, entry LedgerEntry) SimpleAdviceRequest {
	req.SessionID = firstNonEmpty(strings.TrimSpace(req.SessionID), entry.SessionID)
	req.ProductCode = firstNonEmpty(strings.TrimSpace(req.ProductCode), entry.ProductCode)
	req.CustomerNumber = firstNonEmpty(strings.TrimSpace(req.CustomerNumber), entry.CustomerNumber)
	req.MCC = firstNonEmpty(strings.TrimSpace(req.MCC), entry.MCC)
	if len(req.Bills) == 0 {
		req.Bills = append([]Bill(nil), entry.Bills...)
	}
	if req.AdminTotal == 0 {
		req.AdminTotal = entry.AdminTotal
	}
	return req
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
