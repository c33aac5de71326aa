package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-billgate/status"
)

const (
	GatewayErrorBadInput          = "GATEWAY_BAD_INPUT"
	GatewayErrorNotFound          = "GATEWAY_NOT_FOUND"
	GatewayErrorSignature         = "GATEWAY_SIGNATURE_FAILED"
	GatewayErrorAuth              = "GATEWAY_AUTH_FAILED"
	GatewayErrorForbidden         = "GATEWAY_FORBIDDEN"
	GatewayErrorNetwork           = "GATEWAY_NETWORK_AMBIGUOUS"
	GatewayErrorInFlight          = "GATEWAY_PAYMENT_IN_FLIGHT"
	GatewayErrorProcessorRejected = "GATEWAY_PROCESSOR_REJECTED"
	GatewayErrorStatusUnmapped    = "GATEWAY_STATUS_UNMAPPED"
	GatewayErrorExternal          = "GATEWAY_EXTERNAL_FAILURE"
	GatewayErrorInternal          = "GATEWAY_INTERNAL_ERROR"
)

var (
	ErrTokenNotFound       = errors.New("core: token not found")
	ErrLedgerEntryNotFound = errors.New("core: ledger entry not found")
	ErrSessionNotFound     = errors.New("core: session not found")
	// ErrRequestNotSent marks transport failures raised before any byte left
	// the process. They never make an outcome ambiguous.
	ErrRequestNotSent = errors.New("core: request was not sent")
)

func NewSignatureError(source error, message string) error {
	return wrapGatewayError(source, goerrors.CategoryInternal, message, GatewayErrorSignature)
}

// NewAuthError reports a rejected credential or token. code is the
// processor status code when one was returned.
func NewAuthError(code string, message string, httpStatus int) error {
	if strings.TrimSpace(message) == "" {
		message = "processor rejected authentication"
	}
	metadata := map[string]any{}
	if code = strings.TrimSpace(code); code != "" {
		metadata["status_code"] = code
	}
	if httpStatus > 0 {
		metadata["http_status"] = httpStatus
	}
	return withMetadata(newGatewayError(message, goerrors.CategoryAuth, GatewayErrorAuth), metadata)
}

func NewForbiddenError(message string, httpStatus int) error {
	if strings.TrimSpace(message) == "" {
		message = "processor refused the request"
	}
	return withMetadata(
		newGatewayError(message, goerrors.CategoryAuthz, GatewayErrorForbidden),
		map[string]any{"http_status": httpStatus},
	)
}

func NewNetworkError(source error, op status.Operation, metadata map[string]any) error {
	fields := cloneFields(metadata)
	fields["operation"] = string(op)
	fields["action"] = string(status.ActionUseAdvice)
	return withMetadata(
		wrapGatewayError(source, goerrors.CategoryExternal, "no response from processor, outcome is unknown", GatewayErrorNetwork).
			WithCode(http.StatusGatewayTimeout),
		fields,
	)
}

func NewProcessorError(op status.Operation, code string, message string, action status.Action) error {
	metadata := map[string]any{"operation": string(op)}
	if code = strings.TrimSpace(code); code != "" {
		metadata["status_code"] = code
	}
	if action != "" && action != status.ActionNone {
		metadata["action"] = string(action)
	}
	return withMetadata(newGatewayError(message, goerrors.CategoryOperation, GatewayErrorProcessorRejected), metadata)
}

func NewUnmappedStatusError(op status.Operation, code string) error {
	message := "processor returned a status code outside the status table"
	if strings.TrimSpace(code) == "" {
		message = "processor response carried no status code"
	}
	return withMetadata(
		newGatewayError(message, goerrors.CategoryExternal, GatewayErrorStatusUnmapped),
		map[string]any{"operation": string(op), "status_code": strings.TrimSpace(code)},
	)
}

// NewInFlightError rejects a payment whose transaction id is still awaiting
// confirmation. Only advice or a status check may resolve it.
func NewInFlightError(transactionID string) error {
	return withMetadata(
		newGatewayError("payment is awaiting confirmation, use advice", goerrors.CategoryConflict, GatewayErrorInFlight),
		map[string]any{"transaction_id": transactionID, "action": string(status.ActionUseAdvice)},
	)
}

// NewExternalError wraps a failure to reach a dependency outside the money path,
// such as the token endpoint or the durable store.
func NewExternalError(source error, message string) error {
	return wrapGatewayError(source, goerrors.CategoryExternal, message, GatewayErrorExternal)
}

func NewBadInputError(message string) error {
	return newGatewayError(message, goerrors.CategoryBadInput, GatewayErrorBadInput)
}

func NewValidationError(field string, message string) error {
	err := goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(GatewayErrorBadInput).
		WithMetadata(map[string]any{"field": field, "reason": message})
	return err
}

func IsSignatureError(err error) bool { return hasTextCode(err, GatewayErrorSignature) }
func IsAuthError(err error) bool      { return hasTextCode(err, GatewayErrorAuth) }
func IsNetworkError(err error) bool   { return hasTextCode(err, GatewayErrorNetwork) }
func IsProcessorError(err error) bool { return hasTextCode(err, GatewayErrorProcessorRejected) }
func IsUnmappedStatus(err error) bool { return hasTextCode(err, GatewayErrorStatusUnmapped) }
func IsInFlight(err error) bool       { return hasTextCode(err, GatewayErrorInFlight) }

func isBadInput(err error) bool {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) {
		return false
	}
	return rich.Category == goerrors.CategoryBadInput || rich.Category == goerrors.CategoryValidation
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// MapError converts any error into the gateway envelope.
func MapError(err error) *goerrors.Error {
	return gatewayErrorMapper(err)
}

func gatewayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGatewayErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrLedgerEntryNotFound), errors.Is(err, ErrSessionNotFound):
		return newGatewayError(err.Error(), goerrors.CategoryNotFound, GatewayErrorNotFound)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newGatewayError(err.Error(), goerrors.CategoryBadInput, GatewayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGatewayErrorEnvelope(mapped)
}

func newGatewayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureGatewayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func wrapGatewayError(source error, category goerrors.Category, message string, textCode string) *goerrors.Error {
	if source == nil {
		return newGatewayError(message, category, textCode)
	}
	return ensureGatewayErrorEnvelope(
		goerrors.Wrap(source, category, message).
			WithTextCode(textCode),
	)
}

func withMetadata(err *goerrors.Error, metadata map[string]any) error {
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ensureGatewayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = GatewayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGatewayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGatewayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GatewayErrorBadInput
	case goerrors.CategoryNotFound:
		return GatewayErrorNotFound
	case goerrors.CategoryAuth:
		return GatewayErrorAuth
	case goerrors.CategoryAuthz:
		return GatewayErrorForbidden
	case goerrors.CategoryConflict:
		return GatewayErrorInFlight
	case goerrors.CategoryOperation:
		return GatewayErrorProcessorRejected
	case goerrors.CategoryExternal:
		return GatewayErrorExternal
	default:
		return GatewayErrorInternal
	}
}

func GatewayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
