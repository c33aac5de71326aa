package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-billgate/core"
)

// Envelope codes returned to callers. Processor status codes are never used
// here; they travel inside data.outcome.
const (
	CodeSuccess        = "0000"
	CodeBadRequest     = "0400"
	CodeUnauthorized   = "0401"
	CodeForbidden      = "0403"
	CodeNotFound       = "0404"
	CodeInFlight       = "0409"
	CodeInternal       = "0500"
	CodeUnavailable    = "0503"
	CodeGatewayTimeout = "0504"
)

type Envelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type failure struct {
	httpStatus int
	code       string
	message    string
}

// classify maps a gateway error onto the envelope code family.
func classify(err error) failure {
	rich := core.MapError(err)
	if rich == nil {
		return failure{httpStatus: http.StatusInternalServerError, code: CodeInternal, message: "Internal Server Error"}
	}
	message := strings.TrimSpace(rich.Message)
	if reason, ok := rich.Metadata["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		message = reason
	}

	switch {
	case rich.TextCode == core.GatewayErrorNetwork:
		return failure{http.StatusGatewayTimeout, CodeGatewayTimeout, message}
	case rich.TextCode == core.GatewayErrorInFlight:
		return failure{http.StatusConflict, CodeInFlight, message}
	case rich.TextCode == core.GatewayErrorProcessorRejected:
		return failure{http.StatusUnprocessableEntity, CodeUnavailable, message}
	}

	switch rich.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return failure{http.StatusBadRequest, CodeBadRequest, message}
	case goerrors.CategoryAuth:
		return failure{http.StatusUnauthorized, CodeUnauthorized, message}
	case goerrors.CategoryAuthz:
		return failure{http.StatusForbidden, CodeForbidden, message}
	case goerrors.CategoryNotFound:
		return failure{http.StatusNotFound, CodeNotFound, message}
	case goerrors.CategoryConflict:
		return failure{http.StatusConflict, CodeInFlight, message}
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return failure{http.StatusServiceUnavailable, CodeUnavailable, message}
	default:
		return failure{http.StatusInternalServerError, CodeInternal, "Internal Server Error"}
	}
}

func (a *API) writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	if strings.TrimSpace(message) == "" {
		message = "Success"
	}
	a.writeEnvelope(w, status, Envelope{Code: CodeSuccess, Message: message, Data: data})
}

// writeFailure renders err. data carries the classified result when the
// gateway produced one alongside the error.
func (a *API) writeFailure(w http.ResponseWriter, r *http.Request, err error, data any) {
	failed := classify(err)
	if failed.code == CodeInternal {
		args := []any{"path", r.URL.Path, "error", err}
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && len(rich.Metadata) > 0 {
			args = append(args, "metadata", core.RedactSensitiveMap(rich.Metadata))
		}
		a.logger.Error("request failed", args...)
	}
	a.writeEnvelope(w, failed.httpStatus, Envelope{Code: failed.code, Message: failed.message, Data: data})
}

func (a *API) writeEnvelope(w http.ResponseWriter, status int, envelope Envelope) {
	envelope.Timestamp = a.now().UTC().Format(time.RFC3339Nano)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		a.logger.Warn("response not written", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	if r.Body == nil {
		return core.NewBadInputError("request body is required")
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return core.NewBadInputError(fmt.Sprintf("request body is not valid json: %v", err))
	}
	return nil
}
