package core

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-billgate/status"
)

func TestGatewayErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := gatewayErrorMapper(fmt.Errorf("lookup: %w", ErrLedgerEntryNotFound))
	if mapped.TextCode != GatewayErrorNotFound {
		t.Fatalf("expected not found text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", mapped.Code)
	}

	mapped = gatewayErrorMapper(stderrors.New("core: processor.base_url is required"))
	if mapped.TextCode != GatewayErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}
}

func TestGatewayErrors_CarryMetadata(t *testing.T) {
	err := NewProcessorError(status.OperationPayment, "0172", "Insufficient balance", status.ActionNone)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if rich.Metadata["status_code"] != "0172" || rich.Metadata["operation"] != "payment" {
		t.Fatalf("expected status metadata, got %#v", rich.Metadata)
	}
	if _, ok := rich.Metadata["action"]; ok {
		t.Fatalf("expected no action metadata for none")
	}
	if rich.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rich.Code)
	}
}

func TestGatewayErrors_NetworkIsGatewayTimeout(t *testing.T) {
	err := NewNetworkError(stderrors.New("i/o timeout"), status.OperationAdvice, nil)
	if !IsNetworkError(err) {
		t.Fatalf("expected network error predicate")
	}
	mapped := MapError(err)
	if mapped.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", mapped.Code)
	}
	if mapped.Metadata["action"] != string(status.ActionUseAdvice) {
		t.Fatalf("expected use_advice hint, got %#v", mapped.Metadata["action"])
	}
}

func TestGatewayErrors_Predicates(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "auth", err: NewAuthError("", "", http.StatusUnauthorized), check: IsAuthError},
		{name: "signature", err: NewSignatureError(stderrors.New("bad key"), "sign"), check: IsSignatureError},
		{name: "unmapped", err: NewUnmappedStatusError(status.OperationPayment, "0999"), check: IsUnmappedStatus},
		{name: "in flight", err: NewInFlightError("tx-1"), check: IsInFlight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.check(tc.err) {
				t.Fatalf("expected predicate to match %v", tc.err)
			}
			if IsProcessorError(tc.err) {
				t.Fatalf("expected processor predicate not to match %v", tc.err)
			}
		})
	}
	if IsAuthError(stderrors.New("plain")) {
		t.Fatalf("expected plain errors not to match")
	}
}

func TestGatewayErrors_ValidationIsBadInput(t *testing.T) {
	err := NewValidationError("session_id", "session id is required")
	if !isBadInput(err) {
		t.Fatalf("expected validation error to be bad input")
	}
	if MapError(err).Code != http.StatusBadRequest {
		t.Fatalf("expected 400")
	}
}
