package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"transaction_id": "TX-1",
		"request_id":     "req_1",
		"client_id":      "CLIENT",
		"access_token":   "secret-token",
		"authorization":  "MKM-AUTH-1.0",
		"nested":         map[string]any{"x_signature": "c2ln", "session_id": "SESSION-1"},
		"events":         []any{map[string]any{"client_secret": "s3cr3t"}, map[string]any{"status_code": "0068"}},
		"token_type":     "Bearer",
	})

	if redacted["transaction_id"] != "TX-1" || redacted["client_id"] != "CLIENT" {
		t.Fatalf("expected identifiers to remain visible, got %#v", redacted)
	}
	if redacted["access_token"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	if redacted["token_type"] != "Bearer" {
		t.Fatalf("expected token_type to remain visible, got %#v", redacted["token_type"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["x_signature"] != RedactedValue {
		t.Fatalf("expected nested signature to be redacted, got %#v", nested["x_signature"])
	}
	if nested["session_id"] != "SESSION-1" {
		t.Fatalf("expected nested session_id to remain visible, got %#v", nested["session_id"])
	}
	events := redacted["events"].([]any)
	if events[0].(map[string]any)["client_secret"] != RedactedValue {
		t.Fatalf("expected secret inside slice to be redacted, got %#v", events[0])
	}
	if events[1].(map[string]any)["status_code"] != "0068" {
		t.Fatalf("expected status code inside slice to survive, got %#v", events[1])
	}
}

func TestRedactSensitiveMapEmpty(t *testing.T) {
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}
