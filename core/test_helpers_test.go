package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type stubTokenProvider struct {
	mu          sync.Mutex
	tokens      []string
	calls       int
	invalidated []string
	err         error
}

func (p *stubTokenProvider) GetToken(_ context.Context, req TokenRequest) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Token{}, p.err
	}
	// each invalidation moves on to the next issued token
	index := len(p.invalidated)
	if index >= len(p.tokens) {
		index = len(p.tokens) - 1
	}
	p.calls++
	return Token{
		AccessToken:     p.tokens[index],
		TokenType:       "Bearer",
		IssuedAt:        time.Now().UTC(),
		ExpiresAt:       time.Now().UTC().Add(time.Hour),
		DurationMinutes: 60,
		MCC:             req.MCC,
	}, nil
}

func (p *stubTokenProvider) Invalidate(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated = append(p.invalidated, accessToken)
	return nil
}

type stubSigner struct{}

func (stubSigner) SignTransaction(accessToken string, payload any) (SignedPayload, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return SignedPayload{}, err
		}
		body = encoded
	}
	return SignedPayload{
		Body:      body,
		Timestamp: "2026-01-02T10:00:00.000+07:00",
		Signature: "sig-" + accessToken,
	}, nil
}

type stubTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	contexts []error
	handle   func(req TransportRequest, call int) (TransportResponse, error)
}

func (s *stubTransport) Kind() string { return "stub" }

func (s *stubTransport) Do(ctx context.Context, req TransportRequest) (TransportResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.contexts = append(s.contexts, ctx.Err())
	call := len(s.requests)
	s.mu.Unlock()
	if s.handle == nil {
		return jsonResponse(200, `{"Status":"0000"}`), nil
	}
	return s.handle(req, call)
}

func (s *stubTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubTransport) request(t *testing.T, index int) TransportRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= len(s.requests) {
		t.Fatalf("expected request %d, got %d requests", index, len(s.requests))
	}
	return s.requests[index]
}

func replyWith(status int, body string) func(TransportRequest, int) (TransportResponse, error) {
	return func(TransportRequest, int) (TransportResponse, error) {
		return jsonResponse(status, body), nil
	}
}

func jsonResponse(status int, body string) TransportResponse {
	return TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Processor.BaseURL = "https://mkm.test"
	cfg.Processor.ClientID = "client-1"
	cfg.Processor.ClientSecret = "secret-1"
	cfg.Processor.MCC = "6012"
	return cfg
}

func newTestGateway(t *testing.T, transport *stubTransport, opts ...Option) (*Gateway, *stubTokenProvider) {
	t.Helper()
	tokens := &stubTokenProvider{tokens: []string{"token-1", "token-2", "token-3"}}
	base := []Option{
		WithTokenProvider(tokens),
		WithTransactionSigner(stubSigner{}),
		WithTransport(transport),
		WithIDGenerator(func() string { return "tx-generated" }),
	}
	gateway, err := NewGateway(testConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway, tokens
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return fields
}

func samplePayment() SimplePaymentRequest {
	return SimplePaymentRequest{
		TransactionID:  "tx-1",
		SessionID:      "ABC123DEF456GHI789JKL012MNO345PQ",
		ProductCode:    "1001",
		CustomerNumber: "512345678901",
		Bills:          []Bill{{Period: 202401, Amount: 150000}},
		AdminTotal:     2500,
	}
}
