package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-billgate/core"
)

type tokenTransport struct {
	mu       sync.Mutex
	requests []core.TransportRequest
	gate     chan struct{}
	handle   func(req core.TransportRequest, call int) (core.TransportResponse, error)
}

func (s *tokenTransport) Kind() string { return "stub" }

func (s *tokenTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()
	if s.gate != nil {
		<-s.gate
	}
	if s.handle == nil {
		return tokenResponse(http.StatusOK, `{"Status":"0000","Token":"token-1","ErrorMessage":""}`), nil
	}
	return s.handle(req, call)
}

func (s *tokenTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func tokenResponse(status int, body string) core.TransportResponse {
	return core.TransportResponse{StatusCode: status, Body: []byte(body)}
}

type memoryTokenStore struct {
	mu      sync.Mutex
	token   *core.Token
	saves   int
	cleared int
}

func (s *memoryTokenStore) Load(context.Context) (core.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return core.Token{}, core.ErrTokenNotFound
	}
	return *s.token, nil
}

func (s *memoryTokenStore) Save(_ context.Context, token core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &token
	s.saves++
	return nil
}

func (s *memoryTokenStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.cleared++
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedConnectionSigner struct{}

func (fixedConnectionSigner) SignConnection() (SignedHeaders, error) {
	return SignedHeaders{ClientID: "client-1", Timestamp: "2026-01-02T10:00:00.000+07:00", Signature: "conn-sig"}, nil
}

func newTestTokenManager(t *testing.T, transport *tokenTransport, opts ...TokenManagerOption) (*TokenManager, *testClock) {
	t.Helper()
	clock := &testClock{now: fixedNow()}
	manager, err := NewTokenManager(TokenManagerConfig{
		Endpoint:        "https://mkm.test/token",
		DefaultDuration: 60,
		MCC:             "6012",
		SafetyBuffer:    5 * time.Minute,
		Timeout:         time.Second,
	}, fixedConnectionSigner{}, transport, append([]TokenManagerOption{WithTokenClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return manager, clock
}

func TestTokenManager_AcquiresWithConnectionHeaders(t *testing.T) {
	transport := &tokenTransport{}
	manager, _ := newTestTokenManager(t, transport)

	token, err := manager.GetToken(context.Background(), core.TokenRequest{})
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if token.AccessToken != "token-1" || token.TokenType != "Bearer" {
		t.Fatalf("unexpected token %+v", token)
	}
	if token.ExpiresIn != 3600 || !token.ExpiresAt.Equal(fixedNow().Add(time.Hour)) {
		t.Fatalf("expected expiry from duration, got %+v", token)
	}

	req := transport.requests[0]
	if req.Method != http.MethodGet || req.URL != "https://mkm.test/token" {
		t.Fatalf("unexpected token request %s %s", req.Method, req.URL)
	}
	if req.Query["dur"] != "60" || req.Query["mcc"] != "6012" {
		t.Fatalf("expected resolved query, got %#v", req.Query)
	}
	if req.Headers["Authorization"] != "MKM-AUTH-1.0" || req.Headers["X-Signature"] != "conn-sig" {
		t.Fatalf("expected connection headers, got %#v", req.Headers)
	}
}

func TestTokenManager_ServesCacheUntilBuffer(t *testing.T) {
	transport := &tokenTransport{}
	manager, clock := newTestTokenManager(t, transport)
	ctx := context.Background()

	if _, err := manager.GetToken(ctx, core.TokenRequest{}); err != nil {
		t.Fatalf("first: %v", err)
	}
	clock.Advance(50 * time.Minute)
	if _, err := manager.GetToken(ctx, core.TokenRequest{DurationMinutes: 60, MCC: "6012"}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if transport.calls() != 1 {
		t.Fatalf("expected cached token, got %d calls", transport.calls())
	}

	// 55 minutes in, the 5 minute buffer reaches expiry
	clock.Advance(5 * time.Minute)
	if _, err := manager.GetToken(ctx, core.TokenRequest{}); err != nil {
		t.Fatalf("third: %v", err)
	}
	if transport.calls() != 2 {
		t.Fatalf("expected refresh inside buffer, got %d calls", transport.calls())
	}
}

func TestTokenManager_MismatchedRequestReacquires(t *testing.T) {
	transport := &tokenTransport{}
	manager, _ := newTestTokenManager(t, transport)
	ctx := context.Background()

	if _, err := manager.GetToken(ctx, core.TokenRequest{}); err != nil {
		t.Fatalf("default: %v", err)
	}
	token, err := manager.GetToken(ctx, core.TokenRequest{DurationMinutes: 30})
	if err != nil {
		t.Fatalf("30 minutes: %v", err)
	}
	if transport.calls() != 2 || token.DurationMinutes != 30 {
		t.Fatalf("expected reacquire on duration change, calls=%d token=%+v", transport.calls(), token)
	}
	if _, err := manager.GetToken(ctx, core.TokenRequest{DurationMinutes: 30, MCC: "5411"}); err != nil {
		t.Fatalf("other mcc: %v", err)
	}
	if transport.calls() != 3 {
		t.Fatalf("expected reacquire on mcc change, got %d calls", transport.calls())
	}
}

func TestTokenManager_ConcurrentMissesShareOneAcquisition(t *testing.T) {
	transport := &tokenTransport{gate: make(chan struct{})}
	manager, _ := newTestTokenManager(t, transport)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := manager.GetToken(context.Background(), core.TokenRequest{})
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- token.AccessToken
		}()
	}

	waitFor(t, func() bool { return transport.calls() == 1 })
	close(transport.gate)
	wg.Wait()
	close(results)

	for result := range results {
		if result != "token-1" {
			t.Fatalf("expected shared token, got %q", result)
		}
	}
	if transport.calls() != 1 {
		t.Fatalf("expected one acquisition, got %d", transport.calls())
	}
}

func TestTokenManager_CallerCancellationDoesNotAbortAcquisition(t *testing.T) {
	transport := &tokenTransport{gate: make(chan struct{})}
	manager, _ := newTestTokenManager(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := manager.GetToken(ctx, core.TokenRequest{})
		done <- err
	}()
	waitFor(t, func() bool { return transport.calls() == 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller to stop waiting, got %v", err)
	}

	close(transport.gate)
	waitFor(t, func() bool {
		_, ok := manager.Current()
		return ok
	})
	if _, err := manager.GetToken(context.Background(), core.TokenRequest{}); err != nil {
		t.Fatalf("get after detached acquisition: %v", err)
	}
	if transport.calls() != 1 {
		t.Fatalf("expected detached acquisition to fill the cache, got %d calls", transport.calls())
	}
}

func TestTokenManager_AdoptsStoredToken(t *testing.T) {
	store := &memoryTokenStore{token: &core.Token{
		AccessToken:     "stored-token",
		TokenType:       "Bearer",
		IssuedAt:        fixedNow().Add(-10 * time.Minute),
		ExpiresAt:       fixedNow().Add(50 * time.Minute),
		DurationMinutes: 60,
		MCC:             "6012",
	}}
	transport := &tokenTransport{}
	manager, _ := newTestTokenManager(t, transport, WithTokenStore(store))

	token, err := manager.GetToken(context.Background(), core.TokenRequest{})
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if token.AccessToken != "stored-token" || transport.calls() != 0 {
		t.Fatalf("expected stored token adoption, got %q after %d calls", token.AccessToken, transport.calls())
	}

	if _, err := manager.GetToken(context.Background(), core.TokenRequest{DurationMinutes: 15}); err != nil {
		t.Fatalf("get other duration: %v", err)
	}
	if transport.calls() != 1 || store.saves != 1 {
		t.Fatalf("expected acquisition and save, calls=%d saves=%d", transport.calls(), store.saves)
	}
}

func TestTokenManager_InvalidateComparesToken(t *testing.T) {
	store := &memoryTokenStore{}
	transport := &tokenTransport{}
	manager, _ := newTestTokenManager(t, transport, WithTokenStore(store))
	ctx := context.Background()

	if _, err := manager.GetToken(ctx, core.TokenRequest{}); err != nil {
		t.Fatalf("get token: %v", err)
	}
	if err := manager.Invalidate(ctx, "some-older-token"); err != nil {
		t.Fatalf("invalidate stale: %v", err)
	}
	if _, ok := manager.Current(); !ok || store.cleared != 0 {
		t.Fatalf("expected stale invalidation to keep the token")
	}
	if err := manager.Invalidate(ctx, "token-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := manager.Current(); ok || store.cleared != 1 {
		t.Fatalf("expected cache and store cleared")
	}
	if _, err := manager.GetToken(ctx, core.TokenRequest{}); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if transport.calls() != 2 {
		t.Fatalf("expected reacquire after invalidate, got %d", transport.calls())
	}
}

func TestTokenManager_NormalizesResponseFields(t *testing.T) {
	transport := &tokenTransport{handle: func(core.TransportRequest, int) (core.TransportResponse, error) {
		return tokenResponse(http.StatusOK, `{"status_code":"0000","AccessToken":"alt","TokenType":"MAC","ExpiresIn":"120","Scope":"h2h"}`), nil
	}}
	manager, _ := newTestTokenManager(t, transport, WithTokenClock(fixedNow))

	token, err := manager.GetToken(context.Background(), core.TokenRequest{MCC: "5411"})
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if token.AccessToken != "alt" || token.TokenType != "MAC" || token.Scope != "h2h" {
		t.Fatalf("unexpected normalized token %+v", token)
	}
	if token.ExpiresIn != 120 || token.MCC != "5411" {
		t.Fatalf("expected numeric string expiry and requested mcc, got %+v", token)
	}
}

func TestTokenManager_Failures(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		code     string
		message  string
		category goerrors.Category
	}{
		{name: "processor status", status: http.StatusOK, body: `{"Status":"0401","ErrorMessage":"Invalid signature"}`, code: "0401", message: "Invalid signature"},
		{name: "numeric status", status: http.StatusOK, body: `{"Status":12}`, code: "0012", message: "MKM Error: 0012"},
		{name: "http status", status: http.StatusInternalServerError, body: `oops`, message: "token endpoint returned HTTP 500"},
		{name: "missing token", status: http.StatusOK, body: `{"Status":"0000"}`, code: "missing_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &tokenTransport{handle: func(core.TransportRequest, int) (core.TransportResponse, error) {
				return tokenResponse(tc.status, tc.body), nil
			}}
			manager, _ := newTestTokenManager(t, transport)
			_, err := manager.GetToken(context.Background(), core.TokenRequest{})
			if !core.IsAuthError(err) {
				t.Fatalf("expected auth error, got %v", err)
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors type, got %T", err)
			}
			if tc.code != "" && rich.Metadata["status_code"] != tc.code {
				t.Fatalf("expected status code %q, got %#v", tc.code, rich.Metadata["status_code"])
			}
			if tc.message != "" && rich.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, rich.Message)
			}
			if _, ok := manager.Current(); ok {
				t.Fatalf("expected no token cached after failure")
			}
		})
	}
}

func TestTokenManager_TransportFailureIsExternal(t *testing.T) {
	transport := &tokenTransport{handle: func(core.TransportRequest, int) (core.TransportResponse, error) {
		return core.TransportResponse{}, errors.New("dial tcp: connection refused")
	}}
	manager, _ := newTestTokenManager(t, transport)
	_, err := manager.GetToken(context.Background(), core.TokenRequest{})
	if err == nil || core.IsAuthError(err) || core.IsNetworkError(err) {
		t.Fatalf("expected external failure, got %v", err)
	}
}

func TestTokenManager_RejectsBadRequests(t *testing.T) {
	manager, _ := newTestTokenManager(t, &tokenTransport{})
	for _, req := range []core.TokenRequest{
		{DurationMinutes: 1441},
		{DurationMinutes: -1},
		{MCC: "12"},
		{MCC: "60a2"},
	} {
		if _, err := manager.GetToken(context.Background(), req); err == nil {
			t.Fatalf("expected %+v to be rejected", req)
		}
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
