package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-billgate/core"
)

// ConnectionSigner signs token endpoint requests.
type ConnectionSigner interface {
	SignConnection() (SignedHeaders, error)
}

type TokenManagerConfig struct {
	Endpoint        string
	DefaultDuration int
	MCC             string
	SafetyBuffer    time.Duration
	Timeout         time.Duration
}

func TokenManagerConfigFrom(cfg core.Config) TokenManagerConfig {
	return TokenManagerConfig{
		Endpoint:        cfg.Processor.Endpoint(cfg.Processor.TokenPath),
		DefaultDuration: cfg.Processor.DefaultDuration,
		MCC:             cfg.Processor.MCC,
		SafetyBuffer:    cfg.Token.SafetyBuffer(),
		Timeout:         cfg.Processor.Timeout(),
	}
}

// TokenManager owns the single cached processor token. Hits are served from an
// atomic pointer; misses for the same duration and MCC share one acquisition.
type TokenManager struct {
	config    TokenManagerConfig
	signer    ConnectionSigner
	transport core.TransportAdapter
	store     core.TokenStore
	logger    core.Logger
	now       func() time.Time

	current atomic.Pointer[core.Token]
	flights singleflight.Group
}

type TokenManagerOption func(*TokenManager)

func WithTokenStore(store core.TokenStore) TokenManagerOption {
	return func(m *TokenManager) {
		m.store = store
	}
}

func WithTokenLogger(logger core.Logger) TokenManagerOption {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewTokenManager(
	cfg TokenManagerConfig,
	signer ConnectionSigner,
	transport core.TransportAdapter,
	opts ...TokenManagerOption,
) (*TokenManager, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, core.NewBadInputError("token endpoint is required")
	}
	if signer == nil {
		return nil, core.NewBadInputError("connection signer is required")
	}
	if transport == nil {
		return nil, core.NewBadInputError("transport is required")
	}
	if cfg.DefaultDuration == 0 {
		cfg.DefaultDuration = core.DefaultConfig().Processor.DefaultDuration
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = core.DefaultConfig().Processor.Timeout()
	}
	if cfg.SafetyBuffer < 0 {
		cfg.SafetyBuffer = 0
	}
	manager := &TokenManager{
		config:    cfg,
		signer:    signer,
		transport: transport,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	manager.logger = glog.Ensure(manager.logger)
	return manager, nil
}

func (m *TokenManager) GetToken(ctx context.Context, req core.TokenRequest) (core.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resolved, err := resolveTokenRequest(req, m.config.DefaultDuration, m.config.MCC)
	if err != nil {
		return core.Token{}, err
	}
	if token, ok := m.cached(resolved); ok {
		return token, nil
	}

	flight := m.flights.DoChan(flightKey(resolved), func() (any, error) {
		acquireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.Timeout)
		defer cancel()
		// a flight that finished just before this one may have filled the slot
		if token, ok := m.cached(resolved); ok {
			return token, nil
		}
		if token, ok := m.adopt(acquireCtx, resolved); ok {
			return token, nil
		}
		return m.acquire(acquireCtx, resolved)
	})

	select {
	case <-ctx.Done():
		return core.Token{}, ctx.Err()
	case result := <-flight:
		if result.Err != nil {
			return core.Token{}, result.Err
		}
		return result.Val.(core.Token), nil
	}
}

// Invalidate drops the cached token only while it is still accessToken, so a
// token refreshed by another caller survives a late invalidation.
func (m *TokenManager) Invalidate(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	current := m.current.Load()
	if current == nil || (accessToken != "" && current.AccessToken != accessToken) {
		return nil
	}
	if !m.current.CompareAndSwap(current, nil) {
		return nil
	}
	m.logger.Info("processor token invalidated", "duration_minutes", current.DurationMinutes, "mcc", current.MCC)
	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return core.NewExternalError(err, "clear stored token")
	}
	return nil
}

// Current returns the cached token, valid or not.
func (m *TokenManager) Current() (core.Token, bool) {
	current := m.current.Load()
	if current == nil {
		return core.Token{}, false
	}
	return *current, true
}

func (m *TokenManager) cached(req core.TokenRequest) (core.Token, bool) {
	current := m.current.Load()
	if current == nil {
		return core.Token{}, false
	}
	if !current.ValidAt(m.now(), m.config.SafetyBuffer) || !current.Matches(req) {
		return core.Token{}, false
	}
	return *current, true
}

// adopt loads a token persisted by an earlier process when memory is empty.
func (m *TokenManager) adopt(ctx context.Context, req core.TokenRequest) (core.Token, bool) {
	if m.store == nil || m.current.Load() != nil {
		return core.Token{}, false
	}
	stored, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrTokenNotFound) {
			m.logger.Warn("stored token could not be loaded", "error", err)
		}
		return core.Token{}, false
	}
	if !stored.ValidAt(m.now(), m.config.SafetyBuffer) || !stored.Matches(req) {
		return core.Token{}, false
	}
	m.current.Store(&stored)
	m.logger.Info("adopted stored processor token", "expires_at", stored.ExpiresAt, "mcc", stored.MCC)
	return stored, true
}

func (m *TokenManager) acquire(ctx context.Context, req core.TokenRequest) (core.Token, error) {
	signed, err := m.signer.SignConnection()
	if err != nil {
		return core.Token{}, err
	}
	headers := signed.Headers()
	headers["Accept"] = "application/json"

	issuedAt := m.now().UTC()
	resp, err := m.transport.Do(ctx, core.TransportRequest{
		Method:   http.MethodGet,
		URL:      m.config.Endpoint,
		Headers:  headers,
		Query:    tokenQuery(req),
		Timeout:  m.config.Timeout,
		Metadata: map[string]any{"operation": "token"},
	})
	if err != nil {
		m.logger.Error("token request failed", "error", err, "duration_minutes", req.DurationMinutes)
		return core.Token{}, core.NewExternalError(err, "token request failed")
	}

	token, err := parseTokenResponse(resp, req, issuedAt)
	if err != nil {
		m.logger.Warn("token request rejected", "error", err, "http_status", resp.StatusCode)
		return core.Token{}, err
	}
	m.current.Store(&token)
	if m.store != nil {
		if err := m.store.Save(ctx, token); err != nil {
			m.logger.Warn("token could not be persisted", "error", err)
		}
	}
	m.logger.Info("processor token acquired",
		"duration_minutes", token.DurationMinutes,
		"mcc", token.MCC,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

func parseTokenResponse(resp core.TransportResponse, req core.TokenRequest, issuedAt time.Time) (core.Token, error) {
	fields := core.DecodeFields(resp.Body)
	code := core.ReadStatusCode(fields)
	message := core.ReadString(fields, tokenMessageKeys...)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if message == "" {
			message = fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode)
		}
		return core.Token{}, core.NewAuthError(code, message, resp.StatusCode)
	}
	if code != "" && code != "0000" {
		if message == "" {
			message = "MKM Error: " + code
		}
		return core.Token{}, core.NewAuthError(code, message, resp.StatusCode)
	}

	accessToken := core.ReadString(fields, accessTokenKeys...)
	if accessToken == "" {
		return core.Token{}, core.NewAuthError("missing_token", "token response carried no access token", resp.StatusCode)
	}
	tokenType := core.ReadString(fields, tokenTypeKeys...)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	expiresIn, ok := core.ReadInt(fields, expiresInKeys...)
	if !ok || expiresIn <= 0 {
		expiresIn = int64(req.DurationMinutes) * 60
	}
	return core.Token{
		AccessToken:     accessToken,
		TokenType:       tokenType,
		IssuedAt:        issuedAt,
		ExpiresAt:       issuedAt.Add(time.Duration(expiresIn) * time.Second),
		ExpiresIn:       expiresIn,
		DurationMinutes: req.DurationMinutes,
		MCC:             req.MCC,
		Scope:           core.ReadString(fields, scopeKeys...),
	}, nil
}
