package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const sessionCacheKeyPrefix = "billgate::session::v1"

// CachedSessionRegistry keeps inquiry session bindings in a go-repository-cache
// service. Bindings expire with the cache TTL.
type CachedSessionRegistry struct {
	cache repositorycache.CacheService
}

func NewCachedSessionRegistry(cacheService repositorycache.CacheService) (*CachedSessionRegistry, error) {
	if cacheService == nil {
		return nil, fmt.Errorf("core: session cache service is required")
	}
	return &CachedSessionRegistry{cache: cacheService}, nil
}

// NewSessionCacheService builds a cache service whose entries live for ttl.
func NewSessionCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if ttl > 0 {
		config.TTL = ttl
	}
	return repositorycache.NewCacheService(config)
}

func SessionCacheKey(sessionID string) string {
	return sessionCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(sessionID))
}

func (r *CachedSessionRegistry) Remember(ctx context.Context, binding SessionBinding) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("core: session registry is not configured")
	}
	binding.SessionID = strings.TrimSpace(binding.SessionID)
	if binding.SessionID == "" {
		return NewValidationError("session_id", "session id is required")
	}
	key := SessionCacheKey(binding.SessionID)
	if err := r.cache.Delete(ctx, key); err != nil {
		return err
	}
	_, err := repositorycache.GetOrFetch(ctx, r.cache, key, func(context.Context) (SessionBinding, error) {
		return binding, nil
	})
	return err
}

func (r *CachedSessionRegistry) Lookup(ctx context.Context, sessionID string) (SessionBinding, error) {
	if r == nil || r.cache == nil {
		return SessionBinding{}, ErrSessionNotFound
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionBinding{}, ErrSessionNotFound
	}
	return repositorycache.GetOrFetch(ctx, r.cache, SessionCacheKey(sessionID), func(context.Context) (SessionBinding, error) {
		return SessionBinding{}, ErrSessionNotFound
	})
}

var _ SessionRegistry = (*CachedSessionRegistry)(nil)
