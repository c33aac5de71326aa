package sqlstore

import (
	"context"
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-billgate/core"
)

const tokenCacheKey = "billgate::token::v1::" + currentTokenSlot

// CachedTokenStore fronts a durable token store with a read cache. Writes go
// to the base store first and then evict the cached slot.
type CachedTokenStore struct {
	base  core.TokenStore
	cache repositorycache.CacheService
}

func NewCachedTokenStore(base core.TokenStore, cacheService repositorycache.CacheService) (*CachedTokenStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base token store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: token cache service is required")
	}
	return &CachedTokenStore{base: base, cache: cacheService}, nil
}

func (s *CachedTokenStore) Load(ctx context.Context) (core.Token, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Token{}, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, tokenCacheKey, func(ctx context.Context) (core.Token, error) {
		return s.base.Load(ctx)
	})
}

func (s *CachedTokenStore) Save(ctx context.Context, token core.Token) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached token store is not configured")
	}
	if err := s.base.Save(ctx, token); err != nil {
		return err
	}
	return s.cache.Delete(ctx, tokenCacheKey)
}

func (s *CachedTokenStore) Clear(ctx context.Context) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached token store is not configured")
	}
	if err := s.base.Clear(ctx); err != nil {
		return err
	}
	return s.cache.Delete(ctx, tokenCacheKey)
}
