package sqlstore

import (
	"fmt"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-billgate/core"
)

// RepositoryFactory builds the gateway's durable stores over one bun db.
type RepositoryFactory struct {
	db *bun.DB

	tokenStore  core.TokenStore
	ledgerStore *LedgerStore
	tokenCache  time.Duration
}

type FactoryOption func(*RepositoryFactory)

// WithTokenCache fronts the token slot with a read cache holding entries for ttl.
func WithTokenCache(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.tokenCache = ttl
	}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return NewRepositoryFactoryFromDB(client.DB(), opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	factory := &RepositoryFactory{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	if err := factory.initStores(); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) TokenStore() core.TokenStore {
	if f == nil {
		return nil
	}
	return f.tokenStore
}

func (f *RepositoryFactory) LedgerStore() *LedgerStore {
	if f == nil {
		return nil
	}
	return f.ledgerStore
}

func (f *RepositoryFactory) initStores() error {
	tokenStore, err := NewTokenStore(f.db)
	if err != nil {
		return err
	}
	f.tokenStore = tokenStore
	if f.tokenCache > 0 {
		config := repositorycache.DefaultConfig()
		config.TTL = f.tokenCache
		cacheService, cacheErr := repositorycache.NewCacheService(config)
		if cacheErr != nil {
			return fmt.Errorf("sqlstore: token cache service: %w", cacheErr)
		}
		cached, cacheErr := NewCachedTokenStore(tokenStore, cacheService)
		if cacheErr != nil {
			return cacheErr
		}
		f.tokenStore = cached
	}

	ledgerStore, err := NewLedgerStore(f.db)
	if err != nil {
		return err
	}
	f.ledgerStore = ledgerStore
	return nil
}
