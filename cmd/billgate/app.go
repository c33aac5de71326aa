package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"

	"github.com/goliatone/go-billgate/adapters/gologger"
	"github.com/goliatone/go-billgate/auth"
	"github.com/goliatone/go-billgate/core"
	"github.com/goliatone/go-billgate/httpapi"
	"github.com/goliatone/go-billgate/migrations"
	sqlstore "github.com/goliatone/go-billgate/store/sql"
	"github.com/goliatone/go-billgate/transport"
)

const (
	shutdownTimeout = 15 * time.Second
	tokenCacheTTL   = time.Minute
)

func (c *cli) overrides() core.Config {
	return core.Config{Logging: core.LoggingConfig{Level: strings.TrimSpace(c.LogLevel)}}
}

// loadConfig layers the optional TOML file under command line overrides.
func loadConfig(ctx context.Context, path string, overrides core.Config) (core.Config, error) {
	loader := core.NewTOMLFileLoader(path)
	cfg, err := core.ResolveConfig(ctx, overrides, core.NewCfgxConfigProvider(loader), core.GoOptionsResolver{})
	if err != nil {
		return core.Config{}, fmt.Errorf("billgate: load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg core.Config, out io.Writer) core.Logger {
	return gologger.NewProvider(cfg.Logging, out).GetLogger(cfg.ServiceName)
}

// App owns the wired gateway and its HTTP server.
type App struct {
	Addr string

	config   core.Config
	provider core.LoggerProvider
	logger   core.Logger
	client   *persistence.Client
	gateway  *core.Gateway
	handler  http.Handler

	srv *http.Server
	wg  sync.WaitGroup
}

func NewApp(ctx context.Context, cfg core.Config, logOut io.Writer) (*App, error) {
	if err := cfg.ValidateProcessor(); err != nil {
		return nil, err
	}
	provider := gologger.NewProvider(cfg.Logging, logOut)
	app := &App{
		config:   cfg,
		provider: provider,
		logger:   provider.GetLogger(cfg.ServiceName),
	}

	credentials, err := auth.LoadCredentials(cfg.Processor)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(credentials)
	if err != nil {
		return nil, err
	}
	adapter := transport.NewProcessorAdapter(cfg.Processor, provider.GetLogger("transport"))

	gatewayOpts := []core.Option{
		core.WithLoggerProvider(provider),
		core.WithTransactionSigner(signer),
		core.WithTransport(adapter),
	}
	tokenOpts := []auth.TokenManagerOption{auth.WithTokenLogger(provider.GetLogger("token"))}

	if strings.TrimSpace(cfg.Store.Driver) != "" {
		factory, err := app.openStore(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.Token.Persist {
			tokenOpts = append(tokenOpts, auth.WithTokenStore(factory.TokenStore()))
		}
		gatewayOpts = append(gatewayOpts, core.WithLedger(factory.LedgerStore()))
	}

	tokens, err := auth.NewTokenManager(auth.TokenManagerConfigFrom(cfg), signer, adapter, tokenOpts...)
	if err != nil {
		app.closeStore()
		return nil, err
	}
	gatewayOpts = append(gatewayOpts, core.WithTokenProvider(tokens))

	gateway, err := core.NewGateway(cfg, gatewayOpts...)
	if err != nil {
		app.closeStore()
		return nil, err
	}
	app.gateway = gateway
	app.handler = httpapi.NewAPI(gateway,
		httpapi.WithLogger(provider.GetLogger("httpapi")),
		httpapi.WithAllowedIPs(cfg.Server.AllowedIPs),
		httpapi.WithServiceName(cfg.ServiceName),
	).Routes()
	return app, nil
}

func (a *App) openStore(ctx context.Context) (*sqlstore.RepositoryFactory, error) {
	client, err := sqlstore.Open(sqlstore.PersistenceConfig{
		Store:       a.config.Store,
		ServiceName: a.config.ServiceName,
	})
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(ctx, client, sqlstore.MigrationDialect(a.config.Store.Driver)); err != nil {
		_ = client.Close()
		return nil, err
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithTokenCache(tokenCacheTTL))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	a.client = client
	a.logger.Info("store ready", "driver", a.config.Store.Driver)
	return factory, nil
}

func (a *App) closeStore() {
	if a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		a.logger.Error("closing store", "error", err)
	}
	a.client = nil
}

func (a *App) Gateway() *core.Gateway {
	return a.gateway
}

// Start binds the listener and serves in the background.
func (a *App) Start() error {
	l, err := net.Listen("tcp", a.config.Server.Address())
	if err != nil {
		return fmt.Errorf("billgate: listen %s: %w", a.config.Server.Address(), err)
	}
	a.Addr = l.Addr().String()
	a.srv = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("http server started", "addr", a.Addr)
		if err := a.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server failed", "error", err)
		}
		a.logger.Info("http server stopped")
	}()
	return nil
}

// Shutdown drains in-flight requests before closing the store.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.srv != nil {
		err = a.srv.Shutdown(ctx)
		a.wg.Wait()
	}
	a.closeStore()
	return err
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		a.closeStore()
		return err
	}
	<-ctx.Done()
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

func migrate(ctx context.Context, cfg core.Config, logger core.Logger) error {
	if strings.TrimSpace(cfg.Store.Driver) == "" {
		return fmt.Errorf("billgate: store.driver is required to migrate")
	}
	client, err := sqlstore.Open(sqlstore.PersistenceConfig{Store: cfg.Store, ServiceName: cfg.ServiceName})
	if err != nil {
		return err
	}
	defer client.Close()
	if err := migrations.Apply(ctx, client, sqlstore.MigrationDialect(cfg.Store.Driver)); err != nil {
		return err
	}
	logger.Info("migrations applied", "driver", cfg.Store.Driver)
	return nil
}
