package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"

	"github.com/goliatone/go-billgate/status"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type gatewayBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	tokens          TokenProvider
	signer          TransactionSigner
	transport       TransportAdapter
	ledger          TransactionLedger
	claims          TransactionClaims
	sessions        SessionRegistry
	table           *status.Table
	now             func() time.Time
	newID           func() string
}

type Option func(*gatewayBuilder)

func WithLogger(logger Logger) Option {
	return func(b *gatewayBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *gatewayBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *gatewayBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *gatewayBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *gatewayBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *gatewayBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenProvider(provider TokenProvider) Option {
	return func(b *gatewayBuilder) {
		b.tokens = provider
	}
}

func WithTransactionSigner(signer TransactionSigner) Option {
	return func(b *gatewayBuilder) {
		b.signer = signer
	}
}

func WithTransport(adapter TransportAdapter) Option {
	return func(b *gatewayBuilder) {
		b.transport = adapter
	}
}

func WithLedger(ledger TransactionLedger) Option {
	return func(b *gatewayBuilder) {
		b.ledger = ledger
	}
}

func WithTransactionClaims(claims TransactionClaims) Option {
	return func(b *gatewayBuilder) {
		b.claims = claims
	}
}

func WithSessionRegistry(registry SessionRegistry) Option {
	return func(b *gatewayBuilder) {
		b.sessions = registry
	}
}

func WithStatusTable(table *status.Table) Option {
	return func(b *gatewayBuilder) {
		b.table = table
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *gatewayBuilder) {
		b.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(b *gatewayBuilder) {
		b.newID = newID
	}
}

func defaultGatewayBuilder(runtime Config) gatewayBuilder {
	loggerProvider, logger := glog.Resolve("billgate", nil, nil)
	return gatewayBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		table:           status.Default(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return gatewayErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveConfig layers defaults, provider values and runtime overrides, in
// that order of precedence.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as a layer. Zero values are skipped unless
// includeZero is set, so that a sparse runtime config only overrides what it
// names.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	processor := map[string]any{}
	putString(processor, "base_url", cfg.Processor.BaseURL, includeZero)
	putString(processor, "client_id", cfg.Processor.ClientID, includeZero)
	putString(processor, "client_secret", cfg.Processor.ClientSecret, includeZero)
	putString(processor, "private_key_path", cfg.Processor.PrivateKeyPath, includeZero)
	putString(processor, "private_key_pem", cfg.Processor.PrivateKeyPEM, includeZero)
	putInt(processor, "timeout_ms", cfg.Processor.TimeoutMS, includeZero)
	putInt(processor, "default_duration", cfg.Processor.DefaultDuration, includeZero)
	putString(processor, "mcc", cfg.Processor.MCC, includeZero)
	putString(processor, "version", cfg.Processor.Version, includeZero)
	putString(processor, "channel", cfg.Processor.Channel, includeZero)
	putString(processor, "token_path", cfg.Processor.TokenPath, includeZero)
	putString(processor, "inquiry_path", cfg.Processor.InquiryPath, includeZero)
	putString(processor, "payment_path", cfg.Processor.PaymentPath, includeZero)
	putString(processor, "advice_path", cfg.Processor.AdvicePath, includeZero)
	putString(processor, "reversal_path", cfg.Processor.ReversalPath, includeZero)
	putString(processor, "status_path", cfg.Processor.StatusPath, includeZero)
	putSection(layer, "processor", processor)

	token := map[string]any{}
	putInt(token, "safety_buffer_seconds", cfg.Token.SafetyBufferSeconds, includeZero)
	if includeZero || cfg.Token.Persist {
		token["persist"] = cfg.Token.Persist
	}
	putSection(layer, "token", token)

	session := map[string]any{}
	putInt(session, "ttl_seconds", cfg.Session.TTLSeconds, includeZero)
	putSection(layer, "session", session)

	store := map[string]any{}
	putString(store, "driver", cfg.Store.Driver, includeZero)
	putString(store, "dsn", cfg.Store.DSN, includeZero)
	if includeZero || cfg.Store.Debug {
		store["debug"] = cfg.Store.Debug
	}
	putSection(layer, "store", store)

	server := map[string]any{}
	putString(server, "host", cfg.Server.Host, includeZero)
	putInt(server, "port", cfg.Server.Port, includeZero)
	if includeZero || len(cfg.Server.AllowedIPs) > 0 {
		server["allowed_ips"] = append([]string(nil), cfg.Server.AllowedIPs...)
	}
	putSection(layer, "server", server)

	logging := map[string]any{}
	putString(logging, "level", cfg.Logging.Level, includeZero)
	putString(logging, "format", cfg.Logging.Format, includeZero)
	putSection(layer, "logging", logging)

	return layer
}

func putString(section map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		section[key] = value
	}
}

func putInt(section map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		section[key] = value
	}
}

func putSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}
