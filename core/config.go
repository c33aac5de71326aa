package core

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	MinTokenDurationMinutes = 1
	MaxTokenDurationMinutes = 1440
)

type ProcessorConfig struct {
	BaseURL         string `koanf:"base_url" mapstructure:"base_url"`
	ClientID        string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret    string `koanf:"client_secret" mapstructure:"client_secret"`
	PrivateKeyPath  string `koanf:"private_key_path" mapstructure:"private_key_path"`
	PrivateKeyPEM   string `koanf:"private_key_pem" mapstructure:"private_key_pem"`
	TimeoutMS       int    `koanf:"timeout_ms" mapstructure:"timeout_ms"`
	DefaultDuration int    `koanf:"default_duration" mapstructure:"default_duration"`
	MCC             string `koanf:"mcc" mapstructure:"mcc"`
	Version         string `koanf:"version" mapstructure:"version"`
	Channel         string `koanf:"channel" mapstructure:"channel"`
	TokenPath       string `koanf:"token_path" mapstructure:"token_path"`
	InquiryPath     string `koanf:"inquiry_path" mapstructure:"inquiry_path"`
	PaymentPath     string `koanf:"payment_path" mapstructure:"payment_path"`
	AdvicePath      string `koanf:"advice_path" mapstructure:"advice_path"`
	ReversalPath    string `koanf:"reversal_path" mapstructure:"reversal_path"`
	StatusPath      string `koanf:"status_path" mapstructure:"status_path"`
}

func (c ProcessorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Endpoint joins the base url and path without doubling slashes.
func (c ProcessorConfig) Endpoint(path string) string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

type TokenConfig struct {
	SafetyBufferSeconds int  `koanf:"safety_buffer_seconds" mapstructure:"safety_buffer_seconds"`
	Persist             bool `koanf:"persist" mapstructure:"persist"`
}

func (c TokenConfig) SafetyBuffer() time.Duration {
	return time.Duration(c.SafetyBufferSeconds) * time.Second
}

type SessionConfig struct {
	TTLSeconds int `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type ServerConfig struct {
	Host       string   `koanf:"host" mapstructure:"host"`
	Port       int      `koanf:"port" mapstructure:"port"`
	AllowedIPs []string `koanf:"allowed_ips" mapstructure:"allowed_ips"`
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), fmt.Sprintf("%d", c.Port))
}

type LoggingConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Processor   ProcessorConfig `koanf:"processor" mapstructure:"processor"`
	Token       TokenConfig     `koanf:"token" mapstructure:"token"`
	Session     SessionConfig   `koanf:"session" mapstructure:"session"`
	Store       StoreConfig     `koanf:"store" mapstructure:"store"`
	Server      ServerConfig    `koanf:"server" mapstructure:"server"`
	Logging     LoggingConfig   `koanf:"logging" mapstructure:"logging"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "billgate",
		Processor: ProcessorConfig{
			TimeoutMS:       30000,
			DefaultDuration: 60,
			Version:         "2",
			Channel:         "API",
			TokenPath:       "/token",
			InquiryPath:     "/h2hmkm/inquiry",
			PaymentPath:     "/h2hmkm/payment",
			AdvicePath:      "/h2hmkm/advice",
			ReversalPath:    "/reversal",
			StatusPath:      "/status",
		},
		Token: TokenConfig{
			SafetyBufferSeconds: 300,
		},
		Session: SessionConfig{
			TTLSeconds: 1800,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Processor.TimeoutMS <= 0 {
		return fmt.Errorf("core: processor.timeout_ms must be positive")
	}
	if c.Processor.DefaultDuration < MinTokenDurationMinutes || c.Processor.DefaultDuration > MaxTokenDurationMinutes {
		return fmt.Errorf("core: processor.default_duration must be within %d..%d", MinTokenDurationMinutes, MaxTokenDurationMinutes)
	}
	if mcc := strings.TrimSpace(c.Processor.MCC); mcc != "" && !isDigits(mcc, 4) {
		return fmt.Errorf("core: processor.mcc must be 4 digits")
	}
	if c.Token.SafetyBufferSeconds < 0 {
		return fmt.Errorf("core: token.safety_buffer_seconds must not be negative")
	}
	if c.Session.TTLSeconds <= 0 {
		return fmt.Errorf("core: session.ttl_seconds must be positive")
	}
	switch strings.TrimSpace(c.Store.Driver) {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("core: store.driver %q is not supported", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.Driver) != "" && strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("core: store.dsn is required when store.driver is set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("core: server.port is out of range")
	}
	for _, ip := range c.Server.AllowedIPs {
		if net.ParseIP(strings.TrimSpace(ip)) == nil {
			return fmt.Errorf("core: server.allowed_ips entry %q is not an ip address", ip)
		}
	}
	return nil
}

// ValidateProcessor checks the settings needed to talk to the processor.
// It is separate from Validate so that defaults stay valid on their own.
func (c Config) ValidateProcessor() error {
	if strings.TrimSpace(c.Processor.BaseURL) == "" {
		return fmt.Errorf("core: processor.base_url is required")
	}
	if strings.TrimSpace(c.Processor.ClientID) == "" {
		return fmt.Errorf("core: processor.client_id is required")
	}
	if strings.TrimSpace(c.Processor.ClientSecret) == "" {
		return fmt.Errorf("core: processor.client_secret is required")
	}
	return nil
}

func isDigits(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
