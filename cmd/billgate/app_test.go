package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-billgate/core"
)

func TestLoadConfigLayersFileUnderOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billgate.toml")
	content := `
service_name = "billgate-test"

[processor]
base_url = "https://processor.example"
client_id = "CLIENT"
client_secret = "secret"
mcc = "6012"

[server]
port = 8081
allowed_ips = ["10.0.0.1"]

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(context.Background(), path, core.Config{
		Logging: core.LoggingConfig{Level: "warn"},
		Server:  core.ServerConfig{Port: 9090},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "billgate-test" || cfg.Processor.MCC != "6012" {
		t.Fatalf("expected file values, got %#v", cfg)
	}
	if cfg.Server.Port != 9090 || cfg.Logging.Level != "warn" {
		t.Fatalf("expected overrides to win, got port=%d level=%q", cfg.Server.Port, cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || len(cfg.Server.AllowedIPs) != 1 {
		t.Fatalf("expected untouched file values to survive, got %#v", cfg)
	}
	if cfg.Processor.TimeoutMS != core.DefaultConfig().Processor.TimeoutMS {
		t.Fatalf("expected default timeout, got %d", cfg.Processor.TimeoutMS)
	}
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	if _, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.toml"), core.Config{}); err == nil {
		t.Fatalf("expected missing config file to fail")
	}
}

func TestNewAppRequiresProcessorSettings(t *testing.T) {
	if _, err := NewApp(context.Background(), core.DefaultConfig(), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected app without processor settings to fail")
	}
}

func TestAppServesWithSQLiteStore(t *testing.T) {
	var tokenCalls atomic.Int32
	processor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "MKM-AUTH-1.0" || r.Header.Get("X-Signature") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"Status":"0000","Token":"app-token-%d"}`, n)
	}))
	t.Cleanup(processor.Close)

	cfg := core.DefaultConfig()
	cfg.Processor.BaseURL = processor.URL
	cfg.Processor.ClientID = "CLIENT"
	cfg.Processor.ClientSecret = "secret"
	cfg.Processor.PrivateKeyPEM = testPrivateKeyPEM(t)
	cfg.Token.Persist = true
	cfg.Store = core.StoreConfig{
		Driver: "sqlite3",
		DSN:    fmt.Sprintf("file:billgate-app-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	}
	cfg.Server = core.ServerConfig{Host: "127.0.0.1", Port: 0}

	var logs bytes.Buffer
	app, err := NewApp(context.Background(), cfg, &logs)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if app.Gateway() == nil {
		t.Fatalf("expected gateway to be wired")
	}
	if err := app.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	})

	health := getEnvelope(t, "http://"+app.Addr+"/health")
	if health["code"] != "0000" {
		t.Fatalf("expected healthy envelope, got %#v", health)
	}

	for i := 0; i < 2; i++ {
		token := getEnvelope(t, "http://"+app.Addr+"/api/token")
		data, _ := token["data"].(map[string]any)
		if token["code"] != "0000" || data["access_token"] != "app-token-1" {
			t.Fatalf("expected cached token, got %#v", token)
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Fatalf("expected one token acquisition, got %d", got)
	}
	if !strings.Contains(logs.String(), "store ready") {
		t.Fatalf("expected store bootstrap to be logged, got %q", logs.String())
	}
}

func getEnvelope(t *testing.T, url string) map[string]any {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer res.Body.Close()
	var envelope map[string]any
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return envelope
}

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}
