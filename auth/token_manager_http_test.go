package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-billgate/core"
	"github.com/goliatone/go-billgate/transport"
)

func TestTokenManager_OverHTTPVerifiesConnectionSignature(t *testing.T) {
	key := sharedTestKey(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		timestamp := r.Header.Get("X-Timestamp")
		signature, err := base64.StdEncoding.DecodeString(r.Header.Get("X-Signature"))
		if err != nil || r.Header.Get("Authorization") != ConnectionScheme || r.Header.Get("X-Client-Id") != "client-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"Status":"0401","ErrorMessage":"bad headers"}`))
			return
		}
		content := ConnectionScheme + "/" + hmacBase64("secret-1", "client-1:"+timestamp) + "/" + timestamp
		digest := sha256.Sum256([]byte(content))
		if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], signature); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"Status":"0401","ErrorMessage":"signature mismatch"}`))
			return
		}
		if r.URL.Path != "/token" || r.URL.Query().Get("dur") != "30" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"Status":"0000","Token":"live-token","Expired":"2026-01-02T11:00:00.000+07:00"}`))
	}))
	defer server.Close()

	signer := newTestSigner(t)
	cfg := core.DefaultConfig()
	cfg.Processor.BaseURL = server.URL
	cfg.Processor.TimeoutMS = 2000
	manager, err := NewTokenManager(TokenManagerConfigFrom(cfg), signer, transport.NewHTTPAdapter(server.Client()))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	token, err := manager.GetToken(context.Background(), core.TokenRequest{DurationMinutes: 30})
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if token.AccessToken != "live-token" || token.ExpiresIn != 1800 {
		t.Fatalf("unexpected token %+v", token)
	}
	if _, err := manager.GetToken(context.Background(), core.TokenRequest{DurationMinutes: 30}); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one processor hit, got %d", hits.Load())
	}
}
