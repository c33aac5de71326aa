package auth

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"gopkg.in/square/go-jose.v2"

	"github.com/goliatone/go-billgate/core"
)

// LoadPrivateKey parses an RSA private key from PEM (PKCS#1 or PKCS#8) or from a
// JWK document.
func LoadPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, core.NewSignatureError(nil, "private key is empty")
	}
	if trimmed[0] == '{' {
		return loadJWK(trimmed)
	}

	block, _ := pem.Decode(trimmed)
	if block == nil {
		return nil, core.NewSignatureError(nil, "private key is neither pem nor jwk")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, core.NewSignatureError(err, "parse pkcs1 private key")
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, core.NewSignatureError(err, "parse pkcs8 private key")
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, core.NewSignatureError(nil, fmt.Sprintf("pkcs8 key is %T, expected rsa", parsed))
		}
		return key, nil
	default:
		return nil, core.NewSignatureError(nil, fmt.Sprintf("unsupported pem block %q", block.Type))
	}
}

func LoadPrivateKeyFile(path string) (*rsa.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.NewSignatureError(nil, "private key path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewSignatureError(err, "read private key file")
	}
	return LoadPrivateKey(data)
}

// LoadCredentials resolves the credential from processor config. Inline key
// material wins over a key path.
func LoadCredentials(cfg core.ProcessorConfig) (Credentials, error) {
	var (
		key *rsa.PrivateKey
		err error
	)
	if inline := strings.TrimSpace(cfg.PrivateKeyPEM); inline != "" {
		key, err = LoadPrivateKey([]byte(inline))
	} else {
		key, err = LoadPrivateKeyFile(cfg.PrivateKeyPath)
	}
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: cfg.ClientSecret,
		PrivateKey:   key,
	}, nil
}

func loadJWK(data []byte) (*rsa.PrivateKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, core.NewSignatureError(err, "parse jwk private key")
	}
	key, ok := jwk.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, core.NewSignatureError(nil, fmt.Sprintf("jwk key is %T, expected rsa private key", jwk.Key))
	}
	return key, nil
}
