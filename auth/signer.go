package auth

import (
	"bytes"
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-billgate/core"
)

const (
	// ConnectionScheme is sent as the Authorization value on token requests and
	// prefixes the RSA-signed content.
	ConnectionScheme = "MKM-AUTH-1.0"
	// TimestampLayout renders times in the processor zone with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000-07:00"
)

var processorZone = time.FixedZone("UTC+7", 7*60*60)

// Credentials identify the gateway to the processor. They are loaded once at
// startup and never mutated.
type Credentials struct {
	ClientID     string
	ClientSecret string
	PrivateKey   *rsa.PrivateKey
}

// SignedHeaders carries a timestamp and the signature computed over it.
type SignedHeaders struct {
	ClientID  string
	Timestamp string
	Signature string
}

// Headers renders the connection headers expected by the token endpoint.
func (h SignedHeaders) Headers() map[string]string {
	return map[string]string{
		"Authorization": ConnectionScheme,
		"X-Client-Id":   h.ClientID,
		"X-Timestamp":   h.Timestamp,
		"X-Signature":   h.Signature,
	}
}

type Signer struct {
	credentials Credentials
	now         func() time.Time
}

type SignerOption func(*Signer)

func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSigner(credentials Credentials, opts ...SignerOption) (*Signer, error) {
	credentials.ClientID = strings.TrimSpace(credentials.ClientID)
	if credentials.ClientID == "" {
		return nil, core.NewSignatureError(nil, "client id is required")
	}
	if credentials.ClientSecret == "" {
		return nil, core.NewSignatureError(nil, "client secret is required")
	}
	signer := &Signer{
		credentials: credentials,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(signer)
		}
	}
	return signer, nil
}

func (s *Signer) ClientID() string {
	return s.credentials.ClientID
}

// SignConnection produces a fresh timestamp and the RSA connection signature for it.
func (s *Signer) SignConnection() (SignedHeaders, error) {
	timestamp := Timestamp(s.now())
	signature, err := ConnectionSignature(
		s.credentials.ClientID,
		s.credentials.ClientSecret,
		s.credentials.PrivateKey,
		timestamp,
	)
	if err != nil {
		return SignedHeaders{}, err
	}
	return SignedHeaders{
		ClientID:  s.credentials.ClientID,
		Timestamp: timestamp,
		Signature: signature,
	}, nil
}

// SignTransaction minifies payload once and signs exactly those bytes.
func (s *Signer) SignTransaction(accessToken string, payload any) (core.SignedPayload, error) {
	if strings.TrimSpace(accessToken) == "" {
		return core.SignedPayload{}, core.NewSignatureError(nil, "access token is required for transaction signing")
	}
	body, err := Minify(payload)
	if err != nil {
		return core.SignedPayload{}, core.NewSignatureError(err, "minify transaction body")
	}
	timestamp := Timestamp(s.now())
	return core.SignedPayload{
		Body:      body,
		Timestamp: timestamp,
		Signature: TransactionSignature(s.credentials.ClientSecret, accessToken, string(body), timestamp),
	}, nil
}

func Timestamp(now time.Time) string {
	return now.In(processorZone).Format(TimestampLayout)
}

func ConnectionSignature(clientID string, clientSecret string, key *rsa.PrivateKey, timestamp string) (string, error) {
	if key == nil {
		return "", core.NewSignatureError(nil, "private key is not loaded")
	}
	mac := hmacBase64(clientSecret, clientID+":"+timestamp)
	digest := sha256.Sum256([]byte(ConnectionScheme + "/" + mac + "/" + timestamp))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", core.NewSignatureError(err, "rsa sign connection content")
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func TransactionSignature(clientSecret string, accessToken string, minifiedBody string, timestamp string) string {
	return hmacBase64(clientSecret, accessToken+"/"+minifiedBody+"/"+timestamp)
}

// Minify returns the compact JSON encoding of payload without HTML escaping.
// Raw JSON ([]byte, json.RawMessage, string) is compacted as-is. nil yields no bytes.
func Minify(payload any) ([]byte, error) {
	switch typed := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return compactRaw(typed)
	case []byte:
		return compactRaw(typed)
	case string:
		return compactRaw([]byte(typed))
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func compactRaw(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("auth: body is not valid json: %w", err)
	}
	return buf.Bytes(), nil
}

func hmacBase64(secret string, content string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(content))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
