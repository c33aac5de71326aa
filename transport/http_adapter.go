package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-billgate/core"
)

const KindHTTP = "http"

const (
	defaultClientTimeout           = 30 * time.Second
	defaultResponseBodyLimit int64 = 1 << 20
	defaultUserAgent               = "billgate/1"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPAdapter sends signed processor calls over HTTP. The body it is given is
// sent byte for byte since the signature covers it.
type HTTPAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	Logger               core.Logger
}

func NewHTTPAdapter(client HTTPDoer) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &HTTPAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{"User-Agent": defaultUserAgent},
		MaxResponseBodyBytes: defaultResponseBodyLimit,
		Logger:               glog.Nop(),
	}
}

// NewProcessorAdapter builds an adapter whose client timeout follows the
// processor timeout.
func NewProcessorAdapter(cfg core.ProcessorConfig, logger core.Logger) *HTTPAdapter {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	adapter := NewHTTPAdapter(&http.Client{Timeout: timeout})
	adapter.Logger = glog.Ensure(logger)
	return adapter
}

func (*HTTPAdapter) Kind() string {
	return KindHTTP
}

func (a *HTTPAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, notSentError(nil,
			"transport: http adapter requires a client",
			http.StatusInternalServerError,
			map[string]any{"adapter": KindHTTP},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return core.TransportResponse{}, notSentError(err,
			"transport: request url must be absolute",
			http.StatusBadRequest,
			map[string]any{"adapter": KindHTTP, "url": strings.TrimSpace(req.URL)},
		)
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				query.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = query.Encode()
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(requestCtx, method, target.String(), body)
	if err != nil {
		return core.TransportResponse{}, notSentError(err,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindHTTP, "method": method, "url": target.String()},
		)
	}
	for key, value := range a.DefaultHeaders {
		if key = strings.TrimSpace(key); key != "" {
			httpReq.Header.Set(key, strings.TrimSpace(value))
		}
	}
	for key, value := range req.Headers {
		if key = strings.TrimSpace(key); key != "" {
			httpReq.Header.Set(key, strings.TrimSpace(value))
		}
	}

	startedAt := time.Now()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		a.logger().Warn("processor call failed",
			"method", method,
			"path", target.Path,
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"error", err,
		)
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"adapter": KindHTTP, "method": method, "url": target.String()},
		)
	}
	defer httpRes.Body.Close()

	limit := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindHTTP, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(payload)) > limit {
		return core.TransportResponse{}, transportWrapError(
			nil,
			goerrors.CategoryExternal,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			http.StatusBadGateway,
			map[string]any{"adapter": KindHTTP, "status_code": httpRes.StatusCode, "response_limit_b": limit},
		)
	}

	elapsed := time.Since(startedAt).Milliseconds()
	a.logger().Debug("processor call completed",
		"method", method,
		"path", target.Path,
		"http_status", httpRes.StatusCode,
		"duration_ms", elapsed,
	)
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       payload,
		Metadata: map[string]any{
			"duration_ms": elapsed,
			"kind":        KindHTTP,
		},
	}, nil
}

func (a *HTTPAdapter) logger() core.Logger {
	return glog.Ensure(a.Logger)
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultResponseBodyLimit
}

var _ core.TransportAdapter = (*HTTPAdapter)(nil)
