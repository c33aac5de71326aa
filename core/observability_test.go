package core

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

func newObservedGateway(t *testing.T, transport *stubTransport) (*Gateway, *captureMetricsRecorder, *captureLogger) {
	t.Helper()
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	gateway, _ := newTestGateway(t, transport,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	return gateway, metrics, logger
}

func TestGatewayObservability_InquirySuccess(t *testing.T) {
	transport := &stubTransport{handle: replyWith(http.StatusOK, `{"Status":"0000","SessionId":"S1"}`)}
	gateway, metrics, logger := newObservedGateway(t, transport)

	if _, err := gateway.Inquiry(context.Background(), SimpleInquiryRequest{ProductCode: "1001", CustomerNumber: "1"}); err != nil {
		t.Fatalf("inquiry: %v", err)
	}
	if !hasCounter(metrics.counters, "billgate.inquiry.total", "success") {
		t.Fatalf("expected billgate.inquiry.total success counter")
	}
	if !hasHistogram(metrics.histograms, "billgate.inquiry.duration_ms", "success") {
		t.Fatalf("expected billgate.inquiry.duration_ms histogram")
	}
	if !hasLog(logger.snapshot(), "info", "inquiry succeeded", "inquiry") {
		t.Fatalf("expected inquiry succeeded structured log")
	}
}

func TestGatewayObservability_PendingPaymentLogsWarn(t *testing.T) {
	transport := &stubTransport{handle: replyWith(http.StatusOK, `{"Status":"0068"}`)}
	gateway, metrics, logger := newObservedGateway(t, transport)

	if _, err := gateway.Payment(context.Background(), samplePayment()); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if !hasCounter(metrics.counters, "billgate.payment.total", "pending") {
		t.Fatalf("expected pending payment counter")
	}
	if !hasLog(logger.snapshot(), "warn", "payment awaiting confirmation", "payment") {
		t.Fatalf("expected pending payment warn log")
	}
}

func TestGatewayObservability_UnmappedCodeIsLogged(t *testing.T) {
	transport := &stubTransport{handle: replyWith(http.StatusOK, `{"Status":"0999"}`)}
	gateway, metrics, logger := newObservedGateway(t, transport)

	_, err := gateway.Inquiry(context.Background(), SimpleInquiryRequest{ProductCode: "1001", CustomerNumber: "1"})
	if !IsUnmappedStatus(err) {
		t.Fatalf("expected unmapped status error, got %v", err)
	}
	found := false
	for _, record := range logger.snapshot() {
		if record.level == "warn" && record.msg == "processor status code not in status table" && record.fields["status_code"] == "0999" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warn log for unmapped code")
	}
	if !hasCounter(metrics.counters, "billgate.inquiry.total", "failure") {
		t.Fatalf("expected failure counter")
	}
}

func TestGatewayObservability_EnrichesStructuredErrorFields(t *testing.T) {
	gateway, _, logger := newObservedGateway(t, &stubTransport{})

	richErr := goerrors.New("processor timeout", goerrors.CategoryExternal).
		WithCode(504).
		WithTextCode(GatewayErrorNetwork)
	gateway.observeOperation(
		context.Background(),
		time.Now().UTC().Add(-100*time.Millisecond),
		"payment",
		&TransactionOutcome{State: StatePendingConfirmation},
		richErr,
		map[string]any{"transaction_id": "tx-1"},
	)

	records := logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.level != "error" {
		t.Fatalf("expected error level, got %q", last.level)
	}
	if last.fields["error_text_code"] != GatewayErrorNetwork {
		t.Fatalf("expected error_text_code %q, got %#v", GatewayErrorNetwork, last.fields["error_text_code"])
	}
	if last.fields["error_category"] != "external" {
		t.Fatalf("expected error_category external, got %#v", last.fields["error_category"])
	}
	if last.fields["transaction_id"] != "tx-1" {
		t.Fatalf("expected transaction_id propagation, got %#v", last.fields["transaction_id"])
	}
}

func TestGatewayObservability_RedactsErrorMetadata(t *testing.T) {
	gateway, _, logger := newObservedGateway(t, &stubTransport{})

	richErr := goerrors.New("token rejected", goerrors.CategoryAuth).
		WithTextCode(GatewayErrorAuth).
		WithMetadata(map[string]any{"access_token": "live-token", "http_status": 401})
	gateway.observeOperation(
		context.Background(),
		time.Now().UTC(),
		"token",
		nil,
		richErr,
		map[string]any{"transaction_id": "tx-2"},
	)

	records := logger.snapshot()
	last := records[len(records)-1]
	metadata, ok := last.fields["error_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected error metadata in log fields, got %#v", last.fields)
	}
	if metadata["access_token"] != RedactedValue {
		t.Fatalf("expected access token to be redacted, got %#v", metadata["access_token"])
	}
	if metadata["http_status"] != 401 {
		t.Fatalf("expected http status to survive, got %#v", metadata["http_status"])
	}
}

func hasCounter(items []capturedCounter, name string, result string) bool {
	for _, item := range items {
		if item.name == name && item.tags["result"] == result {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, result string) bool {
	for _, item := range items {
		if item.name == name && item.tags["result"] == result {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] == eventType {
			return true
		}
	}
	return false
}
