package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// observeOperation emits the counter, latency histogram and log line for one
// gateway call. The result label follows the classified state, not just err.
func (g *Gateway) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	outcome *TransactionOutcome,
	err error,
	fields map[string]any,
) {
	if g == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	result := "success"
	switch {
	case err != nil:
		result = "failure"
	case outcome != nil && outcome.State == StateFailed:
		result = "failure"
	case outcome != nil && outcome.State == StatePendingConfirmation:
		result = "pending"
	}

	elapsed := time.Since(startedAt).Milliseconds()
	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["result"] = result
	contextFields["duration_ms"] = elapsed
	if outcome != nil {
		contextFields["state"] = string(outcome.State)
		if outcome.StatusCode != "" {
			contextFields["status_code"] = outcome.StatusCode
		}
		if outcome.UseAdvice {
			contextFields["use_advice"] = true
		}
	}
	if err != nil {
		contextFields["error"] = err.Error()
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			contextFields["error_category"] = fmt.Sprint(rich.Category)
			contextFields["error_text_code"] = rich.TextCode
			if len(rich.Metadata) > 0 {
				contextFields["error_metadata"] = rich.Metadata
			}
		}
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	for _, key := range []string{"status_code", "product_code", "mcc"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	g.recordCounter(ctx, "billgate."+operation+".total", 1, tags)
	g.recordHistogram(ctx, "billgate."+operation+".duration_ms", float64(elapsed), tags)

	switch result {
	case "failure":
		g.logError(ctx, operation+" failed", contextFields)
	case "pending":
		g.logWarn(ctx, operation+" awaiting confirmation", contextFields)
	default:
		g.logInfo(ctx, operation+" succeeded", contextFields)
	}
}

func (g *Gateway) logInfo(ctx context.Context, message string, fields map[string]any) {
	g.logWithLevel(ctx, "info", message, fields)
}

func (g *Gateway) logWarn(ctx context.Context, message string, fields map[string]any) {
	g.logWithLevel(ctx, "warn", message, fields)
}

func (g *Gateway) logError(ctx context.Context, message string, fields map[string]any) {
	g.logWithLevel(ctx, "error", message, fields)
}

func (g *Gateway) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if g == nil || g.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := g.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (g *Gateway) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if g == nil || g.metricsRecorder == nil {
		return
	}
	g.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (g *Gateway) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if g == nil || g.metricsRecorder == nil {
		return
	}
	g.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
