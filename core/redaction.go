package core

import "strings"

const RedactedValue = "[REDACTED]"

var sensitiveKeyParts = []string{
	"secret",
	"token",
	"authorization",
	"signature",
	"private_key",
	"password",
	"credential",
}

// RedactSensitiveMap copies metadata with credential-like keys masked. Nested
// maps and slices are walked.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// isTraceabilityKey lists keys that look sensitive but identify a call.
func isTraceabilityKey(key string) bool {
	switch key {
	case "transaction_id",
		"session_id",
		"request_id",
		"client_id",
		"status_code",
		"token_type",
		"token_duration",
		"operation":
		return true
	default:
		return false
	}
}
