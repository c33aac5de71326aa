package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field precedence for processor responses. The processor is not consistent
// about casing across versions, so each field is read from the first key
// present.
var (
	statusKeys         = []string{"Status", "status_code", "StatusCode", "ResponseCode"}
	messageKeys        = []string{"ErrorMessage", "error_message", "error_description", "message", "Message"}
	sessionKeys        = []string{"SessionId", "session_id", "SessionID"}
	clientIDKeys       = []string{"ClientId", "client_id"}
	productCodeKeys    = []string{"KodeProduk", "product_code"}
	productNameKeys    = []string{"NamaProduk", "product_name"}
	customerNumberKeys = []string{"NomorPelanggan", "customer_number"}
	billKeys           = []string{"Tagihan", "bills"}
	billPeriodKeys     = []string{"Periode", "period"}
	billAmountKeys     = []string{"Total", "amount"}
	totalKeys          = []string{"TotalTagihan", "total_amount"}
	balanceKeys        = []string{"Balance", "balance"}
)

// DecodeFields parses a processor body into a generic field map. Numbers are
// kept as json.Number. An empty or non-object body yields an empty map.
func DecodeFields(body []byte) map[string]any {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]any{}
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	fields := map[string]any{}
	if err := decoder.Decode(&fields); err != nil {
		return map[string]any{}
	}
	return fields
}

// ReadString returns the first non-empty value found under keys, rendered as
// a string.
func ReadString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		var text string
		switch typed := value.(type) {
		case string:
			text = typed
		case json.Number:
			text = typed.String()
		case float64:
			text = strconv.FormatFloat(typed, 'f', -1, 64)
		case bool:
			text = strconv.FormatBool(typed)
		default:
			text = fmt.Sprint(typed)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

// ReadInt returns the first integral value found under keys. Numeric strings
// are accepted.
func ReadInt(fields map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if parsed, ok := toInt64(value); ok {
			return parsed, true
		}
	}
	return 0, false
}

// ReadStatusCode returns the processor status code. Numeric codes are padded
// back to four digits since a JSON number drops leading zeros.
func ReadStatusCode(fields map[string]any) string {
	for _, key := range statusKeys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case json.Number, float64:
			if parsed, ok := toInt64(typed); ok && parsed >= 0 {
				return fmt.Sprintf("%04d", parsed)
			}
		case string:
			if code := strings.TrimSpace(typed); code != "" {
				return code
			}
		}
	}
	return ""
}

func readBills(fields map[string]any) []Bill {
	for _, key := range billKeys {
		raw, ok := fields[key].([]any)
		if !ok {
			continue
		}
		bills := make([]Bill, 0, len(raw))
		for _, item := range raw {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			period, _ := ReadInt(entry, billPeriodKeys...)
			amount, _ := ReadInt(entry, billAmountKeys...)
			bills = append(bills, Bill{Period: int(period), Amount: amount})
		}
		return bills
	}
	return nil
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case json.Number:
		if parsed, err := typed.Int64(); err == nil {
			return parsed, true
		}
		if parsed, err := typed.Float64(); err == nil && parsed == math.Trunc(parsed) {
			return int64(parsed), true
		}
	case float64:
		if typed == math.Trunc(typed) {
			return int64(typed), true
		}
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
