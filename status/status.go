// Package status classifies processor status codes per operation.
package status

import (
	"fmt"
	"slices"
	"strings"
)

type Severity string

const (
	SeveritySuccess  Severity = "SUCCESS"
	SeverityFailed   Severity = "FAILED"
	SeverityPending  Severity = "PENDING"
	SeverityInvalid  Severity = "INVALID"
	SeverityUnmapped Severity = "UNMAPPED"
)

type Operation string

const (
	OperationInquiry  Operation = "inquiry"
	OperationPayment  Operation = "payment"
	OperationAdvice   Operation = "advice"
	OperationReversal Operation = "reversal"
	OperationStatus   Operation = "status"
	OperationBalance  Operation = "balance"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionUseAdvice     Action = "use_advice"
	ActionContactBiller Action = "contact_biller"
)

// Entry is one row of the status table. A nil per-operation severity means
// the code is not expected for that operation.
type Entry struct {
	Code         string
	Description  string
	Severity     Severity
	Inquiry      *Severity
	Payment      *Severity
	Advice       *Severity
	UserMessage  string
	Action       Action
	ActionDetail string
}

func (e Entry) forOperation(op Operation) (Severity, bool) {
	var value *Severity
	switch op {
	case OperationInquiry:
		value = e.Inquiry
	case OperationPayment:
		value = e.Payment
	case OperationAdvice:
		value = e.Advice
	case OperationReversal, OperationStatus, OperationBalance:
		return e.Severity, true
	default:
		return "", false
	}
	if value == nil {
		return "", false
	}
	return *value, true
}

// Table is an immutable lookup keyed by status code.
type Table struct {
	entries   map[string]Entry
	ambiguous map[string]struct{}
}

func NewTable(entries ...Entry) (*Table, error) {
	table := &Table{
		entries:   make(map[string]Entry, len(entries)),
		ambiguous: map[string]struct{}{},
	}
	for _, entry := range entries {
		code := strings.TrimSpace(entry.Code)
		if !isStatusCode(code) {
			return nil, fmt.Errorf("status: code %q must be 4 digits", entry.Code)
		}
		if _, exists := table.entries[code]; exists {
			return nil, fmt.Errorf("status: duplicate code %s", code)
		}
		switch entry.Severity {
		case SeveritySuccess, SeverityFailed, SeverityPending, SeverityInvalid:
		default:
			return nil, fmt.Errorf("status: code %s has invalid severity %q", code, entry.Severity)
		}
		if entry.Action == "" {
			entry.Action = ActionNone
		}
		entry.Code = code
		entry.Inquiry = cloneSeverity(entry.Inquiry)
		entry.Payment = cloneSeverity(entry.Payment)
		entry.Advice = cloneSeverity(entry.Advice)
		table.entries[code] = entry
	}
	return table, nil
}

// WithAmbiguous returns a copy of the table that treats the given codes as
// ambiguous after a timeout, regardless of their canonical severity.
func (t *Table) WithAmbiguous(codes ...string) *Table {
	next := &Table{
		entries:   t.entries,
		ambiguous: make(map[string]struct{}, len(t.ambiguous)+len(codes)),
	}
	for code := range t.ambiguous {
		next.ambiguous[code] = struct{}{}
	}
	for _, code := range codes {
		next.ambiguous[strings.TrimSpace(code)] = struct{}{}
	}
	return next
}

// Lookup returns a copy of the entry for code.
func (t *Table) Lookup(code string) (Entry, bool) {
	entry, ok := t.entry(code)
	if !ok {
		return Entry{}, false
	}
	entry.Inquiry = cloneSeverity(entry.Inquiry)
	entry.Payment = cloneSeverity(entry.Payment)
	entry.Advice = cloneSeverity(entry.Advice)
	return entry, true
}

func (t *Table) entry(code string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	entry, ok := t.entries[strings.TrimSpace(code)]
	return entry, ok
}

func (t *Table) Classify(code string, op Operation) Severity {
	entry, ok := t.entry(code)
	if !ok {
		return SeverityUnmapped
	}
	severity, ok := entry.forOperation(op)
	if !ok {
		return SeverityUnmapped
	}
	return severity
}

func (t *Table) RecommendedAction(code string) Action {
	entry, ok := t.entry(code)
	if !ok || entry.Action == "" {
		return ActionNone
	}
	return entry.Action
}

func (t *Table) IsAmbiguous(code string) bool {
	if t == nil {
		return false
	}
	_, ok := t.ambiguous[strings.TrimSpace(code)]
	return ok
}

func (t *Table) ShouldUseAdvice(code string) bool {
	entry, ok := t.entry(code)
	if ok && entry.Severity == SeverityPending {
		return true
	}
	return t.IsAmbiguous(code)
}

func (t *Table) ShouldHoldFunds(code string) bool {
	entry, ok := t.entry(code)
	if !ok {
		return false
	}
	return entry.Severity == SeverityPending || entry.Severity == SeverityInvalid
}

func (t *Table) UserMessage(code string) string {
	entry, ok := t.entry(code)
	if !ok || strings.TrimSpace(entry.UserMessage) == "" {
		return fmt.Sprintf("Unknown status code: %s", strings.TrimSpace(code))
	}
	return entry.UserMessage
}

func (t *Table) Description(code string) string {
	entry, ok := t.entry(code)
	if !ok {
		return ""
	}
	return entry.Description
}

// Codes returns every known code in ascending order.
func (t *Table) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.entries))
	for code := range t.entries {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

func IsTerminalSuccess(severity Severity) bool { return severity == SeveritySuccess }
func IsTerminalFailure(severity Severity) bool { return severity == SeverityFailed }
func IsPending(severity Severity) bool         { return severity == SeverityPending }
func IsInvalidRequest(severity Severity) bool  { return severity == SeverityInvalid }
func IsUnmapped(severity Severity) bool        { return severity == SeverityUnmapped }

func cloneSeverity(value *Severity) *Severity {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func isStatusCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
