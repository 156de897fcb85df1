package registry

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Entry is the curated registry row for one tracked property. The registry is
// the source of truth for which properties are in scope, their contractual
// allowance and their notification recipients.
type Entry struct {
	PropertyKey string
	Allowance   decimal.Decimal
	To          string
	Cc          []string
}

// Validate checks a single entry.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.PropertyKey) == "" {
		return &Error{Reason: "empty property key"}
	}
	if e.Allowance.IsNegative() {
		return &Error{Reason: "negative allowance for " + e.PropertyKey}
	}
	return nil
}

// ValidateSet checks a full registry load: at least one entry and unique
// property keys.
func ValidateSet(entries []Entry) error {
	if len(entries) == 0 {
		return &Error{Reason: "no entries"}
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return err
		}
		if _, ok := seen[entry.PropertyKey]; ok {
			return &Error{Reason: "duplicate property key " + entry.PropertyKey}
		}
		seen[entry.PropertyKey] = struct{}{}
	}
	return nil
}

// Index builds a lookup by property key.
func Index(entries []Entry) map[string]Entry {
	index := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		index[entry.PropertyKey] = entry
	}
	return index
}
