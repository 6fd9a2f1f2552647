package domain

import (
	"encoding/json"
	"slices"
)

const (
	CodeOrderSequence = "ORDER_SEQUENCE_CONSTRAINT"
	CodeTimeWindow    = "TIME_WINDOW_CONSTRAINT"
)

type UnassignedReason struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Ledger records why waypoints were left out of a plan, keyed by job key.
//
// It is append-only: reasons can be added and ledgers merged, but an
// existing entry can never be replaced or removed. The zero value is ready
// to use.
type Ledger struct {
	entries map[string][]UnassignedReason
}

// Add appends a reason for key. Identical reasons are recorded once.
func (l *Ledger) Add(key string, reason UnassignedReason) {
	if l.entries == nil {
		l.entries = make(map[string][]UnassignedReason)
	}
	if slices.Contains(l.entries[key], reason) {
		return
	}
	l.entries[key] = append(l.entries[key], reason)
}

func (l Ledger) Len() int { return len(l.entries) }

func (l Ledger) Has(key string) bool {
	_, ok := l.entries[key]
	return ok
}

// Return a copy of the reasons recorded for key.
func (l Ledger) Reasons(key string) []UnassignedReason {
	return slices.Clone(l.entries[key])
}

// Keys returns the ledger keys in sorted order.
func (l Ledger) Keys() []string {
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MergeLedgers returns the union of a and b. Neither input is modified.
func MergeLedgers(a, b Ledger) Ledger {
	var out Ledger
	for _, src := range []Ledger{a, b} {
		for _, k := range src.Keys() {
			for _, r := range src.entries[k] {
				out.Add(k, r)
			}
		}
	}
	return out
}

func (l Ledger) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l.entries)
}

func (l *Ledger) UnmarshalJSON(b []byte) error {
	var raw map[string][]UnassignedReason
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, reasons := range raw {
		for _, r := range reasons {
			l.Add(k, r)
		}
	}
	return nil
}
