package service

import "strings"

// LedgerState describes what the ledger knows about a key.
type LedgerState int

const (
	// LedgerFree means the key is neither persisted nor claimed.
	LedgerFree LedgerState = iota
	// LedgerPersisted means the key already exists in the store.
	LedgerPersisted
	// LedgerClaimed means an earlier row of the current import took the key.
	LedgerClaimed
)

// DuplicateLedger tracks identifiers taken by the store or the running import.
// Keys compare case-insensitively. A ledger lives for one import call.
type DuplicateLedger struct {
	entries map[string]LedgerState
}

// NewDuplicateLedger seeds a ledger from the persisted identifiers.
func NewDuplicateLedger(existing []string) *DuplicateLedger {
	ledger := &DuplicateLedger{entries: make(map[string]LedgerState, len(existing))}
	for _, key := range existing {
		if normalized := ledgerKey(key); normalized != "" {
			ledger.entries[normalized] = LedgerPersisted
		}
	}
	return ledger
}

// Contains reports whether key is persisted or claimed.
func (l *DuplicateLedger) Contains(key string) bool {
	return l.Lookup(key) != LedgerFree
}

// Lookup returns the state of key.
func (l *DuplicateLedger) Lookup(key string) LedgerState {
	normalized := ledgerKey(key)
	if normalized == "" {
		return LedgerFree
	}
	return l.entries[normalized]
}

// Claim reserves key for the current import. Persisted keys keep their state.
func (l *DuplicateLedger) Claim(key string) {
	normalized := ledgerKey(key)
	if normalized == "" {
		return
	}
	if _, exists := l.entries[normalized]; exists {
		return
	}
	l.entries[normalized] = LedgerClaimed
}

// Len returns the number of tracked keys.
func (l *DuplicateLedger) Len() int {
	return len(l.entries)
}

func ledgerKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
