package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "splitledger/snapshot/v1"
	DomainLedgers  = "splitledger/ledgers/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalLedgers returns the canonical form of the active ledgers sorted by
// (debtor, creditor, id). Zero-amount and self ledgers are omitted because
// they carry no information.
func CanonicalLedgers(ledgers []Ledger) []any {
	active := make([]Ledger, 0, len(ledgers))
	for _, l := range ledgers {
		if l.Active() {
			active = append(active, l)
		}
	}
	SortLedgers(active)

	out := make([]any, len(active))
	for i, l := range active {
		out[i] = map[string]any{
			"id":       l.ID,
			"debtor":   l.Debtor,
			"creditor": l.Creditor,
			"amount":   l.Amount,
		}
	}
	return out
}

// LedgersDigest computes a content digest over the active ledgers.
// Two ledger sets with the same active balances produce the same digest
// regardless of order or of zero-amount records.
func LedgersDigest(ledgers []Ledger) (string, error) {
	data, err := MarshalCanonical(CanonicalLedgers(ledgers))
	if err != nil {
		return "", fmt.Errorf("LedgersDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLedgers, data), nil
}

// SnapshotDigest computes a content digest over users and active ledgers.
func SnapshotDigest(s Snapshot) (string, error) {
	users := make([]any, len(s.Users))
	for i, u := range s.Users {
		users[i] = map[string]any{
			"id":       u.ID,
			"username": u.Username,
		}
	}
	obj := map[string]any{
		"users":   users,
		"ledgers": CanonicalLedgers(s.Ledgers),
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}
