package ir

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// PartyID identifies a person across sessions and chats.
// No core logic depends on its internal representation.
type PartyID string

// Key returns the pre-serialized form of the id used for map keys.
func (p PartyID) Key() string {
	return string(p)
}

// String implements fmt.Stringer.
func (p PartyID) String() string {
	return string(p)
}

// User is a registered party and its display name.
type User struct {
	ID       PartyID `json:"id"`
	Username string  `json:"username"`
}

// NormalizeUsername strips a leading "@" and NFC-normalizes the name so
// mentions and stored usernames compare equal.
func NormalizeUsername(name string) string {
	return norm.NFC.String(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

// Ledger is an outstanding, directed balance: Debtor owes Creditor Amount.
type Ledger struct {
	ID       string  `json:"id"`
	Debtor   PartyID `json:"debtor"`
	Creditor PartyID `json:"creditor"`
	Amount   int64   `json:"amount"` // minor currency units, never negative
}

// IsSelf reports whether the ledger points from a party to itself.
func (l Ledger) IsSelf() bool {
	return l.Debtor == l.Creditor
}

// Active reports whether the ledger carries a balance that the graph uses.
func (l Ledger) Active() bool {
	return l.Amount > 0 && !l.IsSelf()
}

// TransactionKind tags a recorded transaction.
// Both kinds settle identically; the kind only changes how replies read.
type TransactionKind string

const (
	KindLoan    TransactionKind = "loan"
	KindPayment TransactionKind = "payment"
)

// ParseTransactionKind parses a stored kind.
func ParseTransactionKind(s string) (TransactionKind, error) {
	switch TransactionKind(s) {
	case KindLoan, KindPayment:
		return TransactionKind(s), nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
}

// Transaction records one money movement from Initiator to Receiver.
// After settlement Receiver owes Initiator Amount more than before.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	ChatID      string          `json:"chat_id"`
	Initiator   PartyID         `json:"initiator"`
	Receiver    PartyID         `json:"receiver"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description,omitempty"`
	Seq         int64           `json:"seq"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Snapshot is the full set of users and ledgers handed to one
// simplification pass.
type Snapshot struct {
	Users   []User   `json:"users"`
	Ledgers []Ledger `json:"ledgers"`
}

// ActiveLedgers returns the ledgers with a positive amount between two
// distinct parties, in snapshot order.
func (s Snapshot) ActiveLedgers() []Ledger {
	out := []Ledger{}
	for _, l := range s.Ledgers {
		if l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// SortLedgers orders ledgers by (debtor, creditor, id) for stable output.
func SortLedgers(ledgers []Ledger) {
	sort.SliceStable(ledgers, func(i, j int) bool {
		a, b := ledgers[i], ledgers[j]
		if a.Debtor != b.Debtor {
			return a.Debtor < b.Debtor
		}
		if a.Creditor != b.Creditor {
			return a.Creditor < b.Creditor
		}
		return a.ID < b.ID
	})
}
