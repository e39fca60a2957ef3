// Package events publishes domain events about ledgers.
//
// Two events exist: a transaction was recorded, and a chat's ledgers were
// simplified. Publishing is best effort from the caller's point of view; the
// ledger store stays the source of truth.
package events

import (
	"context"
	"time"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ir"
)

// Type identifies an event.
type Type string

const (
	TypeTransactionRecorded Type = "transaction.recorded"
	TypeLedgersSimplified   Type = "ledgers.simplified"
)

// Event is the envelope written to the event stream.
type Event struct {
	Type       Type      `json:"type"`
	ChatID     string    `json:"chat_id"`
	OccurredAt time.Time `json:"occurred_at"`

	// Transaction is set for TypeTransactionRecorded.
	Transaction *ir.Transaction `json:"transaction,omitempty"`

	// Report and LedgersDigest are set for TypeLedgersSimplified.
	Report        *engine.Report `json:"report,omitempty"`
	LedgersDigest string         `json:"ledgers_digest,omitempty"`
}

// TransactionRecorded builds the event for a stored transaction.
func TransactionRecorded(t ir.Transaction) Event {
	return Event{
		Type:        TypeTransactionRecorded,
		ChatID:      t.ChatID,
		OccurredAt:  t.CreatedAt,
		Transaction: &t,
	}
}

// LedgersSimplified builds the event for a finished simplification.
func LedgersSimplified(chatID string, res *engine.Result, at time.Time) (Event, error) {
	digest, err := ir.LedgersDigest(res.Snapshot.Ledgers)
	if err != nil {
		return Event{}, err
	}
	rep := res.Report
	return Event{
		Type:          TypeLedgersSimplified,
		ChatID:        chatID,
		OccurredAt:    at,
		Report:        &rep,
		LedgersDigest: digest,
	}, nil
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
