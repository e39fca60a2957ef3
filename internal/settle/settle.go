// Package settle applies loans and payments to the ledger store.
//
// Loans and payments move money the same way: after a transaction the
// receiver owes the initiator the transaction amount more than before. The
// kind only changes how the bot words its reply, so there is exactly one
// settlement function, Apply.
package settle

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/splitledger/internal/ir"
	"github.com/roach88/splitledger/internal/store"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrSelfTransaction = errors.New("cannot settle a transaction with yourself")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrNoReceivers     = errors.New("at least one receiver is required")
)

// Store is the subset of store.Store that settlement needs.
type Store interface {
	LedgerBetween(ctx context.Context, debtor, creditor ir.PartyID) (ir.Ledger, error)
	InsertLedger(ctx context.Context, debtor, creditor ir.PartyID, amount int64) (ir.Ledger, error)
	UpdateLedger(ctx context.Context, l ir.Ledger) (ir.Ledger, error)
	AppendTransaction(ctx context.Context, t ir.Transaction) (ir.Transaction, error)
}

// Settlement is the outcome of applying one transaction.
type Settlement struct {
	Transaction ir.Transaction `json:"transaction"`
	Ledger      ir.Ledger      `json:"ledger"`
}

// Apply settles t: the ledger "receiver owes initiator" grows by t.Amount,
// created with a fresh id when the pair has no ledger yet, and the
// transaction is recorded.
//
// The ledger is written before the transaction. A failure in between leaves
// the balance updated without a history entry; callers serialize writes, so
// no other writer observes the gap.
func Apply(ctx context.Context, s Store, t ir.Transaction) (Settlement, error) {
	if err := validate(t); err != nil {
		return Settlement{}, err
	}

	l, err := s.LedgerBetween(ctx, t.Receiver, t.Initiator)
	switch {
	case errors.Is(err, store.ErrLedgerNotFound):
		l, err = s.InsertLedger(ctx, t.Receiver, t.Initiator, t.Amount)
		if err != nil {
			return Settlement{}, fmt.Errorf("settle: %w", err)
		}
	case err != nil:
		return Settlement{}, fmt.Errorf("settle: %w", err)
	default:
		l.Amount += t.Amount
		l, err = s.UpdateLedger(ctx, l)
		if err != nil {
			return Settlement{}, fmt.Errorf("settle: %w", err)
		}
	}

	recorded, err := s.AppendTransaction(ctx, t)
	if err != nil {
		return Settlement{}, fmt.Errorf("settle: record transaction: %w", err)
	}
	return Settlement{Transaction: recorded, Ledger: l}, nil
}

// ApplyAll settles each transaction in order and stops at the first failure.
// Settlements applied before the failure stay applied.
func ApplyAll(ctx context.Context, s Store, txs []ir.Transaction) ([]Settlement, error) {
	out := make([]Settlement, 0, len(txs))
	for _, t := range txs {
		st, err := Apply(ctx, s, t)
		if err != nil {
			return out, err
		}
		out = append(out, st)
	}
	return out, nil
}

func validate(t ir.Transaction) error {
	if _, err := ir.ParseTransactionKind(string(t.Kind)); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("settle: %w: got %d", ErrInvalidAmount, t.Amount)
	}
	if t.Initiator == t.Receiver {
		return fmt.Errorf("settle: %w", ErrSelfTransaction)
	}
	return nil
}
