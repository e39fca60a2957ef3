package settle

import (
	"fmt"

	"github.com/roach88/splitledger/internal/ir"
)

// Split divides amount into n shares that differ by at most one minor unit.
// Leftover units go one each to the first shares.
func Split(amount int64, n int) ([]int64, error) {
	if n <= 0 {
		return nil, ErrNoReceivers
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	base := amount / int64(n)
	rest := amount % int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < rest {
			shares[i]++
		}
	}
	return shares, nil
}

// Request describes one chat command that moves money.
type Request struct {
	Kind        ir.TransactionKind
	ChatID      string
	Initiator   ir.PartyID
	Receivers   []ir.PartyID
	Amount      int64
	Description string
}

// Transactions expands a request into one transaction per receiver.
//
// A loan splits Amount equally across receivers; a payment gives every
// receiver the full Amount. Receivers whose loan share rounds to zero get no
// transaction.
func Transactions(r Request) ([]ir.Transaction, error) {
	if len(r.Receivers) == 0 {
		return nil, ErrNoReceivers
	}
	for _, rcv := range r.Receivers {
		if rcv == r.Initiator {
			return nil, ErrSelfTransaction
		}
	}

	var shares []int64
	switch r.Kind {
	case ir.KindLoan:
		var err error
		if shares, err = Split(r.Amount, len(r.Receivers)); err != nil {
			return nil, err
		}
	case ir.KindPayment:
		if r.Amount <= 0 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, r.Amount)
		}
		shares = make([]int64, len(r.Receivers))
		for i := range shares {
			shares[i] = r.Amount
		}
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", r.Kind)
	}

	txs := make([]ir.Transaction, 0, len(shares))
	for i, share := range shares {
		if share == 0 {
			continue
		}
		txs = append(txs, ir.Transaction{
			Kind:        r.Kind,
			ChatID:      r.ChatID,
			Initiator:   r.Initiator,
			Receiver:    r.Receivers[i],
			Amount:      share,
			Description: r.Description,
		})
	}
	return txs, nil
}
