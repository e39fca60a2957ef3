package engine

import (
	"context"
	"fmt"

	"github.com/roach88/splitledger/internal/ir"
)

// ResolveBidirectional nets every A→B / B→A pair in the graph.
//
// For each node A and each active ledger A→B, B's outgoing ledgers are
// scanned for one pointing back at A. Both are reduced by the smaller amount
// and persisted through w. Only the first reverse ledger found is netted.
// Zero-amount ledgers are pruned when the pass ends.
func (g *Graph) ResolveBidirectional(ctx context.Context, w LedgerWriter) (Report, error) {
	var rep Report

	for _, a := range g.nodes {
		for _, ai := range a.Outgoing {
			if !g.ledgers[ai].Active() {
				// Already netted to zero earlier in this pass.
				continue
			}
			b, ok := g.NodeByParty(g.ledgers[ai].Creditor)
			if !ok {
				continue
			}
			for _, bi := range b.Outgoing {
				reverse := g.ledgers[bi]
				if reverse.Creditor != a.Party || !reverse.Active() {
					continue
				}
				if err := g.net(ctx, w, ai, bi, &rep); err != nil {
					return rep, err
				}
				break
			}
		}
	}

	g.PruneZeroLedgers()
	return rep, nil
}

// net reduces the ledgers at arena indices ai and bi by their common minimum
// and persists both.
func (g *Graph) net(ctx context.Context, w LedgerWriter, ai, bi int, rep *Report) error {
	ab, ba, delta, err := netLedgers(g.ledgers[ai], g.ledgers[bi])
	if err != nil {
		return err
	}

	for _, l := range []ir.Ledger{ab, ba} {
		if err := g.persist(ctx, w, l); err != nil {
			return err
		}
	}

	rep.Nettings++
	rep.LedgersWritten += 2
	rep.AmountCancelled += 2 * delta
	return nil
}

// netLedgers nets two mutually reverse ledgers and returns the reduced pair
// and the netted amount.
func netLedgers(ab, ba ir.Ledger) (ir.Ledger, ir.Ledger, int64, error) {
	if ab.Debtor != ba.Creditor || ab.Creditor != ba.Debtor {
		return ab, ba, 0, newInvariantViolation(ab.ID,
			fmt.Sprintf("ledger %s (%s\u2192%s) is not the reverse of %s (%s\u2192%s)",
				ba.ID, ba.Debtor, ba.Creditor, ab.ID, ab.Debtor, ab.Creditor))
	}
	if ab.IsSelf() {
		return ab, ba, 0, newInvariantViolation(ab.ID, "cannot net a self ledger")
	}

	delta := min(ab.Amount, ba.Amount)
	ab.Amount -= delta
	ba.Amount -= delta
	return ab, ba, delta, nil
}

// persist writes l through w and applies it to the arena.
func (g *Graph) persist(ctx context.Context, w LedgerWriter, l ir.Ledger) error {
	if _, err := w.UpdateLedger(ctx, l); err != nil {
		return newStoreError(l.ID, err)
	}
	return g.ApplyLedgerUpdate(l)
}
