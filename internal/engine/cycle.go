package engine

import (
	"context"

	"github.com/roach88/splitledger/internal/ir"
)

// ResolveCycles finds and cancels circular chains of debt with at least three
// parties.
//
// Every node present when the pass starts is used in turn as the candidate
// closing point. After each cancellation the graph is rebuilt and the same
// start is searched again, so no cycle through it survives. Starts whose node
// disappeared in an earlier rebuild are skipped.
//
// Each cancellation zeroes at least one ledger, which bounds the number of
// iterations by the number of ledgers.
func (g *Graph) ResolveCycles(ctx context.Context, w LedgerWriter) (Report, error) {
	var rep Report

	for _, start := range g.Nodes() {
		for {
			if _, ok := g.NodeByParty(start.Party); !ok {
				break
			}
			path := g.findCycle(start.Party)
			if path == nil {
				break
			}
			cancelled, err := g.cancelCycle(ctx, w, path, &rep)
			if err != nil {
				return rep, err
			}
			g.Rebuild()
			if cancelled == 0 {
				break
			}
		}
	}

	return rep, nil
}

// findCycle runs a depth-first search from start and returns the first closed
// path [start, ..., start] with more than two distinct parties, or nil.
//
// A cycle closes from the current expansion frontier: while expanding node
// C, a neighbour N closes the cycle when N has an active ledger back to start.
// The path is the search-tree path to C followed by N and start, so it is
// always simple. A closure that would only yield two parties is skipped and
// the search continues.
func (g *Graph) findCycle(start ir.PartyID) []ir.PartyID {
	startKey := start.Key()
	visited := map[string]bool{startKey: true}
	parent := make(map[string]ir.PartyID)
	stack := []ir.PartyID{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := g.NodeByKey(current.Key())
		if !ok {
			continue
		}
		for _, i := range node.Outgoing {
			l := g.ledgers[i]
			if !l.Active() || l.Creditor == start {
				continue
			}
			next := l.Creditor
			nextKey := next.Key()
			if _, ok := g.NodeByKey(nextKey); !ok {
				// Owes nobody, cannot lead back to start.
				continue
			}

			if _, closes := g.LedgerBetween(next, start); closes {
				path := append(treePath(parent, start, current), next, start)
				if isSimpleCycle(path) {
					return path
				}
			}

			if !visited[nextKey] {
				visited[nextKey] = true
				parent[nextKey] = current
				stack = append(stack, next)
			}
		}
	}
	return nil
}

// treePath walks parent links from node back to start and returns the path
// start → node.
func treePath(parent map[string]ir.PartyID, start, node ir.PartyID) []ir.PartyID {
	var rev []ir.PartyID
	for cur := node; cur != start; cur = parent[cur.Key()] {
		rev = append(rev, cur)
	}
	rev = append(rev, start)

	path := make([]ir.PartyID, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	return path
}

// isSimpleCycle reports whether a closed path visits more than two distinct
// parties and none of them twice.
func isSimpleCycle(path []ir.PartyID) bool {
	if len(path) < 2 || path[0] != path[len(path)-1] {
		return false
	}
	parties := path[:len(path)-1]
	if len(parties) <= 2 {
		return false
	}
	seen := make(map[string]bool, len(parties))
	for _, p := range parties {
		if seen[p.Key()] {
			return false
		}
		seen[p.Key()] = true
	}
	return true
}

// cancelCycle subtracts the minimum amount along a closed path from every
// ledger on it and persists each. The minimum is found before anything is
// mutated. It returns the cancelled amount, or 0 when a link is missing.
func (g *Graph) cancelCycle(ctx context.Context, w LedgerWriter, path []ir.PartyID, rep *Report) (int64, error) {
	links := make([]ir.Ledger, 0, len(path)-1)
	var least int64
	for i := 0; i+1 < len(path); i++ {
		l, ok := g.LedgerBetween(path[i], path[i+1])
		if !ok {
			return 0, nil
		}
		if len(links) == 0 || l.Amount < least {
			least = l.Amount
		}
		links = append(links, l)
	}

	for _, l := range links {
		l.Amount -= least
		if err := g.persist(ctx, w, l); err != nil {
			return 0, err
		}
	}

	rep.Cancellations++
	rep.LedgersWritten += len(links)
	rep.AmountCancelled += least * int64(len(links))
	return least, nil
}
