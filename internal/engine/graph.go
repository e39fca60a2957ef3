package engine

import (
	"github.com/roach88/splitledger/internal/ir"
)

// Node is the per-pass representation of a party that owes at least one
// active ledger.
//
// Outgoing holds arena indices into the owning Graph, not ledger copies, so a
// resolver that changes an amount is seen by every node that refers to it.
// Indices are only valid until the next Rebuild.
type Node struct {
	Handle   int
	Party    ir.PartyID
	Outgoing []int
}

// Graph is the working structure for one resolver pass.
//
// It owns a copy of the ledger and user snapshot. Lookups are backed by
// id-indexed maps; topology is derived once in Build and again on every
// Rebuild, never patched.
type Graph struct {
	users   []ir.User
	ledgers []ir.Ledger

	ledgerIdx map[string]int // ledger id -> arena index
	nodes     []Node
	nodeIdx   map[string]int // party key -> node handle
}

// Build constructs a graph from a snapshot of users and ledgers.
//
// A node is materialized for every user that is debtor of at least one
// active ledger. Self ledgers and zero-amount ledgers never become edges.
// Both input slices are copied.
func Build(users []ir.User, ledgers []ir.Ledger) *Graph {
	g := &Graph{
		users:   append([]ir.User(nil), users...),
		ledgers: append([]ir.Ledger(nil), ledgers...),
	}
	g.index()
	return g
}

// index recomputes the ledger index and every node from the arena.
func (g *Graph) index() {
	g.ledgerIdx = make(map[string]int, len(g.ledgers))
	outgoing := make(map[string][]int)
	for i, l := range g.ledgers {
		g.ledgerIdx[l.ID] = i
		if l.Active() {
			key := l.Debtor.Key()
			outgoing[key] = append(outgoing[key], i)
		}
	}

	g.nodes = make([]Node, 0, len(outgoing))
	g.nodeIdx = make(map[string]int, len(outgoing))
	for _, u := range g.users {
		key := u.ID.Key()
		edges, ok := outgoing[key]
		if !ok {
			continue
		}
		if _, dup := g.nodeIdx[key]; dup {
			continue
		}
		handle := len(g.nodes)
		g.nodes = append(g.nodes, Node{Handle: handle, Party: u.ID, Outgoing: edges})
		g.nodeIdx[key] = handle
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the current nodes in handle order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Node finds a node by its pass-local handle.
func (g *Graph) Node(handle int) (Node, bool) {
	if handle < 0 || handle >= len(g.nodes) {
		return Node{}, false
	}
	return g.nodes[handle], true
}

// NodeByParty finds the node of a party.
func (g *Graph) NodeByParty(id ir.PartyID) (Node, bool) {
	return g.NodeByKey(id.Key())
}

// NodeByKey finds a node by the pre-serialized party key.
func (g *Graph) NodeByKey(key string) (Node, bool) {
	h, ok := g.nodeIdx[key]
	if !ok {
		return Node{}, false
	}
	return g.nodes[h], true
}

// Ledger finds a ledger by id.
func (g *Graph) Ledger(id string) (ir.Ledger, bool) {
	i, ok := g.ledgerIdx[id]
	if !ok {
		return ir.Ledger{}, false
	}
	return g.ledgers[i], true
}

// LedgerBetween finds the first active ledger from debtor to creditor.
//
// Only edges known to the debtor's node are considered, so a ledger zeroed
// earlier in the current pass is a miss.
func (g *Graph) LedgerBetween(debtor, creditor ir.PartyID) (ir.Ledger, bool) {
	i, ok := g.edgeBetween(debtor, creditor)
	if !ok {
		return ir.Ledger{}, false
	}
	return g.ledgers[i], true
}

func (g *Graph) edgeBetween(debtor, creditor ir.PartyID) (int, bool) {
	n, ok := g.NodeByParty(debtor)
	if !ok {
		return 0, false
	}
	for _, i := range n.Outgoing {
		l := g.ledgers[i]
		if l.Creditor == creditor && l.Active() {
			return i, true
		}
	}
	return 0, false
}

// ApplyLedgerUpdate replaces the stored amount of the ledger with l.ID.
// Topology is not touched; call Rebuild to re-derive it.
func (g *Graph) ApplyLedgerUpdate(l ir.Ledger) error {
	i, ok := g.ledgerIdx[l.ID]
	if !ok {
		return newLookupMiss(l.ID, l.Debtor, "ledger not in snapshot")
	}
	g.ledgers[i].Amount = l.Amount
	return nil
}

// PruneZeroLedgers removes every zero-amount ledger from the snapshot and
// returns how many were removed. Arena indices shift, so nodes are
// recomputed as part of the prune.
func (g *Graph) PruneZeroLedgers() int {
	kept := g.ledgers[:0]
	for _, l := range g.ledgers {
		if l.Amount != 0 {
			kept = append(kept, l)
		}
	}
	removed := len(g.ledgers) - len(kept)
	g.ledgers = kept
	g.index()
	return removed
}

// Rebuild drops zero-amount ledgers and recomputes all nodes from the
// surviving ledgers.
func (g *Graph) Rebuild() {
	g.PruneZeroLedgers()
}

// Ledgers returns a copy of the current ledger snapshot.
func (g *Graph) Ledgers() []ir.Ledger {
	out := make([]ir.Ledger, len(g.ledgers))
	copy(out, g.ledgers)
	return out
}

// Users returns a copy of the user snapshot.
func (g *Graph) Users() []ir.User {
	out := make([]ir.User, len(g.users))
	copy(out, g.users)
	return out
}

// Snapshot returns the current users and ledgers.
func (g *Graph) Snapshot() ir.Snapshot {
	return ir.Snapshot{Users: g.Users(), Ledgers: g.Ledgers()}
}
