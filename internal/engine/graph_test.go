package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/ir"
)

func users(names ...string) []ir.User {
	out := make([]ir.User, len(names))
	for i, n := range names {
		out[i] = ir.User{ID: ir.PartyID(n), Username: n}
	}
	return out
}

func ledger(id, debtor, creditor string, amount int64) ir.Ledger {
	return ir.Ledger{ID: id, Debtor: ir.PartyID(debtor), Creditor: ir.PartyID(creditor), Amount: amount}
}

func TestBuild_NodesOnlyForActiveDebtors(t *testing.T) {
	g := Build(users("A", "B", "C", "D"), []ir.Ledger{
		ledger("l1", "A", "B", 10),
		ledger("l2", "B", "C", 0),
		ledger("l3", "D", "D", 7),
	})

	require.Equal(t, 1, g.Len())
	n, ok := g.NodeByParty("A")
	require.True(t, ok)
	assert.Equal(t, 0, n.Handle)
	assert.Equal(t, []int{0}, n.Outgoing)

	_, ok = g.NodeByParty("B")
	assert.False(t, ok, "zero-amount ledger must not materialize a node")
	_, ok = g.NodeByParty("D")
	assert.False(t, ok, "self ledger must not materialize a node")
	_, ok = g.NodeByParty("C")
	assert.False(t, ok, "creditor-only party has no node")
}

func TestBuild_HandlesFollowUserOrder(t *testing.T) {
	g := Build(users("C", "A", "B"), []ir.Ledger{
		ledger("l1", "A", "B", 1),
		ledger("l2", "B", "C", 1),
		ledger("l3", "C", "A", 1),
	})

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, ir.PartyID("C"), nodes[0].Party)
	assert.Equal(t, ir.PartyID("A"), nodes[1].Party)
	assert.Equal(t, ir.PartyID("B"), nodes[2].Party)

	for i, n := range nodes {
		got, ok := g.Node(i)
		require.True(t, ok)
		assert.Equal(t, n.Party, got.Party)
	}
	_, ok := g.Node(3)
	assert.False(t, ok)
	_, ok = g.Node(-1)
	assert.False(t, ok)
}

func TestBuild_DuplicateUsersCollapse(t *testing.T) {
	g := Build(users("A", "A", "B"), []ir.Ledger{ledger("l1", "A", "B", 5)})
	assert.Equal(t, 1, g.Len())
}

func TestBuild_CopiesInput(t *testing.T) {
	in := []ir.Ledger{ledger("l1", "A", "B", 5)}
	g := Build(users("A", "B"), in)

	require.NoError(t, g.ApplyLedgerUpdate(ledger("l1", "A", "B", 1)))
	assert.Equal(t, int64(5), in[0].Amount)
}

func TestGraph_Lookups(t *testing.T) {
	g := Build(users("A", "B", "C"), []ir.Ledger{
		ledger("l1", "A", "B", 10),
		ledger("l2", "A", "C", 20),
		ledger("l3", "B", "C", 30),
	})

	l, ok := g.Ledger("l2")
	require.True(t, ok)
	assert.Equal(t, int64(20), l.Amount)

	_, ok = g.Ledger("missing")
	assert.False(t, ok)

	l, ok = g.LedgerBetween("B", "C")
	require.True(t, ok)
	assert.Equal(t, "l3", l.ID)

	_, ok = g.LedgerBetween("C", "B")
	assert.False(t, ok)

	n, ok := g.NodeByKey(ir.PartyID("A").Key())
	require.True(t, ok)
	assert.Len(t, n.Outgoing, 2)
}

func TestGraph_LedgerBetweenSkipsZeroedEdges(t *testing.T) {
	g := Build(users("A", "B"), []ir.Ledger{ledger("l1", "A", "B", 10)})

	require.NoError(t, g.ApplyLedgerUpdate(ledger("l1", "A", "B", 0)))
	_, ok := g.LedgerBetween("A", "B")
	assert.False(t, ok)

	// Topology is unchanged until the next rebuild.
	assert.Equal(t, 1, g.Len())
	g.Rebuild()
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Ledgers())
}

func TestGraph_ApplyLedgerUpdateUnknownID(t *testing.T) {
	g := Build(users("A", "B"), []ir.Ledger{ledger("l1", "A", "B", 10)})

	err := g.ApplyLedgerUpdate(ledger("nope", "A", "B", 1))
	require.Error(t, err)
	assert.True(t, IsLookupMiss(err))
	assert.False(t, IsStoreError(err))
}

func TestGraph_PruneZeroLedgers(t *testing.T) {
	g := Build(users("A", "B", "C"), []ir.Ledger{
		ledger("l1", "A", "B", 0),
		ledger("l2", "B", "C", 4),
		ledger("l3", "C", "A", 0),
	})

	removed := g.PruneZeroLedgers()
	assert.Equal(t, 2, removed)

	ledgers := g.Ledgers()
	require.Len(t, ledgers, 1)
	assert.Equal(t, "l2", ledgers[0].ID)

	_, ok := g.Ledger("l1")
	assert.False(t, ok)
	l, ok := g.Ledger("l2")
	require.True(t, ok)
	assert.Equal(t, int64(4), l.Amount)

	n, ok := g.NodeByParty("B")
	require.True(t, ok)
	assert.Equal(t, []int{0}, n.Outgoing)
}

func TestGraph_SnapshotIsCopy(t *testing.T) {
	g := Build(users("A", "B"), []ir.Ledger{ledger("l1", "A", "B", 10)})

	snap := g.Snapshot()
	snap.Ledgers[0].Amount = 99
	snap.Users[0].Username = "changed"

	l, _ := g.Ledger("l1")
	assert.Equal(t, int64(10), l.Amount)
	assert.Equal(t, "A", g.Users()[0].Username)
}
