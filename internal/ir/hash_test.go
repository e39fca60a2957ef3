package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgersDigest_OrderIndependent(t *testing.T) {
	a := []Ledger{
		{ID: "l1", Debtor: "alice", Creditor: "bob", Amount: 100},
		{ID: "l2", Debtor: "bob", Creditor: "carol", Amount: 40},
	}
	b := []Ledger{a[1], a[0]}

	da, err := LedgersDigest(a)
	require.NoError(t, err)
	db, err := LedgersDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestLedgersDigest_IgnoresInactive(t *testing.T) {
	base := []Ledger{{ID: "l1", Debtor: "alice", Creditor: "bob", Amount: 100}}
	withZero := append([]Ledger{
		{ID: "l0", Debtor: "bob", Creditor: "alice", Amount: 0},
		{ID: "l9", Debtor: "carol", Creditor: "carol", Amount: 7},
	}, base...)

	d1, err := LedgersDigest(base)
	require.NoError(t, err)
	d2, err := LedgersDigest(withZero)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestLedgersDigest_AmountChangesDigest(t *testing.T) {
	d1, err := LedgersDigest([]Ledger{{ID: "l1", Debtor: "a", Creditor: "b", Amount: 1}})
	require.NoError(t, err)
	d2, err := LedgersDigest([]Ledger{{ID: "l1", Debtor: "a", Creditor: "b", Amount: 2}})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestSnapshotDigest_DomainSeparated(t *testing.T) {
	ledgers := []Ledger{{ID: "l1", Debtor: "a", Creditor: "b", Amount: 1}}
	ld, err := LedgersDigest(ledgers)
	require.NoError(t, err)
	sd, err := SnapshotDigest(Snapshot{Ledgers: ledgers})
	require.NoError(t, err)
	assert.NotEqual(t, ld, sd)
}

func TestParseTransactionKind(t *testing.T) {
	k, err := ParseTransactionKind("loan")
	require.NoError(t, err)
	assert.Equal(t, KindLoan, k)

	k, err = ParseTransactionKind("payment")
	require.NoError(t, err)
	assert.Equal(t, KindPayment, k)

	_, err = ParseTransactionKind("gift")
	assert.Error(t, err)
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "bob", NormalizeUsername("@bob"))
	assert.Equal(t, "bob", NormalizeUsername("  bob "))
	assert.Equal(t, "jos\u00e9", NormalizeUsername("@jose\u0301"))
}

func TestLedgerActive(t *testing.T) {
	assert.True(t, Ledger{Debtor: "a", Creditor: "b", Amount: 1}.Active())
	assert.False(t, Ledger{Debtor: "a", Creditor: "b", Amount: 0}.Active())
	assert.False(t, Ledger{Debtor: "a", Creditor: "a", Amount: 5}.Active())
}
