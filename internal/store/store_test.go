package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"users", "chats", "chat_members", "ledgers", "transactions"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.db.Ping())
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.expected))
		})
	}
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"users":        {"id", "username", "created_at"},
		"chat_members": {"chat_id", "user_id", "seq"},
		"ledgers":      {"id", "debtor", "creditor", "amount"},
		"transactions": {"id", "kind", "chat_id", "initiator", "receiver", "amount", "description", "seq", "created_at"},
	}
	for table, expected := range tests {
		t.Run(table, func(t *testing.T) {
			columns := getTableColumns(t, s.db, table)
			for _, col := range expected {
				assert.Contains(t, columns, col)
			}
		})
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	assert.Contains(t, getTableIndexes(t, s.db, "transactions"), "idx_transactions_chat_seq")
	assert.Contains(t, getTableIndexes(t, s.db, "ledgers"), "idx_ledgers_creditor")
	assert.Contains(t, getTableIndexes(t, s.db, "chat_members"), "idx_chat_members_user")
}

func TestSchema_RejectsZeroAndSelfLedgers(t *testing.T) {
	s := createTestStore(t)
	seedChat(t, s, "c1", "alice", "bob")

	_, err := s.db.Exec(`INSERT INTO ledgers (id, debtor, creditor, amount) VALUES ('z', 'alice', 'bob', 0)`)
	assert.Error(t, err, "zero amount must violate CHECK")

	_, err = s.db.Exec(`INSERT INTO ledgers (id, debtor, creditor, amount) VALUES ('s', 'alice', 'alice', 5)`)
	assert.Error(t, err, "self ledger must violate CHECK")
}
