package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/ir"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestRun_BidirectionalMode(t *testing.T) {
	scenario := &Scenario{
		Name:        "netting",
		Description: "Scenario 1",
		Ledgers: []LedgerSpec{
			{Debtor: "A", Creditor: "B", Amount: 500},
			{Debtor: "B", Creditor: "A", Amount: 300},
		},
		Mode: ModeBidirectional,
		Assertions: []Assertion{
			{Type: AssertLedger, Debtor: "A", Creditor: "B", Amount: int64Ptr(200)},
			{Type: AssertLedger, Debtor: "B", Creditor: "A", Amount: int64Ptr(0)},
			{Type: AssertReport, Nettings: intPtr(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 2, result.Report.LedgersWritten)
	assert.Len(t, result.Before, 2)
	assert.Equal(t, []ir.Ledger{{ID: "ab", Debtor: "A", Creditor: "B", Amount: 200}}, result.Ledgers)
}

func TestRun_CycleModes(t *testing.T) {
	ledgers := []LedgerSpec{
		{Debtor: "A", Creditor: "B", Amount: 100},
		{Debtor: "B", Creditor: "C", Amount: 40},
		{Debtor: "C", Creditor: "A", Amount: 100},
	}

	tests := []struct {
		mode          string
		cancellations int
		remaining     int
	}{
		{ModeCycles, 1, 1},
		{ModeSimplify, 1, 1},
		{ModeBidirectional, 0, 3},
		{ModeNone, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			result, err := Run(&Scenario{
				Name:        "cycle_" + tt.mode,
				Description: "Scenario 3",
				Ledgers:     ledgers,
				Mode:        tt.mode,
				Assertions: []Assertion{
					{Type: AssertReport, Cancellations: intPtr(tt.cancellations)},
					{Type: AssertLedgerCount, Count: intPtr(tt.remaining)},
					{Type: AssertNetPreserved},
				},
			})
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestRun_EmptyGroupUnchanged(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "empty",
		Description: "Scenario 4",
		Users:       []UserSpec{{ID: "A", Username: "alice"}},
		Assertions: []Assertion{
			{Type: AssertLedgerCount, Count: intPtr(0)},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.False(t, result.Report.Changed())
}

func TestRun_FailedAssertionReported(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "wrong",
		Description: "Expects the wrong amount",
		Ledgers: []LedgerSpec{
			{Debtor: "A", Creditor: "B", Amount: 500},
		},
		Assertions: []Assertion{
			{Type: AssertLedger, Debtor: "A", Creditor: "B", Amount: int64Ptr(400)},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: A owes B 400")
	assert.Contains(t, result.Errors[0], "Actual: 500")
}

func TestRun_Messages(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "chat",
		Description: "Loans through the bot",
		Users: []UserSpec{
			{ID: "A", Username: "alice"},
			{ID: "B", Username: "bob"},
			{ID: "C", Username: "carol"},
		},
		Messages: []MessageStep{
			{Sender: "A", Text: "/loan 9 @bob @carol", Expect: strPtr("@alice lent 9.00\n  @bob 4.50\n  @carol 4.50")},
			{Sender: "B", Text: "/balance", ExpectContains: "@carol owes @alice 4.50"},
			{Sender: "C", Text: "just chatting", Expect: strPtr("")},
		},
		Mode: ModeNone,
		Assertions: []Assertion{
			{Type: AssertLedger, Debtor: "B", Creditor: "A", Amount: int64Ptr(450)},
			{Type: AssertLedger, Debtor: "C", Creditor: "A", Amount: int64Ptr(450)},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, 1, result.Trace[1].Step)
	assert.Equal(t, "B", result.Trace[1].Sender)
}

func TestRun_UnexpectedReplyRecorded(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "chat_mismatch",
		Description: "Reply differs from expectation",
		Users:       []UserSpec{{ID: "A", Username: "alice"}},
		Messages: []MessageStep{
			{Sender: "A", Text: "/balance", Expect: strPtr("something else")},
		},
		Mode: ModeNone,
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `got "No outstanding debts."`)
}

func TestRun_UsernameOverride(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "rename",
		Description: "A member re-registers with a new handle",
		Users:       []UserSpec{{ID: "A", Username: "alice"}},
		Messages: []MessageStep{
			{Sender: "A", Username: "ally", Text: "/register", Expect: strPtr("Updated username @alice to @ally.")},
		},
		Mode: ModeNone,
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_ImpliedUsers(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "implied",
		Description: "Parties become users with lowercased handles",
		Ledgers:     []LedgerSpec{{Debtor: "Bob", Creditor: "Al", Amount: 100}},
		Messages: []MessageStep{
			{Sender: "Al", Text: "/balance", Expect: strPtr("@bob owes @al 1.00")},
		},
		Mode: ModeNone,
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "bobal", result.Ledgers[0].ID)
}

func TestRun_InvalidGroupRejected(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "self",
		Description: "Self ledgers are refused like an import",
		Ledgers:     []LedgerSpec{{Debtor: "A", Creditor: "A", Amount: 100}},
		Assertions:  []Assertion{{Type: AssertNoCycles}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid group")
}

func TestRun_Fixture(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "fixture",
		Description: "Group loaded from CUE",
		Fixture:     filepath.Join("..", "..", "testdata", "fixtures"),
		Group:       "road-trip",
		Messages: []MessageStep{
			{Sender: "u-erin", Text: "/balance", ExpectContains: "@dave owes @erin 5.00"},
		},
		Assertions: []Assertion{
			{Type: AssertLedger, Debtor: "u-dave", Creditor: "u-erin", Amount: int64Ptr(200)},
			{Type: AssertLedger, Debtor: "u-frank", Creditor: "u-dave", Amount: int64Ptr(0)},
			{Type: AssertNoCycles},
			{Type: AssertNetPreserved},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_FixtureMissingGroup(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "fixture",
		Description: "Unknown group",
		Fixture:     filepath.Join("..", "..", "testdata", "fixtures"),
		Group:       "nope",
		Assertions:  []Assertion{{Type: AssertNoCycles}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no group "nope"`)
}

func TestRun_FreshDatabasePerRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "fresh",
		Description: "Each run starts from the scenario's ledgers",
		Users: []UserSpec{
			{ID: "A", Username: "alice"},
			{ID: "B", Username: "bob"},
		},
		Messages: []MessageStep{
			{Sender: "A", Text: "/loan 1 @bob"},
		},
		Mode: ModeNone,
		Assertions: []Assertion{
			{Type: AssertLedger, Debtor: "B", Creditor: "A", Amount: int64Ptr(100)},
		},
	}

	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
		assert.Equal(t, "id-0001", result.Ledgers[0].ID)
	}
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("boom")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"boom"}, result.Errors)
}

func TestResult_AddReply(t *testing.T) {
	result := NewResult()
	result.AddReply("A", "/help", "usage")
	result.AddReply("B", "/balance", "none")

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Step: 0, Sender: "A", Text: "/help", Reply: "usage"}, result.Trace[0])
	assert.Equal(t, 1, result.Trace[1].Step)
}

func TestExampleScenarios(t *testing.T) {
	dir := filepath.Join("..", "..", "testdata", "scenarios")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		t.Skip("testdata/scenarios directory not found")
	}
	require.NoError(t, err)

	count := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		count++
		t.Run(e.Name(), func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join(dir, e.Name()))
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
	assert.Positive(t, count)
}
