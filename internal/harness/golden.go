package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/splitledger/internal/ir"
)

// GoldenSnapshot renders the parts of a scenario result that golden files
// pin down: the final ledgers, the pass report and any chat replies.
// The output is canonical JSON, so it is byte-stable across runs.
func GoldenSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := map[string]any{
		"scenario_name": scenarioName,
		"ledgers":       ir.CanonicalLedgers(result.Ledgers),
		"report": map[string]any{
			"nettings":         result.Report.Nettings,
			"cancellations":    result.Report.Cancellations,
			"ledgers_written":  result.Report.LedgersWritten,
			"amount_cancelled": result.Report.AmountCancelled,
		},
	}

	if len(result.Trace) > 0 {
		replies := make([]any, len(result.Trace))
		for i, event := range result.Trace {
			replies[i] = map[string]any{
				"sender": event.Sender,
				"text":   event.Text,
				"reply":  event.Reply,
			}
		}
		snapshot["replies"] = replies
	}

	return ir.MarshalCanonical(snapshot)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
