// Package harness runs debt simplification scenarios as executable tests.
//
// A scenario seeds a fresh in-memory store with a group, optionally plays a
// chat conversation through the bot, runs one simplification pass and then
// checks the resulting ledgers.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: triangle_cycle
//	description: "What this scenario validates"
//	ledgers:
//	  - { debtor: A, creditor: B, amount: 500 }
//	  - { debtor: B, creditor: C, amount: 500 }
//	  - { debtor: C, creditor: A, amount: 300 }
//	messages:
//	  - sender: A
//	    text: "/balance"
//	    expect_contains: "@a owes @b"
//	mode: simplify
//	assertions:
//	  - type: ledger
//	    debtor: A
//	    creditor: B
//	    amount: 200
//	  - type: no_cycles
//
// Instead of inline ledgers a scenario may name a CUE fixture directory and
// one group in it:
//
//	fixture: ../fixtures
//	group: road-trip
//
// # Assertion Types
//
//   - ledger: debtor owes creditor exactly amount (0 means no ledger)
//   - ledger_count: exactly count active ledgers remain
//   - report: the pass reported the given nettings and/or cancellations
//   - no_cycles: the active ledgers contain no directed cycle
//   - net_preserved: every party's net balance is unchanged by the pass
//
// # Deterministic Testing
//
// Every scenario runs against its own in-memory SQLite database with
// sequential ids and a stepping clock, so the final ledgers and replies are
// identical across runs and can be compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/triangle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
