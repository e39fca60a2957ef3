package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/splitledger/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the final ledgers to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Ledgers  []ir.Ledger // Final ledgers for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal ledgers:\n")
	if len(e.Ledgers) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for _, l := range e.Ledgers {
		fmt.Fprintf(&buf, "  %s: %s owes %s %d\n", l.ID, l.Debtor, l.Creditor, l.Amount)
	}
	return buf.String()
}

// EvaluateAssertions evaluates every assertion against a result and returns
// the error messages of those that fail.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertLedger:
			err = assertLedger(result.Ledgers, a)
		case AssertLedgerCount:
			err = assertLedgerCount(result.Ledgers, a)
		case AssertReport:
			err = assertReport(result, a)
		case AssertNoCycles:
			err = assertNoCycles(result.Ledgers)
		case AssertNetPreserved:
			err = assertNetPreserved(result.Before, result.Ledgers)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertLedger checks that debtor owes creditor exactly the expected amount.
// An expected amount of zero means no active ledger may exist for the pair.
func assertLedger(ledgers []ir.Ledger, a Assertion) error {
	var actual int64
	for _, l := range ledgers {
		if l.Active() && string(l.Debtor) == a.Debtor && string(l.Creditor) == a.Creditor {
			actual += l.Amount
		}
	}
	if actual == *a.Amount {
		return nil
	}

	actualDesc := fmt.Sprintf("%d", actual)
	if actual == 0 {
		actualDesc = "no ledger"
	}
	return &AssertionError{
		Type:     AssertLedger,
		Expected: fmt.Sprintf("%s owes %s %d", a.Debtor, a.Creditor, *a.Amount),
		Actual:   actualDesc,
		Ledgers:  ledgers,
	}
}

func assertLedgerCount(ledgers []ir.Ledger, a Assertion) error {
	count := 0
	for _, l := range ledgers {
		if l.Active() {
			count++
		}
	}
	if count == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLedgerCount,
		Expected: fmt.Sprintf("%d active ledger(s)", *a.Count),
		Actual:   fmt.Sprintf("%d active ledger(s)", count),
		Ledgers:  ledgers,
	}
}

func assertReport(result *Result, a Assertion) error {
	var mismatches []string
	if a.Nettings != nil && *a.Nettings != result.Report.Nettings {
		mismatches = append(mismatches, fmt.Sprintf("nettings %d != %d", result.Report.Nettings, *a.Nettings))
	}
	if a.Cancellations != nil && *a.Cancellations != result.Report.Cancellations {
		mismatches = append(mismatches, fmt.Sprintf("cancellations %d != %d", result.Report.Cancellations, *a.Cancellations))
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertReport,
		Expected: fmt.Sprintf("nettings=%s cancellations=%s", optInt(a.Nettings), optInt(a.Cancellations)),
		Actual:   strings.Join(mismatches, ", "),
		Ledgers:  result.Ledgers,
	}
}

func optInt(p *int) string {
	if p == nil {
		return "any"
	}
	return fmt.Sprintf("%d", *p)
}

// assertNoCycles checks that the active ledgers form a directed acyclic
// graph, which also rules out mutual debt.
func assertNoCycles(ledgers []ir.Ledger) error {
	adj := make(map[ir.PartyID][]ir.PartyID)
	for _, l := range ledgers {
		if l.Active() {
			adj[l.Debtor] = append(adj[l.Debtor], l.Creditor)
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[ir.PartyID]int)
	var cycle []ir.PartyID

	var visit func(p ir.PartyID, path []ir.PartyID) bool
	visit = func(p ir.PartyID, path []ir.PartyID) bool {
		color[p] = grey
		path = append(path, p)
		for _, next := range adj[p] {
			switch color[next] {
			case grey:
				for i, q := range path {
					if q == next {
						cycle = append(append([]ir.PartyID{}, path[i:]...), next)
						break
					}
				}
				return true
			case white:
				if visit(next, path) {
					return true
				}
			}
		}
		color[p] = black
		return false
	}

	for _, l := range ledgers {
		if color[l.Debtor] == white && visit(l.Debtor, nil) {
			parts := make([]string, len(cycle))
			for i, p := range cycle {
				parts[i] = string(p)
			}
			return &AssertionError{
				Type:     AssertNoCycles,
				Expected: "no directed cycle",
				Actual:   "cycle " + strings.Join(parts, " -> "),
				Ledgers:  ledgers,
			}
		}
	}
	return nil
}

// assertNetPreserved checks that every party's net balance (owed to them
// minus owed by them) is the same before and after the pass.
func assertNetPreserved(before, after []ir.Ledger) error {
	b, a := netBalances(before), netBalances(after)

	var diffs []string
	for p, nb := range b {
		if a[p] != nb {
			diffs = append(diffs, fmt.Sprintf("%s: %d -> %d", p, nb, a[p]))
		}
	}
	for p, na := range a {
		if _, ok := b[p]; !ok && na != 0 {
			diffs = append(diffs, fmt.Sprintf("%s: 0 -> %d", p, na))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNetPreserved,
		Expected: "net balances unchanged",
		Actual:   strings.Join(diffs, ", "),
		Ledgers:  after,
	}
}

func netBalances(ledgers []ir.Ledger) map[ir.PartyID]int64 {
	net := make(map[ir.PartyID]int64)
	for _, l := range ledgers {
		if !l.Active() {
			continue
		}
		net[l.Creditor] += l.Amount
		net[l.Debtor] -= l.Amount
	}
	return net
}
