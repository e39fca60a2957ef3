// Package fixture compiles group snapshots authored in CUE.
//
// A fixture file declares one or more groups:
//
//	group: trip: {
//		chat: "trip-2024" // optional, defaults to the label
//		users: [
//			{id: "u1", username: "alice"},
//			{id: "u2", username: "bob"},
//		]
//		ledgers: [
//			{debtor: "u2", creditor: "u1", amount: 1250},
//		]
//	}
//
// Amounts are integers in minor units. Floats are rejected so a fixture
// can never carry a fractional cent. Ledger ids default to
// "<group>:<debtor>:<creditor>".
package fixture

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/splitledger/internal/ir"
)

// Group is a compiled fixture group.
type Group struct {
	Name     string      `json:"name"`
	ChatID   string      `json:"chat_id"`
	Snapshot ir.Snapshot `json:"snapshot"`
}

// CompileGroup parses a CUE value into a Group.
//
// The value should be the group struct itself, e.g.:
//
//	v := cuecontext.New().CompileString(src)
//	g, err := CompileGroup(v.LookupPath(cue.ParsePath("group.trip")))
func CompileGroup(v cue.Value) (*Group, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	g := &Group{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		g.Name = labelName(labels[len(labels)-1])
	}

	g.ChatID = g.Name
	if chatVal := v.LookupPath(cue.ParsePath("chat")); chatVal.Exists() {
		chat, err := chatVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		g.ChatID = chat
	}
	if g.ChatID == "" {
		return nil, &CompileError{
			Field:   "chat",
			Message: "chat id is required",
			Pos:     v.Pos(),
		}
	}

	users, err := parseUsers(v)
	if err != nil {
		return nil, err
	}
	ledgers, err := parseLedgers(v, g.Name)
	if err != nil {
		return nil, err
	}
	g.Snapshot = ir.Snapshot{Users: users, Ledgers: ledgers}
	return g, nil
}

func parseUsers(v cue.Value) ([]ir.User, error) {
	usersVal := v.LookupPath(cue.ParsePath("users"))
	if !usersVal.Exists() {
		return nil, &CompileError{
			Field:   "users",
			Message: "users are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := usersVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	users := []ir.User{}
	for iter.Next() {
		uv := iter.Value()
		id, err := requiredString(uv, "id", "users.id")
		if err != nil {
			return nil, err
		}
		name, err := requiredString(uv, "username", "users.username")
		if err != nil {
			return nil, err
		}
		users = append(users, ir.User{
			ID:       ir.PartyID(id),
			Username: ir.NormalizeUsername(name),
		})
	}
	return users, nil
}

func parseLedgers(v cue.Value, group string) ([]ir.Ledger, error) {
	ledgersVal := v.LookupPath(cue.ParsePath("ledgers"))
	if !ledgersVal.Exists() {
		return []ir.Ledger{}, nil
	}

	iter, err := ledgersVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	ledgers := []ir.Ledger{}
	for iter.Next() {
		lv := iter.Value()
		debtor, err := requiredString(lv, "debtor", "ledgers.debtor")
		if err != nil {
			return nil, err
		}
		creditor, err := requiredString(lv, "creditor", "ledgers.creditor")
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(lv)
		if err != nil {
			return nil, err
		}

		id := fmt.Sprintf("%s:%s:%s", group, debtor, creditor)
		if idVal := lv.LookupPath(cue.ParsePath("id")); idVal.Exists() {
			if id, err = idVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		ledgers = append(ledgers, ir.Ledger{
			ID:       id,
			Debtor:   ir.PartyID(debtor),
			Creditor: ir.PartyID(creditor),
			Amount:   amount,
		})
	}
	return ledgers, nil
}

func parseAmount(lv cue.Value) (int64, error) {
	amountVal := lv.LookupPath(cue.ParsePath("amount"))
	if !amountVal.Exists() {
		return 0, &CompileError{
			Field:   "ledgers.amount",
			Message: "amount is required",
			Pos:     lv.Pos(),
		}
	}
	if amountVal.Kind() == cue.FloatKind {
		return 0, &CompileError{
			Field:   "ledgers.amount",
			Message: "amount must be an integer in minor units, not a float",
			Pos:     amountVal.Pos(),
		}
	}
	amount, err := amountVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return amount, nil
}

// labelName returns a selector without CUE quoting, so group: "trip-2024"
// is named trip-2024.
func labelName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

func requiredString(v cue.Value, field, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   name,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
