package fixture

import (
	"fmt"

	"github.com/roach88/splitledger/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrEmptyUserID         = "E201" // user id is empty
	ErrEmptyUsername       = "E202" // username is empty
	ErrDuplicateUser       = "E203" // user id declared twice
	ErrDuplicateUsername   = "E204" // username declared twice
	ErrUnknownParty        = "E210" // ledger references an undeclared user
	ErrSelfLedger          = "E211" // debtor == creditor
	ErrNonPositiveAmount   = "E212" // amount <= 0
	ErrDuplicateLedgerID   = "E213" // ledger id declared twice
	ErrDuplicateLedgerPair = "E214" // (debtor, creditor) declared twice
)

// ValidationError represents a fixture validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled group against the rules the ledger store
// enforces, so an import never fails halfway.
// Returns all errors found (does not fail-fast).
func Validate(g *Group) []ValidationError {
	var errs []ValidationError

	ids := make(map[ir.PartyID]bool)
	names := make(map[string]bool)
	for i, u := range g.Snapshot.Users {
		field := fmt.Sprintf("users[%d]", i)
		if u.ID == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "user id is required", Code: ErrEmptyUserID})
		}
		if u.Username == "" {
			errs = append(errs, ValidationError{Field: field + ".username", Message: "username is required", Code: ErrEmptyUsername})
		}
		if u.ID != "" && ids[u.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("user %q declared twice", u.ID),
				Code:    ErrDuplicateUser,
			})
		}
		if u.Username != "" && names[u.Username] {
			errs = append(errs, ValidationError{
				Field:   field + ".username",
				Message: fmt.Sprintf("username %q declared twice", u.Username),
				Code:    ErrDuplicateUsername,
			})
		}
		ids[u.ID] = true
		names[u.Username] = true
	}

	ledgerIDs := make(map[string]bool)
	pairs := make(map[[2]ir.PartyID]bool)
	for i, l := range g.Snapshot.Ledgers {
		field := fmt.Sprintf("ledgers[%d]", i)
		for _, p := range []ir.PartyID{l.Debtor, l.Creditor} {
			if !ids[p] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("party %q is not a declared user", p),
					Code:    ErrUnknownParty,
				})
			}
		}
		if l.IsSelf() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q cannot owe themselves", l.Debtor),
				Code:    ErrSelfLedger,
			})
		}
		if l.Amount <= 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".amount",
				Message: fmt.Sprintf("amount must be positive, got %d", l.Amount),
				Code:    ErrNonPositiveAmount,
			})
		}
		if ledgerIDs[l.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("ledger id %q declared twice", l.ID),
				Code:    ErrDuplicateLedgerID,
			})
		}
		pair := [2]ir.PartyID{l.Debtor, l.Creditor}
		if pairs[pair] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q already owes %q in this group", l.Debtor, l.Creditor),
				Code:    ErrDuplicateLedgerPair,
			})
		}
		ledgerIDs[l.ID] = true
		pairs[pair] = true
	}

	return errs
}
