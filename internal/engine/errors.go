package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/splitledger/internal/ir"
)

// ErrorKind categorizes engine errors.
type ErrorKind string

const (
	// KindLookupMiss means a ledger or node referenced during traversal does
	// not exist in the current graph. Resolvers treat it as "skip and
	// continue"; it never escapes a pass.
	KindLookupMiss ErrorKind = "LOOKUP_MISS"

	// KindInvariantViolation means two ledgers presumed to be mutually
	// reverse are not. It aborts the pass.
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"

	// KindStoreError wraps a failure from the LedgerWriter. It aborts the
	// whole pipeline.
	KindStoreError ErrorKind = "STORE_ERROR"
)

// Error represents a failure detected while simplifying a debt graph.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// LedgerID identifies the affected ledger, if any.
	LedgerID string

	// Party identifies the affected party, if any.
	Party ir.PartyID

	// Err is the underlying cause (store failures).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.LedgerID != "" {
		msg += fmt.Sprintf(" (ledger=%s)", e.LedgerID)
	}
	if e.Party != "" {
		msg += fmt.Sprintf(" (party=%s)", e.Party)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func isKind(err error, kind ErrorKind) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// IsLookupMiss reports whether err is a lookup miss.
func IsLookupMiss(err error) bool {
	return isKind(err, KindLookupMiss)
}

// IsInvariantViolation reports whether err is an invariant violation.
func IsInvariantViolation(err error) bool {
	return isKind(err, KindInvariantViolation)
}

// IsStoreError reports whether err came from the LedgerWriter.
func IsStoreError(err error) bool {
	return isKind(err, KindStoreError)
}

func newLookupMiss(ledgerID string, party ir.PartyID, msg string) *Error {
	return &Error{Kind: KindLookupMiss, Message: msg, LedgerID: ledgerID, Party: party}
}

func newInvariantViolation(ledgerID, msg string) *Error {
	return &Error{Kind: KindInvariantViolation, Message: msg, LedgerID: ledgerID}
}

func newStoreError(ledgerID string, err error) *Error {
	return &Error{Kind: KindStoreError, Message: "persist ledger", LedgerID: ledgerID, Err: err}
}
