package harness

import (
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ir"
)

// TraceEvent records one chat message and the bot's reply.
type TraceEvent struct {
	Step   int    `json:"step"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	Reply  string `json:"reply"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains the messages and replies in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is what the scenario's pass reported.
	Report engine.Report `json:"report"`

	// Before holds the group's ledgers right before the pass; Ledgers holds
	// them after, as read back from the store.
	Before  []ir.Ledger `json:"before"`
	Ledgers []ir.Ledger `json:"ledgers"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Before:  []ir.Ledger{},
		Ledgers: []ir.Ledger{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddReply appends a message and its reply to the trace.
func (r *Result) AddReply(sender, text, reply string) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:   len(r.Trace),
		Sender: sender,
		Text:   text,
		Reply:  reply,
	})
}
