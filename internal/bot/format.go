package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ir"
	"github.com/roach88/splitledger/internal/message"
	"github.com/roach88/splitledger/internal/settle"
)

func parseErrorReply(err error) string {
	switch {
	case errors.Is(err, message.ErrUnknownCommand):
		return "Unknown command. Send /help for the list of commands."
	case errors.Is(err, message.ErrMissingAmount):
		return "Amount not specified."
	case errors.Is(err, message.ErrInvalidAmount):
		return "Invalid amount. Use a positive number with at most two decimals, like 12.50."
	case errors.Is(err, message.ErrNoMentions):
		return "Mention at least one person with @username."
	case errors.Is(err, message.ErrInvalidLimit):
		return "History limit must be a positive whole number."
	default:
		return "Could not read that command. Send /help for the list of commands."
	}
}

func selfTransferReply(kind ir.TransactionKind) string {
	if kind == ir.KindPayment {
		return "You cannot pay yourself."
	}
	return "You cannot loan money to yourself."
}

func displayName(id ir.PartyID, names map[ir.PartyID]string) string {
	if name, ok := names[id]; ok && name != "" {
		return "@" + name
	}
	return id.String()
}

// formatTransfer renders the reply to /loan and /pay:
//
//	@alice lent 10.00 for pizza
//	  @bob 3.34
//	  @carol 3.33
func formatTransfer(kind ir.TransactionKind, msg message.Message, settled []settle.Settlement, names map[ir.PartyID]string) string {
	if len(settled) == 0 {
		return "Nothing recorded: the amount is too small to split."
	}
	var sb strings.Builder

	initiator := displayName(settled[0].Transaction.Initiator, names)
	verb := "lent"
	if kind == ir.KindPayment {
		verb = "paid"
	}
	fmt.Fprintf(&sb, "%s %s %s", initiator, verb, message.FormatAmount(msg.Amount))
	if kind == ir.KindPayment && len(settled) > 1 {
		sb.WriteString(" each")
	}
	if msg.Description != "" {
		fmt.Fprintf(&sb, " for %s", msg.Description)
	}
	for _, st := range settled {
		fmt.Fprintf(&sb, "\n  %s %s",
			displayName(st.Transaction.Receiver, names),
			message.FormatAmount(st.Transaction.Amount),
		)
	}
	return sb.String()
}

func formatReport(rep engine.Report) string {
	return fmt.Sprintf("Debts simplified: %d mutual netted, %d cycles cancelled, %s cleared.",
		rep.Nettings,
		rep.Cancellations,
		message.FormatAmount(rep.AmountCancelled),
	)
}

// formatBalance lists active ledgers as "@debtor owes @creditor 12.50".
func formatBalance(ledgers []ir.Ledger, names map[ir.PartyID]string) string {
	var lines []string
	for _, l := range ledgers {
		if !l.Active() {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s owes %s %s",
			displayName(l.Debtor, names),
			displayName(l.Creditor, names),
			message.FormatAmount(l.Amount),
		))
	}
	if len(lines) == 0 {
		return "No outstanding debts."
	}
	return strings.Join(lines, "\n")
}

// formatHistory lists transactions newest first as
// "#3 @alice lent @bob 3.34 (pizza)".
func formatHistory(txs []ir.Transaction, names map[ir.PartyID]string) string {
	if len(txs) == 0 {
		return "No transactions yet."
	}

	lines := make([]string, 0, len(txs))
	for _, t := range txs {
		verb := "lent"
		if t.Kind == ir.KindPayment {
			verb = "paid"
		}
		line := fmt.Sprintf("#%d %s %s %s %s",
			t.Seq,
			displayName(t.Initiator, names),
			verb,
			displayName(t.Receiver, names),
			message.FormatAmount(t.Amount),
		)
		if t.Description != "" {
			line += " (" + t.Description + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
