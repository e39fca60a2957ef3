package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/splitledger/internal/ir"
)

// Command names a chat command.
type Command string

const (
	CmdRegister Command = "register"
	CmdLoan     Command = "loan"
	CmdPay      Command = "pay"
	CmdBalance  Command = "balance"
	CmdHistory  Command = "history"
	CmdSimplify Command = "simplify"
	CmdHelp     Command = "help"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrNotACommand    = errors.New("not a command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingAmount  = errors.New("amount not specified")
	ErrNoMentions     = errors.New("no people mentioned")
	ErrInvalidLimit   = errors.New("history limit must be a positive whole number")
)

// Message is a parsed chat command.
type Message struct {
	Command Command `json:"command"`

	// Amount in minor units (loan, pay).
	Amount int64 `json:"amount,omitempty"`

	// Mentions are normalized usernames in first-mention order, without
	// duplicates (loan, pay).
	Mentions []string `json:"mentions,omitempty"`

	// Description is the free text left after the amount and mentions.
	Description string `json:"description,omitempty"`

	// Limit is the requested history length; 0 means the default.
	Limit int `json:"limit,omitempty"`
}

// Kind returns the transaction kind for loan and pay commands.
func (m Message) Kind() (ir.TransactionKind, bool) {
	switch m.Command {
	case CmdLoan:
		return ir.KindLoan, true
	case CmdPay:
		return ir.KindPayment, true
	default:
		return "", false
	}
}

// Parse parses one chat message.
func Parse(text string) (Message, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Message{}, ErrNotACommand
	}

	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	cmd := Command(strings.ToLower(name))
	args := fields[1:]

	switch cmd {
	case CmdRegister, CmdBalance, CmdSimplify, CmdHelp:
		return Message{Command: cmd}, nil
	case CmdHistory:
		return parseHistory(args)
	case CmdLoan, CmdPay:
		return parseTransfer(cmd, args)
	default:
		return Message{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
}

func parseHistory(args []string) (Message, error) {
	m := Message{Command: CmdHistory}
	if len(args) == 0 {
		return m, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidLimit, args[0])
	}
	m.Limit = n
	return m, nil
}

func parseTransfer(cmd Command, args []string) (Message, error) {
	if len(args) == 0 {
		return Message{}, ErrMissingAmount
	}
	amount, err := ParseAmount(args[0])
	if err != nil {
		return Message{}, err
	}

	m := Message{Command: cmd, Amount: amount}
	seen := make(map[string]bool)
	var desc []string
	for _, tok := range args[1:] {
		if strings.HasPrefix(tok, "@") && len(tok) > 1 {
			name := ir.NormalizeUsername(tok)
			if !seen[name] {
				seen[name] = true
				m.Mentions = append(m.Mentions, name)
			}
			continue
		}
		desc = append(desc, tok)
	}
	if len(m.Mentions) == 0 {
		return Message{}, ErrNoMentions
	}
	m.Description = strings.Join(desc, " ")
	return m, nil
}

// Usage is the help text listing every command.
const Usage = `These commands are supported:
/register - register yourself to use the tracker in this chat
/loan <amount> <@people> [description] - loan money, split equally among the mentioned people
/pay <amount> <@people> [description] - pay the full amount to each mentioned person
/balance - show who owes whom
/history [n] - show the last n transactions (default 10)
/simplify - net out mutual and circular debts now
/help - show this text`
