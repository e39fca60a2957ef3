package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/bot"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ir"
	"github.com/roach88/splitledger/internal/message"
)

// ChatOptions holds the flags shared by the per-chat ledger commands.
type ChatOptions struct {
	*RootOptions
	Chat  string
	Limit int    // history only
	Only  string // simplify only
}

// BalanceResult is the JSON payload of the balance command.
type BalanceResult struct {
	ChatID  string      `json:"chat_id"`
	Ledgers []ir.Ledger `json:"ledgers"`
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	ChatID       string           `json:"chat_id"`
	Transactions []ir.Transaction `json:"transactions"`
}

// SimplifyResult is the JSON payload of the simplify command.
type SimplifyResult struct {
	ChatID  string        `json:"chat_id"`
	Pass    bot.Pass      `json:"pass"`
	Report  engine.Report `json:"report"`
	Ledgers []ir.Ledger   `json:"ledgers"`
}

func addChatFlag(cmd *cobra.Command, opts *ChatOptions) {
	cmd.Flags().StringVar(&opts.Chat, "chat", "", "chat id (required)")
	_ = cmd.MarkFlagRequired("chat")
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show who owes whom in a chat",
		Long: `Show the outstanding debts between the members of a chat.

Examples:
  splitledger balance --chat trip
  splitledger balance --chat trip --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(opts, cmd)
		},
	}
	addChatFlag(cmd, opts)
	return cmd
}

func runBalance(opts *ChatOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	text, err := a.bot.Balance(ctx, opts.Chat)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load balance", err)
	}
	ledgers, err := chatLedgers(a, opts.Chat, cmd)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load balance", err)
	}

	return opts.newFormatter(cmd).Success(BalanceResult{ChatID: opts.Chat, Ledgers: ledgers}, text)
}

// chatLedgers returns the active ledgers among the chat's members.
func chatLedgers(a *app, chatID string, cmd *cobra.Command) ([]ir.Ledger, error) {
	ctx := cmd.Context()
	members, err := a.store.LoadGroupMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]ir.PartyID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	ledgers, err := a.store.LoadGroupLedgers(ctx, ids)
	if err != nil {
		return nil, err
	}
	return ir.Snapshot{Ledgers: ledgers}.ActiveLedgers(), nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a chat's recent transactions",
		Long: `List a chat's most recent loans and payments, newest first.

Examples:
  splitledger history --chat trip
  splitledger history --chat trip --limit 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}
	addChatFlag(cmd, opts)
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "number of transactions (default from SPLITLEDGER_HISTORY_LIMIT)")
	return cmd
}

func runHistory(opts *ChatOptions, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid limit %d: must be positive", opts.Limit))
	}

	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	limit := opts.Limit
	if limit == 0 {
		limit = a.cfg.HistoryLimit
	}

	text, err := a.bot.History(ctx, opts.Chat, limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load history", err)
	}
	txs, err := a.store.ChatHistory(ctx, opts.Chat, limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load history", err)
	}

	return opts.newFormatter(cmd).Success(HistoryResult{ChatID: opts.Chat, Transactions: txs}, text)
}

// NewSimplifyCommand creates the simplify command.
func NewSimplifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simplify",
		Short: "Simplify a chat's debts now",
		Long: `Run a simplification pass over a chat's ledgers and store the result.

By default mutual debts are netted and then circular debts are cancelled.
--only restricts the pass to one of the two resolvers.

Examples:
  splitledger simplify --chat trip
  splitledger simplify --chat trip --only cycles`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(opts, cmd)
		},
	}
	addChatFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.Only, "only", "", "run a single resolver (bidirectional|cycles)")
	return cmd
}

func runSimplify(opts *ChatOptions, cmd *cobra.Command) error {
	pass, err := bot.ParsePass(opts.Only)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --only", err)
	}

	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	res, err := a.bot.SimplifyChatPass(ctx, opts.Chat, pass)
	if err != nil {
		return WrapExitError(ExitFailure, "simplification failed", err)
	}

	text := "Nothing to simplify."
	if res.Report.Changed() {
		balance, err := a.bot.Balance(ctx, opts.Chat)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to load balance", err)
		}
		text = fmt.Sprintf("%d mutual netted, %d cycles cancelled, %s cleared.\n%s",
			res.Report.Nettings,
			res.Report.Cancellations,
			message.FormatAmount(res.Report.AmountCancelled),
			balance,
		)
	}

	return opts.newFormatter(cmd).Success(SimplifyResult{
		ChatID:  opts.Chat,
		Pass:    pass,
		Report:  res.Report,
		Ledgers: res.Snapshot.ActiveLedgers(),
	}, text)
}
