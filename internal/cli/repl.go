package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/bot"
	"github.com/roach88/splitledger/internal/ir"
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	Chat     string
	User     string
	Username string
}

// switchPrefix starts a line that changes the current sender.
const switchPrefix = ":as "

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Chat with the bot from standard input",
		Long: `Read chat messages from standard input, one per line, and print the
bot's replies. Messages are handled one at a time in arrival order.

A line of the form ":as <user-id> [username]" switches the sender for the
following lines.

Examples:
  splitledger repl --chat trip --user 42 --name alice
  printf '/register\n:as 43 bob\n/register\n' | splitledger repl --chat trip --user 42 --name alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Chat, "chat", "", "chat id (required)")
	_ = cmd.MarkFlagRequired("chat")
	cmd.Flags().StringVar(&opts.User, "user", "", "initial sender user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Username, "name", "", "initial sender username")

	return cmd
}

func runRepl(opts *ReplOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	done := make(chan error, 1)
	go func() { done <- a.bot.Run(ctx) }()

	sender := bot.Incoming{ChatID: opts.Chat, Sender: ir.PartyID(opts.User), Username: opts.Username}
	loopErr := replLoop(ctx, a.bot, sender, cmd)

	a.bot.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "bot error", err)
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) && !errors.Is(loopErr, bot.ErrStopped) {
		return WrapExitError(ExitFailure, "repl error", loopErr)
	}
	return nil
}

// replLoop submits every input line as a message from the current sender
// and prints the non-empty replies.
func replLoop(ctx context.Context, b *bot.Bot, in bot.Incoming, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(line, switchPrefix); ok {
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				fmt.Fprintln(w, "usage: :as <user-id> [username]")
				continue
			}
			in.Sender = ir.PartyID(fields[0])
			in.Username = ""
			if len(fields) > 1 {
				in.Username = fields[1]
			}
			continue
		}

		in.Text = line
		reply, err := b.Submit(ctx, in)
		if err != nil {
			return err
		}
		if reply != "" {
			fmt.Fprintln(w, reply)
		}
	}
	return scanner.Err()
}
