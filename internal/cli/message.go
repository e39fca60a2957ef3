package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/bot"
	"github.com/roach88/splitledger/internal/ir"
)

// MessageOptions holds flags for the message command.
type MessageOptions struct {
	*RootOptions
	Chat     string
	User     string
	Username string
}

// MessageResult is the JSON payload of the message command.
type MessageResult struct {
	ChatID string `json:"chat_id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	Reply  string `json:"reply"`
}

// NewMessageCommand creates the message command.
func NewMessageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MessageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Send one chat message to the bot",
		Long: `Send one chat message as a user of a chat and print the bot's reply.

The words after the flags are joined into the message text, so quoting is
optional.

Examples:
  splitledger message --chat trip --user 42 --name alice /register
  splitledger message --chat trip --user 42 "/loan 30 @bob @carol dinner"
  splitledger message --chat trip --user 43 /balance --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessage(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Chat, "chat", "", "chat id (required)")
	_ = cmd.MarkFlagRequired("chat")
	cmd.Flags().StringVar(&opts.User, "user", "", "sender user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Username, "name", "", "sender username, needed for /register")

	return cmd
}

func runMessage(opts *MessageOptions, text string, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.bot.Handle(cmd.Context(), bot.Incoming{
		ChatID:   opts.Chat,
		Sender:   ir.PartyID(opts.User),
		Username: opts.Username,
		Text:     text,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to handle message", err)
	}

	return opts.newFormatter(cmd).Success(MessageResult{
		ChatID: opts.Chat,
		Sender: opts.User,
		Text:   text,
		Reply:  reply,
	}, reply)
}
