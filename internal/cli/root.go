package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/bot"
	"github.com/roach88/splitledger/internal/config"
	"github.com/roach88/splitledger/internal/events"
	"github.com/roach88/splitledger/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides SPLITLEDGER_DB
	EnvFile  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the splitledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "splitledger",
		Short: "splitledger - shared expenses with simplified debts",
		Long: `Track who owes whom in a group chat.

Loans and payments are recorded as chat commands. After every change the
chat's debts are simplified: mutual debts are netted and circular debts
are cancelled, so nobody pays money that would only come back to them.`,
		// main prints the returned error once.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from SPLITLEDGER_DB)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional dotenv file with SPLITLEDGER_* settings")

	cmd.AddCommand(NewMessageCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewSimplifyCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig reads the env file and environment, then applies flag
// overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return config.Config{}, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// newLogger returns a text logger on w at Debug when verbose, else at the
// configured level.
func (o *RootOptions) newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := cfg.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// app bundles what the ledger commands share: the store, the event
// publisher and the bot on top of them.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	publisher events.Publisher
	bot       *bot.Bot
}

// openApp loads configuration, opens the database and wires the bot.
// Every failure is a command error.
func (o *RootOptions) openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	logger := o.newLogger(cfg, cmd.ErrOrStderr())

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var pub events.Publisher = events.Nop{}
	if cfg.EventsEnabled() {
		logger.Debug("publishing events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		publisher: pub,
		bot: bot.New(st,
			bot.WithLogger(logger),
			bot.WithPublisher(pub),
			bot.WithHistoryLimit(cfg.HistoryLimit),
		),
	}, nil
}

// Close flushes the publisher and closes the database.
func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Error("error closing event publisher", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// newFormatter returns a formatter writing to the command's output streams.
func (o *RootOptions) newFormatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
