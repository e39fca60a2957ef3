package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/fixture"
	"github.com/roach88/splitledger/internal/ir"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Simplify bool
}

// ImportedGroup describes one imported fixture group.
type ImportedGroup struct {
	Name    string `json:"name"`
	ChatID  string `json:"chat_id"`
	Users   int    `json:"users"`
	Ledgers int    `json:"ledgers"`
	Digest  string `json:"digest"` // content digest of the declared users and ledgers
}

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	Groups []ImportedGroup `json:"groups"`
	Files  int             `json:"files"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <fixtures-dir>",
		Short: "Load CUE group fixtures into the database",
		Long: `Compile and validate every group declared in the CUE files of a
directory, then register its users, add them to the group's chat and
write its ledgers.

Nothing is written unless every group is valid. Importing the same
fixtures again leaves the database unchanged.

Examples:
  splitledger import ./testdata/fixtures
  splitledger import ./fixtures --simplify`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Simplify, "simplify", false, "simplify each imported chat afterwards")

	return cmd
}

func runImport(opts *ImportOptions, dir string, cmd *cobra.Command) error {
	f := opts.newFormatter(cmd)

	loaded, errs := fixture.Load(dir, fixture.LoadModeCollectAll)
	if len(errs) > 0 {
		return reportLoadErrors(f, errs)
	}
	f.VerboseLog("Loaded %d group(s) from %d file(s)", len(loaded.Groups), loaded.FileCount)

	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	result := ImportResult{
		Groups: make([]ImportedGroup, 0, len(loaded.Groups)),
		Files:  loaded.FileCount,
	}
	var lines []string
	for _, g := range loaded.Groups {
		if err := fixture.Import(ctx, a.store, g); err != nil {
			return WrapExitError(ExitFailure, "import failed", err)
		}
		a.logger.Info("group imported", "group", g.Name, "chat_id", g.ChatID)

		if opts.Simplify {
			if _, err := a.bot.SimplifyChat(ctx, g.ChatID); err != nil {
				return WrapExitError(ExitFailure, "simplification failed", err)
			}
		}

		digest, err := ir.SnapshotDigest(g.Snapshot)
		if err != nil {
			return WrapExitError(ExitFailure, "import failed", err)
		}
		result.Groups = append(result.Groups, ImportedGroup{
			Name:    g.Name,
			ChatID:  g.ChatID,
			Users:   len(g.Snapshot.Users),
			Ledgers: len(g.Snapshot.Ledgers),
			Digest:  digest,
		})
		lines = append(lines, fmt.Sprintf("Imported %s into chat %s (%d users, %d ledgers)",
			g.Name, g.ChatID, len(g.Snapshot.Users), len(g.Snapshot.Ledgers)))
	}

	return f.Success(result, strings.Join(lines, "\n"))
}

// reportLoadErrors prints fixture errors and returns the matching exit
// error: a missing directory is a command error, invalid fixtures a failure.
func reportLoadErrors(f *OutputFormatter, errs []error) error {
	code := ExitFailure
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
		var le *fixture.LoadError
		if errors.As(err, &le) && le.Code == fixture.ErrCodeNotFound {
			code = ExitCommandError
		}
	}

	msg := fmt.Sprintf("%d fixture error(s)", len(errs))
	if f.Format == "json" {
		if err := f.Error("E_FIXTURE", msg, messages); err != nil {
			return err
		}
	} else {
		for _, m := range messages {
			fmt.Fprintf(f.Writer, "\u2717 %s\n", m)
		}
	}
	return NewExitError(code, msg)
}
