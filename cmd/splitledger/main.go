// Command splitledger records shared expenses from chat commands and keeps
// each chat's debts simplified.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/splitledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
