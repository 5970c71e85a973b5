// Command appshell serves and maintains an offline app shell.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/appshell/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		// Commands report ExitErrors themselves; anything else comes from
		// cobra (bad flags, unknown command) and has not been printed.
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
