package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/storytrace/internal/backlog"
)

// backlogFlags holds the parsed flags for the backlog command.
type backlogFlags struct {
	strict  bool
	verbose bool
	quiet   bool
}

func newBacklogCmd() *cobra.Command {
	var flags backlogFlags
	cmd := &cobra.Command{
		Use:   "backlog [dir]",
		Short: "Validate Backlog.md-style markdown task files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "backlog"
			if len(args) == 1 {
				dir = args[0]
			}
			return runBacklog(dir, flags, os.Stdout)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.strict, "strict", false, "Treat warnings as errors")
	f.BoolVar(&flags.verbose, "verbose", false, "Show warnings")
	f.BoolVar(&flags.quiet, "quiet", false, "Only report through the exit code")
	return cmd
}

func runBacklog(dir string, flags backlogFlags, stdout io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return codeError(2, "resolving path: %s", err)
	}
	if !pathExists(abs) {
		return codeError(2, "Backlog directory not found: %s", abs)
	}
	fmt.Fprintf(stdout, "Validating backlog: %s\n\n", abs)

	g, err := repoGrammar(filepath.Dir(abs))
	if err != nil {
		return err
	}

	result := backlog.Validate(abs, g, flags.strict)
	if !flags.quiet {
		backlog.PrintResult(stdout, result, flags.verbose)
	}
	if !result.Valid() {
		return exitCode(1)
	}
	return nil
}
