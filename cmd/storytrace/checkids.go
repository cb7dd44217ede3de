package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/storytrace/internal/checkids"
	"github.com/dshills/storytrace/internal/config"
	"github.com/dshills/storytrace/internal/render"
	"github.com/dshills/storytrace/internal/scan"
)

// checkIDsFlags holds the parsed flags for the check-ids command.
type checkIDsFlags struct {
	requirements string
	explain      bool
}

func newCheckIDsCmd() *cobra.Command {
	var flags checkIDsFlags
	cmd := &cobra.Command{
		Use:   "check-ids [files...]",
		Short: "Check YAML files for duplicate requirement ID definitions",
		Long: "check-ids scans YAML files for duplicate `id:` definitions. With file arguments " +
			"it checks only those files (pre-commit style); otherwise it walks the requirements directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckIDs(args, flags, os.Stdout)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.requirements, "requirements", "requirements", "Requirements directory walked when no files are given")
	f.BoolVar(&flags.explain, "explain", false, "Show the defining line for each duplicate location")
	return cmd
}

func runCheckIDs(args []string, flags checkIDsFlags, stdout io.Writer) error {
	var files []string
	if len(args) > 0 {
		for _, arg := range args {
			switch filepath.Ext(arg) {
			case ".yaml", ".yml":
				files = append(files, arg)
			}
		}
	} else {
		if !pathExists(flags.requirements) {
			fmt.Fprintln(stdout, "No requirements directory found.")
			return nil
		}
		cfg, err := config.LoadFromRepo(filepath.Dir(flags.requirements))
		if err != nil {
			return codeError(2, "loading config: %s", err)
		}
		walker := scan.NewWalker(filepath.Dir(flags.requirements), cfg.GitignoreEnabled())
		files = walker.Files(flags.requirements, "**/*.yaml", "**/*.yml")
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "No YAML files to check.")
		return nil
	}

	g, err := repoGrammar(filepath.Dir(flags.requirements))
	if err != nil {
		return err
	}

	dups, unique := checkids.Check(g, files)
	if len(dups) == 0 {
		fmt.Fprintf(stdout, "No duplicate IDs found (%d unique IDs checked)\n", unique)
		return nil
	}

	fmt.Fprintln(stdout, "Duplicate story IDs found:")
	fmt.Fprintln(stdout)
	for _, dup := range dups {
		fmt.Fprintf(stdout, "  %s:\n", dup.ID)
		for _, loc := range dup.Locations {
			if flags.explain {
				fmt.Fprintf(stdout, "    - %s:%d  %s\n", loc.File, loc.Line, render.DisplaySnippet(loc.Snippet))
			} else {
				fmt.Fprintf(stdout, "    - %s:%d\n", loc.File, loc.Line)
			}
		}
	}
	fmt.Fprintf(stdout, "\n%d duplicate ID(s) found. Please resolve conflicts.\n", len(dups))
	return exitCode(1)
}
