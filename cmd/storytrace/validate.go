package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/storytrace/internal/patch"
	"github.com/dshills/storytrace/internal/reqfile"
	"github.com/dshills/storytrace/internal/schema"
)

// validateFlags holds the parsed flags for the validate command.
type validateFlags struct {
	requirements string
	file         string
	strict       bool
	verbose      bool
	quiet        bool
	suggestFixes bool
	patchOut     string
}

func newValidateCmd() *cobra.Command {
	var flags validateFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate requirements YAML files against the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(flags, os.Stdout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.requirements, "requirements", "requirements", "Requirements directory")
	f.StringVar(&flags.file, "file", "", "Validate a single file instead of the whole directory")
	f.BoolVar(&flags.strict, "strict", false, "Fail on fields the schema does not know")
	f.BoolVar(&flags.verbose, "verbose", false, "Show warnings and extra fields for passing files")
	f.BoolVar(&flags.quiet, "quiet", false, "Only show the summary, not per-file results")
	f.BoolVar(&flags.suggestFixes, "suggest-fixes", false, "Show suggestions for fixing common issues")
	f.StringVar(&flags.patchOut, "patch-out", "", "Write fix suggestions as diffs to this file")
	return cmd
}

func runValidate(flags validateFlags, stdout io.Writer) error {
	fmt.Fprintf(stdout, "Schema Version: v%s\n", schema.SchemaVersion)

	if flags.file != "" {
		return validateSingle(flags, stdout)
	}

	dir, err := filepath.Abs(flags.requirements)
	if err != nil {
		return codeError(2, "resolving path: %s", err)
	}
	if !pathExists(dir) {
		return codeError(2, "Requirements directory not found: %s", dir)
	}
	fmt.Fprintf(stdout, "Validating: %s\n\n", dir)

	g, err := repoGrammar(filepath.Dir(dir))
	if err != nil {
		return err
	}

	summary := reqfile.ValidateAll(dir, g, flags.strict)
	if !flags.quiet {
		for _, result := range summary.Results {
			reqfile.PrintResult(stdout, result, flags.verbose)
		}
	}
	reqfile.PrintSummary(stdout, summary)

	if flags.suggestFixes || flags.patchOut != "" {
		suggestions := reqfile.AnalyzeFixes(dir)
		if flags.suggestFixes {
			reqfile.PrintFixSuggestions(stdout, suggestions)
		}
		if flags.patchOut != "" {
			diffs := patch.GenerateDiffs(suggestions, os.Stderr)
			if err := os.WriteFile(flags.patchOut, []byte(diffs), 0o644); err != nil {
				// Diffs are advisory, so a failed write only warns.
				fmt.Fprintf(os.Stderr, "WARN: patch write failed: %s\n", err)
			}
		}
	}

	if summary.InvalidFiles > 0 {
		return exitCode(1)
	}
	return nil
}

func validateSingle(flags validateFlags, stdout io.Writer) error {
	if !pathExists(flags.file) {
		return codeError(2, "File not found: %s", flags.file)
	}
	g, err := repoGrammar(".")
	if err != nil {
		return err
	}

	var result reqfile.Result
	if filepath.Base(flags.file) == "_index.yaml" {
		result = reqfile.ValidateIndex(filepath.Dir(flags.file), g)
	} else {
		result = reqfile.ValidateFeature(flags.file, g, flags.strict)
	}
	reqfile.PrintResult(stdout, result, flags.verbose)
	if !result.Valid {
		return exitCode(1)
	}
	return nil
}
