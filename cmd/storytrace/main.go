package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/storytrace/internal/config"
	"github.com/dshills/storytrace/internal/grammar"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// exitCode returns a message-less exitErr for commands that already
// reported their findings on stdout.
func exitCode(code int) error {
	return &exitErr{code: code}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "storytrace",
		Short: "Trace requirement IDs across requirements, tests, source, and docs",
		Long: "StoryTrace follows requirement identifiers (FT-001, US-002, RISK-IAM-001, ...) " +
			"through a repository: YAML requirements, test suites, source decorators, and design docs. " +
			"It reports where each ID lives, flags duplicate definitions, measures coverage, and scores " +
			"the repository's traceability.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAuditCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newCheckIDsCmd())
	root.AddCommand(newBacklogCmd())
	root.AddCommand(newInitCmd())
	return root
}

// repoGrammar loads the identifier grammar configured at root, falling
// back to the built-in registry when the repo has no config file.
func repoGrammar(root string) (*grammar.Grammar, error) {
	cfg, err := config.LoadFromRepo(root)
	if err != nil {
		return nil, codeError(2, "loading config: %s", err)
	}
	g, err := cfg.Grammar()
	if err != nil {
		return nil, codeError(2, "invalid prefixes: %s", err)
	}
	return g, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// logVerbose writes a message to stderr when verbose mode is enabled.
func logVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "INFO: "+format+"\n", args...)
	}
}
