package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/storytrace/internal/audit"
	"github.com/dshills/storytrace/internal/config"
	"github.com/dshills/storytrace/internal/coverage"
	"github.com/dshills/storytrace/internal/render"
	"github.com/dshills/storytrace/internal/scan"
	"github.com/dshills/storytrace/internal/schema"
	"github.com/dshills/storytrace/internal/watch"
)

// auditFlags holds the parsed flags for the audit command.
type auditFlags struct {
	format   string
	out      string
	minLines int
	cfgFile  string
	watch    bool
	verbose  bool
}

func newAuditCmd() *cobra.Command {
	var flags auditFlags
	cmd := &cobra.Command{
		Use:   "audit [path]",
		Short: "Audit requirement traceability across a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runAudit(path, flags, os.Stdout, os.Stderr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.format, "format", "text", "Output format: text or json")
	f.StringVar(&flags.out, "out", "", "Write the report to a file instead of stdout")
	f.IntVar(&flags.minLines, "min-lines", 0, "Minimum line count before an untraced source file counts as an orphan (overrides config)")
	f.StringVar(&flags.cfgFile, "config", "", "Config file (default <path>/.storytrace.yaml)")
	f.BoolVar(&flags.watch, "watch", false, "Re-run the audit whenever watched files change")
	f.BoolVar(&flags.verbose, "verbose", false, "Print processing steps to stderr")
	return cmd
}

func runAudit(path string, flags auditFlags, stdout, stderr io.Writer) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return codeError(2, "resolving path: %s", err)
	}
	if !pathExists(filepath.Join(root, ".git")) && !pathExists(filepath.Join(root, "requirements")) {
		fmt.Fprintf(stderr, "Warning: %s may not be a valid project directory\n", path)
	}

	cfgPath := flags.cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(root, config.FileName)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return codeError(2, "loading config: %s", err)
	}
	if flags.minLines > 0 {
		cfg.MinSourceLines = flags.minLines
	}
	if err := cfg.Validate(); err != nil {
		return codeError(2, "invalid config: %s", err)
	}

	opts, err := audit.NewOptions(cfg)
	if err != nil {
		return codeError(2, "invalid config: %s", err)
	}
	opts.Warn = stderr

	renderer, err := render.NewRenderer(flags.format)
	if err != nil {
		return codeError(2, "%s", err)
	}

	run := func(ctx context.Context) (*schema.AggregateResult, error) {
		logVerbose(flags.verbose, "Auditing %s", root)
		result, err := audit.Run(ctx, root, opts)
		if err != nil {
			return nil, err
		}
		logVerbose(flags.verbose, "Run %s: %d ids, %d conflicts", result.RunID, len(result.AllIDs), len(result.Conflicts))

		report, err := renderer.Render(result, coverage.Compute(result, opts.Grammar))
		if err != nil {
			return nil, err
		}
		if flags.out != "" {
			return result, os.WriteFile(flags.out, report, 0o644)
		}
		if _, err := stdout.Write(report); err != nil {
			return nil, err
		}
		if len(report) > 0 && report[len(report)-1] != '\n' {
			fmt.Fprintln(stdout)
		}
		return result, nil
	}

	if !flags.watch {
		result, err := run(context.Background())
		if err != nil {
			return codeError(2, "audit failed: %s", err)
		}
		if len(result.Conflicts) > 0 {
			return exitCode(1)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	last, err := run(ctx)
	if err != nil {
		return codeError(2, "audit failed: %s", err)
	}

	roots := watchRoots(root)
	logVerbose(flags.verbose, "Watching %d path(s), press Ctrl-C to stop", len(roots))
	werr := watch.Run(ctx, watch.Options{
		Roots: roots,
		OnError: func(err error) {
			fmt.Fprintf(stderr, "WARN: watch error: %s\n", err)
		},
	}, func(ctx context.Context) {
		result, err := run(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "WARN: audit failed: %s\n", err)
			return
		}
		last = result
	})
	if werr != nil {
		return codeError(2, "watch failed: %s", werr)
	}
	if len(last.Conflicts) > 0 {
		return exitCode(1)
	}
	return nil
}

// watchRoots lists the directories the audit reads, mirroring the
// scanner's layout rules.
func watchRoots(root string) []string {
	reqDir := filepath.Join(root, "requirements")
	if !pathExists(reqDir) && filepath.Base(root) == "requirements" {
		reqDir = root
	}
	roots := []string{
		reqDir,
		filepath.Join(root, "tests"),
		filepath.Join(root, "src"),
		filepath.Join(root, "docs"),
	}
	roots = append(roots, scan.GlobDirs(root, "apps/*/src")...)
	roots = append(roots, scan.GlobDirs(root, "apps/*/tests")...)
	return roots
}
