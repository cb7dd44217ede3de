// Package audit aggregates story identifiers across a repository.
// One run scans requirements, tests, sources, and docs concurrently and
// merges the results into a single deterministic snapshot.
package audit

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/storytrace/internal/config"
	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/scan"
	"github.com/dshills/storytrace/internal/schema"
)

// DefaultMinSourceLines is the orphan-source size threshold: smaller files
// are never flagged.
const DefaultMinSourceLines = 20

// Options configure a single audit run.
type Options struct {
	Grammar          *grammar.Grammar
	MinSourceLines   int
	SourceExtensions []string
	TestFilePatterns []string
	TestMarker       string
	TraceMarker      string
	RespectGitignore bool
	Warn             io.Writer
}

// NewOptions maps a repository config onto audit options.
func NewOptions(cfg *config.Config) (Options, error) {
	g, err := cfg.Grammar()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Grammar:          g,
		MinSourceLines:   cfg.MinSourceLines,
		SourceExtensions: cfg.SourceExtensions,
		TestFilePatterns: cfg.TestFilePatterns,
		TestMarker:       cfg.TestMarker,
		TraceMarker:      cfg.TraceMarker,
		RespectGitignore: cfg.GitignoreEnabled(),
		Warn:             os.Stderr,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Grammar == nil {
		o.Grammar = grammar.Default()
	}
	if o.MinSourceLines <= 0 {
		o.MinSourceLines = DefaultMinSourceLines
	}
	if len(o.SourceExtensions) == 0 {
		o.SourceExtensions = config.Default().SourceExtensions
	}
	if len(o.TestFilePatterns) == 0 {
		o.TestFilePatterns = config.Default().TestFilePatterns
	}
	if o.TestMarker == "" {
		o.TestMarker = scan.DefaultTestMarker
	}
	if o.TraceMarker == "" {
		o.TraceMarker = scan.DefaultTraceMarker
	}
	return o
}

type runner struct {
	root    string
	opts    Options
	scanner *scan.Scanner
	walker  *scan.Walker
}

// Run scans the repository rooted at root and returns the aggregate
// snapshot. Missing layout directories contribute zero results; the only
// error path is context cancellation.
func Run(ctx context.Context, root string, opts Options) (*schema.AggregateResult, error) {
	opts = opts.withDefaults()

	sc := scan.New(opts.Grammar)
	sc.TestMarker = opts.TestMarker
	sc.TraceMarker = opts.TraceMarker
	if opts.Warn != nil {
		sc.Warn = opts.Warn
	}

	r := &runner{
		root:    root,
		opts:    opts,
		scanner: sc,
		walker:  scan.NewWalker(root, opts.RespectGitignore),
	}

	var (
		reqs, tests, sources, docs map[string][]schema.Occurrence
		orphanTests                []string
		orphanSources              []string
		testFileCount              int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reqs, err = r.scanRequirements(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tests, orphanTests, testFileCount, err = r.scanTests(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sources, orphanSources, err = r.scanSources(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = r.scanDocs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := schema.NewAggregateResult(root)
	result.RunID = uuid.NewString()
	result.Requirements = reqs
	result.Tests = tests
	result.Sources = sources
	result.Docs = docs
	result.AllIDs = unionIDs(reqs, tests, sources, docs)
	result.Conflicts = DetectConflicts(opts.Grammar, reqs)
	result.OrphanTests = orphanTests
	result.OrphanSources = orphanSources
	result.TestFileCount = testFileCount
	return result, nil
}

// rel returns path relative to the audit root in slash form. Stored paths
// stay stable regardless of how the root was spelled on the command line.
func (r *runner) rel(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (r *runner) requirementsDir() string {
	dir := filepath.Join(r.root, "requirements")
	if _, err := os.Stat(dir); err != nil && filepath.Base(r.root) == "requirements" {
		return r.root
	}
	return dir
}

func (r *runner) scanRequirements(ctx context.Context) (map[string][]schema.Occurrence, error) {
	refs := make(map[string][]schema.Occurrence)
	for _, path := range r.walker.Files(r.requirementsDir(), "**/*.yaml", "**/*.yml") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, ok := r.scanner.ReadText(path)
		if !ok {
			continue
		}
		for _, occ := range r.scanner.ScanContent(r.rel(path), content, schema.CategoryRequirement) {
			refs[occ.ID] = append(refs[occ.ID], occ)
		}
	}
	return refs, nil
}

func (r *runner) scanTests(ctx context.Context) (map[string][]schema.Occurrence, []string, int, error) {
	dir := filepath.Join(r.root, "tests")
	if _, err := os.Stat(dir); err != nil {
		dir = scan.FirstGlobDir(r.root, "apps/*/tests")
	}
	if dir == "" {
		return map[string][]schema.Occurrence{}, nil, 0, ctx.Err()
	}

	refs := make(map[string][]schema.Occurrence)
	var orphans []string
	files := r.walker.Files(dir, scan.NamePatterns(r.opts.TestFilePatterns)...)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}
		content, ok := r.scanner.ReadText(path)
		if !ok {
			continue
		}
		occs := r.scanner.ScanContent(r.rel(path), content, schema.CategoryTest)
		for _, occ := range occs {
			refs[occ.ID] = append(refs[occ.ID], occ)
		}
		if len(occs) == 0 && !r.scanner.HasTestMarker(content) {
			orphans = append(orphans, r.rel(path))
		}
	}
	sort.Strings(orphans)
	return refs, orphans, len(files), ctx.Err()
}

// Both layouts are scanned: a top-level src/ and any apps/*/src trees.
// The walker treats missing directories as empty.
func (r *runner) sourceDirs() []string {
	return append([]string{filepath.Join(r.root, "src")}, scan.GlobDirs(r.root, "apps/*/src")...)
}

func (r *runner) scanSources(ctx context.Context) (map[string][]schema.Occurrence, []string, error) {
	refs := make(map[string][]schema.Occurrence)
	var orphans []string
	patterns := scan.SourcePatterns(r.opts.SourceExtensions)
	for _, dir := range r.sourceDirs() {
		for _, path := range r.walker.Files(dir, patterns...) {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			if filepath.Base(path) == "__init__.py" {
				continue
			}
			content, ok := r.scanner.ReadText(path)
			if !ok {
				continue
			}
			occs := r.scanner.ScanContent(r.rel(path), content, schema.CategorySource)
			for _, occ := range occs {
				refs[occ.ID] = append(refs[occ.ID], occ)
			}
			if len(occs) == 0 && !r.scanner.HasTraceMarker(content) &&
				scan.CountLines(content) > r.opts.MinSourceLines {
				orphans = append(orphans, r.rel(path))
			}
		}
	}
	sort.Strings(orphans)
	return refs, orphans, ctx.Err()
}

func (r *runner) scanDocs(ctx context.Context) (map[string][]schema.Occurrence, error) {
	refs := make(map[string][]schema.Occurrence)
	for _, path := range r.walker.Files(filepath.Join(r.root, "docs"), "**/*.md") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, ok := r.scanner.ReadText(path)
		if !ok {
			continue
		}
		for _, occ := range r.scanner.ScanContent(r.rel(path), content, schema.CategoryDoc) {
			refs[occ.ID] = append(refs[occ.ID], occ)
		}
	}
	return refs, ctx.Err()
}

func unionIDs(maps ...map[string][]schema.Occurrence) []string {
	seen := make(map[string]bool)
	for _, m := range maps {
		for id := range m {
			seen[id] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
