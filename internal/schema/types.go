package schema

// SchemaVersion tags every AggregateResult so downstream consumers (exporters,
// report tooling) can detect grammar/format evolution.
const SchemaVersion = "1.0.0"

// Category identifies which scan produced an occurrence.
type Category string

const (
	CategoryRequirement Category = "requirement"
	CategoryTest        Category = "test"
	CategorySource      Category = "source"
	CategoryDoc         Category = "doc"
)

// IsValidCategory reports whether c is one of the four scan categories.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryRequirement, CategoryTest, CategorySource, CategoryDoc:
		return true
	}
	return false
}

// Occurrence records a single identifier sighting. Occurrences are immutable
// once produced; they are aggregated, never edited.
type Occurrence struct {
	ID       string   `json:"id"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Category Category `json:"category"`
	// Snippet is the raw source line, capped at the scanner's storage limit.
	// Display truncation happens in the renderer and never here.
	Snippet string `json:"snippet"`
}

// Conflict is an identifier defined in more than one distinct file.
type Conflict struct {
	ID string `json:"id"`
	// Files lists the distinct defining files, sorted.
	Files []string `json:"files"`
	// Occurrences retains every requirement-category occurrence of the
	// identifier, definitions and references both, for diagnostics.
	Occurrences []Occurrence `json:"occurrences"`
}

// AggregateResult is the merged outcome of one audit run over a repository
// snapshot. It is reconstructed from scratch on every run and never persisted.
type AggregateResult struct {
	SchemaVersion string `json:"schema_version"`
	RepoPath      string `json:"repo_path"`

	// Per-category occurrence maps, keyed by identifier.
	Requirements map[string][]Occurrence `json:"requirements"`
	Tests        map[string][]Occurrence `json:"tests"`
	Sources      map[string][]Occurrence `json:"sources"`
	Docs         map[string][]Occurrence `json:"docs"`

	// AllIDs is the sorted union of the four category key sets.
	AllIDs []string `json:"all_ids"`

	Conflicts []Conflict `json:"conflicts"`

	// OrphanTests are test files with zero occurrences and no story marker.
	// OrphanSources are substantial source files with zero occurrences and no
	// trace marker. Both sorted.
	OrphanTests   []string `json:"orphan_tests"`
	OrphanSources []string `json:"orphan_sources"`

	// TestFileCount is the number of test files discovered by the test scan,
	// orphaned or not. The scoring engine needs it as a denominator.
	TestFileCount int `json:"test_file_count"`

	// RunID identifies this run in logs. Excluded from serialized output so
	// that identical snapshots produce identical reports.
	RunID string `json:"-"`
}

// Status is the coverage band shown in the per-prefix table.
type Status string

const (
	StatusOK   Status = "[OK]"
	StatusWarn Status = "[WARN]"
	StatusFail Status = "[FAIL]"
)

// PrefixCoverage is one row of the per-prefix coverage table.
type PrefixCoverage struct {
	Prefix string  `json:"prefix"`
	Total  int     `json:"total"`
	Tested int     `json:"tested"`
	Traced int     `json:"traced"`
	Pct    float64 `json:"pct"`
	Status Status  `json:"status"`
}

// ScoreComponent is one of the four additive pieces of the composite score.
type ScoreComponent struct {
	Name     string `json:"name"`
	Earned   int    `json:"earned"`
	Possible int    `json:"possible"`
	// Detail is the human-readable line for the score breakdown,
	// e.g. "Coverage >= 70% (85%)".
	Detail string `json:"detail"`
}

// Met reports whether the component earned its full possible points.
func (c ScoreComponent) Met() bool {
	return c.Earned == c.Possible
}

// ScoreBreakdown is the composite traceability score with its components in
// fixed order: conflicts, coverage, orphan tests, orphan sources.
type ScoreBreakdown struct {
	Components []ScoreComponent `json:"components"`
	Total      int              `json:"total"`
	Grade      string           `json:"grade"`
}

// CoverageReport is the derived read-only view over an AggregateResult.
// Recomputed on every render; never cached across runs.
type CoverageReport struct {
	TotalIDs       int    `json:"total_ids"`
	InRequirements int    `json:"in_requirements"`
	InTests        int    `json:"in_tests"`
	InSources      int    `json:"in_sources"`
	ConflictCount  int    `json:"conflict_count"`
	OrphanTests    int    `json:"orphan_tests"`
	OrphanSources  int    `json:"orphan_sources"`
	// Uncovered lists requirement ids with neither test nor source coverage,
	// sorted. The renderer caps the display, never this list.
	Uncovered []string         `json:"uncovered"`
	Prefixes  []PrefixCoverage `json:"prefixes"`
	Score     ScoreBreakdown   `json:"score"`
}

// NewAggregateResult returns an empty result for the given repository path
// with all maps initialized and the current schema version stamped.
func NewAggregateResult(repoPath string) *AggregateResult {
	return &AggregateResult{
		SchemaVersion: SchemaVersion,
		RepoPath:      repoPath,
		Requirements:  make(map[string][]Occurrence),
		Tests:         make(map[string][]Occurrence),
		Sources:       make(map[string][]Occurrence),
		Docs:          make(map[string][]Occurrence),
	}
}

// CategoryMap returns the occurrence map for the given category, or nil for
// an unknown category.
func (r *AggregateResult) CategoryMap(c Category) map[string][]Occurrence {
	switch c {
	case CategoryRequirement:
		return r.Requirements
	case CategoryTest:
		return r.Tests
	case CategorySource:
		return r.Sources
	case CategoryDoc:
		return r.Docs
	default:
		return nil
	}
}
