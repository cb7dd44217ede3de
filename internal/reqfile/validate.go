package reqfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/schema"
)

// Result is the validation outcome for a single file.
type Result struct {
	Path     string
	Valid    bool
	Errors   []string
	Warnings []string
	Extra    map[string][]string
	Stats    []Stat
}

// Stat is a named count reported in verbose output.
type Stat struct {
	Name  string
	Value int
}

// Summary aggregates the results for a whole requirements directory.
type Summary struct {
	TotalFiles       int
	ValidFiles       int
	InvalidFiles     int
	TotalErrors      int
	TotalWarnings    int
	TotalExtraFields int
	Results          []Result
}

// Known field sets for extra-field detection. Fields the audit does not
// decode are still known to the format and must not be flagged.
var featureKnown = fieldSet(
	"id", "title", "epic_id", "phase", "priority", "status", "description",
	"business_value", "user_stories", "definition_of_done", "labels",
	"story_quality_summary", "technical_spec", "existing_code", "note",
)

var storyKnown = fieldSet(
	"id", "as_a", "i_want", "so_that", "acceptance_criteria", "priority",
	"story_quality", "status", "note",
)

func fieldSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// wrongIDKeys are field names commonly used in place of id:.
var wrongIDKeys = []struct {
	key string
	fix string
}{
	{"ref", "Use 'id:' for definitions, not 'ref:'"},
	{"story_id", "Use 'id:' instead of 'story_id:'"},
	{"feature_id", "Use 'id:' instead of 'feature_id:'"},
}

// ValidateAll validates _index.yaml and every features/FT-*.yaml under dir.
func ValidateAll(dir string, g *grammar.Grammar, strict bool) Summary {
	results := []Result{ValidateIndex(dir, g)}
	paths, _ := filepath.Glob(filepath.Join(dir, "features", "FT-*.yaml"))
	for _, p := range paths {
		results = append(results, ValidateFeature(p, g, strict))
	}
	return summarize(results)
}

// ValidateIndex validates dir/_index.yaml.
func ValidateIndex(dir string, g *grammar.Grammar) Result {
	path := filepath.Join(dir, "_index.yaml")
	if _, err := os.Stat(path); err != nil {
		return finalize(Result{Path: path, Errors: []string{"File not found"}})
	}

	var index Index
	root, err := loadDoc(path, &index)
	if err != nil {
		return finalize(Result{Path: path, Errors: []string{fmt.Sprintf("Parse error: %v", err)}})
	}

	r := Result{Path: path}
	r.Stats = []Stat{
		{"phases", len(index.Phases)},
		{"epics", len(index.Epics)},
		{"feature_refs", len(index.Features)},
	}

	var epicIDs []string
	for i, epic := range index.Epics {
		if epic.ID == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("epics[%d].id: field required", i))
			continue
		}
		epicIDs = append(epicIDs, epic.ID)
		if !matchesFamily(g, epic.ID, "EP") {
			r.Errors = append(r.Errors,
				fmt.Sprintf("epics[%d].id: %q does not match the EP identifier pattern", i, epic.ID),
				"  Expected: id: EP-XXX (e.g., EP-001)")
		}
		if epic.Title == "" {
			r.Errors = append(r.Errors,
				fmt.Sprintf("epics[%d].title: field required", i),
				"  Hint: Every feature/epic requires a 'title:' field")
		}
	}
	if dups := duplicates(epicIDs); len(dups) > 0 {
		r.Errors = append(r.Errors, "Duplicate epic IDs: "+strings.Join(dups, ", "))
	}

	featureNodes := seqItems(mappingValue(root, "features"))
	for i, ref := range index.Features {
		if ref.ID == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("features[%d].id: field required", i))
			if i < len(featureNodes) {
				r.Errors = append(r.Errors, wrongKeyHints(featureNodes[i])...)
			}
			continue
		}
		if !matchesFamily(g, ref.ID, "FT") {
			r.Errors = append(r.Errors,
				fmt.Sprintf("features[%d].id: %q does not match the FT identifier pattern", i, ref.ID),
				"  Expected: id: FT-XXX (e.g., FT-001)")
		}
	}

	phaseIDs := make([]string, 0, len(index.Phases))
	for id := range index.Phases {
		phaseIDs = append(phaseIDs, id)
	}
	sort.Strings(phaseIDs)
	for _, id := range phaseIDs {
		if index.Phases[id].Description == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("Phase '%s' has no description", id))
		}
	}

	return finalize(r)
}

// ValidateFeature validates a single features/FT-*.yaml file. In strict
// mode, fields outside the known schema become errors instead of notes.
func ValidateFeature(path string, g *grammar.Grammar, strict bool) Result {
	if _, err := os.Stat(path); err != nil {
		return finalize(Result{Path: path, Errors: []string{"File not found"}})
	}

	var feature Feature
	root, err := loadDoc(path, &feature)
	if err != nil {
		return finalize(Result{Path: path, Errors: []string{fmt.Sprintf("Parse error: %v", err)}})
	}

	r := Result{Path: path, Extra: map[string][]string{}}

	if feature.ID == "" {
		r.Errors = append(r.Errors, "id: field required")
		r.Errors = append(r.Errors, wrongKeyHints(root)...)
	} else if !matchesFamily(g, feature.ID, "FT") {
		r.Errors = append(r.Errors,
			fmt.Sprintf("id: %q does not match the FT identifier pattern", feature.ID),
			"  Expected: id: FT-XXX (e.g., FT-001)")
	}
	if feature.Title == "" {
		r.Errors = append(r.Errors,
			"title: field required",
			"  Hint: Every feature/epic requires a 'title:' field")
	}

	owner := feature.ID
	if owner == "" {
		owner = filepath.Base(path)
	}
	if extra := extraKeys(root, featureKnown); len(extra) > 0 {
		r.Extra[owner] = extra
		if strict {
			r.Errors = append(r.Errors, "Extra fields in feature: "+strings.Join(extra, ", "))
		}
	}

	storyNodes := seqItems(mappingValue(root, "user_stories"))
	var storyIDs []string
	acTotal := 0
	for i, story := range feature.UserStories {
		label := story.ID
		if label == "" {
			label = fmt.Sprintf("user_stories[%d]", i)
		}

		if story.ID == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("user_stories[%d].id: field required", i))
			if i < len(storyNodes) {
				r.Errors = append(r.Errors, wrongKeyHints(storyNodes[i])...)
			}
		} else {
			storyIDs = append(storyIDs, story.ID)
			if !matchesFamily(g, story.ID, "US") {
				r.Errors = append(r.Errors,
					fmt.Sprintf("user_stories[%d].id: %q does not match the US identifier pattern", i, story.ID),
					"  Expected: id: US-XXX (e.g., US-001 or US-AUTH-001)")
			}
		}

		if story.AsA == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: Missing 'as_a' field", label))
		}
		if story.IWant == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: Missing 'i_want' field", label))
		}
		if story.SoThat == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: Missing 'so_that' field", label))
		}
		if len(story.AcceptanceCriteria) == 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s: No acceptance criteria", label))
		}
		acTotal += len(story.AcceptanceCriteria)

		if i < len(storyNodes) {
			if extra := extraKeys(storyNodes[i], storyKnown); len(extra) > 0 {
				r.Extra[label] = extra
				if strict {
					r.Errors = append(r.Errors, fmt.Sprintf("Extra fields in %s: %s", label, strings.Join(extra, ", ")))
				}
			}
		}
	}
	if dups := duplicates(storyIDs); len(dups) > 0 {
		r.Errors = append(r.Errors, "Duplicate story IDs: "+strings.Join(dups, ", "))
	}

	if feature.Description == "" {
		r.Warnings = append(r.Warnings, "Feature has no description")
	}
	if feature.BusinessValue == "" {
		r.Warnings = append(r.Warnings, "Feature has no business_value")
	}

	r.Stats = []Stat{
		{"user_stories", len(feature.UserStories)},
		{"acceptance_criteria", acTotal},
		{"dod_items", len(feature.DefinitionOfDone)},
	}
	return finalize(r)
}

func finalize(r Result) Result {
	r.Valid = len(r.Errors) == 0
	return r
}

func summarize(results []Result) Summary {
	s := Summary{TotalFiles: len(results), Results: results}
	for _, r := range results {
		if r.Valid {
			s.ValidFiles++
		} else {
			s.InvalidFiles++
		}
		s.TotalErrors += len(r.Errors)
		s.TotalWarnings += len(r.Warnings)
		s.TotalExtraFields += len(r.Extra)
	}
	return s
}

func matchesFamily(g *grammar.Grammar, id, prefix string) bool {
	p, ok := g.PrefixOf(id)
	return ok && p == prefix
}

// wrongKeyHints inspects a mapping for the common wrong spellings of id:
// and returns targeted hint lines.
func wrongKeyHints(node *yaml.Node) []string {
	for _, wk := range wrongIDKeys {
		if v := mappingValue(node, wk.key); v != nil {
			return []string{
				fmt.Sprintf("  Got: %s: %s", wk.key, v.Value),
				"  Hint: " + wk.fix,
			}
		}
	}
	return []string{"  Hint: Every definition requires an 'id:' field"}
}

func extraKeys(node *yaml.Node, known map[string]bool) []string {
	var extra []string
	for _, key := range mappingKeys(node) {
		if !known[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return extra
}

func seqItems(node *yaml.Node) []*yaml.Node {
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	return node.Content
}

// duplicates returns, in first-seen order, the ids appearing more than
// once.
func duplicates(ids []string) []string {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	var dups []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if counts[id] > 1 && !seen[id] {
			seen[id] = true
			dups = append(dups, id)
		}
	}
	return dups
}

// PrintResult writes one file's validation outcome. Warnings and extra
// fields are shown for failing files and, with verbose, for passing ones.
func PrintResult(w io.Writer, r Result, verbose bool) {
	status := "PASS"
	if !r.Valid {
		status = "FAIL"
	}
	fmt.Fprintf(w, "[%s] %s\n", status, filepath.Base(r.Path))

	for _, e := range r.Errors {
		fmt.Fprintf(w, "       ERROR: %s\n", e)
	}
	if verbose || !r.Valid {
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "       WARN:  %s\n", warn)
		}
		owners := make([]string, 0, len(r.Extra))
		for owner := range r.Extra {
			owners = append(owners, owner)
		}
		sort.Strings(owners)
		for _, owner := range owners {
			fmt.Fprintf(w, "       EXTRA: %s has fields: %s\n", owner, strings.Join(r.Extra[owner], ", "))
		}
	}
	if verbose && len(r.Stats) > 0 {
		parts := make([]string, len(r.Stats))
		for i, st := range r.Stats {
			parts[i] = fmt.Sprintf("%s=%d", st.Name, st.Value)
		}
		fmt.Fprintf(w, "       STATS: %s\n", strings.Join(parts, ", "))
	}
}

// PrintSummary writes the closing summary block.
func PrintSummary(w io.Writer, s Summary) {
	banner := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintln(w, "VALIDATION SUMMARY")
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "\n  Schema Version:    v%s\n", schema.SchemaVersion)
	fmt.Fprintf(w, "  Files Checked:     %d\n", s.TotalFiles)
	fmt.Fprintf(w, "  Valid:             %d\n", s.ValidFiles)
	fmt.Fprintf(w, "  Invalid:           %d\n", s.InvalidFiles)
	fmt.Fprintf(w, "  Errors:            %d\n", s.TotalErrors)
	fmt.Fprintf(w, "  Warnings:          %d\n", s.TotalWarnings)
	fmt.Fprintf(w, "  Extra Fields:      %d\n\n", s.TotalExtraFields)
	if s.InvalidFiles == 0 {
		fmt.Fprintln(w, "All files passed validation!")
	} else {
		fmt.Fprintf(w, "Found %d error(s) in %d file(s)\n", s.TotalErrors, s.InvalidFiles)
	}
	fmt.Fprintln(w, banner)
}
