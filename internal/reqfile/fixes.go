package reqfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suggestion levels.
const (
	LevelError = "error"
	LevelWarn  = "warn"
)

// FixSuggestion describes a concrete edit that would resolve a common
// authoring mistake in the requirements YAML.
type FixSuggestion struct {
	Level      string
	File       string
	Message    string
	Suggestion string
	Current    string
	Expected   string
}

// AnalyzeFixes scans a requirements directory for recurring mistakes and
// returns suggested corrections. Unreadable or malformed files are
// skipped; validation proper reports those.
func AnalyzeFixes(dir string) []FixSuggestion {
	var suggestions []FixSuggestion

	indexPath := filepath.Join(dir, "_index.yaml")
	if _, err := os.Stat(indexPath); err == nil {
		suggestions = append(suggestions, analyzeIndexFixes(indexPath, dir)...)
	}
	suggestions = append(suggestions, analyzeEpicFixes(filepath.Join(dir, "epics"))...)
	suggestions = append(suggestions, analyzeFeatureFixes(filepath.Join(dir, "features"))...)

	return suggestions
}

func analyzeIndexFixes(indexPath, dir string) []FixSuggestion {
	doc, ok := loadMap(indexPath)
	if !ok {
		return nil
	}
	var suggestions []FixSuggestion

	// An epics section in the index usually shadows epics/*.yaml.
	if items := seqAny(doc["epics"]); len(items) > 0 {
		epicFiles, _ := filepath.Glob(filepath.Join(dir, "epics", "EP-*.yaml"))
		if len(epicFiles) > 0 {
			suggestions = append(suggestions, FixSuggestion{
				Level:      LevelWarn,
				File:       indexPath,
				Message:    "epics section may duplicate epics/*.yaml definitions",
				Suggestion: "Remove epics from _index.yaml, keep only in epics/*.yaml",
				Current:    "epics: [{id: EP-001, ...}]",
				Expected:   "# epics defined in epics/*.yaml",
			})
		}
	}

	for i, item := range seqAny(doc["features"]) {
		feat, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if ref, found := feat["ref"]; found {
			suggestions = append(suggestions, FixSuggestion{
				Level:      LevelError,
				File:       indexPath,
				Message:    fmt.Sprintf("features[%d] uses 'ref:' which is not supported", i),
				Suggestion: "Use 'id:' instead of 'ref:' for feature references",
				Current:    fmt.Sprintf("- ref: %v", ref),
				Expected:   fmt.Sprintf("- id: %v", ref),
			})
		}
	}

	return suggestions
}

func analyzeEpicFixes(epicsDir string) []FixSuggestion {
	paths, _ := filepath.Glob(filepath.Join(epicsDir, "EP-*.yaml"))
	var suggestions []FixSuggestion

	for _, path := range paths {
		doc, ok := loadMap(path)
		if !ok {
			continue
		}
		for i, item := range seqAny(doc["features"]) {
			feat, ok := item.(map[string]any)
			if !ok {
				continue
			}
			ref := feat["ref"]
			if ref == nil {
				ref = feat["id"]
			}
			if ref == nil {
				ref = "..."
			}
			suggestions = append(suggestions, FixSuggestion{
				Level:      LevelWarn,
				File:       path,
				Message:    fmt.Sprintf("features[%d] uses object format, expected list of IDs", i),
				Suggestion: "Use simple ID list: features: [FT-001, FT-002]",
				Current:    fmt.Sprintf("features: [{ref: %v}]", ref),
				Expected:   "features: [FT-001, FT-002, FT-003]",
			})
			break // one report per file is enough
		}
	}

	return suggestions
}

func analyzeFeatureFixes(featuresDir string) []FixSuggestion {
	paths, _ := filepath.Glob(filepath.Join(featuresDir, "FT-*.yaml"))
	var suggestions []FixSuggestion

	for _, path := range paths {
		doc, ok := loadMap(path)
		if !ok {
			continue
		}

		if id, found := doc["feature_id"]; found {
			if _, hasID := doc["id"]; !hasID {
				suggestions = append(suggestions, FixSuggestion{
					Level:      LevelError,
					File:       path,
					Message:    "Uses 'feature_id:' instead of 'id:'",
					Suggestion: "Rename 'feature_id:' to 'id:'",
					Current:    fmt.Sprintf("feature_id: %v", id),
					Expected:   fmt.Sprintf("id: %v", id),
				})
			}
		}

		for i, item := range seqAny(doc["user_stories"]) {
			story, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id, found := story["story_id"]
			if !found {
				continue
			}
			if _, hasID := story["id"]; hasID {
				continue
			}
			suggestions = append(suggestions, FixSuggestion{
				Level:      LevelError,
				File:       path,
				Message:    fmt.Sprintf("user_stories[%d] uses 'story_id:' instead of 'id:'", i),
				Suggestion: "Rename 'story_id:' to 'id:'",
				Current:    fmt.Sprintf("story_id: %v", id),
				Expected:   fmt.Sprintf("id: %v", id),
			})
		}
	}

	return suggestions
}

// PrintFixSuggestions writes suggestions in the report format. An empty
// list prints a single all-clear line.
func PrintFixSuggestions(w io.Writer, suggestions []FixSuggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "\nNo fix suggestions - files look good!")
		return
	}

	banner := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", banner)
	fmt.Fprintln(w, "FIX SUGGESTIONS")
	fmt.Fprintln(w, banner)

	for _, s := range suggestions {
		level := "[WARN] "
		if s.Level == LevelError {
			level = "[ERROR]"
		}
		fmt.Fprintf(w, "\n%s %s: %s\n", level, s.File, s.Message)
		fmt.Fprintf(w, "  Suggestion: %s\n", s.Suggestion)
		if s.Current != "" {
			fmt.Fprintf(w, "  Current:  %s\n", s.Current)
		}
		if s.Expected != "" {
			fmt.Fprintf(w, "  Expected: %s\n", s.Expected)
		}
	}
}

// loadMap decodes a YAML file into a generic map. The bool is false when
// the file cannot be read or is not a mapping.
func loadMap(path string) (map[string]any, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	return doc, true
}

func seqAny(v any) []any {
	items, _ := v.([]any)
	return items
}
