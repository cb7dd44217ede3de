package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/storytrace/internal/reqfile"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestGenerateDiffs_ExactMatch(t *testing.T) {
	path := writeFixture(t, "_index.yaml", "features:\n  - ref: FT-001\n")
	suggestions := []reqfile.FixSuggestion{
		{
			Level:    reqfile.LevelError,
			File:     path,
			Message:  "features[0] uses 'ref:' which is not supported",
			Current:  "- ref: FT-001",
			Expected: "- id: FT-001",
		},
	}
	out := GenerateDiffs(suggestions, nil)
	if out == "" {
		t.Error("expected non-empty diff for exact match")
	}
	if !strings.Contains(out, "# fix for "+path) {
		t.Errorf("diff missing file header: %q", out)
	}
}

func TestGenerateDiffs_NormalizedMatch(t *testing.T) {
	// File uses CRLF endings; the suggestion text is plain LF.
	path := writeFixture(t, "FT-001.yaml", "feature_id: FT-001\r\ntitle: Login\r\n")
	suggestions := []reqfile.FixSuggestion{
		{
			Level:    reqfile.LevelError,
			File:     path,
			Message:  "Uses 'feature_id:' instead of 'id:'",
			Current:  "feature_id: FT-001\ntitle: Login",
			Expected: "id: FT-001\ntitle: Login",
		},
	}
	var warnBuf strings.Builder
	out := GenerateDiffs(suggestions, &warnBuf)
	if out == "" {
		t.Error("expected non-empty diff for normalized match")
	}
	if warnBuf.Len() > 0 {
		t.Errorf("unexpected warning for normalized match: %q", warnBuf.String())
	}
}

func TestGenerateDiffs_UnmatchedCurrentSkipped(t *testing.T) {
	path := writeFixture(t, "_index.yaml", "features:\n  - id: FT-001\n")
	suggestions := []reqfile.FixSuggestion{
		{
			Level:    reqfile.LevelWarn,
			File:     path,
			Message:  "epics section may duplicate epics/*.yaml definitions",
			Current:  "epics: [{id: EP-001, ...}]",
			Expected: "# epics defined in epics/*.yaml",
		},
	}
	var warnBuf strings.Builder
	out := GenerateDiffs(suggestions, &warnBuf)
	if out != "" {
		t.Errorf("expected empty diff for unmatched suggestion, got: %q", out)
	}
	if !strings.Contains(warnBuf.String(), path) {
		t.Errorf("expected warning mentioning %s: %q", path, warnBuf.String())
	}
}

func TestGenerateDiffs_UnreadableFileWarnsOnce(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "FT-404.yaml")
	suggestions := []reqfile.FixSuggestion{
		{File: missing, Message: "first", Current: "a", Expected: "b"},
		{File: missing, Message: "second", Current: "c", Expected: "d"},
	}
	var warnBuf strings.Builder
	out := GenerateDiffs(suggestions, &warnBuf)
	if out != "" {
		t.Errorf("expected empty diff for unreadable file, got: %q", out)
	}
	if got := strings.Count(warnBuf.String(), "cannot read"); got != 1 {
		t.Errorf("warn count = %d, want 1: %q", got, warnBuf.String())
	}
}

func TestGenerateDiffs_SkipsSuggestionsWithoutEdit(t *testing.T) {
	path := writeFixture(t, "_index.yaml", "features: []\n")
	suggestions := []reqfile.FixSuggestion{
		{File: path, Message: "advisory only", Suggestion: "restructure by hand"},
	}
	var warnBuf strings.Builder
	if out := GenerateDiffs(suggestions, &warnBuf); out != "" {
		t.Errorf("expected empty diff for advisory suggestion, got: %q", out)
	}
	if warnBuf.Len() > 0 {
		t.Errorf("unexpected warning: %q", warnBuf.String())
	}
}

func TestGenerateDiffs_EmptySuggestions(t *testing.T) {
	if out := GenerateDiffs(nil, nil); out != "" {
		t.Errorf("expected empty string for nil suggestions, got %q", out)
	}
}
