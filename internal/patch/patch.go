package patch

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/storytrace/internal/reqfile"
)

// diffEdit is the internal processing type for patch generation.
// reqfile.FixSuggestion carries the human-readable analysis; this type
// holds the resolved before/after text actually diffed.
type diffEdit struct {
	before string
	after  string
}

// GenerateDiffs converts fix suggestions into a patch stream suitable
// for writing to --patch-out. Suggestions without concrete current and
// expected text, or whose current text cannot be located in the file,
// are skipped with a warning written to w (may be nil).
// Both sides are normalized before diffing to avoid spurious whitespace
// diffs.
func GenerateDiffs(suggestions []reqfile.FixSuggestion, w io.Writer) string {
	if len(suggestions) == 0 {
		return ""
	}

	dmp := diffmatchpatch.New()
	var out strings.Builder

	// Each file is read and normalized once, however many suggestions
	// point at it.
	raws := make(map[string]string)
	norms := make(map[string]string)
	unreadable := make(map[string]bool)

	for _, s := range suggestions {
		if s.Current == "" || s.Expected == "" {
			continue
		}
		if unreadable[s.File] {
			continue
		}
		raw, ok := raws[s.File]
		if !ok {
			data, err := os.ReadFile(s.File)
			if err != nil {
				if w != nil {
					fmt.Fprintf(w, "WARN: cannot read %s: %v\n", s.File, err)
				}
				unreadable[s.File] = true
				continue
			}
			raw = string(data)
			raws[s.File] = raw
			norms[s.File] = normalize(raw)
		}

		edit, ok := resolve(s, raw, norms[s.File])
		if !ok {
			if w != nil {
				fmt.Fprintf(w, "WARN: fix for %s could not be located (current text not matched)\n", s.File)
			}
			continue
		}

		diffs := dmp.DiffMain(edit.before, edit.after, false)
		patchList := dmp.PatchMake(edit.before, diffs)
		patchText := dmp.PatchToText(patchList)
		if patchText == "" {
			continue
		}

		out.WriteString(fmt.Sprintf("# fix for %s: %s\n", s.File, s.Message))
		out.WriteString(patchText)
		out.WriteString("\n")
	}

	return out.String()
}

// resolve attempts to locate s.Current in raw using exact or normalized
// matching. Returns a zero diffEdit and false if the current text cannot
// be found.
func resolve(s reqfile.FixSuggestion, raw, norm string) (diffEdit, bool) {
	// Step 1: exact match, so the patch applies to the file as written.
	if strings.Contains(raw, s.Current) {
		return diffEdit{before: s.Current, after: s.Expected}, true
	}

	// Step 2: normalized match (trim trailing whitespace, normalize CRLF).
	normCurrent := normalize(s.Current)
	if strings.Contains(norm, normCurrent) {
		return diffEdit{before: normCurrent, after: normalize(s.Expected)}, true
	}

	return diffEdit{}, false
}

// normalize trims trailing whitespace from each line and converts CRLF to LF.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
