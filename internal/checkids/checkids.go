// Package checkids finds identifiers defined in more than one place. It
// backs the check-ids command used as a pre-commit gate, so it reads
// files quietly and reports through its return values only.
package checkids

import (
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/scan"
)

// Location is one definition site of an identifier.
type Location struct {
	File    string
	Line    int
	Snippet string
}

// Duplicate is an identifier with more than one definition site.
type Duplicate struct {
	ID        string
	Locations []Location
}

// Check scans files for definition lines and returns every identifier
// defined more than once, sorted by identifier, along with the count of
// unique identifiers seen. Two definitions in the same file count as a
// duplicate. Unreadable files are skipped.
func Check(g *grammar.Grammar, files []string) ([]Duplicate, int) {
	locations := make(map[string][]Location)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := strings.ToValidUTF8(string(data), string(utf8.RuneError))
		for i, line := range scan.SplitLines(content) {
			id, ok := g.DefinitionID(line)
			if !ok {
				continue
			}
			locations[id] = append(locations[id], Location{
				File:    path,
				Line:    i + 1,
				Snippet: line,
			})
		}
	}

	ids := make([]string, 0, len(locations))
	for id := range locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var dups []Duplicate
	for _, id := range ids {
		if locs := locations[id]; len(locs) > 1 {
			dups = append(dups, Duplicate{ID: id, Locations: locs})
		}
	}
	return dups, len(locations)
}
