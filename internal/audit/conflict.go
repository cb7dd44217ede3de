package audit

import (
	"sort"

	"github.com/dshills/storytrace/internal/grammar"
	"github.com/dshills/storytrace/internal/schema"
)

// DetectConflicts returns the identifiers defined in more than one distinct
// requirements file, sorted by identifier. Only definition lines count
// toward a conflict; references to an identifier from other files never do.
func DetectConflicts(g *grammar.Grammar, requirements map[string][]schema.Occurrence) []schema.Conflict {
	var conflicts []schema.Conflict
	for id, occs := range requirements {
		defining := make(map[string]bool)
		for _, occ := range occs {
			if g.IsDefinitionLine(occ.Snippet, id) {
				defining[occ.File] = true
			}
		}
		if len(defining) < 2 {
			continue
		}
		files := make([]string, 0, len(defining))
		for f := range defining {
			files = append(files, f)
		}
		sort.Strings(files)
		conflicts = append(conflicts, schema.Conflict{
			ID:          id,
			Files:       files,
			Occurrences: occs,
		})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ID < conflicts[j].ID })
	return conflicts
}
